package api

import (
	"errors"
	"net/http"
)

// Error is the only error shape handlers return to clients: a status plus a
// fixed, safe message. The underlying cause never reaches the response body;
// it is logged server-side by respondErr.
type Error struct {
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func errValidation(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

func errNotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

func errConflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Message: msg}
}

func errUnauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: msg}
}

func errForbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Message: msg}
}

func errInternal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "error interno del servidor", cause: cause}
}

// respondErr maps an error to its HTTP response and logs internal detail.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = errInternal(err)
	}
	if apiErr.Status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg("request failed")
	}
	respondJSON(w, apiErr.Status, map[string]string{"error": apiErr.Message})
}
