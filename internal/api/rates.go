package api

import (
	"net/http"

	"github.com/shopspring/decimal"
)

func (h *Handler) getRate(w http.ResponseWriter, r *http.Request) {
	rate := h.rates.Current(r.Context())
	respondJSON(w, http.StatusOK, rate)
}

type setRateRequest struct {
	Valor decimal.Decimal `json:"valor"`
}

func (h *Handler) setRate(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin") {
		return
	}
	var req setRateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, errValidation("cuerpo de la solicitud inválido"))
		return
	}
	if req.Valor.Sign() <= 0 {
		h.respondErr(w, r, errValidation("valor debe ser mayor que cero"))
		return
	}
	rate, err := h.rates.Set(req.Valor)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	respondJSON(w, http.StatusOK, rate)
}
