package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"cocolu/backend/domain"
)

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(h.now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(h.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			h.respondErr(w, r, errUnauthorized("falta el token de autorización"))
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			h.respondErr(w, r, errUnauthorized("token inválido"))
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			h.respondErr(w, r, errUnauthorized("token inválido"))
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role, _ := r.Context().Value(ctxRole).(string)
	for _, allowedRole := range allowed {
		if role == allowedRole {
			return true
		}
	}
	h.respondErr(w, r, errForbidden("permisos insuficientes"))
	return false
}

func userIDFromContext(r *http.Request) int64 {
	if id, ok := r.Context().Value(ctxUserID).(int64); ok {
		return id
	}
	return 0
}

// Handlers

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	var user domain.User
	ident := strings.ToLower(strings.TrimSpace(req.Username))
	err := h.db.Get(&user, `SELECT id, username, email, password, role, created_at FROM users WHERE lower(username) = ? OR lower(email) = ?`, ident, ident)
	if err != nil {
		// Same answer for unknown user and wrong password.
		h.respondErr(w, r, errUnauthorized("credenciales inválidas"))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		h.respondErr(w, r, errUnauthorized("credenciales inválidas"))
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin seller"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin") {
		return
	}
	var req registerRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	res, err := h.db.Exec(`INSERT INTO users (username, email, password, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		req.Username, strings.ToLower(req.Email), string(hashed), req.Role, h.now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			h.respondErr(w, r, errConflict("el usuario o correo ya existe"))
			return
		}
		h.respondErr(w, r, errInternal(err))
		return
	}
	userID, _ := res.LastInsertId()

	respondJSON(w, http.StatusCreated, domain.User{ID: userID, Username: req.Username, Email: strings.ToLower(req.Email), Role: req.Role})
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
