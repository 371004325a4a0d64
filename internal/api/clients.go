package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"cocolu/backend/domain"
)

type clientRequest struct {
	Cedula    string `json:"cedula" validate:"required"`
	Nombre    string `json:"nombre" validate:"required"`
	Telefono  string `json:"telefono"`
	Direccion string `json:"direccion"`
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	now := h.now().UTC().Format(time.RFC3339)
	res, err := h.db.Exec(`INSERT INTO clientes (cedula, nombre, telefono, direccion, created_at) VALUES (?, ?, ?, ?, ?)`,
		strings.TrimSpace(req.Cedula), strings.TrimSpace(req.Nombre), req.Telefono, req.Direccion, now)
	if err != nil {
		if isUniqueViolation(err) {
			h.respondErr(w, r, errConflict("ya existe un cliente con esa cédula"))
			return
		}
		h.respondErr(w, r, errInternal(err))
		return
	}
	id, _ := res.LastInsertId()

	respondJSON(w, http.StatusCreated, domain.Client{
		ID:        id,
		Cedula:    strings.TrimSpace(req.Cedula),
		Nombre:    strings.TrimSpace(req.Nombre),
		Telefono:  req.Telefono,
		Direccion: req.Direccion,
		CreatedAt: now,
	})
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	var clients []domain.Client
	var err error
	if search == "" {
		err = h.db.Select(&clients, `SELECT id, cedula, nombre, telefono, direccion, created_at FROM clientes ORDER BY nombre LIMIT 100`)
	} else {
		like := "%" + strings.ToLower(search) + "%"
		err = h.db.Select(&clients, `SELECT id, cedula, nombre, telefono, direccion, created_at FROM clientes
            WHERE lower(nombre) LIKE ? OR lower(cedula) LIKE ? OR telefono LIKE ?
            ORDER BY nombre LIMIT 100`, like, like, like)
	}
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	respondJSON(w, http.StatusOK, clients)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondErr(w, r, errValidation("id de cliente inválido"))
		return
	}
	var client domain.Client
	if err := h.db.Get(&client, `SELECT id, cedula, nombre, telefono, direccion, created_at FROM clientes WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respondErr(w, r, errNotFound("cliente no encontrado"))
			return
		}
		h.respondErr(w, r, errInternal(err))
		return
	}
	respondJSON(w, http.StatusOK, client)
}

type sellerRequest struct {
	Nombre   string `json:"nombre" validate:"required"`
	Telefono string `json:"telefono"`
}

func (h *Handler) createSeller(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin") {
		return
	}
	var req sellerRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	now := h.now().UTC().Format(time.RFC3339)
	res, err := h.db.Exec(`INSERT INTO sellers (nombre, telefono, activo, created_at) VALUES (?, ?, 1, ?)`,
		strings.TrimSpace(req.Nombre), req.Telefono, now)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	id, _ := res.LastInsertId()
	respondJSON(w, http.StatusCreated, domain.Seller{ID: id, Nombre: strings.TrimSpace(req.Nombre), Telefono: req.Telefono, Activo: true, CreatedAt: now})
}

func (h *Handler) listSellers(w http.ResponseWriter, r *http.Request) {
	var sellers []domain.Seller
	if err := h.db.Select(&sellers, `SELECT id, nombre, telefono, activo, created_at FROM sellers WHERE activo = 1 ORDER BY nombre`); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	if sellers == nil {
		sellers = []domain.Seller{}
	}
	respondJSON(w, http.StatusOK, sellers)
}
