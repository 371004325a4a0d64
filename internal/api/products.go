package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"cocolu/backend/domain"
)

type productRequest struct {
	Codigo      string          `json:"codigo" validate:"required"`
	Nombre      string          `json:"nombre" validate:"required"`
	Categoria   string          `json:"categoria"`
	PrecioUSD   decimal.Decimal `json:"precio_usd"`
	Stock       int64           `json:"stock" validate:"min=0"`
	StockMinimo int64           `json:"stock_minimo" validate:"min=0"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if req.PrecioUSD.Sign() <= 0 {
		h.respondErr(w, r, errValidation("precio_usd debe ser mayor que cero"))
		return
	}
	if req.StockMinimo == 0 {
		req.StockMinimo = 5
	}

	now := h.now().UTC().Format(time.RFC3339)
	res, err := h.db.Exec(`INSERT INTO productos (codigo, nombre, categoria, precio_usd, stock, stock_minimo, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(req.Codigo), strings.TrimSpace(req.Nombre), req.Categoria, req.PrecioUSD.String(), req.Stock, req.StockMinimo, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			h.respondErr(w, r, errConflict("ya existe un producto con ese código"))
			return
		}
		h.respondErr(w, r, errInternal(err))
		return
	}
	id, _ := res.LastInsertId()

	respondJSON(w, http.StatusCreated, domain.Product{
		ID:          id,
		Codigo:      strings.TrimSpace(req.Codigo),
		Nombre:      strings.TrimSpace(req.Nombre),
		Categoria:   req.Categoria,
		PrecioUSD:   req.PrecioUSD,
		Stock:       req.Stock,
		StockMinimo: req.StockMinimo,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	lowStock := r.URL.Query().Get("low_stock") == "true"

	query := `SELECT id, codigo, nombre, categoria, precio_usd, stock, stock_minimo, created_at, updated_at FROM productos`
	var (
		clauses []string
		args    []any
	)
	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		clauses = append(clauses, `(lower(nombre) LIKE ? OR lower(codigo) LIKE ?)`)
		args = append(args, like, like)
	}
	if lowStock {
		clauses = append(clauses, `stock <= stock_minimo`)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY nombre LIMIT 200"

	var products []domain.Product
	if err := h.db.Select(&products, query, args...); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

type adjustmentRequest struct {
	Delta  int64  `json:"delta" validate:"required"`
	Motivo string `json:"motivo" validate:"required,min=3"`
}

// adjustStock applies a signed manual correction to a product's stock and
// records it in ajustes_inventario. Stock never goes below zero.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondErr(w, r, errValidation("id de producto inválido"))
		return
	}
	var req adjustmentRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	tx, err := h.db.Beginx()
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	defer tx.Rollback()

	var stock int64
	if err := tx.Get(&stock, `SELECT stock FROM productos WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respondErr(w, r, errNotFound("producto no encontrado"))
			return
		}
		h.respondErr(w, r, errInternal(err))
		return
	}
	newStock := stock + req.Delta
	if newStock < 0 {
		h.respondErr(w, r, errValidation("el ajuste dejaría el stock en negativo"))
		return
	}

	now := h.now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`UPDATE productos SET stock = ?, updated_at = ? WHERE id = ?`, newStock, now, id); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	userID := userIDFromContext(r)
	var userRef *int64
	if userID > 0 {
		userRef = &userID
	}
	if _, err := tx.Exec(`INSERT INTO ajustes_inventario (producto_id, delta, motivo, user_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, req.Delta, req.Motivo, userRef, now); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	if err := tx.Commit(); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"producto_id": id, "stock": newStock})
}
