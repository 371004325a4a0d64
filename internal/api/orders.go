package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"cocolu/backend/domain"
)

type orderItemRequest struct {
	ID        int64           `json:"id" validate:"required"`
	Cantidad  int64           `json:"cantidad" validate:"required,min=1"`
	PrecioUSD decimal.Decimal `json:"precio_usd"`
}

type orderRequest struct {
	ClientID int64              `json:"client_id" validate:"required"`
	Products []orderItemRequest `json:"products" validate:"required,min=1,dive"`
	SellerID *int64             `json:"seller_id"`

	MetodoPago string          `json:"metodo_pago" validate:"omitempty,oneof=efectivo pago_movil transferencia zelle credito"`
	Descuento  decimal.Decimal `json:"descuento"`
	Delivery   decimal.Decimal `json:"delivery"`

	// Number of monthly installments for credit sales.
	Cuotas int64 `json:"cuotas" validate:"min=0,max=24"`

	// Replay guard. Optional; a repeated key returns the original order.
	IdempotencyKey string `json:"idempotency_key"`

	// Accepted for wire compatibility with older bot clients, ignored:
	// totals are recomputed server-side from the line items.
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}

type orderResponse struct {
	domain.Order
	Items  []domain.OrderItem   `json:"items"`
	Cuotas []domain.Installment `json:"cuotas,omitempty"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := h.decodeValid(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if req.MetodoPago == "" {
		req.MetodoPago = domain.PagoEfectivo
	}
	if req.Descuento.Sign() < 0 || req.Delivery.Sign() < 0 {
		h.respondErr(w, r, errValidation("descuento y delivery no pueden ser negativos"))
		return
	}
	if req.MetodoPago == domain.PagoCredito && req.Cuotas < 1 {
		h.respondErr(w, r, errValidation("una venta a crédito requiere al menos una cuota"))
		return
	}

	// Replay of an already-processed request: return the stored order, write nothing.
	if req.IdempotencyKey != "" {
		if existing, err := h.loadOrderByKey(req.IdempotencyKey); err == nil {
			respondJSON(w, http.StatusOK, existing)
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			h.respondErr(w, r, errInternal(err))
			return
		}
	}

	var clientID int64
	err := h.db.Get(&clientID, `SELECT id FROM clientes WHERE id = ?`, req.ClientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respondErr(w, r, errNotFound("cliente no encontrado"))
			return
		}
		h.respondErr(w, r, errInternal(err))
		return
	}

	if req.SellerID != nil {
		var sellerID int64
		if err := h.db.Get(&sellerID, `SELECT id FROM sellers WHERE id = ?`, *req.SellerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				h.respondErr(w, r, errNotFound("vendedor no encontrado"))
				return
			}
			h.respondErr(w, r, errInternal(err))
			return
		}
	}

	tx, err := h.db.Beginx()
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	defer tx.Rollback()

	now := h.now().UTC()
	items := make([]domain.OrderItem, 0, len(req.Products))
	subtotal := decimal.Zero
	requested := make(map[int64]int64, len(req.Products))
	for _, line := range req.Products {
		if line.PrecioUSD.Sign() < 0 {
			h.respondErr(w, r, errValidation("precio_usd no puede ser negativo"))
			return
		}
		var product domain.Product
		err := tx.Get(&product, `SELECT id, codigo, nombre, categoria, precio_usd, stock, stock_minimo, created_at, updated_at FROM productos WHERE id = ?`, line.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				h.respondErr(w, r, errNotFound("producto no encontrado"))
				return
			}
			h.respondErr(w, r, errInternal(err))
			return
		}
		// Lines may repeat a product, so the check covers the running total.
		requested[line.ID] += line.Cantidad
		if product.Stock < requested[line.ID] {
			h.respondErr(w, r, errValidation("stock insuficiente para "+product.Nombre))
			return
		}

		precio := line.PrecioUSD
		if precio.IsZero() {
			precio = product.PrecioUSD
		}
		lineSubtotal := precio.Mul(decimal.NewFromInt(line.Cantidad))
		subtotal = subtotal.Add(lineSubtotal)
		items = append(items, domain.OrderItem{
			ProductoID: product.ID,
			Cantidad:   line.Cantidad,
			PrecioUSD:  precio,
			Subtotal:   lineSubtotal,
		})
	}

	total := subtotal.Sub(req.Descuento).Add(req.Delivery)
	if total.Sign() < 0 {
		h.respondErr(w, r, errValidation("el descuento supera el subtotal"))
		return
	}

	order := domain.Order{
		Referencia: uuid.NewString(),
		ClienteID:  req.ClientID,
		SellerID:   req.SellerID,
		Subtotal:   subtotal,
		Descuento:  req.Descuento,
		Delivery:   req.Delivery,
		Total:      total,
		MetodoPago: req.MetodoPago,
		CreatedAt:  now.Format(time.RFC3339),
	}
	var keyRef *string
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		keyRef = &key
		order.IdempotencyKey = keyRef
	}

	res, err := tx.Exec(`INSERT INTO pedidos (referencia, cliente_id, seller_id, subtotal, descuento, delivery, total, metodo_pago, idempotency_key, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.Referencia, order.ClienteID, order.SellerID, order.Subtotal.String(), order.Descuento.String(),
		order.Delivery.String(), order.Total.String(), order.MetodoPago, keyRef, order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) && keyRef != nil {
			// Lost the race against a concurrent request with the same key.
			_ = tx.Rollback()
			if existing, lerr := h.loadOrderByKey(*keyRef); lerr == nil {
				respondJSON(w, http.StatusOK, existing)
				return
			}
		}
		h.respondErr(w, r, errInternal(err))
		return
	}
	order.ID, _ = res.LastInsertId()

	for i := range items {
		items[i].PedidoID = order.ID
		res, err := tx.Exec(`INSERT INTO detalles_pedido (pedido_id, producto_id, cantidad, precio_usd, subtotal) VALUES (?, ?, ?, ?, ?)`,
			order.ID, items[i].ProductoID, items[i].Cantidad, items[i].PrecioUSD.String(), items[i].Subtotal.String())
		if err != nil {
			h.respondErr(w, r, errInternal(err))
			return
		}
		items[i].ID, _ = res.LastInsertId()

		if _, err := tx.Exec(`UPDATE productos SET stock = stock - ?, updated_at = ? WHERE id = ?`,
			items[i].Cantidad, order.CreatedAt, items[i].ProductoID); err != nil {
			h.respondErr(w, r, errInternal(err))
			return
		}
	}

	var cuotas []domain.Installment
	if order.MetodoPago == domain.PagoCredito {
		cuotas, err = h.createInstallments(tx, order, req.Cuotas, now)
		if err != nil {
			h.respondErr(w, r, errInternal(err))
			return
		}
	}

	if err := tx.Commit(); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	respondJSON(w, http.StatusCreated, orderResponse{Order: order, Items: items, Cuotas: cuotas})
}

// loadOrderByKey fetches a previously stored order with its line items.
func (h *Handler) loadOrderByKey(key string) (orderResponse, error) {
	var order domain.Order
	err := h.db.Get(&order, `SELECT id, referencia, cliente_id, seller_id, subtotal, descuento, delivery, total, metodo_pago, idempotency_key, created_at
        FROM pedidos WHERE idempotency_key = ?`, key)
	if err != nil {
		return orderResponse{}, err
	}
	items, err := h.loadItems([]int64{order.ID})
	if err != nil {
		return orderResponse{}, err
	}
	return orderResponse{Order: order, Items: items[order.ID]}, nil
}

func (h *Handler) loadItems(orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return map[int64][]domain.OrderItem{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, pedido_id, producto_id, cantidad, precio_usd, subtotal FROM detalles_pedido WHERE pedido_id IN (?) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	var rows []domain.OrderItem
	if err := h.db.Select(&rows, h.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	byOrder := make(map[int64][]domain.OrderItem)
	for _, row := range rows {
		byOrder[row.PedidoID] = append(byOrder[row.PedidoID], row)
	}
	return byOrder, nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var orders []domain.Order
	err := h.db.Select(&orders, `SELECT id, referencia, cliente_id, seller_id, subtotal, descuento, delivery, total, metodo_pago, idempotency_key, created_at
        FROM pedidos ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	if len(orders) == 0 {
		respondJSON(w, http.StatusOK, []orderResponse{})
		return
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	itemsByOrder, err := h.loadItems(ids)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		items := itemsByOrder[o.ID]
		if items == nil {
			items = []domain.OrderItem{}
		}
		out[i] = orderResponse{Order: o, Items: items}
	}
	respondJSON(w, http.StatusOK, out)
}
