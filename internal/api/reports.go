package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"cocolu/backend/domain"
)

// periodWindow computes [start, end) for a report period. Boundaries are
// midnights in the configured report timezone, then converted to UTC to match
// the stored timestamps. One rule for every report in the system.
func (h *Handler) periodWindow(period string) (time.Time, time.Time, bool) {
	local := h.now().In(h.loc)
	year, month, day := local.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, h.loc)

	var start time.Time
	switch period {
	case "daily":
		start = today
	case "weekly":
		// Week starts Monday.
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDate(0, 0, -offset)
	case "monthly":
		start = time.Date(year, month, 1, 0, 0, 0, 0, h.loc)
	default:
		return time.Time{}, time.Time{}, false
	}
	return start.UTC(), today.AddDate(0, 0, 1).UTC(), true
}

type periodSummary struct {
	Period      string          `json:"period"`
	Desde       string          `json:"desde"`
	Hasta       string          `json:"hasta"`
	TotalVentas decimal.Decimal `json:"total_ventas"`
	NumPedidos  int64           `json:"numero_pedidos"`
	TicketMedio decimal.Decimal `json:"ticket_promedio"`
}

// sumOrders aggregates order totals inside [start, end). Stored RFC3339 UTC
// strings sort lexicographically, so string comparison is the range filter.
func (h *Handler) sumOrders(start, end time.Time) (decimal.Decimal, int64, error) {
	var totals []string
	err := h.db.Select(&totals, `SELECT total FROM pedidos WHERE created_at >= ? AND created_at < ?`,
		start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err != nil {
		return decimal.Zero, 0, err
	}
	sum := decimal.Zero
	for _, t := range totals {
		v, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, 0, err
		}
		sum = sum.Add(v)
	}
	return sum, int64(len(totals)), nil
}

func (h *Handler) salesByPeriod(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}
	start, end, ok := h.periodWindow(period)
	if !ok {
		h.respondErr(w, r, errValidation("period debe ser daily, weekly o monthly"))
		return
	}

	total, count, err := h.sumOrders(start, end)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	summary := periodSummary{
		Period:      period,
		Desde:       start.Format(time.RFC3339),
		Hasta:       end.Format(time.RFC3339),
		TotalVentas: total,
		NumPedidos:  count,
		TicketMedio: decimal.Zero,
	}
	if count > 0 {
		summary.TicketMedio = total.DivRound(decimal.NewFromInt(count), 2)
	}
	respondJSON(w, http.StatusOK, summary)
}

type dashboardResponse struct {
	VentasHoy          decimal.Decimal `json:"ventas_hoy"`
	PedidosHoy         int64           `json:"pedidos_hoy"`
	VentasMes          decimal.Decimal `json:"ventas_mes"`
	PedidosMes         int64           `json:"pedidos_mes"`
	TotalClientes      int64           `json:"total_clientes"`
	ProductosBajoStock int64           `json:"productos_bajo_stock"`
	UltimosPedidos     []orderResponse `json:"ultimos_pedidos"`
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dayStart, dayEnd, _ := h.periodWindow("daily")
	monthStart, monthEnd, _ := h.periodWindow("monthly")

	ventasHoy, pedidosHoy, err := h.sumOrders(dayStart, dayEnd)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	ventasMes, pedidosMes, err := h.sumOrders(monthStart, monthEnd)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	var clientes int64
	if err := h.db.Get(&clientes, `SELECT COUNT(*) FROM clientes`); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	var bajoStock int64
	if err := h.db.Get(&bajoStock, `SELECT COUNT(*) FROM productos WHERE stock <= stock_minimo`); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	var orders []domain.Order
	if err := h.db.Select(&orders, `SELECT id, referencia, cliente_id, seller_id, subtotal, descuento, delivery, total, metodo_pago, idempotency_key, created_at
        FROM pedidos ORDER BY created_at DESC, id DESC LIMIT 5`); err != nil {
		h.respondErr(w, r, errInternal(err))
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
	recent := make([]orderResponse, len(orders))
	for i, o := range orders {
		items := itemsByOrder[o.ID]
		if items == nil {
			items = []domain.OrderItem{}
		}
		recent[i] = orderResponse{Order: o, Items: items}
	}

	respondJSON(w, http.StatusOK, dashboardResponse{
		VentasHoy:          ventasHoy,
		PedidosHoy:         pedidosHoy,
		VentasMes:          ventasMes,
		PedidosMes:         pedidosMes,
		TotalClientes:      clientes,
		ProductosBajoStock: bajoStock,
		UltimosPedidos:     recent,
	})
}
