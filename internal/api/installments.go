package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"cocolu/backend/domain"
)

// createInstallments splits a credit order's total into n monthly cuotas
// inside the order's own transaction. Rounding remainder lands on the first
// cuota so the plan always sums to the order total.
func (h *Handler) createInstallments(tx *sqlx.Tx, order domain.Order, n int64, now time.Time) ([]domain.Installment, error) {
	count := decimal.NewFromInt(n)
	base := order.Total.DivRound(count, 2)
	first := order.Total.Sub(base.Mul(decimal.NewFromInt(n - 1)))

	created := now.UTC().Format(time.RFC3339)
	local := now.In(h.loc)

	cuotas := make([]domain.Installment, 0, n)
	for i := int64(0); i < n; i++ {
		monto := base
		if i == 0 {
			monto = first
		}
		due := local.AddDate(0, int(i)+1, 0).Format("2006-01-02")
		res, err := tx.Exec(`INSERT INTO cuotas (pedido_id, cliente_id, numero, monto, fecha_vencimiento, estado, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			order.ID, order.ClienteID, i+1, monto.String(), due, domain.CuotaPendiente, created)
		if err != nil {
			return nil, err
		}
		id, _ := res.LastInsertId()
		cuotas = append(cuotas, domain.Installment{
			ID:               id,
			PedidoID:         order.ID,
			ClienteID:        order.ClienteID,
			Numero:           i + 1,
			Monto:            monto,
			FechaVencimiento: due,
			Estado:           domain.CuotaPendiente,
			CreatedAt:        created,
		})
	}
	return cuotas, nil
}

// markOverdue rewrites pendiente as vencida for cuotas past their due date.
// Derived at read time so nothing has to sweep the table.
func (h *Handler) markOverdue(cuotas []domain.Installment) {
	today := h.now().In(h.loc).Format("2006-01-02")
	for i := range cuotas {
		if cuotas[i].Estado == domain.CuotaPendiente && cuotas[i].FechaVencimiento < today {
			cuotas[i].Estado = domain.CuotaVencida
		}
	}
}

func (h *Handler) listInstallments(w http.ResponseWriter, r *http.Request) {
	var (
		clauses []string
		args    []any
	)
	if v := strings.TrimSpace(r.URL.Query().Get("client_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.respondErr(w, r, errValidation("client_id inválido"))
			return
		}
		clauses = append(clauses, `cliente_id = ?`)
		args = append(args, id)
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	switch status {
	case "", domain.CuotaPendiente, domain.CuotaPagada, domain.CuotaVencida:
	default:
		h.respondErr(w, r, errValidation("status debe ser pendiente, pagada o vencida"))
		return
	}
	// vencida is stored as pendiente and derived from the due date.
	if status == domain.CuotaPendiente || status == domain.CuotaVencida {
		clauses = append(clauses, `estado = ?`)
		args = append(args, domain.CuotaPendiente)
	} else if status == domain.CuotaPagada {
		clauses = append(clauses, `estado = ?`)
		args = append(args, domain.CuotaPagada)
	}

	query := `SELECT id, pedido_id, cliente_id, numero, monto, fecha_vencimiento, estado, fecha_pago, created_at FROM cuotas`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY fecha_vencimiento, numero"

	var cuotas []domain.Installment
	if err := h.db.Select(&cuotas, query, args...); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	h.markOverdue(cuotas)

	if status == domain.CuotaPendiente || status == domain.CuotaVencida {
		filtered := cuotas[:0]
		for _, c := range cuotas {
			if c.Estado == status {
				filtered = append(filtered, c)
			}
		}
		cuotas = filtered
	}
	if cuotas == nil {
		cuotas = []domain.Installment{}
	}
	respondJSON(w, http.StatusOK, cuotas)
}

type payRequest struct {
	Monto decimal.Decimal `json:"monto"`
}

func (h *Handler) payInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondErr(w, r, errValidation("id de cuota inválido"))
		return
	}
	var req payRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, errValidation("cuerpo de la solicitud inválido"))
		return
	}

	tx, err := h.db.Beginx()
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	defer tx.Rollback()

	var cuota domain.Installment
	err = tx.Get(&cuota, `SELECT id, pedido_id, cliente_id, numero, monto, fecha_vencimiento, estado, fecha_pago, created_at FROM cuotas WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respondErr(w, r, errNotFound("cuota no encontrada"))
			return
		}
		h.respondErr(w, r, errInternal(err))
		return
	}
	if cuota.Estado == domain.CuotaPagada {
		h.respondErr(w, r, errConflict("la cuota ya fue pagada"))
		return
	}
	if !req.Monto.Equal(cuota.Monto) {
		h.respondErr(w, r, errValidation("el monto debe ser igual al saldo de la cuota"))
		return
	}

	paidAt := h.now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`UPDATE cuotas SET estado = ?, fecha_pago = ? WHERE id = ?`, domain.CuotaPagada, paidAt, id); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	if err := tx.Commit(); err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}

	cuota.Estado = domain.CuotaPagada
	cuota.FechaPago = &paidAt
	respondJSON(w, http.StatusOK, cuota)
}

type receivablesResponse struct {
	Clientes         []domain.ReceivableBalance `json:"clientes"`
	TotalPorCobrar   decimal.Decimal            `json:"total_por_cobrar"`
	CuotasVencidas   int64                      `json:"cuotas_vencidas"`
	CuotasPendientes int64                      `json:"cuotas_pendientes"`
}

func (h *Handler) accountsReceivable(w http.ResponseWriter, r *http.Request) {
	var cuotas []domain.Installment
	err := h.db.Select(&cuotas, `SELECT id, pedido_id, cliente_id, numero, monto, fecha_vencimiento, estado, fecha_pago, created_at
        FROM cuotas WHERE estado = ?`, domain.CuotaPendiente)
	if err != nil {
		h.respondErr(w, r, errInternal(err))
		return
	}
	h.markOverdue(cuotas)

	type agg struct {
		count int64
		saldo decimal.Decimal
	}
	perClient := make(map[int64]*agg)
	resp := receivablesResponse{Clientes: []domain.ReceivableBalance{}, TotalPorCobrar: decimal.Zero}
	for _, c := range cuotas {
		a := perClient[c.ClienteID]
		if a == nil {
			a = &agg{saldo: decimal.Zero}
			perClient[c.ClienteID] = a
		}
		a.count++
		a.saldo = a.saldo.Add(c.Monto)
		resp.TotalPorCobrar = resp.TotalPorCobrar.Add(c.Monto)
		if c.Estado == domain.CuotaVencida {
			resp.CuotasVencidas++
		} else {
			resp.CuotasPendientes++
		}
	}

	if len(perClient) > 0 {
		ids := make([]int64, 0, len(perClient))
		for id := range perClient {
			ids = append(ids, id)
		}
		query, args, err := sqlx.In(`SELECT id, cedula, nombre FROM clientes WHERE id IN (?) ORDER BY nombre`, ids)
		if err != nil {
			h.respondErr(w, r, errInternal(err))
			return
		}
		var clients []domain.Client
		if err := h.db.Select(&clients, h.db.Rebind(query), args...); err != nil {
			h.respondErr(w, r, errInternal(err))
			return
		}
		for _, c := range clients {
			a := perClient[c.ID]
			resp.Clientes = append(resp.Clientes, domain.ReceivableBalance{
				ClienteID:      c.ID,
				Nombre:         c.Nombre,
				Cedula:         c.Cedula,
				CuotasAbiertas: a.count,
				Saldo:          a.saldo,
			})
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
