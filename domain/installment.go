package domain

import "github.com/shopspring/decimal"

// Installment statuses. "vencida" is derived at read time from the due date,
// only "pendiente" and "pagada" are stored.
const (
	CuotaPendiente = "pendiente"
	CuotaPagada    = "pagada"
	CuotaVencida   = "vencida"
)

type Installment struct {
	ID               int64           `db:"id" json:"id"`
	PedidoID         int64           `db:"pedido_id" json:"pedido_id"`
	ClienteID        int64           `db:"cliente_id" json:"cliente_id"`
	Numero           int64           `db:"numero" json:"numero"`
	Monto            decimal.Decimal `db:"monto" json:"monto"`
	FechaVencimiento string          `db:"fecha_vencimiento" json:"fecha_vencimiento"`
	Estado           string          `db:"estado" json:"estado"`
	FechaPago        *string         `db:"fecha_pago" json:"fecha_pago,omitempty"`
	CreatedAt        string          `db:"created_at" json:"created_at"`
}

// ReceivableBalance is one client's outstanding credit position.
type ReceivableBalance struct {
	ClienteID      int64           `db:"cliente_id" json:"cliente_id"`
	Nombre         string          `db:"nombre" json:"nombre"`
	Cedula         string          `db:"cedula" json:"cedula"`
	CuotasAbiertas int64           `db:"cuotas_abiertas" json:"cuotas_abiertas"`
	Saldo          decimal.Decimal `db:"saldo" json:"saldo"`
}
