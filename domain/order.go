package domain

import "github.com/shopspring/decimal"

// Order is the header row of one customer transaction. Totals are computed
// server-side from the line items, never taken from the caller.
type Order struct {
	ID             int64           `db:"id" json:"id"`
	Referencia     string          `db:"referencia" json:"referencia"`
	ClienteID      int64           `db:"cliente_id" json:"client_id"`
	SellerID       *int64          `db:"seller_id" json:"seller_id,omitempty"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	Descuento      decimal.Decimal `db:"descuento" json:"descuento"`
	Delivery       decimal.Decimal `db:"delivery" json:"delivery"`
	Total          decimal.Decimal `db:"total" json:"total"`
	MetodoPago     string          `db:"metodo_pago" json:"metodo_pago"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      string          `db:"created_at" json:"created_at"`
}

type OrderItem struct {
	ID         int64           `db:"id" json:"id"`
	PedidoID   int64           `db:"pedido_id" json:"pedido_id"`
	ProductoID int64           `db:"producto_id" json:"producto_id"`
	Cantidad   int64           `db:"cantidad" json:"cantidad"`
	PrecioUSD  decimal.Decimal `db:"precio_usd" json:"precio_usd"`
	Subtotal   decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// Payment methods accepted by order creation.
const (
	PagoEfectivo      = "efectivo"
	PagoPagoMovil     = "pago_movil"
	PagoTransferencia = "transferencia"
	PagoZelle         = "zelle"
	PagoCredito       = "credito"
)
