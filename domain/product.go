package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          int64           `db:"id" json:"id"`
	Codigo      string          `db:"codigo" json:"codigo"`
	Nombre      string          `db:"nombre" json:"nombre"`
	Categoria   string          `db:"categoria" json:"categoria"`
	PrecioUSD   decimal.Decimal `db:"precio_usd" json:"precio_usd"`
	Stock       int64           `db:"stock" json:"stock"`
	StockMinimo int64           `db:"stock_minimo" json:"stock_minimo"`
	CreatedAt   string          `db:"created_at" json:"created_at"`
	UpdatedAt   string          `db:"updated_at" json:"updated_at"`
}
