package domain

// StockAdjustment is the audit row behind every manual stock mutation.
type StockAdjustment struct {
	ID         int64  `db:"id" json:"id"`
	ProductoID int64  `db:"producto_id" json:"producto_id"`
	Delta      int64  `db:"delta" json:"delta"`
	Motivo     string `db:"motivo" json:"motivo"`
	UserID     *int64 `db:"user_id" json:"user_id,omitempty"`
	CreatedAt  string `db:"created_at" json:"created_at"`
}
