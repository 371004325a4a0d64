package domain

type Client struct {
	ID        int64  `db:"id" json:"id"`
	Cedula    string `db:"cedula" json:"cedula"`
	Nombre    string `db:"nombre" json:"nombre"`
	Telefono  string `db:"telefono" json:"telefono"`
	Direccion string `db:"direccion" json:"direccion"`
	CreatedAt string `db:"created_at" json:"created_at"`
}
