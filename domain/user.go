package domain

type User struct {
	ID        int64  `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"password,omitempty" db:"password"`
	Role      string `json:"role" db:"role"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}

type Seller struct {
	ID        int64  `db:"id" json:"id"`
	Nombre    string `db:"nombre" json:"nombre"`
	Telefono  string `db:"telefono" json:"telefono"`
	Activo    bool   `db:"activo" json:"activo"`
	CreatedAt string `db:"created_at" json:"created_at"`
}
