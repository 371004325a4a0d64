package seed

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// EnsureAdmin creates the bootstrap admin account when the users table is
// empty. Without it no one could reach the admin-gated register endpoint.
// Skipped when no password is configured.
func EnsureAdmin(db *sqlx.DB, username, email, password string, log zerolog.Logger) {
	if password == "" {
		return
	}
	var count int64
	if err := db.Get(&count, `SELECT COUNT(*) FROM users`); err != nil {
		log.Warn().Err(err).Msg("unable to count users")
		return
	}
	if count > 0 {
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Warn().Err(err).Msg("unable to hash admin password")
		return
	}
	_, err = db.Exec(`INSERT INTO users (username, email, password, role, created_at) VALUES (?, ?, ?, 'admin', ?)`,
		username, email, string(hashed), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		log.Warn().Err(err).Msg("unable to create admin user")
		return
	}
	log.Info().Str("username", username).Msg("created bootstrap admin user")
}
