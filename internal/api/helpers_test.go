package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"cocolu/backend/internal/config"
	"cocolu/backend/internal/database"
	"cocolu/backend/internal/migrations"
	"cocolu/backend/internal/rates"
)

func testConfig() config.Config {
	return config.Config{
		Secret:             "test_secret",
		WebhookVerifyToken: "verify123",
		ReportTimezone:     "America/Caracas",
		BCVFallback:        decimal.RequireFromString("36.50"),
	}
}

// newTestHandler builds a handler over a unique in-memory database per test.
func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))

	cfg := testConfig()
	rateSvc := rates.New(db, "http://127.0.0.1:1/rate", 200*time.Millisecond, cfg.BCVFallback, time.Hour, zerolog.Nop())
	return New(db, cfg, rateSvc, nil, zerolog.Nop())
}

// seedUser inserts a user with a bcrypt-hashed password and returns its id.
func seedUser(t *testing.T, h *Handler, username, password, role string) int64 {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	res, err := h.db.Exec(`INSERT INTO users (username, email, password, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		username, username+"@test.local", string(hashed), role, time.Now().UTC().Format(time.RFC3339))
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func seedClient(t *testing.T, h *Handler, cedula, nombre string) int64 {
	t.Helper()
	res, err := h.db.Exec(`INSERT INTO clientes (cedula, nombre, telefono, direccion, created_at) VALUES (?, ?, '', '', ?)`,
		cedula, nombre, time.Now().UTC().Format(time.RFC3339))
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func seedProduct(t *testing.T, h *Handler, codigo, nombre, precio string, stock int64) int64 {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := h.db.Exec(`INSERT INTO productos (codigo, nombre, categoria, precio_usd, stock, stock_minimo, created_at, updated_at) VALUES (?, ?, '', ?, ?, 5, ?, ?)`,
		codigo, nombre, precio, stock, now, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func testToken(t *testing.T, h *Handler, userID int64, role string) string {
	t.Helper()
	token, err := h.generateToken(userID, role)
	require.NoError(t, err)
	return token
}

// doRequest runs one request through the full router.
func doRequest(t *testing.T, h *Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func countRows(t *testing.T, h *Handler, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

func productStock(t *testing.T, h *Handler, id int64) int64 {
	t.Helper()
	var stock int64
	require.NoError(t, h.db.Get(&stock, `SELECT stock FROM productos WHERE id = ?`, id))
	return stock
}
