package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cocolu/backend/internal/database"
	"cocolu/backend/internal/migrations"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}

func TestCurrentFetchesUpstream(t *testing.T) {
	db := testDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"promedio": 38.72}`))
	}))
	t.Cleanup(srv.Close)

	svc := New(db, srv.URL, time.Second, decimal.RequireFromString("36.50"), time.Hour, zerolog.Nop())
	rate := svc.Current(context.Background())

	assert.Equal(t, SourceUpstream, rate.Fuente)
	assert.True(t, rate.Valor.Equal(decimal.RequireFromString("38.72")), "valor = %s", rate.Valor)

	// Persisted for future cold starts.
	var count int64
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM settings WHERE key = 'bcv_rate'`))
	assert.Equal(t, int64(1), count)
}

func TestCurrentCachesWithinMaxAge(t *testing.T) {
	db := testDB(t)
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"promedio": 38.72}`))
	}))
	t.Cleanup(srv.Close)

	svc := New(db, srv.URL, time.Second, decimal.RequireFromString("36.50"), time.Hour, zerolog.Nop())
	svc.Current(context.Background())
	svc.Current(context.Background())
	svc.Current(context.Background())
	assert.Equal(t, 1, calls)
}

func TestCurrentFallsBackWhenUnreachable(t *testing.T) {
	db := testDB(t)
	svc := New(db, "http://127.0.0.1:1/rate", 100*time.Millisecond, decimal.RequireFromString("36.50"), time.Hour, zerolog.Nop())

	rate := svc.Current(context.Background())
	assert.Equal(t, SourceFallback, rate.Fuente)
	assert.True(t, rate.Valor.Equal(decimal.RequireFromString("36.50")))
}

func TestCurrentPrefersPersistedOverFallback(t *testing.T) {
	db := testDB(t)

	// A previous process stored a manual rate.
	previous := New(db, "http://127.0.0.1:1/rate", 100*time.Millisecond, decimal.RequireFromString("36.50"), time.Hour, zerolog.Nop())
	_, err := previous.Set(decimal.RequireFromString("40.10"))
	require.NoError(t, err)

	fresh := New(db, "http://127.0.0.1:1/rate", 100*time.Millisecond, decimal.RequireFromString("36.50"), time.Hour, zerolog.Nop())
	rate := fresh.Current(context.Background())
	assert.Equal(t, SourcePersisted, rate.Fuente)
	assert.True(t, rate.Valor.Equal(decimal.RequireFromString("40.10")), "valor = %s", rate.Valor)
}

func TestCurrentServesStaleDuringRefresh(t *testing.T) {
	db := testDB(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_, _ = w.Write([]byte(`{"promedio": 38.72}`))
	}))
	t.Cleanup(srv.Close)

	// maxAge 0 keeps the cache permanently stale, forcing a refresh attempt.
	svc := New(db, srv.URL, time.Second, decimal.RequireFromString("36.50"), 0, zerolog.Nop())
	_, err := svc.Set(decimal.RequireFromString("40.10"))
	require.NoError(t, err)

	done := make(chan Rate, 1)
	go func() { done <- svc.Current(context.Background()) }()
	<-entered

	// While the refresh is in flight other callers must not queue behind
	// the upstream request; they get the stale rate right away.
	stale := svc.Current(context.Background())
	assert.Equal(t, SourceManual, stale.Fuente)
	assert.True(t, stale.Valor.Equal(decimal.RequireFromString("40.10")), "valor = %s", stale.Valor)

	close(release)
	fresh := <-done
	assert.Equal(t, SourceUpstream, fresh.Fuente)
	assert.True(t, fresh.Valor.Equal(decimal.RequireFromString("38.72")), "valor = %s", fresh.Valor)
}

func TestSetOverridesCache(t *testing.T) {
	db := testDB(t)
	svc := New(db, "http://127.0.0.1:1/rate", 100*time.Millisecond, decimal.RequireFromString("36.50"), time.Hour, zerolog.Nop())

	rate, err := svc.Set(decimal.RequireFromString("39.95"))
	require.NoError(t, err)
	assert.Equal(t, SourceManual, rate.Fuente)

	got := svc.Current(context.Background())
	assert.Equal(t, SourceManual, got.Fuente)
	assert.True(t, got.Valor.Equal(decimal.RequireFromString("39.95")))
}

func TestSetRejectsNonPositive(t *testing.T) {
	db := testDB(t)
	svc := New(db, "http://127.0.0.1:1/rate", 100*time.Millisecond, decimal.RequireFromString("36.50"), time.Hour, zerolog.Nop())

	_, err := svc.Set(decimal.Zero)
	assert.Error(t, err)
}
