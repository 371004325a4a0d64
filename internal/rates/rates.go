package rates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Where the current rate came from.
const (
	SourceUpstream  = "bcv"
	SourceManual    = "manual"
	SourcePersisted = "persistido"
	SourceFallback  = "fallback"
)

const settingKey = "bcv_rate"

// Rate is the cached USD→VES exchange rate.
type Rate struct {
	Valor         decimal.Decimal `json:"valor"`
	Fuente        string          `json:"fuente"`
	ActualizadoEn time.Time       `json:"actualizado_en"`
}

// Service resolves the BCV exchange rate: in-memory cache first, then the
// upstream API under an explicit timeout, then the last rate persisted in
// settings, then the configured constant. All state lives on the injected
// service, not in package globals.
type Service struct {
	db       *sqlx.DB
	client   *http.Client
	url      string
	fallback decimal.Decimal
	maxAge   time.Duration
	log      zerolog.Logger

	mu         sync.Mutex
	cached     *Rate
	refreshing bool
}

func New(db *sqlx.DB, url string, timeout time.Duration, fallback decimal.Decimal, maxAge time.Duration, log zerolog.Logger) *Service {
	return &Service{
		db:       db,
		client:   &http.Client{Timeout: timeout},
		url:      url,
		fallback: fallback,
		maxAge:   maxAge,
		log:      log.With().Str("component", "rates").Logger(),
	}
}

// Current returns the exchange rate, refreshing from upstream when the cache
// is older than maxAge. It never fails: degraded sources are reported in Fuente.
// Only one caller owns a refresh at a time; the rest serve the stale cache
// instead of queuing behind the upstream timeout.
func (s *Service) Current(ctx context.Context) Rate {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.cached.ActualizadoEn) < s.maxAge {
		rate := *s.cached
		s.mu.Unlock()
		return rate
	}
	if s.refreshing {
		cached := s.cached
		s.mu.Unlock()
		if cached != nil {
			return *cached
		}
		return s.stored()
	}
	s.refreshing = true
	s.mu.Unlock()

	valor, err := s.fetch(ctx)

	s.mu.Lock()
	s.refreshing = false
	if err == nil {
		rate := Rate{Valor: valor, Fuente: SourceUpstream, ActualizadoEn: time.Now().UTC()}
		s.cached = &rate
		s.mu.Unlock()
		if perr := s.persist(rate); perr != nil {
			s.log.Warn().Err(perr).Msg("unable to persist fetched rate")
		}
		return rate
	}
	// Keep serving a stale cache over re-reading disk.
	if s.cached != nil {
		rate := *s.cached
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("url", s.url).Msg("upstream rate lookup failed")
		return rate
	}
	s.mu.Unlock()
	s.log.Warn().Err(err).Str("url", s.url).Msg("upstream rate lookup failed")
	return s.stored()
}

// stored serves the last persisted rate, falling back to the configured constant.
func (s *Service) stored() Rate {
	if rate, err := s.load(); err == nil {
		s.mu.Lock()
		if s.cached == nil {
			s.cached = &rate
		}
		s.mu.Unlock()
		return rate
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.log.Warn().Err(err).Msg("unable to load persisted rate")
	}
	return Rate{Valor: s.fallback, Fuente: SourceFallback, ActualizadoEn: time.Now().UTC()}
}

// Set records a manual override.
func (s *Service) Set(valor decimal.Decimal) (Rate, error) {
	if valor.Sign() <= 0 {
		return Rate{}, fmt.Errorf("rate must be positive")
	}
	rate := Rate{Valor: valor, Fuente: SourceManual, ActualizadoEn: time.Now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(rate); err != nil {
		return Rate{}, err
	}
	s.cached = &rate
	return rate, nil
}

type upstreamPayload struct {
	Promedio float64 `json:"promedio"`
	Precio   float64 `json:"precio"`
}

func (s *Service) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	var payload upstreamPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, err
	}
	value := payload.Promedio
	if value == 0 {
		value = payload.Precio
	}
	if value <= 0 {
		return decimal.Zero, fmt.Errorf("upstream returned no usable rate")
	}
	return decimal.NewFromFloat(value).Round(4), nil
}

type persistedRate struct {
	Valor  string `json:"valor"`
	Fuente string `json:"fuente"`
}

func (s *Service) persist(rate Rate) error {
	raw, err := json.Marshal(persistedRate{Valor: rate.Valor.String(), Fuente: rate.Fuente})
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		settingKey, string(raw), rate.ActualizadoEn.Format(time.RFC3339))
	return err
}

func (s *Service) load() (Rate, error) {
	var row struct {
		Value     string `db:"value"`
		UpdatedAt string `db:"updated_at"`
	}
	if err := s.db.Get(&row, `SELECT value, updated_at FROM settings WHERE key = ?`, settingKey); err != nil {
		return Rate{}, err
	}
	var stored persistedRate
	if err := json.Unmarshal([]byte(row.Value), &stored); err != nil {
		return Rate{}, err
	}
	valor, err := decimal.NewFromString(stored.Valor)
	if err != nil {
		return Rate{}, err
	}
	at, _ := time.Parse(time.RFC3339, row.UpdatedAt)
	return Rate{Valor: valor, Fuente: SourcePersisted, ActualizadoEn: at}, nil
}
