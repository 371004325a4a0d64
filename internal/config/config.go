package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds application configuration values.
type Config struct {
	Secret      string
	DatabaseDSN string
	HTTPPort    string

	// Webhook verification token for the WhatsApp Business challenge.
	WebhookVerifyToken string

	// BCV exchange-rate lookup.
	BCVURL      string
	BCVTimeout  time.Duration
	BCVFallback decimal.Decimal
	RateMaxAge  time.Duration

	// IANA zone used for daily/weekly/monthly report windows.
	ReportTimezone string

	// Optional CSV catalog loaded at startup when the file exists.
	CatalogCSV string

	// Bootstrap admin account ensured at startup.
	AdminUser     string
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	cfg := Config{
		Secret:             getenv("SECRET", "dev_secret"),
		DatabaseDSN:        getenv("DATABASE_DSN", "file:cocolu.db"),
		HTTPPort:           getenv("HTTP_PORT", "8080"),
		WebhookVerifyToken: getenv("WHATSAPP_VERIFY_TOKEN", "cocolu_verify"),
		BCVURL:             getenv("BCV_RATE_URL", "https://ve.dolarapi.com/v1/dolares/oficial"),
		BCVTimeout:         getdur("BCV_TIMEOUT", 10*time.Second),
		RateMaxAge:         getdur("BCV_RATE_MAX_AGE", time.Hour),
		ReportTimezone:     getenv("REPORT_TIMEZONE", "America/Caracas"),
		CatalogCSV:         getenv("CATALOG_CSV", "assets/productos.csv"),
		AdminUser:          getenv("ADMIN_USER", "admin"),
		AdminEmail:         getenv("ADMIN_EMAIL", "admin@cocolu.local"),
		AdminPassword:      getenv("ADMIN_PASSWORD", ""),
	}

	fallback := getenv("BCV_FALLBACK_RATE", "36.50")
	rate, err := decimal.NewFromString(fallback)
	if err != nil || rate.Sign() <= 0 {
		log.Printf("invalid BCV_FALLBACK_RATE value %q, defaulting to 36.50", fallback)
		rate = decimal.RequireFromString("36.50")
	}
	cfg.BCVFallback = rate

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", cfg.HTTPPort)
		cfg.HTTPPort = "8080"
	}

	return cfg
}

// Location resolves the configured report timezone, falling back to UTC when
// the zone name is unknown on the host.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		log.Printf("unknown REPORT_TIMEZONE %q, using UTC", c.ReportTimezone)
		return time.UTC
	}
	return loc
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("invalid %s value %q, defaulting to %s", key, v, fallback)
		return fallback
	}
	return d
}
