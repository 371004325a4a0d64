package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"cocolu/backend/internal/api"
	"cocolu/backend/internal/config"
	"cocolu/backend/internal/database"
	"cocolu/backend/internal/migrations"
	"cocolu/backend/internal/rates"
	"cocolu/backend/internal/seed"
)

// logSink receives webhook messages until a conversational engine is plugged
// in behind the MessageSink boundary.
type logSink struct {
	log zerolog.Logger
}

func (s logSink) HandleMessage(msg api.InboundMessage) {
	s.log.Info().Str("from", msg.From).Str("type", msg.Type).Str("id", msg.ID).Msg("inbound whatsapp message")
}

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load()
	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to open database")
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		log.Fatal().Err(err).Msg("unable to run migrations")
	}
	seed.EnsureAdmin(db, cfg.AdminUser, cfg.AdminEmail, cfg.AdminPassword, log)
	seed.LoadCatalog(db, cfg.CatalogCSV, log)

	rateSvc := rates.New(db, cfg.BCVURL, cfg.BCVTimeout, cfg.BCVFallback, cfg.RateMaxAge, log)
	handler := api.New(db, cfg, rateSvc, logSink{log: log}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("Cocolu backend starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
