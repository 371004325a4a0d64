package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"cocolu/backend/internal/config"
	"cocolu/backend/internal/rates"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// MessageSink receives inbound WhatsApp messages accepted by the webhook.
// The conversational engine sits behind this boundary.
type MessageSink interface {
	HandleMessage(msg InboundMessage)
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db       *sqlx.DB
	secret   string
	verify   string
	loc      *time.Location
	rates    *rates.Service
	sink     MessageSink
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// New constructs a Handler.
func New(db *sqlx.DB, cfg config.Config, rateSvc *rates.Service, sink MessageSink, log zerolog.Logger) *Handler {
	return &Handler{
		db:       db,
		secret:   cfg.Secret,
		verify:   cfg.WebhookVerifyToken,
		loc:      cfg.Location(),
		rates:    rateSvc,
		sink:     sink,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/webhooks/whatsapp", func(r chi.Router) {
		r.Get("/", h.verifyWebhook)
		r.Post("/", h.receiveWebhook)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.login)
		r.Post("/login", h.login) // legacy alias

		r.Group(func(pr chi.Router) {
			pr.Use(h.authMiddleware)

			pr.Post("/auth/register", h.register)

			pr.Route("/clients", func(r chi.Router) {
				r.Get("/", h.listClients)
				r.Post("/", h.createClient)
				r.Get("/{id}", h.getClient)
			})

			productRoutes := func(r chi.Router) {
				r.Get("/", h.listProducts)
				r.Post("/", h.createProduct)
				r.Post("/{id}/adjustment", h.adjustStock)
			}
			pr.Route("/products", productRoutes)
			pr.Route("/inventory", productRoutes) // legacy alias

			orderRoutes := func(r chi.Router) {
				r.Get("/", h.listOrders)
				r.Post("/", h.createOrder)
			}
			pr.Route("/orders", orderRoutes)
			pr.Route("/sales", func(r chi.Router) {
				orderRoutes(r)
				r.Get("/by-period", h.salesByPeriod)
			})

			pr.Get("/sellers", h.listSellers)
			pr.Post("/sellers", h.createSeller)

			pr.Get("/installments", h.listInstallments)
			pr.Post("/installments/{id}/pay", h.payInstallment)
			pr.Get("/accounts-receivable", h.accountsReceivable)

			pr.Get("/bcv/rate", h.getRate)
			pr.Post("/bcv/rate", h.setRate)

			pr.Get("/dashboard", h.dashboard)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// decodeValid decodes the body and runs struct validation, failing closed on
// unknown fields and missing required ones.
func (h *Handler) decodeValid(r *http.Request, dest interface{}) error {
	if err := decodeJSON(r, dest); err != nil {
		return errValidation("cuerpo de la solicitud inválido")
	}
	if err := h.validate.Struct(dest); err != nil {
		return errValidation("faltan campos requeridos o tienen valores inválidos")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}
