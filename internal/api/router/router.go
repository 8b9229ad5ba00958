package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/dental-scheduler/internal/http/middleware"
	"github.com/wolfman30/dental-scheduler/internal/health"
	"github.com/wolfman30/dental-scheduler/internal/messaging"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhook        *messaging.WebhookHandler
	Health         *health.Handler
	MetricsHandler http.Handler

	// Per-sender webhook budget. Zero disables limiting.
	WebhookRateLimit float64
	WebhookRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
		r.Get("/health/live", cfg.Health.Live)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Webhook != nil {
		r.Route("/webhooks/twilio", func(wr chi.Router) {
			if cfg.WebhookRateLimit > 0 {
				wr.Use(httpmiddleware.RateLimitBySender(cfg.WebhookRateLimit, cfg.WebhookRateBurst))
			}
			wr.Post("/sms", cfg.Webhook.TwilioSMS)
		})
	}

	return r
}
