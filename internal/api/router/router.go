package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicvoice/frontdesk/internal/http/handlers"
	httpmiddleware "github.com/clinicvoice/frontdesk/internal/http/middleware"
	"github.com/clinicvoice/frontdesk/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	VoiceTool          *handlers.VoiceToolHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// WebhookRatePerSecond limits inbound webhook traffic per IP.
	// Zero disables rate limiting.
	WebhookRatePerSecond float64
	WebhookBurst         int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Check)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.VoiceTool != nil {
		r.Route("/webhooks/voice", func(webhook chi.Router) {
			if cfg.WebhookRatePerSecond > 0 {
				burst := cfg.WebhookBurst
				if burst <= 0 {
					burst = 10
				}
				webhook.Use(httpmiddleware.RateLimit(cfg.WebhookRatePerSecond, burst))
			}
			webhook.Post("/tool-call", cfg.VoiceTool.HandleToolCall)
		})
	}

	return r
}
