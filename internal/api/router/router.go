package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/missedcall-flow/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/missedcall-flow/internal/http/middleware"
	"github.com/wolfman30/missedcall-flow/internal/requests"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Conversation    *handlers.ConversationHandler
	RequestsHandler *requests.Handler
	AdminAuthSecret string
	MetricsHandler  http.Handler

	// AdminCORSOrigins lists browser origins allowed to call /admin.
	AdminCORSOrigins []string

	// MissedCallRate limits POST /missed-call per client, in requests per
	// second. Zero disables the limit.
	MissedCallRate  float64
	MissedCallBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Conversation != nil {
			missedCall := public.With()
			if cfg.MissedCallRate > 0 {
				burst := cfg.MissedCallBurst
				if burst <= 0 {
					burst = 1
				}
				missedCall = public.With(httpmiddleware.RateLimit(cfg.MissedCallRate, burst, httpmiddleware.ByRemoteIP))
			}
			missedCall.Post("/missed-call", cfg.Conversation.MissedCall)
			public.Post("/webhooks/infobip/whatsapp", cfg.Conversation.InfobipInbound)
		}
	})

	if cfg.RequestsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			if len(cfg.AdminCORSOrigins) > 0 {
				admin.Use(httpmiddleware.CORS(cfg.AdminCORSOrigins))
			}
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.With(httpmiddleware.RequireBusinessScope("businessRef")).
				Get("/businesses/{businessRef}/requests", cfg.RequestsHandler.ListRecords)
			admin.With(httpmiddleware.RequireBusinessScope("")).
				Get("/requests/{id}", cfg.RequestsHandler.GetRecord)
		})
	}

	return r
}
