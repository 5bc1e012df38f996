package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/poddon/concierge/internal/http/handlers"
	httpmiddleware "github.com/poddon/concierge/internal/http/middleware"
	"github.com/poddon/concierge/internal/webchat"
	"github.com/poddon/concierge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Version            string
	Updates            *handlers.UpdatesHandler
	UpdatesLimiter     *httpmiddleware.RateLimiter
	Webchat            *webchat.Handler
	AdminBookings      *handlers.AdminBookingsHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.Health(cfg.Version))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.Updates != nil {
			limiter := cfg.UpdatesLimiter
			if limiter == nil {
				limiter = httpmiddleware.NewRateLimiter(context.Background(), 20, 40)
			}
			v1.With(httpmiddleware.RateLimit(limiter)).Post("/updates", cfg.Updates.ServeHTTP)
		}
		if cfg.Webchat != nil {
			v1.Route("/webchat", func(wc chi.Router) {
				wc.Get("/ws", cfg.Webchat.HandleWebSocket)
				wc.Post("/message", cfg.Webchat.HandleMessage)
				wc.Get("/history", cfg.Webchat.HandleHistory)
			})
		}
	})

	// Operator API, disabled without a signing secret.
	if cfg.AdminAuthSecret != "" && cfg.AdminBookings != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/bookings", cfg.AdminBookings.List)
			admin.Post("/bookings/{id}/status", cfg.AdminBookings.UpdateStatus)
		})
	}

	return r
}
