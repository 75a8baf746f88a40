/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the merchant dashboard

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Member-ID", "X-Partner-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Lifecycle routes
		r.Post("/earn/{partnerID}/{campaignID}", h.Earn)
		r.Post("/earn/{partnerID}/{campaignID}/{to}", h.Earn)
		r.Put("/confirm/{partnerID}/{campaignID}/{supportID}", h.Confirm)
		r.Post("/redeem/{partnerID}/{campaignID}/{supportID}", h.Redeem)

		// Read routes
		r.Get("/transactions/{offset}", h.Transactions)
		r.Get("/badge", h.Badge)
		r.Get("/campaigns/{offset}", h.Campaigns)

		r.Get("/healthz", h.Healthz)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
