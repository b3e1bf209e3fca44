/**
 * @description
 * This file sets up the HTTP router for the ledger API using the go-chi/chi
 * router. It defines the API routes, applies middleware for logging, recovery,
 * CORS, metrics, and rate limiting, and maps the routes to their corresponding
 * handler functions.
 */

package api

import (
	"net/http"
	"time"

	"github.com/drdaeman/payments-api-demo/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the web-layer settings the router needs.
type RouterConfig struct {
	AllowedOrigins     []string
	RateLimiter        *app.RedisRateLimiter
	RateLimitPerMinute int
}

// LedgerRoutes creates a new Chi router and registers the ledger API routes.
func LedgerRoutes(h *LedgerHandlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))
	r.Use(MetricsMiddleware)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/owners", func(r chi.Router) {
		r.Post("/", h.CreateOwnerHandler)
		r.Get("/", h.ListOwnersHandler)
		r.Get("/{name}", h.GetOwnerHandler)
		r.Patch("/{name}", h.RenameOwnerHandler)
		r.Delete("/{name}", h.DeleteOwnerHandler)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccountHandler)
		r.Get("/", h.ListAccountsHandler)
		r.Get("/{name}", h.GetAccountHandler)
		r.Delete("/{name}", h.DeleteAccountHandler)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.ListPaymentsHandler)
		r.Get("/{id}", h.GetPaymentHandler)

		// Money movement endpoints share the write rate limit.
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(cfg.RateLimiter, cfg.RateLimitPerMinute))
			r.Post("/", h.CreatePaymentHandler)
			r.Patch("/{id}", h.ConfirmPaymentHandler)
		})
	})

	return r
}
