// Package http wires the identity API: login, profile, tenant management.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/httpx"
)

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	Handlers *Handlers
	Verifier *auth.Verifier

	// Redis backs the login rate limiter; nil disables limiting.
	Redis      *redis.Client
	LoginLimit int
}

// NewRouter builds the chi router. Login is rate limited per client; every
// other identity route requires a bearer token.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpx.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	limit := deps.LoginLimit
	if limit <= 0 {
		limit = 10
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(httpx.RateLimit(deps.Redis, limit, time.Minute)).Post("/login", deps.Handlers.Login)
		r.With(auth.Require(deps.Verifier)).Get("/me", deps.Handlers.Me)
	})

	r.Route("/tenants", func(r chi.Router) {
		r.Use(auth.Require(deps.Verifier))
		r.Get("/", deps.Handlers.ListTenants)
		r.Post("/", deps.Handlers.CreateTenant)
		r.Get("/{id}/descendants", deps.Handlers.Descendants)
		r.Patch("/{id}/parent", deps.Handlers.ReparentTenant)
	})

	return r
}
