// Package http wires the customer API: a scoped public surface and an
// unauthenticated internal surface for platform-side enrichment writes.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/httpx"
)

func NewRouter(h *Handlers, verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpx.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/customers", func(r chi.Router) {
		r.Use(auth.Require(verifier))
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
	})

	// Internal surface: reachable only inside the cluster network.
	r.Patch("/internal/customers/{id}/coordinates", h.PatchCoordinates)

	return r
}
