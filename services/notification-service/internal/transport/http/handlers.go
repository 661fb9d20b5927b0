// Package http exposes the read side of the notification feed.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/httpx"
	"github.com/baechuer/crm-platform/services/notification-service/internal/domain"
	"github.com/baechuer/crm-platform/services/notification-service/internal/store/postgres"
)

// Store is the feed surface the handlers depend on.
type Store interface {
	ListVisible(ctx context.Context, scope auth.Scope, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string, scope auth.Scope) error
	UnreadCount(ctx context.Context, userID string, scope auth.Scope) (int, error)
}

type Handlers struct {
	store Store
}

func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

type notificationView struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil, httpx.RequestIDFromRequest(r))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.store.ListVisible(r.Context(), p.Scope(), limit)
	if err != nil {
		httpx.Fail(w, http.StatusInternalServerError, "internal", "notification list failed", nil, httpx.RequestIDFromRequest(r))
		return
	}

	views := make([]notificationView, 0, len(items))
	for _, n := range items {
		views = append(views, notificationView{
			ID:         n.ID,
			CustomerID: n.CustomerID,
			Title:      n.Title,
			Body:       n.Body,
			Read:       n.IsReadBy(p.UserID),
			CreatedAt:  n.CreatedAt,
		})
	}
	httpx.Data(w, http.StatusOK, views)
}

func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil, httpx.RequestIDFromRequest(r))
		return
	}

	err := h.store.MarkRead(r.Context(), chi.URLParam(r, "id"), p.UserID, p.Scope())
	switch {
	case errors.Is(err, postgres.ErrNotificationNotFound):
		httpx.Fail(w, http.StatusNotFound, "not_found", "notification not found", nil, httpx.RequestIDFromRequest(r))
	case err != nil:
		httpx.Fail(w, http.StatusInternalServerError, "internal", "mark read failed", nil, httpx.RequestIDFromRequest(r))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil, httpx.RequestIDFromRequest(r))
		return
	}

	count, err := h.store.UnreadCount(r.Context(), p.UserID, p.Scope())
	if err != nil {
		httpx.Fail(w, http.StatusInternalServerError, "internal", "unread count failed", nil, httpx.RequestIDFromRequest(r))
		return
	}
	httpx.Data(w, http.StatusOK, map[string]int{"unread": count})
}

func NewRouter(h *Handlers, verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpx.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Use(auth.Require(verifier))
		r.Get("/", h.List)
		r.Get("/unread-count", h.UnreadCount)
		r.Post("/{id}/read", h.MarkRead)
	})

	return r
}
