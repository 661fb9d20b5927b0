package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/httpx"
	"github.com/baechuer/crm-platform/services/crm-service/internal/application/customer"
	"github.com/baechuer/crm-platform/services/crm-service/internal/domain"
)

// Handlers exposes the customer API over HTTP.
type Handlers struct {
	svc *customer.Service
}

func NewHandlers(svc *customer.Service) *Handlers {
	return &Handlers{svc: svc}
}

// customerView is the wire shape of a customer record.
type customerView struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenantId"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Street     string     `json:"street"`
	City       string     `json:"city"`
	State      string     `json:"state"`
	PostalCode string     `json:"postalCode"`
	Country    string     `json:"country"`
	Address    string     `json:"address"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	GeocodedAt *time.Time `json:"geocodedAt"`
	VisibleTo  []string   `json:"visibleTo"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func toView(c *domain.Customer) customerView {
	return customerView{
		ID:         c.ID,
		TenantID:   c.TenantID,
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		Street:     c.Street,
		City:       c.City,
		State:      c.State,
		PostalCode: c.PostalCode,
		Country:    c.Country,
		Address:    c.FullAddress(),
		Latitude:   c.Latitude,
		Longitude:  c.Longitude,
		GeocodedAt: c.GeocodedAt,
		VisibleTo:  c.VisibleTo,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil, httpx.RequestIDFromRequest(r))
	}
	return p, ok
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var in customer.Input
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "bad_request", "invalid request body", nil, httpx.RequestIDFromRequest(r))
		return
	}

	c, err := h.svc.Create(r.Context(), p, in)
	switch {
	case errors.Is(err, customer.ErrNoTenant):
		httpx.Fail(w, http.StatusForbidden, "no_tenant", "account is not attached to a tenant", nil, httpx.RequestIDFromRequest(r))
	case errors.Is(err, customer.ErrValidation):
		httpx.Fail(w, http.StatusBadRequest, "validation", "customer name is required", nil, httpx.RequestIDFromRequest(r))
	case err != nil:
		httpx.Fail(w, http.StatusInternalServerError, "internal", "customer creation failed", nil, httpx.RequestIDFromRequest(r))
	default:
		httpx.Data(w, http.StatusCreated, toView(c))
	}
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var in customer.Input
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "bad_request", "invalid request body", nil, httpx.RequestIDFromRequest(r))
		return
	}

	c, err := h.svc.Update(r.Context(), p, chi.URLParam(r, "id"), in)
	switch {
	case errors.Is(err, customer.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "not_found", "customer not found", nil, httpx.RequestIDFromRequest(r))
	case errors.Is(err, customer.ErrValidation):
		httpx.Fail(w, http.StatusBadRequest, "validation", "customer name is required", nil, httpx.RequestIDFromRequest(r))
	case errors.Is(err, customer.ErrNoTenant):
		httpx.Fail(w, http.StatusForbidden, "no_tenant", "account is not attached to a tenant", nil, httpx.RequestIDFromRequest(r))
	case err != nil:
		httpx.Fail(w, http.StatusInternalServerError, "internal", "customer update failed", nil, httpx.RequestIDFromRequest(r))
	default:
		httpx.Data(w, http.StatusOK, toView(c))
	}
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	c, err := h.svc.Get(r.Context(), p, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, customer.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "not_found", "customer not found", nil, httpx.RequestIDFromRequest(r))
	case err != nil:
		httpx.Fail(w, http.StatusInternalServerError, "internal", "customer lookup failed", nil, httpx.RequestIDFromRequest(r))
	default:
		httpx.Data(w, http.StatusOK, toView(c))
	}
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	customers, err := h.svc.List(r.Context(), p)
	if err != nil {
		httpx.Fail(w, http.StatusInternalServerError, "internal", "customer list failed", nil, httpx.RequestIDFromRequest(r))
		return
	}

	views := make([]customerView, 0, len(customers))
	for i := range customers {
		views = append(views, toView(&customers[i]))
	}
	httpx.Data(w, http.StatusOK, views)
}

type coordinatesRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// PatchCoordinates is the internal enrichment write. It sits on the trusted
// network surface and carries no bearer token.
func (h *Handlers) PatchCoordinates(w http.ResponseWriter, r *http.Request) {
	var req coordinatesRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "bad_request", "latitude and longitude are required and must be in range", nil, httpx.RequestIDFromRequest(r))
		return
	}

	id := chi.URLParam(r, "id")
	err := h.svc.SetCoordinates(r.Context(), id, *req.Latitude, *req.Longitude)
	switch {
	case errors.Is(err, customer.ErrInvalidCoordinates):
		httpx.Fail(w, http.StatusBadRequest, "bad_request", "coordinates out of range", nil, httpx.RequestIDFromRequest(r))
	case errors.Is(err, customer.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "not_found", "customer not found", nil, httpx.RequestIDFromRequest(r))
	case err != nil:
		httpx.Fail(w, http.StatusInternalServerError, "internal", "coordinate update failed", nil, httpx.RequestIDFromRequest(r))
	default:
		httpx.Data(w, http.StatusOK, map[string]any{
			"id":        id,
			"latitude":  *req.Latitude,
			"longitude": *req.Longitude,
		})
	}
}
