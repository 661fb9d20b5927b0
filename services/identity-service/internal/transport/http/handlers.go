package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/httpx"
	"github.com/baechuer/crm-platform/services/identity-service/internal/application/identity"
)

// Handlers exposes the identity API over HTTP.
type Handlers struct {
	svc *identity.Service
}

func NewHandlers(svc *identity.Service) *Handlers {
	return &Handlers{svc: svc}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  identity.UserView `json:"user"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "bad_request", "a valid email and a password are required", nil, httpx.RequestIDFromRequest(r))
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	token, user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		httpx.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil, httpx.RequestIDFromRequest(r))
	case errors.Is(err, identity.ErrAccountDisabled):
		httpx.Fail(w, http.StatusForbidden, "account_disabled", "account is disabled", nil, httpx.RequestIDFromRequest(r))
	case err != nil:
		httpx.Fail(w, http.StatusInternalServerError, "internal", "login failed", nil, httpx.RequestIDFromRequest(r))
	default:
		httpx.Data(w, http.StatusOK, loginResponse{Token: token, User: user})
	}
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil, httpx.RequestIDFromRequest(r))
		return
	}

	user, err := h.svc.Me(r.Context(), p)
	if err != nil {
		httpx.Fail(w, http.StatusInternalServerError, "internal", "profile lookup failed", nil, httpx.RequestIDFromRequest(r))
		return
	}
	httpx.Data(w, http.StatusOK, user)
}

type createTenantRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	ParentID *string `json:"parentId" validate:"omitempty,uuid4"`
}

func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil, httpx.RequestIDFromRequest(r))
		return
	}

	var req createTenantRequest
	if err := httpx.DecodeValid(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		httpx.Fail(w, http.StatusBadRequest, "bad_request", "tenant name is required", nil, httpx.RequestIDFromRequest(r))
		return
	}

	tenant, err := h.svc.CreateTenant(r.Context(), p, strings.TrimSpace(req.Name), req.ParentID)
	switch {
	case errors.Is(err, identity.ErrForbidden):
		httpx.Fail(w, http.StatusForbidden, "forbidden", "not allowed to create tenants here", nil, httpx.RequestIDFromRequest(r))
	case errors.Is(err, identity.ErrTenantNotFound):
		httpx.Fail(w, http.StatusNotFound, "not_found", "parent tenant not found", nil, httpx.RequestIDFromRequest(r))
	case err != nil:
		httpx.Fail(w, http.StatusInternalServerError, "internal", "tenant creation failed", nil, httpx.RequestIDFromRequest(r))
	default:
		httpx.Data(w, http.StatusCreated, tenant)
	}
}

type reparentRequest struct {
	ParentID *string `json:"parentId"`
}

func (h *Handlers) ReparentTenant(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil, httpx.RequestIDFromRequest(r))
		return
	}

	var req reparentRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "bad_request", "invalid request body", nil, httpx.RequestIDFromRequest(r))
		return
	}

	err := h.svc.ReparentTenant(r.Context(), p, chi.URLParam(r, "id"), req.ParentID)
	switch {
	case errors.Is(err, identity.ErrForbidden):
		httpx.Fail(w, http.StatusForbidden, "forbidden", "only system administrators may move tenants", nil, httpx.RequestIDFromRequest(r))
	case errors.Is(err, identity.ErrTenantNotFound):
		httpx.Fail(w, http.StatusNotFound, "not_found", "tenant not found", nil, httpx.RequestIDFromRequest(r))
	case errors.Is(err, identity.ErrHierarchyCycle):
		httpx.Fail(w, http.StatusConflict, "hierarchy_cycle", "reparenting would create a cycle", nil, httpx.RequestIDFromRequest(r))
	case err != nil:
		httpx.Fail(w, http.StatusInternalServerError, "internal", "reparent failed", nil, httpx.RequestIDFromRequest(r))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil, httpx.RequestIDFromRequest(r))
		return
	}

	tenants, err := h.svc.ListTenants(r.Context(), p)
	if err != nil {
		httpx.Fail(w, http.StatusInternalServerError, "internal", "tenant list failed", nil, httpx.RequestIDFromRequest(r))
		return
	}
	httpx.Data(w, http.StatusOK, tenants)
}

func (h *Handlers) Descendants(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil, httpx.RequestIDFromRequest(r))
		return
	}

	ids, err := h.svc.Descendants(r.Context(), p, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, identity.ErrForbidden):
		httpx.Fail(w, http.StatusForbidden, "forbidden", "tenant not visible", nil, httpx.RequestIDFromRequest(r))
	case errors.Is(err, identity.ErrTenantNotFound):
		httpx.Fail(w, http.StatusNotFound, "not_found", "tenant not found", nil, httpx.RequestIDFromRequest(r))
	case err != nil:
		httpx.Fail(w, http.StatusInternalServerError, "internal", "descendant lookup failed", nil, httpx.RequestIDFromRequest(r))
	default:
		if ids == nil {
			ids = []string{}
		}
		httpx.Data(w, http.StatusOK, ids)
	}
}
