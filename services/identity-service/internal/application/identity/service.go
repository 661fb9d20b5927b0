// Package identity implements login, token issuance, and tenant tree
// management. Visibility scopes are computed here, at login time, and frozen
// into the token.
package identity

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/services/identity-service/internal/domain"
	"github.com/baechuer/crm-platform/services/identity-service/internal/store/postgres"
)

const TopicTenantCreated = "identity.tenant.created"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// the login surface does not leak which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrForbidden          = errors.New("forbidden")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrHierarchyCycle     = errors.New("reparenting would create a cycle")
)

// TenantStore is the persistence surface the service needs for tenants.
type TenantStore interface {
	ChildrenLister
	Create(ctx context.Context, t *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	DescendantIDs(ctx context.Context, id string) ([]string, error)
	SetParent(ctx context.Context, id string, parentID *string) error
	List(ctx context.Context) ([]domain.Tenant, error)
}

// UserStore is the persistence surface for accounts.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// PasswordComparer checks a password against a stored hash.
type PasswordComparer interface {
	Compare(hash, password string) bool
}

// Service wires stores, hashing, token issuance and event publishing.
type Service struct {
	tenants TenantStore
	users   UserStore
	hasher  PasswordComparer
	issuer  *auth.Issuer
	pub     kafka.Publisher
	log     zerolog.Logger
}

func NewService(tenants TenantStore, users UserStore, hasher PasswordComparer, issuer *auth.Issuer, pub kafka.Publisher, log zerolog.Logger) *Service {
	return &Service{tenants: tenants, users: users, hasher: hasher, issuer: issuer, pub: pub, log: log}
}

// UserView is the account shape returned to clients. It never carries the
// password hash.
type UserView struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	Role       string  `json:"role"`
	TenantID   *string `json:"tenantId"`
	TenantName *string `json:"tenantName"`
}

// Login authenticates the account and issues a token whose visible tenant set
// is computed from the hierarchy at this moment. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, UserView, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, postgres.ErrUserNotFound) {
		return "", UserView{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", UserView{}, err
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return "", UserView{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", UserView{}, ErrAccountDisabled
	}

	visible, err := s.visibleTenantIDs(ctx, user)
	if err != nil {
		return "", UserView{}, err
	}

	principal := auth.Principal{
		UserID:           user.ID,
		Email:            user.Email,
		Role:             user.Role,
		VisibleTenantIDs: visible,
	}
	if user.TenantID != nil {
		principal.TenantID = *user.TenantID
	}

	token, err := s.issuer.Issue(principal)
	if err != nil {
		return "", UserView{}, err
	}

	view, err := s.userView(ctx, user)
	if err != nil {
		return "", UserView{}, err
	}

	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("login succeeded")
	return token, view, nil
}

// Me resolves the current account from its principal.
func (s *Service) Me(ctx context.Context, p auth.Principal) (UserView, error) {
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return UserView{}, err
	}
	return s.userView(ctx, user)
}

// visibleTenantIDs derives the visibility scope for a role:
// SYSTEM_ADMIN sees everything (empty list), TENANT_ADMIN its own subtree,
// USER only its own tenant.
func (s *Service) visibleTenantIDs(ctx context.Context, user *domain.User) ([]string, error) {
	switch user.Role {
	case auth.RoleSystemAdmin:
		return nil, nil
	case auth.RoleTenantAdmin:
		if user.TenantID == nil {
			return nil, ErrForbidden
		}
		return subtreeIDs(ctx, s.tenants, *user.TenantID)
	default:
		if user.TenantID == nil {
			return nil, ErrForbidden
		}
		return []string{*user.TenantID}, nil
	}
}

func (s *Service) userView(ctx context.Context, user *domain.User) (UserView, error) {
	view := UserView{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		TenantID:  user.TenantID,
	}
	if user.TenantID != nil {
		tenant, err := s.tenants.GetByID(ctx, *user.TenantID)
		if err != nil {
			return UserView{}, err
		}
		view.TenantName = &tenant.Name
	}
	return view, nil
}

// TenantView is the tenant shape returned to clients.
type TenantView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

// CreateTenant adds a node to the tree and announces it on the broker.
// SYSTEM_ADMIN may create anywhere; TENANT_ADMIN only under a tenant it can
// already see.
func (s *Service) CreateTenant(ctx context.Context, p auth.Principal, name string, parentID *string) (TenantView, error) {
	switch p.Role {
	case auth.RoleSystemAdmin:
	case auth.RoleTenantAdmin:
		if parentID == nil || !p.CanSee([]string{*parentID}) {
			return TenantView{}, ErrForbidden
		}
	default:
		return TenantView{}, ErrForbidden
	}

	if parentID != nil {
		if _, err := s.tenants.GetByID(ctx, *parentID); err != nil {
			if errors.Is(err, postgres.ErrTenantNotFound) {
				return TenantView{}, ErrTenantNotFound
			}
			return TenantView{}, err
		}
	}

	tenant := &domain.Tenant{Name: name, ParentID: parentID}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return TenantView{}, err
	}

	payload := map[string]any{
		kafka.EventTypeField: TopicTenantCreated,
		"tenant_id":          tenant.ID,
		"name":               tenant.Name,
		"parent_id":          tenant.ParentID,
	}
	if err := s.pub.Publish(TopicTenantCreated, tenant.ID, payload); err != nil {
		// The tenant exists; the announcement is best effort.
		s.log.Error().Err(err).Str("tenant_id", tenant.ID).Msg("tenant created event publish failed")
	}

	return TenantView{ID: tenant.ID, Name: tenant.Name, ParentID: tenant.ParentID}, nil
}

// ReparentTenant moves a subtree. The new parent must not be the tenant
// itself or any of its descendants.
func (s *Service) ReparentTenant(ctx context.Context, p auth.Principal, id string, newParentID *string) error {
	if p.Role != auth.RoleSystemAdmin {
		return ErrForbidden
	}

	if _, err := s.tenants.GetByID(ctx, id); err != nil {
		if errors.Is(err, postgres.ErrTenantNotFound) {
			return ErrTenantNotFound
		}
		return err
	}

	if newParentID != nil {
		if *newParentID == id {
			return ErrHierarchyCycle
		}
		if _, err := s.tenants.GetByID(ctx, *newParentID); err != nil {
			if errors.Is(err, postgres.ErrTenantNotFound) {
				return ErrTenantNotFound
			}
			return err
		}
		subtree, err := subtreeIDs(ctx, s.tenants, id)
		if err != nil {
			return err
		}
		for _, node := range subtree {
			if node == *newParentID {
				return ErrHierarchyCycle
			}
		}
	}

	return s.tenants.SetParent(ctx, id, newParentID)
}

// Descendants lists the subtree below a tenant, excluding the tenant itself.
func (s *Service) Descendants(ctx context.Context, p auth.Principal, id string) ([]string, error) {
	if !p.Scope().Universal && !p.CanSee([]string{id}) {
		return nil, ErrForbidden
	}
	if _, err := s.tenants.GetByID(ctx, id); err != nil {
		if errors.Is(err, postgres.ErrTenantNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return s.tenants.DescendantIDs(ctx, id)
}

// ListTenants returns every node the principal can see.
func (s *Service) ListTenants(ctx context.Context, p auth.Principal) ([]TenantView, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	scope := p.Scope()
	out := make([]TenantView, 0, len(tenants))
	for _, t := range tenants {
		if !scope.Universal && !p.CanSee([]string{t.ID}) {
			continue
		}
		out = append(out, TenantView{ID: t.ID, Name: t.Name, ParentID: t.ParentID})
	}
	return out, nil
}
