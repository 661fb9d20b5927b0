package auth

import "context"

// Role is the fixed three-role access model.
type Role string

const (
	RoleSystemAdmin Role = "SYSTEM_ADMIN"
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleUser        Role = "USER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleTenantAdmin, RoleUser:
		return true
	}
	return false
}

// Principal is the authenticated subject of a request. VisibleTenantIDs is
// derived at login from the tenant hierarchy, never authoritative: an empty
// list means "universal" for SYSTEM_ADMIN and "no access" for everyone else.
type Principal struct {
	UserID           string
	Email            string
	Role             Role
	TenantID         string // empty for SYSTEM_ADMIN
	VisibleTenantIDs []string
}

// Scope is the visibility filter derived from a principal.
type Scope struct {
	// Universal disables filtering entirely (SYSTEM_ADMIN).
	Universal bool
	TenantIDs []string
}

// Empty reports whether the scope matches nothing.
func (s Scope) Empty() bool {
	return !s.Universal && len(s.TenantIDs) == 0
}

// Scope translates the principal into a record filter.
func (p Principal) Scope() Scope {
	if p.Role == RoleSystemAdmin {
		return Scope{Universal: true}
	}
	return Scope{TenantIDs: p.VisibleTenantIDs}
}

// CanSee reports whether a record tagged with visibleTo is observable:
// universal scope always, otherwise a non-empty intersection.
func (p Principal) CanSee(visibleTo []string) bool {
	scope := p.Scope()
	if scope.Universal {
		return true
	}
	for _, id := range scope.TenantIDs {
		for _, v := range visibleTo {
			if id == v {
				return true
			}
		}
	}
	return false
}

type ctxKey struct{}

// WithPrincipal attaches an authenticated principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom returns the authenticated principal, or ok=false for an
// anonymous request. Absence is the anonymous variant; there is no partially
// populated principal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
