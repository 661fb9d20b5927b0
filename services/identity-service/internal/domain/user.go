package domain

import (
	"time"

	"github.com/baechuer/crm-platform/internal/platform/auth"
)

// User is an account in the identity store. TenantID is nil only for
// SYSTEM_ADMIN accounts, which live above the tenant tree.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         auth.Role
	TenantID     *string
	IsActive     bool
	CreatedAt    time.Time
}
