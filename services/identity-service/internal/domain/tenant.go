package domain

import "time"

// Tenant is a node in the organisation tree. ParentID is nil for roots.
type Tenant struct {
	ID        string
	Name      string
	ParentID  *string
	CreatedAt time.Time
}
