package domain

import (
	"strings"
	"time"
)

// Customer is a CRM record. VisibleTo is the authoritative visibility tag:
// the owning tenant is always a member, plus any tenants the record was
// shared with at creation time.
type Customer struct {
	ID         string
	TenantID   string
	Name       string
	Email      string
	Phone      string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string

	Latitude   *float64
	Longitude  *float64
	GeocodedAt *time.Time

	VisibleTo []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullAddress renders the postal address as a single geocodable line,
// skipping empty components.
func (c Customer) FullAddress() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{c.Street, c.City, c.State, c.PostalCode, c.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
