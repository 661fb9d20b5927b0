// Package postgres stores customers with array-typed visibility tags.
// Scoped reads filter with the && overlap operator so the index on
// visible_to does the work.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/services/crm-service/internal/domain"
)

var ErrCustomerNotFound = errors.New("customer not found")

type CustomerRepo struct {
	pool *pgxpool.Pool
}

func NewCustomerRepo(pool *pgxpool.Pool) *CustomerRepo {
	return &CustomerRepo{pool: pool}
}

const customerColumns = `id, tenant_id, name, email, phone, street, city, state, postal_code, country,
	latitude, longitude, geocoded_at, visible_to, created_at, updated_at`

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone,
		&c.Street, &c.City, &c.State, &c.PostalCode, &c.Country,
		&c.Latitude, &c.Longitude, &c.GeocodedAt, &c.VisibleTo, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &c, nil
}

func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (tenant_id, name, email, phone, street, city, state, postal_code, country, visible_to)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		c.TenantID, c.Name, c.Email, c.Phone, c.Street, c.City, c.State, c.PostalCode, c.Country, c.VisibleTo,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// Update rewrites the mutable profile fields. Visibility tags and coordinates
// are managed by their own operations.
func (r *CustomerRepo) Update(ctx context.Context, c *domain.Customer) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE customers
		 SET name = $2, email = $3, phone = $4, street = $5, city = $6, state = $7,
		     postal_code = $8, country = $9, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		c.ID, c.Name, c.Email, c.Phone, c.Street, c.City, c.State, c.PostalCode, c.Country,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCustomerNotFound
	}
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// GetVisible fetches one record when the scope can see it. Records outside
// the scope are indistinguishable from missing ones.
func (r *CustomerRepo) GetVisible(ctx context.Context, id string, scope auth.Scope) (*domain.Customer, error) {
	if scope.Universal {
		return scanCustomer(r.pool.QueryRow(ctx,
			`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	}
	if scope.Empty() {
		return nil, ErrCustomerNotFound
	}
	return scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND visible_to && $2::uuid[]`,
		id, scope.TenantIDs))
}

// ListVisible returns every record the scope overlaps, newest first.
func (r *CustomerRepo) ListVisible(ctx context.Context, scope auth.Scope) ([]domain.Customer, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case scope.Universal:
		rows, err = r.pool.Query(ctx,
			`SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	case scope.Empty():
		return nil, nil
	default:
		rows, err = r.pool.Query(ctx,
			`SELECT `+customerColumns+` FROM customers WHERE visible_to && $1::uuid[] ORDER BY created_at DESC`,
			scope.TenantIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SetCoordinates is the unscoped write used by the internal enrichment
// endpoint. Last writer wins.
func (r *CustomerRepo) SetCoordinates(ctx context.Context, id string, lat, lng float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET latitude = $2, longitude = $3, geocoded_at = now(), updated_at = now() WHERE id = $1`,
		id, lat, lng)
	if err != nil {
		return fmt.Errorf("update coordinates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}
