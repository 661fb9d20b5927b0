package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/crm-platform/services/identity-service/internal/domain"
)

var ErrTenantNotFound = errors.New("tenant not found")

// TenantRepo persists the tenant tree.
type TenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, parent_id) VALUES ($1, $2) RETURNING id, created_at`,
		t.Name, t.ParentID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, parent_id, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.ParentID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select tenant: %w", err)
	}
	return &t, nil
}

// ChildrenIDs returns the direct children of a tenant.
func (r *TenantRepo) ChildrenIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM tenants WHERE parent_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("select children: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, err
		}
		ids = append(ids, child)
	}
	return ids, rows.Err()
}

// DescendantIDs returns every tenant below id, excluding id itself. Uses a
// recursive CTE so the whole subtree resolves in one round trip.
func (r *TenantRepo) DescendantIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id FROM tenants WHERE parent_id = $1
			UNION ALL
			SELECT t.id FROM tenants t JOIN subtree s ON t.parent_id = s.id
		)
		SELECT id FROM subtree`, id)
	if err != nil {
		return nil, fmt.Errorf("select descendants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		ids = append(ids, d)
	}
	return ids, rows.Err()
}

func (r *TenantRepo) SetParent(ctx context.Context, id string, parentID *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tenants SET parent_id = $2 WHERE id = $1`, id, parentID)
	if err != nil {
		return fmt.Errorf("update tenant parent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *TenantRepo) List(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, parent_id, created_at FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.ParentID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
