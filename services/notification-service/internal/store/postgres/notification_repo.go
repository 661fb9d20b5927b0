package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/services/notification-service/internal/domain"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Insert stores one feed item. The unique constraint on (topic, partition,
// "offset") makes redelivered events collapse; the caller passes the source
// coordinates for exactly that purpose.
func (r *NotificationRepo) Insert(ctx context.Context, n *domain.Notification, topic string, partition int32, offset int64) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (customer_id, tenant_id, title, body, visible_to, topic, partition, "offset")
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		n.CustomerID, n.TenantID, n.Title, n.Body, n.VisibleTo, topic, partition, offset,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return err
	}
	return nil
}

// ListVisible returns feed items the scope overlaps, newest first.
func (r *NotificationRepo) ListVisible(ctx context.Context, scope auth.Scope, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case scope.Universal:
		rows, err = r.pool.Query(ctx,
			`SELECT id, customer_id, tenant_id, title, body, visible_to, read_by, created_at
			 FROM notifications ORDER BY created_at DESC LIMIT $1`, limit)
	case scope.Empty():
		return nil, nil
	default:
		rows, err = r.pool.Query(ctx,
			`SELECT id, customer_id, tenant_id, title, body, visible_to, read_by, created_at
			 FROM notifications WHERE visible_to && $1::uuid[] ORDER BY created_at DESC LIMIT $2`,
			scope.TenantIDs, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.CustomerID, &n.TenantID, &n.Title, &n.Body, &n.VisibleTo, &n.ReadBy, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead appends the user to a visible item's read set. Idempotent: an
// already-acknowledged item is left unchanged and still succeeds. Items
// outside the scope look missing.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID string, scope auth.Scope) error {
	set := `read_by = CASE WHEN read_by @> ARRAY[$2]::uuid[] THEN read_by ELSE array_append(read_by, $2::uuid) END`

	var (
		tag pgconn.CommandTag
		err error
	)
	if scope.Universal {
		tag, err = r.pool.Exec(ctx,
			`UPDATE notifications SET `+set+` WHERE id = $1`, id, userID)
	} else {
		if scope.Empty() {
			return ErrNotificationNotFound
		}
		tag, err = r.pool.Exec(ctx,
			`UPDATE notifications SET `+set+` WHERE id = $1 AND visible_to && $3::uuid[]`,
			id, userID, scope.TenantIDs)
	}
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// UnreadCount reports how many visible items this user has not acknowledged.
func (r *NotificationRepo) UnreadCount(ctx context.Context, userID string, scope auth.Scope) (int, error) {
	var count int
	var err error
	switch {
	case scope.Universal:
		err = r.pool.QueryRow(ctx,
			`SELECT count(*) FROM notifications WHERE NOT (read_by @> ARRAY[$1]::uuid[])`,
			userID).Scan(&count)
	case scope.Empty():
		return 0, nil
	default:
		err = r.pool.QueryRow(ctx,
			`SELECT count(*) FROM notifications
			 WHERE NOT (read_by @> ARRAY[$1]::uuid[]) AND visible_to && $2::uuid[]`,
			userID, scope.TenantIDs).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
