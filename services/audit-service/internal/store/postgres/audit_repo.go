// Package postgres persists the audit log. The unique constraint on
// (topic, partition, offset) is the idempotency fence: at-least-once delivery
// collapses to exactly-once rows.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one consumed event, recorded verbatim.
type Entry struct {
	EventType string
	Topic     string
	Partition int32
	Offset    int64
	TenantID  *string
	Payload   map[string]any
	CreatedAt time.Time
}

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Seen reports whether this message's coordinates were already recorded.
func (r *AuditRepo) Seen(ctx context.Context, topic string, partition int32, offset int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM audit_events WHERE topic = $1 AND partition = $2 AND "offset" = $3)`,
		topic, partition, offset,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check audit event: %w", err)
	}
	return exists, nil
}

// Insert records one event. A unique violation surfaces unchanged so the
// caller can treat the replay as already processed.
func (r *AuditRepo) Insert(ctx context.Context, e Entry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_events (event_type, topic, partition, "offset", tenant_id, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.EventType, e.Topic, e.Partition, e.Offset, e.TenantID, e.Payload)
	return err
}
