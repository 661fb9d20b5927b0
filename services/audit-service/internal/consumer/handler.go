// Package consumer records every broker event into the audit log, exactly
// once per (topic, partition, offset).
package consumer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/internal/platform/pgutil"
	"github.com/baechuer/crm-platform/services/audit-service/internal/store/postgres"
)

// Store is the persistence surface the handler depends on.
type Store interface {
	Seen(ctx context.Context, topic string, partition int32, offset int64) (bool, error)
	Insert(ctx context.Context, e postgres.Entry) error
}

type Handler struct {
	store Store
	log   zerolog.Logger
}

func NewHandler(store Store, log zerolog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// Handle records one event. Replays are successes; storage outages are
// retryable; everything else about the payload was already validated by
// decode, so the only permanent case here is missing coordinates.
func (h *Handler) Handle(ctx context.Context, evt kafka.Event) error {
	if evt.Topic == "" {
		return kafka.Permanent("event missing topic coordinates", nil)
	}

	seen, err := h.store.Seen(ctx, evt.Topic, evt.Partition, evt.Offset)
	if err != nil {
		if pgutil.IsTransient(err) {
			return kafka.Retryable("audit store unavailable", err)
		}
		return kafka.Retryable("audit store lookup failed", err)
	}
	if seen {
		h.log.Debug().Str("coordinates", evt.Coordinates()).Msg("duplicate delivery skipped")
		return nil
	}

	entry := postgres.Entry{
		EventType: evt.Type,
		Topic:     evt.Topic,
		Partition: evt.Partition,
		Offset:    evt.Offset,
		Payload:   evt.Payload,
	}
	if tenantID, ok := evt.StringField("tenant_id"); ok {
		entry.TenantID = &tenantID
	}

	if err := h.store.Insert(ctx, entry); err != nil {
		// Lost the race against another replay of the same coordinates.
		if pgutil.IsUniqueViolation(err) {
			h.log.Debug().Str("coordinates", evt.Coordinates()).Msg("duplicate insert collapsed")
			return nil
		}
		if pgutil.IsTransient(err) {
			return kafka.Retryable("audit store unavailable", err)
		}
		return kafka.Retryable("audit insert failed", err)
	}

	h.log.Info().
		Str("event_type", evt.Type).
		Str("coordinates", evt.Coordinates()).
		Msg("event recorded")
	return nil
}
