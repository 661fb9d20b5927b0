// Package consumer turns customer events into feed notifications.
package consumer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/internal/platform/pgutil"
	"github.com/baechuer/crm-platform/services/notification-service/internal/domain"
)

// Store is the persistence surface the handler depends on.
type Store interface {
	Insert(ctx context.Context, n *domain.Notification, topic string, partition int32, offset int64) error
}

type Handler struct {
	store Store
	log   zerolog.Logger
}

func NewHandler(store Store, log zerolog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// Handle builds a notification from a customer event. A payload without
// customer_id, name, or a usable visibility_list can never produce a valid
// feed item, so those fail permanently.
func (h *Handler) Handle(ctx context.Context, evt kafka.Event) error {
	customerID, ok := evt.StringField("customer_id")
	if !ok {
		return kafka.Permanent("event missing customer_id", nil)
	}
	name, ok := evt.StringField("name")
	if !ok {
		return kafka.Permanent("event missing customer name", nil)
	}
	visibleTo, ok := evt.StringList("visibility_list")
	if !ok {
		return kafka.Permanent("visibility_list is not a list of tenant ids", nil)
	}
	if len(visibleTo) == 0 {
		return kafka.Permanent("event has an empty visibility_list", nil)
	}

	tenantID, _ := evt.StringField("tenant_id")

	n := &domain.Notification{
		CustomerID: customerID,
		TenantID:   tenantID,
		Title:      title(evt.Type, name),
		Body:       body(evt, name),
		VisibleTo:  visibleTo,
	}

	if err := h.store.Insert(ctx, n, evt.Topic, evt.Partition, evt.Offset); err != nil {
		if pgutil.IsUniqueViolation(err) {
			h.log.Debug().Str("coordinates", evt.Coordinates()).Msg("duplicate delivery skipped")
			return nil
		}
		if pgutil.IsTransient(err) {
			return kafka.Retryable("notification store unavailable", err)
		}
		return kafka.Retryable("notification insert failed", err)
	}

	h.log.Info().
		Str("customer_id", customerID).
		Str("title", n.Title).
		Msg("notification created")
	return nil
}

func title(eventType, name string) string {
	switch eventType {
	case "crm.customer.updated":
		return fmt.Sprintf("Customer Updated: %s", name)
	default:
		return fmt.Sprintf("New Customer: %s", name)
	}
}

func body(evt kafka.Event, name string) string {
	if address, ok := evt.StringField("address"); ok {
		return fmt.Sprintf("%s (%s)", name, address)
	}
	return name
}
