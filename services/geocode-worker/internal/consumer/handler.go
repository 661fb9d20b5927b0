// Package consumer enriches customer records with coordinates: geocode the
// event's address, then write the result back through the CRM internal API.
package consumer

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/services/geocode-worker/internal/crmclient"
	"github.com/baechuer/crm-platform/services/geocode-worker/internal/geocoding"
)

// CoordinateWriter is the CRM write-back surface.
type CoordinateWriter interface {
	UpdateCoordinates(ctx context.Context, customerID string, lat, lng float64) error
}

type Handler struct {
	geocoder geocoding.Geocoder
	crm      CoordinateWriter
	log      zerolog.Logger
}

func NewHandler(geocoder geocoding.Geocoder, crm CoordinateWriter, log zerolog.Logger) *Handler {
	return &Handler{geocoder: geocoder, crm: crm, log: log}
}

// Handle enriches one customer event. An event without a customer_id or a
// non-empty address can never be enriched, no matter how often it replays, so
// both fail permanently and land in the DLQ.
func (h *Handler) Handle(ctx context.Context, evt kafka.Event) error {
	customerID, ok := evt.StringField("customer_id")
	if !ok {
		return kafka.Permanent("event missing customer_id", nil)
	}

	address, ok := evt.StringField("address")
	if !ok {
		return kafka.Permanent("event missing address", nil)
	}

	result, err := h.geocoder.Geocode(ctx, address)
	if err != nil {
		return kafka.Retryable("geocoding failed", err)
	}

	if err := h.crm.UpdateCoordinates(ctx, customerID, result.Latitude, result.Longitude); err != nil {
		return classifyWriteback(err)
	}

	h.log.Info().
		Str("customer_id", customerID).
		Float64("latitude", result.Latitude).
		Float64("longitude", result.Longitude).
		Msg("customer geocoded")
	return nil
}

// classifyWriteback maps CRM responses onto retry semantics: server-side
// failures and transport errors are worth retrying, client-side rejections
// are not. A 404 means the customer is gone; replaying cannot bring it back.
func classifyWriteback(err error) error {
	var statusErr *crmclient.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= http.StatusInternalServerError {
			return kafka.Retryable("crm service failed", err)
		}
		return kafka.Permanent("crm rejected coordinate update", err)
	}
	// timeouts, refused connections, DNS
	return kafka.Retryable("crm service unreachable", err)
}
