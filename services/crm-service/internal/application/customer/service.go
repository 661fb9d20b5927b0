// Package customer implements the CRM write path: every mutation is
// persisted, tagged for visibility, and announced on the broker.
package customer

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/services/crm-service/internal/domain"
	"github.com/baechuer/crm-platform/services/crm-service/internal/store/postgres"
)

const (
	TopicCustomerCreated = "crm.customer.created"
	TopicCustomerUpdated = "crm.customer.updated"
)

var (
	// ErrNoTenant rejects writes from principals outside the tenant tree
	// (system administrators act on tenants, not in them).
	ErrNoTenant           = errors.New("principal has no tenant")
	ErrNotFound           = errors.New("customer not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, c *domain.Customer) error
	Update(ctx context.Context, c *domain.Customer) error
	GetVisible(ctx context.Context, id string, scope auth.Scope) (*domain.Customer, error)
	ListVisible(ctx context.Context, scope auth.Scope) ([]domain.Customer, error)
	SetCoordinates(ctx context.Context, id string, lat, lng float64) error
}

type Service struct {
	store Store
	pub   kafka.Publisher
	log   zerolog.Logger
}

func NewService(store Store, pub kafka.Publisher, log zerolog.Logger) *Service {
	return &Service{store: store, pub: pub, log: log}
}

// Input is the mutable customer profile.
type Input struct {
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"max=64"`
	Street     string `json:"street" validate:"max=255"`
	City       string `json:"city" validate:"max=128"`
	State      string `json:"state" validate:"max=128"`
	PostalCode string `json:"postalCode" validate:"max=32"`
	Country    string `json:"country" validate:"max=128"`

	// ShareWith extends visibility beyond the owning tenant at creation.
	ShareWith []string `json:"shareWith,omitempty" validate:"dive,uuid4"`
}

// Create persists a customer owned by the principal's tenant. The visibility
// tag always contains the owner, plus any explicitly shared tenants.
func (s *Service) Create(ctx context.Context, p auth.Principal, in Input) (*domain.Customer, error) {
	if p.TenantID == "" {
		return nil, ErrNoTenant
	}
	if in.Name == "" {
		return nil, ErrValidation
	}

	visible := []string{p.TenantID}
	for _, id := range in.ShareWith {
		if id != "" && id != p.TenantID {
			visible = append(visible, id)
		}
	}

	c := &domain.Customer{
		TenantID:   p.TenantID,
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		Street:     in.Street,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		VisibleTo:  visible,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}

	s.publish(TopicCustomerCreated, c)
	return c, nil
}

// Update rewrites the profile of a customer the principal can see and
// announces the change so enrichment re-runs against the new address.
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, in Input) (*domain.Customer, error) {
	if p.TenantID == "" && p.Role != auth.RoleSystemAdmin {
		return nil, ErrNoTenant
	}
	if in.Name == "" {
		return nil, ErrValidation
	}

	c, err := s.store.GetVisible(ctx, id, p.Scope())
	if errors.Is(err, postgres.ErrCustomerNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Name = in.Name
	c.Email = in.Email
	c.Phone = in.Phone
	c.Street = in.Street
	c.City = in.City
	c.State = in.State
	c.PostalCode = in.PostalCode
	c.Country = in.Country

	if err := s.store.Update(ctx, c); err != nil {
		if errors.Is(err, postgres.ErrCustomerNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.publish(TopicCustomerUpdated, c)
	return c, nil
}

// Get returns one customer within the principal's scope.
func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (*domain.Customer, error) {
	c, err := s.store.GetVisible(ctx, id, p.Scope())
	if errors.Is(err, postgres.ErrCustomerNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// List returns every customer within the principal's scope.
func (s *Service) List(ctx context.Context, p auth.Principal) ([]domain.Customer, error) {
	return s.store.ListVisible(ctx, p.Scope())
}

// SetCoordinates applies enrichment results. It is called from the internal
// surface only and bypasses visibility: the writer is the platform itself.
func (s *Service) SetCoordinates(ctx context.Context, id string, lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidCoordinates
	}
	err := s.store.SetCoordinates(ctx, id, lat, lng)
	if errors.Is(err, postgres.ErrCustomerNotFound) {
		return ErrNotFound
	}
	return err
}

// publish emits the event the downstream consumers contract on. Failure is
// logged, not returned: the write has already committed.
func (s *Service) publish(topic string, c *domain.Customer) {
	payload := map[string]any{
		kafka.EventTypeField: topic,
		"customer_id":        c.ID,
		"name":               c.Name,
		"email":              c.Email,
		"address":            c.FullAddress(),
		"tenant_id":          c.TenantID,
		"visibility_list":    c.VisibleTo,
	}
	if err := s.pub.Publish(topic, c.ID, payload); err != nil {
		s.log.Error().Err(err).Str("topic", topic).Str("customer_id", c.ID).Msg("event publish failed")
	}
}
