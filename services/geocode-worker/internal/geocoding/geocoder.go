// Package geocoding resolves postal addresses to coordinates.
package geocoding

import (
	"context"
	"time"
)

// Result is a resolved coordinate pair.
type Result struct {
	Latitude  float64
	Longitude float64
}

// Geocoder resolves one address. Implementations must respect ctx deadlines.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Result, error)
}

// Mock returns a fixed Sydney location after a short simulated provider
// delay. It stands in for a paid geocoding API in development and CI.
type Mock struct {
	Delay time.Duration
}

func NewMock() *Mock {
	return &Mock{Delay: 50 * time.Millisecond}
}

func (m *Mock) Geocode(ctx context.Context, _ string) (Result, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	return Result{Latitude: -33.8688, Longitude: 151.2093}, nil
}
