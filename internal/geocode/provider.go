// Package geocode wraps external geocoding / place-search providers behind a
// small interface, adds optional redis caching, and serialises asynchronous
// lookups against the gesture stream that issued them.
package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/platefleet/zone-engine/model"
)

// ErrProvider indicates the upstream geocoding provider failed or answered
// with a non-success status. Callers recover by falling back to an empty
// address; a partial address is always preferable to no address.
var ErrProvider = errors.New("geocode provider error")

// Provider translates map points into structured addresses and free-text
// queries into candidate places.
type Provider interface {
	// ReverseGeocode resolves a point into a structured address. Missing
	// structured fields come back as empty strings, not as an error.
	ReverseGeocode(ctx context.Context, p model.Point) (model.Address, error)

	// SearchPlaces runs a forward place search scoped to a city. An empty
	// result set is a valid "no matches" outcome, not an error.
	SearchPlaces(ctx context.Context, query, nearCity string) ([]model.PlaceCandidate, error)
}

// Recorder receives provider call outcomes for metrics.
type Recorder interface {
	ObserveGeocode(op string, d time.Duration, err error)
}
