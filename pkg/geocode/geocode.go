// Package geocode resolves free-text locations to coordinates.
//
// Every provider is adapted to the [Geocoder] contract at its package
// boundary, so the rest of depglobe never inspects provider-specific
// responses. [Cache] sits in front of a Geocoder for the duration of one run
// and guarantees each location text is sent to the provider at most once.
package geocode

import (
	"context"
	"fmt"
)

// Coordinates is a point in degrees, latitude first.
// GeoJSON stores the same point as [longitude, latitude]; the swap happens in
// package usage and nowhere else.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%.5f, %.5f)", c.Latitude, c.Longitude)
}

// Geocoder resolves a location text to coordinates.
//
// Implementations report outcomes as follows:
//   - found=true, err=nil: coordinates resolved
//   - found=false, err=nil: no result, or the provider rejected the query
//   - an errors.ErrCodeTimeout error: the request timed out and may be retried
//   - an *errors.RateLimitedError: the provider quota is exhausted
//   - any other error: fatal for the run
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Coordinates, bool, error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, query string) (Coordinates, bool, error)

// Geocode calls f.
func (f GeocoderFunc) Geocode(ctx context.Context, query string) (Coordinates, bool, error) {
	return f(ctx, query)
}
