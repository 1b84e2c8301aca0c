// Package nominatim geocodes location texts with OpenStreetMap Nominatim.
//
// The public instance allows one request per second and requires an
// identifying User-Agent (https://operations.osmfoundation.org/policies/nominatim/).
// The client throttles itself to that rate.
package nominatim

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/geocode"
	"github.com/matzehuels/depglobe/pkg/integrations"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultInterval is the minimum spacing between requests.
	DefaultInterval = time.Second
)

// Client implements geocode.Geocoder against a Nominatim instance.
type Client struct {
	*integrations.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient creates a client for baseURL (empty for the public instance)
// that sends at most one request per interval.
func NewClient(baseURL string, interval time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": integrations.UserAgent,
	}
	return &Client{
		Client:  integrations.NewClient(nil, 0, headers),
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, 1),
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves query to the best-ranked place.
// An empty result or a rejected query reports found=false.
func (c *Client) Geocode(ctx context.Context, query string) (geocode.Coordinates, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return geocode.Coordinates{}, false, err
	}

	url := fmt.Sprintf("%s/search?format=jsonv2&limit=1&q=%s", c.baseURL, integrations.URLEncode(query))
	var places []place
	err := c.Get(ctx, url, &places)
	switch {
	case deperrors.Is(err, deperrors.ErrCodeInvalidInput):
		return geocode.Coordinates{}, false, nil
	case err != nil:
		return geocode.Coordinates{}, false, err
	case len(places) == 0:
		return geocode.Coordinates{}, false, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return geocode.Coordinates{}, false, deperrors.Wrap(deperrors.ErrCodeNetwork, err, "nominatim latitude %q", places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return geocode.Coordinates{}, false, deperrors.Wrap(deperrors.ErrCodeNetwork, err, "nominatim longitude %q", places[0].Lon)
	}
	return geocode.Coordinates{Latitude: lat, Longitude: lon}, true, nil
}

var _ geocode.Geocoder = (*Client)(nil)
