// Package mapbox geocodes location texts with the Mapbox Geocoding API v6.
//
// Responses are GeoJSON feature collections and are decoded with
// paulmach/orb, so the first feature's Point is [longitude, latitude].
package mapbox

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/time/rate"

	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/geocode"
	"github.com/matzehuels/depglobe/pkg/integrations"
)

const (
	defaultBaseURL = "https://api.mapbox.com"

	// DefaultInterval keeps well under the default 1000 requests per minute.
	DefaultInterval = 100 * time.Millisecond
)

// Client implements geocode.Geocoder against Mapbox.
type Client struct {
	*integrations.Client
	baseURL string
	token   string
	limiter *rate.Limiter
}

// NewClient creates a client authenticated with an access token.
func NewClient(token, baseURL string, interval time.Duration) (*Client, error) {
	if token == "" {
		return nil, deperrors.New(deperrors.ErrCodeInvalidConfig, "mapbox geocoder requires an access token (MAPBOX_TOKEN)")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	headers := map[string]string{"User-Agent": integrations.UserAgent}
	return &Client{
		Client:  integrations.NewClient(nil, 0, headers),
		baseURL: baseURL,
		token:   token,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Geocode resolves query to the most relevant feature.
func (c *Client) Geocode(ctx context.Context, query string) (geocode.Coordinates, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return geocode.Coordinates{}, false, err
	}

	url := fmt.Sprintf("%s/search/geocode/v6/forward?q=%s&limit=1&access_token=%s",
		c.baseURL, integrations.URLEncode(query), integrations.URLEncode(c.token))

	var fc geojson.FeatureCollection
	err := c.Get(ctx, url, &fc)
	switch {
	case deperrors.Is(err, deperrors.ErrCodeInvalidInput):
		return geocode.Coordinates{}, false, nil
	case err != nil:
		return geocode.Coordinates{}, false, err
	case len(fc.Features) == 0 || fc.Features[0].Geometry == nil:
		return geocode.Coordinates{}, false, nil
	}

	p, ok := fc.Features[0].Geometry.(orb.Point)
	if !ok {
		return geocode.Coordinates{}, false, deperrors.New(deperrors.ErrCodeNetwork,
			"mapbox returned %s geometry for %q", fc.Features[0].Geometry.GeoJSONType(), query)
	}
	return geocode.Coordinates{Latitude: p.Lat(), Longitude: p.Lon()}, true, nil
}

var _ geocode.Geocoder = (*Client)(nil)
