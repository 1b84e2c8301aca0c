package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depglobe/pkg/backoff"
	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/observability"
)

// Defaults for the bounded timeout retry.
const (
	DefaultTimeoutAttempts = 5
	DefaultTimeoutDelay    = time.Second
)

type entry struct {
	coords Coordinates
	found  bool
}

// Cache maps location texts to coordinates, or to "unresolved", for one run.
// It is not safe for concurrent use.
type Cache struct {
	geocoder Geocoder
	backoff  *backoff.Controller
	logger   *log.Logger
	entries  map[string]entry
	calls    int

	// TimeoutAttempts and TimeoutDelay bound the retry of provider timeouts.
	TimeoutAttempts int
	TimeoutDelay    time.Duration
}

// NewCache creates an empty cache in front of g.
// If ctrl is nil, a controller with default padding is used.
func NewCache(g Geocoder, ctrl *backoff.Controller, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	if ctrl == nil {
		ctrl = backoff.New(backoff.DefaultPadding, logger)
	}
	return &Cache{
		geocoder:        g,
		backoff:         ctrl,
		logger:          logger,
		entries:         make(map[string]entry),
		TimeoutAttempts: DefaultTimeoutAttempts,
		TimeoutDelay:    DefaultTimeoutDelay,
	}
}

// Seed records resolved coordinates for text without contacting the provider.
func (c *Cache) Seed(text string, coords Coordinates) {
	c.entries[text] = entry{coords: coords, found: true}
}

// Lookup returns the cached coordinates for text. It reports false for
// texts never attempted and for texts attempted without a result.
func (c *Cache) Lookup(text string) (Coordinates, bool) {
	e, ok := c.entries[text]
	return e.coords, ok && e.found
}

// Resolve returns coordinates for text, asking the provider on a miss.
//
// found=false with a nil error means the provider had no result; the text
// is remembered as unresolved and not attempted again this run. Rate limits
// are slept through. Timeouts are retried TimeoutAttempts times, after which
// the error is returned and nothing is cached.
func (c *Cache) Resolve(ctx context.Context, text string) (Coordinates, bool, error) {
	if e, ok := c.entries[text]; ok {
		observability.Cache().OnCacheHit(ctx, observability.KeyGeocode)
		return e.coords, e.found, nil
	}
	observability.Cache().OnCacheMiss(ctx, observability.KeyGeocode)

	var (
		coords Coordinates
		found  bool
	)
	err := c.backoff.Retry(ctx, c.TimeoutAttempts, c.TimeoutDelay, func() error {
		return c.backoff.Do(ctx, func() error {
			c.calls++
			var err error
			coords, found, err = c.geocoder.Geocode(ctx, text)
			if deperrors.Is(err, deperrors.ErrCodeTimeout) {
				c.logger.Debug("geocode timed out", "location", text)
				return backoff.Retryable(err)
			}
			return err
		})
	})
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("geocode %q: %w", text, err)
	}

	c.entries[text] = entry{coords: coords, found: found}
	observability.Cache().OnCacheSet(ctx, observability.KeyGeocode, len(text))
	if !found {
		c.logger.Info("ignoring location", "location", text)
		return Coordinates{}, false, nil
	}
	c.logger.Debug("geocoded", "location", text, "coords", coords)
	return coords, true, nil
}

// Calls returns how many times the provider has been invoked, including
// retries.
func (c *Cache) Calls() int { return c.calls }

// Len returns the number of cached texts, resolved or not.
func (c *Cache) Len() int { return len(c.entries) }
