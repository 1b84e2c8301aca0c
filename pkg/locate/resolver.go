// Package locate maps account logins to their self-reported profile location.
//
// A [Resolver] is seeded from the previous run's artifact so that accounts
// resolved before never reach the directory service again. Misses are
// fetched through the backoff controller, which absorbs rate limits.
package locate

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depglobe/pkg/backoff"
	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/integrations/github"
	"github.com/matzehuels/depglobe/pkg/observability"
)

// AccountSource fetches account profiles from the directory service.
// [github.Client] implements it.
type AccountSource interface {
	User(ctx context.Context, login string) (*github.User, error)
}

// Resolver caches account to location text for one run.
// It is not safe for concurrent use.
type Resolver struct {
	source    AccountSource
	backoff   *backoff.Controller
	logger    *log.Logger
	locations map[string]string
	calls     int
}

// NewResolver creates an empty resolver backed by source.
func NewResolver(source AccountSource, ctrl *backoff.Controller, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	if ctrl == nil {
		ctrl = backoff.New(backoff.DefaultPadding, logger)
	}
	return &Resolver{
		source:    source,
		backoff:   ctrl,
		logger:    logger,
		locations: make(map[string]string),
	}
}

// Seed records a known location for account. Empty locations are ignored.
func (r *Resolver) Seed(account, location string) {
	if location == "" {
		return
	}
	r.locations[account] = location
}

// Resolve returns the location text of account, or "" if it has none.
//
// Only non-empty locations are remembered, so an account without one is
// fetched again if it shows up again. Accounts the directory no longer knows,
// and names that are not valid logins, are treated as having no location.
func (r *Resolver) Resolve(ctx context.Context, account string) (string, error) {
	if loc, ok := r.locations[account]; ok {
		observability.Cache().OnCacheHit(ctx, observability.KeyAccount)
		return loc, nil
	}
	observability.Cache().OnCacheMiss(ctx, observability.KeyAccount)

	user, err := backoff.Call(ctx, r.backoff, func() (*github.User, error) {
		r.calls++
		return r.source.User(ctx, account)
	})
	if deperrors.Is(err, deperrors.ErrCodeNotFound) || deperrors.Is(err, deperrors.ErrCodeInvalidAccount) {
		r.logger.Warn("account not found", "account", account)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve account %s: %w", account, err)
	}

	loc := strings.TrimSpace(user.Location)
	if loc == "" {
		return "", nil
	}
	r.locations[account] = loc
	observability.Cache().OnCacheSet(ctx, observability.KeyAccount, len(loc))
	return loc, nil
}

// Calls returns how many account lookups reached the source, including
// retries after a rate limit.
func (r *Resolver) Calls() int { return r.calls }

// Len returns the number of accounts with a known location.
func (r *Resolver) Len() int { return len(r.locations) }
