// Package pipeline runs one incremental collection: it walks the dependents
// of an account's repositories, resolves each dependent account to a
// location and coordinates, and saves the result as the new artifact.
//
// # Stages
//
//  1. Load: the prior artifact seeds the account and geocode caches, so
//     accounts and locations resolved before cost no requests.
//  2. Resolve: every distinct dependent account is resolved to its profile
//     location, filtered, and geocoded once per distinct location text.
//  3. Save: the usages confirmed by this run replace the artifact. Accounts
//     not seen again are dropped; the artifact is a snapshot.
//
// A fatal error aborts before Save, leaving the prior artifact untouched.
// Rate limits never surface here; the backoff controller sleeps through them.
//
// # Usage
//
//	p, err := pipeline.New(pipeline.Config{
//	    Options:      pipeline.Options{Owner: "matzehuels"},
//	    Repositories: gh,
//	    Dependents:   scraper,
//	    Accounts:     gh,
//	    Geocoder:     nominatim.NewClient("", nominatim.DefaultInterval),
//	    Store:        usage.NewFileStore("global_usage.json", logger),
//	})
//	result, err := p.Run(ctx)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/depglobe/pkg/backoff"
	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/geocode"
	"github.com/matzehuels/depglobe/pkg/locate"
	"github.com/matzehuels/depglobe/pkg/observability"
	"github.com/matzehuels/depglobe/pkg/usage"
)

// =============================================================================
// Options - Run Configuration
// =============================================================================

// Options configures a run.
type Options struct {
	Owner     string   // account whose repositories are collected
	Repos     []string // explicit "owner/name" references; overrides Owner's listing
	SkipForks bool     // skip forked repositories when listing Owner's repositories
	DryRun    bool     // resolve everything but do not save

	// GeocodeAttempts and GeocodeDelay bound the retry of geocoder
	// timeouts. Zero keeps the geocode package defaults.
	GeocodeAttempts int
	GeocodeDelay    time.Duration

	// RunID identifies the run in logs and metrics. Generated when empty.
	RunID string

	Logger *log.Logger
}

// ValidateAndSetDefaults checks required fields and applies defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if len(o.Repos) == 0 {
		if err := deperrors.ValidateAccountName(o.Owner); err != nil {
			return err
		}
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// Config bundles a run's options and collaborators.
type Config struct {
	Options

	Repositories RepoSource
	Dependents   DependentSource
	Accounts     locate.AccountSource
	Geocoder     geocode.Geocoder
	Store        usage.Store

	// Backoff handles rate limits for every upstream call. Defaults to a
	// controller with backoff.DefaultPadding.
	Backoff *backoff.Controller
}

// =============================================================================
// Result
// =============================================================================

// Result is the outcome of a successful run.
type Result struct {
	// Usages are the usages saved by the run, ordered by account.
	Usages []usage.Usage

	Stats Stats
}

// Stats counts what a run did.
type Stats struct {
	RunID string

	Prior        int // usages in the prior artifact
	Repositories int // repositories walked
	Dependents   int // (repository, dependent) pairs seen
	Accounts     int // distinct dependent accounts

	SkippedNoLocation int // accounts without a profile location
	SkippedInvalid    int // locations without a letter
	SkippedUnresolved int // locations the geocoder could not resolve

	AccountCalls int // account lookups sent upstream
	GeocodeCalls int // geocoder requests

	Duration time.Duration
}

// Added returns how many saved usages were not in the prior artifact.
func (r *Result) Added(prior []usage.Usage) int {
	known := make(map[string]bool, len(prior))
	for _, u := range prior {
		known[u.Account] = true
	}
	n := 0
	for _, u := range r.Usages {
		if !known[u.Account] {
			n++
		}
	}
	return n
}

// =============================================================================
// Pipeline
// =============================================================================

var errAlreadyRun = errors.New("pipeline already run")

// Pipeline owns the state of one run. Build a new one for every run.
type Pipeline struct {
	opts     Options
	store    usage.Store
	enum     *Enumerator
	resolver *locate.Resolver
	geocoder *geocode.Cache
	logger   *log.Logger

	seen   map[string]bool
	usages map[string]usage.Usage
	prior  []usage.Usage
	stats  Stats
	ran    bool
}

// New validates cfg and builds a pipeline with empty caches.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Options.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if cfg.Dependents == nil || cfg.Accounts == nil || cfg.Geocoder == nil || cfg.Store == nil {
		return nil, deperrors.New(deperrors.ErrCodeInvalidConfig, "pipeline requires dependents, accounts, geocoder and store")
	}
	if cfg.Repositories == nil && len(cfg.Options.Repos) == 0 {
		return nil, deperrors.New(deperrors.ErrCodeInvalidConfig, "pipeline requires a repository source or explicit repositories")
	}

	logger := cfg.Logger.With("run", shortID(cfg.RunID))
	ctrl := cfg.Backoff
	if ctrl == nil {
		ctrl = backoff.New(backoff.DefaultPadding, logger)
	}

	geocoder := geocode.NewCache(cfg.Geocoder, ctrl, logger)
	if cfg.GeocodeAttempts > 0 {
		geocoder.TimeoutAttempts = cfg.GeocodeAttempts
	}
	if cfg.GeocodeDelay > 0 {
		geocoder.TimeoutDelay = cfg.GeocodeDelay
	}

	return &Pipeline{
		opts:     cfg.Options,
		store:    cfg.Store,
		enum:     NewEnumerator(cfg.Repositories, cfg.Dependents, ctrl, logger, cfg.Owner, cfg.Options.Repos, cfg.SkipForks),
		resolver: locate.NewResolver(cfg.Accounts, ctrl, logger),
		geocoder: geocoder,
		logger:   logger,
		seen:     make(map[string]bool),
		usages:   make(map[string]usage.Usage),
		stats:    Stats{RunID: cfg.RunID},
	}, nil
}

// Run executes load, resolve and save. It can be called once.
func (p *Pipeline) Run(ctx context.Context) (result *Result, err error) {
	if p.ran {
		return nil, errAlreadyRun
	}
	p.ran = true

	start := time.Now()
	defer func() {
		p.stats.Duration = time.Since(start)
		observability.Pipeline().OnRunComplete(ctx, len(p.usages), p.stats.Duration, err)
	}()

	if err := p.load(ctx); err != nil {
		return nil, err
	}

	for dep, err := range p.enum.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("enumerate dependents: %w", err)
		}
		if err := p.process(ctx, dep); err != nil {
			return nil, err
		}
	}
	p.stats.Repositories = p.enum.Repositories()
	p.stats.AccountCalls = p.resolver.Calls()
	p.stats.GeocodeCalls = p.geocoder.Calls()

	usages := p.Usages()
	if p.opts.DryRun {
		p.logger.Info("dry run, not saving", "usages", len(usages))
	} else if err := p.store.Save(ctx, usages); err != nil {
		return nil, fmt.Errorf("save usages: %w", err)
	}

	p.logger.Info("run complete",
		"usages", len(usages),
		"accounts", p.stats.Accounts,
		"geocode_calls", p.stats.GeocodeCalls,
		"duration", time.Since(start).Round(time.Millisecond))

	return &Result{Usages: usages, Stats: p.stats}, nil
}

// Prior returns the usages loaded from the prior artifact.
func (p *Pipeline) Prior() []usage.Usage { return p.prior }

// Usages returns the usages collected so far, ordered by account.
func (p *Pipeline) Usages() []usage.Usage {
	out := make([]usage.Usage, 0, len(p.usages))
	for _, u := range p.usages {
		out = append(out, u)
	}
	usage.Sort(out)
	return out
}

func (p *Pipeline) load(ctx context.Context) error {
	prior, err := p.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load prior usages: %w", err)
	}
	for _, u := range prior {
		p.resolver.Seed(u.Account, u.Location)
		p.geocoder.Seed(u.Location, u.Coordinates)
	}
	p.prior = prior
	p.stats.Prior = len(prior)
	p.logger.Info("loaded prior usages", "count", len(prior))
	return nil
}

func (p *Pipeline) process(ctx context.Context, dep Dependent) error {
	p.stats.Dependents++
	hooks := observability.Pipeline()
	hooks.OnDependent(ctx, dep.Repository, dep.Account)

	if p.seen[dep.Account] {
		return nil
	}
	p.seen[dep.Account] = true
	p.stats.Accounts++
	p.logger.Debug("checking dependent", "repo", dep.Repository, "dependent", dep.Name)

	location, err := p.resolver.Resolve(ctx, dep.Account)
	if err != nil {
		return err
	}
	if location == "" {
		p.stats.SkippedNoLocation++
		hooks.OnSkip(ctx, dep.Account, observability.SkipNoLocation)
		return nil
	}
	if !hasLetter(location) {
		p.stats.SkippedInvalid++
		p.logger.Debug("ignoring location without letters", "account", dep.Account, "location", location)
		hooks.OnSkip(ctx, dep.Account, observability.SkipInvalid)
		return nil
	}

	coords, found, err := p.geocoder.Resolve(ctx, location)
	if err != nil {
		return err
	}
	if !found {
		p.stats.SkippedUnresolved++
		hooks.OnSkip(ctx, dep.Account, observability.SkipUnresolved)
		return nil
	}

	p.usages[dep.Account] = usage.Usage{Account: dep.Account, Location: location, Coordinates: coords}
	p.logger.Info("usage", "account", dep.Account, "location", location, "coords", coords)
	hooks.OnUsage(ctx, dep.Account, location)
	return nil
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
