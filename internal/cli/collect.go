package cli

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depglobe/internal/config"
	"github.com/matzehuels/depglobe/pkg/backoff"
	"github.com/matzehuels/depglobe/pkg/integrations/dependents"
	"github.com/matzehuels/depglobe/pkg/integrations/github"
	"github.com/matzehuels/depglobe/pkg/metrics"
	"github.com/matzehuels/depglobe/pkg/observability"
	"github.com/matzehuels/depglobe/pkg/pipeline"
)

// exportTimeout bounds metric export after a run, including a cancelled one.
const exportTimeout = 10 * time.Second

// collectOptions holds the collect flags.
type collectOptions struct {
	owner       string
	repos       []string
	skipForks   bool
	output      string
	geocoder    string
	noCache     bool
	dryRun      bool
	pushgateway string
	textfile    string
}

// collectCommand creates the collect command.
func (c *CLI) collectCommand() *cobra.Command {
	var opts collectOptions

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Resolve dependents' locations and update the artifact",
		Long: `Collect walks the dependents of the owner's repositories, resolves each
dependent account's profile location, geocodes it and saves the usages.

The prior artifact is loaded first: accounts and locations it already holds
are not looked up again. Rate limits are waited out, however long they take.`,
		Example: `  depglobe collect --owner matzehuels
  depglobe collect --repo pallets/flask --repo psf/requests -o flask.json
  GH_TOKEN=... depglobe collect --geocoder mapbox --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.runCollect(cmd.Context(), cfg, opts.dryRun)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.owner, "owner", "", "account whose repositories are collected (GH_USER)")
	f.StringSliceVar(&opts.repos, "repo", nil, "explicit owner/name repository (repeatable)")
	f.BoolVar(&opts.skipForks, "skip-forks", false, "skip forked repositories")
	f.StringVarP(&opts.output, "output", "o", "", "artifact path (DEPGLOBE_OUTPUT)")
	f.StringVar(&opts.geocoder, "geocoder", "", "geocoding provider: nominatim or mapbox")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the dependents page cache")
	f.BoolVar(&opts.dryRun, "dry-run", false, "resolve everything but do not save")
	f.StringVar(&opts.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL (PUSHGATEWAY_URL)")
	f.StringVar(&opts.textfile, "textfile", "", "write metrics to this file for the node_exporter textfile collector")

	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (o *collectOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("owner") {
		cfg.Owner = o.owner
	}
	if f.Changed("repo") {
		cfg.Repos = o.repos
	}
	if f.Changed("skip-forks") {
		cfg.SkipForks = o.skipForks
	}
	if f.Changed("output") {
		cfg.Store.Path = o.output
	}
	if f.Changed("geocoder") {
		cfg.Geocoder.Provider = o.geocoder
	}
	if o.noCache {
		cfg.Cache.Backend = config.CacheNone
	}
	if f.Changed("pushgateway") {
		cfg.Metrics.PushgatewayURL = o.pushgateway
	}
	if f.Changed("textfile") {
		cfg.Metrics.Textfile = o.textfile
	}
}

// runCollect wires the backends selected by cfg into one pipeline run.
func (c *CLI) runCollect(ctx context.Context, cfg *config.Config, dryRun bool) error {
	logger := c.Logger
	runID := uuid.NewString()

	rec := metrics.New()
	rec.SetRunID(runID)
	observability.SetPipelineHooks(rec)
	observability.SetCacheHooks(rec)
	observability.SetHTTPHooks(rec)
	defer observability.Reset()

	pageCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer pageCache.Close()

	store, err := newStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	geocoder, err := newGeocoder(cfg.Geocoder)
	if err != nil {
		return err
	}

	ctrl := backoff.New(cfg.Backoff.Padding, logger)
	if cfg.Token == "" {
		logger.Warn("GH_TOKEN not set, GitHub API rate limits are low")
	}
	gh := github.NewClientWithBaseURL(cfg.Token, cfg.GitHubAPI)
	scraper, err := dependents.NewClient(dependents.Options{
		Cache:    pageCache,
		TTL:      cfg.Cache.TTL,
		MaxPages: cfg.Dependents.MaxPages,
		Backoff:  ctrl,
		BaseURL:  cfg.Dependents.BaseURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Config{
		Options: pipeline.Options{
			Owner:           cfg.Owner,
			Repos:           cfg.Repos,
			SkipForks:       cfg.SkipForks,
			DryRun:          dryRun,
			GeocodeAttempts: cfg.Geocoder.Attempts,
			GeocodeDelay:    cfg.Geocoder.Delay,
			RunID:           runID,
			Logger:          logger,
		},
		Repositories: gh,
		Dependents:   scraper,
		Accounts:     gh,
		Geocoder:     geocoder,
		Store:        store,
		Backoff:      ctrl,
	})
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	result, runErr := p.Run(ctx)
	c.exportMetrics(ctx, rec, cfg.Metrics, runID)
	if runErr != nil {
		return runErr
	}
	prog.done("Collection finished")

	printSummary(result, p.Prior(), storeDest(cfg.Store), dryRun)
	return nil
}

// exportMetrics pushes and writes the run's metrics. Failures are reported
// but never fail the run; the artifact is already saved.
func (c *CLI) exportMetrics(ctx context.Context, rec *metrics.Recorder, cfg config.MetricsConfig, runID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
	defer cancel()

	if cfg.PushgatewayURL != "" {
		if err := rec.Push(ctx, cfg.PushgatewayURL, cfg.Job, runID); err != nil {
			printWarning("Push metrics to %s: %v", cfg.PushgatewayURL, err)
		} else {
			c.Logger.Debug("metrics pushed", "url", cfg.PushgatewayURL, "job", cfg.Job)
		}
	}
	if cfg.Textfile != "" {
		if err := rec.WriteTextfile(cfg.Textfile); err != nil {
			printWarning("Write metrics to %s: %v", cfg.Textfile, err)
		} else {
			c.Logger.Debug("metrics written", "path", cfg.Textfile)
		}
	}
}
