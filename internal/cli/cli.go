// Package cli implements the depglobe command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depglobe/internal/config"
	"github.com/matzehuels/depglobe/pkg/buildinfo"
	"github.com/matzehuels/depglobe/pkg/cache"
	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/geocode"
	"github.com/matzehuels/depglobe/pkg/integrations/mapbox"
	"github.com/matzehuels/depglobe/pkg/integrations/nominatim"
	"github.com/matzehuels/depglobe/pkg/usage"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "depglobe"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "depglobe maps where the dependents of your repositories live",
		Long: `depglobe walks the GitHub dependents of an account's repositories, resolves
each dependent owner's profile location to coordinates, and keeps the result
as a GeoJSON FeatureCollection. Runs are incremental: accounts and locations
already in the artifact cost no requests.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")

	root.AddCommand(c.collectCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// loadConfig reads the layered configuration. Flags are applied by the caller.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("config loaded", "path", c.configPath, "store", cfg.Store.Backend, "cache", cfg.Cache.Backend, "geocoder", cfg.Geocoder.Provider)
	return cfg, nil
}

// =============================================================================
// Backend Factories
// =============================================================================

// newCache opens the dependents page cache selected by cfg.
func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		c, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return cache.NewScoped(c, appName+":"), nil
	default:
		dir, err := fileCacheDir(cfg)
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	}
}

// newStore opens the artifact store selected by cfg.
func newStore(ctx context.Context, cfg config.StoreConfig, logger *log.Logger) (usage.Store, error) {
	if cfg.Backend == config.StoreMongo {
		return usage.NewMongoStore(ctx, cfg.MongoURI, cfg.Database, filepath.Base(cfg.Path), logger)
	}
	return usage.NewFileStore(cfg.Path, logger), nil
}

// storeDest describes where newStore saves the artifact. The MongoDB URI is
// left out since it may carry credentials.
func storeDest(cfg config.StoreConfig) string {
	if cfg.Backend == config.StoreMongo {
		database := cfg.Database
		if database == "" {
			database = usage.DefaultDatabase
		}
		return fmt.Sprintf("mongodb %s.%s/%s", database, usage.DefaultCollection, filepath.Base(cfg.Path))
	}
	return cfg.Path
}

// newGeocoder builds the geocoding provider selected by cfg.
func newGeocoder(cfg config.GeocoderConfig) (geocode.Geocoder, error) {
	switch cfg.Provider {
	case config.GeocoderNominatim:
		return nominatim.NewClient(cfg.URL, cfg.Interval), nil
	case config.GeocoderMapbox:
		return mapbox.NewClient(cfg.MapboxToken, cfg.URL, cfg.Interval)
	}
	return nil, deperrors.New(deperrors.ErrCodeInvalidConfig, "unknown geocoder %q", cfg.Provider)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/depglobe/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
