// Package config loads depglobe's settings.
//
// Settings are layered, later layers winning:
//
//  1. Defaults ([Default])
//  2. A TOML file: the --config path, or depglobe.toml in the working
//     directory when present
//  3. Environment variables, with a .env file filling in unset ones
//  4. Command-line flags, applied by the CLI after Load
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	deperrors "github.com/matzehuels/depglobe/pkg/errors"
)

// DefaultFile is the config file picked up from the working directory.
const DefaultFile = "depglobe.toml"

// Backends and providers.
const (
	StoreFile  = "file"
	StoreMongo = "mongo"

	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"

	GeocoderNominatim = "nominatim"
	GeocoderMapbox    = "mapbox"
)

// Config is the complete configuration of a depglobe invocation.
type Config struct {
	Owner     string   `toml:"owner"`
	Token     string   `toml:"token"`
	Repos     []string `toml:"repos"`
	SkipForks bool     `toml:"skip_forks"`
	GitHubAPI string   `toml:"github_api"`

	Store      StoreConfig      `toml:"store"`
	Cache      CacheConfig      `toml:"cache"`
	Geocoder   GeocoderConfig   `toml:"geocoder"`
	Dependents DependentsConfig `toml:"dependents"`
	Backoff    BackoffConfig    `toml:"backoff"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Serve      ServeConfig      `toml:"serve"`
}

// StoreConfig selects where the artifact lives.
type StoreConfig struct {
	Backend  string `toml:"backend"`
	Path     string `toml:"path"` // file backend; also the artifact name in MongoDB
	MongoURI string `toml:"mongo_uri"`
	Database string `toml:"database"`
}

// CacheConfig selects the response cache for dependents pages.
type CacheConfig struct {
	Backend  string        `toml:"backend"`
	Dir      string        `toml:"dir"` // empty means ~/.cache/depglobe
	RedisURL string        `toml:"redis_url"`
	TTL      time.Duration `toml:"ttl"`
}

// GeocoderConfig selects the geocoding provider.
type GeocoderConfig struct {
	Provider    string        `toml:"provider"`
	URL         string        `toml:"url"`
	MapboxToken string        `toml:"mapbox_token"`
	Interval    time.Duration `toml:"interval"`
	Attempts    int           `toml:"timeout_attempts"`
	Delay       time.Duration `toml:"timeout_delay"`
}

// DependentsConfig tunes the dependents scraper.
type DependentsConfig struct {
	BaseURL  string `toml:"base_url"`
	MaxPages int    `toml:"max_pages"`
}

// BackoffConfig tunes rate-limit handling.
type BackoffConfig struct {
	Padding time.Duration `toml:"padding"`
}

// MetricsConfig controls where run metrics go. Both outputs are optional.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
	Textfile       string `toml:"textfile"`
}

// ServeConfig configures depglobe serve.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:  StoreFile,
			Path:     "global_usage.json",
			Database: "depglobe",
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			TTL:     24 * time.Hour,
		},
		Geocoder: GeocoderConfig{
			Provider: GeocoderNominatim,
			Interval: time.Second,
			Attempts: 5,
			Delay:    time.Second,
		},
		Dependents: DependentsConfig{
			BaseURL:  "https://github.com",
			MaxPages: 100,
		},
		Backoff:   BackoffConfig{Padding: 5 * time.Second},
		Metrics:   MetricsConfig{Job: "depglobe"},
		Serve:     ServeConfig{Addr: ":8080"},
		GitHubAPI: "https://api.github.com",
	}
}

// Load builds a Config from defaults, the TOML file at path (or
// depglobe.toml if path is empty and the file exists), .env and the
// environment. An explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	return load(path, ".env", os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, deperrors.Wrap(deperrors.ErrCodeInvalidConfig, err, "read config %s", path)
		}
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, deperrors.Wrap(deperrors.ErrCodeInvalidConfig, err, "read %s", envFile)
	}
	cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	return cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("GH_TOKEN", &c.Token)
	str("GH_USER", &c.Owner)
	str("MAPBOX_TOKEN", &c.Geocoder.MapboxToken)
	str("DEPGLOBE_OUTPUT", &c.Store.Path)
	str("DEPGLOBE_GEOCODER", &c.Geocoder.Provider)
	str("PUSHGATEWAY_URL", &c.Metrics.PushgatewayURL)

	if v, ok := lookup("DEPGLOBE_REPOS"); ok && strings.TrimSpace(v) != "" {
		c.Repos = splitList(v)
	}
	if v, ok := lookup("DEPGLOBE_SKIP_FORKS"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.SkipForks = b
		}
	}

	// A connection URL implies its backend.
	if v, ok := lookup("REDIS_URL"); ok && strings.TrimSpace(v) != "" {
		c.Cache.RedisURL = strings.TrimSpace(v)
		c.Cache.Backend = CacheRedis
	}
	if v, ok := lookup("MONGODB_URI"); ok && strings.TrimSpace(v) != "" {
		c.Store.MongoURI = strings.TrimSpace(v)
		c.Store.Backend = StoreMongo
	}
}

// Validate checks the configuration a collection run needs.
func (c *Config) Validate() error {
	if len(c.Repos) == 0 {
		if c.Owner == "" {
			return deperrors.New(deperrors.ErrCodeInvalidConfig, "owner is required (set GH_USER, owner in %s, or --owner)", DefaultFile)
		}
		if err := deperrors.ValidateAccountName(c.Owner); err != nil {
			return err
		}
	}
	for _, ref := range c.Repos {
		if _, _, err := deperrors.ValidateRepoRef(ref); err != nil {
			return err
		}
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return deperrors.New(deperrors.ErrCodeInvalidConfig, "redis cache requires redis_url (REDIS_URL)")
		}
	default:
		return deperrors.New(deperrors.ErrCodeInvalidConfig, "unknown cache backend %q (must be file, redis or none)", c.Cache.Backend)
	}

	switch c.Geocoder.Provider {
	case GeocoderNominatim:
	case GeocoderMapbox:
		if c.Geocoder.MapboxToken == "" {
			return deperrors.New(deperrors.ErrCodeInvalidConfig, "mapbox geocoder requires mapbox_token (MAPBOX_TOKEN)")
		}
	default:
		return deperrors.New(deperrors.ErrCodeInvalidConfig, "unknown geocoder %q (must be nominatim or mapbox)", c.Geocoder.Provider)
	}

	if c.Metrics.PushgatewayURL != "" {
		if err := deperrors.ValidateURL(c.Metrics.PushgatewayURL); err != nil {
			return deperrors.Wrap(deperrors.ErrCodeInvalidConfig, err, "pushgateway_url")
		}
	}
	return nil
}

// ValidateStore checks only the store settings, which is all serve needs.
func (c *Config) ValidateStore() error {
	switch c.Store.Backend {
	case StoreFile:
		if c.Store.Path == "" {
			return deperrors.New(deperrors.ErrCodeInvalidConfig, "store path cannot be empty")
		}
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return deperrors.New(deperrors.ErrCodeInvalidConfig, "mongo store requires mongo_uri (MONGODB_URI)")
		}
	default:
		return deperrors.New(deperrors.ErrCodeInvalidConfig, "unknown store backend %q (must be file or mongo)", c.Store.Backend)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
