package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	deperrors "github.com/matzehuels/depglobe/pkg/errors"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Store.Backend != StoreFile || cfg.Store.Path != "global_usage.json" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Geocoder.Provider != GeocoderNominatim {
		t.Errorf("Geocoder.Provider = %q, want %q", cfg.Geocoder.Provider, GeocoderNominatim)
	}
	if cfg.Backoff.Padding != 5*time.Second {
		t.Errorf("Backoff.Padding = %v, want 5s", cfg.Backoff.Padding)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "depglobe.toml", `
owner = "octocat"
repos = ["octocat/hello-world"]
skip_forks = true

[store]
path = "out.json"

[cache]
backend = "none"
ttl = "1h"

[geocoder]
provider = "mapbox"
mapbox_token = "pk.test"
interval = "250ms"

[backoff]
padding = "2s"
`)

	cfg, err := load(path, filepath.Join(dir, ".env"), env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Owner != "octocat" || !cfg.SkipForks {
		t.Errorf("Owner = %q, SkipForks = %v", cfg.Owner, cfg.SkipForks)
	}
	if !slices.Equal(cfg.Repos, []string{"octocat/hello-world"}) {
		t.Errorf("Repos = %v", cfg.Repos)
	}
	if cfg.Store.Path != "out.json" || cfg.Store.Backend != StoreFile {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Cache.Backend != CacheNone || cfg.Cache.TTL != time.Hour {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Geocoder.Interval != 250*time.Millisecond || cfg.Geocoder.MapboxToken != "pk.test" {
		t.Errorf("Geocoder = %+v", cfg.Geocoder)
	}
	if cfg.Backoff.Padding != 2*time.Second {
		t.Errorf("Backoff.Padding = %v, want 2s", cfg.Backoff.Padding)
	}
	// Unset keys keep their defaults.
	if cfg.Dependents.MaxPages != 100 {
		t.Errorf("Dependents.MaxPages = %d, want 100", cfg.Dependents.MaxPages)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := load(filepath.Join(dir, "nope.toml"), filepath.Join(dir, ".env"), env(nil))
	if !deperrors.Is(err, deperrors.ErrCodeInvalidConfig) {
		t.Errorf("explicit missing file: err = %v, want INVALID_CONFIG", err)
	}

	t.Chdir(dir)
	cfg, err := load("", filepath.Join(dir, ".env"), env(nil))
	if err != nil {
		t.Fatalf("implicit missing file: %v", err)
	}
	if cfg.Owner != "" {
		t.Errorf("Owner = %q, want empty", cfg.Owner)
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.toml", "owner = [")

	if _, err := load(path, filepath.Join(dir, ".env"), env(nil)); !deperrors.Is(err, deperrors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "depglobe.toml", `owner = "from-file"`)

	cfg, err := load(path, filepath.Join(dir, ".env"), env(map[string]string{
		"GH_USER":             "from-env",
		"GH_TOKEN":            " ghp_x ",
		"MAPBOX_TOKEN":        "pk.y",
		"DEPGLOBE_OUTPUT":     "usage.json",
		"DEPGLOBE_REPOS":      "a/b, c/d,,",
		"DEPGLOBE_SKIP_FORKS": "true",
		"REDIS_URL":           "redis://localhost:6379/0",
		"MONGODB_URI":         "mongodb://localhost:27017",
		"PUSHGATEWAY_URL":     "http://localhost:9091",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Owner != "from-env" {
		t.Errorf("Owner = %q, want from-env", cfg.Owner)
	}
	if cfg.Token != "ghp_x" {
		t.Errorf("Token = %q, want trimmed ghp_x", cfg.Token)
	}
	if cfg.Store.Path != "usage.json" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if !slices.Equal(cfg.Repos, []string{"a/b", "c/d"}) {
		t.Errorf("Repos = %v", cfg.Repos)
	}
	if !cfg.SkipForks {
		t.Error("SkipForks = false, want true")
	}
	if cfg.Cache.Backend != CacheRedis || cfg.Cache.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Store.Backend != StoreMongo || cfg.Store.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Metrics.PushgatewayURL != "http://localhost:9091" {
		t.Errorf("Metrics.PushgatewayURL = %q", cfg.Metrics.PushgatewayURL)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "GH_USER=dotenv-user\nGH_TOKEN=dotenv-token\n")
	path := writeFile(t, dir, "depglobe.toml", "")

	cfg, err := load(path, envFile, env(map[string]string{"GH_TOKEN": "real-token"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Owner != "dotenv-user" {
		t.Errorf("Owner = %q, want dotenv-user", cfg.Owner)
	}
	// The real environment wins over .env.
	if cfg.Token != "real-token" {
		t.Errorf("Token = %q, want real-token", cfg.Token)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid owner", func(c *Config) {}, false},
		{"explicit repos without owner", func(c *Config) { c.Owner = ""; c.Repos = []string{"a/b"} }, false},
		{"missing owner", func(c *Config) { c.Owner = "" }, true},
		{"invalid owner", func(c *Config) { c.Owner = "-bad" }, true},
		{"invalid repo", func(c *Config) { c.Repos = []string{"nope"} }, true},
		{"unknown store", func(c *Config) { c.Store.Backend = "s3" }, true},
		{"mongo without uri", func(c *Config) { c.Store.Backend = StoreMongo }, true},
		{"empty path", func(c *Config) { c.Store.Path = "" }, true},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"redis without url", func(c *Config) { c.Cache.Backend = CacheRedis }, true},
		{"unknown geocoder", func(c *Config) { c.Geocoder.Provider = "google" }, true},
		{"mapbox without token", func(c *Config) { c.Geocoder.Provider = GeocoderMapbox }, true},
		{"mapbox with token", func(c *Config) {
			c.Geocoder.Provider = GeocoderMapbox
			c.Geocoder.MapboxToken = "pk.x"
		}, false},
		{"bad pushgateway", func(c *Config) { c.Metrics.PushgatewayURL = "localhost:9091" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Owner = "octocat"
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
