package dependents

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depglobe/pkg/backoff"
	"github.com/matzehuels/depglobe/pkg/cache"
	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/integrations"
)

const (
	defaultBaseURL = "https://github.com"

	// DefaultMaxPages bounds how many pages of one package are walked.
	// GitHub shows 30 dependents per page.
	DefaultMaxPages = 100

	cacheNamespace = "dependents"
)

// Options configures a Client.
type Options struct {
	Cache    cache.Cache         // page cache; nil disables caching
	TTL      time.Duration       // page TTL
	MaxPages int                 // per package; 0 means DefaultMaxPages
	Backoff  *backoff.Controller // per-page rate-limit handling; nil returns rate limits to the caller
	BaseURL  string              // defaults to https://github.com
	Logger   *log.Logger
}

// Client reads dependents network pages.
type Client struct {
	*integrations.Client
	base     *url.URL
	maxPages int
	backoff  *backoff.Controller
	logger   *log.Logger
}

// NewClient creates a dependents scraper.
func NewClient(opts Options) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = defaultBaseURL
	}
	if err := deperrors.ValidateURL(raw); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/") + "/")
	if err != nil {
		return nil, deperrors.Wrap(deperrors.ErrCodeInvalidConfig, err, "dependents base URL")
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	headers := map[string]string{
		"Accept":     "text/html",
		"User-Agent": integrations.UserAgent,
	}
	return &Client{
		Client:   integrations.NewClient(opts.Cache, opts.TTL, headers),
		base:     base,
		maxPages: maxPages,
		backoff:  opts.Backoff,
		logger:   logger,
	}, nil
}

// Packages lists the packages a repository publishes. A repository without
// a package selector yields one Package with an empty ID.
func (c *Client) Packages(ctx context.Context, repo string) ([]Package, error) {
	u, err := c.dependentsURL(repo)
	if err != nil {
		return nil, err
	}
	p, err := c.page(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("dependents of %s: %w", repo, err)
	}
	if len(p.packages) == 0 {
		return []Package{{}}, nil
	}
	return p.packages, nil
}

// Dependents lists the public dependent repositories of one package,
// following "Next" links for at most MaxPages pages.
func (c *Client) Dependents(ctx context.Context, repo string, pkg Package) ([]Dependent, error) {
	u, err := c.dependentsURL(repo)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("dependent_type", "REPOSITORY")
	if pkg.ID != "" {
		q.Set("package_id", pkg.ID)
	}
	u.RawQuery = q.Encode()

	var all []Dependent
	next := u.String()
	for n := 1; next != ""; n++ {
		if n > c.maxPages {
			c.logger.Warn("dependents truncated", "repo", repo, "package", pkg.Name, "pages", c.maxPages)
			break
		}
		p, err := c.page(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("dependents of %s (page %d): %w", repo, n, err)
		}
		all = append(all, p.dependents...)
		next = p.next
	}
	return all, nil
}

func (c *Client) page(ctx context.Context, rawURL string) (*page, error) {
	fetch := func() (string, error) { return c.CachedText(ctx, cacheNamespace, rawURL) }

	var body string
	var err error
	if c.backoff != nil {
		body, err = backoff.Call(ctx, c.backoff, fetch)
	} else {
		body, err = fetch()
	}
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	p, err := parsePage(strings.NewReader(body), base)
	if err != nil {
		return nil, deperrors.Wrap(deperrors.ErrCodeNetwork, err, "parse %s", rawURL)
	}
	return p, nil
}

func (c *Client) dependentsURL(repo string) (*url.URL, error) {
	owner, name, err := deperrors.ValidateRepoRef(repo)
	if err != nil {
		return nil, err
	}
	return c.base.Parse(owner + "/" + name + "/network/dependents")
}
