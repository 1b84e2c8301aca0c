package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/depglobe/pkg/cache"
	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/observability"
)

// Client provides shared HTTP functionality for all upstream clients.
// It handles response caching, status mapping and common request headers.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	ttl     time.Duration
	headers map[string]string
	now     func() time.Time
}

// NewClient creates a Client with the given cache and default headers.
// Headers are applied to all requests made through this client.
// Pass nil for c to disable caching and nil for headers if none are needed.
func NewClient(c cache.Cache, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   c,
		ttl:     ttl,
		headers: headers,
		now:     time.Now,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) {
	if h != nil {
		c.http = h
	}
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, url, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return c.classify(ctx, err, "decode %s", url)
	}
	return nil
}

// GetText performs an HTTP GET request and returns the response body as a string.
// Used for HTML pages such as the dependents network.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.doRequest(ctx, url, nil)
	if err != nil {
		return "", err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return "", c.classify(ctx, err, "read %s", url)
	}
	return string(data), nil
}

// CachedText is GetText behind the client's cache. Only successful
// responses are stored, under cache.HTTPKey(namespace, url).
func (c *Client) CachedText(ctx context.Context, namespace, url string) (string, error) {
	key := cache.HTTPKey(namespace, url)
	if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, observability.KeyHTTP)
		return string(data), nil
	}
	observability.Cache().OnCacheMiss(ctx, observability.KeyHTTP)

	text, err := c.GetText(ctx, url)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, []byte(text), c.ttl); err == nil {
		observability.Cache().OnCacheSet(ctx, observability.KeyHTTP, len(text))
	}
	return text, nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, deperrors.Wrap(deperrors.ErrCodeInvalidInput, err, "build request")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := req.URL.Host, req.URL.Path
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, host, path)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = c.classify(ctx, err, "GET %s", redact(req.URL))
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp, c.now()); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// classify maps transport failures onto error codes. Cancellation is
// returned as is so callers can recognise context.Canceled.
func (c *Client) classify(ctx context.Context, err error, format string, args ...any) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	var ne net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())

	// *url.Error repeats the full URL, query string included.
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	if timeout {
		return deperrors.Wrap(deperrors.ErrCodeTimeout, err, format, args...)
	}
	return deperrors.Wrap(deperrors.ErrCodeNetwork, err, format, args...)
}

// redact drops the query string, which may carry access tokens.
func redact(u *url.URL) string {
	cp := *u
	cp.RawQuery = ""
	return cp.String()
}
