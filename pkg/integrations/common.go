package integrations

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/depglobe/pkg/buildinfo"
	deperrors "github.com/matzehuels/depglobe/pkg/errors"
)

const httpTimeout = 10 * time.Second

// maxErrorBody bounds how much of an error response is quoted in messages.
const maxErrorBody = 512

// UserAgent identifies depglobe to upstream services.
var UserAgent = "depglobe/" + buildinfo.Version + " (+https://github.com/matzehuels/depglobe)"

// NewHTTPClient creates an HTTP client with a standard timeout for upstream requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }

func checkStatus(resp *http.Response, now time.Time) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return RateLimit(resp.Header, now, errorBody(resp))
	case code == http.StatusForbidden && isQuotaExhausted(resp.Header):
		return RateLimit(resp.Header, now, errorBody(resp))
	case code == http.StatusNotFound:
		return deperrors.New(deperrors.ErrCodeNotFound, "status %d: %s", code, errorBody(resp))
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return deperrors.New(deperrors.ErrCodeInvalidInput, "status %d: %s", code, errorBody(resp))
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return deperrors.New(deperrors.ErrCodeUnauthorized, "status %d: %s", code, errorBody(resp))
	default:
		return deperrors.New(deperrors.ErrCodeNetwork, "status %d: %s", code, errorBody(resp))
	}
}

func isQuotaExhausted(h http.Header) bool {
	return h.Get("X-RateLimit-Remaining") == "0" || h.Get("Retry-After") != ""
}

// RateLimit builds a RateLimitedError from response headers.
//
// Retry-After may be delta seconds or an HTTP date; X-RateLimit-Reset and
// X-Rate-Limit-Reset are unix seconds. Dates are converted to a duration
// relative to now only when they come from Retry-After.
func RateLimit(h http.Header, now time.Time, message string) *deperrors.RateLimitedError {
	rl := &deperrors.RateLimitedError{Message: message}
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			rl.RetryAfter = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(v); err == nil {
			rl.RetryAfter = max(t.Sub(now), 0)
		}
	}
	for _, name := range []string{"X-RateLimit-Reset", "X-Rate-Limit-Reset"} {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
				rl.Reset = time.Unix(secs, 0)
				break
			}
		}
	}
	return rl
}

func errorBody(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return http.StatusText(resp.StatusCode)
	}
	return msg
}
