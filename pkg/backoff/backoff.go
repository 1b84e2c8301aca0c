package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/observability"
)

const (
	// DefaultPadding is added to every rate-limit wait.
	DefaultPadding = 5 * time.Second

	// minWait is the floor for any rate-limit wait.
	minWait = time.Second
)

// Controller wraps calls to external APIs and sleeps through rate limits.
// It is not safe for concurrent use; depglobe drives it from one goroutine.
type Controller struct {
	// Padding is added to the wait computed from rate-limit metadata.
	Padding time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Sleep blocks for d or until ctx is done. Defaults to a timer select.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *log.Logger
}

// New creates a Controller with the given padding. A negative padding is
// treated as zero. If logger is nil, log.Default() is used.
func New(padding time.Duration, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		Padding: max(padding, 0),
		Now:     time.Now,
		Sleep:   sleep,
		Logger:  logger,
	}
}

// Do calls fn until it returns something other than a rate-limit error.
// Rate-limit errors are never returned; every other error, and nil, is
// returned unchanged. Do returns ctx.Err() if the context is cancelled while
// waiting.
func (c *Controller) Do(ctx context.Context, fn func() error) error {
	for {
		err := fn()
		rl, ok := deperrors.AsRateLimited(err)
		if !ok {
			return err
		}

		wait := c.Wait(rl)
		c.logger().Warn("rate limited, waiting", "wait", wait, "reason", rl.Error())
		observability.Pipeline().OnRateLimit(ctx, wait)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Call is the value-returning form of [Controller.Do].
func Call[T any](ctx context.Context, c *Controller, fn func() (T, error)) (T, error) {
	var v T
	err := c.Do(ctx, func() error {
		var err error
		v, err = fn()
		return err
	})
	return v, err
}

// Wait returns how long to sleep before retrying after rl.
func (c *Controller) Wait(rl *deperrors.RateLimitedError) time.Duration {
	var d time.Duration
	switch {
	case rl.RetryAfter > 0:
		d = rl.RetryAfter + c.Padding
	case !rl.Reset.IsZero():
		d = rl.Reset.Sub(c.now()) + c.Padding
	default:
		d = c.Padding
	}
	return max(d, minWait)
}

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (geocoder timeouts) with this type so that
// [Controller.Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps an error as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable checks if an error is wrapped with RetryableError.
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Retry executes fn up to attempts times, sleeping delay between attempts.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. Returns the last error if all attempts fail, or
// ctx.Err() if cancelled.
func (c *Controller) Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			c.logger().Debug("retrying", "attempt", i+2, "of", attempts, "error", lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func (c *Controller) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep == nil {
		return sleep(ctx, d)
	}
	return c.Sleep(ctx, d)
}

func (c *Controller) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
