// Package backoff absorbs rate limits and transient failures from the
// directory service and the geocoding providers.
//
// # Overview
//
// Two retry shapes are provided:
//
//   - [Controller.Do]: unbounded sleep-and-retry on [errors.RateLimitedError].
//     A long batch job favors eventual completion over giving up, so the
//     loop runs until the quota window resets.
//   - [Controller.Retry]: bounded retry with a fixed delay for errors wrapped
//     with [Retryable], such as geocoder timeouts.
//
// They compose; the geocode cache wraps Do inside Retry so a provider can
// both time out and run out of quota during the same lookup:
//
//	err := ctrl.Retry(ctx, 5, time.Second, func() error {
//	    return ctrl.Do(ctx, func() error {
//	        coords, found, err = geocoder.Geocode(ctx, query)
//	        if errors.Is(err, errors.ErrCodeTimeout) {
//	            return backoff.Retryable(err)
//	        }
//	        return err
//	    })
//	})
//
// # Wait Duration
//
// [Controller.Wait] picks the sleep for a rate-limit signal:
//
//   - RetryAfter + Padding when the server sent an explicit retry-after
//   - Reset - now + Padding when it sent a window reset timestamp
//   - never less than one second
//
// Padding defaults to five seconds to absorb clock skew between this host and
// the API.
//
// # Testing
//
// The Now and Sleep fields replace the wall clock and the blocking sleep, so
// tests can assert on computed waits without actually sleeping.
//
// [errors.RateLimitedError]: github.com/matzehuels/depglobe/pkg/errors.RateLimitedError
package backoff
