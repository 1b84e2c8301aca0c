// Package integrations provides the HTTP plumbing shared by depglobe's
// upstream clients.
//
// # Overview
//
// Each upstream has its own subpackage:
//
//   - [github]: GitHub REST API (account profiles, repository listings)
//   - [dependents]: GitHub's dependents network pages (HTML)
//   - [nominatim]: OpenStreetMap Nominatim geocoder
//   - [mapbox]: Mapbox geocoding v6
//
// # Client Pattern
//
// All clients embed [Client], which applies default headers, maps HTTP
// status codes onto [errors.Code] values and reports every request to the
// registered [observability.HTTPHooks]:
//
//	client := integrations.NewClient(nil, 0, map[string]string{"Accept": "application/json"})
//	var v struct{ Login string }
//	err := client.Get(ctx, "https://api.github.com/users/octocat", &v)
//
// # Rate Limits
//
// HTTP 429, and HTTP 403 carrying exhausted-quota headers, become an
// [errors.RateLimitedError] populated from Retry-After or X-RateLimit-Reset.
// Clients never sleep themselves; callers wrap them in a backoff controller.
//
// # Timeouts
//
// A client timeout or an expired request deadline is reported with
// [errors.ErrCodeTimeout] so geocoders can retry it a bounded number of times.
//
// [github]: github.com/matzehuels/depglobe/pkg/integrations/github
// [dependents]: github.com/matzehuels/depglobe/pkg/integrations/dependents
// [nominatim]: github.com/matzehuels/depglobe/pkg/integrations/nominatim
// [mapbox]: github.com/matzehuels/depglobe/pkg/integrations/mapbox
// [errors.Code]: github.com/matzehuels/depglobe/pkg/errors.Code
// [errors.RateLimitedError]: github.com/matzehuels/depglobe/pkg/errors.RateLimitedError
// [errors.ErrCodeTimeout]: github.com/matzehuels/depglobe/pkg/errors.ErrCodeTimeout
// [observability.HTTPHooks]: github.com/matzehuels/depglobe/pkg/observability.HTTPHooks
package integrations
