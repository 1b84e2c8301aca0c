// Package dependents scrapes GitHub's "Used by" network pages.
//
// GitHub exposes the dependents graph only as HTML at
// https://github.com/{owner}/{repo}/network/dependents, so this package
// parses it with golang.org/x/net/html. A repository that publishes several
// packages has a package selector; each package has its own paginated list
// of dependent repositories.
//
//	client := dependents.NewClient(dependents.Options{Cache: c, TTL: 24 * time.Hour})
//	pkgs, err := client.Packages(ctx, "pallets/flask")
//	for _, p := range pkgs {
//	    deps, err := client.Dependents(ctx, "pallets/flask", p)
//	    ...
//	}
//
// Pages are cached under "http:dependents:<url>" keys so that a run
// interrupted by a rate limit does not refetch what it already has.
package dependents
