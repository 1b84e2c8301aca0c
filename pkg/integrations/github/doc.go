// Package github provides an HTTP client for the GitHub REST API.
//
// # Overview
//
// depglobe needs two things from GitHub (https://api.github.com): the
// repositories owned by an account, and each dependent account's profile,
// whose free-text location field is what gets geocoded.
//
// # Usage
//
//	client := github.NewClient(token)
//
//	repos, err := client.Repos(ctx, "matzehuels")
//	user, err := client.User(ctx, "octocat")
//	fmt.Println(user.Location)
//
// # Authentication
//
// A personal access token is optional but recommended. Without a token the
// API allows 60 requests per hour; with one, 5000.
//
// # Rate Limits
//
// An exhausted quota is returned as an [errors.RateLimitedError] carrying
// the X-RateLimit-Reset timestamp. The client never waits on its own.
//
// [errors.RateLimitedError]: github.com/matzehuels/depglobe/pkg/errors.RateLimitedError
package github
