package github

import (
	"context"
	"fmt"

	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/integrations"
)

const (
	defaultBaseURL = "https://api.github.com"
	perPage        = 100

	// maxRepoPages stops pagination on a misbehaving server.
	maxRepoPages = 50
)

// Client provides access to the GitHub REST API.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a GitHub API client with optional authentication.
// Pass an empty string for token to use unauthenticated requests (lower rate limits).
func NewClient(token string) *Client {
	return NewClientWithBaseURL(token, defaultBaseURL)
}

// NewClientWithBaseURL creates a client against a different API root, such
// as GitHub Enterprise or a test server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
		"User-Agent":           integrations.UserAgent,
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return &Client{
		Client:  integrations.NewClient(nil, 0, headers),
		baseURL: baseURL,
	}
}

// User fetches the public profile of login.
func (c *Client) User(ctx context.Context, login string) (*User, error) {
	if err := deperrors.ValidateAccountName(login); err != nil {
		return nil, err
	}
	var u User
	url := fmt.Sprintf("%s/users/%s", c.baseURL, login)
	if err := c.Get(ctx, url, &u); err != nil {
		return nil, fmt.Errorf("github user %s: %w", login, err)
	}
	return &u, nil
}

// Repos lists the repositories owned by owner, following pagination until
// a short page.
func (c *Client) Repos(ctx context.Context, owner string) ([]Repo, error) {
	if err := deperrors.ValidateAccountName(owner); err != nil {
		return nil, err
	}

	var all []Repo
	for page := 1; page <= maxRepoPages; page++ {
		url := fmt.Sprintf("%s/users/%s/repos?type=owner&sort=full_name&per_page=%d&page=%d",
			c.baseURL, owner, perPage, page)

		var repos []Repo
		if err := c.Get(ctx, url, &repos); err != nil {
			return nil, fmt.Errorf("github repos of %s (page %d): %w", owner, page, err)
		}
		all = append(all, repos...)
		if len(repos) < perPage {
			break
		}
	}
	return all, nil
}
