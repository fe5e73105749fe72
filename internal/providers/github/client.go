package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/moltworks/molt-oracle/internal/adapter"
)

// ErrNotPullRequestURL is returned for URLs that do not point at a pull request
var ErrNotPullRequestURL = errors.New("not a GitHub pull request URL")

// ErrPullRequestNotFound is returned when the pull request does not exist
var ErrPullRequestNotFound = errors.New("pull request not found")

var prURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// PullRequest holds the subset of the GitHub API response the oracle cares about
type PullRequest struct {
	State    string  `json:"state"`
	MergedAt *string `json:"merged_at"`
	Title    string  `json:"title"`
}

// Merged reports whether the pull request is closed with a merge timestamp
func (pr *PullRequest) Merged() bool {
	return pr.State == "closed" && pr.MergedAt != nil && *pr.MergedAt != ""
}

// Client defines the interface for code-host PR lookups to enable mocking
//
//go:generate mockgen -source=client.go -destination=../../mocks/github_client.go -package=mocks -mock_names=Client=MockGitHubClient
type Client interface {
	// GetPullRequest fetches a pull request by owner, repo and number
	GetPullRequest(ctx context.Context, owner, repo, number string) (*PullRequest, error)
}

// GitHubClient implements the GitHub REST v3 client
type GitHubClient struct {
	httpClient adapter.HTTPClient
	apiURL     string
	token      string
	json       adapter.JSON
}

// NewClient creates a new GitHub client. token is optional; when set it
// raises the unauthenticated rate limit.
func NewClient(httpClient adapter.HTTPClient, apiURL string, token string, json adapter.JSON) Client {
	return &GitHubClient{
		httpClient: httpClient,
		apiURL:     apiURL,
		token:      token,
		json:       json,
	}
}

// ParsePullRequestURL extracts owner, repo and number from a PR URL
func ParsePullRequestURL(url string) (owner, repo, number string, err error) {
	m := prURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", "", ErrNotPullRequestURL
	}
	return m[1], m[2], m[3], nil
}

// GetPullRequest fetches a pull request by owner, repo and number
func (c *GitHubClient) GetPullRequest(ctx context.Context, owner, repo, number string) (*PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%s", c.apiURL, owner, repo, number)

	headers := map[string]string{
		"Accept": "application/vnd.github.v3+json",
	}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	respBody, err := c.httpClient.GetBytes(ctx, url, headers)
	if err != nil {
		var statusErr *adapter.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, ErrPullRequestNotFound
		}
		return nil, fmt.Errorf("failed to call GitHub API: %w", err)
	}

	var pr PullRequest
	if err := c.json.Unmarshal(respBody, &pr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GitHub response: %w", err)
	}

	return &pr, nil
}
