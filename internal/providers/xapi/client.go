package xapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/moltworks/molt-oracle/internal/adapter"
)

// ErrNotConfigured is returned when no bearer token is configured
var ErrNotConfigured = errors.New("X API not configured")

// ErrUserNotFound is returned when the handle does not resolve to a user
var ErrUserNotFound = errors.New("X user not found")

type userResponse struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
}

type tweetsResponse struct {
	Data []struct {
		Text string `json:"text"`
	} `json:"data"`
	Detail string `json:"detail"`
}

// Client defines the interface for social-post search to enable mocking
//
//go:generate mockgen -source=client.go -destination=../../mocks/xapi_client.go -package=mocks -mock_names=Client=MockXClient
type Client interface {
	// FindPostContaining reports whether the handle's recent posts include
	// one containing the exact code. A (false, nil) result means the lookup
	// succeeded but no post matched.
	FindPostContaining(ctx context.Context, handle, code string) (bool, error)
}

// XClient implements the X API v2 client
type XClient struct {
	httpClient  adapter.HTTPClient
	apiURL      string
	bearerToken string
	json        adapter.JSON
}

// NewClient creates a new X client
func NewClient(httpClient adapter.HTTPClient, apiURL string, bearerToken string, json adapter.JSON) Client {
	return &XClient{
		httpClient:  httpClient,
		apiURL:      apiURL,
		bearerToken: bearerToken,
		json:        json,
	}
}

// NormalizeHandle strips a leading @ and lowercases the handle
func NormalizeHandle(raw string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@")))
}

// FindPostContaining looks up the user by handle, fetches their recent posts
// and scans for one containing the exact code
func (c *XClient) FindPostContaining(ctx context.Context, handle, code string) (bool, error) {
	if c.bearerToken == "" {
		return false, ErrNotConfigured
	}

	h := NormalizeHandle(handle)
	if h == "" {
		return false, ErrUserNotFound
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.bearerToken,
	}

	userURL := fmt.Sprintf("%s/users/by/username/%s", c.apiURL, url.PathEscape(h))
	userBody, err := c.httpClient.GetBytes(ctx, userURL, headers)
	if err != nil {
		var statusErr *adapter.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to look up X user: %w", err)
	}

	var user userResponse
	if err := c.json.Unmarshal(userBody, &user); err != nil {
		return false, fmt.Errorf("failed to unmarshal X user response: %w", err)
	}
	if user.Data == nil || user.Data.ID == "" {
		return false, ErrUserNotFound
	}

	tweetsURL := fmt.Sprintf("%s/users/%s/tweets?max_results=50&tweet.fields=text,created_at", c.apiURL, user.Data.ID)
	tweetsBody, err := c.httpClient.GetBytes(ctx, tweetsURL, headers)
	if err != nil {
		return false, fmt.Errorf("failed to fetch posts: %w", err)
	}

	var tweets tweetsResponse
	if err := c.json.Unmarshal(tweetsBody, &tweets); err != nil {
		return false, fmt.Errorf("failed to unmarshal posts response: %w", err)
	}

	for _, t := range tweets.Data {
		if strings.Contains(t.Text, code) {
			return true, nil
		}
	}
	return false, nil
}
