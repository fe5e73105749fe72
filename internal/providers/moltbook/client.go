package moltbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/moltworks/molt-oracle/internal/adapter"
)

// ErrNotConfigured is returned when no app key is configured
var ErrNotConfigured = errors.New("Moltbook verification not configured")

// ErrTokenRejected is returned when the platform rejects the identity token
var ErrTokenRejected = errors.New("identity token rejected")

// Identity is the platform-attested identity of a token holder
type Identity struct {
	AgentID     string `json:"agentId"`
	DisplayName string `json:"displayName"`
}

type verifyRequest struct {
	Token    string `json:"token"`
	Audience string `json:"audience,omitempty"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Agent *struct {
		ID          string `json:"id"`
		AgentID     string `json:"agentId"`
		DisplayName string `json:"displayName"`
		Name        string `json:"name"`
	} `json:"agent"`
	Error string `json:"error"`
}

// Client defines the interface for platform identity verification to enable mocking
//
//go:generate mockgen -source=client.go -destination=../../mocks/moltbook_client.go -package=mocks -mock_names=Client=MockMoltbookClient
type Client interface {
	// Verify exchanges an identity token for the attested identity.
	// Returns ErrTokenRejected when the platform rejects the token.
	Verify(ctx context.Context, token string) (*Identity, error)
}

// MoltbookClient implements the Moltbook identity verification client
type MoltbookClient struct {
	httpClient adapter.HTTPClient
	verifyURL  string
	appKey     string
	audience   string
	json       adapter.JSON
}

// NewClient creates a new Moltbook client
func NewClient(httpClient adapter.HTTPClient, verifyURL, appKey, audience string, json adapter.JSON) Client {
	return &MoltbookClient{
		httpClient: httpClient,
		verifyURL:  verifyURL,
		appKey:     appKey,
		audience:   audience,
		json:       json,
	}
}

// Verify exchanges an identity token for the attested identity
func (c *MoltbookClient) Verify(ctx context.Context, token string) (*Identity, error) {
	if c.appKey == "" {
		return nil, ErrNotConfigured
	}

	headers := map[string]string{
		"X-Moltbook-App-Key": c.appKey,
	}

	respBody, err := c.httpClient.PostJSON(ctx, c.verifyURL, headers, verifyRequest{
		Token:    token,
		Audience: c.audience,
	})
	if err != nil {
		var statusErr *adapter.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			return nil, ErrTokenRejected
		}
		return nil, fmt.Errorf("failed to call Moltbook API: %w", err)
	}

	var resp verifyResponse
	if err := c.json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Moltbook response: %w", err)
	}

	if !resp.Valid || resp.Agent == nil {
		return nil, ErrTokenRejected
	}

	agentID := resp.Agent.AgentID
	if agentID == "" {
		agentID = resp.Agent.ID
	}
	if agentID == "" {
		return nil, ErrTokenRejected
	}

	displayName := resp.Agent.DisplayName
	if displayName == "" {
		displayName = resp.Agent.Name
	}

	return &Identity{
		AgentID:     agentID,
		DisplayName: displayName,
	}, nil
}
