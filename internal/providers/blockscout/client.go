package blockscout

import (
	"context"
	"fmt"
	"strconv"

	"github.com/moltworks/molt-oracle/internal/adapter"
)

// Counters holds per-address activity counters
type Counters struct {
	TransactionsCount   int64
	TokenTransfersCount int64
}

// The explorer serialises counters as decimal strings
type countersResponse struct {
	TransactionsCount   string `json:"transactions_count"`
	TokenTransfersCount string `json:"token_transfers_count"`
}

// Client defines the interface for chain-explorer lookups to enable mocking
//
//go:generate mockgen -source=client.go -destination=../../mocks/blockscout_client.go -package=mocks -mock_names=Client=MockBlockscoutClient
type Client interface {
	// GetAddressCounters fetches activity counters for an address
	GetAddressCounters(ctx context.Context, address string) (*Counters, error)
}

// BlockscoutClient implements the Blockscout REST v2 client
type BlockscoutClient struct {
	httpClient adapter.HTTPClient
	baseURL    string
	json       adapter.JSON
}

// NewClient creates a new Blockscout client
func NewClient(httpClient adapter.HTTPClient, baseURL string, json adapter.JSON) Client {
	return &BlockscoutClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		json:       json,
	}
}

// GetAddressCounters fetches activity counters for an address
func (c *BlockscoutClient) GetAddressCounters(ctx context.Context, address string) (*Counters, error) {
	url := fmt.Sprintf("%s/addresses/%s/counters", c.baseURL, address)

	respBody, err := c.httpClient.GetBytes(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call Blockscout API: %w", err)
	}

	var resp countersResponse
	if err := c.json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Blockscout response: %w", err)
	}

	txCount, err := parseCounter(resp.TransactionsCount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transactions count: %w", err)
	}
	transfers, err := parseCounter(resp.TokenTransfersCount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token transfers count: %w", err)
	}

	return &Counters{
		TransactionsCount:   txCount,
		TokenTransfersCount: transfers,
	}, nil
}

func parseCounter(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
