package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/logger"
	"github.com/moltworks/molt-oracle/internal/providers/moltbook"
	"github.com/moltworks/molt-oracle/internal/store"
)

// Credential channels, in precedence order
const (
	ChannelMoltbook = "moltbook"
	ChannelAPIKey   = "api_key"
	ChannelNone     = "none"
)

// Identity is a resolved caller identity. AgentRowID is set when the caller
// maps to a registered agent row; platform-token callers who never registered
// locally carry only the handle.
type Identity struct {
	Channel     string
	AgentID     string
	DisplayName string
	AgentRowID  *int64
}

// Resolver authenticates callers from their presented credentials
//
//go:generate mockgen -source=resolver.go -destination=../mocks/identity_resolver.go -package=mocks -mock_names=Resolver=MockIdentityResolver
type Resolver interface {
	// Resolve authenticates from a platform identity token and/or a local API
	// key. The token channel takes precedence; when a channel is presented it
	// must succeed on its own - a bad token never falls through to the key.
	Resolve(ctx context.Context, moltbookToken, apiKey string) (*Identity, error)
}

type resolver struct {
	moltbook moltbook.Client
	store    store.Store
}

// NewResolver creates a new credential resolver
func NewResolver(mb moltbook.Client, s store.Store) Resolver {
	return &resolver{moltbook: mb, store: s}
}

// HashAPIKey returns the hex SHA-256 digest under which API keys are stored
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (r *resolver) Resolve(ctx context.Context, moltbookToken, apiKey string) (*Identity, error) {
	moltbookToken = strings.TrimSpace(moltbookToken)
	apiKey = strings.TrimSpace(apiKey)

	if moltbookToken != "" {
		return r.resolveMoltbook(ctx, moltbookToken)
	}
	if apiKey != "" {
		return r.resolveAPIKey(ctx, apiKey)
	}

	return nil, &domain.AuthError{
		Channel: ChannelNone,
		Message: "authentication required: provide a Moltbook identity token or an API key",
	}
}

func (r *resolver) resolveMoltbook(ctx context.Context, token string) (*Identity, error) {
	attested, err := r.moltbook.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, moltbook.ErrTokenRejected) || errors.Is(err, moltbook.ErrNotConfigured) {
			return nil, &domain.AuthError{
				Channel: ChannelMoltbook,
				Message: "Moltbook identity token rejected",
			}
		}
		return nil, fmt.Errorf("failed to verify identity token: %w", err)
	}

	id := &Identity{
		Channel:     ChannelMoltbook,
		AgentID:     attested.AgentID,
		DisplayName: attested.DisplayName,
	}

	// Link the local agent row when the platform handle is also registered here
	agent, err := r.store.GetAgentByAgentID(ctx, attested.AgentID)
	if err != nil {
		logger.Default().Warn("failed to link platform identity to local agent", zap.Error(err))
		return id, nil
	}
	if agent != nil {
		rowID := agent.ID
		id.AgentRowID = &rowID
		if id.DisplayName == "" && agent.DisplayName != nil {
			id.DisplayName = *agent.DisplayName
		}
	}
	return id, nil
}

func (r *resolver) resolveAPIKey(ctx context.Context, key string) (*Identity, error) {
	agent, err := r.store.GetAgentByAPIKeyHash(ctx, HashAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}
	if agent == nil {
		return nil, &domain.AuthError{
			Channel: ChannelAPIKey,
			Message: "invalid API key",
		}
	}

	rowID := agent.ID
	id := &Identity{
		Channel:    ChannelAPIKey,
		AgentID:    agent.AgentID,
		AgentRowID: &rowID,
	}
	if agent.DisplayName != nil {
		id.DisplayName = *agent.DisplayName
	}
	return id, nil
}
