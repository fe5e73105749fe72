package claim

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moltworks/molt-oracle/internal/adapter"
	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/identity"
	"github.com/moltworks/molt-oracle/internal/providers/xapi"
	"github.com/moltworks/molt-oracle/internal/store"
	"github.com/moltworks/molt-oracle/internal/store/schema"
	"github.com/moltworks/molt-oracle/internal/walletstats"
)

// ClaimWindow is how long a claim code stays redeemable after registration
const ClaimWindow = 24 * time.Hour

const (
	claimCodeBytes = 4
	apiKeyBytes    = 24
)

// RegisterRequest carries the registration inputs
type RegisterRequest struct {
	AgentID       string
	DisplayName   string
	WalletAddress string
}

// RegisterResult carries the registered agent and its one-time secrets.
// APIKey is returned exactly once; only its hash is stored.
type RegisterResult struct {
	Agent     *schema.Agent
	APIKey    string
	ClaimCode string
	ClaimURL  string
	ExpiresAt time.Time
}

// VerifyRequest carries the claim redemption inputs
type VerifyRequest struct {
	ClaimCode string
	XHandle   string
}

// Workflow runs the register-then-claim lifecycle
//
//go:generate mockgen -source=workflow.go -destination=../mocks/claim_workflow.go -package=mocks -mock_names=Workflow=MockClaimWorkflow
type Workflow interface {
	// Register creates an unverified agent with fresh credentials
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	// VerifyClaim redeems a claim code by finding a recent public post on X
	// that contains it. Success is a one-way transition to verified.
	VerifyClaim(ctx context.Context, req VerifyRequest) (*schema.Agent, error)
}

type workflow struct {
	store     store.Store
	x         xapi.Client
	refresher walletstats.Refresher
	clock     adapter.Clock
	publicURL string
}

// NewWorkflow creates the claim workflow. publicURL is the externally
// reachable base URL used to build claim URLs.
func NewWorkflow(s store.Store, x xapi.Client, refresher walletstats.Refresher, clock adapter.Clock, publicURL string) Workflow {
	return &workflow{
		store:     s,
		x:         x,
		refresher: refresher,
		clock:     clock,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (w *workflow) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	agentID, err := domain.NormalizeAgentID(req.AgentID)
	if err != nil {
		return nil, err
	}

	var walletAddress *string
	if strings.TrimSpace(req.WalletAddress) != "" {
		normalized, err := domain.NormalizeWalletAddress(req.WalletAddress)
		if err != nil {
			return nil, err
		}
		walletAddress = &normalized
	}

	claimCode, err := generateClaimCode()
	if err != nil {
		return nil, err
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	now := w.clock.Now().UTC()
	expiresAt := now.Add(ClaimWindow)

	agent, err := w.store.CreateAgent(ctx, &schema.Agent{
		AgentID:            agentID,
		DisplayName:        domain.NormalizeDisplayName(req.DisplayName),
		WalletAddress:      walletAddress,
		APIKeyHash:         identity.HashAPIKey(apiKey),
		ClaimCode:          claimCode,
		ClaimCodeExpiresAt: expiresAt,
		CreatedAt:          now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	w.refresher.RefreshIfStale(agent)

	return &RegisterResult{
		Agent:     agent,
		APIKey:    apiKey,
		ClaimCode: claimCode,
		ClaimURL:  fmt.Sprintf("%s/claim/%s", w.publicURL, claimCode),
		ExpiresAt: expiresAt,
	}, nil
}

func (w *workflow) VerifyClaim(ctx context.Context, req VerifyRequest) (*schema.Agent, error) {
	claimCode := strings.TrimSpace(req.ClaimCode)
	handle := xapi.NormalizeHandle(req.XHandle)
	if handle == "" {
		return nil, domain.NewVerificationError("xHandle is required")
	}

	agent, err := w.store.GetClaimableAgentByClaimCode(ctx, claimCode)
	if err != nil {
		return nil, fmt.Errorf("failed to look up claim code: %w", err)
	}
	if agent == nil {
		return nil, domain.ErrClaimNotFound
	}

	now := w.clock.Now().UTC()
	if !agent.Claimable(now) {
		return nil, domain.ErrClaimExpired
	}

	found, err := w.x.FindPostContaining(ctx, handle, claimCode)
	if err != nil {
		if errors.Is(err, xapi.ErrUserNotFound) {
			return nil, domain.NewVerificationError(
				fmt.Sprintf("no X account found for @%s, check the handle", handle))
		}
		return nil, domain.NewUpstreamError("could not check recent posts on X, try again shortly", err)
	}
	if !found {
		return nil, domain.NewVerificationError(
			fmt.Sprintf("no recent post by @%s contains the claim code; post it publicly and retry", handle))
	}

	if err := w.store.MarkAgentVerified(ctx, agent.ID, handle, now); err != nil {
		return nil, fmt.Errorf("failed to mark agent verified: %w", err)
	}

	verified, err := w.store.GetAgentByID(ctx, agent.ID)
	if err != nil || verified == nil {
		// The update succeeded; fall back to an in-memory view
		agent.XHandle = handle
		agent.VerifiedAt = &now
		return agent, nil
	}

	w.refresher.RefreshIfStale(verified)
	return verified, nil
}

func generateClaimCode() (string, error) {
	suffix, err := randomHex(claimCodeBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate claim code: %w", err)
	}
	return domain.ClaimCodePrefix + suffix, nil
}

func generateAPIKey() (string, error) {
	suffix, err := randomHex(apiKeyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return domain.APIKeyPrefix + suffix, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
