package store

import (
	"context"
	"time"

	"github.com/moltworks/molt-oracle/internal/store/schema"
)

// Store defines the interface for record-store operations. Aggregate reads
// follow a load-everything-then-filter pattern, which is acceptable at this
// system's scale.
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// CreateAgent persists a new agent and returns it with the assigned id
	CreateAgent(ctx context.Context, agent *schema.Agent) (*schema.Agent, error)
	// GetAgentByID retrieves an agent by surrogate key, nil if absent
	GetAgentByID(ctx context.Context, id int64) (*schema.Agent, error)
	// GetAgentByAgentID retrieves the first agent with the given handle, nil if absent
	GetAgentByAgentID(ctx context.Context, agentID string) (*schema.Agent, error)
	// GetAgentByAPIKeyHash retrieves an agent by credential hash, nil if absent.
	// Both verified and unverified agents resolve.
	GetAgentByAPIKeyHash(ctx context.Context, keyHash string) (*schema.Agent, error)
	// GetClaimableAgentByClaimCode retrieves an unverified agent holding the
	// code, nil if absent. Consumed codes never match.
	GetClaimableAgentByClaimCode(ctx context.Context, claimCode string) (*schema.Agent, error)
	// MarkAgentVerified sets x_handle and verified_at. The transition is one-way.
	MarkAgentVerified(ctx context.Context, id int64, xHandle string, verifiedAt time.Time) error
	// UpdateAgentWalletStats updates only the wallet enrichment fields
	UpdateAgentWalletStats(ctx context.Context, id int64, txCount, tokenTransfers int64, updatedAt time.Time) error
	// ListAgents returns all agents
	ListAgents(ctx context.Context) ([]*schema.Agent, error)

	// CreateProof persists a new proof and returns it with the assigned id.
	// Returns domain.ErrDuplicateProofURL when the URL key is already claimed.
	CreateProof(ctx context.Context, proof *schema.Proof) (*schema.Proof, error)
	// ProofURLExists reports whether a proof with the same case-insensitive URL exists
	ProofURLExists(ctx context.Context, url string) (bool, error)
	// ListProofs returns all proofs ordered by creation time descending
	ListProofs(ctx context.Context) ([]*schema.Proof, error)
}
