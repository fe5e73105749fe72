package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/store/schema"
)

var suiteTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestAgent(agentID string) *schema.Agent {
	return &schema.Agent{
		AgentID:            agentID,
		APIKeyHash:         "hash-" + agentID,
		ClaimCode:          "molt-" + agentID,
		ClaimCodeExpiresAt: suiteTime.Add(24 * time.Hour),
		CreatedAt:          suiteTime,
	}
}

func newTestProof(url string, rowID *int64) *schema.Proof {
	return &schema.Proof{
		Type:       "artifact",
		URL:        url,
		URLKey:     domain.URLKey(url),
		AgentRowID: rowID,
		VerifiedAt: suiteTime,
		CreatedAt:  suiteTime,
	}
}

// runStoreSuite exercises Store semantics shared by every implementation.
// newStore must return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateAgentAssignsID", func(t *testing.T) {
		s := newStore(t)
		agent, err := s.CreateAgent(ctx, newTestAgent("molty"))
		require.NoError(t, err)
		assert.NotZero(t, agent.ID)

		got, err := s.GetAgentByID(ctx, agent.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "molty", got.AgentID)
	})

	t.Run("GetAgentByIDAbsent", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetAgentByID(ctx, 12345)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetAgentByAgentID", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreateAgent(ctx, newTestAgent("molty"))
		require.NoError(t, err)

		got, err := s.GetAgentByAgentID(ctx, "molty")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)

		missing, err := s.GetAgentByAgentID(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("GetAgentByAPIKeyHash", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAgent(ctx, newTestAgent("molty"))
		require.NoError(t, err)

		got, err := s.GetAgentByAPIKeyHash(ctx, "hash-molty")
		require.NoError(t, err)
		require.NotNil(t, got)

		missing, err := s.GetAgentByAPIKeyHash(ctx, "hash-unknown")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("ClaimCodeLifecycle", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreateAgent(ctx, newTestAgent("molty"))
		require.NoError(t, err)

		claimable, err := s.GetClaimableAgentByClaimCode(ctx, "molt-molty")
		require.NoError(t, err)
		require.NotNil(t, claimable)

		err = s.MarkAgentVerified(ctx, created.ID, "moltagent", suiteTime)
		require.NoError(t, err)

		verified, err := s.GetAgentByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, verified.Verified())
		assert.Equal(t, "moltagent", verified.XHandle)

		// Consumed codes no longer resolve
		consumed, err := s.GetClaimableAgentByClaimCode(ctx, "molt-molty")
		require.NoError(t, err)
		assert.Nil(t, consumed)
	})

	t.Run("MarkAgentVerifiedIsOneWay", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreateAgent(ctx, newTestAgent("molty"))
		require.NoError(t, err)

		require.NoError(t, s.MarkAgentVerified(ctx, created.ID, "first", suiteTime))
		require.NoError(t, s.MarkAgentVerified(ctx, created.ID, "second", suiteTime.Add(time.Hour)))

		got, err := s.GetAgentByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.XHandle)
		assert.True(t, got.VerifiedAt.Equal(suiteTime))
	})

	t.Run("UpdateAgentWalletStats", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreateAgent(ctx, newTestAgent("molty"))
		require.NoError(t, err)

		err = s.UpdateAgentWalletStats(ctx, created.ID, 42, 7, suiteTime)
		require.NoError(t, err)

		got, err := s.GetAgentByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got.WalletTxCount)
		assert.Equal(t, int64(42), *got.WalletTxCount)
		require.NotNil(t, got.WalletTokenTransfersCount)
		assert.Equal(t, int64(7), *got.WalletTokenTransfersCount)

		// Other fields untouched
		assert.Equal(t, "molty", got.AgentID)
		assert.False(t, got.Verified())
	})

	t.Run("ListAgents", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAgent(ctx, newTestAgent("a1"))
		require.NoError(t, err)
		_, err = s.CreateAgent(ctx, newTestAgent("a2"))
		require.NoError(t, err)

		agents, err := s.ListAgents(ctx)
		require.NoError(t, err)
		assert.Len(t, agents, 2)
	})

	t.Run("CreateProofDuplicateURLKey", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateProof(ctx, newTestProof("https://example.com/Proof", nil))
		require.NoError(t, err)

		// Same key, different casing of the original URL
		dup := newTestProof("https://example.com/proof", nil)
		dup.URLKey = domain.URLKey("HTTPS://EXAMPLE.COM/PROOF")
		_, err = s.CreateProof(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicateProofURL)
	})

	t.Run("ProofURLExists", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateProof(ctx, newTestProof("https://example.com/proof", nil))
		require.NoError(t, err)

		exists, err := s.ProofURLExists(ctx, "  HTTPS://Example.com/PROOF ")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.ProofURLExists(ctx, "https://example.com/other")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("ListProofsNewestFirst", func(t *testing.T) {
		s := newStore(t)

		first := newTestProof("https://example.com/1", nil)
		first.CreatedAt = suiteTime
		_, err := s.CreateProof(ctx, first)
		require.NoError(t, err)

		second := newTestProof("https://example.com/2", nil)
		second.CreatedAt = suiteTime.Add(time.Hour)
		_, err = s.CreateProof(ctx, second)
		require.NoError(t, err)

		proofs, err := s.ListProofs(ctx)
		require.NoError(t, err)
		require.Len(t, proofs, 2)
		assert.Equal(t, "https://example.com/2", proofs[0].URL)
		assert.Equal(t, "https://example.com/1", proofs[1].URL)
	})
}
