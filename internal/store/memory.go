package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/store/schema"
)

// memoryStore is an in-process Store used for local development and tests.
// It enforces the same url_key uniqueness as the Postgres schema.
type memoryStore struct {
	mu       sync.RWMutex
	agents   []*schema.Agent
	proofs   []*schema.Proof
	urlKeys  map[string]struct{}
	agentSeq int64
	proofSeq int64
}

// NewMemoryStore creates a new in-memory store instance
func NewMemoryStore() Store {
	return &memoryStore{
		urlKeys: make(map[string]struct{}),
	}
}

func (s *memoryStore) CreateAgent(_ context.Context, agent *schema.Agent) (*schema.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agentSeq++
	cp := *agent
	cp.ID = s.agentSeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.agents = append(s.agents, &cp)

	out := cp
	return &out, nil
}

func (s *memoryStore) GetAgentByID(_ context.Context, id int64) (*schema.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.agents {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) GetAgentByAgentID(_ context.Context, agentID string) (*schema.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.agents {
		if a.AgentID == agentID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) GetAgentByAPIKeyHash(_ context.Context, keyHash string) (*schema.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.agents {
		if a.APIKeyHash == keyHash {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) GetClaimableAgentByClaimCode(_ context.Context, claimCode string) (*schema.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.agents {
		if a.ClaimCode == claimCode && a.VerifiedAt == nil {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) MarkAgentVerified(_ context.Context, id int64, xHandle string, verifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		if a.ID == id && a.VerifiedAt == nil {
			vt := verifiedAt
			a.XHandle = xHandle
			a.VerifiedAt = &vt
			return nil
		}
	}
	return nil
}

func (s *memoryStore) UpdateAgentWalletStats(_ context.Context, id int64, txCount, tokenTransfers int64, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		if a.ID == id {
			tc, tt, ua := txCount, tokenTransfers, updatedAt
			a.WalletTxCount = &tc
			a.WalletTokenTransfersCount = &tt
			a.WalletStatsUpdatedAt = &ua
			return nil
		}
	}
	return nil
}

func (s *memoryStore) ListAgents(_ context.Context) ([]*schema.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*schema.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryStore) CreateProof(_ context.Context, proof *schema.Proof) (*schema.Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.urlKeys[proof.URLKey]; exists {
		return nil, domain.ErrDuplicateProofURL
	}

	s.proofSeq++
	cp := *proof
	cp.ID = s.proofSeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.proofs = append(s.proofs, &cp)
	s.urlKeys[cp.URLKey] = struct{}{}

	out := cp
	return &out, nil
}

func (s *memoryStore) ProofURLExists(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.urlKeys[domain.URLKey(url)]
	return exists, nil
}

func (s *memoryStore) ListProofs(_ context.Context) ([]*schema.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*schema.Proof, 0, len(s.proofs))
	for _, p := range s.proofs {
		cp := *p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
