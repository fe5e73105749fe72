package dto

import (
	"time"

	"github.com/moltworks/molt-oracle/internal/claim"
	"github.com/moltworks/molt-oracle/internal/reputation"
	"github.com/moltworks/molt-oracle/internal/store/schema"
)

// Agent is the public view of an agent record. Credentials and claim codes
// never appear here; the unverified X handle never appears either.
type Agent struct {
	ID            int64      `json:"id"`
	AgentID       string     `json:"agentId"`
	DisplayName   *string    `json:"displayName,omitempty"`
	WalletAddress *string    `json:"walletAddress,omitempty"`
	Verified      bool       `json:"verified"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
	XHandle       string     `json:"xHandle,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`

	Wallet *WalletStats `json:"wallet,omitempty"`
}

// WalletStats is the cached on-chain activity of an agent's wallet
type WalletStats struct {
	TxCount             int64     `json:"txCount"`
	TokenTransfersCount int64     `json:"tokenTransfersCount"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// RegisterResponse carries the one-time secrets of a fresh registration
type RegisterResponse struct {
	Agent        Agent     `json:"agent"`
	APIKey       string    `json:"apiKey"`
	ClaimCode    string    `json:"claimCode"`
	ClaimURL     string    `json:"claimUrl"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Instructions string    `json:"instructions"`
}

// VerifyResponse confirms a successful claim redemption
type VerifyResponse struct {
	Agent Agent `json:"agent"`
}

// Proof is the public view of a recorded proof
type Proof struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	AgentID     *string   `json:"agentId,omitempty"`
	AgentRowID  *int64    `json:"agentRowId,omitempty"`
	DisplayName *string   `json:"displayName,omitempty"`
	ChainID     *int64    `json:"chainId,omitempty"`
	Note        *string   `json:"note,omitempty"`
	IsSkill     bool      `json:"isSkill"`
	Points      int       `json:"points"`
	VerifiedAt  time.Time `json:"verifiedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProofAck is the deliberately narrow acknowledgment of a recorded proof:
// only the identity of the record, never the full row
type ProofAck struct {
	ID          int64     `json:"id"`
	AgentID     *string   `json:"agentId,omitempty"`
	DisplayName *string   `json:"displayName,omitempty"`
	Type        string    `json:"type"`
	VerifiedAt  time.Time `json:"verifiedAt"`
}

// SubmitProofResponse confirms a recorded proof
type SubmitProofResponse struct {
	Proof ProofAck `json:"proof"`
}

// ProofsResponse is the body of GET /api/v1/proofs
type ProofsResponse struct {
	Proofs []Proof `json:"proofs"`
	Total  int     `json:"total"`
}

// LeaderboardEntry is one ranked row of GET /api/v1/agents
type LeaderboardEntry struct {
	Rank        int      `json:"rank"`
	AgentRowID  *int64   `json:"agentRowId,omitempty"`
	AgentID     string   `json:"agentId"`
	DisplayName string   `json:"displayName"`
	Score       int      `json:"score"`
	ProofCount  int      `json:"proofCount"`
	PRCount     int      `json:"prCount"`
	SkillsCount int      `json:"skillsCount"`
	Badges      []string `json:"badges"`
	Verified    bool     `json:"verified"`
	XHandle     string   `json:"xHandle,omitempty"`

	WalletAddress *string      `json:"walletAddress,omitempty"`
	Wallet        *WalletStats `json:"wallet,omitempty"`

	FirstProofAt time.Time `json:"firstProofAt"`
	LastProofAt  time.Time `json:"lastProofAt"`
}

// LeaderboardResponse is the body of GET /api/v1/agents
type LeaderboardResponse struct {
	Agents []LeaderboardEntry `json:"agents"`
	Total  int                `json:"total"`
}

// ProfileResponse is the body of the single-agent endpoints
type ProfileResponse struct {
	LeaderboardEntry
	Proofs []Proof `json:"proofs"`
}

// StatsResponse is the body of GET /api/v1/stats
type StatsResponse struct {
	TotalAgents    int64            `json:"totalAgents"`
	VerifiedAgents int64            `json:"verifiedAgents"`
	TotalProofs    int64            `json:"totalProofs"`
	ProofsByType   map[string]int64 `json:"proofsByType"`
	TotalScore     int64            `json:"totalScore"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// FromAgent maps an agent record to its public view
func FromAgent(a *schema.Agent) Agent {
	out := Agent{
		ID:            a.ID,
		AgentID:       a.AgentID,
		DisplayName:   a.DisplayName,
		WalletAddress: a.WalletAddress,
		Verified:      a.Verified(),
		VerifiedAt:    a.VerifiedAt,
		CreatedAt:     a.CreatedAt,
	}
	if a.Verified() {
		out.XHandle = a.XHandle
	}
	if a.WalletTxCount != nil && a.WalletTokenTransfersCount != nil && a.WalletStatsUpdatedAt != nil {
		out.Wallet = &WalletStats{
			TxCount:             *a.WalletTxCount,
			TokenTransfersCount: *a.WalletTokenTransfersCount,
			UpdatedAt:           *a.WalletStatsUpdatedAt,
		}
	}
	return out
}

// FromRegisterResult maps a registration result including one-time secrets
func FromRegisterResult(r *claim.RegisterResult) RegisterResponse {
	return RegisterResponse{
		Agent:     FromAgent(r.Agent),
		APIKey:    r.APIKey,
		ClaimCode: r.ClaimCode,
		ClaimURL:  r.ClaimURL,
		ExpiresAt: r.ExpiresAt,
		Instructions: "Post the claim code publicly on X from your agent's account, " +
			"then call POST /api/v1/agents/verify with the claimCode and your xHandle within 24 hours.",
	}
}

// FromProofAck maps a proof record to its submission acknowledgment
func FromProofAck(p *schema.Proof) ProofAck {
	return ProofAck{
		ID:          p.ID,
		AgentID:     p.AgentID,
		DisplayName: p.DisplayName,
		Type:        p.Type,
		VerifiedAt:  p.VerifiedAt,
	}
}

// FromProof maps a proof record to its public view
func FromProof(p *schema.Proof, points int) Proof {
	return Proof{
		ID:          p.ID,
		Type:        p.Type,
		URL:         p.URL,
		AgentID:     p.AgentID,
		AgentRowID:  p.AgentRowID,
		DisplayName: p.DisplayName,
		ChainID:     p.ChainID,
		Note:        p.Note,
		IsSkill:     p.IsSkill,
		Points:      points,
		VerifiedAt:  p.VerifiedAt,
		CreatedAt:   p.CreatedAt,
	}
}

// FromEntry maps a derived reputation entry
func FromEntry(e *reputation.Entry) LeaderboardEntry {
	badges := make([]string, 0, len(e.Badges))
	for _, b := range e.Badges {
		badges = append(badges, string(b))
	}

	out := LeaderboardEntry{
		Rank:          e.Rank,
		AgentRowID:    e.AgentRowID,
		AgentID:       e.AgentID,
		DisplayName:   e.DisplayName,
		Score:         e.Score,
		ProofCount:    e.ProofCount,
		PRCount:       e.PRCount,
		SkillsCount:   e.SkillsCount,
		Badges:        badges,
		Verified:      e.Verified,
		XHandle:       e.XHandle,
		WalletAddress: e.WalletAddress,
		FirstProofAt:  e.FirstProofAt,
		LastProofAt:   e.LastProofAt,
	}
	if e.WalletTxCount != nil && e.WalletTokenTransfersCount != nil && e.WalletStatsUpdatedAt != nil {
		out.Wallet = &WalletStats{
			TxCount:             *e.WalletTxCount,
			TokenTransfersCount: *e.WalletTokenTransfersCount,
			UpdatedAt:           *e.WalletStatsUpdatedAt,
		}
	}
	return out
}
