package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moltworks/molt-oracle/internal/api/middleware"
	"github.com/moltworks/molt-oracle/internal/api/rest/dto"
	"github.com/moltworks/molt-oracle/internal/claim"
	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/proofs"
	"github.com/moltworks/molt-oracle/internal/reputation"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// RegisterAgent registers a new agent and issues its one-time credentials
	// POST /api/v1/agents/register
	RegisterAgent(c *gin.Context)

	// VerifyAgent redeems a claim code through a public post on X
	// POST /api/v1/agents/verify
	VerifyAgent(c *gin.Context)

	// SubmitProof verifies and records a proof (requires authentication)
	// POST /api/v1/proofs
	SubmitProof(c *gin.Context)

	// ListProofs returns recorded proofs, newest first
	// GET /api/v1/proofs?agentId=<agentId>&type=<type>&limit=<limit>
	ListProofs(c *gin.Context)

	// Leaderboard returns ranked agents
	// GET /api/v1/agents?limit=<limit>
	Leaderboard(c *gin.Context)

	// GetAgentByRowID returns one agent's profile by surrogate key
	// GET /api/v1/agents/by-row/:rowId
	GetAgentByRowID(c *gin.Context)

	// GetAgent returns one agent's profile by handle
	// GET /api/v1/agents/:id
	GetAgent(c *gin.Context)

	// GetStats returns oracle-wide totals
	// GET /api/v1/stats
	GetStats(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	claims     claim.Workflow
	proofs     proofs.Engine
	reputation reputation.Aggregator
}

// NewHandler creates a new REST API handler
func NewHandler(claims claim.Workflow, engine proofs.Engine, aggregator reputation.Aggregator) Handler {
	return &handler{
		claims:     claims,
		proofs:     engine,
		reputation: aggregator,
	}
}

// RegisterAgent registers a new agent and issues its one-time credentials
func (h *handler) RegisterAgent(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.claims.Register(c.Request.Context(), claim.RegisterRequest{
		AgentID:       req.AgentID,
		DisplayName:   req.DisplayName,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromRegisterResult(result))
}

// VerifyAgent redeems a claim code through a public post on X
func (h *handler) VerifyAgent(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	agent, err := h.claims.VerifyClaim(c.Request.Context(), claim.VerifyRequest{
		ClaimCode: req.ClaimCode,
		XHandle:   req.XHandle,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VerifyResponse{Agent: dto.FromAgent(agent)})
}

// SubmitProof verifies and records a proof on behalf of the authenticated caller
func (h *handler) SubmitProof(c *gin.Context) {
	var req dto.SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	caller := middleware.CallerIdentity(c)

	proof, err := h.proofs.Submit(c.Request.Context(), caller, proofs.SubmitRequest{
		Type:        req.Type,
		URL:         req.URL,
		DisplayName: req.DisplayName,
		ChainID:     req.ChainID,
		Note:        req.Note,
		IsSkill:     req.IsSkill,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SubmitProofResponse{Proof: dto.FromProofAck(proof)})
}

// ListProofs returns recorded proofs, newest first
func (h *handler) ListProofs(c *gin.Context) {
	params, err := ParseProofsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	records, err := h.proofs.List(c.Request.Context(), proofs.ListQuery{
		AgentID: params.AgentID,
		Type:    params.Type,
		Limit:   params.Limit,
	})
	if err != nil {
		respondInternalError(c, err, "Failed to list proofs")
		return
	}

	out := make([]dto.Proof, 0, len(records))
	for _, p := range records {
		out = append(out, dto.FromProof(p, domain.PointsFor(domain.ProofType(p.Type))))
	}
	c.JSON(http.StatusOK, dto.ProofsResponse{Proofs: out, Total: len(out)})
}

// Leaderboard returns ranked agents
func (h *handler) Leaderboard(c *gin.Context) {
	params, err := ParseLeaderboardQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	entries, err := h.reputation.Leaderboard(c.Request.Context(), params.Limit)
	if err != nil {
		respondInternalError(c, err, "Failed to build leaderboard")
		return
	}

	out := make([]dto.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.FromEntry(e))
	}
	c.JSON(http.StatusOK, dto.LeaderboardResponse{Agents: out, Total: len(out)})
}

// GetAgentByRowID returns one agent's profile by surrogate key
func (h *handler) GetAgentByRowID(c *gin.Context) {
	rowID, err := strconv.ParseInt(c.Param("rowId"), 10, 64)
	if err != nil || rowID <= 0 {
		respondBadRequest(c, "Invalid agent row id")
		return
	}

	profile, err := h.reputation.ProfileByRowID(c.Request.Context(), rowID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(profile))
}

// GetAgent returns one agent's profile by handle
func (h *handler) GetAgent(c *gin.Context) {
	agentID := c.Param("id")
	if agentID == "" {
		respondBadRequest(c, "Agent id is required")
		return
	}

	profile, err := h.reputation.ProfileByAgentID(c.Request.Context(), agentID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(profile))
}

// GetStats returns oracle-wide totals
func (h *handler) GetStats(c *gin.Context) {
	stats, err := h.reputation.Stats(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Failed to compute stats")
		return
	}

	c.JSON(http.StatusOK, dto.StatsResponse{
		TotalAgents:    stats.TotalAgents,
		VerifiedAgents: stats.VerifiedAgents,
		TotalProofs:    stats.TotalProofs,
		ProofsByType:   stats.ProofsByType,
		TotalScore:     stats.TotalScore,
	})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Service: "molt-oracle",
	})
}

func toProfileResponse(profile *reputation.Profile) dto.ProfileResponse {
	out := dto.ProfileResponse{
		LeaderboardEntry: dto.FromEntry(&profile.Entry),
		Proofs:           make([]dto.Proof, 0, len(profile.Proofs)),
	}
	for _, p := range profile.Proofs {
		out.Proofs = append(out.Proofs, dto.FromProof(p, domain.PointsFor(domain.ProofType(p.Type))))
	}
	return out
}
