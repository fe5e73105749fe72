package dto

// RegisterRequest is the body of POST /api/v1/agents/register
type RegisterRequest struct {
	AgentID       string `json:"agentId" binding:"required"`
	DisplayName   string `json:"displayName"`
	WalletAddress string `json:"walletAddress"`
}

// VerifyRequest is the body of POST /api/v1/agents/verify
type VerifyRequest struct {
	ClaimCode string `json:"claimCode" binding:"required"`
	XHandle   string `json:"xHandle" binding:"required"`
}

// SubmitProofRequest is the body of POST /api/v1/proofs
type SubmitProofRequest struct {
	Type        string `json:"type" binding:"required"`
	URL         string `json:"url" binding:"required"`
	DisplayName string `json:"displayName"`
	ChainID     *int64 `json:"chainId"`
	Note        string `json:"note"`
	IsSkill     bool   `json:"isSkill"`
}
