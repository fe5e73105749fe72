package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/moltworks/molt-oracle/internal/proofs"
	"github.com/moltworks/molt-oracle/internal/reputation"
)

// LeaderboardQueryParams holds query parameters for GET /agents
type LeaderboardQueryParams struct {
	Limit int `form:"limit,default=0"`
}

// ParseLeaderboardQuery parses and clamps the leaderboard query parameters
func ParseLeaderboardQuery(c *gin.Context) (*LeaderboardQueryParams, error) {
	var params LeaderboardQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	params.Limit = reputation.ClampLimit(params.Limit)
	return &params, nil
}

// ProofsQueryParams holds query parameters for GET /proofs
type ProofsQueryParams struct {
	AgentID string `form:"agentId"`
	Type    string `form:"type"`
	Limit   int    `form:"limit,default=0"`
}

// ParseProofsQuery parses and clamps the proof listing query parameters
func ParseProofsQuery(c *gin.Context) (*ProofsQueryParams, error) {
	var params ProofsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	params.Limit = proofs.ClampListLimit(params.Limit)
	return &params, nil
}
