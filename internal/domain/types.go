package domain

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ProofType identifies which external verifier corroborated a proof
type ProofType string

const (
	// ProofTypeGitHubPR represents a merged pull request on GitHub
	ProofTypeGitHubPR ProofType = "github_pr"
	// ProofTypeArtifact represents a reachable deployed artifact
	ProofTypeArtifact ProofType = "artifact"
	// ProofTypeUptime represents a liveness heartbeat endpoint
	ProofTypeUptime ProofType = "uptime"
	// ProofTypeOnchainTx is a historical type still present in stored data.
	// It is no longer accepted on submission and scores at DefaultPoints.
	ProofTypeOnchainTx ProofType = "onchain_tx"
)

// SubmittableProofTypes is the closed enumeration accepted by proof submission
var SubmittableProofTypes = []ProofType{
	ProofTypeGitHubPR,
	ProofTypeArtifact,
	ProofTypeUptime,
}

// Points maps each proof type to its fixed score contribution
var Points = map[ProofType]int{
	ProofTypeGitHubPR: 15,
	ProofTypeArtifact: 10,
	ProofTypeUptime:   8,
}

// DefaultPoints is the score contribution of unknown or historical proof types
const DefaultPoints = 10

// Badge is a derived, non-persisted label summarizing an agent's proof types
type Badge string

const (
	// BadgeBuilder is awarded for github_pr or artifact proofs
	BadgeBuilder Badge = "Builder"
	// BadgeReliable is awarded for uptime proofs
	BadgeReliable Badge = "Reliable"

	// BadgeTrader and BadgeResearcher are recognized display badges.
	// No submission path currently produces the proof types that would
	// award them; they are declared so display layers can style them.
	BadgeTrader     Badge = "Trader"
	BadgeResearcher Badge = "Researcher"
)

// Valid reports whether the type is accepted on submission
func (t ProofType) Valid() bool {
	for _, v := range SubmittableProofTypes {
		if t == v {
			return true
		}
	}
	return false
}

// PointsFor returns the score contribution of a proof type
func PointsFor(t ProofType) int {
	if p, ok := Points[t]; ok {
		return p
	}
	return DefaultPoints
}

const (
	// MaxDisplayNameLength caps user-supplied display names
	MaxDisplayNameLength = 100

	// APIKeyPrefix marks locally issued API credentials
	APIKeyPrefix = "molt_oracle_"
	// ClaimCodePrefix marks claim codes
	ClaimCodePrefix = "molt-"
)

var agentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_:.-]{2,63}$`)

// NormalizeAgentID validates a human-chosen agent handle and returns the
// trimmed form. 3-64 chars, leading alphanumeric, then [alnum _:.-].
func NormalizeAgentID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !agentIDPattern.MatchString(s) {
		return "", ErrInvalidAgentID
	}
	return s, nil
}

// NormalizeWalletAddress validates a 20-byte hex address with 0x prefix and
// returns the lowercase form
func NormalizeWalletAddress(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !common.IsHexAddress(s) || !strings.HasPrefix(s, "0x") {
		return "", ErrInvalidWalletAddress
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// NormalizeDisplayName trims and caps a user-supplied display name.
// Returns nil for empty input.
func NormalizeDisplayName(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if len(s) > MaxDisplayNameLength {
		s = s[:MaxDisplayNameLength]
	}
	return &s
}

// NormalizeProofURL trims a submitted URL. The case-insensitive idempotency
// key is computed by URLKey.
func NormalizeProofURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrMissingURL
	}
	return s, nil
}

// URLKey returns the case-insensitive uniqueness key of a proof URL
func URLKey(url string) string {
	return strings.ToLower(strings.TrimSpace(url))
}
