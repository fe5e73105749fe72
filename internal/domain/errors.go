package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAgentID is returned for handles outside the handle grammar
	ErrInvalidAgentID = errors.New("invalid agentId: use 3-64 chars starting with a letter or digit, then letters, digits, '_', ':', '.' or '-'")

	// ErrInvalidWalletAddress is returned for malformed wallet addresses
	ErrInvalidWalletAddress = errors.New("invalid walletAddress: use 0x followed by 40 hex characters")

	// ErrInvalidProofType is returned for types outside the closed enumeration
	ErrInvalidProofType = errors.New("invalid type: use github_pr, artifact or uptime")

	// ErrMissingURL is returned for empty or whitespace-only proof URLs
	ErrMissingURL = errors.New("missing url")

	// ErrClaimNotFound is returned when no claimable agent carries the code.
	// Unknown and already-consumed codes are deliberately indistinguishable.
	ErrClaimNotFound = errors.New("invalid or already-claimed claim code; register again")

	// ErrClaimExpired is returned when the claim code is past its 24h window
	ErrClaimExpired = errors.New("claim code expired; register again")

	// ErrDuplicateProofURL is returned when a proof URL was already claimed
	ErrDuplicateProofURL = errors.New("this URL has already been submitted; each proof can only be claimed once")

	// ErrAgentNotFound is returned when no agent matches the identifier
	ErrAgentNotFound = errors.New("agent not found")
)

// VerificationError reports that the external source of truth did not
// corroborate a claim. Detail carries the human-readable reason from the
// upstream system when available.
type VerificationError struct {
	Detail string
	// Upstream is set when the failure was a collaborator outage rather
	// than a negative verification result. It is logged, never returned
	// to callers.
	Upstream error
}

func (e *VerificationError) Error() string {
	if e.Detail == "" {
		return "verification failed"
	}
	return fmt.Sprintf("verification failed: %s", e.Detail)
}

func (e *VerificationError) Unwrap() error {
	return e.Upstream
}

// NewVerificationError builds a VerificationError with a caller-facing detail
func NewVerificationError(detail string) *VerificationError {
	return &VerificationError{Detail: detail}
}

// NewUpstreamError wraps a collaborator network/timeout/parse failure.
// Callers see it as a verification failure; logs keep the cause.
func NewUpstreamError(detail string, cause error) *VerificationError {
	return &VerificationError{Detail: detail, Upstream: cause}
}

// AuthError is an authentication failure specific to one credential channel
type AuthError struct {
	Channel string // "moltbook", "api_key" or "none"
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
