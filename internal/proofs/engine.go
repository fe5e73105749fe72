package proofs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moltworks/molt-oracle/internal/adapter"
	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/identity"
	"github.com/moltworks/molt-oracle/internal/providers/github"
	"github.com/moltworks/molt-oracle/internal/store"
	"github.com/moltworks/molt-oracle/internal/store/schema"
)

// SubmitRequest carries a proof submission
type SubmitRequest struct {
	Type        string
	URL         string
	DisplayName string
	ChainID     *int64
	Note        string
	IsSkill     bool
}

// ListQuery filters the recorded-proof listing
type ListQuery struct {
	AgentID string
	Type    string
	Limit   int
}

const (
	// DefaultListLimit applies when no limit is requested
	DefaultListLimit = 50
	// MaxListLimit caps the requested limit
	MaxListLimit = 200
)

// Engine verifies submitted proofs against their external source of truth
// and records the ones that pass. Verification is synchronous; nothing is
// persisted for a claim that fails.
//
//go:generate mockgen -source=engine.go -destination=../mocks/proofs_engine.go -package=mocks -mock_names=Engine=MockProofEngine
type Engine interface {
	// Submit verifies and records one proof on behalf of the caller
	Submit(ctx context.Context, caller *identity.Identity, req SubmitRequest) (*schema.Proof, error)
	// List returns recorded proofs, newest first, optionally filtered by
	// agent and type
	List(ctx context.Context, q ListQuery) ([]*schema.Proof, error)
}

type engine struct {
	store      store.Store
	github     github.Client
	httpClient adapter.HTTPClient
	clock      adapter.Clock
	timeout    time.Duration
}

// NewEngine creates the proof verification engine. timeout bounds each
// external verifier call.
func NewEngine(s store.Store, gh github.Client, httpClient adapter.HTTPClient, clock adapter.Clock, timeout time.Duration) Engine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &engine{
		store:      s,
		github:     gh,
		httpClient: httpClient,
		clock:      clock,
		timeout:    timeout,
	}
}

func (e *engine) Submit(ctx context.Context, caller *identity.Identity, req SubmitRequest) (*schema.Proof, error) {
	proofType := domain.ProofType(req.Type)
	if !proofType.Valid() {
		return nil, domain.ErrInvalidProofType
	}

	url, err := domain.NormalizeProofURL(req.URL)
	if err != nil {
		return nil, err
	}

	// Cheap pre-check; the unique index on url_key is the real guarantee
	exists, err := e.store.ProofURLExists(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to check proof url: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateProofURL
	}

	if err := e.verify(ctx, proofType, url); err != nil {
		return nil, err
	}

	now := e.clock.Now().UTC()
	proof := &schema.Proof{
		Type:       string(proofType),
		URL:        url,
		URLKey:     domain.URLKey(url),
		ChainID:    req.ChainID,
		Note:       optionalText(req.Note),
		IsSkill:    req.IsSkill && proofType == domain.ProofTypeGitHubPR,
		VerifiedAt: now,
		CreatedAt:  now,
	}
	// Display name snapshots from the submission itself, falling back to
	// the resolved identity
	proof.DisplayName = domain.NormalizeDisplayName(req.DisplayName)
	if caller != nil {
		if caller.AgentID != "" {
			agentID := caller.AgentID
			proof.AgentID = &agentID
		}
		proof.AgentRowID = caller.AgentRowID
		if proof.DisplayName == nil {
			proof.DisplayName = domain.NormalizeDisplayName(caller.DisplayName)
		}
	}

	created, err := e.store.CreateProof(ctx, proof)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateProofURL) {
			return nil, domain.ErrDuplicateProofURL
		}
		return nil, fmt.Errorf("failed to record proof: %w", err)
	}
	return created, nil
}

func (e *engine) List(ctx context.Context, q ListQuery) ([]*schema.Proof, error) {
	records, err := e.store.ListProofs(ctx)
	if err != nil {
		return nil, err
	}

	agentID := strings.TrimSpace(q.AgentID)
	proofType := strings.TrimSpace(q.Type)
	limit := ClampListLimit(q.Limit)

	out := make([]*schema.Proof, 0, limit)
	for _, p := range records {
		// Exact match on the stored identifier
		if agentID != "" && (p.AgentID == nil || *p.AgentID != agentID) {
			continue
		}
		if proofType != "" && p.Type != proofType {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ClampListLimit resolves a requested limit to the default or cap
func ClampListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func (e *engine) verify(ctx context.Context, proofType domain.ProofType, url string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch proofType {
	case domain.ProofTypeGitHubPR:
		return e.verifyPullRequest(ctx, url)
	case domain.ProofTypeArtifact, domain.ProofTypeUptime:
		return e.verifyReachable(ctx, url)
	default:
		return domain.ErrInvalidProofType
	}
}

// verifyPullRequest requires the PR to exist, be closed and carry a merge
// timestamp. Open or closed-without-merge PRs fail.
func (e *engine) verifyPullRequest(ctx context.Context, url string) error {
	owner, repo, number, err := github.ParsePullRequestURL(url)
	if err != nil {
		return domain.NewVerificationError("url must be a GitHub pull request URL (github.com/<owner>/<repo>/pull/<number>)")
	}

	pr, err := e.github.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		if errors.Is(err, github.ErrPullRequestNotFound) {
			return domain.NewVerificationError("pull request not found")
		}
		return domain.NewUpstreamError("could not reach GitHub, try again shortly", err)
	}
	if !pr.Merged() {
		return domain.NewVerificationError("pull request is not merged")
	}
	return nil
}

func optionalText(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	return &s
}

// verifyReachable probes the URL with a HEAD request and requires a 2xx
func (e *engine) verifyReachable(ctx context.Context, url string) error {
	status, err := e.httpClient.Head(ctx, url)
	if err != nil {
		return domain.NewUpstreamError("url is not reachable", err)
	}
	if status < 200 || status >= 300 {
		return domain.NewVerificationError(fmt.Sprintf("url responded with status %d", status))
	}
	return nil
}
