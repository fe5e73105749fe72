package proofs_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/identity"
	"github.com/moltworks/molt-oracle/internal/mocks"
	"github.com/moltworks/molt-oracle/internal/proofs"
	"github.com/moltworks/molt-oracle/internal/providers/github"
	"github.com/moltworks/molt-oracle/internal/store"
)

// fakeGitHub serves canned pull requests keyed by "owner/repo/number"
type fakeGitHub struct {
	prs map[string]*github.PullRequest
	err error
}

func (f *fakeGitHub) GetPullRequest(_ context.Context, owner, repo, number string) (*github.PullRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	pr, ok := f.prs[owner+"/"+repo+"/"+number]
	if !ok {
		return nil, github.ErrPullRequestNotFound
	}
	return pr, nil
}

type engineDeps struct {
	store  store.Store
	github *fakeGitHub
	http   *mocks.MockHTTPClient
	engine proofs.Engine
}

func newEngine(t *testing.T) *engineDeps {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(now).AnyTimes()

	deps := &engineDeps{
		store:  store.NewMemoryStore(),
		github: &fakeGitHub{prs: map[string]*github.PullRequest{}},
		http:   mocks.NewMockHTTPClient(ctrl),
	}
	deps.engine = proofs.NewEngine(deps.store, deps.github, deps.http, clock, 10*time.Second)
	return deps
}

func caller(agentID string, rowID int64, displayName string) *identity.Identity {
	return &identity.Identity{
		Channel:     identity.ChannelAPIKey,
		AgentID:     agentID,
		AgentRowID:  &rowID,
		DisplayName: displayName,
	}
}

func TestEngine_Submit_MergedPR(t *testing.T) {
	d := newEngine(t)
	mergedAt := "2026-07-30T10:00:00Z"
	d.github.prs["moltworks/oracle/42"] = &github.PullRequest{State: "closed", MergedAt: &mergedAt}

	proof, err := d.engine.Submit(context.Background(), caller("molty", 7, "Molty"), proofs.SubmitRequest{
		Type:    "github_pr",
		URL:     "https://github.com/moltworks/oracle/pull/42",
		IsSkill: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "github_pr", proof.Type)
	assert.True(t, proof.IsSkill)
	require.NotNil(t, proof.AgentRowID)
	assert.Equal(t, int64(7), *proof.AgentRowID)
	require.NotNil(t, proof.AgentID)
	assert.Equal(t, "molty", *proof.AgentID)
	require.NotNil(t, proof.DisplayName)
	assert.Equal(t, "Molty", *proof.DisplayName)
	assert.False(t, proof.VerifiedAt.IsZero())
}

func TestEngine_Submit_DisplayNameFromSubmission(t *testing.T) {
	d := newEngine(t)

	d.http.EXPECT().Head(gomock.Any(), gomock.Any()).Return(200, nil)

	// The submitted name wins over the resolved identity's name
	proof, err := d.engine.Submit(context.Background(), caller("molty", 7, "Old Name"), proofs.SubmitRequest{
		Type:        "artifact",
		URL:         "https://demo.moltworks.dev/v2",
		DisplayName: "  New Name  ",
	})
	require.NoError(t, err)
	require.NotNil(t, proof.DisplayName)
	assert.Equal(t, "New Name", *proof.DisplayName)
}

func TestEngine_Submit_OpenPRFails(t *testing.T) {
	d := newEngine(t)
	d.github.prs["moltworks/oracle/43"] = &github.PullRequest{State: "open"}

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "github_pr",
		URL:  "https://github.com/moltworks/oracle/pull/43",
	})
	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)

	// Nothing persisted for a failed claim
	all, listErr := d.store.ListProofs(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, all)
}

func TestEngine_Submit_ClosedUnmergedPRFails(t *testing.T) {
	d := newEngine(t)
	d.github.prs["moltworks/oracle/44"] = &github.PullRequest{State: "closed", MergedAt: nil}

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "github_pr",
		URL:  "https://github.com/moltworks/oracle/pull/44",
	})
	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
}

func TestEngine_Submit_PRNotFound(t *testing.T) {
	d := newEngine(t)

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "github_pr",
		URL:  "https://github.com/moltworks/oracle/pull/9999",
	})
	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "not found")
}

func TestEngine_Submit_NotAPRURL(t *testing.T) {
	d := newEngine(t)

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "github_pr",
		URL:  "https://github.com/moltworks/oracle",
	})
	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
}

func TestEngine_Submit_ArtifactProbe(t *testing.T) {
	d := newEngine(t)

	d.http.EXPECT().
		Head(gomock.Any(), "https://demo.moltworks.dev/app").
		Return(200, nil)

	proof, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "artifact",
		URL:  "https://demo.moltworks.dev/app",
		Note: "  live demo  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "artifact", proof.Type)
	require.NotNil(t, proof.Note)
	assert.Equal(t, "live demo", *proof.Note)
	// isSkill is only meaningful for PRs
	assert.False(t, proof.IsSkill)
}

func TestEngine_Submit_UptimeProbeNon2xxFails(t *testing.T) {
	d := newEngine(t)

	d.http.EXPECT().
		Head(gomock.Any(), "https://agent.moltworks.dev/health").
		Return(503, nil)

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "uptime",
		URL:  "https://agent.moltworks.dev/health",
	})
	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
}

func TestEngine_Submit_ProbeUnreachable(t *testing.T) {
	d := newEngine(t)

	d.http.EXPECT().
		Head(gomock.Any(), gomock.Any()).
		Return(0, context.DeadlineExceeded)

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "uptime",
		URL:  "https://agent.moltworks.dev/health",
	})
	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.NotNil(t, verr.Upstream)
}

func TestEngine_Submit_InvalidType(t *testing.T) {
	d := newEngine(t)

	for _, badType := range []string{"onchain_tx", "bogus", ""} {
		_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
			Type: badType,
			URL:  "https://example.com",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidProofType, "type %q", badType)
	}
}

func TestEngine_Submit_MissingURL(t *testing.T) {
	d := newEngine(t)

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "artifact",
		URL:  "   ",
	})
	assert.ErrorIs(t, err, domain.ErrMissingURL)
}

func TestEngine_Submit_DuplicateURL(t *testing.T) {
	d := newEngine(t)

	d.http.EXPECT().
		Head(gomock.Any(), gomock.Any()).
		Return(200, nil)

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "artifact",
		URL:  "https://demo.moltworks.dev/app",
	})
	require.NoError(t, err)

	// Same URL with different casing is still a duplicate
	_, err = d.engine.Submit(context.Background(), caller("other", 8, ""), proofs.SubmitRequest{
		Type: "artifact",
		URL:  "HTTPS://DEMO.moltworks.dev/APP",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateProofURL)
}

func TestEngine_List_NewestFirst(t *testing.T) {
	d := newEngine(t)

	d.http.EXPECT().Head(gomock.Any(), gomock.Any()).Return(200, nil).Times(2)

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "artifact", URL: "https://a.example.com",
	})
	require.NoError(t, err)
	_, err = d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "uptime", URL: "https://b.example.com/health",
	})
	require.NoError(t, err)

	list, err := d.engine.List(context.Background(), proofs.ListQuery{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "https://b.example.com/health", list[0].URL)
}

func TestEngine_List_Filters(t *testing.T) {
	d := newEngine(t)

	d.http.EXPECT().Head(gomock.Any(), gomock.Any()).Return(200, nil).Times(3)

	_, err := d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "artifact", URL: "https://a.example.com",
	})
	require.NoError(t, err)
	_, err = d.engine.Submit(context.Background(), caller("molty", 7, ""), proofs.SubmitRequest{
		Type: "uptime", URL: "https://a.example.com/health",
	})
	require.NoError(t, err)
	_, err = d.engine.Submit(context.Background(), caller("other", 8, ""), proofs.SubmitRequest{
		Type: "artifact", URL: "https://b.example.com",
	})
	require.NoError(t, err)

	// By agent, exact match on the stored identifier
	list, err := d.engine.List(context.Background(), proofs.ListQuery{AgentID: "molty"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = d.engine.List(context.Background(), proofs.ListQuery{AgentID: "MOLTY"})
	require.NoError(t, err)
	assert.Empty(t, list)

	// By type
	list, err = d.engine.List(context.Background(), proofs.ListQuery{Type: "artifact"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Combined with limit
	list, err = d.engine.List(context.Background(), proofs.ListQuery{AgentID: "molty", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestClampListLimit(t *testing.T) {
	assert.Equal(t, proofs.DefaultListLimit, proofs.ClampListLimit(0))
	assert.Equal(t, proofs.DefaultListLimit, proofs.ClampListLimit(-3))
	assert.Equal(t, 25, proofs.ClampListLimit(25))
	assert.Equal(t, proofs.MaxListLimit, proofs.ClampListLimit(100000))
}
