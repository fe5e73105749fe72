package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltworks/molt-oracle/internal/adapter"
	"github.com/moltworks/molt-oracle/internal/api/middleware"
	"github.com/moltworks/molt-oracle/internal/api/rest"
	"github.com/moltworks/molt-oracle/internal/claim"
	"github.com/moltworks/molt-oracle/internal/identity"
	"github.com/moltworks/molt-oracle/internal/mocks"
	"github.com/moltworks/molt-oracle/internal/proofs"
	"github.com/moltworks/molt-oracle/internal/providers/github"
	"github.com/moltworks/molt-oracle/internal/providers/moltbook"
	"github.com/moltworks/molt-oracle/internal/reputation"
	"github.com/moltworks/molt-oracle/internal/store"
	"github.com/moltworks/molt-oracle/internal/store/schema"
	"github.com/moltworks/molt-oracle/internal/walletstats"
)

type fakeX struct {
	posted map[string]string
}

func (f *fakeX) FindPostContaining(_ context.Context, handle, code string) (bool, error) {
	text, ok := f.posted[handle]
	return ok && strings.Contains(text, code), nil
}

type fakeGitHub struct {
	prs map[string]*github.PullRequest
}

func (f *fakeGitHub) GetPullRequest(_ context.Context, owner, repo, number string) (*github.PullRequest, error) {
	pr, ok := f.prs[owner+"/"+repo+"/"+number]
	if !ok {
		return nil, github.ErrPullRequestNotFound
	}
	return pr, nil
}

type fakeMoltbook struct {
	identities map[string]*moltbook.Identity
}

func (f *fakeMoltbook) Verify(_ context.Context, token string) (*moltbook.Identity, error) {
	if id, ok := f.identities[token]; ok {
		return id, nil
	}
	return nil, moltbook.ErrTokenRejected
}

type noopRefresher struct{}

func (noopRefresher) RefreshIfStale(*schema.Agent) {}
func (noopRefresher) StopAndWait()                 {}

var _ walletstats.Refresher = noopRefresher{}

type testAPI struct {
	router *gin.Engine
	store  store.Store
	x      *fakeX
	github *fakeGitHub
	http   *mocks.MockHTTPClient
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	api := &testAPI{
		store:  store.NewMemoryStore(),
		x:      &fakeX{posted: map[string]string{}},
		github: &fakeGitHub{prs: map[string]*github.PullRequest{}},
		http:   mocks.NewMockHTTPClient(ctrl),
	}

	mb := &fakeMoltbook{identities: map[string]*moltbook.Identity{}}
	resolver := identity.NewResolver(mb, api.store)
	claims := claim.NewWorkflow(api.store, api.x, noopRefresher{}, adapter.NewClock(), "https://oracle.test")
	engine := proofs.NewEngine(api.store, api.github, api.http, adapter.NewClock(), 10*time.Second)
	aggregator := reputation.NewAggregator(api.store, noopRefresher{})

	handler := rest.NewHandler(claims, engine, aggregator)

	api.router = gin.New()
	rest.SetupRoutes(api.router, handler, resolver, rest.RateLimits{})
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func register(t *testing.T, api *testAPI, agentID string) (apiKey, claimCode string, rowID int64) {
	t.Helper()
	w := api.do(t, http.MethodPost, "/api/v1/agents/register", map[string]interface{}{
		"agentId":     agentID,
		"displayName": "Agent " + agentID,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	apiKey = body["apiKey"].(string)
	claimCode = body["claimCode"].(string)
	rowID = int64(body["agent"].(map[string]interface{})["id"].(float64))
	return apiKey, claimCode, rowID
}

func TestRegisterAndVerifyFlow(t *testing.T) {
	api := newTestAPI(t)

	_, claimCode, _ := register(t, api, "molty")
	assert.True(t, strings.HasPrefix(claimCode, "molt-"))

	// Verify before posting fails with 422
	w := api.do(t, http.MethodPost, "/api/v1/agents/verify", map[string]interface{}{
		"claimCode": claimCode,
		"xHandle":   "@MoltAgent",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// After posting the code, verification succeeds
	api.x.posted["moltagent"] = "claiming: " + claimCode
	w = api.do(t, http.MethodPost, "/api/v1/agents/verify", map[string]interface{}{
		"claimCode": claimCode,
		"xHandle":   "@MoltAgent",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	agent := decode(t, w)["agent"].(map[string]interface{})
	assert.Equal(t, true, agent["verified"])
	assert.Equal(t, "moltagent", agent["xHandle"])

	// The code is single-use
	w = api.do(t, http.MethodPost, "/api/v1/agents/verify", map[string]interface{}{
		"claimCode": claimCode,
		"xHandle":   "@MoltAgent",
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegister_InvalidAgentID(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/agents/register", map[string]interface{}{
		"agentId": "x",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerify_UnknownCode(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/agents/verify", map[string]interface{}{
		"claimCode": "molt-abc123",
		"xHandle":   "someone",
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitProof_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/proofs", map[string]interface{}{
		"type": "artifact",
		"url":  "https://demo.test/app",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitProof_WithAPIKey(t *testing.T) {
	api := newTestAPI(t)
	apiKey, _, rowID := register(t, api, "molty")

	mergedAt := "2026-08-01T10:00:00Z"
	api.github.prs["moltworks/oracle/42"] = &github.PullRequest{State: "closed", MergedAt: &mergedAt}

	w := api.do(t, http.MethodPost, "/api/v1/proofs", map[string]interface{}{
		"type":    "github_pr",
		"url":     "https://github.com/moltworks/oracle/pull/42",
		"isSkill": true,
	}, map[string]string{middleware.APIKeyHeader: apiKey})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// The acknowledgment is narrow: identity of the record only
	proof := decode(t, w)["proof"].(map[string]interface{})
	assert.Equal(t, "github_pr", proof["type"])
	assert.Equal(t, "molty", proof["agentId"])
	assert.NotZero(t, proof["id"])
	assert.NotContains(t, proof, "url")

	// The full record shows up in the listing with its point value
	w = api.do(t, http.MethodGet, "/api/v1/proofs", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)["proofs"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(15), listed["points"])
	assert.Equal(t, float64(rowID), listed["agentRowId"])
	assert.Equal(t, true, listed["isSkill"])
}

func TestSubmitProof_BearerAPIKey(t *testing.T) {
	api := newTestAPI(t)
	apiKey, _, _ := register(t, api, "molty")

	api.http.EXPECT().Head(gomock.Any(), "https://demo.test/app").Return(200, nil)

	w := api.do(t, http.MethodPost, "/api/v1/proofs", map[string]interface{}{
		"type": "artifact",
		"url":  "https://demo.test/app",
	}, map[string]string{"Authorization": "Bearer " + apiKey})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestSubmitProof_DuplicateURL(t *testing.T) {
	api := newTestAPI(t)
	apiKey, _, _ := register(t, api, "molty")

	api.http.EXPECT().Head(gomock.Any(), gomock.Any()).Return(200, nil)

	w := api.do(t, http.MethodPost, "/api/v1/proofs", map[string]interface{}{
		"type": "uptime",
		"url":  "https://agent.test/health",
	}, map[string]string{middleware.APIKeyHeader: apiKey})
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/proofs", map[string]interface{}{
		"type": "uptime",
		"url":  "HTTPS://AGENT.TEST/health",
	}, map[string]string{middleware.APIKeyHeader: apiKey})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitProof_OpenPRRejected(t *testing.T) {
	api := newTestAPI(t)
	apiKey, _, _ := register(t, api, "molty")

	api.github.prs["moltworks/oracle/43"] = &github.PullRequest{State: "open"}

	w := api.do(t, http.MethodPost, "/api/v1/proofs", map[string]interface{}{
		"type": "github_pr",
		"url":  "https://github.com/moltworks/oracle/pull/43",
	}, map[string]string{middleware.APIKeyHeader: apiKey})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSubmitProof_HistoricalTypeRejected(t *testing.T) {
	api := newTestAPI(t)
	apiKey, _, _ := register(t, api, "molty")

	w := api.do(t, http.MethodPost, "/api/v1/proofs", map[string]interface{}{
		"type": "onchain_tx",
		"url":  "https://scan.test/tx/0xabc",
	}, map[string]string{middleware.APIKeyHeader: apiKey})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaderboardAndProfiles(t *testing.T) {
	api := newTestAPI(t)
	apiKey, _, rowID := register(t, api, "molty")

	api.http.EXPECT().Head(gomock.Any(), gomock.Any()).Return(200, nil).Times(2)

	for _, url := range []string{"https://a.test/app", "https://b.test/health"} {
		proofType := "artifact"
		if strings.HasSuffix(url, "/health") {
			proofType = "uptime"
		}
		w := api.do(t, http.MethodPost, "/api/v1/proofs", map[string]interface{}{
			"type": proofType,
			"url":  url,
		}, map[string]string{middleware.APIKeyHeader: apiKey})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	// Leaderboard
	w := api.do(t, http.MethodGet, "/api/v1/agents?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	board := decode(t, w)
	agents := board["agents"].([]interface{})
	require.Len(t, agents, 1)
	top := agents[0].(map[string]interface{})
	assert.Equal(t, float64(18), top["score"])
	assert.Equal(t, float64(1), top["rank"])
	assert.ElementsMatch(t, []interface{}{"Builder", "Reliable"}, top["badges"])

	// Profile by row id
	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/agents/by-row/%d", rowID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)
	assert.Equal(t, float64(18), profile["score"])
	assert.Len(t, profile["proofs"].([]interface{}), 2)

	// Profile by handle
	w = api.do(t, http.MethodGet, "/api/v1/agents/molty", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile = decode(t, w)
	assert.Equal(t, "molty", profile["agentId"])

	// List proofs
	w = api.do(t, http.MethodGet, "/api/v1/proofs", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total"])

	// Stats
	w = api.do(t, http.MethodGet, "/api/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, float64(1), stats["totalAgents"])
	assert.Equal(t, float64(2), stats["totalProofs"])
}

func TestProfile_NotFound(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/agents/by-row/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/agents/nobody", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestMoltbookTokenAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	s := store.NewMemoryStore()
	mb := &fakeMoltbook{identities: map[string]*moltbook.Identity{
		"good-token": {AgentID: "platform-agent", DisplayName: "Platform Agent"},
	}}
	resolver := identity.NewResolver(mb, s)
	mockHTTP := mocks.NewMockHTTPClient(ctrl)
	engine := proofs.NewEngine(s, &fakeGitHub{prs: map[string]*github.PullRequest{}}, mockHTTP, adapter.NewClock(), 10*time.Second)
	claims := claim.NewWorkflow(s, &fakeX{posted: map[string]string{}}, noopRefresher{}, adapter.NewClock(), "https://oracle.test")
	aggregator := reputation.NewAggregator(s, noopRefresher{})

	router := gin.New()
	rest.SetupRoutes(router, rest.NewHandler(claims, engine, aggregator), resolver, rest.RateLimits{})

	mockHTTP.EXPECT().Head(gomock.Any(), gomock.Any()).Return(200, nil)

	payload, _ := json.Marshal(map[string]interface{}{
		"type": "artifact",
		"url":  "https://demo.test/app",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/proofs", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.MoltbookTokenHeader, "good-token")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	proof := out["proof"].(map[string]interface{})
	assert.Equal(t, "platform-agent", proof["agentId"])
	assert.Equal(t, "Platform Agent", proof["displayName"])
}
