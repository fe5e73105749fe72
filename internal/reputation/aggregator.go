package reputation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/store"
	"github.com/moltworks/molt-oracle/internal/store/schema"
	"github.com/moltworks/molt-oracle/internal/walletstats"
)

const (
	// DefaultLeaderboardLimit applies when the caller does not ask for a size
	DefaultLeaderboardLimit = 50
	// MaxLeaderboardLimit caps caller-requested sizes
	MaxLeaderboardLimit = 200
)

// Entry is one agent's derived standing. Nothing here is persisted; every
// field is recomputed from the proof log and the agent record on each read.
type Entry struct {
	Rank        int
	AgentRowID  *int64
	AgentID     string
	DisplayName string
	Score       int
	ProofCount  int
	PRCount     int
	SkillsCount int
	Badges      []domain.Badge
	// XHandle is only populated for socially verified agents
	XHandle  string
	Verified bool

	WalletAddress             *string
	WalletTxCount             *int64
	WalletTokenTransfersCount *int64
	WalletStatsUpdatedAt      *time.Time

	FirstProofAt time.Time
	LastProofAt  time.Time
}

// Profile is an Entry plus the proofs behind it
type Profile struct {
	Entry
	Proofs []*schema.Proof
}

// Stats summarizes the whole oracle
type Stats struct {
	TotalAgents    int64
	VerifiedAgents int64
	TotalProofs    int64
	ProofsByType   map[string]int64
	TotalScore     int64
}

// Aggregator derives reputation from the append-only proof log
//
//go:generate mockgen -source=aggregator.go -destination=../mocks/reputation_aggregator.go -package=mocks -mock_names=Aggregator=MockAggregator
type Aggregator interface {
	// Leaderboard returns ranked entries. limit <= 0 selects the default.
	Leaderboard(ctx context.Context, limit int) ([]*Entry, error)
	// ProfileByRowID returns one agent's profile by surrogate key
	ProfileByRowID(ctx context.Context, rowID int64) (*Profile, error)
	// ProfileByAgentID returns one agent's profile by handle
	ProfileByAgentID(ctx context.Context, agentID string) (*Profile, error)
	// Stats returns oracle-wide totals
	Stats(ctx context.Context) (*Stats, error)
}

type aggregator struct {
	store     store.Store
	refresher walletstats.Refresher
}

// NewAggregator creates a reputation aggregator
func NewAggregator(s store.Store, refresher walletstats.Refresher) Aggregator {
	return &aggregator{store: s, refresher: refresher}
}

// Score sums the per-type point values of a proof set. Order-invariant.
func Score(proofs []*schema.Proof) int {
	total := 0
	for _, p := range proofs {
		total += domain.PointsFor(domain.ProofType(p.Type))
	}
	return total
}

// Badges derives display badges from the proof types present
func Badges(proofs []*schema.Proof) []domain.Badge {
	var builder, reliable bool
	for _, p := range proofs {
		switch domain.ProofType(p.Type) {
		case domain.ProofTypeGitHubPR, domain.ProofTypeArtifact:
			builder = true
		case domain.ProofTypeUptime:
			reliable = true
		}
	}

	badges := []domain.Badge{}
	if builder {
		badges = append(badges, domain.BadgeBuilder)
	}
	if reliable {
		badges = append(badges, domain.BadgeReliable)
	}
	return badges
}

// DisplayName picks the most recent non-empty snapshot from proofs ordered
// newest first, trimmed and capped
func DisplayName(newestFirst []*schema.Proof) string {
	for _, p := range newestFirst {
		if p.DisplayName == nil {
			continue
		}
		s := strings.TrimSpace(*p.DisplayName)
		if s == "" {
			continue
		}
		if len(s) > domain.MaxDisplayNameLength {
			s = s[:domain.MaxDisplayNameLength]
		}
		return s
	}
	return ""
}

// GroupKey returns the aggregation key of a proof: the submitter's surrogate
// key when present, otherwise a legacy key on the string handle. Proofs with
// neither are unattributable and return "".
func GroupKey(p *schema.Proof) string {
	if p.AgentRowID != nil {
		return fmt.Sprintf("row-%d", *p.AgentRowID)
	}
	if p.AgentID != nil && strings.TrimSpace(*p.AgentID) != "" {
		return "legacy-" + *p.AgentID
	}
	return ""
}

// attributionKey resolves a proof's aggregation key against the registered
// agents: a legacy proof whose handle matches a registered agent folds into
// that agent's row group, so pre-registration history and row-attributed
// proofs always land in one entry.
func attributionKey(p *schema.Proof, agentsByHandle map[string]*schema.Agent) (string, *int64) {
	if p.AgentRowID != nil {
		return fmt.Sprintf("row-%d", *p.AgentRowID), p.AgentRowID
	}
	if p.AgentID == nil || strings.TrimSpace(*p.AgentID) == "" {
		return "", nil
	}
	if ag, ok := agentsByHandle[*p.AgentID]; ok {
		id := ag.ID
		return fmt.Sprintf("row-%d", id), &id
	}
	return "legacy-" + *p.AgentID, nil
}

// ClampLimit normalizes a caller-requested leaderboard size
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		return MaxLeaderboardLimit
	}
	return limit
}

type group struct {
	key   string
	rowID *int64
	// agentID is the handle carried by the group's proofs
	agentID string
	proofs  []*schema.Proof // newest first
}

func (a *aggregator) Leaderboard(ctx context.Context, limit int) ([]*Entry, error) {
	limit = ClampLimit(limit)

	groups, agentsByID, agentsByHandle, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, a.buildEntry(g, agentsByID, agentsByHandle))
	}

	// Score descending; ties go to whoever proved themselves first
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].FirstProofAt.Before(entries[j].FirstProofAt)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i, e := range entries {
		e.Rank = i + 1
		if e.AgentRowID != nil {
			a.refresher.RefreshIfStale(agentsByID[*e.AgentRowID])
		}
	}
	return entries, nil
}

func (a *aggregator) ProfileByRowID(ctx context.Context, rowID int64) (*Profile, error) {
	agent, err := a.store.GetAgentByID(ctx, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	if agent == nil {
		return nil, domain.ErrAgentNotFound
	}
	return a.profile(ctx, agent)
}

func (a *aggregator) ProfileByAgentID(ctx context.Context, agentID string) (*Profile, error) {
	agent, err := a.store.GetAgentByAgentID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	if agent != nil {
		return a.profile(ctx, agent)
	}

	// Legacy handle: proofs may predate registration
	allProofs, err := a.store.ListProofs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load proofs: %w", err)
	}
	var proofs []*schema.Proof
	for _, p := range allProofs {
		if p.AgentRowID == nil && p.AgentID != nil && *p.AgentID == agentID {
			proofs = append(proofs, p)
		}
	}
	if len(proofs) == 0 {
		return nil, domain.ErrAgentNotFound
	}

	g := &group{key: "legacy-" + agentID, agentID: agentID, proofs: proofs}
	entry := a.buildEntry(g, nil, map[string]*schema.Agent{})
	return &Profile{Entry: *entry, Proofs: proofs}, nil
}

func (a *aggregator) Stats(ctx context.Context) (*Stats, error) {
	agents, err := a.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}
	proofs, err := a.store.ListProofs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load proofs: %w", err)
	}

	stats := &Stats{
		TotalProofs:  int64(len(proofs)),
		ProofsByType: make(map[string]int64),
	}

	agentsByHandle := make(map[string]*schema.Agent, len(agents))
	for _, ag := range agents {
		if _, taken := agentsByHandle[ag.AgentID]; !taken {
			agentsByHandle[ag.AgentID] = ag
		}
		if ag.Verified() {
			stats.VerifiedAgents++
		}
	}

	// TotalAgents counts distinct attributable proof-submitting agents, not
	// registered rows
	groupKeys := make(map[string]struct{})
	for _, p := range proofs {
		if key, _ := attributionKey(p, agentsByHandle); key != "" {
			groupKeys[key] = struct{}{}
		}
		stats.ProofsByType[p.Type]++
		stats.TotalScore += int64(domain.PointsFor(domain.ProofType(p.Type)))
	}
	stats.TotalAgents = int64(len(groupKeys))
	return stats, nil
}

// profile builds a single agent's profile without loading every group
func (a *aggregator) profile(ctx context.Context, agent *schema.Agent) (*Profile, error) {
	allProofs, err := a.store.ListProofs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load proofs: %w", err)
	}

	var proofs []*schema.Proof
	for _, p := range allProofs {
		if p.AgentRowID != nil && *p.AgentRowID == agent.ID {
			proofs = append(proofs, p)
			continue
		}
		// Legacy proofs submitted under the handle before the row existed
		if p.AgentRowID == nil && p.AgentID != nil && *p.AgentID == agent.AgentID {
			proofs = append(proofs, p)
		}
	}

	rowID := agent.ID
	g := &group{
		key:     fmt.Sprintf("row-%d", rowID),
		rowID:   &rowID,
		agentID: agent.AgentID,
		proofs:  proofs,
	}
	entry := a.buildEntry(g,
		map[int64]*schema.Agent{rowID: agent},
		map[string]*schema.Agent{agent.AgentID: agent})

	a.refresher.RefreshIfStale(agent)
	return &Profile{Entry: *entry, Proofs: proofs}, nil
}

// load reads everything and groups proofs by attribution key
func (a *aggregator) load(ctx context.Context) ([]*group, map[int64]*schema.Agent, map[string]*schema.Agent, error) {
	proofs, err := a.store.ListProofs(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load proofs: %w", err)
	}
	agents, err := a.store.ListAgents(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load agents: %w", err)
	}

	agentsByID := make(map[int64]*schema.Agent, len(agents))
	agentsByHandle := make(map[string]*schema.Agent, len(agents))
	for _, ag := range agents {
		agentsByID[ag.ID] = ag
		if _, taken := agentsByHandle[ag.AgentID]; !taken {
			agentsByHandle[ag.AgentID] = ag
		}
	}

	byKey := make(map[string]*group)
	var order []string
	for _, p := range proofs {
		key, rowID := attributionKey(p, agentsByHandle)
		if key == "" {
			continue
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key, rowID: rowID}
			if p.AgentID != nil {
				g.agentID = *p.AgentID
			}
			byKey[key] = g
			order = append(order, key)
		}
		if g.agentID == "" && p.AgentID != nil {
			g.agentID = *p.AgentID
		}
		g.proofs = append(g.proofs, p)
	}

	groups := make([]*group, 0, len(order))
	for _, key := range order {
		groups = append(groups, byKey[key])
	}
	return groups, agentsByID, agentsByHandle, nil
}

func (a *aggregator) buildEntry(g *group, agentsByID map[int64]*schema.Agent, agentsByHandle map[string]*schema.Agent) *Entry {
	entry := &Entry{
		AgentRowID: g.rowID,
		AgentID:    g.agentID,
		Score:      Score(g.proofs),
		ProofCount: len(g.proofs),
		Badges:     Badges(g.proofs),
	}

	for _, p := range g.proofs {
		if domain.ProofType(p.Type) == domain.ProofTypeGitHubPR {
			entry.PRCount++
			if p.IsSkill {
				entry.SkillsCount++
			}
		}
		if entry.FirstProofAt.IsZero() || p.CreatedAt.Before(entry.FirstProofAt) {
			entry.FirstProofAt = p.CreatedAt
		}
		if p.CreatedAt.After(entry.LastProofAt) {
			entry.LastProofAt = p.CreatedAt
		}
	}

	var agent *schema.Agent
	if g.rowID != nil {
		agent = agentsByID[*g.rowID]
	} else if g.agentID != "" {
		// Legacy group: join the registered record by handle when one exists
		agent = agentsByHandle[g.agentID]
	}

	entry.DisplayName = DisplayName(g.proofs)
	if agent != nil {
		if entry.AgentID == "" {
			entry.AgentID = agent.AgentID
		}
		if entry.DisplayName == "" && agent.DisplayName != nil {
			entry.DisplayName = *agent.DisplayName
		}
		entry.Verified = agent.Verified()
		if entry.Verified {
			entry.XHandle = agent.XHandle
		}
		entry.WalletAddress = agent.WalletAddress
		entry.WalletTxCount = agent.WalletTxCount
		entry.WalletTokenTransfersCount = agent.WalletTokenTransfersCount
		entry.WalletStatsUpdatedAt = agent.WalletStatsUpdatedAt
	}
	if entry.DisplayName == "" {
		entry.DisplayName = entry.AgentID
	}
	return entry
}
