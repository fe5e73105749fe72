package walletstats

import (
	"context"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/moltworks/molt-oracle/internal/adapter"
	"github.com/moltworks/molt-oracle/internal/logger"
	"github.com/moltworks/molt-oracle/internal/providers/blockscout"
	"github.com/moltworks/molt-oracle/internal/store"
	"github.com/moltworks/molt-oracle/internal/store/schema"
)

// Config holds wallet enrichment behavior
type Config struct {
	// CacheTTL is how long fetched counters stay fresh
	CacheTTL time.Duration
	// FetchTimeout bounds a single explorer call
	FetchTimeout time.Duration
	// PoolSize and QueueSize shape the background worker pool
	PoolSize  int
	QueueSize int
}

// Refresher keeps agents' wallet activity counters warm. Refreshes run in a
// background pool and never block or fail the request that triggered them;
// wallet stats are best-effort enrichment, not part of any invariant.
//
//go:generate mockgen -source=refresher.go -destination=../mocks/walletstats_refresher.go -package=mocks -mock_names=Refresher=MockRefresher
type Refresher interface {
	// RefreshIfStale schedules a background refresh when the agent has a
	// wallet and its counters are missing or older than the TTL
	RefreshIfStale(agent *schema.Agent)
	// StopAndWait drains the pool. Used on shutdown and in tests.
	StopAndWait()
}

type refresher struct {
	store   store.Store
	client  blockscout.Client
	clock   adapter.Clock
	config  Config
	pool    pond.Pool
	mu      sync.Mutex
	pending map[int64]struct{}
}

// NewRefresher creates a wallet stats refresher backed by a worker pool
func NewRefresher(s store.Store, client blockscout.Client, clock adapter.Clock, cfg Config) Refresher {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 2 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	return &refresher{
		store:   s,
		client:  client,
		clock:   clock,
		config:  cfg,
		pool:    pond.NewPool(cfg.PoolSize, pond.WithQueueSize(cfg.QueueSize)),
		pending: make(map[int64]struct{}),
	}
}

func (r *refresher) RefreshIfStale(agent *schema.Agent) {
	if agent == nil || agent.WalletAddress == nil || *agent.WalletAddress == "" {
		return
	}
	if agent.WalletStatsUpdatedAt != nil && r.clock.Since(*agent.WalletStatsUpdatedAt) < r.config.CacheTTL {
		return
	}

	// Collapse concurrent triggers for the same agent
	r.mu.Lock()
	if _, inFlight := r.pending[agent.ID]; inFlight {
		r.mu.Unlock()
		return
	}
	r.pending[agent.ID] = struct{}{}
	r.mu.Unlock()

	id := agent.ID
	address := *agent.WalletAddress
	_, ok := r.pool.TrySubmit(func() {
		defer r.done(id)
		r.refresh(id, address)
	})
	if !ok {
		r.done(id)
		logger.Debug("wallet stats queue full, skipping refresh", zap.Int64("agent", id))
	}
}

func (r *refresher) done(id int64) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// refresh fetches counters and persists them. Failures are logged and
// swallowed; stale counters stay visible until the next successful fetch.
func (r *refresher) refresh(id int64, address string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.FetchTimeout)
	defer cancel()

	counters, err := r.client.GetAddressCounters(ctx, address)
	if err != nil {
		logger.Debug("wallet stats fetch failed",
			zap.Int64("agent", id),
			zap.String("address", address),
			zap.Error(err))
		return
	}

	updateCtx, updateCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer updateCancel()

	now := r.clock.Now().UTC()
	err = r.store.UpdateAgentWalletStats(updateCtx, id, counters.TransactionsCount, counters.TokenTransfersCount, now)
	if err != nil {
		logger.Warn("failed to persist wallet stats",
			zap.Int64("agent", id),
			zap.Error(err))
		return
	}

	logger.Debug("wallet stats refreshed",
		zap.Int64("agent", id),
		zap.Int64("txCount", counters.TransactionsCount),
		zap.Int64("tokenTransfers", counters.TokenTransfersCount))
}

func (r *refresher) StopAndWait() {
	r.pool.StopAndWait()
}
