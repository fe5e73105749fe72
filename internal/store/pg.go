package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// AutoMigrate creates or updates the agents and proofs tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&schema.Agent{}, &schema.Proof{})
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to defaults: 20 open, 5 idle,
// 5m lifetime, 10m idle time.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// CreateAgent persists a new agent and returns it with the assigned id
func (s *pgStore) CreateAgent(ctx context.Context, agent *schema.Agent) (*schema.Agent, error) {
	if err := s.db.WithContext(ctx).Create(agent).Error; err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return agent, nil
}

// GetAgentByID retrieves an agent by surrogate key
func (s *pgStore) GetAgentByID(ctx context.Context, id int64) (*schema.Agent, error) {
	var agent schema.Agent
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &agent, nil
}

// GetAgentByAgentID retrieves the first agent with the given handle.
// Handles are unique by convention only; first match wins on duplicates.
func (s *pgStore) GetAgentByAgentID(ctx context.Context, agentID string) (*schema.Agent, error) {
	var agent schema.Agent
	err := s.db.WithContext(ctx).Where("agent_id = ?", agentID).Order("id").First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent by handle: %w", err)
	}
	return &agent, nil
}

// GetAgentByAPIKeyHash retrieves an agent by credential hash
func (s *pgStore) GetAgentByAPIKeyHash(ctx context.Context, keyHash string) (*schema.Agent, error) {
	var agent schema.Agent
	err := s.db.WithContext(ctx).Where("api_key_hash = ?", keyHash).First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent by key hash: %w", err)
	}
	return &agent, nil
}

// GetClaimableAgentByClaimCode retrieves an unverified agent holding the code
func (s *pgStore) GetClaimableAgentByClaimCode(ctx context.Context, claimCode string) (*schema.Agent, error) {
	var agent schema.Agent
	err := s.db.WithContext(ctx).
		Where("claim_code = ? AND verified_at IS NULL", claimCode).
		First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent by claim code: %w", err)
	}
	return &agent, nil
}

// MarkAgentVerified sets x_handle and verified_at. The WHERE guard keeps the
// transition one-way even under concurrent verification attempts.
func (s *pgStore) MarkAgentVerified(ctx context.Context, id int64, xHandle string, verifiedAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Agent{}).
		Where("id = ? AND verified_at IS NULL", id).
		Updates(map[string]interface{}{
			"x_handle":    xHandle,
			"verified_at": verifiedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark agent verified: %w", err)
	}
	return nil
}

// UpdateAgentWalletStats updates only the wallet enrichment fields
func (s *pgStore) UpdateAgentWalletStats(ctx context.Context, id int64, txCount, tokenTransfers int64, updatedAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Agent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"wallet_tx_count":              txCount,
			"wallet_token_transfers_count": tokenTransfers,
			"wallet_stats_updated_at":      updatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update wallet stats: %w", err)
	}
	return nil
}

// ListAgents returns all agents
func (s *pgStore) ListAgents(ctx context.Context) ([]*schema.Agent, error) {
	var agents []*schema.Agent
	if err := s.db.WithContext(ctx).Order("id").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

// CreateProof persists a new proof. The unique index on url_key closes the
// duplicate-check-then-insert race at the store layer; a violation maps to
// domain.ErrDuplicateProofURL.
func (s *pgStore) CreateProof(ctx context.Context, proof *schema.Proof) (*schema.Proof, error) {
	if err := s.db.WithContext(ctx).Create(proof).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrDuplicateProofURL
		}
		return nil, fmt.Errorf("failed to create proof: %w", err)
	}
	return proof, nil
}

// ProofURLExists reports whether a proof with the same case-insensitive URL exists
func (s *pgStore) ProofURLExists(ctx context.Context, url string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Proof{}).
		Where("url_key = ?", domain.URLKey(url)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check proof url: %w", err)
	}
	return count > 0, nil
}

// ListProofs returns all proofs ordered by creation time descending
func (s *pgStore) ListProofs(ctx context.Context) ([]*schema.Proof, error) {
	var proofs []*schema.Proof
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&proofs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list proofs: %w", err)
	}
	return proofs, nil
}
