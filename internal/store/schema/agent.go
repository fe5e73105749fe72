package schema

import (
	"time"
)

// Agent represents the agents table - a registered identity accumulating reputation
type Agent struct {
	// ID is the internal database primary key (the stable surrogate key)
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// AgentID is the human-chosen string handle. Unique by convention but
	// not enforced atomically by the store (pre-surrogate-key data may
	// carry duplicates).
	AgentID string `gorm:"column:agent_id;not null;index;type:text"`
	// DisplayName is the optional user-supplied display name
	DisplayName *string `gorm:"column:display_name;type:text"`
	// WalletAddress is the optional lowercase-normalized 0x hex address
	WalletAddress *string `gorm:"column:wallet_address;type:text"`
	// APIKeyHash is the SHA-256 digest of the issued API credential.
	// The raw credential is never persisted.
	APIKeyHash string `gorm:"column:api_key_hash;not null;index;type:text"`
	// ClaimCode is the single-use code issued at registration
	ClaimCode string `gorm:"column:claim_code;not null;index;type:text"`
	// ClaimCodeExpiresAt is 24h after issuance
	ClaimCodeExpiresAt time.Time `gorm:"column:claim_code_expires_at;not null"`
	// VerifiedAt is null until social verification succeeds; immutable once set
	VerifiedAt *time.Time `gorm:"column:verified_at"`
	// XHandle is the social handle bound at verification time
	XHandle string `gorm:"column:x_handle;not null;default:'';type:text"`
	// Wallet enrichment counters, refreshed independently of the rest of the record
	WalletTxCount             *int64     `gorm:"column:wallet_tx_count"`
	WalletTokenTransfersCount *int64     `gorm:"column:wallet_token_transfers_count"`
	WalletStatsUpdatedAt      *time.Time `gorm:"column:wallet_stats_updated_at"`
	// CreatedAt is the registration timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the Agent model
func (Agent) TableName() string {
	return "agents"
}

// Verified reports whether social verification has completed
func (a *Agent) Verified() bool {
	return a.VerifiedAt != nil
}

// Claimable reports whether the claim code can still be redeemed at the given time
func (a *Agent) Claimable(now time.Time) bool {
	return a.VerifiedAt == nil && !now.After(a.ClaimCodeExpiresAt)
}
