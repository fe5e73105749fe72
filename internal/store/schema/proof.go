package schema

import (
	"time"
)

// Proof represents the proofs table - an externally corroborated claim of
// agent activity, recorded exactly once and never mutated
type Proof struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Type identifies which external verifier corroborated this proof
	Type string `gorm:"column:type;not null;index;type:text"`
	// URL is the canonical evidence locator as submitted
	URL string `gorm:"column:url;not null;type:text"`
	// URLKey is the lowercase-normalized copy of URL. Its unique index is
	// the store-level idempotency constraint for the whole submission
	// pipeline.
	URLKey string `gorm:"column:url_key;not null;uniqueIndex;type:text"`
	// AgentID is the legacy string identifier of the submitter
	AgentID *string `gorm:"column:agent_id;index;type:text"`
	// AgentRowID is the submitter's Agent surrogate key. Proofs claimed
	// before the surrogate key existed carry only AgentID.
	AgentRowID *int64 `gorm:"column:agent_row_id;index"`
	// DisplayName is a snapshot of the submitter's display name at submission time
	DisplayName *string `gorm:"column:display_name;type:text"`
	// ChainID is optional submission metadata
	ChainID *int64 `gorm:"column:chain_id"`
	// Note is optional submission metadata
	Note *string `gorm:"column:note;type:text"`
	// IsSkill is only meaningful for github_pr proofs
	IsSkill bool `gorm:"column:is_skill;not null;default:false"`
	// VerifiedAt is when the external verifier corroborated the claim.
	// Verification is synchronous with creation; no pending state is persisted.
	VerifiedAt time.Time `gorm:"column:verified_at;not null"`
	// CreatedAt is the persistence timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the Proof model
func (Proof) TableName() string {
	return "proofs"
}
