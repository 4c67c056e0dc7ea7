package models

import "time"

// ApprovalModel is the persisted shape of an approval queue record. Plan
// is stored as JSON text via the persistence layer's plan codec, the same
// text-column choice ProvenanceModel makes for its nested structures.
type ApprovalModel struct {
	ApprovalID    string `gorm:"primaryKey;size:64"`
	PlanJSON      string `gorm:"type:text"`
	SourceKey     string `gorm:"size:128;index"`
	UserRequest   string `gorm:"type:text"`
	Status        string `gorm:"size:16;index"`
	DecidedReason string `gorm:"type:text"`
	DecidedBy     string `gorm:"size:64"`
	CreatedAt     time.Time
	ExpiresAt     time.Time `gorm:"index"`
}

func (ApprovalModel) TableName() string {
	return "approvals"
}
