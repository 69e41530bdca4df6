package domain

import (
	"encoding/json"
	"time"
)

// Revision records a manual's state at a lifecycle transition. The snapshot
// and decision fields freeze once the revision is approved. A rejected
// revision keeps its decision until the manual is resubmitted, which reopens
// the same row instead of creating a new one.
type Revision struct {
	ID               uint64          `json:"id"`
	ManualID         uint64          `json:"manual_id" gorm:"index;uniqueIndex:idx_manual_revision,priority:1"`
	RevisionNumber   string          `json:"revision_number" gorm:"type:varchar(20);uniqueIndex:idx_manual_revision,priority:2"`
	Status           Status          `json:"status" gorm:"type:varchar(20);index"`
	Snapshot         json.RawMessage `json:"snapshot,omitempty" gorm:"type:jsonb"`
	ChangesSummary   *string         `json:"changes_summary" gorm:"type:text"`
	AffectedChapters json.RawMessage `json:"affected_chapters,omitempty" gorm:"type:jsonb"`
	SubmittedAt      *time.Time      `json:"submitted_at"`
	SubmittedByID    *uint64         `json:"submitted_by_id"`
	ApprovedAt       *time.Time      `json:"approved_at"`
	ApprovedByID     *uint64         `json:"approved_by_id"`
	RejectedAt       *time.Time      `json:"rejected_at"`
	RejectedByID     *uint64         `json:"rejected_by_id"`
	RejectionReason  *string         `json:"rejection_reason"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Decided reports whether the revision currently carries a decision.
func (r *Revision) Decided() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}
