package domain

import (
	"time"
)

// Status is the lifecycle state shared by a manual and its revisions.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ValidStatus reports whether s is one of the four lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusInReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Manual is the regulated document under management. Manuals are never
// hard-deleted; Archived marks them removed from the working set.
type Manual struct {
	ID              uint64     `json:"id"`
	Title           string     `json:"title"`
	Organization    string     `json:"organization"`
	Status          Status     `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	CurrentRevision string     `json:"current_revision" gorm:"type:varchar(20);default:'0'"`
	EffectiveDate   *time.Time `json:"effective_date"`
	Archived        bool       `json:"archived" gorm:"default:false"`
	OwnerID         uint64     `json:"owner_id" gorm:"index"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Chapters        []Chapter  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}
