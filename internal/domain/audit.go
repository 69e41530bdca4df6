package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audited entity types.
const (
	EntityManual   = "manual"
	EntityChapter  = "chapter"
	EntityRevision = "revision"
)

// AuditLogEntry is one row of the append-only mutation ledger. The table
// carries a database trigger rejecting UPDATE and DELETE, so history cannot
// be rewritten even through a raw connection.
type AuditLogEntry struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	ActorID    uint64          `json:"actor_id" gorm:"index"`
	Action     string          `json:"action" gorm:"type:varchar(64);index"`
	EntityType string          `json:"entity_type" gorm:"type:varchar(32);index"`
	EntityID   uint64          `json:"entity_id" gorm:"index"`
	Metadata   json.RawMessage `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time       `json:"created_at" gorm:"index"`
}

func (AuditLogEntry) TableName() string { return "audit_log_entries" }

func (e *AuditLogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// FieldHistoryEntry is one row per changed field per mutation of a tracked
// entity. Values are stored JSON-encoded; a nil pointer means SQL NULL on
// that side of the change. Same append-only trigger as the audit log.
type FieldHistoryEntry struct {
	ID          uint64    `json:"id"`
	Table       string    `json:"table_name" gorm:"column:table_name;type:varchar(64);index"`
	RecordID    uint64    `json:"record_id" gorm:"index"`
	FieldName   string    `json:"field_name" gorm:"type:varchar(64)"`
	OldValue    *string   `json:"old_value" gorm:"type:text"`
	NewValue    *string   `json:"new_value" gorm:"type:text"`
	ChangeType  string    `json:"change_type" gorm:"type:varchar(20)"`
	RevisionID  *uint64   `json:"revision_id" gorm:"index"`
	ChangedByID uint64    `json:"changed_by_id"`
	ChangedAt   time.Time `json:"changed_at"`
}

func (FieldHistoryEntry) TableName() string { return "field_history_entries" }
