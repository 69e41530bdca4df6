package audit

import (
	"context"
	"encoding/json"
	"time"

	"manual-approval-workflow/internal/domain"

	"gorm.io/gorm"
)

// Store is the append-only audit ledger plus the field history trail. It
// deliberately exposes no update or delete operation; the tables also carry
// a database trigger refusing both (see internal/db).
type Store interface {
	Record(ctx context.Context, actorID uint64, action, entityType string, entityID uint64, metadata any) (*domain.AuditLogEntry, error)
	RecordFieldChanges(ctx context.Context, table string, recordID uint64, revisionID *uint64, actorID uint64, before, after any) (int, error)
	List(ctx context.Context, filter LogFilter, page, pageSize int) ([]domain.AuditLogEntry, LogsMeta, error)
	ListFieldHistory(ctx context.Context, table string, recordID uint64, page, pageSize int) ([]domain.FieldHistoryEntry, LogsMeta, error)
	WithTx(tx *gorm.DB) Store
}

// LogFilter narrows an audit log query. Nil/zero fields are ignored.
type LogFilter struct {
	ActorID    *uint64
	Action     string
	EntityType string
	EntityID   *uint64
	From       *time.Time
	To         *time.Time
}

type LogsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

// GormStore implements Store
type GormStore struct {
	db *gorm.DB
}

// NewStore creates a new audit store
func NewStore(db *gorm.DB) Store {
	return &GormStore{db: db}
}

// WithTx returns a store bound to the given transaction handle, so audit
// writes commit or roll back together with the business mutation.
func (s *GormStore) WithTx(tx *gorm.DB) Store {
	return &GormStore{db: tx}
}

func (s *GormStore) Record(ctx context.Context, actorID uint64, action, entityType string, entityID uint64, metadata any) (*domain.AuditLogEntry, error) {
	entry := &domain.AuditLogEntry{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  time.Now().UTC(),
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		entry.Metadata = raw
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *GormStore) RecordFieldChanges(ctx context.Context, table string, recordID uint64, revisionID *uint64, actorID uint64, before, after any) (int, error) {
	changes, err := DiffFields(before, after)
	if err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	entries := make([]domain.FieldHistoryEntry, 0, len(changes))
	for _, change := range changes {
		entries = append(entries, domain.FieldHistoryEntry{
			Table:       table,
			RecordID:    recordID,
			FieldName:   change.Field,
			OldValue:    change.Old,
			NewValue:    change.New,
			ChangeType:  "update",
			RevisionID:  revisionID,
			ChangedByID: actorID,
			ChangedAt:   now,
		})
	}

	if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *GormStore) List(ctx context.Context, filter LogFilter, page, pageSize int) ([]domain.AuditLogEntry, LogsMeta, error) {
	query := s.db.WithContext(ctx).Model(&domain.AuditLogEntry{})

	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", filter.To.UTC())
	}

	var totalRecords int64
	if err := query.Count(&totalRecords).Error; err != nil {
		return nil, LogsMeta{}, err
	}

	var entries []domain.AuditLogEntry
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, LogsMeta{}, err
	}

	return entries, paginationMeta(totalRecords, page, pageSize), nil
}

func (s *GormStore) ListFieldHistory(ctx context.Context, table string, recordID uint64, page, pageSize int) ([]domain.FieldHistoryEntry, LogsMeta, error) {
	query := s.db.WithContext(ctx).Model(&domain.FieldHistoryEntry{}).
		Where("table_name = ? AND record_id = ?", table, recordID)

	var totalRecords int64
	if err := query.Count(&totalRecords).Error; err != nil {
		return nil, LogsMeta{}, err
	}

	var entries []domain.FieldHistoryEntry
	offset := (page - 1) * pageSize
	err := query.Order("changed_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, LogsMeta{}, err
	}

	return entries, paginationMeta(totalRecords, page, pageSize), nil
}

func paginationMeta(total int64, page, pageSize int) LogsMeta {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return LogsMeta{
		Total:       total,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}
}
