package revision

import (
	"context"

	"manual-approval-workflow/internal/audit"
	"manual-approval-workflow/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the data access layer for lifecycle transitions. One
// Transaction call spans the whole transition: the locked manual read, the
// numbering lookup, the snapshot source, the revision and manual writes,
// and (via Audit) the ledger writes.
type Repository interface {
	Transaction(ctx context.Context, fn func(r Repository) error) error
	Audit() audit.Store

	LockManual(ctx context.Context, id uint64) (*domain.Manual, error)
	FindManual(ctx context.Context, id uint64) (*domain.Manual, error)
	SaveManual(ctx context.Context, m *domain.Manual) error
	ListChapters(ctx context.Context, manualID uint64) ([]domain.Chapter, error)

	ListByManual(ctx context.Context, manualID uint64) ([]domain.Revision, error)
	FindByID(ctx context.Context, manualID, revisionID uint64) (*domain.Revision, error)
	FindLatestByStatus(ctx context.Context, manualID uint64, status domain.Status) (*domain.Revision, error)
	LatestApproved(ctx context.Context, manualID uint64) (*domain.Revision, error)
	Create(ctx context.Context, rev *domain.Revision) error
	Save(ctx context.Context, rev *domain.Revision) error
}

// RepositoryImpl implements Repository
type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new revision repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Transaction(ctx context.Context, fn func(r Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RepositoryImpl{db: tx})
	})
}

func (r *RepositoryImpl) Audit() audit.Store {
	return audit.NewStore(r.db)
}

// LockManual reads the manual row under SELECT ... FOR UPDATE so concurrent
// transitions serialize and each guard sees the current committed status.
func (r *RepositoryImpl) LockManual(ctx context.Context, id uint64) (*domain.Manual, error) {
	var m domain.Manual
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RepositoryImpl) FindManual(ctx context.Context, id uint64) (*domain.Manual, error) {
	var m domain.Manual
	err := r.db.WithContext(ctx).First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RepositoryImpl) SaveManual(ctx context.Context, m *domain.Manual) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *RepositoryImpl) ListChapters(ctx context.Context, manualID uint64) ([]domain.Chapter, error) {
	var chapters []domain.Chapter
	err := r.db.WithContext(ctx).
		Where("manual_id = ?", manualID).
		Order("chapter_num ASC, section_num ASC NULLS FIRST, subsection_num ASC NULLS FIRST, clause_num ASC NULLS FIRST, display_order ASC").
		Find(&chapters).Error
	return chapters, err
}

// ListByManual returns the manual's revisions in creation order, ascending.
func (r *RepositoryImpl) ListByManual(ctx context.Context, manualID uint64) ([]domain.Revision, error) {
	var revisions []domain.Revision
	err := r.db.WithContext(ctx).
		Where("manual_id = ?", manualID).
		Order("created_at ASC, id ASC").
		Find(&revisions).Error
	return revisions, err
}

func (r *RepositoryImpl) FindByID(ctx context.Context, manualID, revisionID uint64) (*domain.Revision, error) {
	var rev domain.Revision
	err := r.db.WithContext(ctx).
		Where("manual_id = ?", manualID).
		First(&rev, revisionID).Error
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// FindLatestByStatus returns the manual's most recent revision in the given
// status, or nil when none exists.
func (r *RepositoryImpl) FindLatestByStatus(ctx context.Context, manualID uint64, status domain.Status) (*domain.Revision, error) {
	var rev domain.Revision
	err := r.db.WithContext(ctx).
		Where("manual_id = ? AND status = ?", manualID, status).
		Order("created_at DESC, id DESC").
		First(&rev).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// LatestApproved returns the most recently approved revision, or nil.
func (r *RepositoryImpl) LatestApproved(ctx context.Context, manualID uint64) (*domain.Revision, error) {
	var rev domain.Revision
	err := r.db.WithContext(ctx).
		Where("manual_id = ? AND status = ?", manualID, domain.StatusApproved).
		Order("approved_at DESC").
		First(&rev).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, rev *domain.Revision) error {
	return r.db.WithContext(ctx).Create(rev).Error
}

func (r *RepositoryImpl) Save(ctx context.Context, rev *domain.Revision) error {
	return r.db.WithContext(ctx).Save(rev).Error
}
