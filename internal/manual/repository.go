package manual

import (
	"context"

	"manual-approval-workflow/internal/audit"
	"manual-approval-workflow/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the data access layer for manuals and their chapter tree.
// Transaction yields a repository bound to one database transaction; Audit
// returns an audit store bound to the same handle, so ledger writes share
// the enclosing transaction.
type Repository interface {
	Transaction(ctx context.Context, fn func(r Repository) error) error
	Audit() audit.Store

	Create(ctx context.Context, manual *domain.Manual) error
	FindByID(ctx context.Context, id uint64) (*domain.Manual, error)
	LockByID(ctx context.Context, id uint64) (*domain.Manual, error)
	Save(ctx context.Context, manual *domain.Manual) error
	List(ctx context.Context, ownerID uint64, page, pageSize int) ([]domain.Manual, ManualsMeta, error)

	CreateChapter(ctx context.Context, chapter *domain.Chapter) error
	ChapterExistsAt(ctx context.Context, chapter *domain.Chapter) (bool, error)
	FindChapter(ctx context.Context, manualID, chapterID uint64) (*domain.Chapter, error)
	ListChapters(ctx context.Context, manualID uint64) ([]domain.Chapter, error)
	CountChildren(ctx context.Context, chapterID uint64) (int64, error)
	SaveChapter(ctx context.Context, chapter *domain.Chapter) error
	DeleteChapter(ctx context.Context, chapterID uint64) error

	CreateRevision(ctx context.Context, revision *domain.Revision) error
	ActiveRevisionID(ctx context.Context, manualID uint64) (*uint64, error)
}

type ManualsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

// RepositoryImpl implements Repository
type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new manual repository
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

func (r *RepositoryImpl) Create(ctx context.Context, manual *domain.Manual) error {
	return r.db.WithContext(ctx).Create(manual).Error
}

func (r *RepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Manual, error) {
	var m domain.Manual
	err := r.db.WithContext(ctx).First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LockByID reads the manual row under SELECT ... FOR UPDATE. Callers must be
// inside Transaction; concurrent lifecycle transitions serialize on this
// lock and re-evaluate their guard against the fresh row.
func (r *RepositoryImpl) LockByID(ctx context.Context, id uint64) (*domain.Manual, error) {
	var m domain.Manual
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RepositoryImpl) Save(ctx context.Context, manual *domain.Manual) error {
	return r.db.WithContext(ctx).Save(manual).Error
}

func (r *RepositoryImpl) List(ctx context.Context, ownerID uint64, page, pageSize int) ([]domain.Manual, ManualsMeta, error) {
	var manuals []domain.Manual
	var totalRecords int64

	query := r.db.WithContext(ctx).Model(&domain.Manual{}).
		Where("owner_id = ? AND archived = false", ownerID)

	// Count total records
	if err := query.Count(&totalRecords).Error; err != nil {
		return manuals, ManualsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("updated_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&manuals).Error

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return manuals, ManualsMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, err
}

func (r *RepositoryImpl) CreateChapter(ctx context.Context, chapter *domain.Chapter) error {
	return r.db.WithContext(ctx).Create(chapter).Error
}

// ChapterExistsAt reports whether a sibling already occupies the chapter's
// coordinate tuple. NULL coordinates must be matched with IS NULL; callers
// run this inside the transaction that holds the manual row lock, so
// concurrent inserts on one manual serialize around it.
func (r *RepositoryImpl) ChapterExistsAt(ctx context.Context, chapter *domain.Chapter) (bool, error) {
	query := r.db.WithContext(ctx).Model(&domain.Chapter{}).
		Where("manual_id = ? AND chapter_num = ?", chapter.ManualID, chapter.ChapterNum)
	query = whereCoord(query, "section_num", chapter.SectionNum)
	query = whereCoord(query, "subsection_num", chapter.SubsectionNum)
	query = whereCoord(query, "clause_num", chapter.ClauseNum)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func whereCoord(query *gorm.DB, column string, value *int) *gorm.DB {
	if value == nil {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", *value)
}

func (r *RepositoryImpl) FindChapter(ctx context.Context, manualID, chapterID uint64) (*domain.Chapter, error) {
	var c domain.Chapter
	err := r.db.WithContext(ctx).
		Where("manual_id = ?", manualID).
		First(&c, chapterID).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChapters returns the manual's full tree ordered by coordinate tuple,
// then display order; the order the snapshot builder relies on.
func (r *RepositoryImpl) ListChapters(ctx context.Context, manualID uint64) ([]domain.Chapter, error) {
	var chapters []domain.Chapter
	err := r.db.WithContext(ctx).
		Where("manual_id = ?", manualID).
		Order("chapter_num ASC, section_num ASC NULLS FIRST, subsection_num ASC NULLS FIRST, clause_num ASC NULLS FIRST, display_order ASC").
		Find(&chapters).Error
	return chapters, err
}

func (r *RepositoryImpl) CountChildren(ctx context.Context, chapterID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Chapter{}).
		Where("parent_id = ?", chapterID).
		Count(&count).Error
	return count, err
}

func (r *RepositoryImpl) SaveChapter(ctx context.Context, chapter *domain.Chapter) error {
	return r.db.WithContext(ctx).Save(chapter).Error
}

func (r *RepositoryImpl) DeleteChapter(ctx context.Context, chapterID uint64) error {
	return r.db.WithContext(ctx).Delete(&domain.Chapter{}, chapterID).Error
}

func (r *RepositoryImpl) CreateRevision(ctx context.Context, revision *domain.Revision) error {
	return r.db.WithContext(ctx).Create(revision).Error
}

// ActiveRevisionID returns the id of the revision currently in flux for the
// manual, or nil when none is. A rejected revision counts as active while
// the manual is being reworked for resubmission.
func (r *RepositoryImpl) ActiveRevisionID(ctx context.Context, manualID uint64) (*uint64, error) {
	var rev domain.Revision
	err := r.db.WithContext(ctx).
		Where("manual_id = ? AND status IN ?", manualID, []domain.Status{domain.StatusDraft, domain.StatusInReview, domain.StatusRejected}).
		Order("created_at DESC").
		First(&rev).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rev.ID, nil
}
