package manual

import (
	"context"
	defError "errors"
	"fmt"
	"time"

	"manual-approval-workflow/internal/domain"
	"manual-approval-workflow/internal/errors"
	"manual-approval-workflow/redis"

	"gorm.io/gorm"
)

// Service owns manual CRUD and the chapter hierarchy. Every mutation runs in
// one transaction together with its audit entry and field history rows.
type Service interface {
	CreateManual(ctx context.Context, actor domain.Actor, title, organization string) (*domain.Manual, error)
	GetManual(ctx context.Context, actor domain.Actor, id uint64) (*domain.Manual, error)
	ListManuals(ctx context.Context, actor domain.Actor, page, pageSize int) (*PaginatedManuals, error)
	UpdateManual(ctx context.Context, actor domain.Actor, id uint64, input UpdateManualInput) (*domain.Manual, error)
	ArchiveManual(ctx context.Context, actor domain.Actor, id uint64) error

	ListChapters(ctx context.Context, actor domain.Actor, manualID uint64) ([]domain.Chapter, error)
	AddChapter(ctx context.Context, actor domain.Actor, manualID uint64, input AddChapterInput) (*domain.Chapter, error)
	UpdateChapter(ctx context.Context, actor domain.Actor, manualID, chapterID uint64, input UpdateChapterInput) (*domain.Chapter, error)
	DeleteChapter(ctx context.Context, actor domain.Actor, manualID, chapterID uint64) error
}

type UpdateManualInput struct {
	Title        *string
	Organization *string
}

type AddChapterInput struct {
	ParentID     *uint64
	Number       int
	Title        string
	Content      *string
	DisplayOrder int
}

type UpdateChapterInput struct {
	Title        *string
	Content      *string
	DisplayOrder *int
}

type PaginatedManuals struct {
	Data []domain.Manual `json:"data"`
	Meta ManualsMeta     `json:"meta"`
}

// RootChapterTitle names the mandatory depth-0, number-0 chapter created
// with every manual.
const RootChapterTitle = "General"

// DefaultService implements Service
type DefaultService struct {
	repository Repository
	cache      *redis.Cache
}

func NewService(repository Repository, cache *redis.Cache) Service {
	return &DefaultService{
		repository: repository,
		cache:      cache,
	}
}

func (s *DefaultService) CreateManual(ctx context.Context, actor domain.Actor, title, organization string) (*domain.Manual, error) {
	m := &domain.Manual{
		Title:           title,
		Organization:    organization,
		Status:          domain.StatusDraft,
		CurrentRevision: "0",
		OwnerID:         actor.ID,
	}

	err := s.repository.Transaction(ctx, func(r Repository) error {
		if err := r.Create(ctx, m); err != nil {
			return err
		}

		root := &domain.Chapter{
			ManualID:   m.ID,
			Depth:      domain.DepthChapter,
			ChapterNum: 0,
			Title:      RootChapterTitle,
		}
		if err := r.CreateChapter(ctx, root); err != nil {
			return err
		}

		// The first draft revision exists from the moment the manual is
		// first saved; submit-for-review promotes it in place.
		snapshot, affected, err := domain.SnapshotWithAffected(m, []domain.Chapter{*root}, nil, time.Now())
		if err != nil {
			return err
		}
		rev := &domain.Revision{
			ManualID:         m.ID,
			RevisionNumber:   "1",
			Status:           domain.StatusDraft,
			Snapshot:         snapshot,
			AffectedChapters: affected,
		}
		if err := r.CreateRevision(ctx, rev); err != nil {
			return err
		}

		_, err = r.Audit().Record(ctx, actor.ID, "manual.create", domain.EntityManual, m.ID, map[string]any{
			"title": m.Title,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.bumpListVersion(ctx, m.OwnerID)
	return m, nil
}

func (s *DefaultService) GetManual(ctx context.Context, actor domain.Actor, id uint64) (*domain.Manual, error) {
	m, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Manual not found", err)
		}
		return nil, err
	}
	if err := authorizeRead(actor, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *DefaultService) ListManuals(ctx context.Context, actor domain.Actor, page, pageSize int) (*PaginatedManuals, error) {
	// Get the current data version for this user's manuals
	versionKey := listVersionKey(actor.ID)
	v := s.cache.GetVersion(ctx, versionKey)

	cacheKey := fmt.Sprintf("manuals:u:%d:v:%d:p:%d:ps:%d", actor.ID, v, page, pageSize)

	var result PaginatedManuals
	// get data from cache
	found, _ := s.cache.Get(ctx, cacheKey, &result)
	if found {
		return &result, nil
	}

	manuals, meta, err := s.repository.List(ctx, actor.ID, page, pageSize)
	if err != nil {
		return nil, err
	}
	result = PaginatedManuals{Data: manuals, Meta: meta}
	// set value to cache
	go s.cache.Set(context.Background(), cacheKey, result, 24*time.Hour)

	return &result, nil
}

func (s *DefaultService) UpdateManual(ctx context.Context, actor domain.Actor, id uint64, input UpdateManualInput) (*domain.Manual, error) {
	var updated *domain.Manual

	err := s.repository.Transaction(ctx, func(r Repository) error {
		m, err := r.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "Manual not found")
		}
		if err := authorizeWrite(actor, m); err != nil {
			return err
		}
		if err := editableGuard(m); err != nil {
			return err
		}

		before := *m
		if input.Title != nil {
			m.Title = *input.Title
		}
		if input.Organization != nil {
			m.Organization = *input.Organization
		}
		if err := r.Save(ctx, m); err != nil {
			return err
		}

		revisionID, err := r.ActiveRevisionID(ctx, m.ID)
		if err != nil {
			return err
		}
		if _, err := r.Audit().RecordFieldChanges(ctx, "manuals", m.ID, revisionID, actor.ID, &before, m); err != nil {
			return err
		}
		if _, err := r.Audit().Record(ctx, actor.ID, "manual.update", domain.EntityManual, m.ID, nil); err != nil {
			return err
		}

		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpListVersion(ctx, updated.OwnerID)
	return updated, nil
}

func (s *DefaultService) ArchiveManual(ctx context.Context, actor domain.Actor, id uint64) error {
	var ownerID uint64

	err := s.repository.Transaction(ctx, func(r Repository) error {
		m, err := r.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "Manual not found")
		}
		if err := authorizeWrite(actor, m); err != nil {
			return err
		}
		if m.Archived {
			return errors.PreconditionFailed("Manual is already archived", nil)
		}

		before := *m
		m.Archived = true
		if err := r.Save(ctx, m); err != nil {
			return err
		}

		if _, err := r.Audit().RecordFieldChanges(ctx, "manuals", m.ID, nil, actor.ID, &before, m); err != nil {
			return err
		}
		if _, err := r.Audit().Record(ctx, actor.ID, "manual.archive", domain.EntityManual, m.ID, nil); err != nil {
			return err
		}

		ownerID = m.OwnerID
		return nil
	})
	if err != nil {
		return err
	}

	s.bumpListVersion(ctx, ownerID)
	return nil
}

func (s *DefaultService) ListChapters(ctx context.Context, actor domain.Actor, manualID uint64) ([]domain.Chapter, error) {
	m, err := s.repository.FindByID(ctx, manualID)
	if err != nil {
		return nil, notFoundOr(err, "Manual not found")
	}
	if err := authorizeRead(actor, m); err != nil {
		return nil, err
	}
	return s.repository.ListChapters(ctx, manualID)
}

func (s *DefaultService) AddChapter(ctx context.Context, actor domain.Actor, manualID uint64, input AddChapterInput) (*domain.Chapter, error) {
	var created *domain.Chapter

	err := s.repository.Transaction(ctx, func(r Repository) error {
		m, err := r.LockByID(ctx, manualID)
		if err != nil {
			return notFoundOr(err, "Manual not found")
		}
		if err := authorizeWrite(actor, m); err != nil {
			return err
		}
		if err := editableGuard(m); err != nil {
			return err
		}

		chapter := &domain.Chapter{
			ManualID:     manualID,
			Title:        input.Title,
			Content:      input.Content,
			DisplayOrder: input.DisplayOrder,
		}

		if input.ParentID == nil {
			chapter.Depth = domain.DepthChapter
			chapter.ChapterNum = input.Number
		} else {
			parent, err := r.FindChapter(ctx, manualID, *input.ParentID)
			if err != nil {
				return notFoundOr(err, "Parent chapter not found")
			}
			if parent.Depth >= domain.DepthClause {
				return errors.UnprocessableEntity("Clauses can't have children", nil)
			}
			// Child coordinates extend the parent's tuple by one level.
			chapter.ParentID = &parent.ID
			chapter.Depth = parent.Depth + 1
			chapter.ChapterNum = parent.ChapterNum
			chapter.SectionNum = parent.SectionNum
			chapter.SubsectionNum = parent.SubsectionNum
			num := input.Number
			switch chapter.Depth {
			case domain.DepthSection:
				chapter.SectionNum = &num
			case domain.DepthSubsection:
				chapter.SubsectionNum = &num
			case domain.DepthClause:
				chapter.ClauseNum = &num
			}
		}

		if err := chapter.ValidateCoordinates(); err != nil {
			return errors.UnprocessableEntity(err.Error(), nil)
		}

		// Checked under the manual row lock; the unique index is only the
		// backstop for writers that bypass the lock.
		taken, err := r.ChapterExistsAt(ctx, chapter)
		if err != nil {
			return err
		}
		if taken {
			return errors.Conflict("A sibling chapter already uses this number", nil)
		}

		if err := r.CreateChapter(ctx, chapter); err != nil {
			if defError.Is(err, gorm.ErrDuplicatedKey) {
				return errors.Conflict("A sibling chapter already uses this number", err)
			}
			return err
		}

		if _, err := r.Audit().Record(ctx, actor.ID, "chapter.create", domain.EntityChapter, chapter.ID, map[string]any{
			"manual_id": manualID,
			"label":     chapter.Label(),
		}); err != nil {
			return err
		}

		created = chapter
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *DefaultService) UpdateChapter(ctx context.Context, actor domain.Actor, manualID, chapterID uint64, input UpdateChapterInput) (*domain.Chapter, error) {
	var updated *domain.Chapter

	err := s.repository.Transaction(ctx, func(r Repository) error {
		m, err := r.LockByID(ctx, manualID)
		if err != nil {
			return notFoundOr(err, "Manual not found")
		}
		if err := authorizeWrite(actor, m); err != nil {
			return err
		}
		if err := editableGuard(m); err != nil {
			return err
		}

		chapter, err := r.FindChapter(ctx, manualID, chapterID)
		if err != nil {
			return notFoundOr(err, "Chapter not found")
		}

		before := *chapter
		if input.Title != nil {
			chapter.Title = *input.Title
		}
		if input.Content != nil {
			chapter.Content = input.Content
		}
		if input.DisplayOrder != nil {
			chapter.DisplayOrder = *input.DisplayOrder
		}
		if err := r.SaveChapter(ctx, chapter); err != nil {
			return err
		}

		revisionID, err := r.ActiveRevisionID(ctx, manualID)
		if err != nil {
			return err
		}
		if _, err := r.Audit().RecordFieldChanges(ctx, "chapters", chapter.ID, revisionID, actor.ID, &before, chapter); err != nil {
			return err
		}
		if _, err := r.Audit().Record(ctx, actor.ID, "chapter.update", domain.EntityChapter, chapter.ID, map[string]any{
			"manual_id": manualID,
			"label":     chapter.Label(),
		}); err != nil {
			return err
		}

		updated = chapter
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *DefaultService) DeleteChapter(ctx context.Context, actor domain.Actor, manualID, chapterID uint64) error {
	return s.repository.Transaction(ctx, func(r Repository) error {
		m, err := r.LockByID(ctx, manualID)
		if err != nil {
			return notFoundOr(err, "Manual not found")
		}
		if err := authorizeWrite(actor, m); err != nil {
			return err
		}
		if err := editableGuard(m); err != nil {
			return err
		}

		chapter, err := r.FindChapter(ctx, manualID, chapterID)
		if err != nil {
			return notFoundOr(err, "Chapter not found")
		}
		if chapter.Depth == domain.DepthChapter && chapter.ChapterNum == 0 {
			return errors.PreconditionFailed("The mandatory chapter 0 can't be deleted", nil)
		}

		children, err := r.CountChildren(ctx, chapter.ID)
		if err != nil {
			return err
		}
		if children > 0 {
			return errors.PreconditionFailed("Chapter still has children", nil)
		}

		if err := r.DeleteChapter(ctx, chapter.ID); err != nil {
			return err
		}

		_, err = r.Audit().Record(ctx, actor.ID, "chapter.delete", domain.EntityChapter, chapter.ID, map[string]any{
			"manual_id": manualID,
			"label":     chapter.Label(),
		})
		return err
	})
}

func authorizeRead(actor domain.Actor, m *domain.Manual) error {
	if m.OwnerID != actor.ID && !actor.Elevated() {
		return errors.Forbidden("Not allowed to view this manual", nil)
	}
	return nil
}

func authorizeWrite(actor domain.Actor, m *domain.Manual) error {
	if m.OwnerID != actor.ID && !actor.Elevated() {
		return errors.Forbidden("Only the owner can edit this manual", nil)
	}
	return nil
}

// editableGuard rejects content mutations unless the manual is in an
// editable lifecycle state. A manual under review or already approved must
// go through the lifecycle operations first.
func editableGuard(m *domain.Manual) error {
	if m.Archived {
		return errors.PreconditionFailed("Manual is archived", nil)
	}
	if m.Status != domain.StatusDraft && m.Status != domain.StatusRejected {
		return errors.PreconditionFailed("Manual is not editable in status "+string(m.Status), nil)
	}
	return nil
}

func notFoundOr(err error, message string) error {
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(message, err)
	}
	return err
}

func listVersionKey(ownerID uint64) string {
	return fmt.Sprintf("user:%d:manuals:version", ownerID)
}

func (s *DefaultService) bumpListVersion(ctx context.Context, ownerID uint64) {
	// increase cache key, so any new fetch will get new version
	s.cache.IncrementVersion(ctx, listVersionKey(ownerID))
}
