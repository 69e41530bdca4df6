package revision

import (
	"context"
	defError "errors"
	"fmt"
	"time"

	"manual-approval-workflow/internal/domain"
	"manual-approval-workflow/internal/errors"
	"manual-approval-workflow/internal/notify"
	"manual-approval-workflow/redis"

	"gorm.io/gorm"
)

// Service is the manual lifecycle state machine. Each transition executes
// as one transaction: re-read the manual under a row lock, check the guard
// against the fresh row, build the snapshot, write the revision and manual,
// and record the audit trail. Only notification dispatch runs after commit.
type Service interface {
	SubmitForReview(ctx context.Context, manualID uint64, actor domain.Actor, summary *string) (*domain.Revision, error)
	Approve(ctx context.Context, manualID, revisionID uint64, actor domain.Actor, effectiveDate time.Time, comment *string) (*domain.Revision, error)
	Reject(ctx context.Context, manualID, revisionID uint64, actor domain.Actor, reason string) (*domain.Revision, error)
	StartNextRevision(ctx context.Context, manualID uint64, actor domain.Actor) (*NextRevisionResult, error)
	ListRevisions(ctx context.Context, manualID uint64, actor domain.Actor) ([]domain.Revision, error)
	GetRevision(ctx context.Context, manualID, revisionID uint64, actor domain.Actor) (*domain.Revision, error)
}

type NextRevisionResult struct {
	Manual            *domain.Manual `json:"manual"`
	NewRevisionNumber string         `json:"new_revision_number"`
}

// Notifier is the downstream notification collaborator; implemented by
// notify.Dispatcher. Fire-and-forget: it cannot fail a transition.
type Notifier interface {
	ReviewRequested(event notify.Event)
	Approved(event notify.Event)
	Rejected(event notify.Event)
}

// DefaultService implements Service
type DefaultService struct {
	repository Repository
	notifier   Notifier
	cache      *redis.Cache
}

func NewService(repository Repository, notifier Notifier, cache *redis.Cache) Service {
	return &DefaultService{
		repository: repository,
		notifier:   notifier,
		cache:      cache,
	}
}

func (s *DefaultService) SubmitForReview(ctx context.Context, manualID uint64, actor domain.Actor, summary *string) (*domain.Revision, error) {
	var result *domain.Revision
	var event notify.Event

	err := s.repository.Transaction(ctx, func(r Repository) error {
		m, err := r.LockManual(ctx, manualID)
		if err != nil {
			return notFoundOr(err, "Manual not found")
		}
		if m.OwnerID != actor.ID && !actor.Elevated() {
			return errors.Forbidden("Only the owner can submit this manual for review", nil)
		}
		if m.Archived {
			return errors.PreconditionFailed("Manual is archived", nil)
		}
		if m.Status != domain.StatusDraft && m.Status != domain.StatusRejected {
			return errors.PreconditionFailed("Submit requires a draft or rejected manual, not "+string(m.Status), nil)
		}

		chapters, err := r.ListChapters(ctx, manualID)
		if err != nil {
			return err
		}
		lastApproved, err := r.LatestApproved(ctx, manualID)
		if err != nil {
			return err
		}
		var prevSnapshot []byte
		if lastApproved != nil {
			prevSnapshot = lastApproved.Snapshot
		}
		snapshot, affected, err := domain.SnapshotWithAffected(m, chapters, prevSnapshot, time.Now())
		if err != nil {
			return err
		}

		// A draft manual promotes its open draft revision in place; a
		// rejected manual reopens the revision that was rejected. Either
		// way no second revision row is created.
		now := time.Now().UTC()
		open, err := r.FindLatestByStatus(ctx, manualID, m.Status)
		if err != nil {
			return err
		}

		var rev *domain.Revision
		if open != nil {
			before := *open
			open.Status = domain.StatusInReview
			open.Snapshot = snapshot
			open.AffectedChapters = affected
			if summary != nil {
				open.ChangesSummary = summary
			}
			open.SubmittedAt = &now
			open.SubmittedByID = &actor.ID
			open.RejectedAt = nil
			open.RejectedByID = nil
			open.RejectionReason = nil
			if err := r.Save(ctx, open); err != nil {
				return err
			}
			if _, err := r.Audit().RecordFieldChanges(ctx, "revisions", open.ID, &open.ID, actor.ID, &before, open); err != nil {
				return err
			}
			rev = open
		} else {
			existing, err := r.ListByManual(ctx, manualID)
			if err != nil {
				return err
			}
			rev = &domain.Revision{
				ManualID:         manualID,
				RevisionNumber:   NextRevisionNumber(existing, true),
				Status:           domain.StatusInReview,
				Snapshot:         snapshot,
				ChangesSummary:   summary,
				AffectedChapters: affected,
				SubmittedAt:      &now,
				SubmittedByID:    &actor.ID,
			}
			if err := r.Create(ctx, rev); err != nil {
				return err
			}
		}

		before := *m
		m.Status = domain.StatusInReview
		if err := r.SaveManual(ctx, m); err != nil {
			return err
		}
		if _, err := r.Audit().RecordFieldChanges(ctx, "manuals", m.ID, &rev.ID, actor.ID, &before, m); err != nil {
			return err
		}
		if _, err := r.Audit().Record(ctx, actor.ID, "manual.submit_review", domain.EntityManual, m.ID, map[string]any{
			"revision_number": rev.RevisionNumber,
		}); err != nil {
			return err
		}

		result = rev
		event = notify.Event{
			ManualID:       m.ID,
			ManualTitle:    m.Title,
			RevisionNumber: rev.RevisionNumber,
			ActorID:        actor.ID,
		}
		return nil
	})
	if err != nil {
		return nil, mapStorageError(err)
	}

	s.notifier.ReviewRequested(event)
	s.bumpRevisionsVersion(ctx, manualID)
	return result, nil
}

func (s *DefaultService) Approve(ctx context.Context, manualID, revisionID uint64, actor domain.Actor, effectiveDate time.Time, comment *string) (*domain.Revision, error) {
	if !actor.Elevated() {
		return nil, errors.Forbidden("Approving requires an approver role", nil)
	}
	if effectiveDate.IsZero() {
		return nil, errors.PreconditionFailed("Effective date is required", nil)
	}

	var result *domain.Revision
	var event notify.Event

	err := s.repository.Transaction(ctx, func(r Repository) error {
		m, err := r.LockManual(ctx, manualID)
		if err != nil {
			return notFoundOr(err, "Manual not found")
		}
		if m.Status != domain.StatusInReview {
			return errors.PreconditionFailed("Manual is not under review", nil)
		}

		rev, err := r.FindByID(ctx, manualID, revisionID)
		if err != nil {
			return notFoundOr(err, "Revision not found")
		}
		if rev.Status != domain.StatusInReview {
			return errors.PreconditionFailed("Revision is not under review", nil)
		}

		now := time.Now().UTC()
		revBefore := *rev
		rev.Status = domain.StatusApproved
		rev.ApprovedAt = &now
		rev.ApprovedByID = &actor.ID
		if err := r.Save(ctx, rev); err != nil {
			return err
		}

		// The only transition that advances the externally visible label.
		mBefore := *m
		m.Status = domain.StatusApproved
		m.CurrentRevision = rev.RevisionNumber
		m.EffectiveDate = &effectiveDate
		if err := r.SaveManual(ctx, m); err != nil {
			return err
		}

		if _, err := r.Audit().RecordFieldChanges(ctx, "revisions", rev.ID, &rev.ID, actor.ID, &revBefore, rev); err != nil {
			return err
		}
		if _, err := r.Audit().RecordFieldChanges(ctx, "manuals", m.ID, &rev.ID, actor.ID, &mBefore, m); err != nil {
			return err
		}
		metadata := map[string]any{"revision_number": rev.RevisionNumber}
		if comment != nil {
			metadata["comment"] = *comment
		}
		if _, err := r.Audit().Record(ctx, actor.ID, "manual.approve", domain.EntityManual, m.ID, metadata); err != nil {
			return err
		}

		result = rev
		event = notify.Event{
			ManualID:       m.ID,
			ManualTitle:    m.Title,
			RevisionNumber: rev.RevisionNumber,
			ActorID:        actor.ID,
		}
		return nil
	})
	if err != nil {
		return nil, mapStorageError(err)
	}

	s.notifier.Approved(event)
	s.bumpRevisionsVersion(ctx, manualID)
	return result, nil
}

func (s *DefaultService) Reject(ctx context.Context, manualID, revisionID uint64, actor domain.Actor, reason string) (*domain.Revision, error) {
	if !actor.Elevated() {
		return nil, errors.Forbidden("Rejecting requires an approver role", nil)
	}
	if reason == "" {
		return nil, errors.PreconditionFailed("Rejection reason is required", nil)
	}

	var result *domain.Revision
	var event notify.Event

	err := s.repository.Transaction(ctx, func(r Repository) error {
		m, err := r.LockManual(ctx, manualID)
		if err != nil {
			return notFoundOr(err, "Manual not found")
		}
		if m.Status != domain.StatusInReview {
			return errors.PreconditionFailed("Manual is not under review", nil)
		}

		rev, err := r.FindByID(ctx, manualID, revisionID)
		if err != nil {
			return notFoundOr(err, "Revision not found")
		}
		if rev.Status != domain.StatusInReview {
			return errors.PreconditionFailed("Revision is not under review", nil)
		}

		now := time.Now().UTC()
		revBefore := *rev
		rev.Status = domain.StatusRejected
		rev.RejectedAt = &now
		rev.RejectedByID = &actor.ID
		rev.RejectionReason = &reason
		if err := r.Save(ctx, rev); err != nil {
			return err
		}

		mBefore := *m
		m.Status = domain.StatusRejected
		if err := r.SaveManual(ctx, m); err != nil {
			return err
		}

		if _, err := r.Audit().RecordFieldChanges(ctx, "revisions", rev.ID, &rev.ID, actor.ID, &revBefore, rev); err != nil {
			return err
		}
		if _, err := r.Audit().RecordFieldChanges(ctx, "manuals", m.ID, &rev.ID, actor.ID, &mBefore, m); err != nil {
			return err
		}
		if _, err := r.Audit().Record(ctx, actor.ID, "manual.reject", domain.EntityManual, m.ID, map[string]any{
			"revision_number": rev.RevisionNumber,
			"reason":          reason,
		}); err != nil {
			return err
		}

		result = rev
		event = notify.Event{
			ManualID:       m.ID,
			ManualTitle:    m.Title,
			RevisionNumber: rev.RevisionNumber,
			ActorID:        actor.ID,
			Reason:         &reason,
		}
		return nil
	})
	if err != nil {
		return nil, mapStorageError(err)
	}

	s.notifier.Rejected(event)
	s.bumpRevisionsVersion(ctx, manualID)
	return result, nil
}

func (s *DefaultService) StartNextRevision(ctx context.Context, manualID uint64, actor domain.Actor) (*NextRevisionResult, error) {
	var result *NextRevisionResult

	err := s.repository.Transaction(ctx, func(r Repository) error {
		m, err := r.LockManual(ctx, manualID)
		if err != nil {
			return notFoundOr(err, "Manual not found")
		}
		if m.OwnerID != actor.ID && !actor.Elevated() {
			return errors.Forbidden("Only the owner can start the next revision", nil)
		}
		if m.Status != domain.StatusApproved {
			return errors.PreconditionFailed("Starting a new revision requires an approved manual", nil)
		}

		approved, err := r.LatestApproved(ctx, manualID)
		if err != nil {
			return err
		}
		if approved == nil {
			return errors.PreconditionFailed("Manual has no approved revision", nil)
		}

		existing, err := r.ListByManual(ctx, manualID)
		if err != nil {
			return err
		}

		// The prior approved revision stays untouched; the new draft starts
		// from a copy of its frozen snapshot.
		rev := &domain.Revision{
			ManualID:         manualID,
			RevisionNumber:   NextRevisionNumber(existing, true),
			Status:           domain.StatusDraft,
			Snapshot:         append([]byte(nil), approved.Snapshot...),
			AffectedChapters: []byte("[]"),
		}
		if err := r.Create(ctx, rev); err != nil {
			return err
		}

		before := *m
		m.Status = domain.StatusDraft
		if err := r.SaveManual(ctx, m); err != nil {
			return err
		}
		if _, err := r.Audit().RecordFieldChanges(ctx, "manuals", m.ID, &rev.ID, actor.ID, &before, m); err != nil {
			return err
		}
		if _, err := r.Audit().Record(ctx, actor.ID, "manual.start_revision", domain.EntityManual, m.ID, map[string]any{
			"revision_number": rev.RevisionNumber,
		}); err != nil {
			return err
		}

		result = &NextRevisionResult{Manual: m, NewRevisionNumber: rev.RevisionNumber}
		return nil
	})
	if err != nil {
		return nil, mapStorageError(err)
	}

	s.bumpRevisionsVersion(ctx, manualID)
	return result, nil
}

func (s *DefaultService) ListRevisions(ctx context.Context, manualID uint64, actor domain.Actor) ([]domain.Revision, error) {
	m, err := s.repository.FindManual(ctx, manualID)
	if err != nil {
		return nil, notFoundOr(err, "Manual not found")
	}
	if m.OwnerID != actor.ID && !actor.Elevated() {
		return nil, errors.Forbidden("Not allowed to view this manual's revisions", nil)
	}
	return s.repository.ListByManual(ctx, manualID)
}

// GetRevision returns the revision including its frozen snapshot, verbatim
// as stored; it is never rebuilt from live data.
func (s *DefaultService) GetRevision(ctx context.Context, manualID, revisionID uint64, actor domain.Actor) (*domain.Revision, error) {
	m, err := s.repository.FindManual(ctx, manualID)
	if err != nil {
		return nil, notFoundOr(err, "Manual not found")
	}
	if m.OwnerID != actor.ID && !actor.Elevated() {
		return nil, errors.Forbidden("Not allowed to view this manual's revisions", nil)
	}
	rev, err := s.repository.FindByID(ctx, manualID, revisionID)
	if err != nil {
		return nil, notFoundOr(err, "Revision not found")
	}
	return rev, nil
}

// mapStorageError classifies what escaped the transaction: guard errors
// pass through, a duplicate revision number is a retryable conflict, and
// anything else means the transaction could not commit.
func mapStorageError(err error) error {
	var apiErr *errors.APIError
	if defError.As(err, &apiErr) {
		return err
	}
	if defError.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Conflict("Revision number already taken, retry the transition", err)
	}
	return errors.Unavailable("Transition could not be committed", err)
}

func notFoundOr(err error, message string) error {
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(message, err)
	}
	return err
}

func (s *DefaultService) bumpRevisionsVersion(ctx context.Context, manualID uint64) {
	// increase cache key, so any new fetch will get new version
	s.cache.IncrementVersion(ctx, fmt.Sprintf("manual:%d:revisions:version", manualID))
}
