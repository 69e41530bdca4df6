package revision

import (
	"context"
	"testing"
	"time"

	"manual-approval-workflow/internal/audit"
	"manual-approval-workflow/internal/domain"
	"manual-approval-workflow/internal/errors"
	"manual-approval-workflow/internal/notify"
	"manual-approval-workflow/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory Repository so lifecycle transitions can be
// exercised end to end without a database.
type fakeRepo struct {
	manual    *domain.Manual
	chapters  []domain.Chapter
	revisions []*domain.Revision
	audit     *fakeAudit
	nextRevID uint64
}

func newFakeRepo(m *domain.Manual, chapters []domain.Chapter) *fakeRepo {
	return &fakeRepo{manual: m, chapters: chapters, audit: &fakeAudit{}, nextRevID: 1}
}

func (f *fakeRepo) Transaction(ctx context.Context, fn func(r Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) Audit() audit.Store { return f.audit }

func (f *fakeRepo) LockManual(ctx context.Context, id uint64) (*domain.Manual, error) {
	return f.FindManual(ctx, id)
}

func (f *fakeRepo) FindManual(ctx context.Context, id uint64) (*domain.Manual, error) {
	if f.manual == nil || f.manual.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.manual
	return &copied, nil
}

func (f *fakeRepo) SaveManual(ctx context.Context, m *domain.Manual) error {
	copied := *m
	f.manual = &copied
	return nil
}

func (f *fakeRepo) ListChapters(ctx context.Context, manualID uint64) ([]domain.Chapter, error) {
	return f.chapters, nil
}

func (f *fakeRepo) ListByManual(ctx context.Context, manualID uint64) ([]domain.Revision, error) {
	out := make([]domain.Revision, 0, len(f.revisions))
	for _, r := range f.revisions {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, manualID, revisionID uint64) (*domain.Revision, error) {
	for _, r := range f.revisions {
		if r.ID == revisionID && r.ManualID == manualID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindLatestByStatus(ctx context.Context, manualID uint64, status domain.Status) (*domain.Revision, error) {
	for i := len(f.revisions) - 1; i >= 0; i-- {
		if f.revisions[i].Status == status {
			copied := *f.revisions[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) LatestApproved(ctx context.Context, manualID uint64) (*domain.Revision, error) {
	return f.FindLatestByStatus(ctx, manualID, domain.StatusApproved)
}

func (f *fakeRepo) Create(ctx context.Context, rev *domain.Revision) error {
	for _, existing := range f.revisions {
		if existing.RevisionNumber == rev.RevisionNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	rev.ID = f.nextRevID
	f.nextRevID++
	copied := *rev
	f.revisions = append(f.revisions, &copied)
	return nil
}

func (f *fakeRepo) Save(ctx context.Context, rev *domain.Revision) error {
	for i, existing := range f.revisions {
		if existing.ID == rev.ID {
			copied := *rev
			f.revisions[i] = &copied
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakeAudit records ledger writes so tests can assert the trail.
type fakeAudit struct {
	actions      []string
	fieldChanges int
}

func (f *fakeAudit) Record(ctx context.Context, actorID uint64, action, entityType string, entityID uint64, metadata any) (*domain.AuditLogEntry, error) {
	f.actions = append(f.actions, action)
	return &domain.AuditLogEntry{Action: action}, nil
}

func (f *fakeAudit) RecordFieldChanges(ctx context.Context, table string, recordID uint64, revisionID *uint64, actorID uint64, before, after any) (int, error) {
	changes, err := audit.DiffFields(before, after)
	if err != nil {
		return 0, err
	}
	f.fieldChanges += len(changes)
	return len(changes), nil
}

func (f *fakeAudit) List(ctx context.Context, filter audit.LogFilter, page, pageSize int) ([]domain.AuditLogEntry, audit.LogsMeta, error) {
	return nil, audit.LogsMeta{}, nil
}

func (f *fakeAudit) ListFieldHistory(ctx context.Context, table string, recordID uint64, page, pageSize int) ([]domain.FieldHistoryEntry, audit.LogsMeta, error) {
	return nil, audit.LogsMeta{}, nil
}

func (f *fakeAudit) WithTx(tx *gorm.DB) audit.Store { return f }

// recordingNotifier captures dispatched events.
type recordingNotifier struct {
	reviewRequested []notify.Event
	approved        []notify.Event
	rejected        []notify.Event
}

func (n *recordingNotifier) ReviewRequested(event notify.Event) {
	n.reviewRequested = append(n.reviewRequested, event)
}

func (n *recordingNotifier) Approved(event notify.Event) {
	n.approved = append(n.approved, event)
}

func (n *recordingNotifier) Rejected(event notify.Event) {
	n.rejected = append(n.rejected, event)
}

var (
	owner    = domain.Actor{ID: 10, Role: domain.RoleAuthor}
	approver = domain.Actor{ID: 20, Role: domain.RoleApprover}
	stranger = domain.Actor{ID: 30, Role: domain.RoleAuthor}
)

func draftManual() (*fakeRepo, *recordingNotifier, Service) {
	m := &domain.Manual{
		ID:              1,
		Title:           "Ops Manual",
		Organization:    "Acme Air",
		Status:          domain.StatusDraft,
		CurrentRevision: "0",
		OwnerID:         owner.ID,
	}
	chapters := []domain.Chapter{
		{ManualID: 1, Depth: domain.DepthChapter, ChapterNum: 0, Title: "General"},
	}
	repo := newFakeRepo(m, chapters)

	// the draft revision created alongside the manual
	_ = repo.Create(context.Background(), &domain.Revision{
		ManualID:       1,
		RevisionNumber: "1",
		Status:         domain.StatusDraft,
	})

	notifier := &recordingNotifier{}
	svc := NewService(repo, notifier, redis.NewCacheWithClient(nil))
	return repo, notifier, svc
}

func TestSubmitForReview_PromotesDraftInPlace(t *testing.T) {
	repo, notifier, svc := draftManual()
	summary := "initial issue"

	rev, err := svc.SubmitForReview(context.Background(), 1, owner, &summary)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), rev.ID)
	assert.Equal(t, "1", rev.RevisionNumber)
	assert.Equal(t, domain.StatusInReview, rev.Status)
	assert.NotNil(t, rev.SubmittedAt)
	assert.Equal(t, owner.ID, *rev.SubmittedByID)
	assert.NotEmpty(t, rev.Snapshot)

	assert.Equal(t, domain.StatusInReview, repo.manual.Status)
	assert.Len(t, repo.revisions, 1)
	assert.Contains(t, repo.audit.actions, "manual.submit_review")
	require.Len(t, notifier.reviewRequested, 1)
	assert.Equal(t, "Ops Manual", notifier.reviewRequested[0].ManualTitle)
}

func TestSubmitForReview_SnapshotMarksAllChaptersOnFirstIssue(t *testing.T) {
	_, _, svc := draftManual()

	rev, err := svc.SubmitForReview(context.Background(), 1, owner, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `["0"]`, string(rev.AffectedChapters))

	snap, err := domain.DecodeSnapshot(rev.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotSchemaVersion, snap.SchemaVersion)
	require.Len(t, snap.Chapters, 1)
	assert.Equal(t, "0", snap.Chapters[0].Label)
}

func TestSubmitForReview_OnlyOwnerOrElevated(t *testing.T) {
	_, _, svc := draftManual()

	_, err := svc.SubmitForReview(context.Background(), 1, stranger, nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
}

func TestSubmitForReview_RejectsWrongStatus(t *testing.T) {
	repo, _, svc := draftManual()
	repo.manual.Status = domain.StatusInReview

	_, err := svc.SubmitForReview(context.Background(), 1, owner, nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)
}

func TestApprove_SetsCurrentRevisionAndEffectiveDate(t *testing.T) {
	repo, notifier, svc := draftManual()

	submitted, err := svc.SubmitForReview(context.Background(), 1, owner, nil)
	require.NoError(t, err)

	effective := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	approved, err := svc.Approve(context.Background(), 1, submitted.ID, approver, effective, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, approver.ID, *approved.ApprovedByID)
	assert.NotNil(t, approved.ApprovedAt)

	assert.Equal(t, domain.StatusApproved, repo.manual.Status)
	assert.Equal(t, "1", repo.manual.CurrentRevision)
	require.NotNil(t, repo.manual.EffectiveDate)
	assert.True(t, effective.Equal(*repo.manual.EffectiveDate))
	assert.Contains(t, repo.audit.actions, "manual.approve")
	assert.Len(t, notifier.approved, 1)
}

func TestApprove_RequiresApproverRole(t *testing.T) {
	_, _, svc := draftManual()

	_, err := svc.Approve(context.Background(), 1, 1, owner, time.Now(), nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
}

func TestApprove_RequiresEffectiveDate(t *testing.T) {
	_, _, svc := draftManual()

	_, err := svc.Approve(context.Background(), 1, 1, approver, time.Time{}, nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)
}

func TestApprove_FailsWhenNotInReview(t *testing.T) {
	// second approver racing on a manual already approved by the first
	repo, _, svc := draftManual()

	submitted, err := svc.SubmitForReview(context.Background(), 1, owner, nil)
	require.NoError(t, err)

	effective := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Approve(context.Background(), 1, submitted.ID, approver, effective, nil)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), 1, submitted.ID, approver, effective, nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)

	// the first decision is untouched
	assert.Equal(t, "1", repo.manual.CurrentRevision)
}

func TestReject_RequiresReason(t *testing.T) {
	_, _, svc := draftManual()

	_, err := svc.Reject(context.Background(), 1, 1, approver, "")
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)
}

func TestRejectThenResubmit_ReusesSameRevision(t *testing.T) {
	repo, notifier, svc := draftManual()

	submitted, err := svc.SubmitForReview(context.Background(), 1, owner, nil)
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), 1, submitted.ID, approver, "incomplete")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "incomplete", *rejected.RejectionReason)
	assert.Equal(t, domain.StatusRejected, repo.manual.Status)
	require.Len(t, notifier.rejected, 1)
	assert.Equal(t, "incomplete", *notifier.rejected[0].Reason)

	resubmitted, err := svc.SubmitForReview(context.Background(), 1, owner, nil)
	require.NoError(t, err)
	assert.Equal(t, submitted.ID, resubmitted.ID)
	assert.Equal(t, "1", resubmitted.RevisionNumber)
	assert.Equal(t, domain.StatusInReview, resubmitted.Status)
	assert.Nil(t, resubmitted.RejectionReason)
	assert.Len(t, repo.revisions, 1)

	effective := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Approve(context.Background(), 1, resubmitted.ID, approver, effective, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", repo.manual.CurrentRevision)
}

func TestStartNextRevision_OpensDraftAtNextNumber(t *testing.T) {
	repo, _, svc := draftManual()

	submitted, err := svc.SubmitForReview(context.Background(), 1, owner, nil)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), 1, submitted.ID, approver, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)

	result, err := svc.StartNextRevision(context.Background(), 1, owner)
	require.NoError(t, err)

	assert.Equal(t, "2", result.NewRevisionNumber)
	assert.Equal(t, domain.StatusDraft, result.Manual.Status)
	// the approved label stays until the next approval
	assert.Equal(t, "1", result.Manual.CurrentRevision)

	require.Len(t, repo.revisions, 2)
	draft := repo.revisions[1]
	assert.Equal(t, domain.StatusDraft, draft.Status)
	// the new draft starts from a copy of the approved snapshot
	assert.Equal(t, repo.revisions[0].Snapshot, draft.Snapshot)
	assert.Contains(t, repo.audit.actions, "manual.start_revision")
}

func TestStartNextRevision_RequiresApprovedManual(t *testing.T) {
	_, _, svc := draftManual()

	_, err := svc.StartNextRevision(context.Background(), 1, owner)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)
}

func TestListRevisions_DeniedForStrangers(t *testing.T) {
	_, _, svc := draftManual()

	_, err := svc.ListRevisions(context.Background(), 1, stranger)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
}

func TestGetRevision_ReturnsStoredSnapshotVerbatim(t *testing.T) {
	repo, _, svc := draftManual()

	submitted, err := svc.SubmitForReview(context.Background(), 1, owner, nil)
	require.NoError(t, err)

	// chapter edits after submission must not leak into the stored snapshot
	repo.chapters[0].Title = "General (amended)"

	fetched, err := svc.GetRevision(context.Background(), 1, submitted.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, submitted.Snapshot, fetched.Snapshot)

	snap, err := domain.DecodeSnapshot(fetched.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, "General", snap.Chapters[0].Title)
}

func TestSubmitForReview_ManualNotFound(t *testing.T) {
	_, _, svc := draftManual()

	_, err := svc.SubmitForReview(context.Background(), 99, owner, nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}
