package revision

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"manual-approval-workflow/internal/domain"
	"manual-approval-workflow/internal/errors"
	"manual-approval-workflow/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mock implementation of the Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) SubmitForReview(ctx context.Context, manualID uint64, actor domain.Actor, summary *string) (*domain.Revision, error) {
	args := m.Called(ctx, manualID, actor, summary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Revision), args.Error(1)
}

func (m *MockService) Approve(ctx context.Context, manualID, revisionID uint64, actor domain.Actor, effectiveDate time.Time, comment *string) (*domain.Revision, error) {
	args := m.Called(ctx, manualID, revisionID, actor, effectiveDate, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Revision), args.Error(1)
}

func (m *MockService) Reject(ctx context.Context, manualID, revisionID uint64, actor domain.Actor, reason string) (*domain.Revision, error) {
	args := m.Called(ctx, manualID, revisionID, actor, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Revision), args.Error(1)
}

func (m *MockService) StartNextRevision(ctx context.Context, manualID uint64, actor domain.Actor) (*NextRevisionResult, error) {
	args := m.Called(ctx, manualID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*NextRevisionResult), args.Error(1)
}

func (m *MockService) ListRevisions(ctx context.Context, manualID uint64, actor domain.Actor) ([]domain.Revision, error) {
	args := m.Called(ctx, manualID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Revision), args.Error(1)
}

func (m *MockService) GetRevision(ctx context.Context, manualID, revisionID uint64, actor domain.Actor) (*domain.Revision, error) {
	args := m.Called(ctx, manualID, revisionID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Revision), args.Error(1)
}

func setupRouter(handler *Handler, actor domain.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		c.Set("user_id", actor.ID)
		c.Set("user_role", actor.Role)
	})
	router.POST("/manuals/:id/submit-review", handler.SubmitForReview)
	router.POST("/manuals/:id/approve", handler.Approve)
	router.POST("/manuals/:id/reject", handler.Reject)
	router.POST("/manuals/:id/next-revision", handler.StartNextRevision)
	router.GET("/manuals/:id/revisions", handler.List)
	router.GET("/manuals/:id/revisions/:revisionId", handler.Show)
	return router
}

func TestSubmitForReviewHandler_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, owner)

	rev := &domain.Revision{ID: 1, ManualID: 5, RevisionNumber: "1", Status: domain.StatusInReview}
	mockService.On("SubmitForReview", mock.Anything, uint64(5), owner, (*string)(nil)).Return(rev, nil)

	req := httptest.NewRequest("POST", "/manuals/5/submit-review", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response domain.Revision
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "1", response.RevisionNumber)
	mockService.AssertExpectations(t)
}

func TestSubmitForReviewHandler_WithSummary(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, owner)

	rev := &domain.Revision{ID: 1, ManualID: 5, RevisionNumber: "1", Status: domain.StatusInReview}
	mockService.On("SubmitForReview", mock.Anything, uint64(5), owner, mock.MatchedBy(func(s *string) bool {
		return s != nil && *s == "updated fueling limits"
	})).Return(rev, nil)

	body, _ := json.Marshal(SubmitReviewRequest{ChangesSummary: strPtr("updated fueling limits")})
	req := httptest.NewRequest("POST", "/manuals/5/submit-review", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestSubmitForReviewHandler_GuardFailure(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, owner)

	mockService.On("SubmitForReview", mock.Anything, uint64(5), owner, (*string)(nil)).
		Return(nil, errors.PreconditionFailed("Manual is not under review", nil))

	req := httptest.NewRequest("POST", "/manuals/5/submit-review", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestApproveHandler_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, approver)

	effective := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rev := &domain.Revision{ID: 1, ManualID: 5, RevisionNumber: "1", Status: domain.StatusApproved}
	mockService.On("Approve", mock.Anything, uint64(5), uint64(1), approver, effective, (*string)(nil)).Return(rev, nil)

	body, _ := json.Marshal(ApproveRequest{RevisionID: 1, EffectiveDate: "2025-01-01"})
	req := httptest.NewRequest("POST", "/manuals/5/approve", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestApproveHandler_BadEffectiveDate(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, approver)

	body, _ := json.Marshal(ApproveRequest{RevisionID: 1, EffectiveDate: "01/01/2025"})
	req := httptest.NewRequest("POST", "/manuals/5/approve", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Approve")
}

func TestApproveHandler_MissingFields(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, approver)

	body, _ := json.Marshal(struct{}{})
	req := httptest.NewRequest("POST", "/manuals/5/approve", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRejectHandler_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, approver)

	rev := &domain.Revision{ID: 1, ManualID: 5, RevisionNumber: "1", Status: domain.StatusRejected}
	mockService.On("Reject", mock.Anything, uint64(5), uint64(1), approver, "incomplete").Return(rev, nil)

	body, _ := json.Marshal(RejectRequest{RevisionID: 1, Reason: "incomplete"})
	req := httptest.NewRequest("POST", "/manuals/5/reject", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestRejectHandler_MissingReason(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, approver)

	body, _ := json.Marshal(RejectRequest{RevisionID: 1})
	req := httptest.NewRequest("POST", "/manuals/5/reject", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertNotCalled(t, "Reject")
}

func TestStartNextRevisionHandler_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, owner)

	result := &NextRevisionResult{
		Manual:            &domain.Manual{ID: 5, Status: domain.StatusDraft, CurrentRevision: "1"},
		NewRevisionNumber: "2",
	}
	mockService.On("StartNextRevision", mock.Anything, uint64(5), owner).Return(result, nil)

	req := httptest.NewRequest("POST", "/manuals/5/next-revision", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response NextRevisionResult
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "2", response.NewRevisionNumber)
	mockService.AssertExpectations(t)
}

func TestListRevisionsHandler_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, owner)

	revisions := []domain.Revision{
		{ID: 1, RevisionNumber: "1", Status: domain.StatusApproved},
		{ID: 2, RevisionNumber: "2", Status: domain.StatusDraft},
	}
	mockService.On("ListRevisions", mock.Anything, uint64(5), owner).Return(revisions, nil)

	req := httptest.NewRequest("GET", "/manuals/5/revisions", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestShowRevisionHandler_InvalidID(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler, owner)

	req := httptest.NewRequest("GET", "/manuals/5/revisions/invalid", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func strPtr(s string) *string { return &s }
