package revision

import (
	"io"
	"net/http"
	"time"

	"manual-approval-workflow/internal/errors"
	"manual-approval-workflow/internal/middleware"
	"manual-approval-workflow/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type SubmitReviewRequest struct {
	ChangesSummary *string `json:"changes_summary" binding:"omitempty,max=2000"`
}

func (h *Handler) SubmitForReview(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form SubmitReviewRequest
	if err := c.ShouldBindJSON(&form); err != nil && err != io.EOF {
		c.Error(errors.NewValidationError(err))
		return
	}

	actor := middleware.CurrentActor(c)

	rev, err := h.service.SubmitForReview(c.Request.Context(), manualID, actor, form.ChangesSummary)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rev)
}

type ApproveRequest struct {
	RevisionID    uint64  `json:"revision_id" binding:"required"`
	EffectiveDate string  `json:"effective_date" binding:"required"`
	Comment       *string `json:"comment" binding:"omitempty,max=2000"`
}

func (h *Handler) Approve(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form ApproveRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	effectiveDate, err := time.Parse("2006-01-02", form.EffectiveDate)
	if err != nil {
		c.Error(errors.BadRequest("effective_date must be formatted as YYYY-MM-DD", err))
		return
	}

	actor := middleware.CurrentActor(c)

	rev, err := h.service.Approve(c.Request.Context(), manualID, form.RevisionID, actor, effectiveDate, form.Comment)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rev)
}

type RejectRequest struct {
	RevisionID uint64 `json:"revision_id" binding:"required"`
	Reason     string `json:"reason" binding:"required,min=1,max=2000"`
}

func (h *Handler) Reject(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form RejectRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	actor := middleware.CurrentActor(c)

	rev, err := h.service.Reject(c.Request.Context(), manualID, form.RevisionID, actor, form.Reason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rev)
}

func (h *Handler) StartNextRevision(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	actor := middleware.CurrentActor(c)

	result, err := h.service.StartNextRevision(c.Request.Context(), manualID, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) List(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	actor := middleware.CurrentActor(c)

	revisions, err := h.service.ListRevisions(c.Request.Context(), manualID, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, revisions)
}

func (h *Handler) Show(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	revisionID, err := utils.ParseIDParam(c, "revisionId")
	if err != nil {
		c.Error(err)
		return
	}

	actor := middleware.CurrentActor(c)

	rev, err := h.service.GetRevision(c.Request.Context(), manualID, revisionID, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rev)
}
