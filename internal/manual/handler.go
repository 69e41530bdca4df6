package manual

import (
	"net/http"

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

type CreateManualRequest struct {
	Title        string `json:"title" binding:"required,min=1,max=255"`
	Organization string `json:"organization" binding:"required,min=1,max=255"`
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateManualRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	actor := middleware.CurrentActor(c)

	m, err := h.service.CreateManual(c.Request.Context(), actor, form.Title, form.Organization)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

func (h *Handler) List(c *gin.Context) {
	actor := middleware.CurrentActor(c)

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListManuals(c.Request.Context(), actor, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Show(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	actor := middleware.CurrentActor(c)

	m, err := h.service.GetManual(c.Request.Context(), actor, manualID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, m)
}

type UpdateManualRequest struct {
	Title        *string `json:"title" binding:"omitempty,min=1,max=255"`
	Organization *string `json:"organization" binding:"omitempty,min=1,max=255"`
}

func (h *Handler) Update(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form UpdateManualRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	actor := middleware.CurrentActor(c)

	m, err := h.service.UpdateManual(c.Request.Context(), actor, manualID, UpdateManualInput{
		Title:        form.Title,
		Organization: form.Organization,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, m)
}

func (h *Handler) Archive(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	actor := middleware.CurrentActor(c)

	if err := h.service.ArchiveManual(c.Request.Context(), actor, manualID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListChapters(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	actor := middleware.CurrentActor(c)

	chapters, err := h.service.ListChapters(c.Request.Context(), actor, manualID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, chapters)
}

type AddChapterRequest struct {
	ParentID     *uint64 `json:"parent_id"`
	Number       int     `json:"number" binding:"min=0"`
	Title        string  `json:"title" binding:"required,min=1,max=255"`
	Content      *string `json:"content"`
	DisplayOrder int     `json:"display_order"`
}

func (h *Handler) AddChapter(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form AddChapterRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	actor := middleware.CurrentActor(c)

	chapter, err := h.service.AddChapter(c.Request.Context(), actor, manualID, AddChapterInput{
		ParentID:     form.ParentID,
		Number:       form.Number,
		Title:        form.Title,
		Content:      form.Content,
		DisplayOrder: form.DisplayOrder,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, chapter)
}

type UpdateChapterRequest struct {
	Title        *string `json:"title" binding:"omitempty,min=1,max=255"`
	Content      *string `json:"content"`
	DisplayOrder *int    `json:"display_order"`
}

func (h *Handler) UpdateChapter(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	chapterID, err := utils.ParseIDParam(c, "chapterId")
	if err != nil {
		c.Error(err)
		return
	}

	var form UpdateChapterRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	actor := middleware.CurrentActor(c)

	chapter, err := h.service.UpdateChapter(c.Request.Context(), actor, manualID, chapterID, UpdateChapterInput{
		Title:        form.Title,
		Content:      form.Content,
		DisplayOrder: form.DisplayOrder,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, chapter)
}

func (h *Handler) DeleteChapter(c *gin.Context) {
	manualID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	chapterID, err := utils.ParseIDParam(c, "chapterId")
	if err != nil {
		c.Error(err)
		return
	}

	actor := middleware.CurrentActor(c)

	if err := h.service.DeleteChapter(c.Request.Context(), actor, manualID, chapterID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
