package audit

import (
	"net/http"
	"strconv"
	"time"

	"manual-approval-workflow/internal/errors"
	"manual-approval-workflow/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// ListLogs serves the audit ledger, reverse-chronological, with optional
// filters: actor_id, action, entity_type, entity_id, from, to (RFC 3339).
func (h *Handler) ListLogs(c *gin.Context) {
	filter := LogFilter{
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}

	if raw := c.Query("actor_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(errors.BadRequest("Invalid actor_id", err))
			return
		}
		filter.ActorID = &id
	}
	if raw := c.Query("entity_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(errors.BadRequest("Invalid entity_id", err))
			return
		}
		filter.EntityID = &id
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.Error(errors.BadRequest("Invalid from timestamp", err))
			return
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.Error(errors.BadRequest("Invalid to timestamp", err))
			return
		}
		filter.To = &t
	}

	page, pageSize := utils.GetPaginationParams(c)
	entries, meta, err := h.store.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "meta": meta})
}

// ListFieldHistory serves the per-field change trail of one record.
func (h *Handler) ListFieldHistory(c *gin.Context) {
	table := c.Query("table")
	if table == "" {
		c.Error(errors.BadRequest("table is required", nil))
		return
	}

	recordID, err := strconv.ParseUint(c.Query("record_id"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid record_id", err))
		return
	}

	page, pageSize := utils.GetPaginationParams(c)
	entries, meta, err := h.store.ListFieldHistory(c.Request.Context(), table, recordID, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "meta": meta})
}
