package utils

import (
	"strconv"

	"manual-approval-workflow/internal/errors"

	"github.com/gin-gonic/gin"
)

func GetPaginationParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	return page, pageSize
}

// ParseIDParam parses a numeric path parameter. A malformed id cannot
// match any record, so it maps to a not found response.
func ParseIDParam(c *gin.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, errors.NotFound("Record not found", err)
	}
	return id, nil
}
