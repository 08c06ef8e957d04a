package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"press-clippings/internal/metrics"
	"press-clippings/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var verrs services.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// paramID parses a uuid path parameter, answering 400 when it is malformed
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional uuid query parameter
func queryID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return nil, false
	}
	return &id, true
}

// parseDate reads a YYYY-MM-DD value into errs under field. Blank input
// yields nil so the services can report it as missing.
func parseDate(raw *string, field string, errs services.ValidationErrors) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	t, err := time.Parse(metrics.DateLayout, *raw)
	if err != nil {
		errs.Add(field, "is not a valid date")
		return nil
	}
	return &t
}

// pagination reads limit and page query parameters
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	if limit > 200 {
		limit = 200
	}
	if limit < 1 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}
