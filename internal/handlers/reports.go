package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"press-clippings/internal/export"
	"press-clippings/internal/metrics"
	"press-clippings/internal/models"
	"press-clippings/internal/report"
	"press-clippings/internal/services"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler renders and exports clipping reports
type ReportHandler struct {
	clippings *services.ClippingService
	generator report.Generator
}

// NewReportHandler creates a new report handler
func NewReportHandler(clippings *services.ClippingService, generator report.Generator) *ReportHandler {
	return &ReportHandler{clippings: clippings, generator: generator}
}

func (h *ReportHandler) load(c *gin.Context) (*models.Clipping, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	clipping, err := h.clippings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return clipping, true
}

// Markdown handles GET /api/clippings/:id/report
func (h *ReportHandler) Markdown(c *gin.Context) {
	clipping, ok := h.load(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Markdown(clipping, clipping.Metrics.Data())))
}

// HTML handles GET /api/clippings/:id/report.html
func (h *ReportHandler) HTML(c *gin.Context) {
	clipping, ok := h.load(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, report.HTML(clipping, clipping.Metrics.Data()))
}

// Generate handles POST /api/clippings/:id/report/generate. The report
// service response is passed through as is.
func (h *ReportHandler) Generate(c *gin.Context) {
	clipping, ok := h.load(c)
	if !ok {
		return
	}

	req := report.Request{
		Clipping: report.ClippingSummary{
			ID:        clipping.ID,
			Name:      clipping.Name,
			StartDate: clipping.StartDate.Format(metrics.DateLayout),
			EndDate:   clipping.EndDate.Format(metrics.DateLayout),
		},
		Metrics: clipping.Metrics.Data(),
	}
	if clipping.Topic != nil {
		req.Topic = clipping.Topic.Name
	}

	res, err := h.generator.Generate(c.Request.Context(), req)
	if errors.Is(err, report.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Warn("report generation failed", "clipping_id", clipping.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Report service unavailable"})
		return
	}
	c.Data(res.StatusCode, res.ContentType, res.Body)
}

// Export handles GET /api/clippings/:id/export.xlsx
func (h *ReportHandler) Export(c *gin.Context) {
	clipping, ok := h.load(c)
	if !ok {
		return
	}
	articles, err := h.clippings.Members(c.Request.Context(), clipping.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteClipping(&buf, clipping, articles); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, fileName(clipping.Name)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// fileName keeps letters, digits, dashes and underscores
func fileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, name)
	if cleaned == "" {
		return "clipping"
	}
	return cleaned
}
