package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"press-clippings/internal/metadata"
	"press-clippings/internal/models"
	"press-clippings/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PreviewFetcher reads prefill attributes from an article page
type PreviewFetcher interface {
	Preview(ctx context.Context, articleURL string) (*metadata.ArticlePreview, error)
}

// ArticleHandler handles HTTP requests for articles
type ArticleHandler struct {
	articles *services.ArticlesService
	previews PreviewFetcher
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(articles *services.ArticlesService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

// WithPreviews enables POST /api/articles/preview
func (h *ArticleHandler) WithPreviews(p PreviewFetcher) *ArticleHandler {
	h.previews = p
	return h
}

// Preview handles POST /api/articles/preview. The page is fetched and its
// title, media and publication date returned; nothing is persisted.
func (h *ArticleHandler) Preview(c *gin.Context) {
	if h.previews == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "article preview is not enabled"})
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		respondError(c, services.ValidationErrors{"url": {"is not a valid URL"}})
		return
	}

	preview, err := h.previews.Preview(c.Request.Context(), req.URL)
	if errors.Is(err, metadata.ErrBlockedAddress) {
		respondError(c, services.ValidationErrors{"url": {"must point to a public address"}})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preview)
}

type articleRequest struct {
	Title           string            `json:"title"`
	URL             string            `json:"url"`
	Date            *string           `json:"date"`
	Media           string            `json:"media"`
	Support         string            `json:"support"`
	Valuation       *models.Valuation `json:"valuation"`
	PoliticalFactor string            `json:"political_factor"`
	AudienceSize    *int64            `json:"audience_size"`
	Quotation       *decimal.Decimal  `json:"quotation"`
	TopicID         *uuid.UUID        `json:"topic_id"`
	MentionIDs      []uuid.UUID       `json:"mention_ids"`
}

// attributes converts the request, collecting date format errors in errs
func (r articleRequest) attributes(errs services.ValidationErrors) services.ArticleAttributes {
	attrs := services.ArticleAttributes{
		Title:           r.Title,
		URL:             r.URL,
		Media:           r.Media,
		Support:         r.Support,
		Valuation:       r.Valuation,
		PoliticalFactor: r.PoliticalFactor,
		AudienceSize:    r.AudienceSize,
		Quotation:       r.Quotation,
		TopicID:         r.TopicID,
		MentionIDs:      r.MentionIDs,
	}
	if d := parseDate(r.Date, "date", errs); d != nil {
		attrs.Date = *d
	}
	return attrs
}

// Create handles POST /api/articles
func (h *ArticleHandler) Create(c *gin.Context) {
	var req articleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	errs := services.ValidationErrors{}
	attrs := req.attributes(errs)
	if err := errs.Err(); err != nil {
		respondError(c, err)
		return
	}

	article, err := h.articles.Create(c.Request.Context(), attrs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

// List handles GET /api/articles
func (h *ArticleHandler) List(c *gin.Context) {
	topicID, ok := queryID(c, "topic_id")
	if !ok {
		return
	}

	errs := services.ValidationErrors{}
	from, to := c.Query("from"), c.Query("to")
	filter := services.ArticleFilter{
		TopicID: topicID,
		From:    parseDate(&from, "from", errs),
		To:      parseDate(&to, "to", errs),
	}
	if err := errs.Err(); err != nil {
		respondError(c, err)
		return
	}
	filter.Limit, filter.Offset = pagination(c)

	articles, err := h.articles.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

// Get handles GET /api/articles/:id
func (h *ArticleHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	article, err := h.articles.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// Update handles PUT /api/articles/:id. The body is the full article.
func (h *ArticleHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req articleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	errs := services.ValidationErrors{}
	attrs := req.attributes(errs)
	if err := errs.Err(); err != nil {
		respondError(c, err)
		return
	}

	article, err := h.articles.Update(c.Request.Context(), id, attrs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// Delete handles DELETE /api/articles/:id
func (h *ArticleHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.articles.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

