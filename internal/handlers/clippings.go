package handlers

import (
	"net/http"

	"press-clippings/internal/auth"
	"press-clippings/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClippingHandler handles HTTP requests for clippings and their membership
type ClippingHandler struct {
	clippings *services.ClippingService
}

// NewClippingHandler creates a new clipping handler
func NewClippingHandler(clippings *services.ClippingService) *ClippingHandler {
	return &ClippingHandler{clippings: clippings}
}

type clippingRequest struct {
	Name       *string     `json:"name"`
	StartDate  *string     `json:"start_date"`
	EndDate    *string     `json:"end_date"`
	TopicID    *uuid.UUID  `json:"topic_id"`
	CreatorID  *uuid.UUID  `json:"creator_id"`
	ReviewerID *uuid.UUID  `json:"reviewer_id"`
	ArticleIDs []uuid.UUID `json:"article_ids"`
}

// Create handles POST /api/clippings. The creator defaults to the
// authenticated user.
func (h *ClippingHandler) Create(c *gin.Context) {
	var req clippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	errs := services.ValidationErrors{}
	in := services.ClippingInput{
		StartDate:  parseDate(req.StartDate, "start_date", errs),
		EndDate:    parseDate(req.EndDate, "end_date", errs),
		TopicID:    req.TopicID,
		CreatorID:  req.CreatorID,
		ReviewerID: req.ReviewerID,
		ArticleIDs: req.ArticleIDs,
	}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if in.CreatorID == nil {
		if userID, ok := auth.UserID(c); ok {
			in.CreatorID = &userID
		}
	}
	if err := errs.Err(); err != nil {
		respondError(c, err)
		return
	}

	clipping, err := h.clippings.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, clipping)
}

// List handles GET /api/clippings
func (h *ClippingHandler) List(c *gin.Context) {
	topicID, ok := queryID(c, "topic_id")
	if !ok {
		return
	}
	clippings, err := h.clippings.List(c.Request.Context(), topicID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clippings": clippings, "count": len(clippings)})
}

// Get handles GET /api/clippings/:id
func (h *ClippingHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	clipping, err := h.clippings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clipping)
}

// Update handles PUT /api/clippings/:id. Omitted fields are left unchanged;
// article_ids, when present, replaces the whole membership.
func (h *ClippingHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req clippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	errs := services.ValidationErrors{}
	in := services.ClippingUpdate{
		Name:       req.Name,
		StartDate:  parseDate(req.StartDate, "start_date", errs),
		EndDate:    parseDate(req.EndDate, "end_date", errs),
		TopicID:    req.TopicID,
		ReviewerID: req.ReviewerID,
		ArticleIDs: req.ArticleIDs,
	}
	if err := errs.Err(); err != nil {
		respondError(c, err)
		return
	}

	clipping, err := h.clippings.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clipping)
}

// Delete handles DELETE /api/clippings/:id
func (h *ClippingHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.clippings.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Members handles GET /api/clippings/:id/articles
func (h *ClippingHandler) Members(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	articles, err := h.clippings.Members(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

// AddArticle handles POST /api/clippings/:id/articles/:article_id
func (h *ClippingHandler) AddArticle(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	articleID, ok := paramID(c, "article_id")
	if !ok {
		return
	}
	clipping, err := h.clippings.AddArticle(c.Request.Context(), id, articleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clipping)
}

// RemoveArticle handles DELETE /api/clippings/:id/articles/:article_id.
// Removing the last member deletes the clipping, reported as deleted: true.
func (h *ClippingHandler) RemoveArticle(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	articleID, ok := paramID(c, "article_id")
	if !ok {
		return
	}
	clipping, err := h.clippings.RemoveArticle(c.Request.Context(), id, articleID)
	if err != nil {
		respondError(c, err)
		return
	}
	if clipping == nil {
		c.JSON(http.StatusOK, gin.H{"deleted": true, "clipping_id": id})
		return
	}
	c.JSON(http.StatusOK, clipping)
}

// Metrics handles GET /api/clippings/:id/metrics
func (h *ClippingHandler) Metrics(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	m, err := h.clippings.Metrics(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Recompute handles POST /api/clippings/:id/recompute
func (h *ClippingHandler) Recompute(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	clipping, err := h.clippings.Recompute(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clipping)
}
