package handlers

import (
	"net/http"

	"press-clippings/internal/services"

	"github.com/gin-gonic/gin"
)

// TopicHandler handles HTTP requests for topics
type TopicHandler struct {
	topics *services.TopicService
}

// NewTopicHandler creates a new topic handler
func NewTopicHandler(topics *services.TopicService) *TopicHandler {
	return &TopicHandler{topics: topics}
}

type topicRequest struct {
	Name    *string `json:"name"`
	Enabled *bool   `json:"enabled"`
}

// Create handles POST /api/topics
func (h *TopicHandler) Create(c *gin.Context) {
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	name, enabled := "", true
	if req.Name != nil {
		name = *req.Name
	}
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	topic, err := h.topics.Create(c.Request.Context(), name, enabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, topic)
}

// List handles GET /api/topics
func (h *TopicHandler) List(c *gin.Context) {
	topics, err := h.topics.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics, "count": len(topics)})
}

// Get handles GET /api/topics/:id
func (h *TopicHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	topic, err := h.topics.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

// Update handles PUT /api/topics/:id
func (h *TopicHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	topic, err := h.topics.Update(c.Request.Context(), id, req.Name, req.Enabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

// Delete handles DELETE /api/topics/:id
func (h *TopicHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.topics.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EvaluateCrisis handles POST /api/topics/:id/crisis
func (h *TopicHandler) EvaluateCrisis(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	topic, err := h.topics.EvaluateCrisis(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}
