package handlers

import (
	"net/http"

	"press-clippings/internal/services"

	"github.com/gin-gonic/gin"
)

// MentionHandler handles HTTP requests for mentions
type MentionHandler struct {
	mentions *services.MentionService
}

// NewMentionHandler creates a new mention handler
func NewMentionHandler(mentions *services.MentionService) *MentionHandler {
	return &MentionHandler{mentions: mentions}
}

// Create handles POST /api/mentions
func (h *MentionHandler) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	mention, err := h.mentions.Create(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mention)
}

// List handles GET /api/mentions
func (h *MentionHandler) List(c *gin.Context) {
	mentions, err := h.mentions.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mentions": mentions, "count": len(mentions)})
}

// Delete handles DELETE /api/mentions/:id
func (h *MentionHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.mentions.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
