package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/internal/domain"
)

type updateContentRequest struct {
	Content string  `binding:"required" json:"content"`
	Title   *string `json:"title"`
}

// listContent handles GET /api/v1/content
func (r *Router) listContent(c *gin.Context) {
	var filter domain.PieceFilter

	if raw := c.Query("idea_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid idea ID format"})
			return
		}
		filter.IdeaID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParsePieceStatus(raw)
		if err != nil {
			r.handleServiceError(c, err, "list content")
			return
		}
		filter.Status = status
	}
	if raw := c.Query("type"); raw != "" {
		t, err := domain.ParseContentType(raw)
		if err != nil {
			r.handleServiceError(c, err, "list content")
			return
		}
		filter.Type = t
	}

	pieces, err := r.drafting.ListPieces(c.Request.Context(), filter)
	if err != nil {
		r.handleServiceError(c, err, "list content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pieces": pieces, "count": len(pieces)})
}

// getContent handles GET /api/v1/content/:id
func (r *Router) getContent(c *gin.Context) {
	id, ok := parseUUID(c, "id", "content")
	if !ok {
		return
	}
	piece, err := r.drafting.GetPiece(c.Request.Context(), id)
	if err != nil {
		r.handleServiceError(c, err, "get content")
		return
	}
	c.JSON(http.StatusOK, piece)
}

// updateContent handles PATCH /api/v1/content/:id
func (r *Router) updateContent(c *gin.Context) {
	id, ok := parseUUID(c, "id", "content")
	if !ok {
		return
	}
	var req updateContentRequest
	if !bindJSON(c, &req) {
		return
	}
	piece, err := r.drafting.UpdateContent(c.Request.Context(), id, req.Content, req.Title)
	if err != nil {
		r.handleServiceError(c, err, "update content")
		return
	}
	c.JSON(http.StatusOK, piece)
}

// regenerateContent handles POST /api/v1/content/:id/regenerate
func (r *Router) regenerateContent(c *gin.Context) {
	id, ok := parseUUID(c, "id", "content")
	if !ok {
		return
	}
	piece, err := r.drafting.Regenerate(c.Request.Context(), id)
	if err != nil {
		r.handleServiceError(c, err, "regenerate content")
		return
	}
	c.JSON(http.StatusOK, piece)
}

// retryContent handles POST /api/v1/content/:id/retry
func (r *Router) retryContent(c *gin.Context) {
	id, ok := parseUUID(c, "id", "content")
	if !ok {
		return
	}
	piece, err := r.queue.Retry(c.Request.Context(), id)
	if err != nil {
		r.handleServiceError(c, err, "retry content")
		return
	}
	c.JSON(http.StatusOK, piece)
}
