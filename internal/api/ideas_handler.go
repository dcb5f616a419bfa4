package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/drafting"
)

type createIdeaRequest struct {
	Content string  `binding:"required" json:"content"`
	Source  *string `json:"source"`
}

type ideaStatusRequest struct {
	Status string `binding:"required" json:"status"`
}

type generateRequest struct {
	IdeaID        uuid.UUID `binding:"required" json:"idea_id"`
	LinkedInCount int       `json:"linkedin_count"`
	BlogCount     int       `json:"blog_count"`
}

// listIdeas handles GET /api/v1/ideas
func (r *Router) listIdeas(c *gin.Context) {
	ideas, err := r.drafting.ListIdeas(c.Request.Context())
	if err != nil {
		r.handleServiceError(c, err, "list ideas")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ideas": ideas, "count": len(ideas)})
}

// createIdea handles POST /api/v1/ideas
func (r *Router) createIdea(c *gin.Context) {
	var req createIdeaRequest
	if !bindJSON(c, &req) {
		return
	}
	idea, err := r.drafting.CreateIdea(c.Request.Context(), req.Content, req.Source)
	if err != nil {
		r.handleServiceError(c, err, "create idea")
		return
	}
	c.JSON(http.StatusCreated, idea)
}

// markGenerating handles POST /api/v1/ideas/:id/generating
func (r *Router) markGenerating(c *gin.Context) {
	id, ok := parseUUID(c, "id", "idea")
	if !ok {
		return
	}
	idea, err := r.drafting.MarkGenerating(c.Request.Context(), id)
	if err != nil {
		r.handleServiceError(c, err, "update idea")
		return
	}
	c.JSON(http.StatusOK, idea)
}

// updateIdeaStatus handles PATCH /api/v1/ideas/:id/status
func (r *Router) updateIdeaStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id", "idea")
	if !ok {
		return
	}
	var req ideaStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	status, err := domain.ParseIdeaStatus(req.Status)
	if err != nil {
		r.handleServiceError(c, err, "update idea")
		return
	}
	idea, err := r.drafting.SetIdeaStatus(c.Request.Context(), id, status)
	if err != nil {
		r.handleServiceError(c, err, "update idea")
		return
	}
	c.JSON(http.StatusOK, idea)
}

// generate handles POST /api/v1/generate
func (r *Router) generate(c *gin.Context) {
	var req generateRequest
	if !bindJSON(c, &req) {
		return
	}
	counts := drafting.Counts{LinkedIn: req.LinkedInCount, Blog: req.BlogCount}
	pieces, err := r.drafting.Generate(c.Request.Context(), req.IdeaID, counts)
	if err != nil {
		r.handleServiceError(c, err, "generate drafts")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pieces": pieces, "count": len(pieces)})
}
