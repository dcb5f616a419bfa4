package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/internal/domain"
)

type addToQueueRequest struct {
	ContentIDs []uuid.UUID `binding:"required" json:"content_ids"`
}

type addSingleRequest struct {
	ContentID uuid.UUID `binding:"required" json:"content_id"`
}

type reorderRequest struct {
	ItemID      uuid.UUID `binding:"required" json:"item_id"`
	NewPosition int       `binding:"required" json:"new_position"`
	Type        string    `binding:"required" json:"type"`
}

// getQueue handles GET /api/v1/queue
func (r *Router) getQueue(c *gin.Context) {
	snapshot, err := r.queue.Snapshot(c.Request.Context())
	if err != nil {
		r.handleServiceError(c, err, "fetch queue")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		string(domain.ContentTypeLinkedIn): nonNil(snapshot[domain.ContentTypeLinkedIn]),
		string(domain.ContentTypeBlog):     nonNil(snapshot[domain.ContentTypeBlog]),
	})
}

// addToQueue handles POST /api/v1/queue/add
func (r *Router) addToQueue(c *gin.Context) {
	var req addToQueueRequest
	if !bindJSON(c, &req) {
		return
	}
	pieces, err := r.queue.InsertBatch(c.Request.Context(), req.ContentIDs)
	if err != nil {
		r.handleServiceError(c, err, "add to queue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": pieces, "count": len(pieces)})
}

// addSingleToQueue handles POST /api/v1/queue/add-single
func (r *Router) addSingleToQueue(c *gin.Context) {
	var req addSingleRequest
	if !bindJSON(c, &req) {
		return
	}
	piece, err := r.queue.Insert(c.Request.Context(), req.ContentID)
	if err != nil {
		r.handleServiceError(c, err, "add to queue")
		return
	}
	c.JSON(http.StatusOK, piece)
}

// reorderQueue handles POST /api/v1/queue/reorder
func (r *Router) reorderQueue(c *gin.Context) {
	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := domain.ParseContentType(req.Type)
	if err != nil {
		r.handleServiceError(c, err, "reorder queue")
		return
	}
	res, err := r.queue.Reorder(c.Request.Context(), req.ItemID, req.NewPosition, t)
	if err != nil {
		r.handleServiceError(c, err, "reorder queue")
		return
	}
	c.JSON(http.StatusOK, res)
}

// removeFromQueue handles DELETE /api/v1/queue/:id
func (r *Router) removeFromQueue(c *gin.Context) {
	id, ok := parseUUID(c, "id", "content")
	if !ok {
		return
	}
	if err := r.queue.Remove(c.Request.Context(), id); err != nil {
		r.handleServiceError(c, err, "remove from queue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": id})
}

func nonNil(pieces []domain.ContentPiece) []domain.ContentPiece {
	if pieces == nil {
		return []domain.ContentPiece{}
	}
	return pieces
}
