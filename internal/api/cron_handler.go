package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/content-studio/internal/ingest"
)

// runPublish handles GET|POST /api/v1/cron/publish/:type
func (r *Router) runPublish(c *gin.Context) {
	t, ok := parseType(c)
	if !ok {
		return
	}

	res, err := r.publish.Run(c.Request.Context(), t)
	if err != nil {
		if res != nil {
			// The cycle ran and recorded the failure.
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "result": res})
			return
		}
		r.handleServiceError(c, err, "run publish cycle")
		return
	}
	c.JSON(http.StatusOK, res)
}

// runIngest handles GET|POST /api/v1/cron/email-ingest
func (r *Router) runIngest(c *gin.Context) {
	res, err := r.ingest.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, ingest.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		r.handleServiceError(c, err, "ingest email")
		return
	}
	c.JSON(http.StatusOK, res)
}
