package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/domain"
)

// parseUUID parses a UUID from a path parameter.
func parseUUID(c *gin.Context, param, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + entity + " ID format"})
		return uuid.Nil, false
	}
	return id, true
}

// parseType parses the :type path parameter.
func parseType(c *gin.Context) (domain.ContentType, bool) {
	t, err := domain.ParseContentType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return t, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return false
	}
	return true
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var (
		vErr *domain.ValidationError
		cErr *domain.ConflictError
		xErr *domain.ExternalServiceError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &cErr):
		return http.StatusConflict
	case errors.As(err, &xErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError writes err as {"error": ...}. Internal failures are
// logged and reported without detail.
func (r *Router) handleServiceError(c *gin.Context, err error, operation string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		r.log.Error("Request failed",
			logger.String("operation", operation),
			logger.String("path", c.Request.URL.Path),
			logger.String("method", c.Request.Method),
			logger.Error(err),
		)
		c.JSON(status, gin.H{"error": "Failed to " + operation})
		return
	}
	if status == http.StatusBadGateway {
		r.log.Warn("Upstream service failed",
			logger.String("operation", operation),
			logger.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
