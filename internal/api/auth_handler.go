package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/content-studio/infrastructure/jwt"
	"github.com/jonesrussell/content-studio/infrastructure/logger"
)

const (
	operatorSubject = "operator"
	bearerPrefix    = "Bearer "
)

type loginRequest struct {
	Password string `binding:"required" json:"password"`
}

// login handles POST /api/v1/auth/login
func (r *Router) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	if !secretEqual(req.Password, r.cfg.Auth.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}

	token, expiresAt, err := jwt.Issue(r.cfg.Auth.JWTSecret, operatorSubject, r.cfg.Auth.TokenTTL, r.now())
	if err != nil {
		r.log.Error("Failed to issue token", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expiresAt})
}

// cronAuth requires the exact header "Bearer <cron secret>".
func (r *Router) cronAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := r.cfg.Auth.CronSecret
		if secret == "" || !secretEqual(c.GetHeader("Authorization"), bearerPrefix+secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func secretEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
