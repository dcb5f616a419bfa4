package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/content-studio/internal/domain"
)

const (
	defaultBlogPostLimit = 20
	maxBlogPostLimit     = 100
)

type updateSettingRequest struct {
	Enabled *bool `binding:"required" json:"enabled"`
}

// getSettings handles GET /api/v1/settings
func (r *Router) getSettings(c *gin.Context) {
	out := make(gin.H, len(domain.ContentTypes))
	for _, t := range domain.ContentTypes {
		enabled, err := r.postingEnabled(c, t)
		if err != nil {
			r.handleServiceError(c, err, "get settings")
			return
		}
		out[string(t)] = enabled
	}
	c.JSON(http.StatusOK, out)
}

// getSetting handles GET /api/v1/settings/:type
func (r *Router) getSetting(c *gin.Context) {
	t, ok := parseType(c)
	if !ok {
		return
	}
	enabled, err := r.postingEnabled(c, t)
	if err != nil {
		r.handleServiceError(c, err, "get setting")
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": t, "enabled": enabled})
}

// updateSetting handles PUT /api/v1/settings/:type
func (r *Router) updateSetting(c *gin.Context) {
	t, ok := parseType(c)
	if !ok {
		return
	}
	var req updateSettingRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := r.store.UpsertSetting(c.Request.Context(), t.SettingKey(), strconv.FormatBool(*req.Enabled)); err != nil {
		r.handleServiceError(c, domain.Persistence("update setting", err), "update setting")
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": t, "enabled": *req.Enabled})
}

// postingEnabled treats a missing row as disabled.
func (r *Router) postingEnabled(c *gin.Context, t domain.ContentType) (bool, error) {
	value, found, err := r.store.GetSetting(c.Request.Context(), t.SettingKey())
	if err != nil {
		return false, domain.Persistence("get setting", err)
	}
	return found && value == "true", nil
}

// getStats handles GET /api/v1/stats
func (r *Router) getStats(c *gin.Context) {
	counts, err := r.store.PieceStats(c.Request.Context())
	if err != nil {
		r.handleServiceError(c, domain.Persistence("piece stats", err), "get stats")
		return
	}

	statuses := []domain.PieceStatus{
		domain.PieceStatusDraft, domain.PieceStatusQueued,
		domain.PieceStatusPublished, domain.PieceStatusFailed,
	}
	stats := make(map[domain.ContentType]map[domain.PieceStatus]int, len(domain.ContentTypes))
	for _, t := range domain.ContentTypes {
		stats[t] = make(map[domain.PieceStatus]int, len(statuses))
		for _, s := range statuses {
			stats[t][s] = 0
		}
	}
	total := 0
	for _, sc := range counts {
		if _, ok := stats[sc.Type]; ok {
			stats[sc.Type][sc.Status] = sc.Count
		}
		total += sc.Count
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "total": total})
}

// getSchema handles GET /api/v1/schema
func (r *Router) getSchema(c *gin.Context) {
	counts, err := r.store.TableCounts(c.Request.Context())
	if err != nil {
		r.handleServiceError(c, domain.Persistence("table counts", err), "get schema")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Schema report\nGenerated: %s\n\n", r.now().UTC().Format("2006-01-02T15:04:05Z"))
	sb.WriteString("| Table | Rows |\n|-------|------|\n")
	for _, tc := range counts {
		fmt.Fprintf(&sb, "| %s | %d |\n", tc.Table, tc.Rows)
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(sb.String()))
}

// listBlogPosts handles GET /api/v1/blog-posts
func (r *Router) listBlogPosts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultBlogPostLimit)))
	if err != nil || limit < 1 {
		limit = defaultBlogPostLimit
	}
	limit = min(limit, maxBlogPostLimit)

	posts, err := r.store.ListBlogPosts(c.Request.Context(), limit)
	if err != nil {
		r.handleServiceError(c, domain.Persistence("list blog posts", err), "list blog posts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

// getBlogPost handles GET /api/v1/blog-posts/:slug
func (r *Router) getBlogPost(c *gin.Context) {
	post, err := r.store.GetBlogPostBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		r.handleServiceError(c, domain.Persistence("get blog post", err), "get blog post")
		return
	}
	c.JSON(http.StatusOK, post)
}
