package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/content-studio/infrastructure/jwt"
	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/api"
	"github.com/jonesrussell/content-studio/internal/channels"
	"github.com/jonesrussell/content-studio/internal/config"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/drafting"
	"github.com/jonesrussell/content-studio/internal/lock"
	"github.com/jonesrussell/content-studio/internal/publish"
	"github.com/jonesrussell/content-studio/internal/queue"
	"github.com/jonesrussell/content-studio/internal/store/memstore"
	"github.com/jonesrussell/content-studio/internal/telemetry"
)

const (
	testPassword   = "let-me-in"
	testJWTSecret  = "jwt-secret"
	testCronSecret = "cron-secret"
)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, _ string, counts drafting.Counts) ([]domain.DraftPiece, error) {
	drafts := make([]domain.DraftPiece, 0, counts.Total())
	for range counts.LinkedIn {
		drafts = append(drafts, domain.DraftPiece{Type: domain.ContentTypeLinkedIn, Content: "post"})
	}
	for range counts.Blog {
		title := "A Blog Post"
		drafts = append(drafts, domain.DraftPiece{Type: domain.ContentTypeBlog, Title: &title, Content: "long form"})
	}
	return drafts, nil
}

func (stubGenerator) Regenerate(context.Context, drafting.RegenerateRequest) (*drafting.Revision, error) {
	return &drafting.Revision{Content: "fresh"}, nil
}

type stubLinkedIn struct{ err error }

func (s stubLinkedIn) Publish(context.Context, channels.Item) (*channels.Receipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	id := "urn:li:share:42"
	return &channels.Receipt{ExternalID: &id}, nil
}

type testServer struct {
	router *gin.Engine
	store  *memstore.Store
	token  string
}

func newTestServer(t *testing.T, linkedIn channels.Publisher) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Service: config.ServiceConfig{Name: "content-studio", Port: 8070},
		Auth: config.AuthConfig{
			Password:   testPassword,
			JWTSecret:  testJWTSecret,
			TokenTTL:   time.Hour,
			CronSecret: testCronSecret,
		},
	}

	log := logger.NewNop()
	s := memstore.New()
	locker := lock.NewLocal(time.Second)
	reg := prometheus.NewRegistry()
	tp := telemetry.NewProvider(reg)

	limits := drafting.Limits{MaxLinkedIn: 3, MaxBlog: 2, MaxTotal: 5}
	publisher, err := publish.NewService(s, locker, channels.Registry{
		domain.ContentTypeBlog:     channels.NewBlog(),
		domain.ContentTypeLinkedIn: linkedIn,
	}, time.Second, tp, log)
	require.NoError(t, err)

	r := api.NewRouter(api.Deps{
		Config:   cfg,
		Store:    s,
		Drafting: drafting.NewService(s, stubGenerator{}, limits, time.Second, tp, log),
		Queue:    queue.NewManager(s, locker, log),
		Publish:  publisher,
		Gatherer: reg,
		Logger:   log,
	})
	engine := gin.New()
	r.SetupRoutes(engine)

	token, _, err := jwt.Issue(testJWTSecret, "operator", time.Hour, time.Now())
	require.NoError(t, err)
	return &testServer{router: engine, store: s, token: token}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, auth string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) op(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, method, path, body, "Bearer "+ts.token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// seed creates an idea and generates drafts through the API.
func (ts *testServer) seed(t *testing.T, linkedIn, blog int) []domain.ContentPiece {
	t.Helper()

	w := ts.op(t, http.MethodPost, "/api/v1/ideas", gin.H{"content": "ship small"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	idea := decode[domain.Idea](t, w)

	w = ts.op(t, http.MethodPost, "/api/v1/generate", gin.H{
		"idea_id": idea.ID, "linkedin_count": linkedIn, "blog_count": blog,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		Pieces []domain.ContentPiece `json:"pieces"`
	}](t, w).Pieces
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})

	w := ts.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"password": testPassword}, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Token string `json:"token"`
	}](t, w)
	require.NotEmpty(t, body.Token)

	w = ts.do(t, http.MethodGet, "/api/v1/ideas", nil, "Bearer "+body.Token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})

	for _, path := range []string{"/api/v1/ideas", "/api/v1/queue", "/api/v1/settings", "/api/v1/stats"} {
		w := ts.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCronAuth(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})

	testCases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "no bearer prefix", header: testCronSecret, want: http.StatusUnauthorized},
		{name: "operator token is not enough", header: "Bearer " + ts.token, want: http.StatusUnauthorized},
		{name: "exact secret", header: "Bearer " + testCronSecret, want: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/cron/publish/linkedin", nil, tc.header)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestGenerateValidation(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})

	w := ts.op(t, http.MethodPost, "/api/v1/ideas", gin.H{"content": "idea"})
	idea := decode[domain.Idea](t, w)

	testCases := []struct {
		name string
		body gin.H
		want int
	}{
		{name: "too many linkedin", body: gin.H{"idea_id": idea.ID, "linkedin_count": 4}, want: http.StatusBadRequest},
		{name: "over total", body: gin.H{"idea_id": idea.ID, "linkedin_count": 3, "blog_count": 3}, want: http.StatusBadRequest},
		{name: "negative", body: gin.H{"idea_id": idea.ID, "blog_count": -1}, want: http.StatusBadRequest},
		{name: "missing idea id", body: gin.H{"blog_count": 1}, want: http.StatusBadRequest},
		{name: "unknown idea", body: gin.H{"idea_id": uuid.New(), "blog_count": 1}, want: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.op(t, http.MethodPost, "/api/v1/generate", tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestQueueFlow(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})
	pieces := ts.seed(t, 3, 0)
	ids := []uuid.UUID{pieces[0].ID, pieces[1].ID, pieces[2].ID}

	w := ts.op(t, http.MethodPost, "/api/v1/queue/add", gin.H{"content_ids": ids})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.op(t, http.MethodPost, "/api/v1/queue/reorder", gin.H{
		"item_id": ids[2], "new_position": 1, "type": "linkedin",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.op(t, http.MethodGet, "/api/v1/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decode[map[string][]domain.ContentPiece](t, w)
	require.Len(t, snapshot["linkedin"], 3)
	assert.Empty(t, snapshot["blog"])
	assert.Equal(t, ids[2], snapshot["linkedin"][0].ID)
	assert.Equal(t, ids[0], snapshot["linkedin"][1].ID)

	w = ts.op(t, http.MethodDelete, "/api/v1/queue/"+ids[0].String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.op(t, http.MethodPost, "/api/v1/queue/add-single", gin.H{"content_id": ids[2]})
	assert.Equal(t, http.StatusConflict, w.Code, "already queued")

	w = ts.op(t, http.MethodPost, "/api/v1/queue/reorder", gin.H{
		"item_id": ids[1], "new_position": 1, "type": "tiktok",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.op(t, http.MethodDelete, "/api/v1/queue/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})

	w := ts.op(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"linkedin": false, "blog": false}, decode[map[string]bool](t, w))

	w = ts.op(t, http.MethodPut, "/api/v1/settings/blog", gin.H{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.op(t, http.MethodGet, "/api/v1/settings/blog", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"blog","enabled":true}`, w.Body.String())

	w = ts.op(t, http.MethodPut, "/api/v1/settings/blog", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "enabled is required")

	w = ts.op(t, http.MethodPut, "/api/v1/settings/tiktok", gin.H{"enabled": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCronPublish(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})
	cron := "Bearer " + testCronSecret

	pieces := ts.seed(t, 0, 1)
	w := ts.op(t, http.MethodPost, "/api/v1/queue/add-single", gin.H{"content_id": pieces[0].ID})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/cron/publish/blog", nil, cron)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, publish.OutcomeDisabled, decode[publish.Result](t, w).Outcome)

	w = ts.op(t, http.MethodPut, "/api/v1/settings/blog", gin.H{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/cron/publish/blog", nil, cron)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[publish.Result](t, w)
	assert.Equal(t, publish.OutcomePublished, res.Outcome)
	assert.Equal(t, "a-blog-post", res.Slug)

	w = ts.do(t, http.MethodGet, "/api/v1/blog-posts/a-blog-post", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "long form", decode[domain.BlogPost](t, w).Content)

	w = ts.do(t, http.MethodGet, "/api/v1/blog-posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = ts.do(t, http.MethodGet, "/api/v1/blog-posts/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/cron/publish/blog", nil, cron)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, publish.OutcomeEmpty, decode[publish.Result](t, w).Outcome)
}

func TestCronPublishFailureThenRetry(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{err: errors.New("LinkedIn access token missing")})
	cron := "Bearer " + testCronSecret

	pieces := ts.seed(t, 1, 0)
	ts.op(t, http.MethodPost, "/api/v1/queue/add-single", gin.H{"content_id": pieces[0].ID})
	ts.op(t, http.MethodPut, "/api/v1/settings/linkedin", gin.H{"enabled": true})

	w := ts.do(t, http.MethodPost, "/api/v1/cron/publish/linkedin", nil, cron)
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	body := decode[struct {
		Error  string         `json:"error"`
		Result publish.Result `json:"result"`
	}](t, w)
	assert.Equal(t, publish.OutcomeFailed, body.Result.Outcome)
	assert.Contains(t, body.Error, "LinkedIn access token missing")

	w = ts.op(t, http.MethodGet, "/api/v1/content/"+pieces[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.PieceStatusFailed, decode[domain.ContentPiece](t, w).Status)

	w = ts.op(t, http.MethodGet, "/api/v1/content?status=failed&type=linkedin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = ts.op(t, http.MethodPost, "/api/v1/content/"+pieces[0].ID.String()+"/retry", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	retried := decode[domain.ContentPiece](t, w)
	assert.Equal(t, domain.PieceStatusQueued, retried.Status)
	assert.Equal(t, 1, retried.Position())
	assert.Nil(t, retried.ErrorMessage)
}

func TestIdeaStatusTransitions(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})

	w := ts.op(t, http.MethodPost, "/api/v1/ideas", gin.H{"content": "idea", "source": "ops@example.com"})
	idea := decode[domain.Idea](t, w)
	base := "/api/v1/ideas/" + idea.ID.String()

	w = ts.op(t, http.MethodPost, base+"/generating", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.IdeaStatusGenerating, decode[domain.Idea](t, w).Status)

	w = ts.op(t, http.MethodPatch, base+"/status", gin.H{"status": "drafted"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.op(t, http.MethodPatch, base+"/status", gin.H{"status": "new"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.op(t, http.MethodPatch, base+"/status", gin.H{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.op(t, http.MethodPost, "/api/v1/ideas/"+uuid.NewString()+"/generating", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentEditAndRegenerate(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})
	pieces := ts.seed(t, 1, 0)
	path := "/api/v1/content/" + pieces[0].ID.String()

	w := ts.op(t, http.MethodPatch, path, gin.H{"content": "edited"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "edited", decode[domain.ContentPiece](t, w).Content)

	w = ts.op(t, http.MethodPost, path+"/regenerate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh", decode[domain.ContentPiece](t, w).Content)

	w = ts.op(t, http.MethodGet, "/api/v1/content?type=fax", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsAndSchema(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})
	ts.seed(t, 2, 1)

	w := ts.op(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[struct {
		Stats map[string]map[string]int `json:"stats"`
		Total int                       `json:"total"`
	}](t, w)
	assert.Equal(t, 2, stats.Stats["linkedin"]["draft"])
	assert.Equal(t, 1, stats.Stats["blog"]["draft"])
	assert.Equal(t, 0, stats.Stats["blog"]["published"])
	assert.Equal(t, 3, stats.Total)

	w = ts.op(t, http.MethodGet, "/api/v1/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/markdown"))
	assert.Contains(t, w.Body.String(), "| content_pieces | 3 |")
	assert.Contains(t, w.Body.String(), "| ideas | 1 |")
}

func TestEmailIngestNotConfigured(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})

	w := ts.do(t, http.MethodPost, "/api/v1/cron/email-ingest", nil, "Bearer "+testCronSecret)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, stubLinkedIn{})
	ts.do(t, http.MethodGet, "/api/v1/cron/publish/blog", nil, "Bearer "+testCronSecret)

	w := ts.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "content_studio_publish_cycles_total")
}
