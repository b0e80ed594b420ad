package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-series-rag/internal/application/library"
	"novel-series-rag/internal/application/retrieval"
	"novel-series-rag/internal/application/story"
	"novel-series-rag/internal/config"
	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/internal/infrastructure/persistence/redis"
	"novel-series-rag/internal/interfaces/http/handler"
	"novel-series-rag/internal/interfaces/http/middleware"
)

type stubStory struct{}

func (stubStory) Generate(ctx context.Context, in story.GenerateInput) (*story.GenerateOutput, error) {
	return &story.GenerateOutput{Content: "ok"}, nil
}

type stubLibrary struct{}

func (stubLibrary) Save(ctx context.Context, in library.SaveInput) (*entity.Chapter, error) {
	return &entity.Chapter{ID: "c1", SeriesID: "c1", ChapterNumber: 1, Content: in.Content}, nil
}
func (stubLibrary) List() []*entity.Chapter                  { return nil }
func (stubLibrary) Series(string) ([]*entity.Chapter, error) { return nil, nil }
func (stubLibrary) Groups() []*entity.SeriesGroup            { return nil }

type stubAssembler struct{}

func (stubAssembler) Assemble(ctx context.Context, in retrieval.AssembleInput) (*retrieval.Assembly, error) {
	return &retrieval.Assembly{SeriesID: in.SeriesID}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "novel-series-rag"
	cfg.App.Env = "test"
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Metrics.Path = "/metrics"
	return cfg
}

func newTestRouter(t *testing.T, limiter gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	lib := stubLibrary{}
	return New(testConfig(), &Handlers{
		Health:          handler.NewHealthHandler(nil, nil, "test"),
		Story:           handler.NewStoryHandler(stubStory{}),
		Chapter:         handler.NewChapterHandler(lib),
		Series:          handler.NewSeriesHandler(lib, stubAssembler{}),
		GenerateLimiter: limiter,
	}).Engine()
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutesRegistered(t *testing.T) {
	r := newTestRouter(t, nil)

	w := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/live", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/v1/generate", `{"prompt":"p"}`).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/v1/chapters", `{"content":"c"}`).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/v1/chapters", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/v1/series", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/v1/series/S1/context", `{"instruction":"go"}`).Code)
}

func TestGenerateRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	limiter := middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}, client)
	r := newTestRouter(t, limiter)

	require.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/v1/generate", `{"prompt":"p"}`).Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/v1/generate", `{"prompt":"p"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/v1/generate", `{"prompt":"p"}`).Code)

	// 其他接口不受生成限流影响
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/v1/chapters", "").Code)
}

func TestRateLimiterFailureFallsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	limiter := middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}, client)
	r := newTestRouter(t, limiter)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/v1/generate", `{"prompt":"p"}`).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/v1/generate", `{"prompt":"p"}`).Code)
}
