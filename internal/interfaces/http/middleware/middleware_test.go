package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"novel-series-rag/internal/config"
	"novel-series-rag/internal/interfaces/http/dto"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m promdto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecoveryResponses(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.POST("/v1/generate", func(c *gin.Context) { panic("model exploded") })
	r.GET("/v1/chapters", func(c *gin.Context) { panic("store exploded") })

	before := counterValue(t, metrics.HTTPPanicsTotal.WithLabelValues("/v1/generate"))

	w := do(r, http.MethodPost, "/v1/generate", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, dto.GenerateFailedMessage, body.Message)
	assert.NotContains(t, w.Body.String(), "exploded")
	assert.Equal(t, before+1, counterValue(t, metrics.HTTPPanicsTotal.WithLabelValues("/v1/generate")))

	w = do(r, http.MethodGet, "/v1/chapters", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, string(errors.CodeInternalError), body.Error.ErrorCode)
}

func TestRequestIDSanitizesHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := do(r, http.MethodGet, "/x", map[string]string{RequestIDHeader: "req-123"})
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", w.Body.String())

	for _, bad := range []string{"", "has space", "注入", string(make([]byte, 65))} {
		w = do(r, http.MethodGet, "/x", map[string]string{RequestIDHeader: bad})
		got := w.Header().Get(RequestIDHeader)
		assert.Len(t, got, 36, "header %q", bad)
		assert.NotEqual(t, bad, got)
	}
}

func TestMetricsLabelsByRoute(t *testing.T) {
	r := gin.New()
	r.Use(Metrics("/health"))
	r.POST("/v1/series/:sid/context", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	route := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/v1/series/:sid/context", "200")
	health := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")
	routeBefore, healthBefore := counterValue(t, route), counterValue(t, health)

	do(r, http.MethodPost, "/v1/series/S1/context", nil)
	do(r, http.MethodPost, "/v1/series/S2/context", nil)
	do(r, http.MethodGet, "/health", nil)

	assert.Equal(t, routeBefore+2, counterValue(t, route))
	assert.Equal(t, healthBefore, counterValue(t, health))
}

func TestTraceContextTagsSeries(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "request")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(TraceContext())
	r.POST("/v1/series/:sid/context", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodPost, "/v1/series/S7/context", nil)
	require.Equal(t, http.StatusOK, w.Code)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), w.Header().Get(TraceIDHeader))
	assert.Contains(t, spans[0].Attributes(), attribute.String("series.id", "S7"))
}

func TestCORSOrigins(t *testing.T) {
	handler := func(c *gin.Context) { c.Status(http.StatusOK) }

	r := gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"*"}}))
	r.GET("/v1/series", handler)
	w := do(r, http.MethodGet, "/v1/series", map[string]string{"Origin": "http://writer.local"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	r = gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"http://writer.local"}}))
	r.GET("/v1/series", handler)
	w = do(r, http.MethodGet, "/v1/series", map[string]string{"Origin": "http://writer.local"})
	assert.Equal(t, "http://writer.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
