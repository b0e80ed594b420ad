package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novel-series-rag/pkg/logger"
)

// TraceIDHeader 响应中回传的 trace ID 头
const TraceIDHeader = "X-Trace-ID"

// Trace OpenTelemetry 追踪中间件；skipPaths 不产生 span
func Trace(serviceName string, skipPaths ...string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !slices.Contains(skipPaths, r.URL.Path)
	}))
}

// TraceContext 将 trace_id 与路径中的系列 ID 写入日志上下文和当前 span
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span := trace.SpanFromContext(ctx)

		if sc := span.SpanContext(); sc.IsValid() {
			traceID := sc.TraceID().String()
			c.Set(string(logger.TraceIDKey), traceID)
			ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
			ctx = logger.WithContext(ctx, logger.SpanIDKey, sc.SpanID().String())
			c.Header(TraceIDHeader, traceID)
		}

		if sid := c.Param("sid"); sid != "" {
			ctx = logger.WithContext(ctx, logger.SeriesIDKey, sid)
			span.SetAttributes(attribute.String("series.id", sid))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
