package middleware

import (
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"novel-series-rag/pkg/metrics"
)

// routeLabel 取注册的路由模板，避免 :sid 等参数撑爆标签基数
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// Metrics Prometheus 指标采集中间件；skipPaths 中的探针与抓取路径不计数
func Metrics(skipPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := routeLabel(c)
		if slices.Contains(skipPaths, route) {
			c.Next()
			return
		}

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		method := c.Request.Method
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
