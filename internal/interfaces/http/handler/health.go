// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"novel-series-rag/internal/domain/repository"
	"novel-series-rag/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	store   repository.ChapterRepository
	redis   *redis.Client
	version string
}

// NewHealthHandler 创建健康检查处理器；redisClient 可为 nil（未启用缓存）
func NewHealthHandler(store repository.ChapterRepository, redisClient *redis.Client, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		redis:   redisClient,
		version: version,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready 就绪检查接口
// 章节存储为必需项；Redis 仅作缓存与限流，故障时标记 degraded 不影响就绪
// @Summary 就绪检查
// @Description 检查服务是否可以接收流量
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"store": {Status: "unknown"},
		"redis": {Status: "disabled"},
	}

	ready := true

	if h.store == nil {
		checks["store"].Status = "missing"
		checks["store"].Error = "chapter store not configured"
		ready = false
	} else {
		checks["store"] = probe(ctx, h.store.HealthCheck, "error")
		ready = checks["store"].Status == "ok"
	}

	if h.redis != nil {
		checks["redis"] = probe(ctx, h.redis.HealthCheck, "degraded")
	}

	resp := readinessResponse{
		Status: "ok",
		Checks: checks,
	}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func probe(ctx context.Context, check func(context.Context) error, failStatus string) *readinessCheck {
	start := time.Now()
	err := check(ctx)
	rc := &readinessCheck{
		Status:    "ok",
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		rc.Status = failStatus
		rc.Error = err.Error()
	}
	return rc
}

// Live 存活检查接口
// @Summary 存活检查
// @Description 检查服务是否存活
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}
