// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers) {
	// 故事生成
	generate := []gin.HandlerFunc{h.Story.Generate}
	if h.GenerateLimiter != nil {
		generate = append([]gin.HandlerFunc{h.GenerateLimiter}, generate...)
	}
	v1.POST("/generate", generate...)

	// 章节管理
	chapters := v1.Group("/chapters")
	{
		chapters.GET("", h.Chapter.ListChapters)
		chapters.POST("", h.Chapter.CreateChapter)
	}

	// 系列
	series := v1.Group("/series")
	{
		series.GET("", h.Series.ListSeries)
		series.GET("/:sid/chapters", h.Series.ListSeriesChapters)
		series.POST("/:sid/context", h.Series.DebugContext)
	}
}
