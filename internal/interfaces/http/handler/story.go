package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"novel-series-rag/internal/application/story"
	"novel-series-rag/internal/interfaces/http/dto"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/logger"
)

// StoryGenerator 故事生成
type StoryGenerator interface {
	Generate(ctx context.Context, in story.GenerateInput) (*story.GenerateOutput, error)
}

// StoryHandler 故事生成处理器
type StoryHandler struct {
	svc StoryGenerator
}

// NewStoryHandler 创建故事生成处理器
func NewStoryHandler(svc StoryGenerator) *StoryHandler {
	return &StoryHandler{svc: svc}
}

// Generate 生成新故事或续写
// @Summary 生成故事
// @Description continueFrom 与 storyId 同时给出时基于系列上下文续写，否则创作新故事
// @Tags Story
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 {object} dto.GenerateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/generate [post]
func (h *StoryHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, dto.GenerateFailedMessage+"：invalid request body")
		return
	}
	in, err := req.ToInput()
	if err != nil {
		dto.BadRequest(c, dto.GenerateFailedMessage+"：invalid length")
		return
	}

	out, err := h.svc.Generate(ctx, in)
	if err != nil {
		logger.Error(ctx, "generate story failed", err, "series_id", in.SeriesID)
		dto.Error(c, generateFailureStatus(err), dto.GenerateFailedMessage)
		return
	}

	c.JSON(http.StatusOK, dto.GenerateResponse{Content: out.Content})
}

// generateFailureStatus 参数错误 400，上游不可用 503，其余 500
func generateFailureStatus(err error) int {
	switch errors.AsAppError(err).HTTPStatus {
	case http.StatusBadRequest:
		return http.StatusBadRequest
	case http.StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
