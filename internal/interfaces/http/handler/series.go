package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"novel-series-rag/internal/application/retrieval"
	"novel-series-rag/internal/interfaces/http/dto"
	"novel-series-rag/pkg/logger"
)

// ContextAssembler 续写上下文组装
type ContextAssembler interface {
	Assemble(ctx context.Context, in retrieval.AssembleInput) (*retrieval.Assembly, error)
}

// SeriesHandler 系列处理器
type SeriesHandler struct {
	lib       ChapterLibrary
	assembler ContextAssembler
}

// NewSeriesHandler 创建系列处理器
func NewSeriesHandler(lib ChapterLibrary, assembler ContextAssembler) *SeriesHandler {
	return &SeriesHandler{lib: lib, assembler: assembler}
}

// ListSeries 获取系列列表
// @Summary 获取系列列表
// @Tags Series
// @Produce json
// @Success 200 {object} dto.Response[dto.SeriesListResponse]
// @Router /v1/series [get]
func (h *SeriesHandler) ListSeries(c *gin.Context) {
	groups := h.lib.Groups()
	dto.Success(c, &dto.SeriesListResponse{Series: groups, Total: len(groups)})
}

// ListSeriesChapters 获取系列章节
// @Summary 获取系列章节
// @Description 按章节号升序返回
// @Tags Series
// @Produce json
// @Param sid path string true "系列 ID"
// @Success 200 {object} dto.Response[dto.ChapterListResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/series/{sid}/chapters [get]
func (h *SeriesHandler) ListSeriesChapters(c *gin.Context) {
	chapters, err := h.lib.Series(c.Param("sid"))
	if err != nil {
		dto.AppError(c, err, "series not found")
		return
	}
	dto.Success(c, dto.ToChapterListResponse(chapters))
}

// DebugContext 调试上下文组装
// @Summary 调试上下文组装
// @Description 返回续写上下文及参考章节的相似度分数
// @Tags Series
// @Accept json
// @Produce json
// @Param sid path string true "系列 ID"
// @Param body body dto.ContextRequest true "续写指令"
// @Success 200 {object} dto.Response[dto.ContextResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/series/{sid}/context [post]
func (h *SeriesHandler) DebugContext(c *gin.Context) {
	ctx := c.Request.Context()
	seriesID := c.Param("sid")

	var req dto.ContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	assembly, err := h.assembler.Assemble(ctx, retrieval.AssembleInput{
		SeriesID:    seriesID,
		Instruction: req.Instruction,
		Limit:       req.Limit,
	})
	if err != nil {
		logger.Error(ctx, "failed to assemble context", err, "series_id", seriesID)
		dto.AppError(c, err, "failed to assemble context")
		return
	}

	dto.Success(c, dto.ToContextResponse(assembly))
}
