package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"novel-series-rag/internal/application/library"
	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/internal/interfaces/http/dto"
	"novel-series-rag/pkg/logger"
)

// ChapterLibrary 章节库
type ChapterLibrary interface {
	Save(ctx context.Context, in library.SaveInput) (*entity.Chapter, error)
	List() []*entity.Chapter
	Series(seriesID string) ([]*entity.Chapter, error)
	Groups() []*entity.SeriesGroup
}

// ChapterHandler 章节处理器
type ChapterHandler struct {
	lib ChapterLibrary
}

// NewChapterHandler 创建章节处理器
func NewChapterHandler(lib ChapterLibrary) *ChapterHandler {
	return &ChapterHandler{lib: lib}
}

// ListChapters 获取章节列表
// @Summary 获取章节列表
// @Description 返回全部已保存章节，最新在前
// @Tags Chapters
// @Produce json
// @Success 200 {object} dto.Response[dto.ChapterListResponse]
// @Router /v1/chapters [get]
func (h *ChapterHandler) ListChapters(c *gin.Context) {
	dto.Success(c, dto.ToChapterListResponse(h.lib.List()))
}

// CreateChapter 保存章节
// @Summary 保存章节
// @Description 向量化后追加到系列末尾；series_id 为空时开启新系列
// @Tags Chapters
// @Accept json
// @Produce json
// @Param body body dto.SaveChapterRequest true "章节信息"
// @Success 201 {object} dto.Response[dto.ChapterResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/chapters [post]
func (h *ChapterHandler) CreateChapter(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SaveChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	chapter, err := h.lib.Save(ctx, req.ToInput())
	if err != nil {
		logger.Error(ctx, "failed to save chapter", err, "series_id", req.SeriesID)
		dto.AppError(c, err, "failed to save chapter")
		return
	}

	dto.Created(c, dto.ToChapterResponse(chapter))
}
