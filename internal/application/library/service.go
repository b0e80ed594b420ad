package library

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/internal/domain/repository"
	"novel-series-rag/internal/domain/service"
	"novel-series-rag/internal/infrastructure/embedding"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/logger"
	"novel-series-rag/pkg/metrics"
)

// SaveInput 保存章节输入
type SaveInput struct {
	// SeriesID 为空表示开启新系列
	SeriesID string
	Type     entity.StoryType
	Content  string
	// Title 为空时按章节号生成
	Title string
}

// ChapterService 章节保存与浏览
type ChapterService struct {
	repo       repository.ChapterRepository
	gateway    embedding.Gateway
	ws         *WorkingSet
	reconciler *Reconciler
	now        func() time.Time
}

// NewChapterService 创建章节服务
func NewChapterService(repo repository.ChapterRepository, gateway embedding.Gateway, ws *WorkingSet, reconciler *Reconciler) *ChapterService {
	return &ChapterService{
		repo:       repo,
		gateway:    gateway,
		ws:         ws,
		reconciler: reconciler,
		now:        time.Now,
	}
}

// Save 向量化后追加到系列末尾，更新工作集并同步备份
func (s *ChapterService) Save(ctx context.Context, in SaveInput) (*entity.Chapter, error) {
	chapter, err := s.save(ctx, in)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ChapterSavedTotal.WithLabelValues(status).Inc()
	return chapter, err
}

func (s *ChapterService) save(ctx context.Context, in SaveInput) (*entity.Chapter, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, errors.New(errors.CodeInvalidParam, "content is required")
	}

	// 迁移期间存储内容不完整，续号与系列校验需等待迁移结束
	if err := s.reconciler.AwaitMigration(ctx); err != nil {
		return nil, err
	}

	seriesID := strings.TrimSpace(in.SeriesID)
	if seriesID != "" {
		ctx = logger.WithContext(ctx, logger.SeriesIDKey, seriesID)
		existing, err := s.repo.GetBySeries(ctx, seriesID)
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			return nil, errors.New(errors.CodeSeriesNotFound, "series not found").WithDetail(seriesID)
		}
	}

	vec, err := s.gateway.Embed(service.WithWorkflow(ctx, service.WorkflowChapterSave), in.Content)
	if err != nil {
		return nil, err
	}

	chapter := &entity.Chapter{
		ID:        uuid.NewString(),
		SeriesID:  seriesID,
		Title:     strings.TrimSpace(in.Title),
		Type:      in.Type,
		Content:   in.Content,
		Embedding: vec,
		Date:      s.now(),
	}
	if err := s.repo.Append(ctx, chapter); err != nil {
		return nil, err
	}

	s.ws.Add(chapter)
	s.reconciler.Mirror(ctx)

	logger.Info(logger.WithContext(ctx, logger.ChapterIDKey, chapter.ID), "chapter saved",
		"chapter_number", chapter.ChapterNumber,
	)
	return chapter, nil
}

// List 工作集全部章节（最新在前）
func (s *ChapterService) List() []*entity.Chapter {
	return s.ws.Snapshot()
}

// Series 系列章节（升序），系列不存在返回 CodeSeriesNotFound
func (s *ChapterService) Series(seriesID string) ([]*entity.Chapter, error) {
	chapters := s.ws.Series(seriesID)
	if len(chapters) == 0 {
		return nil, errors.New(errors.CodeSeriesNotFound, "series not found").WithDetail(seriesID)
	}
	return chapters, nil
}

// Groups 系列列表
func (s *ChapterService) Groups() []*entity.SeriesGroup {
	return s.ws.Groups()
}
