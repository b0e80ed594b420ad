// Package retrieval 实现续写上下文组装：本系列前序章节 + 其他系列的相似章节
package retrieval

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/internal/domain/repository"
	"novel-series-rag/internal/domain/service"
	"novel-series-rag/internal/infrastructure/embedding"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/logger"
	"novel-series-rag/pkg/metrics"
)

var tracer = otel.Tracer("retrieval")

// DefaultLimit 默认参考章节数
const DefaultLimit = 3

// AssembleInput 组装输入
type AssembleInput struct {
	// SeriesID 为空表示新故事，不组装上下文
	SeriesID    string
	Instruction string
	// Limit <= 0 时使用 Assembler 的默认值
	Limit int
}

// Assembly 组装结果
type Assembly struct {
	SeriesID       string
	SeriesChapters []*entity.Chapter
	References     []Scored
	// Candidates 排除本系列后参与排序的章节数
	Candidates int
	Context    string
}

// Empty 是否为空上下文
func (a *Assembly) Empty() bool {
	return a == nil || a.Context == ""
}

// Assembler 上下文组装器
type Assembler struct {
	repo    repository.ChapterRepository
	gateway embedding.Gateway
	limit   int
}

// NewAssembler 创建组装器
func NewAssembler(repo repository.ChapterRepository, gateway embedding.Gateway, limit int) *Assembler {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Assembler{repo: repo, gateway: gateway, limit: limit}
}

// Assemble 组装续写上下文
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (out *Assembly, err error) {
	in.SeriesID = strings.TrimSpace(in.SeriesID)
	if in.SeriesID == "" {
		return &Assembly{}, nil
	}

	ctx, span := tracer.Start(ctx, "retrieval.Assemble")
	defer span.End()
	span.SetAttributes(attribute.String("series.id", in.SeriesID))
	ctx = logger.WithContext(ctx, logger.SeriesIDKey, in.SeriesID)
	ctx = service.WithWorkflow(ctx, service.WorkflowContextAssemble)

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
		}
		metrics.RetrievalAssembleDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	limit := in.Limit
	if limit <= 0 {
		limit = a.limit
	}

	// 两次读取互不依赖，但都须在组装前完成
	var series, all []*entity.Chapter
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		series, err = a.repo.GetBySeries(gctx, in.SeriesID)
		return err
	})
	g.Go(func() error {
		var err error
		all, err = a.repo.GetAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, errors.New(errors.CodeSeriesNotFound, "series not found").WithDetail(in.SeriesID)
	}
	entity.SortByChapterNumber(series)

	query, err := a.gateway.Embed(ctx, QueryText(in.Instruction, series))
	if err != nil {
		return nil, err
	}

	pool := ExcludeSeries(all, in.SeriesID, series)
	metrics.RetrievalCandidates.WithLabelValues("total").Observe(float64(len(all)))
	metrics.RetrievalCandidates.WithLabelValues("pool").Observe(float64(len(pool)))

	refs, err := Rank(query, pool, limit)
	if err != nil {
		return nil, err
	}

	logger.Debug(ctx, "context assembled",
		"series_chapters", len(series),
		"candidates", len(pool),
		"references", len(refs),
	)

	return &Assembly{
		SeriesID:       in.SeriesID,
		SeriesChapters: series,
		References:     refs,
		Candidates:     len(pool),
		Context:        Render(series, refs, in.Instruction),
	}, nil
}

// QueryText 查询文本：指令 + 换行 + 本系列全文（章节间空行分隔）
func QueryText(instruction string, series []*entity.Chapter) string {
	contents := make([]string, 0, len(series))
	for _, c := range series {
		contents = append(contents, c.Content)
	}
	return instruction + "\n" + strings.Join(contents, "\n\n")
}

// ExcludeSeries 从全集中剔除本系列的全部章节
// 按章节对象判定：候选的 ID 或 SeriesID 命中本系列任一章节的 ID/SeriesID 即排除，兼容旧数据的不一致标记
func ExcludeSeries(all []*entity.Chapter, seriesID string, series []*entity.Chapter) []*entity.Chapter {
	excluded := make(map[string]struct{}, 2*len(series)+1)
	excluded[seriesID] = struct{}{}
	for _, c := range series {
		excluded[c.ID] = struct{}{}
		if c.SeriesID != "" {
			excluded[c.SeriesID] = struct{}{}
		}
	}

	pool := make([]*entity.Chapter, 0, len(all))
	for _, c := range all {
		if _, ok := excluded[c.ID]; ok {
			continue
		}
		if _, ok := excluded[c.SeriesID]; ok {
			continue
		}
		pool = append(pool, c)
	}
	return pool
}
