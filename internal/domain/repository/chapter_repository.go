// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"novel-series-rag/internal/domain/entity"
)

// ChapterRepository 章节仓储接口
// 所有实现的 I/O 失败都以 errors.CodeStorageError 返回，不得吞掉
type ChapterRepository interface {
	// Put 按 ID 覆盖写入（幂等），并同步维护系列索引
	Put(ctx context.Context, chapter *entity.Chapter) error

	// Append 在系列末尾追加新章节；同一系列的追加串行化
	// 由实现分配 ChapterNumber、PreviousID；SeriesID 为空时新建系列（SeriesID = ID）
	Append(ctx context.Context, chapter *entity.Chapter) error

	// GetByID 根据 ID 获取章节，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Chapter, error)

	// GetAll 获取全部章节，顺序不保证
	GetAll(ctx context.Context) ([]*entity.Chapter, error)

	// GetBySeries 获取系列下全部章节，调用方负责排序
	GetBySeries(ctx context.Context, seriesID string) ([]*entity.Chapter, error)

	// HealthCheck 存储可用性检查
	HealthCheck(ctx context.Context) error
}
