// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/internal/domain/repository"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/metrics"
)

const pgUniqueViolation = "23505"

// chapterRow chapters 表映射
type chapterRow struct {
	ID            string           `gorm:"primaryKey;type:varchar(64)"`
	SeriesID      string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_chapters_series_number,priority:1"`
	ChapterNumber int              `gorm:"not null;uniqueIndex:idx_chapters_series_number,priority:2"`
	Title         string           `gorm:"type:varchar(255)"`
	Type          string           `gorm:"type:varchar(32)"`
	Content       string           `gorm:"type:text"`
	Embedding     *pgvector.Vector `gorm:"type:vector"`
	PreviousID    *string          `gorm:"type:varchar(64)"`
	Date          time.Time        `gorm:"not null;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (chapterRow) TableName() string { return "chapters" }

// seriesSequenceRow 系列章节号计数器，Append 时行锁串行化同系列写入
type seriesSequenceRow struct {
	SeriesID   string `gorm:"primaryKey;type:varchar(64)"`
	LastNumber int    `gorm:"not null"`
}

func (seriesSequenceRow) TableName() string { return "series_sequences" }

func toRow(c *entity.Chapter) *chapterRow {
	row := &chapterRow{
		ID:            c.ID,
		SeriesID:      c.SeriesID,
		ChapterNumber: c.ChapterNumber,
		Title:         c.Title,
		Type:          string(c.Type),
		Content:       c.Content,
		Date:          c.Date,
	}
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		row.Embedding = &v
	}
	if c.PreviousID != "" {
		prev := c.PreviousID
		row.PreviousID = &prev
	}
	return row
}

func (r *chapterRow) toEntity() *entity.Chapter {
	c := &entity.Chapter{
		ID:            r.ID,
		SeriesID:      r.SeriesID,
		ChapterNumber: r.ChapterNumber,
		Title:         r.Title,
		Type:          entity.StoryType(r.Type),
		Content:       r.Content,
		Date:          r.Date,
	}
	if r.Embedding != nil {
		c.Embedding = r.Embedding.Slice()
	}
	if r.PreviousID != nil {
		c.PreviousID = *r.PreviousID
	}
	return c
}

// ChapterRepository 章节仓储实现
type ChapterRepository struct {
	client *Client
	tx     *TxManager
}

var _ repository.ChapterRepository = (*ChapterRepository)(nil)

// NewChapterRepository 创建章节仓储
func NewChapterRepository(client *Client, tx *TxManager) *ChapterRepository {
	return &ChapterRepository{client: client, tx: tx}
}

// Put 按 ID 覆盖写入
func (r *ChapterRepository) Put(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Put")
	defer span.End()
	span.SetAttributes(attribute.String("chapter.id", chapter.ID))

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(toRow(chapter)).Error
	observe("put", err)
	if err != nil {
		span.RecordError(err)
		return wrapStorageError(err, "failed to put chapter")
	}
	return nil
}

// Append 在系列末尾追加章节
func (r *ChapterRepository) Append(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Append")
	defer span.End()

	if chapter.SeriesID == "" {
		chapter.SeriesID = chapter.ID
	}
	span.SetAttributes(
		attribute.String("chapter.id", chapter.ID),
		attribute.String("series.id", chapter.SeriesID),
	)

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := getDB(ctx, r.client.db)

		// 计数器行锁在事务提交前一直持有
		var next int
		if err := db.Raw(`
INSERT INTO series_sequences (series_id, last_number)
VALUES (?, (SELECT COALESCE(MAX(chapter_number), 0) + 1 FROM chapters WHERE series_id = ?))
ON CONFLICT (series_id) DO UPDATE SET last_number = GREATEST(
	series_sequences.last_number,
	(SELECT COALESCE(MAX(chapter_number), 0) FROM chapters WHERE series_id = EXCLUDED.series_id)
) + 1
RETURNING last_number`, chapter.SeriesID, chapter.SeriesID).Scan(&next).Error; err != nil {
			return err
		}

		var prev chapterRow
		err := db.Select("id").
			Where("series_id = ? AND chapter_number < ?", chapter.SeriesID, next).
			Order("chapter_number DESC").
			Limit(1).
			Take(&prev).Error
		switch {
		case err == nil:
			chapter.PreviousID = prev.ID
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			chapter.PreviousID = ""
		default:
			return err
		}

		chapter.ChapterNumber = next
		if chapter.Title == "" {
			chapter.Title = entity.DefaultTitle(next)
		}
		return db.Create(toRow(chapter)).Error
	})
	observe("append", err)
	if err != nil {
		span.RecordError(err)
		return wrapStorageError(err, "failed to append chapter")
	}
	return nil
}

// GetByID 根据 ID 获取章节
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var row chapterRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		observe("get", err)
		span.RecordError(err)
		return nil, wrapStorageError(err, "failed to get chapter")
	}
	observe("get", nil)
	return row.toEntity(), nil
}

// GetAll 获取全部章节
func (r *ChapterRepository) GetAll(ctx context.Context) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetAll")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var rows []*chapterRow
	err := db.Find(&rows).Error
	observe("get_all", err)
	if err != nil {
		span.RecordError(err)
		return nil, wrapStorageError(err, "failed to list chapters")
	}
	return toEntities(rows), nil
}

// GetBySeries 获取系列章节
func (r *ChapterRepository) GetBySeries(ctx context.Context, seriesID string) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetBySeries")
	defer span.End()
	span.SetAttributes(attribute.String("series.id", seriesID))

	db := getDB(ctx, r.client.db)
	var rows []*chapterRow
	err := db.Where("series_id = ?", seriesID).Order("chapter_number ASC").Find(&rows).Error
	observe("get_by_series", err)
	if err != nil {
		span.RecordError(err)
		return nil, wrapStorageError(err, "failed to list series chapters")
	}
	return toEntities(rows), nil
}

// HealthCheck 健康检查
func (r *ChapterRepository) HealthCheck(ctx context.Context) error {
	if err := r.client.HealthCheck(ctx); err != nil {
		return errors.StorageError(err, "postgres unavailable")
	}
	return nil
}

func toEntities(rows []*chapterRow) []*entity.Chapter {
	chapters := make([]*entity.Chapter, 0, len(rows))
	for _, row := range rows {
		chapters = append(chapters, row.toEntity())
	}
	return chapters
}

// wrapStorageError 唯一约束冲突附带明确的 detail
func wrapStorageError(err error, msg string) error {
	appErr := errors.StorageError(err, msg)
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		appErr.WithDetail("duplicate chapter number in series: " + pgErr.ConstraintName)
	}
	return appErr
}

func observe(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperationTotal.WithLabelValues("postgres", op, status).Inc()
}
