package library

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"novel-series-rag/internal/config"
	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/internal/domain/repository"
	"novel-series-rag/internal/domain/service"
	"novel-series-rag/internal/infrastructure/embedding"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/logger"
	"novel-series-rag/pkg/metrics"
)

// BackupSource 旧版平铺备份
type BackupSource interface {
	// Load 读取原始记录；exists 为 false 表示没有备份
	Load(ctx context.Context) (records []map[string]any, exists bool, err error)
	// Save 以备份格式覆盖写入
	Save(ctx context.Context, chapters []*entity.Chapter) error
}

// MigrationReport 迁移结果统计
type MigrationReport struct {
	Total    int
	Migrated int
	Skipped  int
	Failed   int
}

// Migration 后台迁移句柄
type Migration struct {
	done   chan struct{}
	report MigrationReport
}

func newMigration() *Migration {
	return &Migration{done: make(chan struct{})}
}

// Done 迁移结束时关闭
func (m *Migration) Done() <-chan struct{} {
	return m.done
}

// Wait 阻塞至迁移结束并返回统计
func (m *Migration) Wait() MigrationReport {
	<-m.done
	return m.report
}

// Reconciler 启动时对账旧版备份与章节存储
type Reconciler struct {
	repo    repository.ChapterRepository
	gateway embedding.Gateway
	backup  BackupSource
	ws      *WorkingSet
	policy  string
	now     func() time.Time

	migration atomic.Pointer[Migration]
	mirrorMu  sync.Mutex
}

// NewReconciler 创建对账器；backup 为 nil 时只从存储加载
func NewReconciler(repo repository.ChapterRepository, gateway embedding.Gateway, backup BackupSource, ws *WorkingSet, cfg *config.ReconcileConfig) *Reconciler {
	policy := cfg.ConflictPolicy
	if policy == "" {
		policy = config.ConflictBackupWins
	}
	return &Reconciler{
		repo:    repo,
		gateway: gateway,
		backup:  backup,
		ws:      ws,
		policy:  policy,
		now:     time.Now,
	}
}

// Start 填充工作集；存在备份时以备份为准并在后台迁移到存储
func (r *Reconciler) Start(ctx context.Context) (*Migration, error) {
	m := newMigration()
	r.migration.Store(m)

	records, exists := r.loadBackup(ctx)
	if exists && len(records) > 0 {
		normalized := r.normalizeAll(ctx, records, &m.report)
		chapters := make([]*entity.Chapter, 0, len(normalized))
		for _, rec := range normalized {
			chapters = append(chapters, rec.Chapter)
		}
		r.ws.Seed(chapters)
		logger.Info(ctx, "working set seeded from backup", "records", len(records), "chapters", len(chapters))

		// 迁移不随请求上下文取消
		go r.migrate(context.WithoutCancel(ctx), normalized, m)
		return m, nil
	}

	chapters, err := r.repo.GetAll(ctx)
	if err != nil {
		close(m.done)
		return nil, err
	}
	sortNewestFirst(chapters)
	r.ws.Seed(chapters)
	logger.Info(ctx, "working set seeded from store", "chapters", len(chapters))

	close(m.done)
	return m, nil
}

// AwaitMigration 等待后台迁移结束；未启动迁移时立即返回
func (r *Reconciler) AwaitMigration(ctx context.Context) error {
	m := r.migration.Load()
	if m == nil {
		return nil
	}
	select {
	case <-m.Done():
		return nil
	default:
	}

	logger.Info(ctx, "waiting for backup migration")
	select {
	case <-m.Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CodeServiceUnavailable, "backup migration in progress")
	}
}

// Mirror 将工作集写回备份，失败只记录日志
func (r *Reconciler) Mirror(ctx context.Context) {
	if r.backup == nil {
		return
	}
	// 快照与写入同一临界区，旧快照不会覆盖新快照
	r.mirrorMu.Lock()
	defer r.mirrorMu.Unlock()
	if err := r.backup.Save(ctx, r.ws.Snapshot()); err != nil {
		logger.Warn(ctx, "failed to mirror backup", "error", err.Error())
	}
}

func (r *Reconciler) loadBackup(ctx context.Context) ([]map[string]any, bool) {
	if r.backup == nil {
		return nil, false
	}
	records, exists, err := r.backup.Load(ctx)
	if err != nil {
		logger.Warn(ctx, "backup unreadable, falling back to store", "error", err.Error())
		return nil, false
	}
	return records, exists
}

// normalizeAll 规整全部记录；同一 id 多次出现时保留第一条（最新）
func (r *Reconciler) normalizeAll(ctx context.Context, records []map[string]any, report *MigrationReport) []*entity.LegacyRecord {
	now := r.now()
	seen := make(map[string]struct{}, len(records))
	out := make([]*entity.LegacyRecord, 0, len(records))

	for i, raw := range records {
		rec, err := Normalize(raw, now)
		if err != nil {
			report.Total++
			report.Failed++
			metrics.MigrationRecordsTotal.WithLabelValues("rejected").Inc()
			logger.Warn(ctx, "backup record rejected", "index", i, "error", err.Error())
			continue
		}
		if _, dup := seen[rec.Chapter.ID]; dup {
			logger.Debug(ctx, "duplicate backup record ignored", "chapter_id", rec.Chapter.ID)
			continue
		}
		seen[rec.Chapter.ID] = struct{}{}
		if len(rec.Defaulted) > 0 {
			logger.Debug(ctx, "backup record normalized", "chapter_id", rec.Chapter.ID, "defaulted", rec.Defaulted)
		}
		out = append(out, rec)
	}
	return out
}

// migrate 逐条串行写入，避免交错写破坏系列索引
func (r *Reconciler) migrate(ctx context.Context, records []*entity.LegacyRecord, m *Migration) {
	defer close(m.done)
	ctx = service.WithWorkflow(ctx, service.WorkflowBackupMigrate)

	for _, rec := range records {
		c := rec.Chapter
		m.report.Total++
		migrated, err := r.migrateOne(ctx, c.Clone(), rec.Defaulted)
		switch {
		case err != nil:
			m.report.Failed++
			metrics.MigrationRecordsTotal.WithLabelValues("failed").Inc()
			logger.Warn(ctx, "backup record migration failed",
				"chapter_id", c.ID,
				"error", errors.MigrationWarning(err, c.ID).Error(),
			)
		case migrated:
			m.report.Migrated++
			metrics.MigrationRecordsTotal.WithLabelValues("migrated").Inc()
		default:
			m.report.Skipped++
			metrics.MigrationRecordsTotal.WithLabelValues("skipped").Inc()
		}
	}

	logger.Info(ctx, "backup migration finished",
		"total", m.report.Total,
		"migrated", m.report.Migrated,
		"skipped", m.report.Skipped,
		"failed", m.report.Failed,
	)
}

func (r *Reconciler) migrateOne(ctx context.Context, c *entity.Chapter, defaulted []string) (bool, error) {
	ctx = logger.WithContext(ctx, logger.ChapterIDKey, c.ID)

	stored, err := r.repo.GetByID(ctx, c.ID)
	if err != nil {
		return false, err
	}

	if stored != nil {
		// 备份缺 date 时沿用存储中的时间，保证重复迁移结果一致
		if slices.Contains(defaulted, entity.LegacyFieldDate) {
			c.Date = stored.Date
		}
		if stored.Content != c.Content && r.policy == config.ConflictStoreWins {
			logger.Warn(ctx, "backup conflicts with store, keeping store record")
			return false, nil
		}
		if stored.Content != c.Content {
			logger.Warn(ctx, "backup conflicts with store, backup overrides")
		}
		if stored.HasEmbedding() && stored.Content == c.Content {
			if sameRecord(stored, c) {
				return false, nil
			}
			c.Embedding = stored.Embedding
		}
	}

	if !c.HasEmbedding() {
		vec, err := r.gateway.Embed(ctx, c.Content)
		if err != nil {
			return false, err
		}
		c.Embedding = vec
	}

	if err := r.repo.Put(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

// sameRecord 比较除向量外的字段
func sameRecord(a, b *entity.Chapter) bool {
	return a.ID == b.ID &&
		a.SeriesID == b.SeriesID &&
		a.ChapterNumber == b.ChapterNumber &&
		a.Title == b.Title &&
		a.Type == b.Type &&
		a.Content == b.Content &&
		a.PreviousID == b.PreviousID &&
		a.Date.Equal(b.Date)
}
