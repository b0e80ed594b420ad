// Package badger 提供基于 BadgerDB 的嵌入式章节存储
package badger

import (
	"context"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"novel-series-rag/internal/config"
	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/internal/domain/repository"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/logger"
	"novel-series-rag/pkg/metrics"
)

var tracer = otel.Tracer("badger")

// 键前缀
const (
	prefixChapter     byte = 'c' // c 0x00 <id> -> msgpack(chapter)
	prefixSeriesIndex byte = 's' // s <series> 0x00 <id> -> chapter_number
	prefixSequence    byte = 'q' // q <series> -> msgpack(sequence)
)

const defaultMaxRetries = 8

// sequence 系列尾部游标，Append 时读写以触发 badger 冲突检测
type sequence struct {
	Last   int    `msgpack:"last"`
	LastID string `msgpack:"last_id"`
}

// Store BadgerDB 章节存储
type Store struct {
	db         *badger.DB
	maxRetries int

	// 同进程内按系列串行化 Append，跨事务冲突仍由 ErrConflict 重试兜底
	seriesLocks sync.Map
}

var _ repository.ChapterRepository = (*Store)(nil)

// Open 按配置打开存储
func Open(cfg *config.BadgerConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return New(db, cfg.MaxRetries), nil
}

// New 基于已打开的 DB 创建存储
func New(db *badger.DB, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Store{db: db, maxRetries: maxRetries}
}

// Close 关闭存储
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck 健康检查
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.StorageError(nil, "badger is closed")
	}
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte{prefixSequence})
		if err != nil && !stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.StorageError(err, "badger health check failed")
		}
		return nil
	})
}

// Put 按 ID 覆盖写入
func (s *Store) Put(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "badger.Store.Put")
	defer span.End()
	span.SetAttributes(attribute.String("chapter.id", chapter.ID))

	if chapter.ID == "" {
		return errors.StorageError(nil, "chapter id is required")
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		prev, err := getChapter(txn, chapter.ID)
		if err != nil {
			return err
		}
		// 系列变更时移除旧索引
		if prev != nil && prev.SeriesID != chapter.SeriesID {
			if err := txn.Delete(seriesIndexKey(prev.SeriesID, prev.ID)); err != nil {
				return err
			}
		}
		return putChapter(txn, chapter)
	})
	s.observe("put", err)
	if err != nil {
		span.RecordError(err)
		return errors.StorageError(err, "failed to put chapter")
	}
	return nil
}

// Append 在系列末尾追加章节
func (s *Store) Append(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "badger.Store.Append")
	defer span.End()

	if chapter.ID == "" {
		return errors.StorageError(nil, "chapter id is required")
	}
	if chapter.SeriesID == "" {
		chapter.SeriesID = chapter.ID
	}
	span.SetAttributes(
		attribute.String("chapter.id", chapter.ID),
		attribute.String("series.id", chapter.SeriesID),
	)

	mu := s.lockFor(chapter.SeriesID)
	mu.Lock()
	defer mu.Unlock()

	err := s.update(ctx, func(txn *badger.Txn) error {
		seq, err := loadSequence(txn, chapter.SeriesID)
		if err != nil {
			return err
		}
		chapter.ChapterNumber = seq.Last + 1
		chapter.PreviousID = seq.LastID
		if chapter.Title == "" {
			chapter.Title = entity.DefaultTitle(chapter.ChapterNumber)
		}
		if err := putChapter(txn, chapter); err != nil {
			return err
		}
		return saveSequence(txn, chapter.SeriesID, sequence{Last: chapter.ChapterNumber, LastID: chapter.ID})
	})
	s.observe("append", err)
	if err != nil {
		span.RecordError(err)
		return errors.StorageError(err, "failed to append chapter")
	}
	return nil
}

// GetByID 根据 ID 获取章节，不存在返回 nil, nil
func (s *Store) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	_, span := tracer.Start(ctx, "badger.Store.GetByID")
	defer span.End()

	var chapter *entity.Chapter
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		chapter, err = getChapter(txn, id)
		return err
	})
	s.observe("get", err)
	if err != nil {
		span.RecordError(err)
		return nil, errors.StorageError(err, "failed to get chapter")
	}
	return chapter, nil
}

// GetAll 获取全部章节
func (s *Store) GetAll(ctx context.Context) ([]*entity.Chapter, error) {
	_, span := tracer.Start(ctx, "badger.Store.GetAll")
	defer span.End()

	var chapters []*entity.Chapter
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixChapter, 0x00}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c entity.Chapter
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &c)
			}); err != nil {
				return err
			}
			chapters = append(chapters, &c)
		}
		return nil
	})
	s.observe("get_all", err)
	if err != nil {
		span.RecordError(err)
		return nil, errors.StorageError(err, "failed to list chapters")
	}
	span.SetAttributes(attribute.Int("chapter.count", len(chapters)))
	return chapters, nil
}

// GetBySeries 获取系列下全部章节
func (s *Store) GetBySeries(ctx context.Context, seriesID string) ([]*entity.Chapter, error) {
	_, span := tracer.Start(ctx, "badger.Store.GetBySeries")
	defer span.End()
	span.SetAttributes(attribute.String("series.id", seriesID))

	var chapters []*entity.Chapter
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := seriesIndexPrefix(seriesID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids = append(ids, string(key[len(prefix):]))
		}
		for _, id := range ids {
			c, err := getChapter(txn, id)
			if err != nil {
				return err
			}
			if c != nil {
				chapters = append(chapters, c)
			}
		}
		return nil
	})
	s.observe("get_by_series", err)
	if err != nil {
		span.RecordError(err)
		return nil, errors.StorageError(err, "failed to list series chapters")
	}
	return chapters, nil
}

// update 执行读写事务，遇到 ErrConflict 时有限次重试
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		logger.Debug(ctx, "badger transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}

func (s *Store) lockFor(seriesID string) *sync.Mutex {
	mu, _ := s.seriesLocks.LoadOrStore(seriesID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Store) observe(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperationTotal.WithLabelValues("badger", op, status).Inc()
}

func chapterKey(id string) []byte {
	key := make([]byte, 0, 2+len(id))
	key = append(key, prefixChapter, 0x00)
	return append(key, id...)
}

func seriesIndexPrefix(seriesID string) []byte {
	key := make([]byte, 0, 2+len(seriesID))
	key = append(key, prefixSeriesIndex)
	key = append(key, seriesID...)
	return append(key, 0x00)
}

func seriesIndexKey(seriesID, id string) []byte {
	return append(seriesIndexPrefix(seriesID), id...)
}

func sequenceKey(seriesID string) []byte {
	return append([]byte{prefixSequence}, seriesID...)
}

func getChapter(txn *badger.Txn, id string) (*entity.Chapter, error) {
	item, err := txn.Get(chapterKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c entity.Chapter
	if err := item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &c)
	}); err != nil {
		return nil, fmt.Errorf("decode chapter %s: %w", id, err)
	}
	return &c, nil
}

func putChapter(txn *badger.Txn, c *entity.Chapter) error {
	data, err := msgpack.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode chapter %s: %w", c.ID, err)
	}
	if err := txn.Set(chapterKey(c.ID), data); err != nil {
		return err
	}
	num := make([]byte, 8)
	binary.BigEndian.PutUint64(num, uint64(c.ChapterNumber))
	return txn.Set(seriesIndexKey(c.SeriesID, c.ID), num)
}

// loadSequence 读取系列游标；缺失时（如迁移写入的系列）扫描索引重建
func loadSequence(txn *badger.Txn, seriesID string) (sequence, error) {
	var seq sequence
	item, err := txn.Get(sequenceKey(seriesID))
	switch {
	case err == nil:
		err = item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &seq)
		})
		if err != nil {
			return seq, err
		}
	case stderrors.Is(err, badger.ErrKeyNotFound):
	default:
		return seq, err
	}

	// Put 可能在游标之后写入了更大的章节号
	prefix := seriesIndexPrefix(seriesID)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var n int
		if err := item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt series index value")
			}
			n = int(binary.BigEndian.Uint64(val))
			return nil
		}); err != nil {
			return seq, err
		}
		if n > seq.Last {
			seq.Last = n
			seq.LastID = string(item.Key()[len(prefix):])
		}
	}
	return seq, nil
}

func saveSequence(txn *badger.Txn, seriesID string, seq sequence) error {
	data, err := msgpack.Marshal(seq)
	if err != nil {
		return err
	}
	return txn.Set(sequenceKey(seriesID), data)
}
