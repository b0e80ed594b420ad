// Package library 管理章节库：会话工作集、旧版备份对账与章节保存
package library

import (
	"sort"
	"sync"

	"novel-series-rag/internal/domain/entity"
)

// WorkingSet 进程级的章节工作集（最新在前）
// 启动时由 Reconciler 填充一次，此后只在保存时追加
type WorkingSet struct {
	mu       sync.RWMutex
	chapters []*entity.Chapter
}

// NewWorkingSet 创建空工作集
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{}
}

// Seed 用给定章节替换工作集内容，保持传入顺序
func (w *WorkingSet) Seed(chapters []*entity.Chapter) {
	cp := make([]*entity.Chapter, 0, len(chapters))
	for _, c := range chapters {
		cp = append(cp, c.Clone())
	}

	w.mu.Lock()
	w.chapters = cp
	w.mu.Unlock()
}

// Add 新章节置顶
func (w *WorkingSet) Add(c *entity.Chapter) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.chapters = append([]*entity.Chapter{c.Clone()}, w.chapters...)
}

// Snapshot 返回副本
func (w *WorkingSet) Snapshot() []*entity.Chapter {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]*entity.Chapter, 0, len(w.chapters))
	for _, c := range w.chapters {
		out = append(out, c.Clone())
	}
	return out
}

// Len 章节数
func (w *WorkingSet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chapters)
}

// Series 返回系列章节，按章节号升序
func (w *WorkingSet) Series(seriesID string) []*entity.Chapter {
	w.mu.RLock()
	var out []*entity.Chapter
	for _, c := range w.chapters {
		if c.SeriesID == seriesID {
			out = append(out, c.Clone())
		}
	}
	w.mu.RUnlock()

	entity.SortByChapterNumber(out)
	return out
}

// Groups 系列列表，最近更新在前
func (w *WorkingSet) Groups() []*entity.SeriesGroup {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return entity.GroupBySeries(w.chapters)
}

// sortNewestFirst 按创建时间倒序
func sortNewestFirst(chapters []*entity.Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Date.After(chapters[j].Date)
	})
}
