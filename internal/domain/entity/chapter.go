// Package entity 定义领域实体
package entity

import (
	"fmt"
	"sort"
	"time"
)

// StoryType 小说类型
type StoryType string

const (
	StoryTypeXianxia  StoryType = "xianxia"
	StoryTypeXuanhuan StoryType = "xuanhuan"
	StoryTypeDushi    StoryType = "dushi"
	StoryTypeKehuan   StoryType = "kehuan"
	StoryTypeWuxia    StoryType = "wuxia"
	StoryTypeYanqing  StoryType = "yanqing"
	StoryTypeLishi    StoryType = "lishi"
	StoryTypeXuanyi   StoryType = "xuanyi"
	StoryTypeKongbu   StoryType = "kongbu"
	StoryTypeQihuan   StoryType = "qihuan"
)

var storyTypeLabels = map[StoryType]string{
	StoryTypeXianxia:  "仙侠",
	StoryTypeXuanhuan: "玄幻",
	StoryTypeDushi:    "都市",
	StoryTypeKehuan:   "科幻",
	StoryTypeWuxia:    "武侠",
	StoryTypeYanqing:  "言情",
	StoryTypeLishi:    "历史",
	StoryTypeXuanyi:   "悬疑",
	StoryTypeKongbu:   "恐怖",
	StoryTypeQihuan:   "奇幻",
}

// Label 返回类型的中文名；未知类型原样返回
func (t StoryType) Label() string {
	if l, ok := storyTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Known 是否为预置类型
func (t StoryType) Known() bool {
	_, ok := storyTypeLabels[t]
	return ok
}

// Chapter 章节实体
// 创建后不可修改；续写总是产生新章节
type Chapter struct {
	ID            string    `json:"id" msgpack:"id"`
	SeriesID      string    `json:"series_id" msgpack:"series_id"`
	ChapterNumber int       `json:"chapter_number" msgpack:"chapter_number"`
	Title         string    `json:"title" msgpack:"title"`
	Type          StoryType `json:"type,omitempty" msgpack:"type"`
	Content       string    `json:"content" msgpack:"content"`
	Embedding     []float32 `json:"-" msgpack:"embedding"`
	PreviousID    string    `json:"previous_id,omitempty" msgpack:"previous_id"`
	Date          time.Time `json:"date" msgpack:"date"`
}

// DefaultTitle 根据章节号生成默认标题
func DefaultTitle(chapterNumber int) string {
	return fmt.Sprintf("第%d章", chapterNumber)
}

// HasEmbedding 是否已完成向量化
func (c *Chapter) HasEmbedding() bool {
	return c != nil && len(c.Embedding) > 0
}

// Clone 深拷贝（向量切片独立）
func (c *Chapter) Clone() *Chapter {
	if c == nil {
		return nil
	}
	out := *c
	if c.Embedding != nil {
		out.Embedding = append([]float32(nil), c.Embedding...)
	}
	return &out
}

// SortByChapterNumber 按章节号升序排序；章节号相同时按创建时间、ID 保证稳定
func SortByChapterNumber(chapters []*Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		a, b := chapters[i], chapters[j]
		if a.ChapterNumber != b.ChapterNumber {
			return a.ChapterNumber < b.ChapterNumber
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
}
