package entity

import (
	"sort"
	"time"
)

const seriesPreviewRunes = 100

// SeriesGroup 系列概览
type SeriesGroup struct {
	ID           string    `json:"id"`
	Type         StoryType `json:"type,omitempty"`
	Preview      string    `json:"preview"`
	ChapterCount int       `json:"chapter_count"`
	LastUpdate   time.Time `json:"last_update"`
}

// GroupBySeries 按 series_id 分组，预览取最近一章的前 100 字，结果按最近更新倒序
func GroupBySeries(chapters []*Chapter) []*SeriesGroup {
	index := make(map[string]*SeriesGroup)
	order := make([]*SeriesGroup, 0)

	for _, c := range chapters {
		if c == nil {
			continue
		}
		sid := c.SeriesID
		if sid == "" {
			sid = c.ID
		}
		g, ok := index[sid]
		if !ok {
			g = &SeriesGroup{ID: sid, Type: c.Type}
			index[sid] = g
			order = append(order, g)
		}
		g.ChapterCount++
		if g.LastUpdate.IsZero() || c.Date.After(g.LastUpdate) {
			g.LastUpdate = c.Date
			g.Preview = previewOf(c.Content)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].LastUpdate.After(order[j].LastUpdate)
	})
	return order
}

func previewOf(content string) string {
	r := []rune(content)
	if len(r) <= seriesPreviewRunes {
		return content
	}
	return string(r[:seriesPreviewRunes])
}
