package library

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/pkg/errors"
)

// 旧版备份中 date 字段可能出现的本地化格式
var legacyDateLayouts = []string{
	"2006/1/2 15:04:05",
	"1/2/2006, 3:04:05 PM",
	"2006-01-02 15:04:05",
}

// Normalize 将一条松散的备份记录规整为章节
// 缺 series_id 用 id 补（单章系列），缺或非法 chapter_number 取 1，缺 title 按章节号生成，缺 date 取 now；缺 id 拒绝
func Normalize(raw map[string]any, now time.Time) (*entity.LegacyRecord, error) {
	id := strings.TrimSpace(cast.ToString(raw[entity.LegacyFieldID]))
	if id == "" {
		return nil, errors.MigrationWarning(fmt.Errorf("record has no id"), "")
	}

	rec := &entity.LegacyRecord{Chapter: &entity.Chapter{
		ID:         id,
		SeriesID:   strings.TrimSpace(cast.ToString(raw[entity.LegacyFieldSeriesID])),
		Title:      strings.TrimSpace(cast.ToString(raw[entity.LegacyFieldTitle])),
		Type:       entity.StoryType(cast.ToString(raw[entity.LegacyFieldType])),
		Content:    cast.ToString(raw[entity.LegacyFieldContent]),
		PreviousID: strings.TrimSpace(cast.ToString(raw[entity.LegacyFieldPreviousID])),
	}}
	c := rec.Chapter

	if c.SeriesID == "" {
		c.SeriesID = id
		rec.Defaulted = append(rec.Defaulted, entity.LegacyFieldSeriesID)
	}

	n, err := cast.ToIntE(raw[entity.LegacyFieldChapterNumber])
	if err != nil || n <= 0 {
		n = 1
		rec.Defaulted = append(rec.Defaulted, entity.LegacyFieldChapterNumber)
	}
	c.ChapterNumber = n

	if c.Title == "" {
		c.Title = entity.DefaultTitle(n)
		rec.Defaulted = append(rec.Defaulted, entity.LegacyFieldTitle)
	}

	if d, ok := parseLegacyDate(raw[entity.LegacyFieldDate]); ok {
		c.Date = d
	} else {
		c.Date = now
		rec.Defaulted = append(rec.Defaulted, entity.LegacyFieldDate)
	}

	return rec, nil
}

func parseLegacyDate(v any) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range legacyDateLayouts {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return t, true
			}
		}
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}
