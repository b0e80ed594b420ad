package entity

// LegacyRecord 旧版平铺备份中的一条记录（规整后）
type LegacyRecord struct {
	Chapter *Chapter
	// Defaulted 记录被补全的字段名，便于日志排查
	Defaulted []string
}

// 旧版备份中的字段名
const (
	LegacyFieldID            = "id"
	LegacyFieldType          = "type"
	LegacyFieldContent       = "content"
	LegacyFieldDate          = "date"
	LegacyFieldTitle         = "title"
	LegacyFieldSeriesID      = "series_id"
	LegacyFieldChapterNumber = "chapter_number"
	LegacyFieldPreviousID    = "previous_id"
)

// ToLegacyMap 转为备份格式（不含向量，与旧版一致）
func (c *Chapter) ToLegacyMap() map[string]any {
	m := map[string]any{
		LegacyFieldID:            c.ID,
		LegacyFieldType:          string(c.Type),
		LegacyFieldContent:       c.Content,
		LegacyFieldDate:          c.Date,
		LegacyFieldTitle:         c.Title,
		LegacyFieldSeriesID:      c.SeriesID,
		LegacyFieldChapterNumber: c.ChapterNumber,
	}
	if c.PreviousID != "" {
		m[LegacyFieldPreviousID] = c.PreviousID
	} else {
		m[LegacyFieldPreviousID] = nil
	}
	return m
}
