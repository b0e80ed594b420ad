package dto

import (
	"time"

	"novel-series-rag/internal/application/library"
	"novel-series-rag/internal/domain/entity"
)

// SaveChapterRequest 保存章节请求
type SaveChapterRequest struct {
	// SeriesID 为空表示开启新系列
	SeriesID string `json:"series_id,omitempty"`
	Type     string `json:"type,omitempty"`
	Content  string `json:"content" binding:"required"`
	Title    string `json:"title,omitempty"`
}

// ToInput 转换为应用层输入
func (r *SaveChapterRequest) ToInput() library.SaveInput {
	return library.SaveInput{
		SeriesID: r.SeriesID,
		Type:     entity.StoryType(r.Type),
		Content:  r.Content,
		Title:    r.Title,
	}
}

// ChapterResponse 章节响应
type ChapterResponse struct {
	ID            string    `json:"id"`
	SeriesID      string    `json:"series_id"`
	ChapterNumber int       `json:"chapter_number"`
	Title         string    `json:"title"`
	Type          string    `json:"type,omitempty"`
	TypeLabel     string    `json:"type_label,omitempty"`
	Content       string    `json:"content"`
	PreviousID    string    `json:"previous_id,omitempty"`
	Date          time.Time `json:"date"`
}

// ChapterListResponse 章节列表响应
type ChapterListResponse struct {
	Chapters []*ChapterResponse `json:"chapters"`
	Total    int                `json:"total"`
}

// ToChapterResponse 实体转响应
func ToChapterResponse(c *entity.Chapter) *ChapterResponse {
	if c == nil {
		return nil
	}
	resp := &ChapterResponse{
		ID:            c.ID,
		SeriesID:      c.SeriesID,
		ChapterNumber: c.ChapterNumber,
		Title:         c.Title,
		Type:          string(c.Type),
		Content:       c.Content,
		PreviousID:    c.PreviousID,
		Date:          c.Date,
	}
	if c.Type != "" {
		resp.TypeLabel = c.Type.Label()
	}
	return resp
}

// ToChapterListResponse 实体列表转响应
func ToChapterListResponse(chapters []*entity.Chapter) *ChapterListResponse {
	out := make([]*ChapterResponse, 0, len(chapters))
	for _, c := range chapters {
		out = append(out, ToChapterResponse(c))
	}
	return &ChapterListResponse{Chapters: out, Total: len(out)}
}
