package dto

import (
	"novel-series-rag/internal/application/retrieval"
	"novel-series-rag/internal/domain/entity"
)

// SeriesListResponse 系列列表响应
type SeriesListResponse struct {
	Series []*entity.SeriesGroup `json:"series"`
	Total  int                   `json:"total"`
}

// ContextRequest 上下文组装调试请求
type ContextRequest struct {
	Instruction string `json:"instruction" binding:"required"`
	Limit       int    `json:"limit,omitempty"`
}

// ScoredReference 带分数的参考章节
type ScoredReference struct {
	ID       string  `json:"id"`
	SeriesID string  `json:"series_id"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
	Preview  string  `json:"preview"`
}

// ContextResponse 上下文组装调试响应
type ContextResponse struct {
	SeriesID       string             `json:"series_id"`
	SeriesChapters []string           `json:"series_chapters"`
	Candidates     int                `json:"candidates"`
	References     []*ScoredReference `json:"references"`
	Context        string             `json:"context"`
}

const previewRunes = 100

// ToContextResponse 组装结果转响应
func ToContextResponse(a *retrieval.Assembly) *ContextResponse {
	resp := &ContextResponse{
		SeriesChapters: []string{},
		References:     []*ScoredReference{},
	}
	if a == nil {
		return resp
	}
	resp.SeriesID = a.SeriesID
	resp.Candidates = a.Candidates
	resp.Context = a.Context
	for _, c := range a.SeriesChapters {
		resp.SeriesChapters = append(resp.SeriesChapters, c.ID)
	}
	for _, r := range a.References {
		resp.References = append(resp.References, &ScoredReference{
			ID:       r.Chapter.ID,
			SeriesID: r.Chapter.SeriesID,
			Title:    r.Chapter.Title,
			Score:    r.Score,
			Preview:  preview(r.Chapter.Content),
		})
	}
	return resp
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > previewRunes {
		return string(r[:previewRunes])
	}
	return s
}
