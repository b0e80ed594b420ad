package dto

import (
	"strings"

	"github.com/spf13/cast"

	"novel-series-rag/internal/application/story"
)

// GenerateFailedMessage 生成接口失败时对外统一文案，细节只进日志
const GenerateFailedMessage = "生成失败"

// GenerateRequest 生成请求
// 字段名沿用前端约定：continueFrom 为续写指令，storyId 为被续写的系列
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
	// Length 目标字数，前端可能传数字或字符串
	Length       any    `json:"length,omitempty"`
	Tone         string `json:"tone,omitempty"`
	ContinueFrom string `json:"continueFrom,omitempty"`
	StoryID      string `json:"storyId,omitempty"`
	Provider     string `json:"provider,omitempty"`
}

// ToInput 转换为应用层输入
func (r *GenerateRequest) ToInput() (story.GenerateInput, error) {
	length := ""
	if r.Length != nil {
		s, err := cast.ToStringE(r.Length)
		if err != nil {
			return story.GenerateInput{}, err
		}
		length = s
	}
	return story.GenerateInput{
		Prompt:       r.Prompt,
		Style:        strings.TrimSpace(r.Style),
		Length:       length,
		Tone:         r.Tone,
		ContinueFrom: r.ContinueFrom,
		SeriesID:     strings.TrimSpace(r.StoryID),
		Provider:     r.Provider,
	}, nil
}

// GenerateResponse 生成响应
type GenerateResponse struct {
	Content string `json:"content"`
}
