package retrieval

import (
	"fmt"
	"strings"

	"novel-series-rag/internal/domain/entity"
)

const (
	previousChaptersHeader = "前序章节："
	referencesHeader       = "参考相似故事："
	continueInstruction    = "请基于以上内容继续写作，保持情节连贯性："
)

// Render 按固定顺序拼接：前序章节块、参考相似故事块、续写指令与原始指令
// 参考块为空时保留标题行
func Render(series []*entity.Chapter, refs []Scored, instruction string) string {
	prev := make([]string, 0, len(series))
	// 按排序后的位置编号，旧数据的章节号可能重复
	for i, c := range series {
		prev = append(prev, fmt.Sprintf("第%d章：%s", i+1, c.Content))
	}

	similar := make([]string, 0, len(refs))
	for _, r := range refs {
		similar = append(similar, r.Chapter.Content)
	}

	var b strings.Builder
	b.WriteString(previousChaptersHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(prev, "\n\n"))
	b.WriteString("\n\n")
	b.WriteString(referencesHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(similar, "\n\n"))
	b.WriteString("\n\n")
	b.WriteString(continueInstruction)
	b.WriteString("\n")
	b.WriteString(instruction)
	return b.String()
}
