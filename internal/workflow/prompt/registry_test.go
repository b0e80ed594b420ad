package prompt

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryTemplateFormats(t *testing.T) {
	r := NewRegistry()
	tpl, err := r.ChatTemplate(PromptStoryV1)
	require.NoError(t, err)

	again, err := r.ChatTemplate(PromptStoryV1)
	require.NoError(t, err)
	assert.Same(t, tpl, again)

	msgs, err := tpl.Format(context.Background(), map[string]any{
		"style":            "武侠",
		"mode_instruction": "请创作一个新故事。",
		"tone_instruction": "",
		"context_block":    "",
		"prompt":           "少年离家",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "你是一个专业的武侠小说作家。请创作一个新故事。", msgs[0].Content)
	assert.Equal(t, "少年离家", msgs[1].Content)
}

func TestUnknownPrompt(t *testing.T) {
	_, err := NewRegistry().ChatTemplate(PromptID("missing"))
	require.Error(t, err)
}
