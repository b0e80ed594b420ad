package story

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-series-rag/internal/application/retrieval"
	apperrors "novel-series-rag/pkg/errors"
)

type fakeChatModel struct {
	reply *schema.Message
	err   error

	got     []*schema.Message
	options *model.Options
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.got = input
	m.options = model.GetCommonOptions(&model.Options{}, opts...)
	return m.reply, m.err
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

type fakeFactory struct {
	model *fakeChatModel
	err   error
}

func (f *fakeFactory) Get(ctx context.Context, name string) (model.BaseChatModel, string, error) {
	if name == "" {
		name = "deepseek"
	}
	if f.err != nil {
		return nil, name, f.err
	}
	return f.model, name, nil
}

type fakeAssembler struct {
	out   *retrieval.Assembly
	err   error
	calls int
}

func (a *fakeAssembler) Assemble(ctx context.Context, in retrieval.AssembleInput) (*retrieval.Assembly, error) {
	a.calls++
	return a.out, a.err
}

func TestGeneratorNewStoryMessages(t *testing.T) {
	cm := &fakeChatModel{reply: schema.AssistantMessage("  从前有座山  ", nil)}
	g := NewGenerator(&fakeFactory{model: cm})

	out, err := g.Generate(context.Background(), &GenerateRequest{Prompt: "写山", Style: "武侠", Length: 3000})
	require.NoError(t, err)
	assert.Equal(t, "从前有座山", out)

	require.Len(t, cm.got, 2)
	assert.Equal(t, "你是一个专业的武侠小说作家。请创作一个新故事。", cm.got[0].Content)
	assert.Equal(t, "写山", cm.got[1].Content)
	require.NotNil(t, cm.options.Temperature)
	assert.InDelta(t, 0.8, *cm.options.Temperature, 1e-6)
	require.NotNil(t, cm.options.MaxTokens)
	assert.Equal(t, 6000, *cm.options.MaxTokens)
}

func TestGeneratorContinuationMessages(t *testing.T) {
	cm := &fakeChatModel{reply: schema.AssistantMessage("续写", nil)}
	g := NewGenerator(&fakeFactory{model: cm})

	_, err := g.Generate(context.Background(), &GenerateRequest{
		AssembledContext: "前序章节：\n第1章：a",
		Prompt:           "继续",
		Style:            "仙侠",
		Tone:             "严肃",
		Continue:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, "你是一个专业的仙侠小说作家。请基于上下文继续写作故事。整体基调：严肃。", cm.got[0].Content)
	assert.Equal(t, "前序章节：\n第1章：a\n\n继续", cm.got[1].Content)
}

func TestGeneratorKeepsAssembledContextVerbatim(t *testing.T) {
	cm := &fakeChatModel{reply: schema.AssistantMessage("续写", nil)}
	g := NewGenerator(&fakeFactory{model: cm})

	assembled := "前序章节：\n第1章：a\n\n相关参考：\n"
	_, err := g.Generate(context.Background(), &GenerateRequest{
		AssembledContext: assembled,
		Prompt:           "继续",
		Continue:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, assembled+"\n\n继续", cm.got[1].Content)
}

func TestGeneratorRejectsEmptyReply(t *testing.T) {
	g := NewGenerator(&fakeFactory{model: &fakeChatModel{reply: schema.AssistantMessage("   ", nil)}})

	_, err := g.Generate(context.Background(), &GenerateRequest{Prompt: "x"})
	require.Error(t, err)
}

func TestServiceNewStorySkipsAssembly(t *testing.T) {
	cm := &fakeChatModel{reply: schema.AssistantMessage("新故事", nil)}
	asm := &fakeAssembler{}
	svc := NewService(asm, NewGenerator(&fakeFactory{model: cm}))

	out, err := svc.Generate(context.Background(), GenerateInput{Prompt: "开始", Style: "kehuan"})
	require.NoError(t, err)
	assert.Equal(t, "新故事", out.Content)
	assert.Nil(t, out.Assembly)
	assert.Zero(t, asm.calls)
	assert.Contains(t, cm.got[0].Content, "科幻")
	assert.Equal(t, DefaultLength*2, *cm.options.MaxTokens)
}

func TestServiceContinuationUsesAssembly(t *testing.T) {
	cm := &fakeChatModel{reply: schema.AssistantMessage("第三章", nil)}
	asm := &fakeAssembler{out: &retrieval.Assembly{SeriesID: "S1", Context: "CTX"}}
	svc := NewService(asm, NewGenerator(&fakeFactory{model: cm}))

	out, err := svc.Generate(context.Background(), GenerateInput{
		Prompt: "写下去", Style: "wuxia", Length: "1000", ContinueFrom: "主角下山", SeriesID: "S1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, asm.calls)
	assert.Equal(t, "S1", out.Assembly.SeriesID)
	assert.Equal(t, "CTX\n\n写下去", cm.got[1].Content)
}

func TestServiceFailures(t *testing.T) {
	ctx := context.Background()
	cm := &fakeChatModel{reply: schema.AssistantMessage("ok", nil)}

	_, err := NewService(&fakeAssembler{}, NewGenerator(&fakeFactory{model: cm})).
		Generate(ctx, GenerateInput{Prompt: "x", Length: "abc"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))

	_, err = NewService(&fakeAssembler{}, NewGenerator(&fakeFactory{model: cm})).Generate(ctx, GenerateInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))

	embedErr := apperrors.EmbeddingUnavailable(errors.New("down"))
	_, err = NewService(&fakeAssembler{err: embedErr}, NewGenerator(&fakeFactory{model: cm})).
		Generate(ctx, GenerateInput{Prompt: "x", ContinueFrom: "y", SeriesID: "S1"})
	assert.ErrorIs(t, err, apperrors.ErrEmbeddingUnavailable)

	failing := &fakeChatModel{err: errors.New("upstream 500")}
	_, err = NewService(&fakeAssembler{}, NewGenerator(&fakeFactory{model: failing})).
		Generate(ctx, GenerateInput{Prompt: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGenerationFailed))
}
