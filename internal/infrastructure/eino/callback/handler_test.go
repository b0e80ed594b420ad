package callback

import (
	"context"
	"errors"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"novel-series-rag/internal/domain/service"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func attr(attrs []attribute.KeyValue, key string) attribute.Value {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestChatModelSpanCarriesWorkflowAndTokens(t *testing.T) {
	rec := withRecorder(t)
	h := NewHandler()
	info := &einocb.RunInfo{Name: "story", Type: "OpenAI", Component: components.ComponentOfChatModel}

	ctx := service.WithWorkflowProvider(context.Background(), service.WorkflowStoryGenerate, "deepseek")
	ctx = h.OnStart(ctx, info, &model.CallbackInput{
		Messages: []*schema.Message{schema.UserMessage("hi")},
		Config:   &model.Config{Model: "deepseek-chat"},
	})
	h.OnEnd(ctx, info, &model.CallbackOutput{
		Message:    schema.AssistantMessage("ok", nil),
		TokenUsage: &model.TokenUsage{PromptTokens: 12, CompletionTokens: 30},
	})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.generate", spans[0].Name())
	attrs := spans[0].Attributes()
	assert.Equal(t, service.WorkflowStoryGenerate, attr(attrs, "eino.workflow").AsString())
	assert.Equal(t, "deepseek", attr(attrs, "llm.provider").AsString())
	assert.Equal(t, "deepseek-chat", attr(attrs, "llm.model").AsString())
	assert.Equal(t, int64(30), attr(attrs, "llm.completion_tokens").AsInt64())
}

func TestEmbeddingErrorMarksSpan(t *testing.T) {
	rec := withRecorder(t)
	h := NewHandler()
	info := &einocb.RunInfo{Type: "OpenAI", Component: components.ComponentOfEmbedding}

	ctx := service.WithWorkflow(context.Background(), service.WorkflowChapterSave)
	ctx = h.OnStart(ctx, info, &embedding.CallbackInput{Texts: []string{"a", "b"}})
	h.OnError(ctx, info, errors.New("quota exceeded"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "embedding.embed", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, int64(2), attr(spans[0].Attributes(), "embedding.texts").AsInt64())
}
