package callback

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"novel-series-rag/internal/domain/service"
	"novel-series-rag/pkg/logger"
)

type startTimeKey struct{}

// 计数类指标由调用方记录，这里只负责 span 与日志
func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			attrs := []attribute.KeyValue{
				attribute.String("llm.model", modelNameFromInput(input)),
			}
			if input != nil {
				attrs = append(attrs, attribute.Int("llm.messages", len(input.Messages)))
			}
			return startSpan(ctx, info, "llm.generate", attrs...)
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			span := trace.SpanFromContext(ctx)
			args := []any{
				"workflow", service.WorkflowFromContext(ctx),
				"provider", service.ProviderFromContext(ctx),
				"model", modelNameFromOutput(output),
				"duration_ms", elapsedMs(ctx),
			}
			if output != nil && output.TokenUsage != nil {
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", output.TokenUsage.PromptTokens),
					attribute.Int("llm.completion_tokens", output.TokenUsage.CompletionTokens),
				)
				args = append(args,
					"prompt_tokens", output.TokenUsage.PromptTokens,
					"completion_tokens", output.TokenUsage.CompletionTokens,
				)
			}
			logger.Debug(ctx, "llm call finished", args...)
			span.End()
			return ctx
		},

		OnError: endWithError,
	}
}

func newEmbeddingCallbackHandler() *cbtemplate.EmbeddingCallbackHandler {
	return &cbtemplate.EmbeddingCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *embedding.CallbackInput) context.Context {
			texts := 0
			modelName := ""
			if input != nil {
				texts = len(input.Texts)
				if input.Config != nil {
					modelName = input.Config.Model
				}
			}
			return startSpan(ctx, info, "embedding.embed",
				attribute.String("embedding.model", modelName),
				attribute.Int("embedding.texts", texts),
			)
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *embedding.CallbackOutput) context.Context {
			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				span.SetAttributes(attribute.Int("embedding.prompt_tokens", output.TokenUsage.PromptTokens))
			}
			logger.Debug(ctx, "embedding call finished",
				"workflow", service.WorkflowFromContext(ctx),
				"duration_ms", elapsedMs(ctx),
			)
			span.End()
			return ctx
		},

		OnError: endWithError,
	}
}

func startSpan(ctx context.Context, info *einocb.RunInfo, name string, attrs ...attribute.KeyValue) context.Context {
	ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

	attrs = append(attrs,
		attribute.String("eino.workflow", service.WorkflowFromContext(ctx)),
		attribute.String("llm.provider", service.ProviderFromContext(ctx)),
	)
	if info != nil {
		attrs = append(attrs,
			attribute.String("eino.node_name", info.Name),
			attribute.String("eino.type", info.Type),
		)
	}

	ctx, _ = otel.Tracer("eino").Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx
}

func endWithError(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
	component := ""
	if info != nil {
		component = string(info.Component)
	}
	logger.Warn(ctx, "eino component failed",
		"workflow", service.WorkflowFromContext(ctx),
		"component", component,
		"duration_ms", elapsedMs(ctx),
		"error", err.Error(),
	)

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	return ctx
}

func elapsedMs(ctx context.Context) int64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Milliseconds()
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
