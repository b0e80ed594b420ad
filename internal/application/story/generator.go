// Package story 实现故事生成：新故事与基于上下文的续写
package story

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"novel-series-rag/pkg/metrics"

	"novel-series-rag/internal/domain/service"
	workflowprompt "novel-series-rag/internal/workflow/prompt"
)

const (
	defaultTemperature = 0.8

	modeContinue = "请基于上下文继续写作故事。"
	modeNew      = "请创作一个新故事。"
)

var defaultPromptRegistry = workflowprompt.NewRegistry()

// GenerateRequest 生成协作方的输入
type GenerateRequest struct {
	// AssembledContext 续写时由上下文组装器产出，新故事为空
	AssembledContext string
	Prompt           string
	Style            string
	Length           int
	Tone             string
	Continue         bool

	Provider string
}

// Generator 调用 ChatModel 生成正文，不做重试
type Generator struct {
	factory ChatModelFactory
}

func NewGenerator(factory ChatModelFactory) *Generator {
	return &Generator{factory: factory}
}

func (g *Generator) Generate(ctx context.Context, in *GenerateRequest) (string, error) {
	if g == nil || g.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}

	chatModel, provider, err := g.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return "", err
	}
	ctx = service.WithWorkflowProvider(ctx, service.WorkflowStoryGenerate, provider)

	msgs, err := formatStoryMessages(ctx, in)
	if err != nil {
		return "", err
	}

	start := time.Now()
	outMsg, err := chatModel.Generate(ctx, msgs, buildModelOptions(in)...)
	metrics.LLMCallDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(provider, "error").Inc()
		return "", err
	}
	metrics.LLMCallTotal.WithLabelValues(provider, "success").Inc()

	if outMsg == nil {
		return "", fmt.Errorf("empty llm response")
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		metrics.LLMTokensUsed.WithLabelValues(provider, "prompt").Add(float64(outMsg.ResponseMeta.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(provider, "completion").Add(float64(outMsg.ResponseMeta.Usage.CompletionTokens))
	}

	content := strings.TrimSpace(outMsg.Content)
	if content == "" {
		return "", fmt.Errorf("empty story content")
	}
	return content, nil
}

func formatStoryMessages(ctx context.Context, in *GenerateRequest) ([]*schema.Message, error) {
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptStoryV1)
	if err != nil {
		return nil, err
	}

	mode := modeNew
	if in.Continue {
		mode = modeContinue
	}
	tone := ""
	if t := strings.TrimSpace(in.Tone); t != "" {
		tone = "整体基调：" + t + "。"
	}
	contextBlock := ""
	if in.AssembledContext != "" {
		contextBlock = in.AssembledContext + "\n\n"
	}

	vars := map[string]any{
		"style":            strings.TrimSpace(in.Style),
		"mode_instruction": mode,
		"tone_instruction": tone,
		"context_block":    contextBlock,
		"prompt":           strings.TrimSpace(in.Prompt),
	}
	return tpl.Format(ctx, vars)
}

func buildModelOptions(in *GenerateRequest) []model.Option {
	opts := []model.Option{model.WithTemperature(defaultTemperature)}
	if in.Length > 0 {
		opts = append(opts, model.WithMaxTokens(in.Length*2))
	}
	return opts
}
