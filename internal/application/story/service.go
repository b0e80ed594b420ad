package story

import (
	"context"
	"strconv"
	"strings"
	"time"

	"novel-series-rag/internal/application/retrieval"
	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/logger"
	"novel-series-rag/pkg/metrics"
)

// DefaultLength 默认目标字数
const DefaultLength = 1000

// GenerateInput 生成请求
type GenerateInput struct {
	Prompt string
	// Style 类型代码（如 wuxia）或任意自由文本
	Style string
	// Length 目标字数，允许字符串形式
	Length string
	Tone   string
	// ContinueFrom 续写指令；与 SeriesID 同时给出时组装上下文
	ContinueFrom string
	SeriesID     string
	Provider     string
}

// GenerateOutput 生成结果
type GenerateOutput struct {
	Content  string
	Assembly *retrieval.Assembly
}

// ContextAssembler 上下文组装（port）
type ContextAssembler interface {
	Assemble(ctx context.Context, in retrieval.AssembleInput) (*retrieval.Assembly, error)
}

// TextGenerator 文本生成（port）
type TextGenerator interface {
	Generate(ctx context.Context, in *GenerateRequest) (string, error)
}

// Service 故事生成服务
type Service struct {
	assembler ContextAssembler
	generator TextGenerator
}

func NewService(assembler ContextAssembler, generator TextGenerator) *Service {
	return &Service{assembler: assembler, generator: generator}
}

// Generate 续写时先组装上下文再调用生成；任一步失败整体失败
func (s *Service) Generate(ctx context.Context, in GenerateInput) (out *GenerateOutput, err error) {
	if strings.TrimSpace(in.Prompt) == "" && strings.TrimSpace(in.ContinueFrom) == "" {
		return nil, errors.New(errors.CodeInvalidParam, "prompt is required")
	}
	length, err := parseLength(in.Length)
	if err != nil {
		return nil, err
	}

	continuing := strings.TrimSpace(in.ContinueFrom) != "" && strings.TrimSpace(in.SeriesID) != ""
	mode := "new"
	if continuing {
		mode = "continue"
		ctx = logger.WithContext(ctx, logger.SeriesIDKey, in.SeriesID)
	}

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.StoryGenerationTotal.WithLabelValues(mode, status).Inc()
		metrics.StoryGenerationDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	out = &GenerateOutput{}
	if continuing {
		out.Assembly, err = s.assembler.Assemble(ctx, retrieval.AssembleInput{
			SeriesID:    in.SeriesID,
			Instruction: in.ContinueFrom,
		})
		if err != nil {
			logger.Error(ctx, "context assembly failed", err)
			return nil, err
		}
	}

	req := &GenerateRequest{
		Prompt:   in.Prompt,
		Style:    styleLabel(in.Style),
		Length:   length,
		Tone:     in.Tone,
		Continue: continuing,
		Provider: in.Provider,
	}
	if out.Assembly != nil {
		req.AssembledContext = out.Assembly.Context
	}

	out.Content, err = s.generator.Generate(ctx, req)
	if err != nil {
		logger.Error(ctx, "story generation failed", err, "mode", mode)
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodeGenerationFailed, "story generation failed")
	}

	logger.Info(ctx, "story generated", "mode", mode, "length", len([]rune(out.Content)))
	return out, nil
}

// styleLabel 已知类型代码转中文名，其余原样使用
func styleLabel(style string) string {
	st := entity.StoryType(strings.TrimSpace(style))
	if st.Known() {
		return st.Label()
	}
	return string(st)
}

func parseLength(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLength, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New(errors.CodeInvalidParam, "length must be a positive integer").WithDetail(s)
	}
	return n, nil
}
