// Package embedding 提供文本向量化网关
package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"novel-series-rag/internal/config"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/logger"
	"novel-series-rag/pkg/metrics"
)

var tracer = otel.Tracer("embedding")

// Gateway 文本向量化
// 任何失败（超时、空结果、维度不符）都返回 errors.CodeEmbeddingFailed，不重试
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEinoEmbedder 创建基于 Eino 的 Embedder（OpenAI 兼容协议）
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}

	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return embedder, nil
}

// EinoGateway 基于 eino Embedder 的网关实现
type EinoGateway struct {
	embedder  embedding.Embedder
	timeout   time.Duration
	dimension int
}

// NewEinoGateway 创建网关
func NewEinoGateway(embedder embedding.Embedder, cfg *config.EmbeddingConfig) *EinoGateway {
	return &EinoGateway{
		embedder:  embedder,
		timeout:   cfg.Timeout,
		dimension: cfg.Dimension,
	}
}

// Embed 生成单条文本的向量
func (g *EinoGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "embedding.Embed")
	defer span.End()
	span.SetAttributes(attribute.Int("embedding.text_len", len(text)))

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	vec, err := g.embed(ctx, text)
	metrics.EmbeddingCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		logger.Error(ctx, "embedding failed", err, "text_len", len(text))
		return nil, errors.EmbeddingUnavailable(err)
	}

	metrics.EmbeddingCallTotal.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("embedding.dimension", len(vec)))
	return vec, nil
}

func (g *EinoGateway) embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	if g.dimension > 0 && len(vectors[0]) != g.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vectors[0]), g.dimension)
	}

	out := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("embedding contains non-finite value at %d", i)
		}
		out[i] = float32(v)
	}
	return out, nil
}
