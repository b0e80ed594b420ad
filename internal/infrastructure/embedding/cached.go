package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"novel-series-rag/internal/infrastructure/persistence/redis"
	"novel-series-rag/pkg/metrics"
)

const defaultCacheTTL = 7 * 24 * time.Hour

// CachedGateway 以文本摘要为键缓存向量；缓存不可用时透传到下游网关
type CachedGateway struct {
	inner Gateway
	cache *redis.Cache
	model string
	ttl   time.Duration
}

// NewCachedGateway 创建带缓存的网关
func NewCachedGateway(inner Gateway, cache *redis.Cache, model string, ttl time.Duration) *CachedGateway {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedGateway{inner: inner, cache: cache, model: model, ttl: ttl}
}

// Embed 先查缓存，未命中再调用下游
func (g *CachedGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	hit, err := g.cache.GetOrLoadSafe(ctx, CacheKey(g.model, text), g.ttl, &vec,
		func(ctx context.Context) (interface{}, error) {
			return g.inner.Embed(ctx, text)
		})
	if err != nil {
		return nil, err
	}

	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.EmbeddingCacheTotal.WithLabelValues(result).Inc()
	return vec, nil
}

// CacheKey 构建缓存键 emb:<model>:<sha256(text)>
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}
