package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"novel-series-rag/pkg/logger"
)

var cacheTracer = otel.Tracer("redis.cache")

// Cache 缓存服务，值以 msgpack 编码
type Cache struct {
	client *Client
	group  singleflight.Group
}

// NewCache 创建缓存服务
func NewCache(client *Client) *Cache {
	return &Cache{
		client: client,
	}
}

// GetOrLoadSafe Read-Through 缓存，singleflight 合并同键并发加载
// 返回值 hit 表示结果来自缓存；Redis 读写失败时降级为直接调用 loader
func (c *Cache) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, out interface{}, loader func(ctx context.Context) (interface{}, error)) (hit bool, err error) {
	ctx, span := cacheTracer.Start(ctx, "cache.GetOrLoadSafe",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == nil {
		if err := msgpack.Unmarshal(val, out); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return true, nil
		}
		logger.Warn(ctx, "cache value corrupt, reloading", "key", key)
	} else if err != redis.Nil {
		span.RecordError(err)
		logger.Warn(ctx, "cache read failed, falling through", "key", key, "error", err.Error())
	}

	span.SetAttributes(attribute.Bool("cache.hit", false))

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		data, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		encoded, err := msgpack.Marshal(data)
		if err != nil {
			return nil, err
		}
		if err := c.client.rdb.Set(ctx, key, encoded, ttl).Err(); err != nil {
			// 缓存写入失败不影响返回结果
			logger.Warn(ctx, "cache write failed", "key", key, "error", err.Error())
		}
		return encoded, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))

	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return false, msgpack.Unmarshal(result.([]byte), out)
}
