// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"novel-series-rag/internal/application/library"
	"novel-series-rag/internal/application/retrieval"
	"novel-series-rag/internal/config"
	"novel-series-rag/internal/domain/repository"
	"novel-series-rag/internal/infrastructure/backup"
	"novel-series-rag/internal/infrastructure/embedding"
	"novel-series-rag/internal/infrastructure/persistence/badger"
	"novel-series-rag/internal/infrastructure/persistence/postgres"
	"novel-series-rag/internal/infrastructure/persistence/redis"
	"novel-series-rag/internal/interfaces/http/handler"
	"novel-series-rag/internal/interfaces/http/middleware"
	"novel-series-rag/internal/interfaces/http/router"
	"novel-series-rag/pkg/logger"
)

// App 进程级依赖
type App struct {
	Router     *router.Router
	Reconciler *library.Reconciler
}

// ProvideChapterStore 按 storage.driver 提供章节存储
func ProvideChapterStore(ctx context.Context, cfg *config.Config) (repository.ChapterRepository, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		client, err := postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			client.Close()
		}
		if cfg.Database.Postgres.AutoMigrate {
			if err := client.Migrate(ctx); err != nil {
				cleanup()
				return nil, nil, err
			}
		}
		return postgres.NewChapterRepository(client, postgres.NewTxManager(client)), cleanup, nil

	case config.StorageDriverBadger, "":
		store, err := badger.Open(&cfg.Storage.Badger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			_ = store.Close()
		}
		return store, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
	}
}

// ProvideRedisClient 提供 Redis 客户端；未启用时返回 nil
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		// 备份放在 Redis 时不能降级
		if cfg.Backup.Source == config.BackupSourceRedis {
			return nil, nil, err
		}
		logger.Warn(ctx, "redis not available, cache and rate limit disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideEmbeddingGateway 提供向量化网关；Redis 可用时加一层缓存
func ProvideEmbeddingGateway(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (embedding.Gateway, error) {
	embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		return nil, err
	}
	gateway := embedding.NewEinoGateway(embedder, &cfg.Embedding)
	if redisClient == nil {
		return gateway, nil
	}
	return embedding.NewCachedGateway(gateway, redis.NewCache(redisClient), cfg.Embedding.Model, cfg.Embedding.CacheTTL), nil
}

// ProvideBackupSource 按 backup.source 提供旧版备份；none 时返回 nil
func ProvideBackupSource(cfg *config.Config, redisClient *redis.Client) (library.BackupSource, error) {
	switch cfg.Backup.Source {
	case config.BackupSourceFile:
		return backup.NewFileSource(cfg.Backup.Path), nil
	case config.BackupSourceRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("backup source redis requires an available redis")
		}
		return redis.NewBackupList(redisClient, cfg.Backup.RedisKey), nil
	default:
		return nil, nil
	}
}

// ProvideReconciler 提供启动对账器
func ProvideReconciler(cfg *config.Config, repo repository.ChapterRepository, gateway embedding.Gateway, source library.BackupSource, ws *library.WorkingSet) *library.Reconciler {
	return library.NewReconciler(repo, gateway, source, ws, &cfg.Reconcile)
}

// ProvideAssembler 提供续写上下文组装器
func ProvideAssembler(cfg *config.Config, repo repository.ChapterRepository, gateway embedding.Gateway) *retrieval.Assembler {
	return retrieval.NewAssembler(repo, gateway, cfg.Retrieval.Limit)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, repo repository.ChapterRepository, redisClient *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(repo, redisClient, cfg.App.Version)
}

// ProvideGenerateLimiter 提供生成接口限流中间件
func ProvideGenerateLimiter(cfg *config.Config, redisClient *redis.Client) gin.HandlerFunc {
	return middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
		Enabled:           cfg.Security.RateLimit.Enabled,
		RequestsPerMinute: cfg.Security.RateLimit.RequestsPerMinute,
	}, redisClient)
}
