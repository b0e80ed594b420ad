//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"novel-series-rag/internal/application/library"
	"novel-series-rag/internal/application/retrieval"
	"novel-series-rag/internal/application/story"
	"novel-series-rag/internal/config"
	"novel-series-rag/internal/infrastructure/llm"
	"novel-series-rag/internal/interfaces/http/handler"
	"novel-series-rag/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器与对账器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		DataSet,
		LibrarySet,
		StorySet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// DataSet 存储、缓存与备份
var DataSet = wire.NewSet(
	ProvideChapterStore,
	ProvideRedisClient,
	ProvideEmbeddingGateway,
	ProvideBackupSource,
)

// LibrarySet 章节库与续写上下文
var LibrarySet = wire.NewSet(
	library.NewWorkingSet,
	ProvideReconciler,
	library.NewChapterService,
	ProvideAssembler,
)

// StorySet 故事生成
var StorySet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(story.ChatModelFactory), new(*llm.EinoFactory)),
	story.NewGenerator,
	wire.Bind(new(story.TextGenerator), new(*story.Generator)),
	wire.Bind(new(story.ContextAssembler), new(*retrieval.Assembler)),
	story.NewService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	ProvideGenerateLimiter,
	handler.NewStoryHandler,
	handler.NewChapterHandler,
	handler.NewSeriesHandler,
	wire.Bind(new(handler.StoryGenerator), new(*story.Service)),
	wire.Bind(new(handler.ChapterLibrary), new(*library.ChapterService)),
	wire.Bind(new(handler.ContextAssembler), new(*retrieval.Assembler)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
