package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-series-rag/internal/config"
)

func TestEinoFactoryCachesModels(t *testing.T) {
	f := NewEinoFactory(&config.Config{LLM: config.LLMConfig{
		DefaultProvider: "deepseek",
		Providers: map[string]config.ProviderConfig{
			"deepseek": {APIKey: "k", BaseURL: "http://127.0.0.1:1/v1", Model: "deepseek-chat", Timeout: time.Second},
		},
	}})
	ctx := context.Background()

	m1, name, err := f.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", name)

	m2, _, err := f.Get(ctx, "deepseek")
	require.NoError(t, err)
	assert.Same(t, m1, m2)
}

func TestEinoFactoryUnknownProvider(t *testing.T) {
	f := NewEinoFactory(&config.Config{LLM: config.LLMConfig{DefaultProvider: "deepseek"}})

	_, name, err := f.Get(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, "deepseek", name)
}
