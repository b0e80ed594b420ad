package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowProviderRoundTrip(t *testing.T) {
	ctx := WithWorkflowProvider(context.Background(), WorkflowStoryGenerate, " deepseek ")

	assert.Equal(t, WorkflowStoryGenerate, WorkflowFromContext(ctx))
	assert.Equal(t, "deepseek", ProviderFromContext(ctx))
}

func TestUnsetValuesAreUnknown(t *testing.T) {
	ctx := WithProvider(context.Background(), "  ")

	assert.Equal(t, "unknown", WorkflowFromContext(ctx))
	assert.Equal(t, "unknown", ProviderFromContext(ctx))
}
