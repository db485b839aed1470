package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukhba-ai/tutor/backend/internal/config"
)

func TestNewProviderSelectsBackend(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, config.AIConfig{
		Provider: config.ProviderOpenAI,
		OpenAI:   config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o"},
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = NewProvider(ctx, config.AIConfig{
		Provider: config.ProviderGemini,
		Gemini:   config.GeminiConfig{APIKey: "g-test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
}

func TestNewProviderReportsMissingCredentials(t *testing.T) {
	ctx := context.Background()

	_, err := NewProvider(ctx, config.AIConfig{Provider: config.ProviderArk})
	assert.ErrorContains(t, err, "create ark chat model")

	_, err = NewProvider(ctx, config.AIConfig{Provider: config.ProviderOpenAI})
	assert.Error(t, err)

	_, err = NewProvider(ctx, config.AIConfig{Provider: "claude"})
	assert.ErrorContains(t, err, "unknown provider")
}
