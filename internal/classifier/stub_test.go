package classifier

import (
	"context"
	"testing"

	"comment-moderation/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStubGuard(t *testing.T) {
	client := NewStubClient([]string{" Spam ", ""})

	resp, err := client.Guard(context.Background(), "buy SPAM now", nil)
	require.NoError(t, err)
	assert.False(t, *resp.Findings[0].IsSafe)
	assert.Equal(t, "keyword", resp.Findings[0].Category)

	resp, err = client.Guard(context.Background(), "talk about medical stuff", []string{"medical"})
	require.NoError(t, err)
	assert.Equal(t, "compliance", resp.Findings[0].Category)

	resp, err = client.Guard(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.True(t, *resp.Findings[0].IsSafe)
}

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(config.ClassifierConfig{Provider: ProviderStub}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "stub", provider.Name())

	_, err = NewProvider(config.ClassifierConfig{Provider: ProviderWalled}, zap.NewNop())
	assert.Error(t, err, "walled needs an API key")

	_, err = NewProvider(config.ClassifierConfig{Provider: "magic"}, zap.NewNop())
	assert.Error(t, err)
}
