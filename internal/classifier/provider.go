package classifier

import (
	"fmt"

	"comment-moderation/internal/config"

	"go.uber.org/zap"
)

// Provider types accepted in classifier.provider.
const (
	ProviderWalled     = "walled"
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderStub       = "stub"
)

// NewProvider builds the provider named in cfg.
func NewProvider(cfg config.ClassifierConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case ProviderWalled:
		return NewWalledClient(WalledConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		}, logger)
	case ProviderGroq:
		return NewChatClient(GroqConfig(cfg.APIKey, cfg.ModelName, cfg.BaseURL), logger)
	case ProviderOpenRouter:
		return NewChatClient(OpenRouterConfig(cfg.APIKey, cfg.ModelName, cfg.BaseURL), logger)
	case ProviderGemini:
		return NewGeminiClient(cfg.APIKey, cfg.ModelName, logger)
	case ProviderStub:
		logger.Warn("Using stub classifier, comments are not screened by a real service")
		return NewStubClient(cfg.UnsafeTerms), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

// NewGatewayFromConfig builds the provider and wraps it in a Gateway.
func NewGatewayFromConfig(cfg config.ClassifierConfig, logger *zap.Logger) (*Gateway, error) {
	provider, err := NewProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s classifier: %w", cfg.Provider, err)
	}
	return NewGateway(provider, cfg.Timeout, logger), nil
}
