package generation

import (
	"context"
	"fmt"

	"github.com/meetscribe/minutes/internal/config"
)

// NewProvider creates the configured generation provider.
// It wraps the provider in a FallbackProvider when fallback is enabled.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	primary, err := newSingleProvider(ctx, cfg, cfg.Generation.Provider)
	if err != nil {
		return nil, err
	}

	if !cfg.Generation.FallbackEnabled || cfg.Generation.FallbackProvider == cfg.Generation.Provider {
		return primary, nil
	}

	secondary, err := newSingleProvider(ctx, cfg, cfg.Generation.FallbackProvider)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return NewFallbackProvider(primary, secondary), nil
}

func newSingleProvider(ctx context.Context, cfg *config.Config, name string) (Provider, error) {
	model := cfg.Generation.Model
	if model == "" {
		model = config.DefaultGeminiModel
	}

	switch ProviderType(name) {
	case ProviderGemini:
		return NewGeminiProvider(cfg.GeminiAPIKey, model), nil
	case ProviderVertex:
		return NewVertexProvider(ctx, cfg.GoogleProject, cfg.GoogleRegion, model)
	case ProviderGroq:
		return NewGroqProvider(cfg.GroqKey), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIKey), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", name)
	}
}
