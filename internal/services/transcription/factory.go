package transcription

import (
	"context"
	"fmt"

	"github.com/meetscribe/minutes/internal/config"
)

// NewProvider creates the configured transcription provider, wrapped in a
// FallbackProvider when fallback is enabled. store is only needed by the
// google backend and may be nil otherwise.
func NewProvider(ctx context.Context, cfg *config.Config, store ObjectStore) (Provider, error) {
	primary, err := newSingleProvider(ctx, cfg, cfg.Transcription.Provider, store)
	if err != nil {
		return nil, err
	}

	if !cfg.Transcription.FallbackEnabled || cfg.Transcription.FallbackProvider == cfg.Transcription.Provider {
		return primary, nil
	}

	secondary, err := newSingleProvider(ctx, cfg, cfg.Transcription.FallbackProvider, store)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return NewFallbackProvider(primary, secondary), nil
}

func newSingleProvider(ctx context.Context, cfg *config.Config, name string, store ObjectStore) (Provider, error) {
	switch ProviderType(name) {
	case ProviderAssemblyAI:
		return NewAssemblyAIProvider(cfg.AssemblyAIKey), nil
	case ProviderGoogle:
		if store == nil {
			return nil, fmt.Errorf("google transcription needs object storage")
		}
		return NewGoogleBatchProvider(ctx, cfg.GoogleProject, cfg.GoogleRegion, store)
	case ProviderGroq:
		return NewGroqProvider(cfg.GroqKey), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIKey), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", name)
	}
}
