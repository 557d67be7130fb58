package minutes

import (
	"context"
	"fmt"

	"github.com/meetscribe/minutes/internal/config"
	"github.com/meetscribe/minutes/internal/services/generation"
	"github.com/meetscribe/minutes/internal/services/prompt"
	"github.com/meetscribe/minutes/internal/services/transcription"
)

// New builds the pipeline from configuration. store is required by the
// google transcription backend; transcripts may be nil.
func New(ctx context.Context, cfg *config.Config, store transcription.ObjectStore, transcripts TranscriptCache) (*Service, error) {
	transcriber, err := transcription.NewProvider(ctx, cfg, store)
	if err != nil {
		return nil, fmt.Errorf("transcription provider: %w", err)
	}

	generator, err := generation.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("generation provider: %w", err)
	}

	style, err := prompt.ParseStyle(cfg.Generation.Style)
	if err != nil {
		return nil, err
	}

	return NewService(transcriber, generator, transcripts, style, cfg.Upload.MaxBytes), nil
}
