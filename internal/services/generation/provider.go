package generation

import "context"

// ProviderType represents the type of text-generation provider
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderVertex ProviderType = "vertex"
	ProviderGroq   ProviderType = "groq"
	ProviderOpenAI ProviderType = "openai"
)

// Provider turns a prompt into generated text.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}
