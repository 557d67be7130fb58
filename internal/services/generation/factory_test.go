package generation

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"testing"

	"github.com/meetscribe/minutes/internal/config"
	"github.com/meetscribe/minutes/internal/errors"
)

func testConfig(provider string) *config.Config {
	return &config.Config{
		GeminiAPIKey: "test-gemini-key",
		GroqKey:      "test-groq-key",
		OpenAIKey:    "test-openai-key",
		Generation:   config.GenerationConfig{Provider: provider},
	}
}

func TestFactory_Gemini(t *testing.T) {
	provider, err := NewProvider(context.Background(), testConfig("gemini"))
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	p, ok := provider.(*GeminiProvider)
	if !ok {
		t.Fatalf("Expected GeminiProvider, got %T", provider)
	}
	if p.apiKey != "test-gemini-key" {
		t.Errorf("Expected Gemini key to be wired, got %q", p.apiKey)
	}
	if p.Model() != config.DefaultGeminiModel {
		t.Errorf("Expected default model, got %q", p.Model())
	}
}

func TestFactory_Chat(t *testing.T) {
	for _, name := range []string{"groq", "openai"} {
		provider, err := NewProvider(context.Background(), testConfig(name))
		if err != nil {
			t.Fatalf("NewProvider(%s) failed: %v", name, err)
		}
		if provider.Name() != name {
			t.Errorf("Expected %s provider, got %s", name, provider.Name())
		}
	}
}

func TestFactory_Unknown(t *testing.T) {
	if _, err := NewProvider(context.Background(), testConfig("claude")); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestFactory_WithFallback(t *testing.T) {
	cfg := testConfig("gemini")
	cfg.Generation.FallbackEnabled = true
	cfg.Generation.FallbackProvider = "openai"

	provider, err := NewProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	fallbackProvider, ok := provider.(*FallbackProvider)
	if !ok {
		t.Fatalf("Expected FallbackProvider, got %T", provider)
	}
	if fallbackProvider.Name() != "gemini" || fallbackProvider.secondary.Name() != "openai" {
		t.Errorf("unexpected chain %s -> %s", fallbackProvider.Name(), fallbackProvider.secondary.Name())
	}
}

type mockProvider struct {
	name     string
	response string
	err      error
	calls    int
}

func (m *mockProvider) Name() string  { return m.name }
func (m *mockProvider) Model() string { return "mock" }
func (m *mockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	m.calls++
	return m.response, m.err
}

func TestFallbackProvider(t *testing.T) {
	tests := []struct {
		name           string
		primaryErr     error
		secondaryErr   error
		want           string
		wantErr        string
		secondaryCalls int
	}{
		{
			name: "primary succeeds",
			want: "primary",
		},
		{
			name:           "rate limit falls back",
			primaryErr:     errors.NewGenerationHTTPError("quota", "HTTP", http.StatusTooManyRequests),
			want:           "secondary",
			secondaryCalls: 1,
		},
		{
			name:           "server error falls back",
			primaryErr:     stderrors.New("API error: status 502"),
			want:           "secondary",
			secondaryCalls: 1,
		},
		{
			name:       "blocked prompt does not fall back",
			primaryErr: errors.NewGenerationHTTPError("prompt blocked", "GEMINI_PROMPT_BLOCKED", http.StatusUnprocessableEntity),
			wantErr:    "prompt blocked",
		},
		{
			name:           "both fail",
			primaryErr:     errors.NewGenerationHTTPError("down", "HTTP", http.StatusServiceUnavailable),
			secondaryErr:   stderrors.New("status 500"),
			wantErr:        "both primary and secondary providers failed",
			secondaryCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &mockProvider{name: "gemini", response: "primary", err: tt.primaryErr}
			secondary := &mockProvider{name: "groq", response: "secondary", err: tt.secondaryErr}

			result, err := NewFallbackProvider(primary, secondary).Generate(context.Background(), "prompt")

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tt.want {
				t.Errorf("Expected result %q, got %q", tt.want, result)
			}
			if secondary.calls != tt.secondaryCalls {
				t.Errorf("Expected %d secondary calls, got %d", tt.secondaryCalls, secondary.calls)
			}
		})
	}
}
