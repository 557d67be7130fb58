package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/httpclient"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	openAIBaseURL = "https://api.openai.com/v1"

	defaultGroqModel   = "llama-3.3-70b-versatile"
	defaultOpenAIModel = "gpt-4o-mini"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
	N           int           `json:"n"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatProvider talks to any OpenAI-compatible chat completions endpoint.
type ChatProvider struct {
	name       ProviderType
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

// NewGroqProvider creates a chat provider backed by Groq.
func NewGroqProvider(apiKey string) *ChatProvider {
	return &ChatProvider{
		name:       ProviderGroq,
		apiKey:     apiKey,
		model:      defaultGroqModel,
		httpClient: httpclient.InstrumentedClient,
		baseURL:    groqBaseURL,
	}
}

// NewOpenAIProvider creates a chat provider backed by OpenAI.
func NewOpenAIProvider(apiKey string) *ChatProvider {
	return &ChatProvider{
		name:       ProviderOpenAI,
		apiKey:     apiKey,
		model:      defaultOpenAIModel,
		httpClient: httpclient.InstrumentedClient,
		baseURL:    openAIBaseURL,
	}
}

func (p *ChatProvider) Name() string  { return string(p.name) }
func (p *ChatProvider) Model() string { return p.model }

// Generate sends prompt as a single user message with the same sampling as Gemini.
// top_k has no chat completions equivalent.
func (p *ChatProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: Temperature,
		TopP:        TopP,
		MaxTokens:   MaxOutputTokens,
		N:           CandidateCount,
	})
	if err != nil {
		return "", errors.NewGenerationError("failed to encode chat request", "CHAT_REQUEST_ERROR", err)
	}

	req, err := http.NewRequestWithContext(httpclient.WithProvider(ctx, p.Name()), http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewGenerationError("failed to create chat request", "CHAT_REQUEST_ERROR", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errors.NewGenerationError(fmt.Sprintf("failed to call %s API", p.name), "CHAT_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewGenerationError("failed to read chat response", "READ_RESPONSE_ERROR", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewGenerationUpstreamError(string(p.name), "CHAT", resp.StatusCode, respBody)
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", errors.NewGenerationError("failed to parse chat response", "PARSE_RESPONSE_ERROR", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.NewGenerationError(fmt.Sprintf("no response from %s", p.name), "CHAT_EMPTY_RESPONSE", nil)
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errors.NewGenerationError(fmt.Sprintf("empty response from %s", p.name), "CHAT_EMPTY_RESPONSE", nil)
	}
	return text, nil
}
