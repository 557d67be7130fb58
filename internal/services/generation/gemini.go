package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/httpclient"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Sampling settings used for every minutes request.
const (
	Temperature     = 0.1
	TopP            = 0.8
	TopK            = 5
	CandidateCount  = 1
	MaxOutputTokens = 2048
)

// GenerationConfig mirrors the generateContent generationConfig object.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	CandidateCount  int     `json:"candidateCount"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// SafetySetting mirrors one generateContent safetySettings entry.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// DefaultGenerationConfig returns the fixed sampling configuration.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     Temperature,
		TopP:            TopP,
		TopK:            TopK,
		CandidateCount:  CandidateCount,
		MaxOutputTokens: MaxOutputTokens,
	}
}

// DefaultSafetySettings blocks only high-probability dangerous content and harassment.
func DefaultSafetySettings() []SafetySetting {
	return []SafetySetting{
		{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"},
		{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
	SafetySettings   []SafetySetting  `json:"safetySettings"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GeminiProvider calls generateContent on the Gemini API or on Vertex AI.
type GeminiProvider struct {
	name       ProviderType
	model      string
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewGeminiProvider uses the Gemini API with an API key.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{
		name:       ProviderGemini,
		model:      model,
		endpoint:   fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", model),
		apiKey:     apiKey,
		httpClient: httpclient.InstrumentedClient,
	}
}

// NewVertexProvider uses Vertex AI with application default credentials.
func NewVertexProvider(ctx context.Context, project, region, model string) (*GeminiProvider, error) {
	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	return &GeminiProvider{
		name:  ProviderVertex,
		model: model,
		endpoint: fmt.Sprintf(
			"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			region, project, region, model,
		),
		httpClient: httpclient.NewOAuthClient(ts, httpclient.DefaultTimeout),
	}, nil
}

func (p *GeminiProvider) Name() string  { return string(p.name) }
func (p *GeminiProvider) Model() string { return p.model }

// Generate sends prompt as a single user turn and returns the first candidate's text.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: DefaultGenerationConfig(),
		SafetySettings:   DefaultSafetySettings(),
	})
	if err != nil {
		return "", errors.NewGenerationError("failed to encode Gemini request", "GEMINI_REQUEST_ERROR", err)
	}

	req, err := http.NewRequestWithContext(httpclient.WithProvider(ctx, p.Name()), http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewGenerationError("failed to create Gemini request", "GEMINI_REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-goog-api-key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errors.NewGenerationError("failed to call Gemini API", "GEMINI_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewGenerationError("failed to read Gemini response", "READ_RESPONSE_ERROR", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewGenerationUpstreamError("Gemini", "GEMINI", resp.StatusCode, respBody)
	}

	var out geminiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", errors.NewGenerationError("failed to parse Gemini response", "PARSE_RESPONSE_ERROR", err)
	}

	return candidateText(out)
}

func candidateText(out geminiResponse) (string, error) {
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", errors.NewGenerationHTTPError(
			fmt.Sprintf("prompt blocked by safety filters: %s", out.PromptFeedback.BlockReason),
			"GEMINI_PROMPT_BLOCKED",
			http.StatusUnprocessableEntity,
		)
	}
	if len(out.Candidates) == 0 {
		return "", errors.NewGenerationHTTPError("Gemini returned no candidates", "GEMINI_EMPTY_RESPONSE", http.StatusUnprocessableEntity)
	}

	candidate := out.Candidates[0]
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		if candidate.FinishReason == "SAFETY" {
			return "", errors.NewGenerationHTTPError("response blocked by safety filters", "GEMINI_RESPONSE_BLOCKED", http.StatusUnprocessableEntity)
		}
		return "", errors.NewGenerationHTTPError(
			fmt.Sprintf("Gemini returned no text (finish reason %s)", candidate.FinishReason),
			"GEMINI_EMPTY_RESPONSE",
			http.StatusUnprocessableEntity,
		)
	}
	return text, nil
}
