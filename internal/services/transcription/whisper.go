package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/httpclient"
)

// WhisperProvider calls an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperProvider struct {
	name       ProviderType
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

// NewGroqProvider creates a Whisper provider backed by Groq
func NewGroqProvider(apiKey string) *WhisperProvider {
	return &WhisperProvider{
		name:       ProviderGroq,
		apiKey:     apiKey,
		model:      "whisper-large-v3-turbo",
		httpClient: httpclient.InstrumentedClient,
		baseURL:    "https://api.groq.com/openai/v1",
	}
}

// NewOpenAIProvider creates a Whisper provider backed by OpenAI
func NewOpenAIProvider(apiKey string) *WhisperProvider {
	return &WhisperProvider{
		name:       ProviderOpenAI,
		apiKey:     apiKey,
		model:      "gpt-4o-mini-transcribe",
		httpClient: httpclient.InstrumentedClient,
		baseURL:    "https://api.openai.com/v1",
	}
}

func (p *WhisperProvider) Name() string { return string(p.name) }

func (p *WhisperProvider) Capabilities() Capabilities {
	return Capabilities{}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends the recording as multipart form data.
func (p *WhisperProvider) Transcribe(ctx context.Context, audio Audio, opts Options) (string, error) {
	ctx = httpclient.WithProvider(ctx, p.Name())

	filename := audio.Filename
	if filename == "" {
		filename = "audio.mp3"
	}

	// Prepare multipart form via pipe to avoid a second copy of the recording
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, bytes.NewReader(audio.Data)); err != nil {
			pw.CloseWithError(err)
			return
		}
		for field, value := range map[string]string{
			"model":           p.model,
			"language":        whisperLanguage(opts.Language),
			"response_format": "json",
		} {
			if err := writer.WriteField(field, value); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", pr)
	if err != nil {
		pr.Close()
		return "", errors.NewTranscriptionError(fmt.Sprintf("failed to create %s request", p.name), "WHISPER_REQUEST_ERROR", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return "", errors.NewTranscriptionError(fmt.Sprintf("failed to call %s transcription API", p.name), "WHISPER_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewTranscriptionError(fmt.Sprintf("failed to read %s response", p.name), "READ_RESPONSE_ERROR", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewTranscriptionUpstreamError(string(p.name), "WHISPER", resp.StatusCode, respBody)
	}

	var transResp transcriptionResponse
	if err := json.Unmarshal(respBody, &transResp); err != nil {
		return "", errors.NewTranscriptionError(fmt.Sprintf("failed to parse %s response", p.name), "PARSE_RESPONSE_ERROR", err)
	}

	return transResp.Text, nil
}

func whisperLanguage(lang string) string {
	if lang == LanguageEnglish {
		return "en"
	}
	return "zh"
}
