package transcription

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
	"github.com/meetscribe/minutes/internal/utils"
)

const (
	assemblyAIStatusCompleted = "completed"
	assemblyAIStatusError     = "error"
)

// AssemblyAIProvider transcribes through the AssemblyAI REST API.
type AssemblyAIProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	poll       utils.PollConfig
}

// NewAssemblyAIProvider creates a new AssemblyAI transcription provider
func NewAssemblyAIProvider(apiKey string) *AssemblyAIProvider {
	return &AssemblyAIProvider{
		apiKey:     apiKey,
		httpClient: httpclient.InstrumentedClient,
		baseURL:    "https://api.assemblyai.com",
		poll:       utils.DefaultPollConfig(),
	}
}

func (p *AssemblyAIProvider) Name() string { return string(ProviderAssemblyAI) }

func (p *AssemblyAIProvider) Capabilities() Capabilities {
	return Capabilities{
		PunctuateToggle:  true,
		FormatTextToggle: true,
		SpeakerLabels:    true,
		MinSpeakers:      1,
		MaxSpeakers:      10,
		DefaultSpeakers:  1,
	}
}

type assemblyAIUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblyAITranscriptRequest struct {
	AudioURL         string `json:"audio_url"`
	Punctuate        bool   `json:"punctuate"`
	FormatText       bool   `json:"format_text"`
	LanguageCode     string `json:"language_code"`
	SpeakerLabels    bool   `json:"speaker_labels,omitempty"`
	SpeakersExpected int    `json:"speakers_expected,omitempty"`
}

type assemblyAIUtterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type assemblyAITranscript struct {
	ID         string                `json:"id"`
	Status     string                `json:"status"`
	Text       string                `json:"text"`
	Error      string                `json:"error"`
	Utterances []assemblyAIUtterance `json:"utterances"`
}

// Transcribe uploads the recording, submits a transcript job and waits for it.
func (p *AssemblyAIProvider) Transcribe(ctx context.Context, audio Audio, opts Options) (string, error) {
	ctx = httpclient.WithProvider(ctx, p.Name())

	uploadURL, err := p.upload(ctx, audio.Data)
	if err != nil {
		return "", err
	}

	req := assemblyAITranscriptRequest{
		AudioURL:     uploadURL,
		Punctuate:    opts.Punctuate,
		FormatText:   opts.FormatText,
		LanguageCode: assemblyAILanguage(opts.Language),
	}
	if opts.SpeakerLabels {
		req.SpeakerLabels = true
		req.SpeakersExpected = opts.SpeakerCount
	}

	var submitted assemblyAITranscript
	if err := p.doJSON(ctx, http.MethodPost, "/v2/transcript", req, &submitted); err != nil {
		return "", err
	}

	transcript, err := utils.Poll(ctx, func(ctx context.Context) (*assemblyAITranscript, bool, error) {
		var t assemblyAITranscript
		if err := p.doJSON(ctx, http.MethodGet, "/v2/transcript/"+submitted.ID, nil, &t); err != nil {
			return nil, false, err
		}
		switch t.Status {
		case assemblyAIStatusCompleted:
			return &t, true, nil
		case assemblyAIStatusError:
			return nil, false, errors.NewTranscriptionError(
				fmt.Sprintf("AssemblyAI transcription failed: %s", t.Error),
				"ASSEMBLYAI_TRANSCRIPT_ERROR",
				nil,
			)
		}
		return nil, false, nil
	}, p.poll)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return "", err
		}
		return "", errors.NewTranscriptionError("AssemblyAI transcript did not complete", "ASSEMBLYAI_POLL_ERROR", err)
	}

	return formatAssemblyAITranscript(transcript, opts.SpeakerLabels), nil
}

func (p *AssemblyAIProvider) upload(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/upload", bytes.NewReader(data))
	if err != nil {
		return "", errors.NewTranscriptionError("failed to create AssemblyAI upload request", "ASSEMBLYAI_REQUEST_ERROR", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out assemblyAIUploadResponse
	if err := p.do(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", errors.NewTranscriptionError("AssemblyAI upload returned no URL", "ASSEMBLYAI_UPLOAD_ERROR", nil)
	}
	return out.UploadURL, nil
}

func (p *AssemblyAIProvider) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.NewTranscriptionError("failed to encode AssemblyAI request", "ASSEMBLYAI_REQUEST_ERROR", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return errors.NewTranscriptionError("failed to create AssemblyAI request", "ASSEMBLYAI_REQUEST_ERROR", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return p.do(req, out)
}

func (p *AssemblyAIProvider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.NewTranscriptionError("failed to call AssemblyAI API", "ASSEMBLYAI_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTranscriptionError("failed to read AssemblyAI response", "READ_RESPONSE_ERROR", err)
	}

	if resp.StatusCode >= 300 {
		return errors.NewTranscriptionUpstreamError("AssemblyAI", "ASSEMBLYAI", resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.NewTranscriptionError("failed to parse AssemblyAI response", "PARSE_RESPONSE_ERROR", err)
	}
	return nil
}

func assemblyAILanguage(lang string) string {
	if lang == LanguageEnglish {
		return "en"
	}
	return "zh"
}

// formatAssemblyAITranscript renders "Speaker X: text" lines when utterances were requested.
func formatAssemblyAITranscript(t *assemblyAITranscript, speakerLabels bool) string {
	if !speakerLabels || len(t.Utterances) == 0 {
		return t.Text
	}
	lines := make([]string, 0, len(t.Utterances))
	for _, u := range t.Utterances {
		lines = append(lines, fmt.Sprintf("Speaker %s: %s", u.Speaker, u.Text))
	}
	return strings.Join(lines, "\n")
}
