package transcription

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/utils"
)

func fastPoll() utils.PollConfig {
	return utils.PollConfig{Interval: time.Millisecond, MaxInterval: 2 * time.Millisecond, BackoffFactor: 1, Timeout: 2 * time.Second}
}

func newTestAssemblyAI(url string) *AssemblyAIProvider {
	p := NewAssemblyAIProvider("test-api-key")
	p.baseURL = url
	p.poll = fastPoll()
	return p
}

func TestAssemblyAIProvider(t *testing.T) {
	var polls atomic.Int32
	var submitted assemblyAITranscriptRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-api-key" {
			t.Errorf("Expected raw API key in Authorization header, got '%s'", r.Header.Get("Authorization"))
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/upload":
			body, _ := io.ReadAll(r.Body)
			if string(body) != "fake-audio" {
				t.Errorf("Expected raw audio bytes, got %q", body)
			}
			w.Write([]byte(`{"upload_url": "https://cdn.assemblyai.test/abc"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
				t.Errorf("Failed to decode transcript request: %v", err)
			}
			w.Write([]byte(`{"id": "tr_1", "status": "queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/tr_1":
			if polls.Add(1) < 3 {
				w.Write([]byte(`{"id": "tr_1", "status": "processing"}`))
				return
			}
			w.Write([]byte(`{"id": "tr_1", "status": "completed", "text": "大家好，今天討論預算。"}`))
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := newTestAssemblyAI(server.URL)
	audio := Audio{Filename: "meeting.m4a", Data: []byte("fake-audio")}
	opts := Options{Language: LanguageChinese, Punctuate: true, FormatText: false}

	result, err := provider.Transcribe(context.Background(), audio, opts)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result != "大家好，今天討論預算。" {
		t.Errorf("Unexpected transcript '%s'", result)
	}

	if submitted.AudioURL != "https://cdn.assemblyai.test/abc" {
		t.Errorf("Expected upload URL in request, got '%s'", submitted.AudioURL)
	}
	if submitted.LanguageCode != "zh" || !submitted.Punctuate || submitted.FormatText {
		t.Errorf("Unexpected transcript request %+v", submitted)
	}
	if submitted.SpeakerLabels || submitted.SpeakersExpected != 0 {
		t.Errorf("Speaker options must be omitted without labels, got %+v", submitted)
	}
	if polls.Load() != 3 {
		t.Errorf("Expected 3 polls, got %d", polls.Load())
	}
}

func TestAssemblyAIProvider_SpeakerLabels(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/upload":
			w.Write([]byte(`{"upload_url": "u"}`))
		case "/v2/transcript":
			json.NewDecoder(r.Body).Decode(&raw)
			w.Write([]byte(`{"id": "tr_2", "status": "queued"}`))
		default:
			w.Write([]byte(`{"id": "tr_2", "status": "completed", "text": "hello there hi",
				"utterances": [{"speaker": "A", "text": "hello there"}, {"speaker": "B", "text": "hi"}]}`))
		}
	}))
	defer server.Close()

	provider := newTestAssemblyAI(server.URL)
	opts := Options{Language: LanguageEnglish, SpeakerLabels: true, SpeakerCount: 2}

	result, err := provider.Transcribe(context.Background(), Audio{Data: []byte("a")}, opts)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	expected := "Speaker A: hello there\nSpeaker B: hi"
	if result != expected {
		t.Errorf("Expected %q, got %q", expected, result)
	}
	if raw["speaker_labels"] != true || raw["speakers_expected"] != float64(2) || raw["language_code"] != "en" {
		t.Errorf("Unexpected transcript request %v", raw)
	}
}

func TestAssemblyAIProvider_TranscriptError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/upload":
			w.Write([]byte(`{"upload_url": "u"}`))
		case "/v2/transcript":
			w.Write([]byte(`{"id": "tr_3", "status": "queued"}`))
		default:
			w.Write([]byte(`{"id": "tr_3", "status": "error", "error": "Audio file contains no speech"}`))
		}
	}))
	defer server.Close()

	_, err := newTestAssemblyAI(server.URL).Transcribe(context.Background(), Audio{Data: []byte("a")}, Options{})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Audio file contains no speech") {
		t.Errorf("Expected vendor message in error, got: %v", err)
	}
	appErr, ok := errors.As(err)
	if !ok || appErr.Code() != "ASSEMBLYAI_TRANSCRIPT_ERROR" {
		t.Errorf("Expected ASSEMBLYAI_TRANSCRIPT_ERROR, got %v", err)
	}
}

func TestAssemblyAIProvider_UploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "Authentication error, API token missing/invalid"}`))
	}))
	defer server.Close()

	_, err := newTestAssemblyAI(server.URL).Transcribe(context.Background(), Audio{Data: []byte("a")}, Options{})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	appErr, ok := errors.As(err)
	if !ok {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.StatusCode != http.StatusBadGateway || appErr.Code() != "ASSEMBLYAI_UPSTREAM_ERROR" {
		t.Errorf("Expected 502 ASSEMBLYAI_UPSTREAM_ERROR, got %d %s", appErr.StatusCode, appErr.Code())
	}
	if appErr.Message != "AssemblyAI API error (status 401)" {
		t.Errorf("Unexpected message: %q", appErr.Message)
	}
	if !strings.Contains(err.Error(), "API token missing/invalid") {
		t.Errorf("Expected vendor body kept for logs, got: %v", err)
	}
	if !appErr.IsRetryable() {
		t.Error("Expected a vendor rejection to be retryable")
	}
}

func TestAssemblyAIProvider_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "quota exceeded"}`))
	}))
	defer server.Close()

	_, err := newTestAssemblyAI(server.URL).Transcribe(context.Background(), Audio{Data: []byte("a")}, Options{})
	if got := errors.StatusCode(err); got != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", got)
	}
	if appErr, ok := errors.As(err); !ok || appErr.Code() != "ASSEMBLYAI_RATE_LIMITED" {
		t.Errorf("Expected ASSEMBLYAI_RATE_LIMITED, got %v", err)
	}
}

func TestAssemblyAIProvider_Capabilities(t *testing.T) {
	caps := NewAssemblyAIProvider("k").Capabilities()
	if !caps.PunctuateToggle || !caps.FormatTextToggle || !caps.SpeakerLabels {
		t.Errorf("Expected all toggles, got %+v", caps)
	}
	if caps.MinSpeakers != 1 || caps.MaxSpeakers != 10 || caps.DefaultSpeakers != 1 {
		t.Errorf("Unexpected speaker range %+v", caps)
	}
}
