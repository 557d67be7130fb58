package transcription

import (
	"context"
	"path/filepath"
	"strings"
)

type ProviderType string

const (
	ProviderAssemblyAI ProviderType = "assemblyai"
	ProviderGoogle     ProviderType = "google"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenAI     ProviderType = "openai"
)

// Meeting languages offered by the form.
const (
	LanguageChinese = "zh"
	LanguageEnglish = "en"
)

// Audio is an uploaded recording held in memory.
type Audio struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Ext returns the lower-cased file extension without the dot.
func (a Audio) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(a.Filename)), ".")
}

// Options are the user's transcription choices.
type Options struct {
	Language      string `json:"language"`
	Punctuate     bool   `json:"punctuate"`
	FormatText    bool   `json:"format_text"`
	SpeakerLabels bool   `json:"speaker_labels"`
	SpeakerCount  int    `json:"speaker_count,omitempty"`
}

// Capabilities describe which options a backend honours.
type Capabilities struct {
	PunctuateToggle  bool
	FormatTextToggle bool
	SpeakerLabels    bool
	MinSpeakers      int
	MaxSpeakers      int
	DefaultSpeakers  int
	// AcceptsAnyFormat is set when the backend converts any ffmpeg-decodable input.
	AcceptsAnyFormat bool
}

// Provider turns a recording into plain text.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Transcribe(ctx context.Context, audio Audio, opts Options) (string, error)
}
