package validation

import (
	"strings"
	"testing"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/services/transcription"
)

var (
	hostedCaps = transcription.Capabilities{
		PunctuateToggle:  true,
		FormatTextToggle: true,
		SpeakerLabels:    true,
		MinSpeakers:      1,
		MaxSpeakers:      10,
		DefaultSpeakers:  1,
	}
	batchCaps = transcription.Capabilities{
		SpeakerLabels:    true,
		MinSpeakers:      2,
		MaxSpeakers:      10,
		DefaultSpeakers:  2,
		AcceptsAnyFormat: true,
	}
)

func errorCode(err error) string {
	if appErr, ok := errors.As(err); ok {
		return appErr.Code()
	}
	return ""
}

func TestValidateAudio(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		caps     transcription.Capabilities
		wantCode string
	}{
		{"valid m4a", "weekly.m4a", 1024, hostedCaps, ""},
		{"upper-case extension", "WEEKLY.MP3", 1024, hostedCaps, ""},
		{"missing file", "", 0, hostedCaps, "FILE_REQUIRED"},
		{"empty file", "a.wav", 0, hostedCaps, "FILE_REQUIRED"},
		{"unsupported format", "notes.ogg", 1024, hostedCaps, "UNSUPPORTED_FORMAT"},
		{"batch accepts any format", "notes.ogg", 1024, batchCaps, ""},
		{"too large", "a.wav", 2 << 20, hostedCaps, "FILE_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAudio(tt.filename, tt.size, tt.caps, 1<<20)
			if got := errorCode(err); got != tt.wantCode {
				t.Errorf("ValidateAudio() code = %q, want %q (err %v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestNormalizeOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     transcription.Options
		caps     transcription.Capabilities
		want     transcription.Options
		wantCode string
	}{
		{
			name: "defaults language",
			opts: transcription.Options{Punctuate: true, FormatText: true},
			caps: hostedCaps,
			want: transcription.Options{Language: "zh", Punctuate: true, FormatText: true},
		},
		{
			name: "toggles kept when offered",
			opts: transcription.Options{Language: "en"},
			caps: hostedCaps,
			want: transcription.Options{Language: "en"},
		},
		{
			name: "toggles forced when not offered",
			opts: transcription.Options{Language: "zh"},
			caps: batchCaps,
			want: transcription.Options{Language: "zh", Punctuate: true, FormatText: true},
		},
		{
			name: "speaker count cleared without labels",
			opts: transcription.Options{Language: "zh", SpeakerCount: 4},
			caps: hostedCaps,
			want: transcription.Options{Language: "zh"},
		},
		{
			name: "default speaker count",
			opts: transcription.Options{Language: "zh", SpeakerLabels: true},
			caps: batchCaps,
			want: transcription.Options{Language: "zh", Punctuate: true, FormatText: true, SpeakerLabels: true, SpeakerCount: 2},
		},
		{
			name:     "speaker count below range",
			opts:     transcription.Options{Language: "zh", SpeakerLabels: true, SpeakerCount: 1},
			caps:     batchCaps,
			wantCode: "INVALID_SPEAKER_COUNT",
		},
		{
			name:     "speaker count above range",
			opts:     transcription.Options{Language: "zh", SpeakerLabels: true, SpeakerCount: 11},
			caps:     hostedCaps,
			wantCode: "INVALID_SPEAKER_COUNT",
		},
		{
			name:     "labels unsupported",
			opts:     transcription.Options{Language: "zh", SpeakerLabels: true},
			caps:     transcription.Capabilities{},
			wantCode: "SPEAKER_LABELS_UNSUPPORTED",
		},
		{
			name:     "bad language",
			opts:     transcription.Options{Language: "fr"},
			caps:     hostedCaps,
			wantCode: "INVALID_LANGUAGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := NormalizeOptions(&opts, tt.caps)
			if got := errorCode(err); got != tt.wantCode {
				t.Fatalf("NormalizeOptions() code = %q, want %q (err %v)", got, tt.wantCode, err)
			}
			if tt.wantCode == "" && opts != tt.want {
				t.Errorf("NormalizeOptions() = %+v, want %+v", opts, tt.want)
			}
		})
	}
}

func TestValidateMeetingInfo(t *testing.T) {
	if err := ValidateMeetingInfo(strings.Repeat("會", MaxMeetingInfoRunes)); err != nil {
		t.Errorf("expected limit to be inclusive, got %v", err)
	}
	if err := ValidateMeetingInfo(strings.Repeat("會", MaxMeetingInfoRunes+1)); errorCode(err) != "MEETING_INFO_TOO_LONG" {
		t.Errorf("expected MEETING_INFO_TOO_LONG, got %v", err)
	}
}
