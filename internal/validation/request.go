package validation

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/services/transcription"
)

// AllowedExtensions are accepted by backends that take the upload as-is.
var AllowedExtensions = []string{"m4a", "mp3", "wav"}

// MaxMeetingInfoRunes bounds the free-text metadata placed into the prompt.
const MaxMeetingInfoRunes = 10000

// ValidateAudio checks the uploaded file against the backend and size limit.
func ValidateAudio(filename string, size int64, caps transcription.Capabilities, maxBytes int64) error {
	if strings.TrimSpace(filename) == "" || size <= 0 {
		return errors.NewValidationError("an audio file is required", "FILE_REQUIRED", "Choose a meeting recording to upload")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !caps.AcceptsAnyFormat && !slices.Contains(AllowedExtensions, ext) {
		return errors.NewValidationError(
			fmt.Sprintf("unsupported file type %q", ext),
			"UNSUPPORTED_FORMAT",
			"Upload an m4a, mp3 or wav file",
		)
	}

	if maxBytes > 0 && size > maxBytes {
		return errors.NewValidationError(
			fmt.Sprintf("file is %d bytes, the limit is %d bytes", size, maxBytes),
			"FILE_TOO_LARGE",
			fmt.Sprintf("Upload a recording smaller than %d MiB", maxBytes>>20),
		)
	}
	return nil
}

// NormalizeOptions validates opts against caps and fills backend defaults.
// Toggles the backend does not offer are forced on, and the speaker count is
// cleared when speaker labels are off.
func NormalizeOptions(opts *transcription.Options, caps transcription.Capabilities) error {
	switch opts.Language {
	case "":
		opts.Language = transcription.LanguageChinese
	case transcription.LanguageChinese, transcription.LanguageEnglish:
	default:
		return errors.NewValidationError(
			fmt.Sprintf("unsupported language %q", opts.Language),
			"INVALID_LANGUAGE",
			"Choose zh or en",
		)
	}

	if !caps.PunctuateToggle {
		opts.Punctuate = true
	}
	if !caps.FormatTextToggle {
		opts.FormatText = true
	}

	if !opts.SpeakerLabels {
		opts.SpeakerCount = 0
		return nil
	}
	if !caps.SpeakerLabels {
		return errors.NewValidationError(
			"speaker labels are not supported by this transcription backend",
			"SPEAKER_LABELS_UNSUPPORTED",
			"Turn off speaker labels",
		)
	}
	if opts.SpeakerCount == 0 {
		opts.SpeakerCount = caps.DefaultSpeakers
	}
	if opts.SpeakerCount < caps.MinSpeakers || opts.SpeakerCount > caps.MaxSpeakers {
		return errors.NewValidationError(
			fmt.Sprintf("speaker count must be between %d and %d", caps.MinSpeakers, caps.MaxSpeakers),
			"INVALID_SPEAKER_COUNT",
			"",
		)
	}
	return nil
}

// ValidateMeetingInfo bounds the metadata length.
func ValidateMeetingInfo(text string) error {
	if n := utf8.RuneCountInString(text); n > MaxMeetingInfoRunes {
		return errors.NewValidationError(
			fmt.Sprintf("meeting info is %d characters, the limit is %d", n, MaxMeetingInfoRunes),
			"MEETING_INFO_TOO_LONG",
			"Shorten the meeting information",
		)
	}
	return nil
}
