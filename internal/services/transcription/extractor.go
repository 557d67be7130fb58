package transcription

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/meetscribe/minutes/internal/errors"
)

// Batch recognition decodes LINEAR16 at this rate and channel count.
const (
	wavSampleRate = 44100
	wavChannels   = 2
)

// ConvertToWAV converts any ffmpeg-decodable input into 16-bit PCM WAV (44.1 kHz, stereo).
// The caller removes the returned file.
func ConvertToWAV(ctx context.Context, inputPath string) (wavPath string, err error) {
	tempFile, err := os.CreateTemp("", "meeting-*.wav")
	if err != nil {
		return "", errors.NewTranscriptionError("failed to create temp file", "AUDIO_CONVERSION_ERROR", err)
	}
	tempFile.Close()
	wavPath = tempFile.Name()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-i", inputPath,
		"-vn",
		"-ar", fmt.Sprint(wavSampleRate),
		"-ac", fmt.Sprint(wavChannels),
		"-acodec", "pcm_s16le",
		"-y", wavPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(wavPath)
		return "", errors.NewTranscriptionError(
			fmt.Sprintf("failed to convert audio with FFmpeg: %s", lastLine(stderr.String())),
			"AUDIO_CONVERSION_ERROR",
			err,
		)
	}
	return wavPath, nil
}

// writeTemp stores audio on disk so ffmpeg can probe it by extension.
func writeTemp(audio Audio) (string, error) {
	pattern := "upload-*"
	if ext := audio.Ext(); ext != "" {
		pattern += "." + ext
	}
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", errors.NewTranscriptionError("failed to create temp file", "AUDIO_FILE_ERROR", err)
	}
	defer f.Close()

	if _, err := f.Write(audio.Data); err != nil {
		os.Remove(f.Name())
		return "", errors.NewTranscriptionError("failed to write temp file", "AUDIO_FILE_ERROR", err)
	}
	return f.Name(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
