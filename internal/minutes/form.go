package minutes

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/services/prompt"
	"github.com/meetscribe/minutes/internal/services/transcription"
)

// Multipart form field names shared by the HTML form and the JSON API.
const (
	FieldAudio          = "audio"
	FieldLanguage       = "language"
	FieldPunctuate      = "punctuate"
	FieldFormatText     = "format_text"
	FieldSpeakerLabels  = "speaker_labels"
	FieldSpeakerCount   = "speaker_count"
	FieldMeetingInfo    = "meeting_info"
	FieldMeetingName    = "meeting_name"
	FieldMeetingDate    = "meeting_date"
	FieldParticipants   = "participants"
	FieldAdditionalInfo = "additional_info"
	FieldStyle          = "style"
)

const (
	multipartMemory = 32 << 20
	formOverhead    = 1 << 20
)

// ParseMultipart decodes a minutes request from a multipart form. Checkbox
// fields may repeat (a hidden "false" followed by the checkbox value) and the
// last value wins; absent fields take the form defaults.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) (Request, error) {
	var req Request

	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return req, errors.NewValidationError(
				fmt.Sprintf("upload exceeds %d bytes", maxBytes),
				"FILE_TOO_LARGE",
				fmt.Sprintf("Upload a recording smaller than %d MiB", maxBytes>>20),
			)
		}
		return req, errors.NewValidationError("invalid multipart form", "INVALID_FORM", "")
	}

	file, header, err := r.FormFile(FieldAudio)
	switch {
	case stderrors.Is(err, http.ErrMissingFile):
	case err != nil:
		return req, errors.NewValidationError("could not read the uploaded file", "INVALID_FORM", "")
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return req, errors.NewValidationError("could not read the uploaded file", "INVALID_FORM", "")
		}
		req.Audio = transcription.Audio{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}

	req.Options = transcription.Options{
		Language:      strings.TrimSpace(r.FormValue(FieldLanguage)),
		Punctuate:     formBool(r, FieldPunctuate, true),
		FormatText:    formBool(r, FieldFormatText, true),
		SpeakerLabels: formBool(r, FieldSpeakerLabels, false),
	}
	if raw := strings.TrimSpace(r.FormValue(FieldSpeakerCount)); raw != "" && req.Options.SpeakerLabels {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, errors.NewValidationError("speaker count must be a number", "INVALID_SPEAKER_COUNT", "")
		}
		req.Options.SpeakerCount = n
	}

	req.MeetingInfo = prompt.MeetingInfo{
		Text:           r.FormValue(FieldMeetingInfo),
		Name:           strings.TrimSpace(r.FormValue(FieldMeetingName)),
		Date:           strings.TrimSpace(r.FormValue(FieldMeetingDate)),
		Participants:   strings.TrimSpace(r.FormValue(FieldParticipants)),
		AdditionalInfo: strings.TrimSpace(r.FormValue(FieldAdditionalInfo)),
	}

	if raw := r.FormValue(FieldStyle); raw != "" {
		style, err := prompt.ParseStyle(raw)
		if err != nil {
			return req, errors.NewValidationError(err.Error(), "INVALID_STYLE", "Use summary or detailed")
		}
		req.Style = style
	}

	return req, nil
}

func formBool(r *http.Request, field string, def bool) bool {
	values := r.MultipartForm.Value[field]
	if len(values) == 0 {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(values[len(values)-1])) {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}
