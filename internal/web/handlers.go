// Package web serves the upload form and the rendered minutes.
package web

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/logger"
	"github.com/meetscribe/minutes/internal/minutes"
	"github.com/meetscribe/minutes/internal/services/transcription"
	"github.com/meetscribe/minutes/internal/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Pipeline is the part of minutes.Service the pages need.
type Pipeline interface {
	Capabilities() transcription.Capabilities
	MaxUploadBytes() int64
	Generate(ctx context.Context, req minutes.Request) (*minutes.Result, error)
}

type Handler struct {
	pipeline      Pipeline
	exportEnabled bool
}

// NewHandler creates the page handler. exportEnabled shows the Google Docs
// export button on the result page.
func NewHandler(pipeline Pipeline, exportEnabled bool) *Handler {
	return &Handler{pipeline: pipeline, exportEnabled: exportEnabled}
}

// Routes mounts GET / and POST /minutes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.HandleForm)
	r.Post("/minutes", h.HandleMinutes)
}

type formValues struct {
	Language      string
	Punctuate     bool
	FormatText    bool
	SpeakerLabels bool
	SpeakerCount  int
	MeetingInfo   string
}

type formPage struct {
	Form         formValues
	Caps         transcription.Capabilities
	Extensions   string
	Accept       string
	MaxInfoRunes int
	Error        string
}

type resultPage struct {
	Transcript    string
	Minutes       template.HTML
	Markdown      string
	Title         string
	ExportEnabled bool
}

func (h *Handler) HandleForm(w http.ResponseWriter, r *http.Request) {
	caps := h.pipeline.Capabilities()
	h.renderForm(w, r, http.StatusOK, formValues{
		Language:     transcription.LanguageChinese,
		Punctuate:    true,
		FormatText:   true,
		SpeakerCount: caps.DefaultSpeakers,
	}, "")
}

func (h *Handler) HandleMinutes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := minutes.ParseMultipart(w, r, h.pipeline.MaxUploadBytes())
	if err != nil {
		h.renderError(w, r, req, err)
		return
	}

	result, err := h.pipeline.Generate(ctx, req)
	if err != nil {
		h.renderError(w, r, req, err)
		return
	}

	body, err := RenderMarkdown(result.Minutes)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to render minutes", "error", err, logger.WithTraceContext(ctx))
		body = template.HTML("<pre>" + template.HTMLEscapeString(result.Minutes) + "</pre>")
	}

	title := strings.TrimSpace(req.MeetingInfo.Name)
	if title == "" {
		title = "會議紀錄"
	}

	h.render(w, r, http.StatusOK, "result.html", resultPage{
		Transcript:    result.Transcript,
		Minutes:       body,
		Markdown:      result.Minutes,
		Title:         title,
		ExportEnabled: h.exportEnabled,
	})
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, req minutes.Request, err error) {
	ctx := r.Context()
	status := errors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Minutes request failed", "error", err, logger.WithTraceContext(ctx))
	} else {
		slog.WarnContext(ctx, "Minutes request rejected", "error", err)
	}

	language := req.Options.Language
	if language == "" {
		language = transcription.LanguageChinese
	}
	h.renderForm(w, r, status, formValues{
		Language:      language,
		Punctuate:     req.Options.Punctuate,
		FormatText:    req.Options.FormatText,
		SpeakerLabels: req.Options.SpeakerLabels,
		SpeakerCount:  req.Options.SpeakerCount,
		MeetingInfo:   req.MeetingInfo.Text,
	}, errorMessage(err))
}

// errorMessage is the text shown above the form for a failed run.
func errorMessage(err error) string {
	appErr, ok := errors.As(err)
	if !ok {
		return "處理過程發生錯誤，請稍後再試"
	}

	msg := appErr.Message
	if appErr.Recovery != "" {
		msg += "（" + appErr.Recovery + "）"
	}
	switch appErr.Type {
	case errors.ErrorTypeTranscription:
		return "轉錄過程中發生錯誤: " + msg
	case errors.ErrorTypeGeneration:
		return "生成會議紀錄時發生錯誤: " + msg
	default:
		return msg
	}
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, form formValues, errMsg string) {
	caps := h.pipeline.Capabilities()
	if form.SpeakerCount == 0 {
		form.SpeakerCount = caps.DefaultSpeakers
	}

	accept := make([]string, 0, len(validation.AllowedExtensions))
	for _, ext := range validation.AllowedExtensions {
		accept = append(accept, "."+ext)
	}
	page := formPage{
		Form:         form,
		Caps:         caps,
		Extensions:   strings.Join(validation.AllowedExtensions, ","),
		Accept:       strings.Join(accept, ","),
		MaxInfoRunes: validation.MaxMeetingInfoRunes,
		Error:        errMsg,
	}
	if caps.AcceptsAnyFormat {
		page.Accept = "audio/*"
	}
	h.render(w, r, status, "form.html", page)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Failed to render template", "template", name, "error", err)
	}
}
