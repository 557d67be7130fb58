package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"

	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/httpclient"
	"github.com/meetscribe/minutes/internal/services/storage"
	"github.com/meetscribe/minutes/internal/utils"
)

const (
	// MaxAudioDuration is the longest recording batch recognition accepts.
	MaxAudioDuration = 8 * time.Hour

	googleSpeechModel  = "chirp_2"
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
	maxResultBytes     = 64 << 20
)

// ObjectStore is the part of the storage client batch recognition needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
	List(ctx context.Context, prefix string) ([]storage.Object, error)
	DownloadBytes(ctx context.Context, key string, maxBytes int64) ([]byte, error)
	DeleteAll(ctx context.Context, keys []string) error
	URI(key string) string
}

// GoogleBatchProvider transcribes with Speech-to-Text v2 batchRecognize, staging audio and results in a bucket.
type GoogleBatchProvider struct {
	project    string
	region     string
	httpClient *http.Client
	baseURL    string
	store      ObjectStore
	convert    func(ctx context.Context, inputPath string) (string, error)
	poll       utils.PollConfig
}

// NewGoogleBatchProvider authenticates with application default credentials.
func NewGoogleBatchProvider(ctx context.Context, project, region string, store ObjectStore) (*GoogleBatchProvider, error) {
	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	return &GoogleBatchProvider{
		project:    project,
		region:     region,
		httpClient: httpclient.NewOAuthClient(ts, httpclient.DefaultTimeout),
		baseURL:    fmt.Sprintf("https://%s-speech.googleapis.com", region),
		store:      store,
		convert:    ConvertToWAV,
		poll:       utils.LongRunningPollConfig(3 * MaxAudioDuration),
	}, nil
}

func (p *GoogleBatchProvider) Name() string { return string(ProviderGoogle) }

func (p *GoogleBatchProvider) Capabilities() Capabilities {
	return Capabilities{
		SpeakerLabels:    true,
		MinSpeakers:      2,
		MaxSpeakers:      10,
		DefaultSpeakers:  2,
		AcceptsAnyFormat: true,
	}
}

type batchRecognizeRequest struct {
	Config                  recognitionConfig       `json:"config"`
	Files                   []batchFileMetadata     `json:"files"`
	RecognitionOutputConfig recognitionOutputConfig `json:"recognitionOutputConfig"`
}

type recognitionConfig struct {
	ExplicitDecodingConfig explicitDecodingConfig `json:"explicitDecodingConfig"`
	Model                  string                 `json:"model"`
	LanguageCodes          []string               `json:"languageCodes"`
	Features               recognitionFeatures    `json:"features"`
}

type explicitDecodingConfig struct {
	Encoding          string `json:"encoding"`
	SampleRateHertz   int    `json:"sampleRateHertz"`
	AudioChannelCount int    `json:"audioChannelCount"`
}

type recognitionFeatures struct {
	EnableAutomaticPunctuation bool               `json:"enableAutomaticPunctuation"`
	EnableSpokenPunctuation    bool               `json:"enableSpokenPunctuation"`
	EnableSpokenEmojis         bool               `json:"enableSpokenEmojis"`
	DiarizationConfig          *diarizationConfig `json:"diarizationConfig,omitempty"`
}

type diarizationConfig struct {
	MinSpeakerCount int `json:"minSpeakerCount"`
	MaxSpeakerCount int `json:"maxSpeakerCount"`
}

type batchFileMetadata struct {
	URI string `json:"uri"`
}

type recognitionOutputConfig struct {
	GCSOutputConfig gcsOutputConfig `json:"gcsOutputConfig"`
}

type gcsOutputConfig struct {
	URI string `json:"uri"`
}

type rpcStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operation struct {
	Name     string     `json:"name"`
	Done     bool       `json:"done"`
	Error    *rpcStatus `json:"error"`
	Response *struct {
		Results map[string]struct {
			Error *rpcStatus `json:"error"`
		} `json:"results"`
	} `json:"response"`
}

type batchResultFile struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Transcribe converts, stages, recognizes and collects the transcript. Staged objects are always removed.
func (p *GoogleBatchProvider) Transcribe(ctx context.Context, audio Audio, opts Options) (string, error) {
	ctx = httpclient.WithProvider(ctx, p.Name())

	inputPath, err := writeTemp(audio)
	if err != nil {
		return "", err
	}
	defer os.Remove(inputPath)

	wavPath, err := p.convert(ctx, inputPath)
	if err != nil {
		return "", err
	}
	defer os.Remove(wavPath)

	id := uuid.NewString()
	audioKey := "audio/" + id + ".wav"
	outputPrefix := "transcripts/" + id + "/"

	wav, err := os.Open(wavPath)
	if err != nil {
		return "", errors.NewTranscriptionError("failed to open converted audio", "AUDIO_FILE_ERROR", err)
	}
	err = p.store.Upload(ctx, audioKey, wav, "audio/wav")
	wav.Close()
	if err != nil {
		return "", err
	}
	defer p.cleanup(ctx, audioKey, outputPrefix)

	op, err := p.startBatch(ctx, p.request(audioKey, outputPrefix, opts))
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Batch recognition started", "operation", op.Name, "audio", audioKey)

	if _, err := utils.Poll(ctx, func(ctx context.Context) (*operation, bool, error) {
		current, err := p.getOperation(ctx, op.Name)
		if err != nil {
			return nil, false, err
		}
		if !current.Done {
			return nil, false, nil
		}
		if current.Error != nil {
			return nil, false, errors.NewTranscriptionError(
				fmt.Sprintf("batch recognition failed: %s", current.Error.Message),
				"GOOGLE_BATCH_FAILED",
				nil,
			)
		}
		if current.Response != nil {
			for uri, result := range current.Response.Results {
				if result.Error != nil {
					return nil, false, errors.NewTranscriptionError(
						fmt.Sprintf("batch recognition failed for %s: %s", uri, result.Error.Message),
						"GOOGLE_BATCH_FAILED",
						nil,
					)
				}
			}
		}
		return current, true, nil
	}, p.poll); err != nil {
		if _, ok := errors.As(err); ok {
			return "", err
		}
		return "", errors.NewTranscriptionError("batch recognition did not complete", "GOOGLE_BATCH_TIMEOUT", err)
	}

	return p.collect(ctx, outputPrefix)
}

func (p *GoogleBatchProvider) request(audioKey, outputPrefix string, opts Options) batchRecognizeRequest {
	features := recognitionFeatures{
		EnableAutomaticPunctuation: true,
		EnableSpokenPunctuation:    true,
		EnableSpokenEmojis:         true,
	}
	if opts.SpeakerLabels && opts.SpeakerCount > 0 {
		features.DiarizationConfig = &diarizationConfig{
			MinSpeakerCount: opts.SpeakerCount,
			MaxSpeakerCount: opts.SpeakerCount,
		}
	}

	return batchRecognizeRequest{
		Config: recognitionConfig{
			ExplicitDecodingConfig: explicitDecodingConfig{
				Encoding:          "LINEAR16",
				SampleRateHertz:   wavSampleRate,
				AudioChannelCount: wavChannels,
			},
			Model:         googleSpeechModel,
			LanguageCodes: []string{googleLanguage(opts.Language)},
			Features:      features,
		},
		Files: []batchFileMetadata{{URI: p.store.URI(audioKey)}},
		RecognitionOutputConfig: recognitionOutputConfig{
			GCSOutputConfig: gcsOutputConfig{URI: p.store.URI(outputPrefix)},
		},
	}
}

func (p *GoogleBatchProvider) startBatch(ctx context.Context, body batchRecognizeRequest) (*operation, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewTranscriptionError("failed to encode batch request", "GOOGLE_REQUEST_ERROR", err)
	}

	url := fmt.Sprintf("%s/v2/projects/%s/locations/%s/recognizers/_:batchRecognize", p.baseURL, p.project, p.region)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewTranscriptionError("failed to create batch request", "GOOGLE_REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var op operation
	if err := p.do(req, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, errors.NewTranscriptionError("batch request returned no operation", "GOOGLE_API_ERROR", nil)
	}
	return &op, nil
}

func (p *GoogleBatchProvider) getOperation(ctx context.Context, name string) (*operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/"+name, nil)
	if err != nil {
		return nil, errors.NewTranscriptionError("failed to create operation request", "GOOGLE_REQUEST_ERROR", err)
	}
	var op operation
	if err := p.do(req, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

func (p *GoogleBatchProvider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.NewTranscriptionError("failed to call Speech-to-Text API", "GOOGLE_API_ERROR", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTranscriptionError("failed to read Speech-to-Text response", "READ_RESPONSE_ERROR", err)
	}
	if resp.StatusCode >= 300 {
		return errors.NewTranscriptionUpstreamError("Speech-to-Text", "GOOGLE_SPEECH", resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.NewTranscriptionError("failed to parse Speech-to-Text response", "PARSE_RESPONSE_ERROR", err)
	}
	return nil
}

// collect joins the first alternative of every result across all output objects.
func (p *GoogleBatchProvider) collect(ctx context.Context, prefix string) (string, error) {
	objects, err := p.store.List(ctx, prefix)
	if err != nil {
		return "", err
	}
	if len(objects) == 0 {
		return "", errors.NewTranscriptionError("batch recognition produced no output", "GOOGLE_NO_OUTPUT", nil)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	var parts []string
	for _, obj := range objects {
		data, err := p.store.DownloadBytes(ctx, obj.Key, maxResultBytes)
		if err != nil {
			return "", err
		}
		var file batchResultFile
		if err := json.Unmarshal(data, &file); err != nil {
			return "", errors.NewTranscriptionError("failed to parse batch output", "PARSE_RESPONSE_ERROR", err)
		}
		for _, result := range file.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			if text := strings.TrimSpace(result.Alternatives[0].Transcript); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (p *GoogleBatchProvider) cleanup(ctx context.Context, audioKey, outputPrefix string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	keys := []string{audioKey}
	if outputs, err := p.store.List(ctx, outputPrefix); err == nil {
		for _, obj := range outputs {
			keys = append(keys, obj.Key)
		}
	} else {
		slog.WarnContext(ctx, "Failed to list batch outputs for cleanup", "prefix", outputPrefix, "error", err)
	}

	if err := p.store.DeleteAll(ctx, keys); err != nil {
		slog.WarnContext(ctx, "Failed to clean up staged objects", "keys", keys, "error", err)
	}
}

func googleLanguage(lang string) string {
	if lang == LanguageEnglish {
		return "en-US"
	}
	return "cmn-Hans-CN"
}
