package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	DatabaseURL string
	RedisURL    string

	AuthJWTSecret string
	AuthIssuer    string

	AssemblyAIKey string
	GeminiAPIKey  string
	OpenAIKey     string
	GroqKey       string

	GoogleProject string
	GoogleRegion  string

	StorageBucket    string
	StorageEndpoint  string
	StorageRegion    string
	StorageAccessKey string
	StorageSecretKey string

	CORSAllowedOrigins []string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPHeaders  string
	SentryDSN                string

	Port string

	Transcription TranscriptionConfig
	Generation    GenerationConfig
	Upload        UploadConfig
	Jobs          JobsConfig
	Cache         CacheConfig
}

type TranscriptionConfig struct {
	Provider         string `yaml:"provider"`
	FallbackEnabled  bool   `yaml:"fallback_enabled"`
	FallbackProvider string `yaml:"fallback_provider"`
}

type GenerationConfig struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	Style            string `yaml:"style"`
	FallbackEnabled  bool   `yaml:"fallback_enabled"`
	FallbackProvider string `yaml:"fallback_provider"`
}

type UploadConfig struct {
	MaxBytes     int64         `yaml:"max_bytes"`
	SignedURLTTL time.Duration `yaml:"signed_url_ttl"`
}

type JobsConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Retention   time.Duration `yaml:"retention"`
	CleanupCron string        `yaml:"cleanup_cron"`
}

type CacheConfig struct {
	TranscriptTTL time.Duration `yaml:"transcript_ttl"`
}

const (
	DefaultMaxUploadBytes = 200 << 20
	DefaultGeminiModel    = "gemini-1.5-flash"
)

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		AuthJWTSecret:            os.Getenv("AUTH_JWT_SECRET"),
		AuthIssuer:               os.Getenv("AUTH_ISSUER"),
		AssemblyAIKey:            os.Getenv("ASSEMBLYAI_API_KEY"),
		GeminiAPIKey:             os.Getenv("GEMINI_API_KEY"),
		OpenAIKey:                os.Getenv("OPENAI_API_KEY"),
		GroqKey:                  os.Getenv("GROQ_API_KEY"),
		GoogleProject:            os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GoogleRegion:             os.Getenv("GOOGLE_CLOUD_REGION"),
		StorageBucket:            os.Getenv("GCS_BUCKET_NAME"),
		StorageEndpoint:          os.Getenv("STORAGE_ENDPOINT"),
		StorageRegion:            os.Getenv("STORAGE_REGION"),
		StorageAccessKey:         os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:         os.Getenv("STORAGE_SECRET_KEY"),
		CORSAllowedOrigins:       splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		SentryDSN:                os.Getenv("SENTRY_DSN"),
		Port:                     os.Getenv("PORT"),
	}

	// Load from YAML file if available
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	if err := cfg.LoadFromYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Transcription TranscriptionConfig `yaml:"transcription"`
		Generation    GenerationConfig    `yaml:"generation"`
		Upload        UploadConfig        `yaml:"upload"`
		Jobs          JobsConfig          `yaml:"jobs"`
		Cache         CacheConfig         `yaml:"cache"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	t := yamlConfig.Transcription
	if t.Provider != "" {
		c.Transcription.Provider = t.Provider
	}
	if t.FallbackEnabled {
		c.Transcription.FallbackEnabled = true
	}
	if t.FallbackProvider != "" {
		c.Transcription.FallbackProvider = t.FallbackProvider
	}

	g := yamlConfig.Generation
	if g.Provider != "" {
		c.Generation.Provider = g.Provider
	}
	if g.Model != "" {
		c.Generation.Model = g.Model
	}
	if g.Style != "" {
		c.Generation.Style = g.Style
	}
	if g.FallbackEnabled {
		c.Generation.FallbackEnabled = true
	}
	if g.FallbackProvider != "" {
		c.Generation.FallbackProvider = g.FallbackProvider
	}

	if yamlConfig.Upload.MaxBytes > 0 {
		c.Upload.MaxBytes = yamlConfig.Upload.MaxBytes
	}
	if yamlConfig.Upload.SignedURLTTL > 0 {
		c.Upload.SignedURLTTL = yamlConfig.Upload.SignedURLTTL
	}
	if yamlConfig.Jobs.Concurrency > 0 {
		c.Jobs.Concurrency = yamlConfig.Jobs.Concurrency
	}
	if yamlConfig.Jobs.Retention > 0 {
		c.Jobs.Retention = yamlConfig.Jobs.Retention
	}
	if yamlConfig.Jobs.CleanupCron != "" {
		c.Jobs.CleanupCron = yamlConfig.Jobs.CleanupCron
	}
	if yamlConfig.Cache.TranscriptTTL > 0 {
		c.Cache.TranscriptTTL = yamlConfig.Cache.TranscriptTTL
	}

	return nil
}

// SetDefaults fills every unset field. Fallbacks stay disabled unless configured.
func (c *Config) SetDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.ServiceName == "" {
		c.ServiceName = "minutes-generator"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "1.0.0"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.GoogleRegion == "" {
		c.GoogleRegion = "us-central1"
	}
	if c.StorageEndpoint == "" {
		c.StorageEndpoint = "https://storage.googleapis.com"
	}
	if c.StorageRegion == "" {
		c.StorageRegion = "auto"
	}

	c.SetTranscriptionDefaults()

	if c.Generation.Provider == "" {
		c.Generation.Provider = "gemini"
	}
	if c.Generation.Model == "" && (c.Generation.Provider == "gemini" || c.Generation.Provider == "vertex") {
		c.Generation.Model = DefaultGeminiModel
	}
	if c.Generation.Style == "" {
		// the batch backend pairs with the detailed minute-taker prompt
		if c.Transcription.Provider == "google" {
			c.Generation.Style = "detailed"
		} else {
			c.Generation.Style = "summary"
		}
	}
	if c.Generation.FallbackProvider == "" {
		c.Generation.FallbackProvider = "groq"
	}

	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = DefaultMaxUploadBytes
	}
	if c.Upload.SignedURLTTL <= 0 {
		c.Upload.SignedURLTTL = 15 * time.Minute
	}
	if c.Jobs.Concurrency <= 0 {
		c.Jobs.Concurrency = 5
	}
	if c.Jobs.Retention <= 0 {
		c.Jobs.Retention = 7 * 24 * time.Hour
	}
	if c.Jobs.CleanupCron == "" {
		c.Jobs.CleanupCron = "@daily"
	}
	if c.Cache.TranscriptTTL <= 0 {
		c.Cache.TranscriptTTL = 7 * 24 * time.Hour
	}
}

func (c *Config) SetTranscriptionDefaults() {
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "assemblyai"
	}
	if c.Transcription.FallbackProvider == "" {
		c.Transcription.FallbackProvider = "groq"
	}
}

// JobsEnabled reports whether the asynchronous job endpoints can be served.
func (c *Config) JobsEnabled() bool {
	return c.DatabaseURL != "" && c.RedisURL != ""
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if err := c.requireTranscriptionKey(c.Transcription.Provider); err != nil {
		return err
	}
	if c.Transcription.FallbackEnabled {
		if err := c.requireTranscriptionKey(c.Transcription.FallbackProvider); err != nil {
			return fmt.Errorf("transcription fallback: %w", err)
		}
	}
	if err := c.requireGenerationKey(c.Generation.Provider); err != nil {
		return err
	}
	if c.Generation.FallbackEnabled {
		if err := c.requireGenerationKey(c.Generation.FallbackProvider); err != nil {
			return fmt.Errorf("generation fallback: %w", err)
		}
	}
	if c.Generation.Style != "summary" && c.Generation.Style != "detailed" {
		return fmt.Errorf("unknown generation style %q", c.Generation.Style)
	}
	if (c.StorageAccessKey == "") != (c.StorageSecretKey == "") {
		return fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY must be set together")
	}
	return nil
}

func (c *Config) requireTranscriptionKey(provider string) error {
	switch provider {
	case "assemblyai":
		if c.AssemblyAIKey == "" {
			return fmt.Errorf("ASSEMBLYAI_API_KEY is required")
		}
	case "google":
		if c.GoogleProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required")
		}
		if c.StorageBucket == "" {
			return fmt.Errorf("GCS_BUCKET_NAME is required")
		}
	case "groq":
		if c.GroqKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown transcription provider %q", provider)
	}
	return nil
}

func (c *Config) requireGenerationKey(provider string) error {
	switch provider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case "vertex":
		if c.GoogleProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required")
		}
	case "groq":
		if c.GroqKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown generation provider %q", provider)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
