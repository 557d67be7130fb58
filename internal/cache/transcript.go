package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meetscribe/minutes/internal/metrics"
)

// CachedTranscript is a transcript stored for a given recording and option set.
type CachedTranscript struct {
	Text      string    `json:"text"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptCache provides Redis-backed caching of transcripts so a repeated
// upload of the same recording does not consume speech quota again.
// A nil client turns every operation into a no-op.
type TranscriptCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTranscriptCache creates a transcript cache with the given Redis client.
func NewTranscriptCache(client *redis.Client, ttl time.Duration) *TranscriptCache {
	return &TranscriptCache{
		client: client,
		prefix: "transcript:",
		ttl:    ttl,
	}
}

// Key derives the cache key from the provider, the transcription options and the audio bytes.
func (c *TranscriptCache) Key(provider string, options any, audio []byte) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	if opts, err := json.Marshal(options); err == nil {
		h.Write(opts)
	}
	h.Write([]byte{0})
	h.Write(audio)
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached transcript for key. Misses and Redis failures both return nil.
func (c *TranscriptCache) Get(ctx context.Context, key string) *CachedTranscript {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.record(ctx, "miss")
		return nil
	}
	if err != nil {
		slog.WarnContext(ctx, "Redis cache get failed", "error", err)
		c.record(ctx, "error")
		return nil
	}

	var cached CachedTranscript
	if err := json.Unmarshal(data, &cached); err != nil {
		slog.WarnContext(ctx, "Failed to unmarshal cached transcript", "error", err)
		c.record(ctx, "error")
		return nil
	}

	c.record(ctx, "hit")
	return &cached
}

// Set stores a transcript under key. Redis failures are logged, not returned.
func (c *TranscriptCache) Set(ctx context.Context, key string, transcript *CachedTranscript) error {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := json.Marshal(transcript)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache set failed", "error", err)
	}
	return nil
}

// Delete removes a cached transcript.
func (c *TranscriptCache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache delete failed", "error", err)
	}
	return nil
}

func (c *TranscriptCache) record(ctx context.Context, result string) {
	metrics.TranscriptCacheTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
