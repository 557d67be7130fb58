package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type options struct {
	Language string `json:"language"`
	Speakers int    `json:"speakers"`
}

func TestTranscriptCacheKey(t *testing.T) {
	c := NewTranscriptCache(nil, time.Hour)
	audio := []byte("RIFF....WAVEfmt ")

	key := c.Key("assemblyai", options{Language: "zh"}, audio)
	if !strings.HasPrefix(key, "transcript:") || len(key) != len("transcript:")+64 {
		t.Fatalf("unexpected key %q", key)
	}
	if key != c.Key("assemblyai", options{Language: "zh"}, audio) {
		t.Error("key should be deterministic")
	}

	variants := []string{
		c.Key("google", options{Language: "zh"}, audio),
		c.Key("assemblyai", options{Language: "en"}, audio),
		c.Key("assemblyai", options{Language: "zh", Speakers: 2}, audio),
		c.Key("assemblyai", options{Language: "zh"}, append([]byte{}, audio[:8]...)),
	}
	for _, v := range variants {
		if v == key {
			t.Errorf("expected a different key for changed input, got %q", v)
		}
	}
}

func TestTranscriptCacheNilClient(t *testing.T) {
	ctx := context.Background()
	c := NewTranscriptCache(nil, time.Hour)

	if got := c.Get(ctx, "k"); got != nil {
		t.Errorf("expected nil from disabled cache, got %+v", got)
	}
	if err := c.Set(ctx, "k", &CachedTranscript{Text: "hi"}); err != nil {
		t.Errorf("Set on disabled cache: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete on disabled cache: %v", err)
	}

	var nilCache *TranscriptCache
	if got := nilCache.Get(ctx, "k"); got != nil {
		t.Errorf("expected nil from nil cache, got %+v", got)
	}
}

func TestTranscriptCacheUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	ctx := context.Background()
	c := NewTranscriptCache(client, time.Hour)

	if got := c.Get(ctx, "k"); got != nil {
		t.Errorf("expected a miss when redis is down, got %+v", got)
	}
	if err := c.Set(ctx, "k", &CachedTranscript{Text: "hi"}); err != nil {
		t.Errorf("Set should swallow redis errors, got %v", err)
	}
}

func TestNewRedisClientInvalidURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "not-a-redis-url"); err == nil {
		t.Error("expected error for invalid url")
	}
}
