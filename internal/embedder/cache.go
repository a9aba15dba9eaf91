package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/rueidis"

	"github.com/54b3r/ragkit/internal/metrics"
	"github.com/54b3r/ragkit/internal/rag"
	"github.com/54b3r/ragkit/internal/vector"
)

// cacheKeyPrefix namespaces embedding entries in a shared Redis.
const cacheKeyPrefix = "ragkit:emb:"

// Cached serves embeddings from Redis and only sends misses to the wrapped
// embedder. Cache failures are logged and treated as misses; they never fail
// an Embed call.
type Cached struct {
	next    rag.Embedder
	client  rueidis.Client
	model   string
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *slog.Logger
}

// CacheConfig holds the settings for constructing a Cached embedder.
type CacheConfig struct {
	// Model is mixed into every key so switching models never returns
	// vectors of the wrong space.
	Model string
	// TTL expires entries; zero keeps them until evicted.
	TTL     time.Duration
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewRedisClient connects to the Redis at addr with client-side caching
// disabled.
func NewRedisClient(addr, password string) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		Password:     password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: redis client: %w", err)
	}
	return client, nil
}

// NewCached wraps next with the cache held in client. The caller owns client.
func NewCached(next rag.Embedder, client rueidis.Client, cfg CacheConfig) *Cached {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Cached{
		next:    next,
		client:  client,
		model:   cfg.Model,
		ttl:     cfg.TTL,
		metrics: cfg.Metrics,
		log:     log,
	}
}

// CacheKey returns the Redis key of text embedded with model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Embed returns cached vectors where present and embeds the rest in one
// call to the wrapped embedder.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := c.get(ctx, CacheKey(c.model, text)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	c.metrics.ObserveCache(len(texts)-len(missIdx), len(missIdx))

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(missTexts), len(fresh))
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		c.set(ctx, CacheKey(c.model, missTexts[j]), fresh[j])
	}
	return out, nil
}

func (c *Cached) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			c.log.Warn("embedding cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	v, err := vector.DecodeVector(data)
	if err != nil || len(v) == 0 {
		return nil, false
	}
	return v, true
}

func (c *Cached) set(ctx context.Context, key string, v []float32) {
	value := rueidis.BinaryString(vector.EncodeVector(v))
	var cmd rueidis.Completed
	if c.ttl > 0 {
		cmd = c.client.B().Set().Key(key).Value(value).Ex(c.ttl).Build()
	} else {
		cmd = c.client.B().Set().Key(key).Value(value).Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		c.log.Warn("embedding cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
