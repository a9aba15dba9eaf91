package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/54b3r/ragkit/internal/metrics"
	"github.com/54b3r/ragkit/internal/vector"
)

func Test_CacheKey_DependsOnModel(t *testing.T) {
	t.Parallel()

	a := CacheKey("text-embedding-3-large", "hello")
	b := CacheKey("text-embedding-3-small", "hello")
	if a == b {
		t.Error("keys for different models must differ")
	}
	if a != CacheKey("text-embedding-3-large", "hello") {
		t.Error("keys must be deterministic")
	}
	if len(a) != len(cacheKeyPrefix)+64 {
		t.Errorf("key %q should be prefix plus hex sha256", a)
	}
}

func Test_Cached_HitSkipsProvider(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	cached := []float32{0.5, 0.25}

	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", CacheKey("m", "hello"))).
		Return(mock.Result(mock.RedisBlobString(string(vector.EncodeVector(cached)))))

	inner := &countingEmbedder{}
	emb := NewCached(inner, client, CacheConfig{Model: "m"})

	got, err := emb.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("provider called %d times on a cache hit", inner.calls)
	}
	if len(got) != 1 || got[0][0] != 0.5 || got[0][1] != 0.25 {
		t.Errorf("embedding = %v, want %v", got, cached)
	}
}

func Test_Cached_MissEmbedsAndStores(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	reg := prometheus.NewRegistry()

	hitKey := CacheKey("m", "cached")
	missKey := CacheKey("m", "fresh")
	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", hitKey)).
		Return(mock.Result(mock.RedisBlobString(string(vector.EncodeVector([]float32{9})))))
	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", missKey)).
		Return(mock.Result(mock.RedisNil()))
	client.EXPECT().
		Do(gomock.Any(), mock.Match("SET", missKey, rueidis.BinaryString(vector.EncodeVector([]float32{5})))).
		Return(mock.Result(mock.RedisString("OK")))

	inner := &countingEmbedder{}
	emb := NewCached(inner, client, CacheConfig{Model: "m", Metrics: metrics.New(reg)})

	got, err := emb.Embed(context.Background(), []string{"cached", "fresh"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got[0][0] != 9 || got[1][0] != 5 {
		t.Errorf("embeddings = %v, want [[9] [5]]", got)
	}
	if len(inner.texts) != 1 || inner.texts[0] != "fresh" {
		t.Errorf("provider saw %v, want only the miss", inner.texts)
	}
}

func Test_Cached_RedisErrorFallsBackToProvider(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)

	key := CacheKey("m", "text")
	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", key)).
		Return(mock.ErrorResult(errors.New("connection reset")))
	client.EXPECT().
		Do(gomock.Any(), mock.Match("SET", key, rueidis.BinaryString(vector.EncodeVector([]float32{4})))).
		Return(mock.ErrorResult(errors.New("connection reset")))

	inner := &countingEmbedder{}
	emb := NewCached(inner, client, CacheConfig{Model: "m"})

	got, err := emb.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("cache failures must not fail Embed: %v", err)
	}
	if got[0][0] != 4 || inner.calls != 1 {
		t.Errorf("embedding = %v, calls = %d", got, inner.calls)
	}
}
