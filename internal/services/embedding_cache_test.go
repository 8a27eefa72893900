package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCache(t *testing.T) (*RedisEmbeddingCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisEmbeddingCache(client, "test:", time.Hour), srv
}

func TestRedisEmbeddingCacheRoundTrip(t *testing.T) {
	cache, srv := newRedisCache(t)
	ctx := context.Background()

	if _, hit, err := cache.Get(ctx, "k"); err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	want := []float32{0.25, -1.5, 3}
	if err := cache.Set(ctx, "k", want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, hit, err := cache.Get(ctx, "k")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	srv.FastForward(2 * time.Hour)
	if _, hit, _ := cache.Get(ctx, "k"); hit {
		t.Fatal("entry should expire after the ttl")
	}
}

func TestCachedEmbedderCallsProviderOncePerText(t *testing.T) {
	cache, _ := newRedisCache(t)
	provider := &fakeEmbedder{vec: []float32{1, 2, 3}}
	e := NewCachedEmbedder(provider, cache, "bge-m3")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		vec, err := e.Embed(ctx, "a cat")
		if err != nil {
			t.Fatalf("embed: %v", err)
		}
		if len(vec) != 3 {
			t.Fatalf("vec = %v", vec)
		}
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls)
	}

	if _, err := e.Embed(ctx, "a dog"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times, want 2", provider.calls)
	}
}

func TestCachedEmbedderDoesNotCacheFailures(t *testing.T) {
	cache, _ := newRedisCache(t)
	provider := &fakeEmbedder{err: errors.New("boom")}
	e := NewCachedEmbedder(provider, cache, "bge-m3")

	for i := 0; i < 2; i++ {
		if _, err := e.Embed(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times, want 2", provider.calls)
	}
}

func TestCachedEmbedderSurvivesCacheOutage(t *testing.T) {
	cache, srv := newRedisCache(t)
	srv.Close()
	provider := &fakeEmbedder{vec: []float32{1}}
	e := NewCachedEmbedder(provider, cache, "bge-m3")

	vec, err := e.Embed(context.Background(), "x")
	if err != nil || len(vec) != 1 {
		t.Fatalf("expected provider result despite cache outage, got %v %v", vec, err)
	}
}
