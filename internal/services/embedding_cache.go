package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// EmbeddingCache stores vectors by key. A miss returns (nil, false, nil).
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// RedisEmbeddingCache keeps vectors as little-endian float32 blobs with a TTL.
type RedisEmbeddingCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisEmbeddingCache(client *redis.Client, prefix string, ttl time.Duration) *RedisEmbeddingCache {
	if prefix == "" {
		prefix = "picquest:embedding:"
	}
	return &RedisEmbeddingCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisEmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *RedisEmbeddingCache) Set(ctx context.Context, key string, vec []float32) error {
	if err := c.client.Set(ctx, c.prefix+key, encodeVector(vec), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("cache: corrupt vector of %d bytes", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, nil
}

// CachedEmbedder serves repeated texts from cache. Cache failures are logged
// and fall through to the wrapped embedder; failed embeddings are never cached.
type CachedEmbedder struct {
	next  Embedder
	cache EmbeddingCache
	model string
}

func NewCachedEmbedder(next Embedder, cache EmbeddingCache, model string) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := embeddingCacheKey(e.model, text)

	vec, hit, err := e.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "embedding cache read failed", "error", err)
	}
	if hit {
		return vec, nil
	}

	vec, err = e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) > 0 {
		if err := e.cache.Set(ctx, key, vec); err != nil {
			slog.WarnContext(ctx, "embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

func embeddingCacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
