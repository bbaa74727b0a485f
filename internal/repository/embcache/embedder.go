// Package embcache decorates an embedder with an in-process LRU cache so
// repeated questions do not pay for a second provider round trip.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/helios-eng/helios/internal/domain"
	"github.com/helios-eng/helios/internal/metrics"
)

// Embedder caches query embeddings in front of another embedder. Cached
// entries report zero token usage since no provider call was made.
type Embedder struct {
	inner domain.Embedder
	cache *lru.Cache[string, []float32]
	model string
}

// New wraps inner with an LRU of the given size. The model name is part of
// the cache key so a model change invalidates old entries.
func New(inner domain.Embedder, model string, size int) (*Embedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache, model: model}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := e.key(text)

	if vec, ok := e.cache.Get(key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}

	e.cache.Add(key, res.Embedding)
	return res, nil
}

// BatchEmbed forwards to the inner provider's batch API when it has one.
// Batch calls happen only during index builds, where every text is new, so
// they bypass the cache. Providers without a batch API fall back to cached
// single calls.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := e.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		out.Embeddings[i] = res.Embedding
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// HealthCheck forwards to the inner provider's probe when it has one.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
