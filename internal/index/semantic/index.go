// Package semantic provides a vector similarity index over embedded record
// content. Embedding is delegated to an external provider; nearest-neighbor
// search runs on an in-process HNSW graph.
package semantic

import (
	"context"
	"fmt"
	"math"

	"github.com/coder/hnsw"
	"golang.org/x/sync/errgroup"

	"github.com/helios-eng/helios/internal/domain"
	"github.com/helios-eng/helios/internal/domain/search/result"
)

// Config holds HNSW graph parameters.
type Config struct {
	M        int // graph connectivity, default 16
	EfSearch int // search expansion factor, default 20
	// EmbedConcurrency bounds parallel single-text embedding calls during
	// build when the provider has no batch API. Default 4.
	EmbedConcurrency int
	// BatchSize is the number of texts per batch embedding call. Default 64.
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 20
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	return c
}

// Index answers nearest-neighbor queries over embedded record content.
// It is immutable after Build and safe for concurrent reads.
type Index struct {
	graph    *hnsw.Graph[int]
	records  []domain.Record
	embedder domain.Embedder
}

// Build embeds every record's content and constructs the HNSW graph, keyed by
// record ordinal. This is a one-time blocking startup step; a catalog update
// requires building a fresh index.
func Build(ctx context.Context, records []domain.Record, embedder domain.Embedder, cfg Config) (*Index, error) {
	cfg = cfg.withDefaults()

	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch

	vectors, err := embedAll(ctx, records, embedder, cfg)
	if err != nil {
		return nil, err
	}

	for i, vec := range vectors {
		normalizeInPlace(vec)
		graph.Add(hnsw.MakeNode(i, vec))
	}

	return &Index{graph: graph, records: records, embedder: embedder}, nil
}

// Search embeds the query and returns up to k nearest records by cosine
// similarity, best first. A failing embedding provider surfaces as
// domain.ErrRetrievalUnavailable; it is never masked as an empty result.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]result.Result, error) {
	if len(idx.records) == 0 || k <= 0 {
		return []result.Result{}, nil
	}

	emb, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrievalUnavailable, err)
	}

	vec := make([]float32, len(emb.Embedding))
	copy(vec, emb.Embedding)
	normalizeInPlace(vec)

	nodes := idx.graph.Search(vec, k)

	results := make([]result.Result, 0, len(nodes))
	for _, node := range nodes {
		if node.Key < 0 || node.Key >= len(idx.records) {
			continue
		}
		// Cosine similarity from cosine distance.
		score := 1 - float64(idx.graph.Distance(vec, node.Value))
		results = append(results, result.FromRecord(idx.records[node.Key], score))
	}
	return results, nil
}

// Len returns the number of indexed records.
func (idx *Index) Len() int { return len(idx.records) }

// embedAll vectorizes all record contents, preferring the provider's batch
// API and falling back to bounded-concurrency single calls.
func embedAll(ctx context.Context, records []domain.Record, embedder domain.Embedder, cfg Config) ([][]float32, error) {
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Content
	}

	if be, ok := embedder.(domain.BatchEmbedder); ok {
		return embedBatched(ctx, texts, be, cfg.BatchSize)
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.EmbedConcurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			res, err := embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed record %d: %w", i, err)
			}
			vectors[i] = res.Embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func embedBatched(ctx context.Context, texts []string, be domain.BatchEmbedder, batchSize int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		res, err := be.BatchEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed records [%d:%d]: %w", start, end, err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("embed records [%d:%d]: got %d vectors", start, end, len(res.Embeddings))
		}
		vectors = append(vectors, res.Embeddings...)
	}
	return vectors, nil
}

// normalizeInPlace scales a vector to unit length so cosine distance behaves
// consistently regardless of provider output scaling.
func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
