package semantic

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/helios-eng/helios/internal/domain"
)

// fakeEmbedder maps texts onto a 3-axis space by keyword counting, so
// "nearest" is predictable without a real provider.
type fakeEmbedder struct {
	calls atomic.Int64
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: axisVector(text)}, nil
}

func axisVector(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, 3)
	for i, term := range []string{"aluminum", "titanium", "steel"} {
		vec[i] = float32(strings.Count(lower, term)) + 0.01
	}
	return vec
}

// batchEmbedder adds a batch API on top of fakeEmbedder.
type batchEmbedder struct {
	fakeEmbedder
	batchCalls atomic.Int64
}

func (b *batchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	b.batchCalls.Add(1)
	out := domain.BatchEmbeddingResult{}
	for _, t := range texts {
		out.Embeddings = append(out.Embeddings, axisVector(t))
	}
	return out, nil
}

func testRecords() []domain.Record {
	return []domain.Record{
		{Identity: "Aluminum 6061-T6", Content: "aluminum aluminum alloy datasheet", Ordinal: 0},
		{Identity: "Titanium Ti-6Al-4V", Content: "titanium titanium alloy datasheet", Ordinal: 1},
		{Identity: "Steel 4140", Content: "steel steel alloy datasheet", Ordinal: 2},
	}
}

func TestBuildAndSearch(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, err := Build(context.Background(), testRecords(), emb, Config{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", idx.Len())
	}

	results, err := idx.Search(context.Background(), "titanium aerospace alloy", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Identity() != "Titanium Ti-6Al-4V" {
		t.Errorf("nearest = %q, want Titanium Ti-6Al-4V", results[0].Identity())
	}
	if results[0].Score() < results[1].Score() {
		t.Errorf("scores not descending: %f < %f", results[0].Score(), results[1].Score())
	}
}

func TestBuild_UsesBatchAPI(t *testing.T) {
	emb := &batchEmbedder{}
	if _, err := Build(context.Background(), testRecords(), emb, Config{BatchSize: 2}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := emb.batchCalls.Load(); got != 2 {
		t.Errorf("batch calls = %d, want 2 (3 records, batch size 2)", got)
	}
	if got := emb.calls.Load(); got != 0 {
		t.Errorf("single embed calls = %d, want 0", got)
	}
}

func TestBuild_EmbedderFailure(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("provider down")}
	if _, err := Build(context.Background(), testRecords(), emb, Config{}); err == nil {
		t.Fatal("expected build error when embedder fails")
	}
}

func TestSearch_ProviderFailureIsRetrievalUnavailable(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, err := Build(context.Background(), testRecords(), emb, Config{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	emb.err = errors.New("connection refused")
	_, err = idx.Search(context.Background(), "anything", 3)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Errorf("error %v does not wrap ErrRetrievalUnavailable", err)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, err := Build(context.Background(), nil, emb, Config{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := idx.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
	if got := emb.calls.Load(); got != 0 {
		t.Errorf("embedder called %d times on empty index", got)
	}
}

func TestSearch_BoundedByK(t *testing.T) {
	idx, err := Build(context.Background(), testRecords(), &fakeEmbedder{}, Config{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	results, err := idx.Search(context.Background(), "alloy datasheet", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) > 2 {
		t.Errorf("got %d results, want at most 2", len(results))
	}
}
