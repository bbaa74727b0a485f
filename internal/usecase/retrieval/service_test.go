package retrieval

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/helios-eng/helios/internal/catalog"
	"github.com/helios-eng/helios/internal/domain"
	"github.com/helios-eng/helios/internal/domain/search/mode"
	"github.com/helios-eng/helios/internal/domain/search/result"
	"github.com/helios-eng/helios/internal/index/keyword"
)

type fakeKeyword struct {
	results []result.Result
	err     error
	lastK   int
}

func (f *fakeKeyword) Search(_ string, k int) ([]result.Result, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return capList(f.results, k), nil
}

type fakeSemantic struct {
	results []result.Result
	err     error
	lastK   int
	calls   int
}

func (f *fakeSemantic) Search(_ context.Context, _ string, k int) ([]result.Result, error) {
	f.calls++
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return capList(f.results, k), nil
}

func capList(list []result.Result, k int) []result.Result {
	if len(list) > k {
		return list[:k]
	}
	return list
}

func newService(kw KeywordSearcher, sem SemanticSearcher, cfg Config) *Service {
	return New(kw, sem, cfg, zap.NewNop())
}

func resultList(ids ...string) []result.Result {
	out := make([]result.Result, len(ids))
	for i, id := range ids {
		out[i] = makeResult(id)
	}
	return out
}

func TestRetrieve_InvalidMode(t *testing.T) {
	svc := newService(&fakeKeyword{}, &fakeSemantic{}, Config{})
	_, err := svc.Retrieve(context.Background(), "query", 5, mode.Mode("ensemble"))
	if !errors.Is(err, domain.ErrInvalidMode) {
		t.Errorf("error = %v, want ErrInvalidMode", err)
	}
}

func TestRetrieve_EmptyQueryReturnsEmpty(t *testing.T) {
	sem := &fakeSemantic{results: resultList("a")}
	svc := newService(&fakeKeyword{results: resultList("b")}, sem, Config{})

	for _, m := range []mode.Mode{mode.Hybrid, mode.Semantic, mode.Keyword} {
		res, err := svc.Retrieve(context.Background(), "   ", 5, m)
		if err != nil {
			t.Fatalf("mode %s: %v", m, err)
		}
		if len(res.Records) != 0 {
			t.Errorf("mode %s: got %d records, want 0", m, len(res.Records))
		}
	}
	if sem.calls != 0 {
		t.Errorf("semantic index queried %d times for empty query", sem.calls)
	}
}

func TestRetrieve_NoDuplicateIdentities(t *testing.T) {
	svc := newService(
		&fakeKeyword{results: resultList("b", "a", "c")},
		&fakeSemantic{results: resultList("a", "b", "d")},
		Config{},
	)

	res, err := svc.Retrieve(context.Background(), "query", 10, mode.Hybrid)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, r := range res.Records {
		if seen[r.Identity()] {
			t.Errorf("duplicate identity %q in hybrid result", r.Identity())
		}
		seen[r.Identity()] = true
	}
}

func TestRetrieve_BoundedSize(t *testing.T) {
	svc := newService(
		&fakeKeyword{results: resultList("a", "b", "c", "d", "e")},
		&fakeSemantic{results: resultList("f", "g", "h", "i", "j")},
		Config{},
	)

	for _, m := range []mode.Mode{mode.Hybrid, mode.Semantic, mode.Keyword} {
		for _, k := range []int{1, 3, 100} {
			res, err := svc.Retrieve(context.Background(), "query", k, m)
			if err != nil {
				t.Fatalf("mode %s k=%d: %v", m, k, err)
			}
			if len(res.Records) > k {
				t.Errorf("mode %s k=%d: %d records", m, k, len(res.Records))
			}
		}
	}
}

func TestRetrieve_FusionSupersetProperty(t *testing.T) {
	kw := &fakeKeyword{results: resultList("a", "b", "c")}
	sem := &fakeSemantic{results: resultList("c", "d", "e")}
	svc := newService(kw, sem, Config{})

	res, err := svc.Retrieve(context.Background(), "query", 4, mode.Hybrid)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	source := map[string]bool{"a": true, "b": true, "c": true, "d": true, "e": true}
	for _, r := range res.Records {
		if !source[r.Identity()] {
			t.Errorf("fusion invented candidate %q", r.Identity())
		}
	}
}

func TestRetrieve_KeywordFailureDegradesToSemantic(t *testing.T) {
	svc := newService(
		&fakeKeyword{err: errors.New("index corrupt")},
		&fakeSemantic{results: resultList("a", "b", "c")},
		Config{},
	)

	res, err := svc.Retrieve(context.Background(), "query", 2, mode.Hybrid)
	if err != nil {
		t.Fatalf("expected degraded result, got error: %v", err)
	}
	if res.Mode != mode.Semantic {
		t.Errorf("degraded mode = %s, want semantic", res.Mode)
	}
	if got := identities(res.Records); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("degraded records = %v", got)
	}
}

func TestRetrieve_SemanticFailureIsFatal(t *testing.T) {
	semErr := domain.ErrRetrievalUnavailable
	svc := newService(
		&fakeKeyword{results: resultList("a")},
		&fakeSemantic{err: semErr},
		Config{},
	)

	_, err := svc.Retrieve(context.Background(), "query", 2, mode.Hybrid)
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Errorf("error = %v, want ErrRetrievalUnavailable", err)
	}
}

func TestRetrieve_SubQueriesUseCandidateFactor(t *testing.T) {
	kw := &fakeKeyword{}
	sem := &fakeSemantic{}
	svc := newService(kw, sem, Config{CandidateFactor: 3})

	if _, err := svc.Retrieve(context.Background(), "query", 4, mode.Hybrid); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if kw.lastK != 12 || sem.lastK != 12 {
		t.Errorf("sub-query k = (%d, %d), want (12, 12)", kw.lastK, sem.lastK)
	}
}

func TestRetrieve_CandidateFactorRecovery(t *testing.T) {
	// "x" sits just outside k=2 in both lists. With the source-faithful
	// factor of 1 it never reaches fusion; with factor 3 its two mid-rank
	// appearances outscore single-list leaders.
	kw := &fakeKeyword{results: resultList("c", "d", "e", "x")}
	sem := &fakeSemantic{results: resultList("a", "b", "f", "x")}

	faithful := newService(kw, sem, Config{CandidateFactor: 1})
	res, err := faithful.Retrieve(context.Background(), "query", 2, mode.Hybrid)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	for _, id := range identities(res.Records) {
		if id == "x" {
			t.Fatal("factor 1 should not surface x")
		}
	}

	inflated := newService(kw, sem, Config{CandidateFactor: 3})
	res, err = inflated.Retrieve(context.Background(), "query", 2, mode.Hybrid)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	found := false
	for _, id := range identities(res.Records) {
		if id == "x" {
			found = true
		}
	}
	if !found {
		t.Errorf("factor 3 should recover x, got %v", identities(res.Records))
	}
}

func TestCompare_HybridMatchesRetrieve(t *testing.T) {
	svc := newService(
		&fakeKeyword{results: resultList("b", "c", "a")},
		&fakeSemantic{results: resultList("a", "d", "b")},
		Config{},
	)

	cmp, err := svc.Compare(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	res, err := svc.Retrieve(context.Background(), "query", 3, mode.Hybrid)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !reflect.DeepEqual(cmp.Hybrid, identities(res.Records)) {
		t.Errorf("compare hybrid %v != retrieve hybrid %v", cmp.Hybrid, identities(res.Records))
	}
}

func TestCompare_FusionOnly(t *testing.T) {
	// With factor 1 the superset property forces FusionOnly empty.
	kw := &fakeKeyword{results: resultList("c", "d", "x")}
	sem := &fakeSemantic{results: resultList("a", "b", "x")}

	faithful := newService(kw, sem, Config{CandidateFactor: 1})
	cmp, err := faithful.Compare(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(cmp.FusionOnly) != 0 {
		t.Errorf("factor 1 FusionOnly = %v, want empty", cmp.FusionOnly)
	}

	// With an inflated pool, x (rank 3 in both sub-lists) enters the hybrid
	// top-2 while being absent from both individual top-2 lists.
	inflated := newService(kw, sem, Config{CandidateFactor: 3})
	cmp, err = inflated.Compare(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if !reflect.DeepEqual(cmp.FusionOnly, []string{"x"}) {
		t.Errorf("FusionOnly = %v, want [x]", cmp.FusionOnly)
	}
}

func TestSwap_QueriesSeeNewSnapshot(t *testing.T) {
	svc := newService(
		&fakeKeyword{results: resultList("old")},
		&fakeSemantic{results: resultList("old")},
		Config{},
	)

	svc.Swap(&fakeKeyword{results: resultList("new")}, &fakeSemantic{results: resultList("new")})

	res, err := svc.Retrieve(context.Background(), "query", 5, mode.Hybrid)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got := identities(res.Records); !reflect.DeepEqual(got, []string{"new"}) {
		t.Errorf("records after swap = %v", got)
	}
}

// TestRetrieve_EndToEndScenario runs the two-material catalog through the
// real normalizer and BM25 index, with a semantic stub standing in for the
// embedding provider.
func TestRetrieve_EndToEndScenario(t *testing.T) {
	cat, err := catalog.Parse([]byte(`{
  "Aluminum 6061-T6": {
    "category": "Aluminum Alloys",
    "density": "2.70",
    "tensile_strength_yield": 276
  },
  "Titanium Ti-6Al-4V": {
    "category": "Titanium Alloys",
    "density": 4.43,
    "tensile_strength_yield": 880
  }
}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	records := catalog.Normalize(cat)
	kwIndex := keyword.New(records)

	// Semantic stub: high-strength phrasing lands nearest the titanium record.
	sem := &fakeSemantic{results: []result.Result{
		result.FromRecord(records[1], 0.92),
		result.FromRecord(records[0], 0.41),
	}}
	svc := newService(kwIndex, sem, Config{})

	res, err := svc.Retrieve(context.Background(), "density 2.70", 1, mode.Keyword)
	if err != nil {
		t.Fatalf("keyword retrieve failed: %v", err)
	}
	if got := identities(res.Records); !reflect.DeepEqual(got, []string{"Aluminum 6061-T6"}) {
		t.Errorf("keyword top-1 = %v, want Aluminum 6061-T6", got)
	}
	if res.Records[0].SourceLabel() != "Materials Database - Aluminum 6061-T6" {
		t.Errorf("SourceLabel = %q", res.Records[0].SourceLabel())
	}

	res, err = svc.Retrieve(context.Background(), "materials over 800 MPa yield strength", 2, mode.Semantic)
	if err != nil {
		t.Fatalf("semantic retrieve failed: %v", err)
	}
	if len(res.Records) == 0 || res.Records[0].Identity() != "Titanium Ti-6Al-4V" {
		t.Errorf("semantic top result = %v, want Titanium Ti-6Al-4V", identities(res.Records))
	}

	// Empty-catalog behavior.
	emptyCat, err := catalog.Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	emptySvc := newService(keyword.New(catalog.Normalize(emptyCat)), &fakeSemantic{}, Config{})
	res, err = emptySvc.Retrieve(context.Background(), "anything", 5, mode.Hybrid)
	if err != nil {
		t.Fatalf("empty catalog retrieve failed: %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("empty catalog returned %d records", len(res.Records))
	}
}
