// Package retrieval implements the hybrid merger: parallel semantic and
// keyword sub-queries fused into a single ranked, deduplicated, bounded
// result list.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/helios-eng/helios/internal/domain"
	"github.com/helios-eng/helios/internal/domain/search/mode"
	"github.com/helios-eng/helios/internal/domain/search/result"
)

// Config holds fusion policy settings.
type Config struct {
	// Weights scale sub-index rank contributions. Zero value means defaults.
	Weights Weights
	// CandidateFactor inflates each sub-query to k*CandidateFactor candidates
	// before fusing down to k. 1 (the default) preserves the behavior of
	// querying each sub-index for exactly k; larger values trade precision
	// for recall on records ranked just outside k in one list.
	CandidateFactor int
}

func (c Config) withDefaults() Config {
	if c.Weights.Semantic == 0 && c.Weights.Keyword == 0 {
		c.Weights = DefaultWeights
	}
	if c.CandidateFactor <= 0 {
		c.CandidateFactor = 1
	}
	return c
}

// snapshot pairs the two sub-indices built from one catalog derivation.
// Queries always read a single snapshot, so a rebuild can never show them a
// half-updated index pair.
type snapshot struct {
	keyword  KeywordSearcher
	semantic SemanticSearcher
}

// Result is one retrieval outcome. Mode reports how the result was actually
// served: a hybrid call that degraded to semantic-only is labeled semantic.
type Result struct {
	Mode    mode.Mode
	Records []result.Result
}

// Comparison holds the three identity lists for one query plus the hybrid
// identities absent from both individual top-k lists. With CandidateFactor 1
// FusionOnly is always empty; with an inflated pool it shows the records only
// fusion surfaced.
type Comparison struct {
	Query      string
	Semantic   []string
	Keyword    []string
	Hybrid     []string
	FusionOnly []string
}

// Service answers retrieval queries over an immutable index snapshot.
type Service struct {
	snap   atomic.Pointer[snapshot]
	cfg    Config
	logger *zap.Logger
}

// New creates a retrieval service over the given sub-indices.
func New(keyword KeywordSearcher, semantic SemanticSearcher, cfg Config, logger *zap.Logger) *Service {
	s := &Service{cfg: cfg.withDefaults(), logger: logger}
	s.snap.Store(&snapshot{keyword: keyword, semantic: semantic})
	return s
}

// Swap atomically replaces both sub-indices with ones built from a fresh
// catalog derivation. In-flight queries keep the snapshot they started with.
func (s *Service) Swap(keyword KeywordSearcher, semantic SemanticSearcher) {
	s.snap.Store(&snapshot{keyword: keyword, semantic: semantic})
}

// Retrieve runs a query in the given mode and returns at most k distinct
// records ordered by descending relevance.
//
// In hybrid mode both sub-indices are queried concurrently. A keyword
// sub-query failure degrades the call to semantic-only (the result mode says
// so); a semantic failure is fatal and surfaces ErrRetrievalUnavailable,
// because the semantic index is load-bearing for the surrounding system.
func (s *Service) Retrieve(ctx context.Context, query string, k int, m mode.Mode) (Result, error) {
	if !m.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrInvalidMode, m)
	}
	if strings.TrimSpace(query) == "" || k <= 0 {
		return Result{Mode: m, Records: []result.Result{}}, nil
	}

	snap := s.snap.Load()

	switch m {
	case mode.Semantic:
		records, err := snap.semantic.Search(ctx, query, k)
		if err != nil {
			return Result{}, fmt.Errorf("semantic search: %w", err)
		}
		return Result{Mode: mode.Semantic, Records: truncate(records, k)}, nil

	case mode.Keyword:
		records, err := snap.keyword.Search(query, k)
		if err != nil {
			return Result{}, fmt.Errorf("keyword search: %w", err)
		}
		return Result{Mode: mode.Keyword, Records: truncate(records, k)}, nil

	default:
		return s.retrieveHybrid(ctx, snap, query, k)
	}
}

func (s *Service) retrieveHybrid(ctx context.Context, snap *snapshot, query string, k int) (Result, error) {
	kInternal := k * s.cfg.CandidateFactor

	var (
		wg     sync.WaitGroup
		semRes []result.Result
		semErr error
		kwRes  []result.Result
		kwErr  error
	)

	// The two sub-queries share no mutable state; the merge below only needs
	// both complete lists, regardless of arrival order.
	wg.Add(2)
	go func() {
		defer wg.Done()
		semRes, semErr = snap.semantic.Search(ctx, query, kInternal)
	}()
	go func() {
		defer wg.Done()
		kwRes, kwErr = snap.keyword.Search(query, kInternal)
	}()
	wg.Wait()

	if semErr != nil {
		return Result{}, fmt.Errorf("semantic search: %w", semErr)
	}
	if kwErr != nil {
		s.logger.Warn("keyword sub-query failed, serving semantic-only",
			zap.Error(kwErr),
		)
		return Result{Mode: mode.Semantic, Records: truncate(semRes, k)}, nil
	}

	fused := fuseWeightedRRF(semRes, kwRes, s.cfg.Weights, k)
	return Result{Mode: mode.Hybrid, Records: fused}, nil
}

// Compare runs the same query through all three modes and reports the
// identity lists side by side. Purely observational; the hybrid list is
// exactly what Retrieve in hybrid mode returns for the same query and k.
func (s *Service) Compare(ctx context.Context, query string, k int) (Comparison, error) {
	semantic, err := s.Retrieve(ctx, query, k, mode.Semantic)
	if err != nil {
		return Comparison{}, err
	}
	keyword, err := s.Retrieve(ctx, query, k, mode.Keyword)
	if err != nil {
		return Comparison{}, err
	}
	hybrid, err := s.Retrieve(ctx, query, k, mode.Hybrid)
	if err != nil {
		return Comparison{}, err
	}

	cmp := Comparison{
		Query:    query,
		Semantic: identities(semantic.Records),
		Keyword:  identities(keyword.Records),
		Hybrid:   identities(hybrid.Records),
	}

	seen := make(map[string]bool, len(cmp.Semantic)+len(cmp.Keyword))
	for _, id := range cmp.Semantic {
		seen[id] = true
	}
	for _, id := range cmp.Keyword {
		seen[id] = true
	}
	cmp.FusionOnly = []string{}
	for _, id := range cmp.Hybrid {
		if !seen[id] {
			cmp.FusionOnly = append(cmp.FusionOnly, id)
		}
	}

	return cmp, nil
}

func truncate(records []result.Result, k int) []result.Result {
	if records == nil {
		return []result.Result{}
	}
	if len(records) > k {
		return records[:k]
	}
	return records
}

func identities(records []result.Result) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.Identity()
	}
	return ids
}
