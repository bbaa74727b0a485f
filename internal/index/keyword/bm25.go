// Package keyword provides an in-process BM25 (Okapi) index over record
// content. The index is built once and immutable thereafter; it is safe for
// concurrent reads.
package keyword

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/helios-eng/helios/internal/domain"
	"github.com/helios-eng/helios/internal/domain/search/result"
)

// Okapi BM25 parameters, standard values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// tokenPattern splits text into alphanumeric runs. The same tokenizer is
// applied to record content at build time and to queries, which is what makes
// exact numeric phrases like "density 2.70 g/cc" match literally.
var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Index ranks catalog records by term-frequency relevance over their
// rendered content.
type Index struct {
	records   []domain.Record
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

// New builds a BM25 index over the given records. Construction is a one-time
// startup step, O(total tokens).
func New(records []domain.Record) *Index {
	idx := &Index{
		records:   records,
		termFreqs: make([]map[string]int, len(records)),
		docLens:   make([]int, len(records)),
		idf:       make(map[string]float64),
	}

	docFreq := make(map[string]int)
	var totalLen int

	for i, rec := range records {
		tokens := tokenize(rec.Content)
		idx.docLens[i] = len(tokens)
		totalLen += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			if tf[tok] == 0 {
				docFreq[tok]++
			}
			tf[tok]++
		}
		idx.termFreqs[i] = tf
	}

	if len(records) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(records))
	}

	n := float64(len(records))
	for term, df := range docFreq {
		idx.idf[term] = math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
	}

	return idx
}

// Search returns up to k records ranked by descending BM25 score. Ties break
// by catalog insertion order. An empty query, an empty index, or a query with
// no term overlap yields an empty list, never an error.
func (idx *Index) Search(query string, k int) ([]result.Result, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || len(idx.records) == 0 || k <= 0 {
		return []result.Result{}, nil
	}

	type hit struct {
		doc   int
		score float64
	}
	var hits []hit
	for i := range idx.records {
		if score := idx.score(i, queryTokens); score > 0 {
			hits = append(hits, hit{doc: i, score: score})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return idx.records[hits[a].doc].Ordinal < idx.records[hits[b].doc].Ordinal
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]result.Result, len(hits))
	for i, h := range hits {
		results[i] = result.FromRecord(idx.records[h.doc], h.score)
	}
	return results, nil
}

// Len returns the number of indexed records.
func (idx *Index) Len() int { return len(idx.records) }

func (idx *Index) score(doc int, queryTokens []string) float64 {
	tf := idx.termFreqs[doc]
	docLen := float64(idx.docLens[doc])

	var score float64
	for _, tok := range queryTokens {
		idf, ok := idx.idf[tok]
		if !ok {
			continue
		}
		freq := float64(tf[tok])
		if freq == 0 {
			continue
		}
		num := freq * (bm25K1 + 1)
		den := freq + bm25K1*(1-bm25B+bm25B*docLen/idx.avgDocLen)
		score += idf * num / den
	}
	return score
}

// tokenize lowercases text and splits it into alphanumeric runs, dropping
// single-character tokens.
func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := matches[:0]
	for _, m := range matches {
		if len(m) >= 2 {
			tokens = append(tokens, m)
		}
	}
	return tokens
}
