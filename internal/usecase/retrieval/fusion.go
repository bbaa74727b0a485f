package retrieval

import (
	"sort"

	"github.com/helios-eng/helios/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// Weights scale each sub-index's rank contribution. They need not sum to 1;
// only the ratio matters for ordering.
type Weights struct {
	Semantic float64
	Keyword  float64
}

// DefaultWeights favor semantic recall while keeping literal keyword matches
// influential.
var DefaultWeights = Weights{Semantic: 0.6, Keyword: 0.4}

// fuseWeightedRRF merges semantic and keyword results by weighted reciprocal
// rank: score(r) = Σ weight_i / (rrfK + rank_i + 1) over the lists r appears
// in. Absence from a list contributes nothing. The output is deduplicated by
// identity, sorted by fused score descending (ties: records found by both
// methods first, then identity), and truncated to topK.
func fuseWeightedRRF(semantic, keyword []result.Result, w Weights, topK int) []result.Result {
	if len(semantic) == 0 && len(keyword) == 0 {
		return []result.Result{}
	}

	type scored struct {
		res    result.Result
		score  float64
		inBoth bool
	}
	merged := make(map[string]*scored, len(semantic)+len(keyword))

	for rank, r := range semantic {
		merged[r.Identity()] = &scored{
			res:   r,
			score: w.Semantic / float64(rrfK+rank+1),
		}
	}

	for rank, r := range keyword {
		s := w.Keyword / float64(rrfK+rank+1)
		if existing, ok := merged[r.Identity()]; ok {
			existing.score += s
			existing.inBoth = true
		} else {
			merged[r.Identity()] = &scored{res: r, score: s}
		}
	}

	fused := make([]*scored, 0, len(merged))
	for _, s := range merged {
		fused = append(fused, s)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		if fused[i].inBoth != fused[j].inBoth {
			return fused[i].inBoth
		}
		return fused[i].res.Identity() < fused[j].res.Identity()
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}

	results := make([]result.Result, len(fused))
	for i, s := range fused {
		results[i] = s.res.WithScore(s.score)
	}
	return results
}
