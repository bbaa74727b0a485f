package result

import "github.com/helios-eng/helios/internal/domain"

// Result is a single retrieval hit.
type Result struct {
	identity    string
	score       float64
	content     string
	sourceLabel string
	category    string
	attributes  map[string]float64
}

// New creates a retrieval result.
func New(
	identity string, score float64, content string,
	sourceLabel, category string, attributes map[string]float64,
) Result {
	return Result{
		identity: identity, score: score, content: content,
		sourceLabel: sourceLabel, category: category, attributes: attributes,
	}
}

// FromRecord creates a result for a catalog record with the given score.
func FromRecord(rec domain.Record, score float64) Result {
	return Result{
		identity:    rec.Identity,
		score:       score,
		content:     rec.Content,
		sourceLabel: rec.SourceLabel,
		category:    rec.Category,
		attributes:  rec.Attributes,
	}
}

// Identity returns the material's canonical name.
func (r *Result) Identity() string { return r.identity }

// Score returns the relevance score (higher is better).
func (r *Result) Score() float64 { return r.score }

// Content returns the rendered datasheet text.
func (r *Result) Content() string { return r.content }

// SourceLabel returns the citation string for the record.
func (r *Result) SourceLabel() string { return r.sourceLabel }

// Category returns the material classification.
func (r *Result) Category() string { return r.category }

// Attributes returns the record's numeric properties.
func (r *Result) Attributes() map[string]float64 { return r.attributes }

// WithScore returns a copy of the result carrying a different score.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}
