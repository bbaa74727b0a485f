package retrieval

import (
	"context"

	"github.com/helios-eng/helios/internal/domain/search/result"
)

// KeywordSearcher is the term-frequency sub-index contract.
type KeywordSearcher interface {
	Search(query string, k int) ([]result.Result, error)
}

// SemanticSearcher is the vector similarity sub-index contract. A failing
// embedding backend must surface an error wrapping
// domain.ErrRetrievalUnavailable, never an empty list.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, k int) ([]result.Result, error)
}
