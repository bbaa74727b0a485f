package health

import "context"

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexStats reports the size of the current index snapshot.
type IndexStats interface {
	Len() int
}
