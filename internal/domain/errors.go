package domain

import "errors"

var (
	// ErrRetrievalUnavailable signals that the embedding/vector backend could
	// not be reached or timed out. Surfaced to the caller, never retried here.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrAnswerProviderError signals a chat completion provider failure.
	ErrAnswerProviderError = errors.New("answer provider error")
	// ErrInvalidMode signals an unsupported retrieval mode.
	ErrInvalidMode = errors.New("invalid retrieval mode")
	// ErrMaterialNotFound signals a missing catalog entry.
	ErrMaterialNotFound = errors.New("material not found")
	// ErrUnsupportedFormat signals an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
