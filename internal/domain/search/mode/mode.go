package mode

// Mode is the retrieval strategy.
type Mode string

// Retrieval mode constants.
const (
	// Hybrid fuses semantic and keyword results by weighted reciprocal rank.
	Hybrid   Mode = "hybrid"
	Semantic Mode = "semantic"
	Keyword  Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic || m == Keyword
}
