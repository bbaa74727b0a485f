package domain

// Record is one normalized row of the materials catalog. Records are derived
// once at index-build time and are immutable for the lifetime of the indices;
// Identity is unique across the catalog and serves as the deduplication key.
type Record struct {
	// Identity is the material's canonical name.
	Identity string
	// Category is an optional classification, e.g. "Aluminum Alloys".
	Category string
	// Content is the rendered datasheet text indexed by both search methods.
	Content string
	// Attributes holds only the numeric properties that parsed as floats.
	Attributes map[string]float64
	// SourceLabel is the citation string, "Materials Database - <Identity>".
	SourceLabel string
	// Ordinal is the record's position in the catalog, used for stable
	// tie-breaking in keyword ranking.
	Ordinal int
}
