package memory

import "time"

// Memory is one stored unit of text, scoped to a category.
//
// IDs are decimal strings assigned from a monotonically increasing
// per-category counter; they are unique within a category, not globally,
// and are never reused after deletion. Metadata created through
// Manager.Create always carries "timestamp" (RFC 3339 creation time) and
// "epoch" (the manager's epoch counter at creation).
type Memory struct {
	ID       string
	Content  string
	Category string
	Metadata map[string]any
}

// SearchResult pairs a memory with its similarity to a query.
// Constructed per query, never persisted. Scores are in (0, 1];
// higher means more similar (see the Store contract for the transform).
type SearchResult struct {
	Memory
	SimilarityScore float64
}

// EpochInfo describes one operational phase of a Manager. The first epoch
// is 1; the counter only advances, and never resets while the manager
// instance lives.
type EpochInfo struct {
	EpochNumber int
	StartTime   time.Time
	Metadata    map[string]any
}

// Chunk is a bounded slice of a larger document produced by Split.
// Header is the section heading the chunk fell under, empty for content
// that preceded any heading.
type Chunk struct {
	Header  string
	Content string
}
