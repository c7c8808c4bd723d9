package memory

import (
	"context"
	"errors"
)

// ErrNotFound reports that a memory or category does not exist. Checked
// with errors.Is; callers can distinguish "nothing to do" from a backing
// store failure.
var ErrNotFound = errors.New("memory: not found")

// Store is the vector storage backend contract.
// Implementations: chromem.Store (local, embedded). A production
// deployment can swap in a server-backed index behind the same contract.
//
// Failure model: read-oriented calls (Search, GetRecent, List) degrade to
// empty results when the backing index fails, so a broken index never
// crashes a read path. Write-oriented calls (Add, Update, Delete)
// propagate errors; persistence failures must not be silently swallowed.
type Store interface {
	// Add stores a new memory in the category's collection, creating the
	// collection if needed. Metadata values are sanitized to scalar
	// strings for the index (nil becomes "", non-primitives are
	// stringified); the returned Memory carries the caller's original
	// metadata.
	Add(ctx context.Context, category, content string, metadata map[string]any) (*Memory, error)

	// Search returns up to nResults memories ranked by descending
	// similarity. Unknown or empty categories yield an empty result, not
	// an error. The where filter is a conjunctive metadata equality
	// filter applied before ranking.
	Search(ctx context.Context, category, query string, nResults int, where map[string]string) ([]SearchResult, error)

	// GetRecent returns up to nResults memories, most recently inserted
	// first. Empty for unknown categories.
	GetRecent(ctx context.Context, category string, nResults int, where map[string]string) ([]Memory, error)

	// Get fetches one memory by ID. Returns ErrNotFound when the category
	// or ID is unknown. Metadata values read back from the index are
	// strings (the sanitized form written by Add).
	Get(ctx context.Context, category, id string) (*Memory, error)

	// Update replaces a memory's content and/or metadata. Content updates
	// re-embed; metadata-only updates reuse the stored embedding. Calling
	// with neither is a no-op success.
	Update(ctx context.Context, category, id, content string, metadata map[string]any) error

	// Delete removes one memory. ErrNotFound when it does not exist.
	Delete(ctx context.Context, category, id string) error

	// List enumerates a category's memories in insertion order, optionally
	// filtered by metadata equality, up to limit (0 = no limit). Empty for
	// unknown categories. Implementations tracking insertion order outside
	// the index may omit a memory whose order record was lost to a crash;
	// such memories stay searchable.
	List(ctx context.Context, category string, where map[string]string, limit int) ([]Memory, error)

	// DeleteCollection removes a whole category: the persisted collection
	// and the in-memory mapping entry. ErrNotFound for unknown categories.
	DeleteCollection(ctx context.Context, category string) error

	// ListCategories returns all known category names.
	ListCategories() []string

	// Count returns the number of memories in a category, 0 if unknown.
	Count(category string) int
}

// Embedder converts text to vector embeddings.
// Implementations: mock.Embedder (testing), openai.Embedder (API),
// onnx.Embedder (local model), cached.Embedder (ristretto decorator).
//
// Embedding is a blocking call with no retries; callers needing timeouts
// or cancellation pass them through ctx.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
