package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Manager is the caller-facing orchestration layer on top of a Store.
// It adds epoch and timestamp stamping, multi-category search fan-out,
// document ingestion, per-category statistics, and bulk wipe semantics.
//
// Operations run to completion before the next is accepted; there are no
// background workers. The epoch counter is mutex-guarded so a manager can
// be shared across goroutines that the enclosing system may run.
type Manager struct {
	store  Store
	config *Config

	mu    sync.Mutex
	epoch EpochInfo
}

// Config holds Manager configuration.
type Config struct {
	// Split controls CreateChunks segmentation. nil uses
	// DefaultSplitOptions.
	Split *SplitOptions

	// DefaultNResults is used when SearchOptions leave NResults unset.
	// Default: 5
	DefaultNResults int

	// MinSimilarity is the default score floor for Search and
	// RelevantContext, on the (0,1] exp(-distance) scale.
	// Default: 0 (keep everything)
	MinSimilarity float64

	// ContextResults is how many results RelevantContext requests.
	// Default: 3
	ContextResults int
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	Split:           DefaultSplitOptions,
	DefaultNResults: 5,
	MinSimilarity:   0,
	ContextResults:  3,
}

// NewManager creates a Manager over the given store. A nil config uses
// DefaultConfig. The first epoch starts at 1.
func NewManager(store Store, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig
	}
	return &Manager{
		store:  store,
		config: config,
		epoch: EpochInfo{
			EpochNumber: 1,
			StartTime:   time.Now(),
		},
	}
}

// Create stores a new memory, stamping the creation timestamp and current
// epoch into its metadata.
func (m *Manager) Create(ctx context.Context, category, content string, metadata map[string]any) (*Memory, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("create memory in %q: empty content", category)
	}

	md := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		md[k] = v
	}
	md["timestamp"] = time.Now().Format(time.RFC3339)
	md["epoch"] = m.CurrentEpoch().EpochNumber

	mem, err := m.store.Add(ctx, category, content, md)
	if err != nil {
		return nil, fmt.Errorf("create memory in %q: %w", category, err)
	}
	return mem, nil
}

// SearchOptions configures a Search call.
type SearchOptions struct {
	// Categories restricts the search. nil or empty means all known
	// categories; otherwise only the listed categories that actually
	// exist are searched.
	Categories []string

	// NResults bounds the final result count. Each searched category
	// contributes up to NResults candidates before the global ranking,
	// so the candidate pool favors recall over per-category fairness.
	NResults int

	// MinSimilarity drops results with SimilarityScore <= this value.
	// 0 falls back to the Config floor; a negative value disables the
	// floor even when the Config sets one.
	MinSimilarity float64

	// Where is a conjunctive metadata equality filter applied by the
	// index before ranking.
	Where map[string]string
}

// Search runs a similarity query across one, several, or all categories
// and returns the best NResults matches ranked by descending score.
func (m *Manager) Search(ctx context.Context, query string, opts *SearchOptions) ([]SearchResult, error) {
	o := m.searchOptions(opts)

	categories := m.resolveCategories(o.Categories)
	if len(categories) == 0 {
		return nil, nil
	}

	var pool []SearchResult
	for _, category := range categories {
		results, err := m.store.Search(ctx, category, query, o.NResults, o.Where)
		if err != nil {
			return nil, fmt.Errorf("search category %q: %w", category, err)
		}
		pool = append(pool, results...)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].SimilarityScore > pool[j].SimilarityScore
	})

	out := make([]SearchResult, 0, len(pool))
	for _, r := range pool {
		if r.SimilarityScore <= o.MinSimilarity {
			continue
		}
		out = append(out, r)
		if len(out) == o.NResults {
			break
		}
	}

	log.Printf("[MEMORY] Search %q across %d categories: %d results", truncateLog(query, 50), len(categories), len(out))
	return out, nil
}

func (m *Manager) searchOptions(opts *SearchOptions) SearchOptions {
	o := SearchOptions{}
	if opts != nil {
		o = *opts
	}
	if o.NResults <= 0 {
		o.NResults = m.config.DefaultNResults
	}
	if o.NResults <= 0 {
		o.NResults = 5
	}
	if o.MinSimilarity == 0 {
		o.MinSimilarity = m.config.MinSimilarity
	}
	if o.MinSimilarity < 0 {
		o.MinSimilarity = 0
	}
	return o
}

// resolveCategories maps the requested category list to the concrete
// categories to search: nothing requested means all known, otherwise the
// intersection of requested and known names.
func (m *Manager) resolveCategories(requested []string) []string {
	known := m.store.ListCategories()
	if len(requested) == 0 {
		return known
	}
	exists := make(map[string]bool, len(known))
	for _, name := range known {
		exists[name] = true
	}
	var out []string
	for _, name := range requested {
		if exists[name] {
			out = append(out, name)
		}
	}
	return out
}

// Get fetches one memory by category and ID.
func (m *Manager) Get(ctx context.Context, category, id string) (*Memory, error) {
	return m.store.Get(ctx, category, id)
}

// GetRecent returns up to nResults memories from a category, most
// recently created first.
func (m *Manager) GetRecent(ctx context.Context, category string, nResults int, where map[string]string) ([]Memory, error) {
	return m.store.GetRecent(ctx, category, nResults, where)
}

// Update replaces a memory's content and/or metadata. Content updates
// re-embed; metadata-only updates do not.
func (m *Manager) Update(ctx context.Context, category, id, content string, metadata map[string]any) error {
	return m.store.Update(ctx, category, id, content, metadata)
}

// Delete removes one memory. ErrNotFound when it does not exist.
func (m *Manager) Delete(ctx context.Context, category, id string) error {
	return m.store.Delete(ctx, category, id)
}

// Count returns the number of memories in a category.
func (m *Manager) Count(category string) int {
	return m.store.Count(category)
}

// ListCategories returns all known category names.
func (m *Manager) ListCategories() []string {
	return m.store.ListCategories()
}

// IncrementEpoch starts a new epoch: the counter advances by one and the
// given metadata is attached to the new epoch. Memories created from now
// on are stamped with the new epoch number.
func (m *Manager) IncrementEpoch(metadata map[string]any) EpochInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch = EpochInfo{
		EpochNumber: m.epoch.EpochNumber + 1,
		StartTime:   time.Now(),
		Metadata:    metadata,
	}
	log.Printf("[MEMORY] Starting epoch %d", m.epoch.EpochNumber)
	return m.epoch
}

// CurrentEpoch returns the current epoch.
func (m *Manager) CurrentEpoch() EpochInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// truncateLog shortens text for log lines.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
