// Package chromem implements the memory.Store contract on chromem-go,
// a pure Go embedded vector database.
//
// Each category maps to one chromem collection. A persisted catalog file
// next to the index carries what chromem does not: per-category ID
// counters and document insertion order.
//
// Similarity policy: chromem reports cosine similarity s in [-1,1]; the
// store converts the distance d = 1-s to a score of exp(-d), bounded in
// (0,1] and monotonically decreasing in distance. MinSimilarity
// thresholds upstream are interpreted on this scale.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/driftlock/mnemo/memory"
)

// Config configures a Store.
type Config struct {
	// Path is the on-disk root for the index and catalog, typically one
	// directory per agent identity. Empty keeps everything in memory
	// (useful for tests).
	Path string

	// Embedder converts text to vectors for both writes and queries.
	// Required.
	Embedder memory.Embedder
}

// Store is a category-partitioned vector store backed by chromem-go.
type Store struct {
	db      *chromem.DB
	embed   chromem.EmbeddingFunc
	catalog *catalog

	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New opens (or creates) a store. With a non-empty Path, previously
// persisted collections and the catalog are loaded and reconciled, so
// the category map always reflects what is actually on disk.
func New(cfg Config) (*Store, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("chromem store: Embedder is required")
	}

	var db *chromem.DB
	var err error
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	}

	embed := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return cfg.Embedder.Embed(ctx, text)
	})

	cat, err := loadCatalog(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	s := &Store{
		db:          db,
		embed:       embed,
		catalog:     cat,
		collections: make(map[string]*chromem.Collection),
	}

	// Rebuild the category map from persisted collections. The embedding
	// func is not persisted by chromem, so re-attach ours.
	for name := range db.ListCollections() {
		col := db.GetCollection(name, embed)
		if col == nil {
			log.Printf("[CHROMEM] Skipping unreadable collection %q", name)
			continue
		}
		s.collections[name] = col
		s.catalog.ensure(name, col.Count())
		if known := len(s.catalog.ids(name)); known < col.Count() {
			log.Printf("[CHROMEM] Collection %q holds %d documents but the catalog lists %d; the unlisted ones are reachable by search only", name, col.Count(), known)
		}
	}
	// Drop catalog entries whose collection no longer exists.
	for name := range s.catalog.Categories {
		if _, ok := s.collections[name]; !ok {
			s.catalog.drop(name)
		}
	}
	if err := s.catalog.save(); err != nil {
		return nil, fmt.Errorf("save catalog: %w", err)
	}

	log.Printf("[CHROMEM] Opened store with %d collections", len(s.collections))
	return s, nil
}

// getOrCreateCollection returns the category's collection, creating it
// lazily on first write.
func (s *Store) getOrCreateCollection(category string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[category]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock
	if col, ok := s.collections[category]; ok {
		return col, nil
	}

	col, err := s.db.CreateCollection(category, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", category, err)
	}
	s.collections[category] = col
	s.catalog.ensure(category, 0)
	if err := s.catalog.save(); err != nil {
		return nil, fmt.Errorf("save catalog: %w", err)
	}
	return col, nil
}

func (s *Store) collection(category string) (*chromem.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[category]
	return col, ok
}

// Add stores a new memory in the category's collection. The returned
// Memory carries the caller's original metadata; the index receives the
// sanitized scalar-string form. Index failures propagate.
func (s *Store) Add(ctx context.Context, category, content string, metadata map[string]any) (*memory.Memory, error) {
	col, err := s.getOrCreateCollection(category)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	id := s.catalog.nextID(category)
	s.mu.Unlock()

	doc := chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: sanitizeMetadata(metadata),
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("add document %s/%s: %w", category, id, err)
	}

	s.mu.Lock()
	s.catalog.append(category, id)
	err = s.catalog.save()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("save catalog: %w", err)
	}

	log.Printf("[CHROMEM] Stored memory %s/%s (%d bytes)", category, id, len(content))
	return &memory.Memory{
		ID:       id,
		Content:  content,
		Category: category,
		Metadata: metadata,
	}, nil
}

// Search returns up to nResults memories ranked by descending similarity.
// Unknown and empty categories yield empty results; backing index errors
// degrade to empty results as well, so a broken index never crashes a
// read path.
func (s *Store) Search(ctx context.Context, category, query string, nResults int, where map[string]string) ([]memory.SearchResult, error) {
	col, ok := s.collection(category)
	if !ok {
		return nil, nil
	}
	total := col.Count()
	if total == 0 {
		return nil, nil
	}
	if nResults <= 0 {
		nResults = 5
	}
	if nResults > total {
		nResults = total
	}

	// chromem rejects nResults above the number of matching documents;
	// with a where filter the match count is unknown up front, so retry
	// with smaller limits.
	var results []chromem.Result
	for limit := nResults; limit >= 1; limit-- {
		var err error
		results, err = col.Query(ctx, query, limit, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		log.Printf("[CHROMEM] Query failed for %q: %v", category, err)
		return nil, nil
	}

	out := make([]memory.SearchResult, 0, len(results))
	for _, res := range results {
		out = append(out, memory.SearchResult{
			Memory:          toMemory(category, res.ID, res.Content, res.Metadata),
			SimilarityScore: similarityFromCosine(res.Similarity),
		})
	}
	// chromem returns results sorted by cosine similarity; the exp
	// transform is monotonic, so the order carries over. Keep the sort
	// as a guarantee regardless of backend behavior.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SimilarityScore > out[j].SimilarityScore
	})
	return out, nil
}

// GetRecent returns up to nResults memories, most recently inserted
// first. Empty for unknown categories; backing errors degrade to empty.
func (s *Store) GetRecent(ctx context.Context, category string, nResults int, where map[string]string) ([]memory.Memory, error) {
	if nResults <= 0 {
		nResults = 10
	}
	all, err := s.List(ctx, category, where, 0)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	if len(all) > nResults {
		all = all[len(all)-nResults:]
	}
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// List enumerates a category's memories in insertion order, optionally
// filtered by conjunctive metadata equality, up to limit (0 = no limit).
//
// Insertion order lives in the catalog, not the index. A crash between a
// document write and the catalog save leaves that document searchable but
// unlisted; the divergence is logged at startup and clears when the
// category is wiped. The document's ID is never reissued either way.
func (s *Store) List(ctx context.Context, category string, where map[string]string, limit int) ([]memory.Memory, error) {
	col, ok := s.collection(category)
	if !ok {
		return nil, nil
	}

	s.mu.RLock()
	ids := s.catalog.ids(category)
	s.mu.RUnlock()

	var out []memory.Memory
	for _, id := range ids {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			log.Printf("[CHROMEM] Skipping %s/%s: %v", category, id, err)
			continue
		}
		if !matchesWhere(doc.Metadata, where) {
			continue
		}
		out = append(out, toMemory(category, doc.ID, doc.Content, doc.Metadata))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Get fetches one memory by ID.
func (s *Store) Get(ctx context.Context, category, id string) (*memory.Memory, error) {
	col, ok := s.collection(category)
	if !ok {
		return nil, fmt.Errorf("%w: category %q", memory.ErrNotFound, category)
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s", memory.ErrNotFound, category, id)
	}
	mem := toMemory(category, doc.ID, doc.Content, doc.Metadata)
	return &mem, nil
}

// Update replaces a memory's content and/or metadata. chromem overwrites
// documents by ID, so the replacement is written over the original in one
// step; a failed write (embedder down, index error) leaves the original
// intact. Catalog position, and therefore insertion order, is preserved.
// Content updates drop the stored embedding so the new text is re-embedded;
// metadata-only updates keep it.
func (s *Store) Update(ctx context.Context, category, id, content string, metadata map[string]any) error {
	if content == "" && metadata == nil {
		return nil
	}
	col, ok := s.collection(category)
	if !ok {
		return fmt.Errorf("%w: category %q", memory.ErrNotFound, category)
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %s/%s", memory.ErrNotFound, category, id)
	}

	next := chromem.Document{
		ID:        id,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  doc.Metadata,
	}
	if content != "" {
		next.Content = content
		next.Embedding = nil
	}
	if metadata != nil {
		next.Metadata = sanitizeMetadata(metadata)
	}

	if err := col.AddDocument(ctx, next); err != nil {
		return fmt.Errorf("update %s/%s: %w", category, id, err)
	}
	return nil
}

// Delete removes one memory and its catalog entry.
func (s *Store) Delete(ctx context.Context, category, id string) error {
	col, ok := s.collection(category)
	if !ok {
		return fmt.Errorf("%w: category %q", memory.ErrNotFound, category)
	}
	if _, err := col.GetByID(ctx, id); err != nil {
		return fmt.Errorf("%w: %s/%s", memory.ErrNotFound, category, id)
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", category, id, err)
	}

	s.mu.Lock()
	s.catalog.remove(category, id)
	err := s.catalog.save()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

// DeleteCollection removes a whole category: the persisted collection,
// the catalog entry, and the in-memory mapping.
func (s *Store) DeleteCollection(ctx context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[category]; !ok {
		return fmt.Errorf("%w: category %q", memory.ErrNotFound, category)
	}
	if err := s.db.DeleteCollection(category); err != nil {
		return fmt.Errorf("delete collection %q: %w", category, err)
	}
	delete(s.collections, category)
	s.catalog.drop(category)
	if err := s.catalog.save(); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}

	log.Printf("[CHROMEM] Deleted collection %q", category)
	return nil
}

// ListCategories returns all known category names, sorted for
// deterministic output.
func (s *Store) ListCategories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of memories in a category, 0 if unknown.
func (s *Store) Count(category string) int {
	col, ok := s.collection(category)
	if !ok {
		return 0
	}
	return col.Count()
}

// sanitizeMetadata converts metadata to the scalar-string form the index
// stores: nil becomes "", primitives are formatted, anything richer is
// JSON-encoded.
func sanitizeMetadata(metadata map[string]any) map[string]string {
	clean := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case nil:
			clean[k] = ""
		case string:
			clean[k] = val
		case bool:
			clean[k] = strconv.FormatBool(val)
		case int:
			clean[k] = strconv.Itoa(val)
		case int64:
			clean[k] = strconv.FormatInt(val, 10)
		case float32:
			clean[k] = strconv.FormatFloat(float64(val), 'g', -1, 32)
		case float64:
			clean[k] = strconv.FormatFloat(val, 'g', -1, 64)
		default:
			if b, err := json.Marshal(val); err == nil {
				clean[k] = string(b)
			} else {
				clean[k] = fmt.Sprintf("%v", val)
			}
		}
	}
	return clean
}

func toMemory(category, id, content string, metadata map[string]string) memory.Memory {
	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return memory.Memory{
		ID:       id,
		Content:  content,
		Category: category,
		Metadata: md,
	}
}

func matchesWhere(metadata map[string]string, where map[string]string) bool {
	for k, v := range where {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// similarityFromCosine maps the index's cosine similarity s to
// exp(-(1-s)), the store's documented score scale.
func similarityFromCosine(s float32) float64 {
	return math.Exp(-(1 - float64(s)))
}

// isInsufficientDocsError checks whether a query failed only because it
// asked for more results than the collection holds.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
