package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// unknownSource groups memories that predate ingestion metadata or were
// created directly via Create without a filename.
const unknownSource = "Unknown source"

// DocumentStats describes one ingested document inside a category.
type DocumentStats struct {
	Filename   string
	ChunkCount int
	TotalSize  int
	UploadDate string
}

// CategoryStats summarizes a category's contents grouped by document.
type CategoryStats struct {
	DocumentCount int
	TotalChunks   int
	Documents     []DocumentStats
}

// CategoryStats groups a category's memories by their original_filename
// metadata. TotalChunks counts every memory in the category regardless of
// grouping quality. Unknown categories yield zero stats.
func (m *Manager) CategoryStats(ctx context.Context, category string) (CategoryStats, error) {
	memories, err := m.store.List(ctx, category, nil, 0)
	if err != nil {
		return CategoryStats{}, fmt.Errorf("category stats for %q: %w", category, err)
	}

	groups := make(map[string]*DocumentStats)
	var order []string
	for _, mem := range memories {
		name := unknownSource
		if v, ok := mem.Metadata["original_filename"].(string); ok && v != "" {
			name = v
		}
		doc := groups[name]
		if doc == nil {
			doc = &DocumentStats{Filename: name}
			groups[name] = doc
			order = append(order, name)
		}
		doc.ChunkCount++
		doc.TotalSize += len(mem.Content)
		if doc.UploadDate == "" {
			if v, ok := mem.Metadata["upload_date"].(string); ok {
				doc.UploadDate = v
			}
		}
	}

	stats := CategoryStats{
		DocumentCount: len(order),
		TotalChunks:   len(memories),
		Documents:     make([]DocumentStats, 0, len(order)),
	}
	for _, name := range order {
		stats.Documents = append(stats.Documents, *groups[name])
	}
	return stats, nil
}

// WipeDocument deletes every memory in the category whose
// original_filename metadata equals filename. Returns the count actually
// deleted; 0 with a nil error means nothing matched.
func (m *Manager) WipeDocument(ctx context.Context, category, filename string) (int, error) {
	matches, err := m.store.List(ctx, category, map[string]string{"original_filename": filename}, 0)
	if err != nil {
		return 0, fmt.Errorf("wipe document %s from %q: %w", filename, category, err)
	}

	deleted := 0
	for _, mem := range matches {
		if err := m.store.Delete(ctx, category, mem.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return deleted, fmt.Errorf("wipe document %s from %q: %w", filename, category, err)
		}
		deleted++
	}

	log.Printf("[MEMORY] Wiped document %s from %q: %d chunks", filename, category, deleted)
	return deleted, nil
}

// CategoryWipe reports the outcome of wiping one category.
type CategoryWipe struct {
	Success          bool
	DocumentsDeleted int
	ChunksDeleted    int
}

// WipeCategory snapshots the category's stats, then deletes the whole
// collection. An unknown category is a zero-value no-op, not an error.
func (m *Manager) WipeCategory(ctx context.Context, category string) (CategoryWipe, error) {
	stats, err := m.CategoryStats(ctx, category)
	if err != nil {
		return CategoryWipe{}, err
	}

	if err := m.store.DeleteCollection(ctx, category); err != nil {
		if errors.Is(err, ErrNotFound) {
			return CategoryWipe{}, nil
		}
		return CategoryWipe{}, fmt.Errorf("wipe category %q: %w", category, err)
	}

	log.Printf("[MEMORY] Wiped category %q: %d documents, %d chunks", category, stats.DocumentCount, stats.TotalChunks)
	return CategoryWipe{
		Success:          true,
		DocumentsDeleted: stats.DocumentCount,
		ChunksDeleted:    stats.TotalChunks,
	}, nil
}

// WipeOutcome is the result of wiping one category during WipeAll.
type WipeOutcome struct {
	Category      string
	ChunksDeleted int
	Err           error
}

// WipeAll deletes every known category and reports a per-category
// outcome. Wipes are not transactional: a failure partway through leaves
// the earlier deletions in place, which the outcome list makes visible.
func (m *Manager) WipeAll(ctx context.Context) []WipeOutcome {
	categories := m.store.ListCategories()
	outcomes := make([]WipeOutcome, 0, len(categories))
	for _, category := range categories {
		wipe, err := m.WipeCategory(ctx, category)
		outcomes = append(outcomes, WipeOutcome{
			Category:      category,
			ChunksDeleted: wipe.ChunksDeleted,
			Err:           err,
		})
	}
	return outcomes
}

// AllSucceeded reports whether every wipe in the outcome list succeeded.
func AllSucceeded(outcomes []WipeOutcome) bool {
	for _, o := range outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}
