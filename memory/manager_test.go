package memory_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/driftlock/mnemo/memory"
	"github.com/driftlock/mnemo/memory/embedder/mock"
	"github.com/driftlock/mnemo/memory/store/chromem"
)

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	store, err := chromem.New(chromem.Config{Embedder: mock.New()})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return memory.NewManager(store, nil)
}

func TestManager_CreateAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	mem, err := manager.Create(ctx, "notes", "the sky was unusually clear tonight", map[string]any{"topic": "weather"})
	if err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}
	if mem.ID == "" || mem.Category != "notes" {
		t.Fatalf("unexpected memory identity: %+v", mem)
	}
	if mem.Metadata["epoch"] != 1 {
		t.Errorf("expected epoch 1 stamped, got %v", mem.Metadata["epoch"])
	}
	if ts, _ := mem.Metadata["timestamp"].(string); ts == "" {
		t.Error("expected timestamp stamped")
	}

	got, err := manager.Get(ctx, "notes", mem.ID)
	if err != nil {
		t.Fatalf("Failed to get memory: %v", err)
	}
	if got.Content != mem.Content {
		t.Errorf("content mismatch: %q != %q", got.Content, mem.Content)
	}
	// read-back metadata is the sanitized string form
	if got.Metadata["topic"] != "weather" {
		t.Errorf("custom metadata lost: %v", got.Metadata)
	}
	if got.Metadata["epoch"] != "1" {
		t.Errorf("epoch not persisted: %v", got.Metadata["epoch"])
	}
}

func TestManager_CreateRejectsEmptyContent(t *testing.T) {
	manager := newTestManager(t)
	if _, err := manager.Create(context.Background(), "notes", "   \n", nil); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestManager_SearchUnknownCategoryIsEmpty(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	results, err := manager.Search(ctx, "anything at all", &memory.SearchOptions{Categories: []string{"nope"}})
	if err != nil {
		t.Fatalf("Search should not error on unknown category: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestManager_SearchRanksByDescendingSimilarity(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	for _, content := range []string{"apple pie", "banana bread", "apple tart"} {
		if _, err := manager.Create(ctx, "notes", content, nil); err != nil {
			t.Fatalf("Failed to create %q: %v", content, err)
		}
	}

	results, err := manager.Search(ctx, "apple", &memory.SearchOptions{
		Categories: []string{"notes"},
		NResults:   2,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected exactly 2 results, got %d", len(results))
	}
	for i, r := range results {
		if !strings.Contains(r.Memory.Content, "apple") {
			t.Errorf("result %d should reference an apple memory, got %q", i, r.Memory.Content)
		}
	}
	if results[0].SimilarityScore < results[1].SimilarityScore {
		t.Errorf("results not sorted by descending similarity: %f < %f",
			results[0].SimilarityScore, results[1].SimilarityScore)
	}
}

func TestManager_SearchMinSimilarityFilters(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	if _, err := manager.Create(ctx, "notes", "completely unrelated content", nil); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	results, err := manager.Search(ctx, "apple", &memory.SearchOptions{
		Categories:    []string{"notes"},
		MinSimilarity: 0.99,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.SimilarityScore <= 0.99 {
			t.Errorf("result below threshold leaked through: %f", r.SimilarityScore)
		}
	}
}

func TestManager_NegativeMinSimilarityOverridesConfigFloor(t *testing.T) {
	ctx := context.Background()
	store, err := chromem.New(chromem.Config{Embedder: mock.New()})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	manager := memory.NewManager(store, &memory.Config{
		Split:           memory.DefaultSplitOptions,
		DefaultNResults: 5,
		MinSimilarity:   0.99,
		ContextResults:  3,
	})

	if _, err := manager.Create(ctx, "notes", "completely unrelated content", nil); err != nil {
		t.Fatal(err)
	}

	// the config floor filters the weak match out
	results, err := manager.Search(ctx, "apple", &memory.SearchOptions{Categories: []string{"notes"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("config floor not applied: %v", results)
	}

	// a negative option floor disables it for this one call
	results, err = manager.Search(ctx, "apple", &memory.SearchOptions{
		Categories:    []string{"notes"},
		MinSimilarity: -1,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("negative floor should return everything, got %d results", len(results))
	}
}

func TestManager_SearchFansOutAcrossCategories(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	if _, err := manager.Create(ctx, "recipes", "apple crumble with cinnamon", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Create(ctx, "orchard", "apple trees need pruning", nil); err != nil {
		t.Fatal(err)
	}

	// no category restriction: both collections contribute
	results, err := manager.Search(ctx, "apple", &memory.SearchOptions{NResults: 5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results from both categories, got %d", len(results))
	}
	seen := map[string]bool{}
	for _, r := range results {
		seen[r.Memory.Category] = true
	}
	if !seen["recipes"] || !seen["orchard"] {
		t.Errorf("fan-out missed a category: %v", seen)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].SimilarityScore < results[i].SimilarityScore {
			t.Error("merged results not sorted by descending similarity")
		}
	}
}

func TestManager_SearchTruncatesToNResults(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	for _, category := range []string{"a", "b", "c"} {
		for i := 0; i < 3; i++ {
			if _, err := manager.Create(ctx, category, "apple note number "+category, nil); err != nil {
				t.Fatal(err)
			}
		}
	}

	results, err := manager.Search(ctx, "apple", &memory.SearchOptions{NResults: 4})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) > 4 {
		t.Errorf("expected at most 4 results, got %d", len(results))
	}
}

func TestManager_Epochs(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	if epoch := manager.CurrentEpoch(); epoch.EpochNumber != 1 {
		t.Fatalf("expected first epoch 1, got %d", epoch.EpochNumber)
	}

	mem1, err := manager.Create(ctx, "notes", "created in the first epoch", nil)
	if err != nil {
		t.Fatal(err)
	}
	if mem1.Metadata["epoch"] != 1 {
		t.Errorf("expected epoch 1, got %v", mem1.Metadata["epoch"])
	}

	for i := 0; i < 3; i++ {
		manager.IncrementEpoch(nil)
	}
	if epoch := manager.CurrentEpoch(); epoch.EpochNumber != 4 {
		t.Errorf("expected epoch 4 after 3 increments, got %d", epoch.EpochNumber)
	}

	mem2, err := manager.Create(ctx, "notes", "created in the fourth epoch", nil)
	if err != nil {
		t.Fatal(err)
	}
	if mem2.Metadata["epoch"] != 4 {
		t.Errorf("expected epoch 4 stamped, got %v", mem2.Metadata["epoch"])
	}
}

func TestManager_GetRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	for _, content := range []string{"first note", "second note", "third note"} {
		if _, err := manager.Create(ctx, "notes", content, nil); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := manager.GetRecent(ctx, "notes", 2, nil)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(recent))
	}
	if recent[0].Content != "third note" || recent[1].Content != "second note" {
		t.Errorf("wrong recency order: %q, %q", recent[0].Content, recent[1].Content)
	}
}

func TestManager_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	mem, err := manager.Create(ctx, "notes", "original content here", map[string]any{"state": "draft"})
	if err != nil {
		t.Fatal(err)
	}

	// metadata-only update keeps content
	if err := manager.Update(ctx, "notes", mem.ID, "", map[string]any{"state": "final"}); err != nil {
		t.Fatalf("metadata update failed: %v", err)
	}
	got, err := manager.Get(ctx, "notes", mem.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "original content here" {
		t.Errorf("metadata-only update changed content: %q", got.Content)
	}
	if got.Metadata["state"] != "final" {
		t.Errorf("metadata not updated: %v", got.Metadata)
	}

	// content update
	if err := manager.Update(ctx, "notes", mem.ID, "revised content here", nil); err != nil {
		t.Fatalf("content update failed: %v", err)
	}
	got, err = manager.Get(ctx, "notes", mem.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "revised content here" {
		t.Errorf("content not updated: %q", got.Content)
	}

	// delete, then verify it is gone and a second delete reports not found
	if err := manager.Delete(ctx, "notes", mem.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, "notes", mem.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := manager.Delete(ctx, "notes", mem.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestManager_RelevantContext(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	if _, err := manager.Create(ctx, "docs", "apples taste sweet and crisp in autumn",
		map[string]any{"source": "orchard-guide.md"}); err != nil {
		t.Fatal(err)
	}

	// trivial queries skip retrieval entirely
	block, results, err := manager.RelevantContext(ctx, "hi there", 3)
	if err != nil {
		t.Fatalf("RelevantContext failed: %v", err)
	}
	if block != "" || results != nil {
		t.Errorf("trivial query should yield nothing, got %q", block)
	}

	block, results, err = manager.RelevantContext(ctx, "how do apples taste in autumn", 3)
	if err != nil {
		t.Fatalf("RelevantContext failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if !strings.Contains(block, "From orchard-guide.md:") {
		t.Errorf("context missing source label:\n%s", block)
	}
	if !strings.Contains(block, "apples taste sweet") {
		t.Errorf("context missing memory content:\n%s", block)
	}
}

func TestManager_CountAndListCategories(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	if n := manager.Count("notes"); n != 0 {
		t.Errorf("expected 0 for unknown category, got %d", n)
	}
	if _, err := manager.Create(ctx, "notes", "one note", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Create(ctx, "notes", "two notes", nil); err != nil {
		t.Fatal(err)
	}
	if n := manager.Count("notes"); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	categories := manager.ListCategories()
	if len(categories) != 1 || categories[0] != "notes" {
		t.Errorf("unexpected categories: %v", categories)
	}
}
