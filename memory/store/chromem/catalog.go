package chromem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const catalogFile = "catalog.json"

// catalog tracks, per category, the next memory ID and the insertion
// order of documents. chromem-go cannot enumerate a collection's
// documents, and recomputing IDs from live counts would reuse IDs after
// deletions, so both live here and are persisted next to the index.
//
// Not safe for concurrent use on its own; the Store's mutex guards it.
type catalog struct {
	path string // empty: in-memory only, nothing persisted

	Categories map[string]*categoryCatalog `json:"categories"`
}

type categoryCatalog struct {
	NextID int64    `json:"next_id"`
	IDs    []string `json:"ids"`
}

func loadCatalog(root string) (*catalog, error) {
	c := &catalog{Categories: make(map[string]*categoryCatalog)}
	if root == "" {
		return c, nil
	}
	c.path = filepath.Join(root, catalogFile)

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.path, err)
	}
	if c.Categories == nil {
		c.Categories = make(map[string]*categoryCatalog)
	}
	return c, nil
}

func (c *catalog) category(name string) *categoryCatalog {
	cc := c.Categories[name]
	if cc == nil {
		cc = &categoryCatalog{NextID: 1}
		c.Categories[name] = cc
	}
	return cc
}

// ensure registers a category and keeps its counter from regressing below
// what the index already holds (e.g. after a lost or stale catalog file).
func (c *catalog) ensure(name string, count int) {
	cc := c.category(name)
	if min := int64(count) + 1; cc.NextID < min {
		cc.NextID = min
	}
}

// nextID reserves and returns the next memory ID for a category. Reserved
// IDs are never reissued, even when the write that consumed them fails.
func (c *catalog) nextID(name string) string {
	cc := c.category(name)
	id := strconv.FormatInt(cc.NextID, 10)
	cc.NextID++
	return id
}

func (c *catalog) append(name, id string) {
	cc := c.category(name)
	cc.IDs = append(cc.IDs, id)
}

// ids returns a copy of the category's document IDs in insertion order.
func (c *catalog) ids(name string) []string {
	cc := c.Categories[name]
	if cc == nil {
		return nil
	}
	out := make([]string, len(cc.IDs))
	copy(out, cc.IDs)
	return out
}

func (c *catalog) remove(name, id string) {
	cc := c.Categories[name]
	if cc == nil {
		return
	}
	for i, v := range cc.IDs {
		if v == id {
			cc.IDs = append(cc.IDs[:i], cc.IDs[i+1:]...)
			return
		}
	}
}

func (c *catalog) drop(name string) {
	delete(c.Categories, name)
}

// save writes the catalog atomically (temp file + rename). In-memory
// catalogs are a no-op.
func (c *catalog) save() error {
	if c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
