package memory

import (
	"context"
	"fmt"
	"strings"
)

// Queries of this many whitespace tokens or fewer skip retrieval
// entirely; embedding "hi" or "what time" is wasted work.
const minContextQueryTokens = 3

// RelevantContext searches all categories for memories relevant to the
// query and renders them as a context block ready for prompt injection,
// one "From <source>:" section per result. Memories without a "source"
// metadata field are labeled "reference".
//
// Trivial queries (3 or fewer tokens) short-circuit to an empty block.
func (m *Manager) RelevantContext(ctx context.Context, query string, nResults int) (string, []SearchResult, error) {
	if len(strings.Fields(query)) <= minContextQueryTokens {
		return "", nil, nil
	}
	if nResults <= 0 {
		nResults = m.config.ContextResults
	}
	if nResults <= 0 {
		nResults = 3
	}

	results, err := m.Search(ctx, query, &SearchOptions{NResults: nResults})
	if err != nil {
		return "", nil, fmt.Errorf("relevant context: %w", err)
	}
	if len(results) == 0 {
		return "", nil, nil
	}

	var b strings.Builder
	for _, r := range results {
		source := "reference"
		if s, ok := r.Memory.Metadata["source"].(string); ok && s != "" {
			source = s
		}
		fmt.Fprintf(&b, "From %s:\n%s\n\n", source, r.Memory.Content)
	}
	return b.String(), results, nil
}
