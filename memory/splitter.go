package memory

import (
	"strings"
	"unicode"
)

// SplitOptions controls how Split segments a document.
type SplitOptions struct {
	// ChunkSize is the target chunk length in bytes.
	// Default: 500
	ChunkSize int

	// ChunkOverlap is how much consecutive chunks of one section overlap.
	// Default: 100
	ChunkOverlap int

	// RespectBoundaries prefers ending chunks at a sentence boundary
	// (falling back to a paragraph boundary) near the target length
	// instead of cutting mid-sentence.
	// Default: true
	RespectBoundaries bool
}

// DefaultSplitOptions returns the standard ingestion settings.
var DefaultSplitOptions = &SplitOptions{
	ChunkSize:         500,
	ChunkOverlap:      100,
	RespectBoundaries: true,
}

// boundaryWindow is how far around the target cut point Split looks for a
// sentence or paragraph boundary. It also bounds chunk overshoot: with
// RespectBoundaries set, no chunk exceeds ChunkSize+boundaryWindow.
const boundaryWindow = 50

// Split breaks a document into an ordered sequence of bounded,
// boundary-respecting chunks.
//
// The document is first segmented at headers: a line starting with a
// markdown '#' marker, or an all-uppercase line longer than 4 characters,
// starts a new section. Content before the first header belongs to a
// headerless section. Each section is then emitted as one chunk when it
// fits ChunkSize, or as a series of overlapping windows otherwise.
// Chunks are whitespace-trimmed; empty ones are dropped.
func Split(text string, opts *SplitOptions) []Chunk {
	if opts == nil {
		opts = DefaultSplitOptions
	}
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultSplitOptions.ChunkSize
	}
	overlap := opts.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}
	step := size - overlap
	if step < 1 {
		step = 1
	}

	var chunks []Chunk
	for _, sec := range coarseSections(text) {
		content := strings.TrimSpace(sec.content)
		if content == "" {
			continue
		}
		if len(content) <= size {
			chunks = append(chunks, Chunk{Header: sec.header, Content: content})
			continue
		}

		start := 0
		for start < len(content) {
			end := start + size
			if end >= len(content) {
				end = len(content)
			} else if opts.RespectBoundaries {
				end = seekBoundary(content, end)
				if end <= start {
					// tiny chunk sizes can put the whole boundary
					// window before the window start
					end = start + size
				}
			}
			piece := strings.TrimSpace(content[start:end])
			if piece != "" {
				chunks = append(chunks, Chunk{Header: sec.header, Content: piece})
			}
			if end >= len(content) {
				break
			}
			start += step
		}
	}
	return chunks
}

type section struct {
	header  string
	content string
}

// coarseSections splits text at header lines. The preamble before the
// first header becomes a headerless section.
func coarseSections(text string) []section {
	var secs []section
	cur := section{}
	var lines []string

	flush := func() {
		cur.content = strings.Join(lines, "\n")
		secs = append(secs, cur)
		lines = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if isHeaderLine(line) {
			flush()
			cur = section{header: headerText(line)}
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return secs
}

// isHeaderLine reports whether a line starts a new section: a markdown
// '#' heading, or a fully upper-case line longer than 4 characters.
func isHeaderLine(line string) bool {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, "#") {
		return true
	}
	if len(t) <= 4 {
		return false
	}
	hasLetter := false
	for _, r := range t {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func headerText(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}

// seekBoundary picks the cut point for a window ending near target:
// the last sentence boundary (". ") within boundaryWindow of target,
// else the last paragraph boundary ("\n\n") in the same window, else
// exactly target.
func seekBoundary(s string, target int) int {
	lo := target - boundaryWindow
	if lo < 0 {
		lo = 0
	}
	hi := target + boundaryWindow
	if hi > len(s) {
		hi = len(s)
	}
	window := s[lo:hi]

	if idx := strings.LastIndex(window, ". "); idx >= 0 {
		return lo + idx + 1 // cut after the period
	}
	if idx := strings.LastIndex(window, "\n\n"); idx >= 0 {
		return lo + idx
	}
	return target
}
