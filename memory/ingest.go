package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// CreateChunks ingests one document: the file is read (PDF pages are
// extracted and concatenated under per-page headers, everything else is
// treated as plain text), split into chunks, and stored as one memory per
// chunk. Returns the created memory IDs in document order.
//
// Each chunk carries ingestion metadata on top of the caller's:
// source, original_filename, document_type, chunk_index, total_chunks,
// section, chunk_size, has_code_block, upload_date, and upload_id (one
// UUID per CreateChunks call, so a document's chunks are traceable as a
// unit).
//
// A missing or unreadable file is an error; batch callers decide whether
// to continue with remaining files.
func (m *Manager) CreateChunks(ctx context.Context, path, category string, metadata map[string]any) ([]string, error) {
	text, docType, err := readDocument(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}

	chunks := Split(text, m.config.Split)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("read document %s: no extractable text", path)
	}

	uploadID := uuid.New().String()
	uploadDate := time.Now().Format(time.RFC3339)
	filename := filepath.Base(path)

	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		md := make(map[string]any, len(metadata)+10)
		for k, v := range metadata {
			md[k] = v
		}
		md["source"] = path
		md["original_filename"] = filename
		md["document_type"] = docType
		md["chunk_index"] = i
		md["total_chunks"] = len(chunks)
		md["section"] = chunk.Header
		md["chunk_size"] = len(chunk.Content)
		md["has_code_block"] = strings.Contains(chunk.Content, "```")
		md["upload_date"] = uploadDate
		md["upload_id"] = uploadID

		mem, err := m.Create(ctx, category, chunk.Content, md)
		if err != nil {
			return ids, fmt.Errorf("store chunk %d of %s: %w", i, filename, err)
		}
		ids = append(ids, mem.ID)
	}

	log.Printf("[MEMORY] Ingested %s into %q: %d chunks", filename, category, len(ids))
	return ids, nil
}

// FileOutcome is the result of ingesting one file in a batch.
type FileOutcome struct {
	Path   string
	Chunks int
	Err    error
}

// UploadStats summarizes a batch upload.
type UploadStats struct {
	TotalAttempted int
	Successful     int
	Failed         int
	TotalChunks    int
	Files          []FileOutcome
}

// UploadDocuments ingests a batch of files best-effort: one file's
// failure is recorded in its FileOutcome and the batch continues. The
// summary counts tell the caller how much of the batch landed.
func (m *Manager) UploadDocuments(ctx context.Context, paths []string, category string, metadata map[string]any) UploadStats {
	stats := UploadStats{
		TotalAttempted: len(paths),
		Files:          make([]FileOutcome, 0, len(paths)),
	}
	for _, path := range paths {
		ids, err := m.CreateChunks(ctx, path, category, metadata)
		stats.Files = append(stats.Files, FileOutcome{Path: path, Chunks: len(ids), Err: err})
		stats.TotalChunks += len(ids)
		if err != nil {
			stats.Failed++
			log.Printf("[MEMORY] Upload failed for %s: %v", path, err)
			continue
		}
		stats.Successful++
	}
	return stats
}

func readDocument(path string) (text, docType string, err error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = extractPDFText(path)
		return text, "pdf", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), "text", nil
}

// extractPDFText concatenates the plain text of every page under a
// "## Page N" header, so the splitter keeps page provenance in chunk
// sections.
func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		fmt.Fprintf(&b, "## Page %d\n%s\n", i, content)
	}
	return b.String(), nil
}
