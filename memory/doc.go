// Package memory provides a category-partitioned, embedding-backed store
// of text memories with document ingestion, similarity search, recency
// retrieval, and lifecycle management.
//
// Memories are namespaced by category; each category maps 1:1 to one
// collection in the backing vector index. Collections are created lazily
// on first write and persist until explicitly wiped.
//
// Architecture:
//   - Store: vector storage backend (chromem-go for local use; the
//     interface leaves room for a server-backed index in production)
//   - Embedder: text-to-vector conversion (mock for tests, OpenAI or a
//     local ONNX model for real semantics, ristretto-cached decorator)
//   - Manager: orchestrates creation, multi-category search fan-out,
//     document ingestion, statistics, wipes, and epoch tracking
//
// The Manager is the only caller-facing API. It stamps every created
// memory with its creation timestamp and the current epoch, a monotonic
// counter that groups memories by operational phase (e.g. one autonomous
// run); advance it with IncrementEpoch.
package memory
