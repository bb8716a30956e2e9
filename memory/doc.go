// Package memory provides a local, persistent semantic memory store with
// vector similarity search and query-level caching.
//
// Memory fragments are short texts with category, importance, and tag
// metadata. Retrieval embeds the query, ranks fragments by cosine
// similarity blended with importance, and caches ranked results per query
// so repeated (or merely similar) queries skip the vector search.
//
// Architecture:
//   - embedder: text-to-vector conversion (feature-based by default, ONNX
//     model behind the "onnx" build tag)
//   - index: in-memory vector index with category/tag/importance secondary
//     indices
//   - cache: bounded, TTL-boxed semantic LRU over ranked results
//   - Engine: façade owning all three plus the durable fragment store
//
// State persists as two JSON snapshot files per collection (fragments and
// index), rewritten on every mutation. Durability is best-effort: a write
// failure never fails the in-memory mutation, and any fragment/index drift
// is repaired by a full deterministic rebuild.
//
// Everything is single-process and synchronous; each component guards its
// state with one mutex, held for the duration of a call.
package memory
