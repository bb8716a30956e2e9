// Package embedder converts text to fixed-length vectors for similarity
// search.
//
// The Embedder interface is the swap point for real models: the SDK ships a
// deterministic feature-based embedder (no model files needed), a hash-based
// mock for tests, and an ONNX embedder (build tag "onnx") for offline
// semantic search with all-MiniLM-L6-v2.
package embedder

import (
	"context"
	"math"
)

// Embedder converts text to vector embeddings.
// Implementations: FeatureEmbedder (default), MockEmbedder (testing),
// ONNXEmbedder (real model, build tag "onnx").
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}

// Normalize converts a vector to unit length. A zero vector is returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}

	return normalized
}

// Cosine computes the cosine similarity between two vectors.
// Returns 0 when the vectors differ in length or either has zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
