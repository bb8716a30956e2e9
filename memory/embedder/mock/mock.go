// Package mock provides a hash-based embedder for tests.
//
// Unlike the feature embedder, its vectors have no relationship to the text
// content beyond determinism, which makes it useful for exercising index and
// cache mechanics without depending on the feature set.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/becomeliminal/recall-go/memory/embedder"
)

// MockEmbedder generates deterministic pseudo-random embeddings from a text
// hash. Identical text always yields an identical unit vector.
type MockEmbedder struct {
	dimensions int
}

// New creates a mock embedder with the default dimensionality.
func New() *MockEmbedder {
	return &MockEmbedder{dimensions: embedder.DefaultDimensions}
}

// NewWithDimensions creates a mock embedder with a custom vector size.
func NewWithDimensions(dimensions int) *MockEmbedder {
	return &MockEmbedder{dimensions: dimensions}
}

// Embed creates a deterministic embedding from the text hash.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	// Hash seeds an LCG; each step yields one component in [-1, 1].
	seed := h.Sum64()
	vec := make([]float32, m.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return embedder.Normalize(vec), nil
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

var _ embedder.Embedder = (*MockEmbedder)(nil)
