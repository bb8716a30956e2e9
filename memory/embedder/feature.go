package embedder

import (
	"context"
	"strings"
)

// DefaultDimensions matches all-MiniLM-L6-v2 so a real model can be swapped
// in without reindexing configuration.
const DefaultDimensions = 384

// defaultKeywords are domain terms counted as raw occurrence features.
// They bias similarity toward project-workflow vocabulary.
var defaultKeywords = []string{
	"project",
	"requirement",
	"design",
	"implementation",
	"test",
	"deployment",
	"issue",
	"solution",
	"learning",
	"decision",
}

const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

// FeatureEmbedder is the SDK-provided deterministic embedder.
//
// It builds a vector from surface features of the text:
//   - dims 0-35: frequency of each character in [a-z0-9]
//   - dim 36: text length, dim 37: word count
//   - dims 38+: occurrence counts of a fixed keyword list
//
// The remaining dimensions are zero. The result is L2-normalized, so the
// only zero vector it produces is for text with no recognized features.
// Embed is total and never returns an error; identical text always yields
// a bit-identical vector.
type FeatureEmbedder struct {
	dimensions int
	keywords   []string
}

// New creates a FeatureEmbedder with the default keyword list.
func New(dimensions int) *FeatureEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &FeatureEmbedder{
		dimensions: dimensions,
		keywords:   defaultKeywords,
	}
}

// NewWithKeywords creates a FeatureEmbedder counting a custom keyword list.
func NewWithKeywords(dimensions int, keywords []string) *FeatureEmbedder {
	e := New(dimensions)
	e.keywords = keywords
	return e
}

// Embed converts text to a feature vector. The error is always nil; it is
// present to satisfy the Embedder interface.
func (e *FeatureEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dimensions)
	lower := strings.ToLower(text)

	// Character frequencies over [a-z0-9].
	for _, r := range lower {
		idx := charsetIndex(r)
		if idx >= 0 && idx < e.dimensions {
			vector[idx]++
		}
	}

	// Length features.
	if e.dimensions > 36 {
		vector[36] = float32(len(text))
	}
	if e.dimensions > 37 {
		vector[37] = float32(len(strings.Fields(text)))
	}

	// Keyword occurrence counts.
	for i, keyword := range e.keywords {
		pos := 38 + i
		if pos >= e.dimensions {
			break
		}
		vector[pos] = float32(strings.Count(lower, keyword))
	}

	return Normalize(vector), nil
}

// Dimensions returns the embedding vector size.
func (e *FeatureEmbedder) Dimensions() int {
	return e.dimensions
}

func charsetIndex(r rune) int {
	switch {
	case r >= 'a' && r <= 'z':
		return int(r - 'a')
	case r >= '0' && r <= '9':
		return 26 + int(r-'0')
	default:
		return -1
	}
}

var _ Embedder = (*FeatureEmbedder)(nil)
