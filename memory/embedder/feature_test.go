package embedder_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/recall-go/memory/embedder"
)

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestFeatureEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	emb := embedder.New(0)

	texts := []string{
		"Python programming basics",
		"database optimization with indexes",
		"",
		"symbols only: !!! ???",
	}
	for _, text := range texts {
		first, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		second, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, first, second, "embedding must be bit-identical for %q", text)
	}
}

func TestFeatureEmbedder_Normalized(t *testing.T) {
	ctx := context.Background()
	emb := embedder.New(0)

	vec, err := emb.Embed(ctx, "system architecture design decision")
	require.NoError(t, err)
	require.Len(t, vec, embedder.DefaultDimensions)
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-3)
}

func TestFeatureEmbedder_EmptyText(t *testing.T) {
	ctx := context.Background()
	emb := embedder.New(0)

	vec, err := emb.Embed(ctx, "")
	require.NoError(t, err)
	require.Len(t, vec, embedder.DefaultDimensions)
	assert.Zero(t, vectorNorm(vec), "empty text must yield the zero vector")

	// Degenerate vectors have zero similarity with anything.
	other, err := emb.Embed(ctx, "something substantive")
	require.NoError(t, err)
	assert.Zero(t, embedder.Cosine(vec, other))
}

func TestFeatureEmbedder_SimilarTextScoresHigher(t *testing.T) {
	ctx := context.Background()
	emb := embedder.New(0)

	query, err := emb.Embed(ctx, "Python coding")
	require.NoError(t, err)
	python, err := emb.Embed(ctx, "Python programming basics")
	require.NoError(t, err)
	web, err := emb.Embed(ctx, "Web accessibility guidelines")
	require.NoError(t, err)

	assert.Greater(t, embedder.Cosine(query, python), embedder.Cosine(query, web))
}

func TestFeatureEmbedder_SmallDimension(t *testing.T) {
	ctx := context.Background()
	emb := embedder.New(16)

	vec, err := emb.Embed(ctx, "abcdef 123")
	require.NoError(t, err)
	require.Len(t, vec, 16)
	assert.Equal(t, 16, emb.Dimensions())
}

func TestCosine(t *testing.T) {
	testCases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, embedder.Cosine(tc.a, tc.b), 1e-9)
		})
	}
}

func TestNormalize(t *testing.T) {
	vec := embedder.Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vec[1]), 1e-6)

	zero := embedder.Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
