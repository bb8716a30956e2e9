package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/recall-go/memory/embedder"
	"github.com/becomeliminal/recall-go/memory/embedder/mock"
	"github.com/becomeliminal/recall-go/memory/index"
)

func newIndex(t *testing.T) *index.Index {
	t.Helper()
	return index.New(embedder.New(64))
}

func insert(t *testing.T, x *index.Index, id, content, category string, importance float64, tags ...string) {
	t.Helper()
	require.True(t, x.Insert(context.Background(), id, content, category, importance, tags))
}

func matchIDs(matches []index.Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.MemoryID
	}
	return ids
}

func TestIndex_SearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	insert(t, x, "py", "Python programming basics", "learning", 0.9, "python")
	insert(t, x, "web", "Web accessibility guidelines", "pattern", 0.6, "web")

	matches := x.Search(ctx, index.Query{Text: "Python coding", Limit: 10})
	require.NotEmpty(t, matches)
	assert.Equal(t, "py", matches[0].MemoryID)
	assert.Greater(t, matches[0].Similarity, 0.0)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
}

func TestIndex_SearchWithHashEmbedder(t *testing.T) {
	ctx := context.Background()

	// The hash embedder's vectors have no relationship to the text, so
	// this exercises the index mechanics independent of the feature set:
	// only the exact text reproduces its stored vector.
	x := index.New(mock.NewWithDimensions(64))

	insert(t, x, "a", "alpha document", "context", 0.5)
	insert(t, x, "b", "bravo document", "context", 0.5)
	insert(t, x, "c", "charlie document", "context", 0.5)

	matches := x.Search(ctx, index.Query{Text: "bravo document", Limit: 10})
	require.NotEmpty(t, matches)
	assert.Equal(t, "b", matches[0].MemoryID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-3)
}

func TestIndex_MinSimilarityCutoff(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)
	insert(t, x, "a", "completely unrelated text", "context", 0.5)

	matches := x.Search(ctx, index.Query{Text: "zzz", Limit: 10, MinSimilarity: 0.999})
	assert.Empty(t, matches)
}

func TestIndex_CategoryFilter(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	insert(t, x, "a", "database schema design", "decision", 0.5)
	insert(t, x, "b", "database index design", "pattern", 0.5)

	matches := x.Search(ctx, index.Query{Text: "database design", Limit: 10, Category: "decision"})
	assert.Equal(t, []string{"a"}, matchIDs(matches))

	matches = x.Search(ctx, index.Query{Text: "database design", Limit: 10, Category: "requirement"})
	assert.Empty(t, matches)
}

func TestIndex_TagFilterUnion(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	insert(t, x, "a", "api gateway setup", "context", 0.5, "api")
	insert(t, x, "b", "api client library", "context", 0.5, "client")
	insert(t, x, "c", "frontend styling", "context", 0.5, "css")

	matches := x.Search(ctx, index.Query{Text: "api", Limit: 10, Tags: []string{"api", "client"}})
	assert.ElementsMatch(t, []string{"a", "b"}, matchIDs(matches))
}

func TestIndex_CategoryAndTagIntersect(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	insert(t, x, "a", "api gateway setup", "decision", 0.5, "api")
	insert(t, x, "b", "api client library", "pattern", 0.5, "api")

	matches := x.Search(ctx, index.Query{
		Text:     "api",
		Limit:    10,
		Category: "decision",
		Tags:     []string{"api"},
	})
	assert.Equal(t, []string{"a"}, matchIDs(matches))
}

func TestIndex_SearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	// Identical content embeds identically, so similarities tie exactly.
	insert(t, x, "first", "identical content", "context", 0.5)
	insert(t, x, "second", "identical content", "context", 0.5)
	insert(t, x, "third", "identical content", "context", 0.5)

	matches := x.Search(ctx, index.Query{Text: "identical content", Limit: 10})
	assert.Equal(t, []string{"first", "second", "third"}, matchIDs(matches))
}

func TestIndex_Limit(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	insert(t, x, "a", "shared words here", "context", 0.5)
	insert(t, x, "b", "shared words here", "context", 0.5)
	insert(t, x, "c", "shared words here", "context", 0.5)

	matches := x.Search(ctx, index.Query{Text: "shared words", Limit: 2})
	assert.Len(t, matches, 2)
}

func TestIndex_TopImportant(t *testing.T) {
	x := newIndex(t)

	insert(t, x, "low", "low importance", "context", 0.2)
	insert(t, x, "high", "high importance", "decision", 0.9)
	insert(t, x, "mid-a", "first of the tied pair", "context", 0.5)
	insert(t, x, "mid-b", "second of the tied pair", "decision", 0.5)

	assert.Equal(t, []string{"high", "mid-a", "mid-b", "low"}, x.TopImportant(10, ""))
	assert.Equal(t, []string{"high", "mid-b"}, x.TopImportant(10, "decision"))
	assert.Equal(t, []string{"high"}, x.TopImportant(1, ""))
}

func TestIndex_Remove(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	insert(t, x, "a", "to be removed", "context", 0.5, "tmp")
	require.Equal(t, 1, x.Size())

	assert.True(t, x.Remove("a"))
	assert.False(t, x.Remove("a"), "second remove is a no-op")
	assert.Equal(t, 0, x.Size())

	matches := x.Search(ctx, index.Query{Text: "to be removed", Limit: 10, Tags: []string{"tmp"}})
	assert.Empty(t, matches)
	assert.Empty(t, x.TopImportant(10, ""))
}

func TestIndex_InsertOverwrites(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	insert(t, x, "a", "original content", "decision", 0.9, "old")
	insert(t, x, "a", "replacement content", "pattern", 0.1, "new")

	assert.Equal(t, 1, x.Size())

	matches := x.Search(ctx, index.Query{Text: "content", Limit: 10, Category: "decision"})
	assert.Empty(t, matches, "old category binding must be gone")

	matches = x.Search(ctx, index.Query{Text: "content", Limit: 10, Tags: []string{"new"}})
	assert.Equal(t, []string{"a"}, matchIDs(matches))
}

func TestIndex_Stats(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	insert(t, x, "a", "alpha", "decision", 0.5, "x")
	insert(t, x, "b", "bravo", "pattern", 0.5, "x", "y")
	x.Search(ctx, index.Query{Text: "alpha", Limit: 10})

	stats := x.Stats()
	assert.Equal(t, 2, stats.TotalVectors)
	assert.Equal(t, 2, stats.Categories)
	assert.Equal(t, 2, stats.Tags)
	assert.Equal(t, 64, stats.Dimension)
	assert.EqualValues(t, 1, stats.SearchCount)
	assert.EqualValues(t, 2, stats.IndexUpdates)
}

func TestIndex_SnapshotLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	x := newIndex(t)

	insert(t, x, "a", "identical content", "context", 0.5, "t1")
	insert(t, x, "b", "identical content", "decision", 0.5, "t2")

	before := x.Search(ctx, index.Query{Text: "identical content", Limit: 10})

	restored := index.New(embedder.New(64))
	restored.Load(x.Snapshot())

	after := restored.Search(ctx, index.Query{Text: "identical content", Limit: 10})
	assert.Equal(t, matchIDs(before), matchIDs(after))
	assert.Equal(t, x.TopImportant(10, ""), restored.TopImportant(10, ""))
}

func TestIndex_LoadSkipsWrongDimension(t *testing.T) {
	x := newIndex(t)
	x.Load(map[string]index.Entry{
		"bad": {MemoryID: "bad", Vector: []float32{1, 2, 3}, Category: "context"},
	})
	assert.Equal(t, 0, x.Size(), "mismatched vectors are dropped so the engine rebuilds")
}
