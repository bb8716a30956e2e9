// Package index implements the in-memory vector index: a primary id->entry
// map with secondary indices by category and tag, plus an
// importance-descending ordering for "top memories" queries.
package index

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/recall-go/memory/embedder"
)

// Entry is one indexed vector with its retrieval metadata. It mirrors a
// live memory fragment one-to-one and is rebuilt from the fragment store
// whenever the two drift apart.
type Entry struct {
	MemoryID   string    `json:"memory_id"`
	Vector     []float32 `json:"vector"`
	Category   string    `json:"category"`
	Importance float64   `json:"importance"`
	Timestamp  time.Time `json:"timestamp"`
	Tags       []string  `json:"tags"`

	// seq is the insertion order, used to keep similarity and importance
	// orderings stable under ties.
	seq uint64
}

// Match is a search hit: a memory id with its cosine similarity to the query.
type Match struct {
	MemoryID   string
	Similarity float64
}

// Query describes one similarity search.
type Query struct {
	// Text is embedded and compared against stored vectors.
	Text string

	// Limit caps the number of matches returned. Zero or negative means
	// no cap.
	Limit int

	// Category restricts candidates to one category when non-empty.
	Category string

	// Tags restricts candidates to entries carrying at least one of these
	// tags. Combined with Category, the candidate set is the intersection.
	Tags []string

	// MinSimilarity drops matches scoring below it.
	MinSimilarity float64
}

// Stats reports index size and search performance counters.
type Stats struct {
	TotalVectors      int           `json:"total_vectors"`
	Categories        int           `json:"categories"`
	Tags              int           `json:"tags"`
	Dimension         int           `json:"dimension"`
	SearchCount       int64         `json:"search_count"`
	IndexUpdates      int64         `json:"index_updates"`
	AverageSearchTime time.Duration `json:"average_search_time"`
}

// Index is a mutex-guarded vector index. All operations are total: lookups
// of unknown ids return false/empty rather than failing, and a search over
// an empty index returns no matches.
type Index struct {
	mu  sync.Mutex
	emb embedder.Embedder

	dimension    int
	entries      map[string]*Entry
	byCategory   map[string]map[string]struct{}
	byTag        map[string]map[string]struct{}
	byImportance []string

	nextSeq      uint64
	searchCount  int64
	indexUpdates int64
	avgSearch    time.Duration
}

// New creates an empty index that embeds content with emb.
func New(emb embedder.Embedder) *Index {
	return &Index{
		emb:        emb,
		dimension:  emb.Dimensions(),
		entries:    make(map[string]*Entry),
		byCategory: make(map[string]map[string]struct{}),
		byTag:      make(map[string]map[string]struct{}),
	}
}

// Insert embeds content and stores it under id, updating the secondary
// indices and the importance ordering. Re-inserting an existing id
// overwrites it. Returns false only on embedder failure.
func (x *Index) Insert(ctx context.Context, id, content, category string, importance float64, tags []string) bool {
	vector, err := x.emb.Embed(ctx, content)
	if err != nil {
		log.WithError(err).WithField("memory_id", id).Error("embed for index insert failed")
		return false
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.insertEntry(&Entry{
		MemoryID:   id,
		Vector:     embedder.Normalize(vector),
		Category:   category,
		Importance: importance,
		Timestamp:  time.Now(),
		Tags:       tags,
	})
	x.indexUpdates++
	return true
}

// insertEntry stores e under write lock, detaching any previous entry with
// the same id first.
func (x *Index) insertEntry(e *Entry) {
	if old, ok := x.entries[e.MemoryID]; ok {
		x.detach(old)
	}

	e.seq = x.nextSeq
	x.nextSeq++
	x.entries[e.MemoryID] = e

	cat, ok := x.byCategory[e.Category]
	if !ok {
		cat = make(map[string]struct{})
		x.byCategory[e.Category] = cat
	}
	cat[e.MemoryID] = struct{}{}

	for _, tag := range e.Tags {
		ids, ok := x.byTag[tag]
		if !ok {
			ids = make(map[string]struct{})
			x.byTag[tag] = ids
		}
		ids[e.MemoryID] = struct{}{}
	}

	x.resortImportance()
}

// Search embeds the query and ranks the candidate set by cosine similarity,
// descending, with ties broken by insertion order.
func (x *Index) Search(ctx context.Context, q Query) []Match {
	start := time.Now()

	queryVec, err := x.emb.Embed(ctx, q.Text)
	if err != nil {
		log.WithError(err).Error("embed for search failed")
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	candidates := x.candidates(q.Category, q.Tags)

	// Walk candidates in insertion order so the similarity sort below,
	// being stable, breaks ties by insertion order.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].seq < candidates[j].seq
	})

	matches := make([]Match, 0, len(candidates))
	for _, entry := range candidates {
		similarity := embedder.Cosine(queryVec, entry.Vector)
		if similarity >= q.MinSimilarity {
			matches = append(matches, Match{MemoryID: entry.MemoryID, Similarity: similarity})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	x.searchCount++
	elapsed := time.Since(start)
	x.avgSearch += (elapsed - x.avgSearch) / time.Duration(x.searchCount)

	return matches
}

// candidates resolves the filter algebra: category and tags intersect, tags
// alone union, category alone, otherwise everything.
func (x *Index) candidates(category string, tags []string) []*Entry {
	var ids []string
	switch {
	case category != "" && len(tags) > 0:
		tagged := x.tagUnion(tags)
		ids = lo.Filter(lo.Keys(x.byCategory[category]), func(id string, _ int) bool {
			_, ok := tagged[id]
			return ok
		})
	case category != "":
		ids = lo.Keys(x.byCategory[category])
	case len(tags) > 0:
		ids = lo.Keys(x.tagUnion(tags))
	default:
		ids = lo.Keys(x.entries)
	}

	entries := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		if entry, ok := x.entries[id]; ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func (x *Index) tagUnion(tags []string) map[string]struct{} {
	union := make(map[string]struct{})
	for _, tag := range tags {
		for id := range x.byTag[tag] {
			union[id] = struct{}{}
		}
	}
	return union
}

// TopImportant returns ids in importance-descending order, optionally
// restricted to one category.
func (x *Index) TopImportant(limit int, category string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	ids := x.byImportance
	if category != "" {
		ids = lo.Filter(ids, func(id string, _ int) bool {
			entry, ok := x.entries[id]
			return ok && entry.Category == category
		})
	}

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return append([]string(nil), ids...)
}

// Remove deletes id from the primary and all secondary indices.
// Returns false when the id is unknown.
func (x *Index) Remove(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	entry, ok := x.entries[id]
	if !ok {
		return false
	}
	x.detach(entry)
	x.resortImportance()
	return true
}

// detach removes entry from every structure. Caller holds the lock and
// refreshes the importance ordering afterwards.
func (x *Index) detach(entry *Entry) {
	delete(x.entries, entry.MemoryID)

	if ids, ok := x.byCategory[entry.Category]; ok {
		delete(ids, entry.MemoryID)
		if len(ids) == 0 {
			delete(x.byCategory, entry.Category)
		}
	}
	for _, tag := range entry.Tags {
		if ids, ok := x.byTag[tag]; ok {
			delete(ids, entry.MemoryID)
			if len(ids) == 0 {
				delete(x.byTag, tag)
			}
		}
	}
}

func (x *Index) resortImportance() {
	ids := lo.Keys(x.entries)
	sort.Slice(ids, func(i, j int) bool {
		a, b := x.entries[ids[i]], x.entries[ids[j]]
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		return a.seq < b.seq
	})
	x.byImportance = ids
}

// Size returns the number of indexed vectors.
func (x *Index) Size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

// Stats returns index counters.
func (x *Index) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()

	return Stats{
		TotalVectors:      len(x.entries),
		Categories:        len(x.byCategory),
		Tags:              len(x.byTag),
		Dimension:         x.dimension,
		SearchCount:       x.searchCount,
		IndexUpdates:      x.indexUpdates,
		AverageSearchTime: x.avgSearch,
	}
}

// Snapshot copies every entry for persistence.
func (x *Index) Snapshot() map[string]Entry {
	x.mu.Lock()
	defer x.mu.Unlock()

	snap := make(map[string]Entry, len(x.entries))
	for id, entry := range x.entries {
		copied := *entry
		copied.Vector = append([]float32(nil), entry.Vector...)
		copied.Tags = append([]string(nil), entry.Tags...)
		snap[id] = copied
	}
	return snap
}

// Load replaces the index contents with a persisted snapshot. Entries whose
// vector does not match the index dimension are skipped; the resulting size
// mismatch makes the engine rebuild from fragments. Insertion order is
// restored from timestamps so tie-breaking survives a restart.
func (x *Index) Load(snapshot map[string]Entry) {
	entries := lo.Values(snapshot)
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].MemoryID < entries[j].MemoryID
	})

	x.mu.Lock()
	defer x.mu.Unlock()

	x.entries = make(map[string]*Entry, len(entries))
	x.byCategory = make(map[string]map[string]struct{})
	x.byTag = make(map[string]map[string]struct{})
	x.byImportance = nil
	x.nextSeq = 0

	for i := range entries {
		entry := entries[i]
		if len(entry.Vector) != x.dimension {
			log.WithFields(log.Fields{
				"memory_id": entry.MemoryID,
				"got":       len(entry.Vector),
				"want":      x.dimension,
			}).Warn("skipping index entry with wrong dimension")
			continue
		}
		x.insertEntry(&entry)
	}
}
