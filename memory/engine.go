package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/recall-go/memory/cache"
	"github.com/becomeliminal/recall-go/memory/embedder"
	"github.com/becomeliminal/recall-go/memory/index"
)

// metadataRetention bounds how long access bookkeeping for never-accessed
// fragments is kept before OptimizeIndices prunes it.
const metadataRetention = 30 * 24 * time.Hour

// Engine is the retrieval façade. It exclusively owns the fragment store,
// the vector index, and the semantic cache, and persists the first two to
// disk on every mutation.
//
// All operations are synchronous and safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	projectID string
	cfg       Config
	emb       embedder.Embedder

	idx   *index.Index
	cache *cache.Cache[[]RankedResult]

	fragments map[string]*Fragment
	meta      map[string]*fragmentMeta
	perf      performanceStats
	nextSeq   uint64

	fragmentsPath string
	indexPath     string
}

// Open creates or reloads the collection projectID under dir. A nil
// embedder selects the feature embedder; a nil config selects DefaultConfig.
// If the loaded fragment and index snapshots disagree in size, the index is
// rebuilt from fragments before the engine serves any request.
func Open(dir, projectID string, emb embedder.Embedder, cfg *Config) (*Engine, error) {
	config := cfg.withDefaults()
	if projectID == "" {
		projectID = "default"
	}
	if emb == nil {
		emb = embedder.New(config.Dimension)
	}
	// The embedder owns the dimension; config follows it.
	config.Dimension = emb.Dimensions()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	e := &Engine{
		projectID: projectID,
		cfg:       config,
		emb:       emb,
		idx:       index.New(emb),
		cache: cache.New[[]RankedResult](cache.Config{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		}),
		fragments:     make(map[string]*Fragment),
		meta:          make(map[string]*fragmentMeta),
		fragmentsPath: filepath.Join(dir, projectID+"_memories.json"),
		indexPath:     filepath.Join(dir, projectID+"_vector_index.json"),
	}

	e.load(context.Background())

	log.WithFields(log.Fields{
		"project":   projectID,
		"dimension": config.Dimension,
		"memories":  len(e.fragments),
	}).Debug("retrieval engine initialized")

	return e, nil
}

// Close flushes both snapshot files and returns any write error.
func (e *Engine) Close() error {
	return e.save()
}

// AddMemory validates and stores a new fragment, indexes it, invalidates
// the cache, and persists both snapshots. Returns the new fragment id.
func (e *Engine) AddMemory(ctx context.Context, content string, category Category, importance float64, tags []string) (string, error) {
	if !category.Valid() {
		return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}
	if importance < 0 || importance > 1 {
		return "", &ValidationError{Field: "importance", Reason: fmt.Sprintf("%v outside [0,1]", importance)}
	}

	e.mu.Lock()
	e.nextSeq++
	id := fmt.Sprintf("mem_%06d_%08x", e.nextSeq, contentHash(content))
	e.fragments[id] = &Fragment{
		ID:         id,
		Content:    content,
		Category:   category,
		Importance: importance,
		Tags:       append([]string(nil), tags...),
		CreatedAt:  time.Now(),
		ProjectID:  e.projectID,
	}
	e.meta[id] = &fragmentMeta{}
	idx := e.idx
	e.mu.Unlock()

	if !idx.Insert(ctx, id, content, string(category), importance, tags) {
		// Fragment stored but unindexed; OptimizeIndices repairs the drift.
		return id, fmt.Errorf("index insert failed for %s", id)
	}

	e.mu.Lock()
	e.perf.TotalMemories = len(e.fragments)
	e.mu.Unlock()

	e.cache.Clear()
	e.persist()

	log.WithFields(log.Fields{"memory_id": id, "category": category}).Debug("memory added")
	return id, nil
}

// Search answers a query from the semantic cache when possible, otherwise
// by vector search with hydration and re-ranking. It never fails: an empty
// result set is a valid answer.
func (e *Engine) Search(ctx context.Context, query string, opts *SearchOptions) *SearchResult {
	start := time.Now()

	o := SearchOptions{}
	if opts != nil {
		o = *opts
	}
	if o.Limit <= 0 {
		o.Limit = 10
	}
	minSimilarity := o.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = e.cfg.MinSimilarity
	}

	e.mu.Lock()
	e.perf.TotalRetrievals++
	idx := e.idx
	e.mu.Unlock()

	if !o.DisableCache {
		if cached, ok := e.cache.Get(query, e.cfg.CacheMatchThreshold); ok {
			elapsed := time.Since(start)
			e.mu.Lock()
			e.perf.CacheHits++
			e.perf.recordRetrieval(elapsed)
			e.mu.Unlock()

			return &SearchResult{
				Query:          query,
				Results:        append([]RankedResult(nil), cached...),
				TotalFound:     len(cached),
				ProcessingTime: elapsed,
				Source:         SourceCache,
			}
		}
	}

	e.mu.Lock()
	e.perf.VectorSearches++
	e.mu.Unlock()

	// Over-fetch so the blended re-rank below has candidates to demote.
	matches := idx.Search(ctx, index.Query{
		Text:          query,
		Limit:         o.Limit * 2,
		Category:      string(o.Category),
		Tags:          o.Tags,
		MinSimilarity: minSimilarity,
	})

	e.mu.Lock()
	results := make([]RankedResult, 0, len(matches))
	for _, m := range matches {
		frag, ok := e.fragments[m.MemoryID]
		if !ok {
			continue
		}
		results = append(results, e.hydrateLocked(frag, m.Similarity))
	}
	e.mu.Unlock()

	sort.SliceStable(results, func(i, j int) bool {
		return e.blendedScore(results[i]) > e.blendedScore(results[j])
	})
	if len(results) > o.Limit {
		results = results[:o.Limit]
	}

	if !o.DisableCache && len(results) > 0 {
		e.cache.Put(query, results)
	}

	elapsed := time.Since(start)
	e.mu.Lock()
	e.perf.recordRetrieval(elapsed)
	e.mu.Unlock()

	return &SearchResult{
		Query:          query,
		Results:        results,
		TotalFound:     len(results),
		ProcessingTime: elapsed,
		Source:         SourceVectorSearch,
	}
}

// blendedScore combines vector similarity with stored importance for the
// final ranking.
func (e *Engine) blendedScore(r RankedResult) float64 {
	return r.Similarity*e.cfg.SimilarityWeight + r.Importance*e.cfg.ImportanceWeight
}

// hydrateLocked builds a RankedResult from a fragment, bumping its access
// bookkeeping. Caller holds e.mu.
func (e *Engine) hydrateLocked(frag *Fragment, similarity float64) RankedResult {
	meta, ok := e.meta[frag.ID]
	if !ok {
		meta = &fragmentMeta{}
		e.meta[frag.ID] = meta
	}
	now := time.Now()
	meta.AccessCount++
	meta.LastAccess = &now

	return RankedResult{
		MemoryID:    frag.ID,
		Content:     frag.Content,
		Category:    frag.Category,
		Importance:  frag.Importance,
		Similarity:  similarity,
		Tags:        frag.Tags,
		CreatedAt:   frag.CreatedAt,
		AccessCount: meta.AccessCount,
	}
}

// RemoveMemory deletes a fragment from the store and the index, invalidates
// the cache, and persists. Returns false for an unknown id.
func (e *Engine) RemoveMemory(id string) bool {
	e.mu.Lock()
	if _, ok := e.fragments[id]; !ok {
		e.mu.Unlock()
		return false
	}
	delete(e.fragments, id)
	delete(e.meta, id)
	e.perf.TotalMemories = len(e.fragments)
	idx := e.idx
	e.mu.Unlock()

	idx.Remove(id)
	e.cache.Clear()
	e.persist()

	log.WithField("memory_id", id).Debug("memory removed")
	return true
}

// GetMemoryByID returns one fragment as a RankedResult (similarity zero),
// bumping its access bookkeeping. The second return is false for an unknown
// id.
func (e *Engine) GetMemoryByID(id string) (RankedResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	frag, ok := e.fragments[id]
	if !ok {
		return RankedResult{}, false
	}
	return e.hydrateLocked(frag, 0), true
}

// TopMemories returns up to limit fragments in importance-descending order,
// optionally restricted to one category. Pass an empty Category for no
// filter.
func (e *Engine) TopMemories(limit int, category Category) []RankedResult {
	e.mu.Lock()
	idx := e.idx
	e.mu.Unlock()

	ids := idx.TopImportant(limit, string(category))

	e.mu.Lock()
	defer e.mu.Unlock()

	results := make([]RankedResult, 0, len(ids))
	for _, id := range ids {
		if frag, ok := e.fragments[id]; ok {
			results = append(results, e.hydrateLocked(frag, 0))
		}
	}
	return results
}

// OptimizeIndices sweeps expired cache entries, rebuilds the vector index
// when it has drifted from the fragment store, and prunes stale access
// bookkeeping. This is the single recovery path for any detected
// inconsistency.
func (e *Engine) OptimizeIndices(ctx context.Context) {
	expired := e.cache.ClearExpired()
	if expired > 0 {
		log.WithField("expired", expired).Debug("cleared expired cache entries")
	}

	e.mu.Lock()
	fragCount := len(e.fragments)
	idx := e.idx
	e.mu.Unlock()

	if fragCount != idx.Size() {
		log.WithFields(log.Fields{
			"fragments": fragCount,
			"vectors":   idx.Size(),
		}).Warn("fragment/index size mismatch, rebuilding vector index")
		e.rebuild(ctx)
		e.persist()
	}

	e.pruneStaleMeta()
}

// rebuild re-embeds every fragment into a fresh index. Rebuilding is
// infallible for fragments that were valid when added.
func (e *Engine) rebuild(ctx context.Context) {
	fresh := index.New(e.emb)

	e.mu.Lock()
	fragments := lo.Values(e.fragments)
	e.mu.Unlock()

	// Fragment ids carry their insertion sequence. Compare it numerically:
	// lexicographic order breaks once ids outgrow the zero padding.
	sort.Slice(fragments, func(i, j int) bool {
		si, iok := idSeq(fragments[i].ID)
		sj, jok := idSeq(fragments[j].ID)
		if iok && jok && si != sj {
			return si < sj
		}
		return fragments[i].ID < fragments[j].ID
	})
	for _, frag := range fragments {
		fresh.Insert(ctx, frag.ID, frag.Content, string(frag.Category), frag.Importance, frag.Tags)
	}

	e.mu.Lock()
	e.idx = fresh
	e.mu.Unlock()

	log.WithField("vectors", fresh.Size()).Debug("vector index rebuilt")
}

// pruneStaleMeta drops access bookkeeping for fragments that were never
// retrieved and are older than the retention window. The fragments
// themselves are kept.
func (e *Engine) pruneStaleMeta() {
	cutoff := time.Now().Add(-metadataRetention)

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, meta := range e.meta {
		if meta.AccessCount != 0 {
			continue
		}
		if frag, ok := e.fragments[id]; ok && frag.CreatedAt.After(cutoff) {
			continue
		}
		delete(e.meta, id)
	}
}

// IndexStats returns the vector index counters.
func (e *Engine) IndexStats() index.Stats {
	e.mu.Lock()
	idx := e.idx
	e.mu.Unlock()
	return idx.Stats()
}

// CacheStats returns the semantic cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// Size returns the number of stored fragments.
func (e *Engine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fragments)
}

func contentHash(content string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(content))
	return h.Sum32()
}
