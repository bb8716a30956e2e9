package memory

import (
	"fmt"
	"time"
)

// Category classifies a memory fragment.
type Category string

const (
	CategoryRequirement Category = "requirement"
	CategoryDecision    Category = "decision"
	CategoryPattern     Category = "pattern"
	CategoryIssue       Category = "issue"
	CategoryLearning    Category = "learning"
	CategoryContext     Category = "context"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryRequirement, CategoryDecision, CategoryPattern,
		CategoryIssue, CategoryLearning, CategoryContext:
		return true
	}
	return false
}

// ParseCategory validates a raw category string.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s)}
	}
	return c, nil
}

// ValidationError reports invalid input rejected before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Fragment is one stored unit of text with its metadata. Fragments are
// immutable once created; changing a field means removing and re-adding.
type Fragment struct {
	ID         string    `json:"-"`
	Content    string    `json:"content"`
	Category   Category  `json:"category"`
	Importance float64   `json:"importance"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
	ProjectID  string    `json:"project_id"`
}

// fragmentMeta is per-fragment access bookkeeping, kept out of the fragment
// itself so fragments stay immutable.
type fragmentMeta struct {
	AccessCount int64      `json:"access_count"`
	LastAccess  *time.Time `json:"last_access"`
}

// RankedResult is one search hit hydrated from the fragment store.
type RankedResult struct {
	MemoryID    string    `json:"memory_id"`
	Content     string    `json:"content"`
	Category    Category  `json:"category"`
	Importance  float64   `json:"importance"`
	Similarity  float64   `json:"similarity"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	AccessCount int64     `json:"access_count"`
}

// Source identifies how a search was answered.
type Source string

const (
	SourceCache        Source = "cache"
	SourceVectorSearch Source = "vector_search"
)

// SearchResult is the response to one search call.
type SearchResult struct {
	Query          string
	Results        []RankedResult
	TotalFound     int
	ProcessingTime time.Duration
	Source         Source
}

// SearchOptions tunes one search call. The zero value means: limit 10, no
// filters, the configured default minimum similarity, cache enabled.
type SearchOptions struct {
	// Limit caps the number of results (default 10).
	Limit int

	// Category restricts results to one category when non-empty.
	Category Category

	// Tags restricts results to fragments carrying at least one of these
	// tags.
	Tags []string

	// MinSimilarity overrides Config.MinSimilarity when positive.
	MinSimilarity float64

	// DisableCache bypasses the semantic cache for this call, both lookup
	// and store.
	DisableCache bool
}

// Config holds engine tuning knobs. Zero fields take DefaultConfig values.
type Config struct {
	// Dimension is the embedding vector size.
	Dimension int

	// CacheMaxSize caps the semantic cache entry count.
	CacheMaxSize int

	// CacheTTL expires cache entries this long after last access.
	CacheTTL time.Duration

	// MinSimilarity is the default similarity floor for search.
	MinSimilarity float64

	// CacheMatchThreshold is the query similarity needed for a semantic
	// cache hit.
	CacheMatchThreshold float64

	// SimilarityWeight and ImportanceWeight blend similarity and
	// importance when re-ranking results. Tunable, not load-bearing.
	SimilarityWeight float64
	ImportanceWeight float64
}

// DefaultConfig holds the stock engine configuration.
var DefaultConfig = &Config{
	Dimension:           384,
	CacheMaxSize:        1000,
	CacheTTL:            24 * time.Hour,
	MinSimilarity:       0.3,
	CacheMatchThreshold: 0.85,
	SimilarityWeight:    0.7,
	ImportanceWeight:    0.3,
}

// withDefaults fills zero fields from DefaultConfig.
func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Dimension <= 0 {
		out.Dimension = DefaultConfig.Dimension
	}
	if out.CacheMaxSize <= 0 {
		out.CacheMaxSize = DefaultConfig.CacheMaxSize
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = DefaultConfig.CacheTTL
	}
	if out.MinSimilarity <= 0 {
		out.MinSimilarity = DefaultConfig.MinSimilarity
	}
	if out.CacheMatchThreshold <= 0 {
		out.CacheMatchThreshold = DefaultConfig.CacheMatchThreshold
	}
	if out.SimilarityWeight == 0 && out.ImportanceWeight == 0 {
		out.SimilarityWeight = DefaultConfig.SimilarityWeight
		out.ImportanceWeight = DefaultConfig.ImportanceWeight
	}
	return out
}

// performanceStats tracks retrieval counters, persisted alongside the
// fragments.
type performanceStats struct {
	TotalRetrievals      int64   `json:"total_retrievals"`
	CacheHits            int64   `json:"cache_hits"`
	VectorSearches       int64   `json:"vector_searches"`
	AverageRetrievalSecs float64 `json:"average_retrieval_time"`
	TotalMemories        int     `json:"total_memories"`
}

func (p *performanceStats) recordRetrieval(elapsed time.Duration) {
	// Running mean; TotalRetrievals was already incremented for this call.
	count := float64(p.TotalRetrievals)
	if count <= 0 {
		return
	}
	p.AverageRetrievalSecs = (p.AverageRetrievalSecs*(count-1) + elapsed.Seconds()) / count
}
