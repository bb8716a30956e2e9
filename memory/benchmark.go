package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/recall-go/memory/cache"
	"github.com/becomeliminal/recall-go/memory/index"
)

// benchmarkQueries seed the synthetic workload; each run appends an index
// suffix so cold-pass queries never hit the cache by accident.
var benchmarkQueries = []string{
	"project requirement analysis",
	"system architecture design",
	"database optimization",
	"user interface design",
	"performance testing",
	"deployment configuration",
	"error handling",
	"security review",
	"code refactoring",
	"documentation writing",
}

// BenchmarkReport summarizes one benchmark run.
type BenchmarkReport struct {
	RunID             string        `json:"run_id"`
	NumQueries        int           `json:"num_queries"`
	AverageSearchTime time.Duration `json:"average_search_time"`
	AverageCacheTime  time.Duration `json:"average_cache_time"`
	QueriesPerSecond  float64       `json:"queries_per_second"`
	CacheHitRate      float64       `json:"cache_hit_rate"`
	CacheSpeedup      float64       `json:"cache_speedup"`
	TotalMemories     int           `json:"total_memories"`
	VectorDimension   int           `json:"vector_dimension"`
	PerformanceGrade  string        `json:"performance_grade"`
}

// Benchmark measures retrieval performance: numQueries cold searches with
// caching disabled, then half of them again with caching enabled to measure
// the cache path.
func (e *Engine) Benchmark(ctx context.Context, numQueries int) BenchmarkReport {
	if numQueries <= 0 {
		numQueries = 100
	}
	runID := uuid.New().String()

	queries := make([]string, numQueries)
	for i := range queries {
		queries[i] = fmt.Sprintf("%s %d", benchmarkQueries[i%len(benchmarkQueries)], i)
	}

	var vectorTotal time.Duration
	for _, q := range queries {
		res := e.Search(ctx, q, &SearchOptions{Limit: 5, DisableCache: true})
		vectorTotal += res.ProcessingTime
	}
	avgVector := vectorTotal / time.Duration(numQueries)

	warm := queries[:numQueries/2+numQueries%2]
	var cacheTotal time.Duration
	for _, q := range warm {
		res := e.Search(ctx, q, &SearchOptions{Limit: 5})
		cacheTotal += res.ProcessingTime
	}
	avgCache := cacheTotal / time.Duration(len(warm))

	// Guard the ratio against sub-resolution cache timings.
	speedupBase := avgCache
	if speedupBase < time.Microsecond {
		speedupBase = time.Microsecond
	}

	qps := 0.0
	if avgVector > 0 {
		qps = float64(time.Second) / float64(avgVector)
	}

	report := BenchmarkReport{
		RunID:             runID,
		NumQueries:        numQueries,
		AverageSearchTime: avgVector,
		AverageCacheTime:  avgCache,
		QueriesPerSecond:  qps,
		CacheHitRate:      e.cache.Stats().HitRate,
		CacheSpeedup:      float64(avgVector) / float64(speedupBase),
		TotalMemories:     e.Size(),
		VectorDimension:   e.cfg.Dimension,
		PerformanceGrade:  performanceGrade(avgVector),
	}

	log.WithFields(log.Fields{
		"run_id":     runID,
		"avg_search": avgVector,
		"qps":        report.QueriesPerSecond,
		"grade":      report.PerformanceGrade,
	}).Debug("benchmark complete")

	return report
}

// performanceGrade maps average search latency to a letter grade.
func performanceGrade(avg time.Duration) string {
	switch {
	case avg < time.Millisecond:
		return "A+"
	case avg < 5*time.Millisecond:
		return "A"
	case avg < 10*time.Millisecond:
		return "B"
	case avg < 50*time.Millisecond:
		return "C"
	default:
		return "D"
	}
}

// RetrievalStats is the exported view of the engine's own counters.
type RetrievalStats struct {
	TotalRetrievals      int64         `json:"total_retrievals"`
	CacheHits            int64         `json:"cache_hits"`
	VectorSearches       int64         `json:"vector_searches"`
	AverageRetrievalTime time.Duration `json:"average_retrieval_time"`
	TotalMemories        int           `json:"total_memories"`
}

// IndexHealth scores the health of the retrieval stack in [0, 1].
type IndexHealth struct {
	Overall           float64 `json:"overall_health"`
	VectorIndex       float64 `json:"vector_index_health"`
	Cache             float64 `json:"cache_health"`
	SearchPerformance float64 `json:"search_performance_health"`
	Status            string  `json:"status"`
}

// PerformanceSummary aggregates counters across all layers.
type PerformanceSummary struct {
	Retrieval   RetrievalStats `json:"retrieval_stats"`
	Index       index.Stats    `json:"vector_index_stats"`
	Cache       cache.Stats    `json:"semantic_cache_stats"`
	MemoryCount int            `json:"memory_count"`
	Health      IndexHealth    `json:"index_health"`
}

// Summary returns a point-in-time performance summary with a health
// assessment.
func (e *Engine) Summary() PerformanceSummary {
	e.mu.Lock()
	perf := e.perf
	memCount := len(e.fragments)
	idx := e.idx
	e.mu.Unlock()

	indexStats := idx.Stats()
	cacheStats := e.cache.Stats()

	vectorHealth := 1.0
	if memCount > 0 {
		vectorHealth = float64(indexStats.TotalVectors) / float64(memCount)
		if vectorHealth > 1 {
			vectorHealth = 1
		}
	}

	searchSecs := indexStats.AverageSearchTime.Seconds()
	if searchSecs < 0.001 {
		searchSecs = 0.001
	}
	searchHealth := 1.0 / searchSecs
	if searchHealth > 1 {
		searchHealth = 1
	}

	overall := vectorHealth*0.4 + cacheStats.HitRate*0.3 + searchHealth*0.3
	status := "fair"
	switch {
	case overall > 0.8:
		status = "excellent"
	case overall > 0.6:
		status = "good"
	}

	return PerformanceSummary{
		Retrieval: RetrievalStats{
			TotalRetrievals:      perf.TotalRetrievals,
			CacheHits:            perf.CacheHits,
			VectorSearches:       perf.VectorSearches,
			AverageRetrievalTime: time.Duration(perf.AverageRetrievalSecs * float64(time.Second)),
			TotalMemories:        perf.TotalMemories,
		},
		Index:       indexStats,
		Cache:       cacheStats,
		MemoryCount: memCount,
		Health: IndexHealth{
			Overall:           overall,
			VectorIndex:       vectorHealth,
			Cache:             cacheStats.HitRate,
			SearchPerformance: searchHealth,
			Status:            status,
		},
	}
}
