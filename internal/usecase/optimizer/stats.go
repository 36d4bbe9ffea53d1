package optimizer

import (
	"fmt"
	"sync"
	"time"
)

type engineStats struct {
	mu           sync.Mutex
	totalQueries int64
	cacheHits    int64
	totalLatency time.Duration
}

func (s *engineStats) record(elapsed time.Duration, cacheHit bool) {
	s.mu.Lock()
	s.totalQueries++
	if cacheHit {
		s.cacheHits++
	}
	s.totalLatency += elapsed
	s.mu.Unlock()
}

func (s *engineStats) reset() {
	s.mu.Lock()
	s.totalQueries, s.cacheHits, s.totalLatency = 0, 0, 0
	s.mu.Unlock()
}

// Stats is a point-in-time view of optimizer activity.
type Stats struct {
	TotalQueries        int64         `json:"total_queries"`
	CacheHits           int64         `json:"cache_hits"`
	CacheHitRate        float64       `json:"cache_hit_rate"`
	AvgLatency          time.Duration `json:"avg_latency"`
	CacheSize           int           `json:"cache_size"`
	PatternCount        int           `json:"pattern_count"`
	PrecomputedPatterns int           `json:"precomputed_patterns"`
}

// Stats returns the current counters.
func (o *Optimizer) Stats() Stats {
	o.stats.mu.Lock()
	st := Stats{TotalQueries: o.stats.totalQueries, CacheHits: o.stats.cacheHits}
	if st.TotalQueries > 0 {
		st.CacheHitRate = float64(st.CacheHits) / float64(st.TotalQueries)
		st.AvgLatency = o.stats.totalLatency / time.Duration(st.TotalQueries)
	}
	o.stats.mu.Unlock()

	st.CacheSize = o.cache.len()
	for _, p := range o.patterns.all() {
		st.PatternCount++
		if p.HasPrecomputed {
			st.PrecomputedPatterns++
		}
	}
	return st
}

// Priority ranks a recommendation.
type Priority string

// Priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Recommendation is a tuning hint derived from engine statistics.
type Recommendation struct {
	Category string   `json:"category"`
	Priority Priority `json:"priority"`
	Message  string   `json:"message"`
}

// Report bundles statistics, recommendations and estimated gains per category.
// Priority is the highest priority among the recommendations, low when there are none.
type Report struct {
	Stats                 Stats              `json:"stats"`
	Recommendations       []Recommendation   `json:"recommendations"`
	EstimatedImprovements map[string]float64 `json:"estimated_improvements"`
	Priority              Priority           `json:"priority"`
}

var priorityRank = map[Priority]int{PriorityLow: 0, PriorityMedium: 1, PriorityHigh: 2}

const (
	minQueriesForAdvice = 100
	lowHitRate          = 0.3
	slowAverage         = 500 * time.Millisecond
	patternPressure     = 0.8
)

// Recommendations derives tuning hints from current statistics and the latest index analysis.
func (o *Optimizer) Recommendations() Report {
	st := o.Stats()
	r := Report{Stats: st, EstimatedImprovements: map[string]float64{}}

	if st.TotalQueries >= minQueriesForAdvice && st.CacheHitRate < lowHitRate {
		r.Recommendations = append(r.Recommendations, Recommendation{
			Category: "caching",
			Priority: PriorityMedium,
			Message: fmt.Sprintf("cache hit rate %.0f%% is low; raise cache size (%d) or TTL (%s)",
				st.CacheHitRate*100, o.cfg.CacheMaxEntries, o.cfg.CacheTTL),
		})
		r.EstimatedImprovements["caching"] = lowHitRate - st.CacheHitRate
	}

	if st.TotalQueries > 0 && st.AvgLatency > slowAverage {
		r.Recommendations = append(r.Recommendations, Recommendation{
			Category: "latency",
			Priority: PriorityHigh,
			Message: fmt.Sprintf("average latency %s exceeds %s; precompute popular queries more often",
				st.AvgLatency.Round(time.Millisecond), slowAverage),
		})
		r.EstimatedImprovements["latency"] = 1 - float64(slowAverage)/float64(st.AvgLatency)
	}

	if float64(st.PatternCount) > patternPressure*float64(o.cfg.MaxPatterns) {
		r.Recommendations = append(r.Recommendations, Recommendation{
			Category: "patterns",
			Priority: PriorityLow,
			Message:  fmt.Sprintf("pattern table holds %d of %d entries", st.PatternCount, o.cfg.MaxPatterns),
		})
	}

	if hist := o.IndexHistory(); len(hist) > 0 {
		last := hist[len(hist)-1]
		if len(last.Suggestions) > 0 && !last.Applied {
			for _, s := range last.Suggestions {
				r.Recommendations = append(r.Recommendations, Recommendation{
					Category: "index",
					Priority: PriorityHigh,
					Message:  s.Description,
				})
			}
			r.EstimatedImprovements["index"] = last.EstimatedImprovement
		}
	}

	r.Priority = PriorityLow
	for _, rec := range r.Recommendations {
		if priorityRank[rec.Priority] > priorityRank[r.Priority] {
			r.Priority = rec.Priority
		}
	}
	return r
}
