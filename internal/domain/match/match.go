package match

import (
	"sort"
	"time"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/profile"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
)

// Scores are the four per-candidate sub-scores, each in [0,1].
type Scores struct {
	Semantic    float64 `json:"semantic"`
	Keyword     float64 `json:"keyword"`
	Location    float64 `json:"location"`
	Performance float64 `json:"performance"`
}

// Mean is the unweighted average of the sub-scores.
func (s Scores) Mean() float64 {
	return (s.Semantic + s.Keyword + s.Location + s.Performance) / 4
}

// Factor is one line of the score breakdown.
type Factor struct {
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Breakdown records how each sub-score contributed to the hybrid score.
type Breakdown struct {
	Semantic    Factor `json:"semantic"`
	Keyword     Factor `json:"keyword"`
	Location    Factor `json:"location"`
	Performance Factor `json:"performance"`
}

// NewBreakdown pairs the scores with the weights they were fused under.
func NewBreakdown(s Scores, w weights.Hybrid) Breakdown {
	f := func(score, weight float64) Factor {
		return Factor{Score: score, Weight: weight, Contribution: float64(score * weight)}
	}
	return Breakdown{
		Semantic:    f(s.Semantic, w.Semantic),
		Keyword:     f(s.Keyword, w.Keyword),
		Location:    f(s.Location, w.Location),
		Performance: f(s.Performance, w.Performance),
	}
}

// Recompute returns Σ score×weight from the stored factors. The ranker uses
// this same function to set HybridScore, so the two are always equal.
func (b Breakdown) Recompute() float64 {
	sum := float64(b.Semantic.Score * b.Semantic.Weight)
	sum += float64(b.Keyword.Score * b.Keyword.Weight)
	sum += float64(b.Location.Score * b.Location.Weight)
	sum += float64(b.Performance.Score * b.Performance.Weight)
	return sum
}

// Connection links a query concept to a term the artisan declared.
type Connection struct {
	QueryConcept string  `json:"query_concept"`
	ArtisanTerm  string  `json:"artisan_term"`
	Similarity   float64 `json:"similarity"`
	Explanation  string  `json:"explanation"`
}

// Explanation is the human-readable account of a match.
type Explanation struct {
	Reasons     []string     `json:"reasons"`
	Connections []Connection `json:"connections"`
	Confidence  float64      `json:"confidence"`
}

// Metadata carries per-result processing details.
type Metadata struct {
	Elapsed          time.Duration `json:"elapsed"`
	VectorSimilarity float64       `json:"vector_similarity"`
	DistanceKm       *float64      `json:"distance_km,omitempty"`
	Optimizations    []string      `json:"optimizations_applied,omitempty"`
}

// Result is one ranked artisan.
type Result struct {
	Profile     profile.Profile `json:"profile"`
	Scores      Scores          `json:"scores"`
	HybridScore float64         `json:"hybrid_score"`
	Rank        int             `json:"rank"`
	Breakdown   Breakdown       `json:"breakdown"`
	Explanation *Explanation    `json:"explanation,omitempty"`
	Metadata    Metadata        `json:"metadata"`
}

// New builds an unranked result whose HybridScore is derived from the breakdown.
func New(p profile.Profile, s Scores, w weights.Hybrid, md Metadata) Result {
	b := NewBreakdown(s, w)
	return Result{
		Profile:     p,
		Scores:      s,
		HybridScore: b.Recompute(),
		Breakdown:   b,
		Metadata:    md,
	}
}

// Rank sorts results by HybridScore descending, keeping input order on ties,
// truncates to limit (when > 0) and assigns ranks 1..N.
func Rank(results []Result, limit int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].HybridScore > results[j].HybridScore
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
