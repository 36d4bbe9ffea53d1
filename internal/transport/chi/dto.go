package chi

import (
	"fmt"
	"time"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/batch"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/geo"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/interaction"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/match"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/optimizer"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/ranking"
)

// SearchRequest is the body of POST /v1/search and one item of a batch.
type SearchRequest struct {
	Query      string              `json:"query"`
	Location   *geo.Point          `json:"location,omitempty"`
	Filters    map[string][]string `json:"filters,omitempty"`
	MaxResults int                 `json:"max_results,omitempty"`
	UserID     string              `json:"user_id,omitempty"`
}

// BatchSearchRequest is the body of POST /v1/search/batch.
type BatchSearchRequest struct {
	Queries []SearchRequest `json:"queries"`
}

// InteractionRequest is one recorded buyer engagement.
type InteractionRequest struct {
	ArtisanID string    `json:"artisan_id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Rating    float64   `json:"rating,omitempty"`
}

// PreferencesRequest is the body of POST /v1/preferences.
type PreferencesRequest struct {
	UserID       string               `json:"user_id"`
	Interactions []InteractionRequest `json:"interactions"`
}

// RecommendationsRequest is the body of POST /v1/recommendations.
type RecommendationsRequest struct {
	UserID       string               `json:"user_id"`
	Interactions []InteractionRequest `json:"interactions"`
	TopK         int                  `json:"top_k,omitempty"`
}

// QueryInfo echoes the processed query.
type QueryInfo struct {
	Text     string   `json:"text"`
	Expanded string   `json:"expanded"`
	Concepts []string `json:"concepts"`
}

// SearchMetrics reports how a search was served.
type SearchMetrics struct {
	ElapsedMs          float64        `json:"elapsed_ms"`
	EmbeddingElapsedMs float64        `json:"embedding_elapsed_ms"`
	EmbeddingCached    bool           `json:"embedding_cached"`
	Candidates         int            `json:"candidates"`
	ProfilesMissing    int            `json:"profiles_missing"`
	Optimizations      []string       `json:"optimizations_applied"`
	Weights            weights.Hybrid `json:"weights"`
}

// SearchResponse is a ranked artisan list.
type SearchResponse struct {
	Results []match.Result `json:"results"`
	Total   int            `json:"total"`
	Query   QueryInfo      `json:"query"`
	Metrics SearchMetrics  `json:"metrics"`
}

// BatchItemResponse is the outcome of one batch query.
type BatchItemResponse struct {
	Index  int             `json:"index"`
	Status string          `json:"status"`
	Result *SearchResponse `json:"result,omitempty"`
	Error  *ErrorResponse  `json:"error,omitempty"`
}

// BatchSearchResponse is the body returned by POST /v1/search/batch.
type BatchSearchResponse struct {
	Items     []BatchItemResponse `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// ResultsResponse wraps seeded search results.
type ResultsResponse struct {
	Results []match.Result `json:"results"`
	Total   int            `json:"total"`
}

// PreferencesResponse carries the user's weights after learning.
type PreferencesResponse struct {
	UserID  string         `json:"user_id"`
	Weights weights.Hybrid `json:"weights"`
}

// OptimizationStats is the wire form of optimizer.Stats.
type OptimizationStats struct {
	TotalQueries        int64   `json:"total_queries"`
	CacheHits           int64   `json:"cache_hits"`
	CacheHitRate        float64 `json:"cache_hit_rate"`
	AvgLatencyMs        float64 `json:"avg_latency_ms"`
	CacheSize           int     `json:"cache_size"`
	PatternCount        int     `json:"pattern_count"`
	PrecomputedPatterns int     `json:"precomputed_patterns"`
}

// OptimizationsResponse is the body of GET /v1/optimizations.
type OptimizationsResponse struct {
	Stats                 OptimizationStats          `json:"stats"`
	Recommendations       []optimizer.Recommendation `json:"recommendations"`
	EstimatedImprovements map[string]float64         `json:"estimated_improvements"`
	Priority              optimizer.Priority         `json:"priority"`
}

// MaintenanceResponse is returned after an on-demand maintenance pass.
type MaintenanceResponse struct {
	Task      string  `json:"task"`
	Status    string  `json:"status"`
	ElapsedMs float64 `json:"elapsed_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string           `json:"status"`
	Version string           `json:"version"`
	Checks  map[string]Check `json:"checks"`
}

// Check is one component outcome in a HealthResponse.
type Check struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (r SearchRequest) toDomain(defaultMaxResults int) (ranking.Request, error) {
	maxResults := r.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	q, err := query.New(r.Query, r.Location, query.Filters(r.Filters), maxResults)
	if err != nil {
		return ranking.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return ranking.Request{Query: q, UserID: r.UserID}, nil
}

func interactionsFromRequest(in []InteractionRequest, now time.Time) ([]interaction.Interaction, error) {
	out := make([]interaction.Interaction, 0, len(in))
	for i, it := range in {
		if it.ArtisanID == "" {
			return nil, fmt.Errorf("%w: interactions[%d].artisan_id is required", domain.ErrInvalidQuery, i)
		}
		typ, err := interaction.ParseType(it.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: interactions[%d]: %w", domain.ErrInvalidQuery, i, err)
		}
		ts := it.Timestamp
		if ts.IsZero() {
			ts = now
		}
		out = append(out, interaction.Interaction{
			ArtisanID: it.ArtisanID,
			Type:      typ,
			Timestamp: ts,
			Rating:    it.Rating,
		})
	}
	return out, nil
}

func searchResponseFrom(resp ranking.Response) SearchResponse {
	results := resp.Results
	if results == nil {
		results = []match.Result{}
	}
	concepts := resp.Query.Concepts()
	if concepts == nil {
		concepts = []string{}
	}
	m := resp.Metrics
	return SearchResponse{
		Results: results,
		Total:   len(results),
		Query: QueryInfo{
			Text:     resp.Query.Text(),
			Expanded: resp.Query.Expanded(),
			Concepts: concepts,
		},
		Metrics: SearchMetrics{
			ElapsedMs:          ms(m.Elapsed),
			EmbeddingElapsedMs: ms(m.EmbeddingElapsed),
			EmbeddingCached:    m.EmbeddingCached,
			Candidates:         m.Candidates,
			ProfilesMissing:    m.ProfilesMissing,
			Optimizations:      m.Optimizations,
			Weights:            m.Weights,
		},
	}
}

// batchResponseFrom merges per-query outcomes with request-level validation
// failures, keyed by submitted position.
func batchResponseFrom(n int, invalid map[int]error, idx []int, items []batch.Item[ranking.Response]) BatchSearchResponse {
	out := BatchSearchResponse{Items: make([]BatchItemResponse, n)}
	for i, err := range invalid {
		out.Items[i] = batchErrorItem(i, err)
	}
	for _, it := range items {
		pos := idx[it.Index()]
		if it.Status() == batch.StatusOK {
			r := searchResponseFrom(it.Value())
			out.Items[pos] = BatchItemResponse{Index: pos, Status: string(batch.StatusOK), Result: &r}
			continue
		}
		out.Items[pos] = batchErrorItem(pos, it.Err())
	}
	for _, it := range out.Items {
		if it.Status == string(batch.StatusOK) {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out
}

func batchErrorItem(pos int, err error) BatchItemResponse {
	_, code, msg := classify(err)
	return BatchItemResponse{
		Index:  pos,
		Status: string(batch.StatusError),
		Error:  &ErrorResponse{Code: code, Message: msg},
	}
}

func resultsResponse(results []match.Result) ResultsResponse {
	if results == nil {
		results = []match.Result{}
	}
	return ResultsResponse{Results: results, Total: len(results)}
}

func optimizationsResponseFrom(r optimizer.Report) OptimizationsResponse {
	recs := r.Recommendations
	if recs == nil {
		recs = []optimizer.Recommendation{}
	}
	return OptimizationsResponse{
		Stats: OptimizationStats{
			TotalQueries:        r.Stats.TotalQueries,
			CacheHits:           r.Stats.CacheHits,
			CacheHitRate:        r.Stats.CacheHitRate,
			AvgLatencyMs:        ms(r.Stats.AvgLatency),
			CacheSize:           r.Stats.CacheSize,
			PatternCount:        r.Stats.PatternCount,
			PrecomputedPatterns: r.Stats.PrecomputedPatterns,
		},
		Recommendations:       recs,
		EstimatedImprovements: r.EstimatedImprovements,
		Priority:              r.Priority,
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
