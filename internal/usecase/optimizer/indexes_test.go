package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/indexopt"
)

func kinds(s []indexopt.Suggestion) []indexopt.Kind {
	out := make([]indexopt.Kind, len(s))
	for i := range s {
		out[i] = s[i].Kind
	}
	return out
}

func TestAnalyzeIndexes_SmallIndexNeedsNothing(t *testing.T) {
	src := &fakeSource{stats: candidate0()}
	o, _ := newTestOptimizer(t, src, Config{})

	recs, err := o.AnalyzeIndexes(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Suggestions)
	assert.Zero(t, recs[0].EstimatedImprovement)
	assert.Equal(t, "artisan:idx", recs[0].IndexName)
	assert.NotEmpty(t, recs[0].ID)
}

func TestAnalyzeIndexes_Suggestions(t *testing.T) {
	src := &fakeSource{stats: candidate.IndexStats{IndexName: "idx", NumDocs: 2_000_000, IndexingFailures: 3}}
	o, _ := newTestOptimizer(t, src, Config{})

	recs, err := o.AnalyzeIndexes(context.Background())
	require.NoError(t, err)
	rec := recs[0]
	assert.Equal(t,
		[]indexopt.Kind{indexopt.KindPartition, indexopt.KindTuneGraph, indexopt.KindReindex},
		kinds(rec.Suggestions))
	assert.Equal(t, "21", rec.Suggestions[0].Params["partitions"])
	assert.InDelta(t, 1-0.7*0.8*0.9, rec.EstimatedImprovement, 1e-9)
	assert.False(t, rec.Applied, "source without tuner is a no-op")
}

func TestAnalyzeIndexes_PartitionOnly(t *testing.T) {
	src := &fakeSource{stats: candidate.IndexStats{IndexName: "idx", NumDocs: 150_000}}
	o, _ := newTestOptimizer(t, src, Config{})

	recs, err := o.AnalyzeIndexes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []indexopt.Kind{indexopt.KindPartition}, kinds(recs[0].Suggestions))
}

func TestAnalyzeIndexes_AppliesThroughTuner(t *testing.T) {
	src := &tunableSource{fakeSource: &fakeSource{stats: candidate.IndexStats{IndexName: "idx", NumDocs: 200_000}}}
	o, _ := newTestOptimizer(t, src, Config{})

	recs, err := o.AnalyzeIndexes(context.Background())
	require.NoError(t, err)
	assert.True(t, recs[0].Applied)
	assert.Len(t, src.applied, 1)
}

func TestAnalyzeIndexes_TunerFailureIsRecorded(t *testing.T) {
	src := &tunableSource{
		fakeSource: &fakeSource{stats: candidate.IndexStats{IndexName: "idx", NumDocs: 200_000}},
		err:        errors.New("read only"),
	}
	o, _ := newTestOptimizer(t, src, Config{})

	recs, err := o.AnalyzeIndexes(context.Background())
	require.NoError(t, err)
	assert.False(t, recs[0].Applied)
}

func TestAnalyzeIndexes_StatsError(t *testing.T) {
	src := &fakeSource{statsErr: domain.ErrIndexUnavailable}
	o, _ := newTestOptimizer(t, src, Config{})

	_, err := o.AnalyzeIndexes(context.Background())
	require.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Empty(t, o.IndexHistory())
}

func TestAnalyzeIndexes_HistoryBounded(t *testing.T) {
	src := &fakeSource{stats: candidate0()}
	o, _ := newTestOptimizer(t, src, Config{IndexHistorySize: 3})
	ctx := context.Background()

	var last string
	for i := 0; i < 5; i++ {
		recs, err := o.AnalyzeIndexes(ctx)
		require.NoError(t, err)
		last = recs[0].ID
	}

	hist := o.IndexHistory()
	require.Len(t, hist, 3)
	assert.Equal(t, last, hist[2].ID)
}

func TestRecommendations_IncludeIndexSuggestions(t *testing.T) {
	src := &fakeSource{stats: candidate.IndexStats{IndexName: "idx", NumDocs: 200_000}}
	o, _ := newTestOptimizer(t, src, Config{})

	_, err := o.AnalyzeIndexes(context.Background())
	require.NoError(t, err)

	r := o.Recommendations()
	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, "index", r.Recommendations[0].Category)
	assert.Equal(t, PriorityHigh, r.Recommendations[0].Priority)
	assert.InDelta(t, 0.3, r.EstimatedImprovements["index"], 1e-9)
	assert.Equal(t, PriorityHigh, r.Priority)
}

func TestRecommendations_LowHitRate(t *testing.T) {
	src := &fakeSource{results: someCandidates()}
	o, _ := newTestOptimizer(t, src, Config{})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := o.Execute(ctx, vq(float32(i)+1))
		require.NoError(t, err)
	}

	r := o.Recommendations()
	require.NotEmpty(t, r.Recommendations)
	assert.Equal(t, "caching", r.Recommendations[0].Category)
	assert.Equal(t, PriorityMedium, r.Recommendations[0].Priority)
	assert.InDelta(t, 0.3, r.EstimatedImprovements["caching"], 1e-9)
	assert.Equal(t, PriorityMedium, r.Priority)
}

func TestRecommendations_QuietEngine(t *testing.T) {
	o, _ := newTestOptimizer(t, &fakeSource{}, Config{})
	r := o.Recommendations()
	assert.Empty(t, r.Recommendations)
	assert.Equal(t, PriorityLow, r.Priority)
}
