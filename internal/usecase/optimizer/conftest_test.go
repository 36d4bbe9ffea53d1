package optimizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/indexopt"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

var errSourceDown = errors.New("source down")

type fakeSource struct {
	mu       sync.Mutex
	calls    int
	queries  []query.VectorQuery
	results  []candidate.Candidate
	failOn   float32 // first vector component that triggers an error
	stats    candidate.IndexStats
	statsErr error
}

func (f *fakeSource) Search(_ context.Context, q query.VectorQuery) ([]candidate.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, q.Clone())
	if f.failOn != 0 && len(q.Vector) > 0 && q.Vector[0] == f.failOn {
		return nil, errSourceDown
	}
	return candidate.CloneAll(f.results), nil
}

func (f *fakeSource) Stats(_ context.Context) (candidate.IndexStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) lastQuery() query.VectorQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

type tunableSource struct {
	*fakeSource
	applied []indexopt.Suggestion
	err     error
}

func (t *tunableSource) ApplySuggestions(_ context.Context, _ string, s []indexopt.Suggestion) error {
	t.applied = append(t.applied, s...)
	return t.err
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var _ domain.Clock = (*testClock)(nil)

func newTestOptimizer(t *testing.T, src Source, cfg Config) (*Optimizer, *testClock) {
	t.Helper()
	clock := newTestClock()
	o, err := New(src, cfg, clock, nil)
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o, clock
}

func vq(first float32) query.VectorQuery {
	return query.VectorQuery{Vector: []float32{first, 0.2, 0.3}, TopK: 10, Threshold: 0.5}
}

func someCandidates() []candidate.Candidate {
	return []candidate.Candidate{
		{ID: "a1", Similarity: 0.9},
		{ID: "a2", Similarity: 0.7},
	}
}

func candidate0() candidate.IndexStats {
	return candidate.IndexStats{IndexName: "artisan:idx", NumDocs: 10, Dimensions: 3}
}
