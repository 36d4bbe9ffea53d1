package ranking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/geo"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/profile"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/optimizer"
)

var (
	errEmbedDown  = errors.New("embedder down")
	errSourceDown = errors.New("source down")
)

// --- Mocks ---

type mockEmbedder struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail[text] {
		return domain.EmbeddingResult{}, errEmbedDown
	}
	// distinct texts yield distinct vectors so batch items get distinct keys
	return domain.EmbeddingResult{
		Embedding:   []float32{0.1, 0.2, float32(len(text))},
		TotalTokens: 3,
		Elapsed:     time.Millisecond,
	}, nil
}

type mockSource struct {
	mu      sync.Mutex
	results []candidate.Candidate
	err     error
	calls   int
	last    query.VectorQuery
}

func (m *mockSource) Search(_ context.Context, q query.VectorQuery) ([]candidate.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = q.Clone()
	if m.err != nil {
		return nil, m.err
	}
	out := candidate.CloneAll(m.results)
	if len(out) > q.TopK {
		out = out[:q.TopK]
	}
	return out, nil
}

func (m *mockSource) Stats(_ context.Context) (candidate.IndexStats, error) {
	return candidate.IndexStats{IndexName: "artisan:idx"}, nil
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockProfiles struct {
	byID map[string]profile.Profile
	err  error
}

func (m *mockProfiles) Fetch(_ context.Context, ids []string) ([]profile.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []profile.Profile
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockVectors struct {
	byID map[string][]float32
}

func (m *mockVectors) Vector(_ context.Context, id string) ([]float32, error) {
	v, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *mockVectors) Vectors(_ context.Context, ids []string) (map[string][]float32, error) {
	out := make(map[string][]float32)
	for _, id := range ids {
		if v, ok := m.byID[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type mockWeightStore struct {
	mu    sync.Mutex
	saved map[string]weights.Hybrid
	err   error
}

func (m *mockWeightStore) Save(_ context.Context, userID string, w weights.Hybrid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = make(map[string]weights.Hybrid)
	}
	m.saved[userID] = w
	return nil
}

func (m *mockWeightStore) LoadAll(_ context.Context) (map[string]weights.Hybrid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]weights.Hybrid, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out, m.err
}

type mockExpander struct {
	err error
}

func (m *mockExpander) Expand(_ context.Context, text string) (domain.Expansion, error) {
	if m.err != nil {
		return domain.Expansion{}, m.err
	}
	return domain.Expansion{Expanded: text + " handloom textile", Concepts: []string{"cotton", "scarf"}}, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- Fixtures ---

type fixture struct {
	svc      *Service
	embedder *mockEmbedder
	source   *mockSource
	profiles *mockProfiles
	vectors  *mockVectors
	store    *mockWeightStore
}

func newFixture(t *testing.T, cfg Config, mutate ...func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		embedder: &mockEmbedder{},
		source:   &mockSource{},
		profiles: &mockProfiles{byID: map[string]profile.Profile{}},
		vectors:  &mockVectors{byID: map[string][]float32{}},
		store:    &mockWeightStore{},
	}
	opt, err := optimizer.New(f.source, optimizer.Config{}, domain.ClockFunc(func() time.Time { return fixedNow }), nil)
	require.NoError(t, err)
	t.Cleanup(opt.Close)

	deps := Deps{
		Embedder:  f.embedder,
		Optimizer: opt,
		Profiles:  f.profiles,
		Vectors:   f.vectors,
		Weights:   f.store,
		Clock:     domain.ClockFunc(func() time.Time { return fixedNow }),
	}
	for _, m := range mutate {
		m(&deps)
	}
	f.svc, err = New(cfg, deps, nil)
	require.NoError(t, err)
	return f
}

func (f *fixture) addArtisan(p profile.Profile, similarity float64) {
	f.profiles.byID[p.ID] = p
	f.source.results = append(f.source.results, candidate.Candidate{ID: p.ID, Similarity: similarity})
}

func mustQuery(t *testing.T, text string, loc *geo.Point, maxResults int) query.Query {
	t.Helper()
	q, err := query.New(text, loc, nil, maxResults)
	require.NoError(t, err)
	return q
}

var jaipur = geo.Point{Lat: 26.9124, Lon: 75.7873}

// weaver returns a profile whose text contains every term of "handwoven cotton scarf".
func weaver(id string) profile.Profile {
	return profile.Profile{
		ID:              id,
		Name:            "Artisan " + id,
		Craft:           "Weaving",
		Skills:          []string{"handwoven textiles"},
		Materials:       []string{"cotton"},
		Specializations: []string{"scarf"},
	}
}
