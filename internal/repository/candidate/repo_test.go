package candidate

import (
	"context"
	"errors"
	"testing"

	"github.com/krishrathi1/kalasarthi-match/internal/db"
	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

func TestSearch_AppliesThresholdAndStripsPrefix(t *testing.T) {
	repo, ms := newTestRepo()

	var got *db.KNNQuery
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			{Key: "ks:artisan:a", Score: 0.92, Fields: map[string]string{"craft": "weaving"}},
			{Key: "ks:artisan:b", Score: 0.61},
			{Key: "ks:artisan:c", Score: 0.41},
		}}, nil
	}

	cands, err := repo.Search(context.Background(), query.VectorQuery{
		Vector:    []float32{0.1},
		TopK:      10,
		Threshold: 0.5,
		Filters:   query.Filters{"craft": {"weaving"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IndexName != "ks:artisans:idx" || got.K != 10 || got.TagFilters["craft"][0] != "weaving" {
		t.Errorf("unexpected KNN query: %+v", got)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates above threshold, got %d", len(cands))
	}
	if cands[0].ID != "a" || cands[1].ID != "b" {
		t.Errorf("unexpected IDs: %s, %s", cands[0].ID, cands[1].ID)
	}
	if cands[0].Metadata["craft"] != "weaving" {
		t.Errorf("metadata lost: %v", cands[0].Metadata)
	}
}

func TestSearch_HonorsTopK(t *testing.T) {
	repo, ms := newTestRepo()
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			{Key: "ks:artisan:a", Score: 0.9},
			{Key: "ks:artisan:b", Score: 0.8},
			{Key: "ks:artisan:c", Score: 0.7},
		}}, nil
	}
	cands, err := repo.Search(context.Background(), query.VectorQuery{Vector: []float32{1}, TopK: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("topK is a hard cap, got %d", len(cands))
	}
}

func TestSearch_WrapsIndexUnavailable(t *testing.T) {
	repo, ms := newTestRepo()
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("conn reset")}
	}
	_, err := repo.Search(context.Background(), query.VectorQuery{Vector: []float32{1}, TopK: 1})
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestVector(t *testing.T) {
	repo, ms := newTestRepo()
	ms.jsonGetFn = func(_ context.Context, key string, paths ...string) ([]byte, error) {
		if key != "ks:artisan:a" || paths[0] != "$.embedding" {
			t.Errorf("unexpected call: %s %v", key, paths)
		}
		return []byte(`[[0.5,0.25]]`), nil
	}
	vec, err := repo.Vector(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 || vec[1] != 0.25 {
		t.Errorf("unexpected vector: %v", vec)
	}
}

func TestVector_NotFound(t *testing.T) {
	repo, _ := newTestRepo()
	_, err := repo.Vector(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVector_EmptyEmbedding(t *testing.T) {
	repo, ms := newTestRepo()
	ms.jsonGetFn = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte(`[]`), nil
	}
	_, err := repo.Vector(context.Background(), "a")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVectors_OmitsMissing(t *testing.T) {
	repo, ms := newTestRepo()
	ms.jsonMGetFn = func(_ context.Context, keys []string, _ string) ([][]byte, error) {
		if keys[1] != "ks:artisan:b" {
			t.Errorf("unexpected keys: %v", keys)
		}
		return [][]byte{[]byte(`[[1,0]]`), nil, []byte(`not json`)}, nil
	}
	vecs, err := repo.Vectors(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vecs))
	}
	if _, ok := vecs["a"]; !ok {
		t.Error("expected vector for a")
	}
}

func TestStats(t *testing.T) {
	repo, ms := newTestRepo()
	ms.indexInfoFn = func(_ context.Context, name string) (*db.IndexInfo, error) {
		return &db.IndexInfo{Name: name, NumDocs: 42, IndexingFailures: 1, Dimensions: 768}, nil
	}
	st, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.NumDocs != 42 || st.IndexingFailures != 1 || st.Dimensions != 768 || st.IndexName != "ks:artisans:idx" {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestStats_Error(t *testing.T) {
	repo, ms := newTestRepo()
	ms.indexInfoFn = func(_ context.Context, _ string) (*db.IndexInfo, error) {
		return nil, db.ErrIndexNotFound
	}
	_, err := repo.Stats(context.Background())
	if !errors.Is(err, domain.ErrIndexUnavailable) || !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected both sentinels, got %v", err)
	}
}
