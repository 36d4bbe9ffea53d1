package candidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/krishrathi1/kalasarthi-match/internal/db"
	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

// Metadata fields returned with every hit.
var returnFields = []string{"craft", "region", "city"}

// store is the consumer interface for candidate retrieval (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONMGet(ctx context.Context, keys []string, path string) ([][]byte, error)
}

// Repo is the vector candidate source backed by an FT index over artisan JSON documents.
type Repo struct {
	store     store
	keyPrefix string
	indexName string
}

// New creates a candidate repository. Artisan documents live at {keyPrefix}artisan:{id}.
func New(s store, keyPrefix, indexName string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, indexName: indexName}
}

// Search returns at most q.TopK candidates with similarity >= q.Threshold, nearest first.
func (r *Repo) Search(ctx context.Context, q query.VectorQuery) ([]candidate.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		Vector:       q.Vector,
		K:            q.TopK,
		TagFilters:   q.Filters,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if e.Score < q.Threshold {
			continue
		}
		out = append(out, candidate.Candidate{
			ID:         strings.TrimPrefix(e.Key, r.artisanPrefix()),
			Similarity: e.Score,
			Metadata:   e.Fields,
		})
		if len(out) == q.TopK {
			break
		}
	}
	return out, nil
}

// Vector returns the stored embedding of one artisan.
func (r *Repo) Vector(ctx context.Context, id string) ([]float32, error) {
	raw, err := r.store.JSONGet(ctx, r.artisanKey(id), "$.embedding")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("artisan %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: vector %s: %w", domain.ErrIndexUnavailable, id, err)
	}
	vec, err := decodeEmbedding(raw)
	if err != nil {
		return nil, fmt.Errorf("artisan %s: %w", id, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("artisan %s has no embedding: %w", id, domain.ErrNotFound)
	}
	return vec, nil
}

// Vectors returns stored embeddings keyed by ID; artisans without one are omitted.
func (r *Repo) Vectors(ctx context.Context, ids []string) (map[string][]float32, error) {
	if len(ids) == 0 {
		return map[string][]float32{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.artisanKey(id)
	}
	docs, err := r.store.JSONMGet(ctx, keys, "$.embedding")
	if err != nil {
		return nil, fmt.Errorf("%w: vectors: %w", domain.ErrIndexUnavailable, err)
	}
	out := make(map[string][]float32, len(ids))
	for i, raw := range docs {
		if raw == nil {
			continue
		}
		vec, err := decodeEmbedding(raw)
		if err != nil || len(vec) == 0 {
			continue
		}
		out[ids[i]] = vec
	}
	return out, nil
}

// Stats reports index-level statistics for the advisor.
func (r *Repo) Stats(ctx context.Context) (candidate.IndexStats, error) {
	info, err := r.store.IndexInfo(ctx, r.indexName)
	if err != nil {
		return candidate.IndexStats{}, fmt.Errorf("%w: index info: %w", domain.ErrIndexUnavailable, err)
	}
	return candidate.IndexStats{
		IndexName:        r.indexName,
		NumDocs:          info.NumDocs,
		IndexingFailures: info.IndexingFailures,
		Dimensions:       info.Dimensions,
	}, nil
}

func (r *Repo) artisanPrefix() string { return r.keyPrefix + "artisan:" }

func (r *Repo) artisanKey(id string) string { return r.artisanPrefix() + id }

// decodeEmbedding unwraps a JSONPath reply ([[...]]) into a vector.
func decodeEmbedding(raw []byte) ([]float32, error) {
	var wrapped [][]float32
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(wrapped) == 0 {
		return nil, nil
	}
	return wrapped[0], nil
}
