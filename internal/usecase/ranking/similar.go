package ranking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/interaction"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/match"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

// Seeded search defaults.
const (
	DefaultSimilarTopK      = 10
	DefaultSimilarThreshold = 0.5
	DefaultRecommendTopK    = 20
)

// FindSimilar ranks artisans close to the stored vector of id. Only semantic and
// performance contribute. The seed is never returned.
func (s *Service) FindSimilar(ctx context.Context, id string, topK int, threshold float64) ([]match.Result, error) {
	start := time.Now()
	if topK <= 0 {
		topK = DefaultSimilarTopK
	}
	if threshold <= 0 {
		threshold = DefaultSimilarThreshold
	}
	topK = min(topK, s.cfg.HardMaxResults)

	vec, err := s.vectors.Vector(ctx, id)
	if err != nil {
		observe("similar", start, err)
		return nil, fmt.Errorf("seed vector: %w", err)
	}

	results, err := s.seeded(ctx, vec, topK, threshold, map[string]struct{}{id: {}}, start)
	observe("similar", start, err)
	return results, err
}

// Recommend ranks artisans against an interest vector built from the user's
// interactions, weighted by type and decayed by age. Artisans the user already
// interacted with are excluded.
func (s *Service) Recommend(
	ctx context.Context, userID string, interactions []interaction.Interaction, topK int,
) ([]match.Result, error) {
	start := time.Now()
	if topK <= 0 {
		topK = DefaultRecommendTopK
	}
	topK = min(topK, s.cfg.HardMaxResults)

	if len(interactions) == 0 {
		err := fmt.Errorf("%w: no interactions for user %q", domain.ErrInvalidQuery, userID)
		observe("recommend", start, err)
		return nil, err
	}

	exclude := make(map[string]struct{}, len(interactions))
	ids := make([]string, 0, len(interactions))
	for _, it := range interactions {
		if _, ok := exclude[it.ArtisanID]; ok {
			continue
		}
		exclude[it.ArtisanID] = struct{}{}
		ids = append(ids, it.ArtisanID)
	}

	vecs, err := s.vectors.Vectors(ctx, ids)
	if err != nil {
		observe("recommend", start, err)
		return nil, fmt.Errorf("interaction vectors: %w", err)
	}

	interest, err := s.interestVector(interactions, vecs)
	if err != nil {
		observe("recommend", start, err)
		return nil, err
	}

	results, err := s.seeded(ctx, interest, topK, 0, exclude, start)
	observe("recommend", start, err)
	return results, err
}

// interestVector is Σ vector × baseWeight × 0.5^(age/halfLife), L2-normalized.
func (s *Service) interestVector(interactions []interaction.Interaction, vecs map[string][]float32) ([]float32, error) {
	now := s.clock.Now()
	var acc []float64
	for _, it := range interactions {
		v, ok := vecs[it.ArtisanID]
		if !ok {
			continue
		}
		if acc == nil {
			acc = make([]float64, len(v))
		}
		if len(v) != len(acc) {
			continue
		}
		age := now.Sub(it.Timestamp)
		if age < 0 {
			age = 0
		}
		w := it.Type.BaseWeight() * math.Pow(0.5, float64(age)/float64(s.cfg.InterestHalfLife))
		for i, x := range v {
			acc[i] += float64(x) * w
		}
	}
	if acc == nil {
		return nil, fmt.Errorf("no stored vectors for interacted artisans: %w", domain.ErrNotFound)
	}

	var norm float64
	for _, x := range acc {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, fmt.Errorf("%w: interest vector is zero", domain.ErrInvalidQuery)
	}
	out := make([]float32, len(acc))
	for i, x := range acc {
		out[i] = float32(x / norm)
	}
	return out, nil
}

// seeded runs a vector-only search and ranks it with semantic and performance weights.
func (s *Service) seeded(
	ctx context.Context, vec []float32, topK int, threshold float64,
	exclude map[string]struct{}, start time.Time,
) ([]match.Result, error) {
	exec, err := s.optimizer.Execute(ctx, query.VectorQuery{
		Vector:    vec,
		TopK:      topK + len(exclude),
		Threshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	cands := make([]candidate.Candidate, 0, len(exec.Candidates))
	for _, c := range exec.Candidates {
		if _, skip := exclude[c.ID]; !skip {
			cands = append(cands, c)
		}
	}

	w := s.cfg.DefaultWeights
	results, _, err := s.rank(ctx, cands, scoring{
		weights:      w.SemanticOnly(w.Sum()),
		applied:      exec.Applied,
		start:        start,
		semanticOnly: true,
	}, topK)
	if err != nil {
		return nil, err
	}
	if s.cfg.Explanations {
		for i := range results {
			e := Explain(results[i], query.Query{})
			// no buyer location on this path, so confidence counts location as neutral
			sc := results[i].Scores
			sc.Location = neutralScore
			e.Confidence = sc.Mean()
			results[i].Explanation = &e
		}
	}
	return results, nil
}
