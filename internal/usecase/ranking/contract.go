package ranking

import (
	"context"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/batch"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/interaction"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/profile"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/optimizer"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// CandidateExecutor fetches candidates through the query optimizer.
type CandidateExecutor interface {
	Execute(ctx context.Context, q query.VectorQuery) (optimizer.Execution, error)
	ExecuteBatch(ctx context.Context, qs []query.VectorQuery) ([]batch.Item[optimizer.Execution], optimizer.BatchMetrics, int)
	Recommendations() optimizer.Report
	Reset()
}

// ProfileStore resolves candidate IDs to profiles; missing IDs are omitted.
type ProfileStore interface {
	Fetch(ctx context.Context, ids []string) ([]profile.Profile, error)
}

// VectorReader reads stored artisan embeddings.
type VectorReader interface {
	Vector(ctx context.Context, id string) ([]float32, error)
	Vectors(ctx context.Context, ids []string) (map[string][]float32, error)
}

// WeightStore persists per-user weights.
type WeightStore interface {
	Save(ctx context.Context, userID string, w weights.Hybrid) error
	LoadAll(ctx context.Context) (map[string]weights.Hybrid, error)
}

// Learner adjusts a user's weights from feedback. Implementations must return a
// set with every weight in [0,1] and a positive sum.
type Learner interface {
	Update(current weights.Hybrid, interactions []interaction.Interaction) weights.Hybrid
}
