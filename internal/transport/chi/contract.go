package chi

import (
	"context"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/batch"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/history"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/interaction"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/match"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
	healthuc "github.com/krishrathi1/kalasarthi-match/internal/usecase/health"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/optimizer"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/ranking"
)

// Ranker is the matching engine surface served over HTTP.
type Ranker interface {
	Search(ctx context.Context, req ranking.Request) (ranking.Response, error)
	SearchBatch(ctx context.Context, reqs []ranking.Request) []batch.Item[ranking.Response]
	FindSimilar(ctx context.Context, id string, topK int, threshold float64) ([]match.Result, error)
	Recommend(ctx context.Context, userID string, interactions []interaction.Interaction, topK int) ([]match.Result, error)
	UpdatePreferences(ctx context.Context, userID string, interactions []interaction.Interaction) (weights.Hybrid, error)
	WeightsFor(userID string) weights.Hybrid
	History(userID string) []history.Entry
	OptimizationRecommendations() optimizer.Report
	ClearHistory()
}

// Maintenance runs scheduler tasks on demand.
type Maintenance interface {
	RunNow(ctx context.Context, name string) error
	Tasks() []string
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
