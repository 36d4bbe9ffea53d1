package health

import (
	"context"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexInspector reports vector index statistics.
type IndexInspector interface {
	Stats(ctx context.Context) (candidate.IndexStats, error)
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
