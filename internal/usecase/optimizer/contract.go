package optimizer

import (
	"context"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/indexopt"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

// Source is the vector candidate source the optimizer fronts.
type Source interface {
	Search(ctx context.Context, q query.VectorQuery) ([]candidate.Candidate, error)
	Stats(ctx context.Context) (candidate.IndexStats, error)
}

// IndexTuner is an optional Source capability for applying structural suggestions.
type IndexTuner interface {
	ApplySuggestions(ctx context.Context, indexName string, suggestions []indexopt.Suggestion) error
}
