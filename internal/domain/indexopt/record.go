package indexopt

import (
	"time"

	"github.com/google/uuid"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
)

// Kind classifies a structural suggestion.
type Kind string

// Suggestion kinds.
const (
	KindPartition Kind = "partition"
	KindTuneGraph Kind = "tune_graph"
	KindReindex   Kind = "reindex"
)

// Suggestion is one proposed change to the vector index.
type Suggestion struct {
	Kind        Kind              `json:"kind"`
	Description string            `json:"description"`
	Params      map[string]string `json:"params,omitempty"`
}

// Record is the outcome of one index analysis pass.
type Record struct {
	ID                   string               `json:"id"`
	IndexName            string               `json:"index_name"`
	Stats                candidate.IndexStats `json:"stats"`
	Suggestions          []Suggestion         `json:"suggestions"`
	EstimatedImprovement float64              `json:"estimated_improvement"`
	Applied              bool                 `json:"applied"`
	CreatedAt            time.Time            `json:"created_at"`
}

// NewRecord creates a record with a fresh ID.
func NewRecord(stats candidate.IndexStats, suggestions []Suggestion, improvement float64, at time.Time) Record {
	return Record{
		ID:                   uuid.NewString(),
		IndexName:            stats.IndexName,
		Stats:                stats,
		Suggestions:          suggestions,
		EstimatedImprovement: improvement,
		CreatedAt:            at,
	}
}
