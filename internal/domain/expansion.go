package domain

import (
	"context"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

// Expansion is the outcome of concept extraction for a buyer query.
type Expansion struct {
	Expanded string
	Concepts []string
}

// Expander rewrites raw query text into a richer form plus extracted concepts.
type Expander interface {
	Expand(ctx context.Context, text string) (Expansion, error)
}

// PassthroughExpander returns the text unchanged with its qualifying terms as concepts.
type PassthroughExpander struct{}

// Expand implements Expander.
func (PassthroughExpander) Expand(_ context.Context, text string) (Expansion, error) {
	return Expansion{Expanded: text, Concepts: query.Terms(text)}, nil
}
