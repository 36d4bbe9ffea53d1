package weights

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned when a weight set cannot be used for ranking.
var ErrInvalidWeights = errors.New("invalid hybrid weights")

// Hybrid is the four-way fusion weighting.
type Hybrid struct {
	Semantic    float64 `json:"semantic"`
	Keyword     float64 `json:"keyword"`
	Location    float64 `json:"location"`
	Performance float64 `json:"performance"`
}

// Default returns the global fusion weights.
func Default() Hybrid {
	return Hybrid{Semantic: 0.4, Keyword: 0.2, Location: 0.2, Performance: 0.2}
}

// Sum returns the total of all four weights.
func (h Hybrid) Sum() float64 {
	return h.Semantic + h.Keyword + h.Location + h.Performance
}

// Validate checks that every weight is finite and in [0,1] and the set is normalizable.
func (h Hybrid) Validate() error {
	for name, w := range map[string]float64{
		"semantic":    h.Semantic,
		"keyword":     h.Keyword,
		"location":    h.Location,
		"performance": h.Performance,
	} {
		if math.IsNaN(w) || w < 0 || w > 1 {
			return fmt.Errorf("%w: %s weight %v outside [0,1]", ErrInvalidWeights, name, w)
		}
	}
	if h.Sum() <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	return nil
}

// Normalize scales the set so it sums to total, then clamps each weight to [0,1].
// A zero set is returned unchanged.
func (h Hybrid) Normalize(total float64) Hybrid {
	sum := h.Sum()
	if sum <= 0 || total <= 0 {
		return h
	}
	f := total / sum
	return Hybrid{
		Semantic:    clamp01(h.Semantic * f),
		Keyword:     clamp01(h.Keyword * f),
		Location:    clamp01(h.Location * f),
		Performance: clamp01(h.Performance * f),
	}
}

// SemanticOnly keeps the semantic and performance components, zeroes the
// others and rescales to total. Used when keyword and location do not apply.
func (h Hybrid) SemanticOnly(total float64) Hybrid {
	return Hybrid{Semantic: h.Semantic, Performance: h.Performance}.Normalize(total)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
