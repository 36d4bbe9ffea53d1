package ranking

import (
	"math"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/interaction"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
)

// IncrementalLearner nudges semantic and performance weights up on each
// high-value interaction, within caps, and renormalizes to Total.
type IncrementalLearner struct {
	SemanticStep    float64
	SemanticCap     float64
	PerformanceStep float64
	PerformanceCap  float64
	Total           float64
}

// NewIncrementalLearner returns the stock learner for weights summing to total.
func NewIncrementalLearner(total float64) IncrementalLearner {
	return IncrementalLearner{
		SemanticStep:    0.01,
		SemanticCap:     0.6,
		PerformanceStep: 0.005,
		PerformanceCap:  0.3,
		Total:           total,
	}
}

// Update implements Learner.
func (l IncrementalLearner) Update(w weights.Hybrid, interactions []interaction.Interaction) weights.Hybrid {
	for _, it := range interactions {
		if !it.HighValue() {
			continue
		}
		w.Semantic = math.Min(w.Semantic+l.SemanticStep, l.SemanticCap)
		w.Performance = math.Min(w.Performance+l.PerformanceStep, l.PerformanceCap)
		w = w.Normalize(l.Total)
	}
	return w
}
