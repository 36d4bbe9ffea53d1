package ranking

import (
	"time"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
)

// Config tunes the ranking pipeline. Zero fields take defaults.
type Config struct {
	DefaultWeights   weights.Hybrid
	CandidateTopK    int
	HardMaxResults   int
	HistorySize      int
	LearningEnabled  bool
	Explanations     bool
	ExpansionTimeout time.Duration
	ProfileTimeout   time.Duration
	BatchConcurrency int
	ScoringWorkers   int
	InterestHalfLife time.Duration
}

// DefaultConfig returns the stock ranking settings.
func DefaultConfig() Config {
	return Config{
		DefaultWeights:   weights.Default(),
		CandidateTopK:    50,
		HardMaxResults:   query.HardMaxResults,
		HistorySize:      50,
		LearningEnabled:  true,
		Explanations:     true,
		ExpansionTimeout: 3 * time.Second,
		ProfileTimeout:   3 * time.Second,
		BatchConcurrency: 8,
		ScoringWorkers:   8,
		InterestHalfLife: 30 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultWeights.Sum() <= 0 {
		c.DefaultWeights = d.DefaultWeights
	}
	if c.CandidateTopK <= 0 {
		c.CandidateTopK = d.CandidateTopK
	}
	if c.HardMaxResults <= 0 || c.HardMaxResults > query.HardMaxResults {
		c.HardMaxResults = d.HardMaxResults
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.ExpansionTimeout <= 0 {
		c.ExpansionTimeout = d.ExpansionTimeout
	}
	if c.ProfileTimeout <= 0 {
		c.ProfileTimeout = d.ProfileTimeout
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = d.BatchConcurrency
	}
	if c.ScoringWorkers <= 0 {
		c.ScoringWorkers = d.ScoringWorkers
	}
	if c.InterestHalfLife <= 0 {
		c.InterestHalfLife = d.InterestHalfLife
	}
	return c
}
