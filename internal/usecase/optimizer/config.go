package optimizer

import (
	"fmt"
	"time"
)

// EvictionPolicy selects which cache entry is dropped when the cache is full.
type EvictionPolicy string

// Eviction policies.
const (
	EvictFIFO EvictionPolicy = "fifo"
	EvictLRU  EvictionPolicy = "lru"
)

// ParseEvictionPolicy maps a config value to a policy; empty means FIFO.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch EvictionPolicy(s) {
	case "", EvictFIFO:
		return EvictFIFO, nil
	case EvictLRU:
		return EvictLRU, nil
	default:
		return "", fmt.Errorf("unknown eviction policy %q", s)
	}
}

// Config tunes the optimizer. Zero fields take DefaultConfig values.
type Config struct {
	CacheMaxEntries     int
	CacheTTL            time.Duration
	Eviction            EvictionPolicy
	MaxPatterns         int
	FrequentThreshold   int
	FrequentTopKCeiling int
	DefaultTopK         int
	DefaultThreshold    float64
	MinThreshold        float64
	CandidateTimeout    time.Duration
	BatchConcurrency    int

	PrecomputeTopN         int
	PrecomputeMinFrequency int
	PrecomputeWorkers      int

	PartitionThreshold int64
	TuningThreshold    int64
	IndexHistorySize   int
}

// DefaultConfig returns the stock optimizer settings.
func DefaultConfig() Config {
	return Config{
		CacheMaxEntries:        1000,
		CacheTTL:               5 * time.Minute,
		Eviction:               EvictFIFO,
		MaxPatterns:            10000,
		FrequentThreshold:      10,
		FrequentTopKCeiling:    50,
		DefaultTopK:            50,
		DefaultThreshold:       0.5,
		MinThreshold:           0.3,
		CandidateTimeout:       3 * time.Second,
		BatchConcurrency:       8,
		PrecomputeTopN:         10,
		PrecomputeMinFrequency: 10,
		PrecomputeWorkers:      4,
		PartitionThreshold:     100_000,
		TuningThreshold:        1_000_000,
		IndexHistorySize:       100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = d.CacheMaxEntries
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.Eviction == "" {
		c.Eviction = d.Eviction
	}
	if c.MaxPatterns <= 0 {
		c.MaxPatterns = d.MaxPatterns
	}
	if c.FrequentThreshold <= 0 {
		c.FrequentThreshold = d.FrequentThreshold
	}
	if c.FrequentTopKCeiling <= 0 {
		c.FrequentTopKCeiling = d.FrequentTopKCeiling
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = d.DefaultTopK
	}
	if c.DefaultThreshold <= 0 {
		c.DefaultThreshold = d.DefaultThreshold
	}
	if c.MinThreshold <= 0 {
		c.MinThreshold = d.MinThreshold
	}
	if c.CandidateTimeout <= 0 {
		c.CandidateTimeout = d.CandidateTimeout
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = d.BatchConcurrency
	}
	if c.PrecomputeTopN <= 0 {
		c.PrecomputeTopN = d.PrecomputeTopN
	}
	if c.PrecomputeMinFrequency <= 0 {
		c.PrecomputeMinFrequency = d.PrecomputeMinFrequency
	}
	if c.PrecomputeWorkers <= 0 {
		c.PrecomputeWorkers = d.PrecomputeWorkers
	}
	if c.PartitionThreshold <= 0 {
		c.PartitionThreshold = d.PartitionThreshold
	}
	if c.TuningThreshold <= 0 {
		c.TuningThreshold = d.TuningThreshold
	}
	if c.IndexHistorySize <= 0 {
		c.IndexHistorySize = d.IndexHistorySize
	}
	return c
}
