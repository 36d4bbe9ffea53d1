package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/indexopt"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/metrics"
)

// Labels reported in Execution.Applied.
const (
	OptCacheHit          = "cache_hit"
	OptPrecomputed       = "precomputed"
	OptQueryOptimization = "query_optimization"
	OptResultCaching     = "result_caching"
)

// Query rewrites reported in Optimized.Rewrites.
const (
	RewriteTopK             = "topk_tightening"
	RewriteThresholdDefault = "threshold_default"
	RewriteThresholdFloor   = "threshold_floor"
	RewriteFilterPruning    = "filter_pruning"
)

// Optimized is the outcome of rewriting one vector query.
type Optimized struct {
	Original     query.VectorQuery
	Query        query.VectorQuery
	Key          query.Key
	Frequency    int
	Rewrites     []string
	Precomputed  []candidate.Candidate
	ShortCircuit bool
}

// Execution is the candidate list produced for a query and how it was obtained.
type Execution struct {
	Candidates []candidate.Candidate
	Key        query.Key
	Applied    []string
	Elapsed    time.Duration
}

// Optimizer sits between the ranker and the vector candidate source.
// It owns the result cache, the query pattern table and the index analysis history.
type Optimizer struct {
	src      Source
	cfg      Config
	clock    domain.Clock
	logger   *zap.Logger
	cache    *resultCache
	patterns *patternTable
	pool     *ants.Pool
	stats    engineStats

	indexMu      sync.Mutex
	indexHistory []indexopt.Record
}

// New creates an optimizer over src. Call Close to release the precompute workers.
func New(src Source, cfg Config, clock domain.Clock, logger *zap.Logger) (*Optimizer, error) {
	if src == nil {
		return nil, errors.New("candidate source is required")
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	cache, err := newResultCache(cfg.Eviction, cfg.CacheMaxEntries, cfg.CacheTTL, clock)
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(cfg.PrecomputeWorkers)
	if err != nil {
		return nil, fmt.Errorf("create precompute pool: %w", err)
	}

	return &Optimizer{
		src:      src,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
		cache:    cache,
		patterns: newPatternTable(cfg.MaxPatterns),
		pool:     pool,
	}, nil
}

// Close releases the precompute worker pool.
func (o *Optimizer) Close() {
	o.pool.Release()
}

// Config returns the effective settings.
func (o *Optimizer) Config() Config { return o.cfg }

// Optimize records q in the pattern table and rewrites it.
// A pattern with a precomputed result younger than the cache TTL short-circuits
// without rewriting.
func (o *Optimizer) Optimize(q query.VectorQuery) (Optimized, error) {
	if err := q.Validate(); err != nil {
		return Optimized{}, fmt.Errorf("%w: %w", domain.ErrOptimizationFailed, err)
	}

	key := q.Key()
	p := o.patterns.observe(key, q, o.clock.Now())

	out := Optimized{Original: q.Clone(), Key: key, Frequency: p.Frequency}
	if p.HasPrecomputed && !p.stale(o.staleCutoff()) {
		out.Query = q.Clone()
		out.Precomputed = p.Precomputed
		out.ShortCircuit = true
		return out, nil
	}

	out.Query, out.Rewrites = o.rewrite(q, p.Frequency)
	return out, nil
}

// rewrite applies the rule chain. Vector dimensions pass through unchanged.
func (o *Optimizer) rewrite(q query.VectorQuery, frequency int) (query.VectorQuery, []string) {
	out := q.Clone()
	var rewrites []string

	if frequency > o.cfg.FrequentThreshold && out.TopK > o.cfg.FrequentTopKCeiling {
		out.TopK = o.cfg.FrequentTopKCeiling
		rewrites = append(rewrites, RewriteTopK)
	}

	switch {
	case out.Threshold <= 0:
		out.Threshold = o.cfg.DefaultThreshold
		rewrites = append(rewrites, RewriteThresholdDefault)
	case out.Threshold < o.cfg.MinThreshold:
		out.Threshold = o.cfg.MinThreshold
		rewrites = append(rewrites, RewriteThresholdFloor)
	}

	if pruned, removed := out.Filters.Pruned(); removed {
		out.Filters = pruned
		rewrites = append(rewrites, RewriteFilterPruning)
	}
	return out, rewrites
}

// staleCutoff is the newest precompute time that no longer counts as fresh.
func (o *Optimizer) staleCutoff() time.Time {
	return o.clock.Now().Add(-o.cfg.CacheTTL)
}

// Execute returns candidates for q, from the cache, a precomputed pattern or the source.
// A failed rewrite falls back to the original query.
func (o *Optimizer) Execute(ctx context.Context, q query.VectorQuery) (Execution, error) {
	start := time.Now()
	if q.TopK <= 0 {
		q.TopK = o.cfg.DefaultTopK
	}
	key := q.Key()

	if cands, ok := o.cache.get(key); ok {
		metrics.ResultCacheTotal.WithLabelValues("hit").Inc()
		return o.finish(Execution{Candidates: cands, Key: key, Applied: []string{OptCacheHit}}, start, true), nil
	}
	metrics.ResultCacheTotal.WithLabelValues("miss").Inc()

	var applied []string
	run := q
	opt, err := o.Optimize(q)
	switch {
	case err != nil:
		o.logger.Warn("query optimization failed, using original query",
			zap.String("key", string(key)),
			zap.Error(err),
		)
	case opt.ShortCircuit:
		return o.finish(Execution{Candidates: opt.Precomputed, Key: key, Applied: []string{OptPrecomputed}}, start, false), nil
	default:
		run = opt.Query
		if len(opt.Rewrites) > 0 {
			applied = append(applied, OptQueryOptimization)
		}
	}

	cands, err := o.search(ctx, run)
	if err != nil {
		o.stats.record(time.Since(start), false)
		return Execution{}, err
	}

	o.cache.put(key, cands)
	applied = append(applied, OptResultCaching)
	return o.finish(Execution{Candidates: cands, Key: key, Applied: applied}, start, false), nil
}

func (o *Optimizer) finish(e Execution, start time.Time, cacheHit bool) Execution {
	e.Elapsed = time.Since(start)
	for _, a := range e.Applied {
		metrics.OptimizationsTotal.WithLabelValues(a).Inc()
	}
	o.stats.record(e.Elapsed, cacheHit)
	return e
}

// search calls the candidate source under the configured timeout.
func (o *Optimizer) search(ctx context.Context, q query.VectorQuery) ([]candidate.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CandidateTimeout)
	defer cancel()

	cands, err := o.src.Search(ctx, q)
	if err != nil {
		if errors.Is(err, domain.ErrIndexUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return cands, nil
}

// Pattern returns the tracked pattern for k.
func (o *Optimizer) Pattern(k query.Key) (Pattern, bool) {
	return o.patterns.get(k)
}

// Reset drops cached results, tracked patterns, index analysis history and statistics.
func (o *Optimizer) Reset() {
	o.cache.purge()
	o.patterns.reset()
	o.indexMu.Lock()
	o.indexHistory = nil
	o.indexMu.Unlock()
	o.stats.reset()
}
