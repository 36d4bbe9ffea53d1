package optimizer

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// PrecomputePopular executes the most frequent not-yet-optimized patterns and stores
// their candidates so later lookups short-circuit. Results older than the cache TTL
// are executed again. It returns how many were stored.
func (o *Optimizer) PrecomputePopular(ctx context.Context) (int, error) {
	cutoff := o.staleCutoff()
	popular := o.patterns.popular(o.cfg.PrecomputeMinFrequency, o.cfg.PrecomputeTopN, cutoff)
	if len(popular) == 0 {
		return 0, nil
	}

	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	for _, p := range popular {
		if ctx.Err() != nil {
			break
		}
		if !o.patterns.claim(p.Key, cutoff) {
			continue
		}

		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			q, _ := o.rewrite(p.Query, p.Frequency)
			cands, err := o.search(ctx, q)
			if err != nil {
				o.patterns.release(p.Key)
				o.logger.Warn("precompute failed",
					zap.String("key", string(p.Key)),
					zap.Int("frequency", p.Frequency),
					zap.Error(err),
				)
				return
			}
			o.patterns.setPrecomputed(p.Key, cands, o.clock.Now())
			done.Add(1)
		})
		if err != nil {
			wg.Done()
			o.patterns.release(p.Key)
			o.logger.Error("submit precompute task", zap.Error(err))
		}
	}
	wg.Wait()

	n := int(done.Load())
	o.logger.Info("precomputed popular queries",
		zap.Int("candidates", len(popular)),
		zap.Int("stored", n),
	)
	return n, ctx.Err()
}
