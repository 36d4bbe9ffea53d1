package optimizer

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/batch"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/metrics"
)

// BatchMetrics summarizes one ExecuteBatch call.
type BatchMetrics struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Groups    int           `json:"groups"`
	Elapsed   time.Duration `json:"elapsed"`
}

type groupKey struct {
	topK      int
	threshold float64
}

// ExecuteBatch runs queries grouped by (topK, threshold), groups concurrently.
// A failing query never affects its neighbours. Items come back in input order;
// the int is the number of optimizations fired across the batch.
func (o *Optimizer) ExecuteBatch(ctx context.Context, qs []query.VectorQuery) ([]batch.Item[Execution], BatchMetrics, int) {
	start := time.Now()
	items := make([]batch.Item[Execution], len(qs))

	var order []groupKey
	groups := make(map[groupKey][]int)
	for i, q := range qs {
		topK := q.TopK
		if topK <= 0 {
			topK = o.cfg.DefaultTopK
		}
		gk := groupKey{topK: topK, threshold: q.Threshold}
		if _, ok := groups[gk]; !ok {
			order = append(order, gk)
		}
		groups[gk] = append(groups[gk], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.BatchConcurrency)
	for _, gk := range order {
		idx := groups[gk]
		g.Go(func() error {
			for _, i := range idx {
				exec, err := o.Execute(gctx, qs[i])
				if err != nil {
					items[i] = batch.NewError[Execution](i, err)
					continue
				}
				items[i] = batch.NewOK(i, exec)
			}
			// Don't fail the group
			return nil
		})
	}
	_ = g.Wait()

	ok, failed := batch.Counts(items)
	metrics.BatchQueriesTotal.WithLabelValues("ok").Add(float64(ok))
	metrics.BatchQueriesTotal.WithLabelValues("error").Add(float64(failed))

	fired := 0
	for _, it := range items {
		fired += len(it.Value().Applied)
	}

	return items, BatchMetrics{
		Total:     len(qs),
		Succeeded: ok,
		Failed:    failed,
		Groups:    len(order),
		Elapsed:   time.Since(start),
	}, fired
}
