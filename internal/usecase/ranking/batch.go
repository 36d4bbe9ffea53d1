package ranking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/batch"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

type prepared struct {
	q   query.Query
	emb domain.EmbeddingResult
	err error
}

// SearchBatch runs many searches. Embedding happens in parallel, candidates are
// fetched through one optimizer batch, and each request is ranked independently.
// A failure in one request never affects the others.
func (s *Service) SearchBatch(ctx context.Context, reqs []Request) []batch.Item[Response] {
	start := time.Now()
	items := make([]batch.Item[Response], len(reqs))
	preps := make([]prepared, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			q, emb, err := s.prepare(gctx, req.Query)
			preps[i] = prepared{q: q, emb: emb, err: err}
			// Don't fail the group
			return nil
		})
	}
	_ = g.Wait()

	var (
		vqs   []query.VectorQuery
		owner []int
	)
	for i, p := range preps {
		if p.err != nil {
			items[i] = batch.NewError[Response](i, p.err)
			continue
		}
		vqs = append(vqs, s.vectorQuery(p.q, p.emb.Embedding))
		owner = append(owner, i)
	}

	execs, _, _ := s.optimizer.ExecuteBatch(ctx, vqs)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for j, ex := range execs {
		i := owner[j]
		if ex.Err() != nil {
			items[i] = batch.NewError[Response](i, fmt.Errorf("fetch candidates: %w", ex.Err()))
			continue
		}
		g.Go(func() error {
			resp, err := s.respond(gctx, reqs[i], preps[i].q, preps[i].emb, ex.Value(), start)
			if err != nil {
				items[i] = batch.NewError[Response](i, err)
				return nil
			}
			items[i] = batch.NewOK(i, resp)
			return nil
		})
	}
	_ = g.Wait()

	ok, failed := batch.Counts(items)
	s.logger.Debug("batch search complete",
		zap.Int("ok", ok),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	var err error
	if ok == 0 && failed > 0 {
		err = items[0].Err()
	}
	observe("search_batch", start, err)
	return items
}
