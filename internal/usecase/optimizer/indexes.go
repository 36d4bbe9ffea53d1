package optimizer

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/indexopt"
)

// Estimated gains per suggestion kind, combined as independent improvements.
var suggestionGain = map[indexopt.Kind]float64{
	indexopt.KindPartition: 0.3,
	indexopt.KindTuneGraph: 0.2,
	indexopt.KindReindex:   0.1,
}

// AnalyzeIndexes inspects the candidate index and records structural suggestions.
// Suggestions are applied only when the source implements IndexTuner.
func (o *Optimizer) AnalyzeIndexes(ctx context.Context) ([]indexopt.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CandidateTimeout)
	defer cancel()

	stats, err := o.src.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}

	suggestions := o.suggest(stats)
	rec := indexopt.NewRecord(stats, suggestions, estimateGain(suggestions), o.clock.Now())

	if tuner, ok := o.src.(IndexTuner); ok && len(suggestions) > 0 {
		if err := tuner.ApplySuggestions(ctx, stats.IndexName, suggestions); err != nil {
			o.logger.Warn("apply index suggestions",
				zap.String("index", stats.IndexName),
				zap.Error(err),
			)
		} else {
			rec.Applied = true
		}
	}

	o.indexMu.Lock()
	o.indexHistory = append(o.indexHistory, rec)
	if over := len(o.indexHistory) - o.cfg.IndexHistorySize; over > 0 {
		o.indexHistory = append([]indexopt.Record(nil), o.indexHistory[over:]...)
	}
	o.indexMu.Unlock()

	o.logger.Info("index analysis complete",
		zap.String("index", stats.IndexName),
		zap.Int64("num_docs", stats.NumDocs),
		zap.Int("suggestions", len(suggestions)),
		zap.Bool("applied", rec.Applied),
	)
	return []indexopt.Record{rec}, nil
}

func (o *Optimizer) suggest(stats candidate.IndexStats) []indexopt.Suggestion {
	var out []indexopt.Suggestion
	if stats.NumDocs > o.cfg.PartitionThreshold {
		parts := stats.NumDocs/o.cfg.PartitionThreshold + 1
		out = append(out, indexopt.Suggestion{
			Kind:        indexopt.KindPartition,
			Description: fmt.Sprintf("split %s (%d vectors) into %d partitions", stats.IndexName, stats.NumDocs, parts),
			Params:      map[string]string{"partitions": strconv.FormatInt(parts, 10)},
		})
	}
	if stats.NumDocs > o.cfg.TuningThreshold {
		out = append(out, indexopt.Suggestion{
			Kind:        indexopt.KindTuneGraph,
			Description: fmt.Sprintf("raise HNSW M and EF_RUNTIME on %s for %d vectors", stats.IndexName, stats.NumDocs),
			Params:      map[string]string{"M": "32", "EF_RUNTIME": "200"},
		})
	}
	if stats.IndexingFailures > 0 {
		out = append(out, indexopt.Suggestion{
			Kind:        indexopt.KindReindex,
			Description: fmt.Sprintf("%s reports %d indexing failures; rebuild the index", stats.IndexName, stats.IndexingFailures),
		})
	}
	return out
}

func estimateGain(suggestions []indexopt.Suggestion) float64 {
	remaining := 1.0
	for _, s := range suggestions {
		remaining *= 1 - suggestionGain[s.Kind]
	}
	return 1 - remaining
}

// IndexHistory returns past analysis records, oldest first.
func (o *Optimizer) IndexHistory() []indexopt.Record {
	o.indexMu.Lock()
	defer o.indexMu.Unlock()
	return append([]indexopt.Record(nil), o.indexHistory...)
}
