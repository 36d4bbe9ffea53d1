package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/indexopt"
	"github.com/krishrathi1/kalasarthi-match/internal/metrics"
)

// Task names.
const (
	TaskPrecompute     = "precompute_popular"
	TaskAnalyzeIndexes = "analyze_indexes"
)

// ErrUnknownTask is returned by RunNow for a name that is not registered.
var ErrUnknownTask = errors.New("unknown maintenance task")

// Maintainer is the optimizer's background surface.
type Maintainer interface {
	PrecomputePopular(ctx context.Context) (int, error)
	AnalyzeIndexes(ctx context.Context) ([]indexopt.Record, error)
}

// Config sets task intervals. RunTimeout bounds a single pass.
type Config struct {
	PrecomputeInterval    time.Duration
	IndexAnalysisInterval time.Duration
	RunTimeout            time.Duration
}

type task struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// Scheduler runs maintenance tasks periodically. At most one pass of any
// task runs at a time; overlapping passes are skipped.
type Scheduler struct {
	tasks   []task
	timeout time.Duration
	logger  *zap.Logger

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler for m's precompute and index analysis passes.
func New(m Maintainer, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PrecomputeInterval <= 0 {
		cfg.PrecomputeInterval = 10 * time.Minute
	}
	if cfg.IndexAnalysisInterval <= 0 {
		cfg.IndexAnalysisInterval = time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}

	return &Scheduler{
		timeout: cfg.RunTimeout,
		logger:  logger,
		tasks: []task{
			{
				name:     TaskPrecompute,
				interval: cfg.PrecomputeInterval,
				run: func(ctx context.Context) error {
					_, err := m.PrecomputePopular(ctx)
					return err
				},
			},
			{
				name:     TaskAnalyzeIndexes,
				interval: cfg.IndexAnalysisInterval,
				run: func(ctx context.Context) error {
					_, err := m.AnalyzeIndexes(ctx)
					return err
				},
			},
		},
	}
}

// Tasks lists the registered task names.
func (s *Scheduler) Tasks() []string {
	out := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.name
	}
	return out
}

// Start launches one ticker loop per task. It is a no-op when already started.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	s.logger.Info("scheduler started", zap.Strings("tasks", s.Tasks()))
}

// Stop cancels the loops and waits for in-flight passes to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t task) {
	defer s.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.run(ctx, t)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrSchedulerRunSkipped):
				s.logger.Info("maintenance pass skipped", zap.String("task", t.name))
			default:
				s.logger.Error("maintenance pass failed", zap.String("task", t.name), zap.Error(err))
			}
		}
	}
}

// RunNow runs the named task immediately on the caller's goroutine.
// It returns ErrSchedulerRunSkipped when another pass is in progress.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, t := range s.tasks {
		if t.name == name {
			return s.run(ctx, t)
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTask, name)
}

// Running reports whether a pass is in progress.
func (s *Scheduler) Running() bool { return s.running.Load() }

func (s *Scheduler) run(ctx context.Context, t task) error {
	if !s.running.CompareAndSwap(false, true) {
		metrics.SchedulerRunsTotal.WithLabelValues(t.name, "skipped").Inc()
		return fmt.Errorf("%s: %w", t.name, domain.ErrSchedulerRunSkipped)
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := t.run(ctx); err != nil {
		metrics.SchedulerRunsTotal.WithLabelValues(t.name, "error").Inc()
		return fmt.Errorf("%s: %w", t.name, err)
	}
	metrics.SchedulerRunsTotal.WithLabelValues(t.name, "ok").Inc()
	s.logger.Debug("maintenance pass complete",
		zap.String("task", t.name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
