package health

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable; nothing can be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Check is one component outcome. Detail carries the error text or a short fact.
type Check struct {
	Result CheckResult `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// Report aggregates health check results.
type Report struct {
	Status Status           `json:"status"`
	Checks map[string]Check `json:"checks"`
}

const checkTimeout = 3 * time.Second

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	index     IndexInspector
	embedding EmbeddingChecker
}

// New creates a Service. index and embedding can be nil.
func New(db DBPinger, index IndexInspector, embedding EmbeddingChecker) *Service {
	return &Service{db: db, index: index, embedding: embedding}
}

// Check runs all component checks concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check)
	)
	probe := func(name string, fn func(ctx context.Context) (string, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			detail, err := fn(cctx)
			c := Check{Result: CheckOK, Detail: detail}
			if err != nil {
				c = Check{Result: CheckError, Detail: err.Error()}
			}
			mu.Lock()
			checks[name] = c
			mu.Unlock()
		}()
	}

	probe("database", func(ctx context.Context) (string, error) {
		return "", s.db.Ping(ctx)
	})
	if s.index != nil {
		probe("index", func(ctx context.Context) (string, error) {
			st, err := s.index.Stats(ctx)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(st.NumDocs, 10) + " artisans indexed", nil
		})
	}
	if s.embedding != nil {
		probe("embedding", func(ctx context.Context) (string, error) {
			return "", s.embedding.HealthCheck(ctx)
		})
	}
	wg.Wait()

	status := Healthy
	for name, c := range checks {
		if c.Result != CheckError {
			continue
		}
		if name == "database" {
			status = Unhealthy
			break
		}
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
