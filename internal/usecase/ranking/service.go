package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/geo"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/history"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/interaction"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/match"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/profile"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
	"github.com/krishrathi1/kalasarthi-match/internal/metrics"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/optimizer"
)

// Deps are the collaborators of the ranking service. Expander, Weights, Learner
// and Clock are optional.
type Deps struct {
	Embedder  Embedder
	Expander  domain.Expander
	Optimizer CandidateExecutor
	Profiles  ProfileStore
	Vectors   VectorReader
	Weights   WeightStore
	Learner   Learner
	Clock     domain.Clock
}

// Request is one buyer search. UserID is optional.
type Request struct {
	Query  query.Query
	UserID string
}

// Metrics describes how a search was served.
type Metrics struct {
	Elapsed          time.Duration  `json:"elapsed"`
	EmbeddingElapsed time.Duration  `json:"embedding_elapsed"`
	EmbeddingCached  bool           `json:"embedding_cached"`
	Candidates       int            `json:"candidates"`
	ProfilesMissing  int            `json:"profiles_missing"`
	Optimizations    []string       `json:"optimizations_applied"`
	Weights          weights.Hybrid `json:"weights"`
}

// Response is a ranked result list plus the processed query.
type Response struct {
	Results []match.Result
	Metrics Metrics
	Query   query.Query
}

// Service is the hybrid ranker.
type Service struct {
	cfg       Config
	embed     Embedder
	expander  domain.Expander
	optimizer CandidateExecutor
	profiles  ProfileStore
	vectors   VectorReader
	store     WeightStore
	learner   Learner
	clock     domain.Clock
	logger    *zap.Logger

	weightsMu   sync.RWMutex
	userWeights map[string]weights.Hybrid

	historyMu sync.Mutex
	history   map[string][]history.Entry
}

// New creates a ranking service.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Service, error) {
	if deps.Embedder == nil || deps.Optimizer == nil || deps.Profiles == nil || deps.Vectors == nil {
		return nil, errors.New("embedder, optimizer, profiles and vectors are required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.DefaultWeights.Validate(); err != nil {
		return nil, fmt.Errorf("default weights: %w", err)
	}
	if deps.Expander == nil {
		deps.Expander = domain.PassthroughExpander{}
	}
	if deps.Learner == nil {
		deps.Learner = NewIncrementalLearner(cfg.DefaultWeights.Sum())
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		cfg:         cfg,
		embed:       deps.Embedder,
		expander:    deps.Expander,
		optimizer:   deps.Optimizer,
		profiles:    deps.Profiles,
		vectors:     deps.Vectors,
		store:       deps.Weights,
		learner:     deps.Learner,
		clock:       deps.Clock,
		logger:      logger,
		userWeights: make(map[string]weights.Hybrid),
		history:     make(map[string][]history.Entry),
	}, nil
}

// Search runs the full pipeline: expand, embed, fetch candidates, resolve
// profiles, score, rank and explain.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	q, emb, err := s.prepare(ctx, req.Query)
	if err != nil {
		observe("search", start, err)
		return Response{}, err
	}

	exec, err := s.optimizer.Execute(ctx, s.vectorQuery(q, emb.Embedding))
	if err != nil {
		observe("search", start, err)
		return Response{}, fmt.Errorf("fetch candidates: %w", err)
	}

	resp, err := s.respond(ctx, req, q, emb, exec, start)
	observe("search", start, err)
	return resp, err
}

// prepare expands and embeds the query text.
func (s *Service) prepare(ctx context.Context, q query.Query) (query.Query, domain.EmbeddingResult, error) {
	q = s.expand(ctx, q)

	emb, err := s.embed.Embed(ctx, q.Expanded())
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		return q, domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}
	if len(emb.Embedding) == 0 {
		return q, domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", domain.ErrEmbeddingUnavailable)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)
	return q, emb, nil
}

func (s *Service) expand(ctx context.Context, q query.Query) query.Query {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExpansionTimeout)
	defer cancel()

	exp, err := s.expander.Expand(ctx, q.Text())
	if err != nil {
		s.logger.Warn("query expansion failed, using raw text", zap.Error(err))
		return q
	}
	return q.WithExpansion(exp.Expanded, exp.Concepts)
}

func (s *Service) vectorQuery(q query.Query, vec []float32) query.VectorQuery {
	topK := s.cfg.CandidateTopK
	if q.MaxResults() > topK {
		topK = q.MaxResults()
	}
	return query.VectorQuery{Vector: vec, TopK: topK, Filters: q.Filters()}
}

// respond scores and ranks the candidates of one executed search.
func (s *Service) respond(
	ctx context.Context, req Request, q query.Query,
	emb domain.EmbeddingResult, exec optimizer.Execution, start time.Time,
) (Response, error) {
	w := s.WeightsFor(req.UserID)
	limit := min(q.MaxResults(), s.cfg.HardMaxResults)

	results, missing, err := s.rank(ctx, exec.Candidates, scoring{
		text:     q.Text(),
		location: q.Location(),
		weights:  w,
		applied:  exec.Applied,
		start:    start,
	}, limit)
	if err != nil {
		return Response{}, err
	}
	if s.cfg.Explanations {
		for i := range results {
			e := Explain(results[i], q)
			results[i].Explanation = &e
		}
	}
	s.record(req.UserID, q.Text(), results)

	return Response{
		Results: results,
		Query:   q,
		Metrics: Metrics{
			Elapsed:          time.Since(start),
			EmbeddingElapsed: emb.Elapsed,
			EmbeddingCached:  emb.Cached,
			Candidates:       len(exec.Candidates),
			ProfilesMissing:  missing,
			Optimizations:    exec.Applied,
			Weights:          w,
		},
	}, nil
}

// scoring carries per-call inputs of the scoring stage.
// semanticOnly leaves keyword and location at 0.
type scoring struct {
	text         string
	location     *geo.Point
	weights      weights.Hybrid
	applied      []string
	start        time.Time
	semanticOnly bool
}

// rank resolves profiles, scores every candidate in parallel and sorts.
// Scoring writes by index, so the stable sort sees candidate-source order.
func (s *Service) rank(
	ctx context.Context, cands []candidate.Candidate, sc scoring, limit int,
) ([]match.Result, int, error) {
	if len(cands) == 0 {
		return []match.Result{}, 0, nil
	}

	byID, err := s.fetchProfiles(ctx, cands)
	if err != nil {
		return nil, 0, err
	}

	scored := make([]*match.Result, len(cands))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ScoringWorkers)
	for i, c := range cands {
		p, ok := byID[c.ID]
		if !ok {
			continue
		}
		g.Go(func() error {
			r := s.score(c, p, sc)
			scored[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	results := make([]match.Result, 0, len(cands))
	for _, r := range scored {
		if r != nil {
			results = append(results, *r)
		}
	}
	missing := len(cands) - len(results)
	if missing > 0 {
		metrics.ProfilesMissingTotal.Add(float64(missing))
		s.logger.Debug("dropped candidates without profile",
			zap.Int("missing", missing),
			zap.Error(domain.ErrProfileLookupPartial),
		)
	}

	return match.Rank(results, limit), missing, nil
}

func (s *Service) fetchProfiles(ctx context.Context, cands []candidate.Candidate) (map[string]profile.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProfileTimeout)
	defer cancel()

	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}
	profiles, err := s.profiles.Fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}
	byID := make(map[string]profile.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	return byID, nil
}

func (s *Service) score(c candidate.Candidate, p profile.Profile, sc scoring) match.Result {
	scores := match.Scores{
		Semantic:    clamp01(c.Similarity),
		Performance: PerformanceScore(p.Metrics),
	}
	md := match.Metadata{VectorSimilarity: c.Similarity, Optimizations: sc.applied}
	if !sc.semanticOnly {
		scores.Keyword = KeywordScore(sc.text, p)
		scores.Location, md.DistanceKm = LocationScore(sc.location, p.Location)
	}
	md.Elapsed = time.Since(sc.start)
	return match.New(p, scores, sc.weights, md)
}

// WeightsFor returns the user's weights when learning is enabled and an override
// exists, otherwise the defaults.
func (s *Service) WeightsFor(userID string) weights.Hybrid {
	if userID == "" || !s.cfg.LearningEnabled {
		return s.cfg.DefaultWeights
	}
	s.weightsMu.RLock()
	defer s.weightsMu.RUnlock()
	if w, ok := s.userWeights[userID]; ok {
		return w
	}
	return s.cfg.DefaultWeights
}

// UpdatePreferences feeds interactions to the learner, creating the user's
// weights on first use, and persists the result.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, interactions []interaction.Interaction) (weights.Hybrid, error) {
	if userID == "" {
		return weights.Hybrid{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidQuery)
	}

	s.weightsMu.Lock()
	current, ok := s.userWeights[userID]
	if !ok {
		current = s.cfg.DefaultWeights
	}
	next := s.learner.Update(current, interactions)
	if err := next.Validate(); err != nil {
		s.weightsMu.Unlock()
		s.logger.Error("learner produced invalid weights",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return current, fmt.Errorf("update preferences: %w", err)
	}
	s.userWeights[userID] = next
	s.weightsMu.Unlock()

	if next != current {
		metrics.WeightUpdatesTotal.Inc()
	}
	if s.store != nil {
		if err := s.store.Save(ctx, userID, next); err != nil {
			s.logger.Warn("persist user weights",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
	return next, nil
}

// RestoreWeights loads persisted per-user weights. It returns how many were restored.
func (s *Service) RestoreWeights(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore weights: %w", err)
	}
	s.weightsMu.Lock()
	for id, w := range all {
		s.userWeights[id] = w
	}
	s.weightsMu.Unlock()
	return len(all), nil
}

func (s *Service) record(userID, text string, results []match.Result) {
	if userID == "" {
		return
	}
	ids := make([]string, len(results))
	for i := range results {
		ids[i] = results[i].Profile.ID
	}
	e := history.NewEntry(userID, text, ids, s.clock.Now())

	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	h := append(s.history[userID], e)
	if over := len(h) - s.cfg.HistorySize; over > 0 {
		h = append([]history.Entry(nil), h[over:]...)
	}
	s.history[userID] = h
}

// History returns the user's recent searches, oldest first.
func (s *Service) History(userID string) []history.Entry {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return append([]history.Entry(nil), s.history[userID]...)
}

// OptimizationRecommendations reports tuning hints from the optimizer.
func (s *Service) OptimizationRecommendations() optimizer.Report {
	return s.optimizer.Recommendations()
}

// ClearHistory drops search history and optimizer state. Learned weights are kept.
func (s *Service) ClearHistory() {
	s.historyMu.Lock()
	s.history = make(map[string][]history.Entry)
	s.historyMu.Unlock()
	s.optimizer.Reset()
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SearchDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
