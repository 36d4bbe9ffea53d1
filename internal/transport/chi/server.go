package chi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/history"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	logpkg "github.com/krishrathi1/kalasarthi-match/internal/logger"
	healthuc "github.com/krishrathi1/kalasarthi-match/internal/usecase/health"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/ranking"
	"github.com/krishrathi1/kalasarthi-match/internal/version"
)

const (
	maxBatchSize = query.HardMaxResults
	maxBodyBytes = 1 << 20
)

// Server holds the HTTP handlers of the matching API.
type Server struct {
	ranker Ranker
	maint  Maintenance
	health HealthChecker
	logger *zap.Logger
	now    func() time.Time

	defaultMaxResults int
}

// NewServer creates an HTTP API server.
func NewServer(ranker Ranker, maint Maintenance, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ranker: ranker,
		maint:  maint,
		health: health,
		logger: logger,
		now:    time.Now,
	}
}

// WithDefaultMaxResults sets the result count used when a search omits max_results.
func (s *Server) WithDefaultMaxResults(n int) *Server {
	s.defaultMaxResults = n
	return s
}

// Mount registers every API route on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Post("/search/batch", s.SearchBatch)
		r.Get("/artisans/{id}/similar", s.FindSimilar)
		r.Post("/recommendations", s.Recommend)
		r.Post("/preferences", s.UpdatePreferences)
		r.Get("/preferences/{userID}", s.GetPreferences)
		r.Get("/history/{userID}", s.GetHistory)
		r.Delete("/history", s.ClearHistory)
		r.Get("/optimizations", s.Optimizations)
		r.Get("/maintenance", s.ListMaintenance)
		r.Post("/maintenance/{task}", s.RunMaintenance)
	})
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if !s.decode(w, r, &body) {
		return
	}
	req, err := body.toDomain(s.defaultMaxResults)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.ranker.Search(ctx, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchResponseFrom(resp))
}

// SearchBatch handles POST /v1/search/batch. Invalid items fail individually;
// the rest are still served.
func (s *Server) SearchBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchSearchRequest
	if !s.decode(w, r, &body) {
		return
	}
	if len(body.Queries) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "queries must not be empty")
		return
	}
	if len(body.Queries) > maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			"batch size exceeds maximum of "+strconv.Itoa(maxBatchSize))
		return
	}

	invalid := make(map[int]error)
	reqs := make([]ranking.Request, 0, len(body.Queries))
	idx := make([]int, 0, len(body.Queries))
	for i, q := range body.Queries {
		req, err := q.toDomain(s.defaultMaxResults)
		if err != nil {
			invalid[i] = err
			continue
		}
		reqs = append(reqs, req)
		idx = append(idx, i)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	items := s.ranker.SearchBatch(ctx, reqs)

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, batchResponseFrom(len(body.Queries), invalid, idx, items))
}

// FindSimilar handles GET /v1/artisans/{id}/similar.
func (s *Server) FindSimilar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	topK, ok := intParam(w, r, "top_k")
	if !ok {
		return
	}
	threshold, ok := floatParam(w, r, "threshold")
	if !ok {
		return
	}

	results, err := s.ranker.FindSimilar(r.Context(), id, topK, threshold)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse(results))
}

// Recommend handles POST /v1/recommendations.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	var body RecommendationsRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "user_id is required")
		return
	}
	interactions, err := interactionsFromRequest(body.Interactions, s.now())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	results, err := s.ranker.Recommend(r.Context(), body.UserID, interactions, body.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsResponse(results))
}

// UpdatePreferences handles POST /v1/preferences.
func (s *Server) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var body PreferencesRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "user_id is required")
		return
	}
	interactions, err := interactionsFromRequest(body.Interactions, s.now())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ws, err := s.ranker.UpdatePreferences(r.Context(), body.UserID, interactions)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PreferencesResponse{UserID: body.UserID, Weights: ws})
}

// GetPreferences handles GET /v1/preferences/{userID}.
func (s *Server) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	writeJSON(w, http.StatusOK, PreferencesResponse{UserID: userID, Weights: s.ranker.WeightsFor(userID)})
}

// GetHistory handles GET /v1/history/{userID}.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.ranker.History(chi.URLParam(r, "userID"))
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ClearHistory handles DELETE /v1/history.
func (s *Server) ClearHistory(w http.ResponseWriter, r *http.Request) {
	s.ranker.ClearHistory()
	s.log(r).Info("search history and optimizer state cleared")
	w.WriteHeader(http.StatusNoContent)
}

// Optimizations handles GET /v1/optimizations.
func (s *Server) Optimizations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, optimizationsResponseFrom(s.ranker.OptimizationRecommendations()))
}

// ListMaintenance handles GET /v1/maintenance.
func (s *Server) ListMaintenance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.maint.Tasks()})
}

// RunMaintenance handles POST /v1/maintenance/{task}. A pass already in
// progress yields 409.
func (s *Server) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	task := chi.URLParam(r, "task")
	start := time.Now()
	if err := s.maint.RunNow(r.Context(), task); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MaintenanceResponse{
		Task:      task,
		Status:    "completed",
		ElapsedMs: ms(time.Since(start)),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]Check, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = Check{Status: string(v.Result), Detail: v.Detail}
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) log(r *http.Request) *zap.Logger {
	return logpkg.FromContext(r.Context(), s.logger)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if tokens, calls := usage.Totals(); calls > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	}
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func floatParam(w http.ResponseWriter, r *http.Request, name string) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, name+" must be a number between 0 and 1")
		return 0, false
	}
	return v, true
}
