package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/krishrathi1/kalasarthi-match/internal/config"
	dbRedis "github.com/krishrathi1/kalasarthi-match/internal/db/redis"
	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
	logpkg "github.com/krishrathi1/kalasarthi-match/internal/logger"
	"github.com/krishrathi1/kalasarthi-match/internal/metrics"
	candidaterepo "github.com/krishrathi1/kalasarthi-match/internal/repository/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/repository/embcache"
	profilerepo "github.com/krishrathi1/kalasarthi-match/internal/repository/profile"
	weightsrepo "github.com/krishrathi1/kalasarthi-match/internal/repository/weights"
	chiTransport "github.com/krishrathi1/kalasarthi-match/internal/transport/chi"
	openaiTransport "github.com/krishrathi1/kalasarthi-match/internal/transport/openai"
	embeddinguc "github.com/krishrathi1/kalasarthi-match/internal/usecase/embedding"
	healthuc "github.com/krishrathi1/kalasarthi-match/internal/usecase/health"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/optimizer"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/ranking"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/scheduler"
	"github.com/krishrathi1/kalasarthi-match/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting kalasarthi matching engine",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("index", cfg.Storage.IndexName),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterEngineMetrics()
	metrics.RegisterHTTPMetrics()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	embedder := buildEmbedder(cfg, store, logger)
	expander := buildExpander(cfg, logger)

	// Repositories
	candidates := candidaterepo.New(store, cfg.Storage.KeyPrefix, cfg.Storage.IndexName)
	profiles := profilerepo.New(store, cfg.Storage.KeyPrefix)
	weightStore := weightsrepo.New(store, cfg.Storage.KeyPrefix)

	opt, err := optimizer.New(candidates, optimizerConfig(cfg), domain.SystemClock{}, logger.Named("optimizer"))
	if err != nil {
		logger.Fatal("Failed to create query optimizer", zap.Error(err))
	}
	defer opt.Close()

	ranker, err := ranking.New(rankingConfig(cfg), ranking.Deps{
		Embedder:  embedder,
		Expander:  expander,
		Optimizer: opt,
		Profiles:  profiles,
		Vectors:   candidates,
		Weights:   weightStore,
	}, logger.Named("ranking"))
	if err != nil {
		logger.Fatal("Failed to create ranking service", zap.Error(err))
	}

	if n, err := ranker.RestoreWeights(ctx); err != nil {
		logger.Warn("Failed to restore learned weights", zap.Error(err))
	} else {
		logger.Info("Restored learned weights", zap.Int("users", n))
	}

	sched := scheduler.New(opt, scheduler.Config{
		PrecomputeInterval:    time.Duration(cfg.Scheduler.PrecomputeIntervalSec) * time.Second,
		IndexAnalysisInterval: time.Duration(cfg.Scheduler.IndexAnalysisIntervalSec) * time.Second,
	}, logger.Named("scheduler"))
	if cfg.Scheduler.Enabled {
		sched.Start(ctx)
	}

	healthSvc := healthuc.New(store, candidates, newEmbeddingHealthChecker(embedder))

	server := chiTransport.NewServer(ranker, sched, healthSvc, logger).
		WithDefaultMaxResults(cfg.Engine.DefaultMaxResults)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	sched.Stop()

	logger.Info("Server stopped gracefully")
}

func optimizerConfig(cfg config.Config) optimizer.Config {
	e, s := cfg.Engine, cfg.Scheduler
	// Validated by config.Validate; an unknown value falls back to FIFO.
	eviction, _ := optimizer.ParseEvictionPolicy(e.Eviction)
	return optimizer.Config{
		CacheMaxEntries:        e.CacheMaxEntries,
		CacheTTL:               time.Duration(e.CacheTTLSec) * time.Second,
		Eviction:               eviction,
		MaxPatterns:            e.MaxPatterns,
		FrequentThreshold:      e.FrequentThreshold,
		FrequentTopKCeiling:    e.FrequentTopKCeiling,
		DefaultTopK:            e.DefaultTopK,
		DefaultThreshold:       e.DefaultThreshold,
		MinThreshold:           e.MinThreshold,
		CandidateTimeout:       time.Duration(e.CandidateTimeoutMs) * time.Millisecond,
		BatchConcurrency:       e.BatchConcurrency,
		PrecomputeTopN:         s.PrecomputeTopN,
		PrecomputeMinFrequency: s.PrecomputeMinFrequency,
		PrecomputeWorkers:      s.PrecomputeWorkers,
		PartitionThreshold:     int64(s.PartitionThreshold),
		TuningThreshold:        int64(s.TuningThreshold),
	}
}

func rankingConfig(cfg config.Config) ranking.Config {
	e := cfg.Engine
	return ranking.Config{
		DefaultWeights: weights.Hybrid{
			Semantic:    e.Weights.Semantic,
			Keyword:     e.Weights.Keyword,
			Location:    e.Weights.Location,
			Performance: e.Weights.Performance,
		},
		CandidateTopK:    e.DefaultTopK,
		HardMaxResults:   e.HardMaxResults,
		HistorySize:      e.HistorySize,
		LearningEnabled:  *e.LearningEnabled,
		Explanations:     *e.Explanations,
		ExpansionTimeout: time.Duration(cfg.Expansion.TimeoutMs) * time.Millisecond,
		ProfileTimeout:   time.Duration(e.ProfileTimeoutMs) * time.Millisecond,
		BatchConcurrency: e.BatchConcurrency,
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(cfg config.Config, store *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	ec := cfg.Embedding
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if ec.CacheTTLHours > 0 {
		embedder = embcache.New(base, store, embcache.Options{
			KeyPrefix:  cfg.Storage.KeyPrefix,
			Model:      ec.Model,
			TTL:        time.Duration(ec.CacheTTLHours) * time.Hour,
			Dimensions: ec.Dimensions,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, ec.Provider, ec.Model, time.Duration(ec.TimeoutMs)*time.Millisecond, logger,
	)

	// Instruction prefix (outermost; cache key includes instruction)
	if ec.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, ec.QueryInstruction)
	}

	logger.Info("Embedder created",
		zap.String("provider", ec.Provider),
		zap.String("model", ec.Model),
		zap.Int("dimensions", ec.Dimensions),
		zap.Bool("cached", ec.CacheTTLHours > 0),
	)
	return embedder
}

func buildExpander(cfg config.Config, logger *zap.Logger) domain.Expander {
	xc := cfg.Expansion
	if !xc.Enabled {
		return domain.PassthroughExpander{}
	}
	logger.Info("Query expansion enabled", zap.String("model", xc.Model))
	return openaiTransport.NewExpander(&openaiTransport.Config{
		APIKey:  xc.APIKey,
		BaseURL: xc.BaseURL,
		Model:   xc.Model,
		Logger:  logger,
	})
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
