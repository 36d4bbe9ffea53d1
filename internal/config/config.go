package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the matching service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Expansion ExpansionConfig `yaml:"expansion"`
	Engine    EngineConfig    `yaml:"engine"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys        []string `yaml:"api_keys"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout settings shared with the profile ingestion side.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
	IndexName string `yaml:"index_name"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLHours    int    `yaml:"cache_ttl_hours"` // 0 disables the embedding cache
	TimeoutMs        int    `yaml:"timeout_ms"`
}

// ExpansionConfig holds query concept-expansion settings.
type ExpansionConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// WeightsConfig holds the global default hybrid weights.
type WeightsConfig struct {
	Semantic    float64 `yaml:"semantic"`
	Keyword     float64 `yaml:"keyword"`
	Location    float64 `yaml:"location"`
	Performance float64 `yaml:"performance"`
}

// EngineConfig holds query optimizer and ranker settings.
type EngineConfig struct {
	CacheMaxEntries     int           `yaml:"cache_max_entries"`
	CacheTTLSec         int           `yaml:"cache_ttl_sec"`
	Eviction            string        `yaml:"eviction"` // fifo (default) | lru
	MaxPatterns         int           `yaml:"max_patterns"`
	FrequentThreshold   int           `yaml:"frequent_threshold"`
	FrequentTopKCeiling int           `yaml:"frequent_topk_ceiling"`
	DefaultTopK         int           `yaml:"default_topk"`
	DefaultThreshold    float64       `yaml:"default_threshold"`
	MinThreshold        float64       `yaml:"min_threshold"`
	DefaultMaxResults   int           `yaml:"default_max_results"`
	HardMaxResults      int           `yaml:"hard_max_results"`
	HistorySize         int           `yaml:"history_size"`
	LearningEnabled     *bool         `yaml:"learning_enabled"`
	Explanations        *bool         `yaml:"explanations"`
	BatchConcurrency    int           `yaml:"batch_concurrency"`
	CandidateTimeoutMs  int           `yaml:"candidate_timeout_ms"`
	ProfileTimeoutMs    int           `yaml:"profile_timeout_ms"`
	Weights             WeightsConfig `yaml:"weights"`
}

// SchedulerConfig holds background maintenance settings.
type SchedulerConfig struct {
	Enabled                  bool `yaml:"enabled"`
	PrecomputeIntervalSec    int  `yaml:"precompute_interval_sec"`
	IndexAnalysisIntervalSec int  `yaml:"index_analysis_interval_sec"`
	PrecomputeTopN           int  `yaml:"precompute_top_n"`
	PrecomputeMinFrequency   int  `yaml:"precompute_min_frequency"`
	PrecomputeWorkers        int  `yaml:"precompute_workers"`
	PartitionThreshold       int  `yaml:"partition_threshold"`
	TuningThreshold          int  `yaml:"tuning_threshold"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 15
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "kalasarthi:"
	}
	if c.Storage.IndexName == "" {
		c.Storage.IndexName = c.Storage.KeyPrefix + "artisan:idx"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 5000
	}
	if c.Expansion.TimeoutMs <= 0 {
		c.Expansion.TimeoutMs = 3000
	}
	c.applyEngineDefaults()
	c.applySchedulerDefaults()
}

func (c *Config) applyEngineDefaults() {
	e := &c.Engine
	if e.CacheMaxEntries <= 0 {
		e.CacheMaxEntries = 1000
	}
	if e.CacheTTLSec <= 0 {
		e.CacheTTLSec = 300
	}
	if e.Eviction == "" {
		e.Eviction = "fifo"
	}
	if e.MaxPatterns <= 0 {
		e.MaxPatterns = 10000
	}
	if e.FrequentThreshold <= 0 {
		e.FrequentThreshold = 10
	}
	if e.FrequentTopKCeiling <= 0 {
		e.FrequentTopKCeiling = 50
	}
	if e.DefaultTopK <= 0 {
		e.DefaultTopK = 50
	}
	if e.DefaultThreshold <= 0 {
		e.DefaultThreshold = 0.5
	}
	if e.MinThreshold <= 0 {
		e.MinThreshold = 0.3
	}
	if e.DefaultMaxResults <= 0 {
		e.DefaultMaxResults = 20
	}
	if e.HardMaxResults <= 0 {
		e.HardMaxResults = 100
	}
	if e.HistorySize <= 0 {
		e.HistorySize = 50
	}
	if e.LearningEnabled == nil {
		e.LearningEnabled = boolPtr(true)
	}
	if e.Explanations == nil {
		e.Explanations = boolPtr(true)
	}
	if e.BatchConcurrency <= 0 {
		e.BatchConcurrency = 8
	}
	if e.CandidateTimeoutMs <= 0 {
		e.CandidateTimeoutMs = 3000
	}
	if e.ProfileTimeoutMs <= 0 {
		e.ProfileTimeoutMs = 3000
	}
	w := &e.Weights
	if w.Semantic == 0 && w.Keyword == 0 && w.Location == 0 && w.Performance == 0 {
		*w = WeightsConfig{Semantic: 0.4, Keyword: 0.2, Location: 0.2, Performance: 0.2}
	}
}

func (c *Config) applySchedulerDefaults() {
	s := &c.Scheduler
	if s.PrecomputeIntervalSec <= 0 {
		s.PrecomputeIntervalSec = 600
	}
	if s.IndexAnalysisIntervalSec <= 0 {
		s.IndexAnalysisIntervalSec = 3600
	}
	if s.PrecomputeTopN <= 0 {
		s.PrecomputeTopN = 10
	}
	if s.PrecomputeMinFrequency <= 0 {
		s.PrecomputeMinFrequency = 10
	}
	if s.PrecomputeWorkers <= 0 {
		s.PrecomputeWorkers = 4
	}
	if s.PartitionThreshold <= 0 {
		s.PartitionThreshold = 100_000
	}
	if s.TuningThreshold <= 0 {
		s.TuningThreshold = 1_000_000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	switch c.Engine.Eviction {
	case "fifo", "lru":
	default:
		return fmt.Errorf("engine.eviction must be \"fifo\" or \"lru\", got %q", c.Engine.Eviction)
	}
	if c.Engine.MinThreshold > c.Engine.DefaultThreshold {
		return fmt.Errorf("engine.min_threshold (%g) exceeds engine.default_threshold (%g)",
			c.Engine.MinThreshold, c.Engine.DefaultThreshold)
	}
	if c.Engine.DefaultThreshold > 1 {
		return fmt.Errorf("engine.default_threshold must be at most 1, got %g", c.Engine.DefaultThreshold)
	}
	w := c.Engine.Weights
	for name, v := range map[string]float64{
		"semantic": w.Semantic, "keyword": w.Keyword,
		"location": w.Location, "performance": w.Performance,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("engine.weights.%s must be between 0 and 1, got %g", name, v)
		}
	}
	if c.Expansion.Enabled && c.Expansion.Model == "" {
		return fmt.Errorf("expansion.model is required when expansion is enabled")
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
