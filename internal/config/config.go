package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string

	VCIBaseURL  string
	TCBSBaseURL string

	BenchmarkSymbol      string
	RiskFreeRate         float64
	MaxConcurrentFetches int
	FetchRetries         int
	FetchTimeout         time.Duration

	CacheBackend     string
	CacheTTL         time.Duration
	CacheMaxEntries  int
	SQLitePath       string
	FirestoreProject string
	RedisAddr        string
	RedisPassword    string

	GeminiAPIKey string
	GeminiModel  string

	Validation Validation
}

// Validation holds the portfolio acceptance rules.
type Validation struct {
	MaxSymbols      int
	WeightTolerance float64
	MinCapital      float64
	MaxCapital      float64
	MinWindowDays   int
	MaxWindowDays   int
	MaxLookbackDays int
}

var cacheBackends = []string{"memory", "sqlite", "firestore", "redis"}

// DefaultValidation returns the rules used when nothing is configured.
func DefaultValidation() Validation {
	return Validation{
		MaxSymbols:      10,
		WeightTolerance: 1e-4,
		MinCapital:      1_000_000,
		MaxCapital:      1_000_000_000_000,
		MinWindowDays:   30,
		MaxWindowDays:   3650,
		MaxLookbackDays: 10 * 365,
	}
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	def := DefaultValidation()
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		VCIBaseURL:  getEnv("VCI_BASE_URL", "https://trading.vietcap.com.vn/api"),
		TCBSBaseURL: getEnv("TCBS_BASE_URL", "https://apipubaws.tcbs.com.vn"),

		BenchmarkSymbol:      getEnv("BENCHMARK_SYMBOL", "VNINDEX"),
		RiskFreeRate:         getEnvFloat("RISK_FREE_RATE", 0),
		MaxConcurrentFetches: getEnvInt("MAX_CONCURRENT_FETCHES", 4),
		FetchRetries:         getEnvInt("FETCH_RETRIES", 3),
		FetchTimeout:         getEnvDuration("FETCH_TIMEOUT", 15*time.Second),

		CacheBackend:     strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		CacheTTL:         getEnvDuration("CACHE_TTL", 6*time.Hour),
		CacheMaxEntries:  getEnvInt("CACHE_MAX_ENTRIES", 256),
		SQLitePath:       getEnv("SQLITE_PATH", "tearsheet-cache.db"),
		FirestoreProject: getEnv("FIRESTORE_PROJECT_ID", ""),
		RedisAddr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		Validation: Validation{
			MaxSymbols:      getEnvInt("MAX_PORTFOLIO_SIZE", def.MaxSymbols),
			WeightTolerance: getEnvFloat("WEIGHT_TOLERANCE", def.WeightTolerance),
			MinCapital:      getEnvFloat("MIN_CAPITAL", def.MinCapital),
			MaxCapital:      getEnvFloat("MAX_CAPITAL", def.MaxCapital),
			MinWindowDays:   getEnvInt("MIN_WINDOW_DAYS", def.MinWindowDays),
			MaxWindowDays:   getEnvInt("MAX_WINDOW_DAYS", def.MaxWindowDays),
			MaxLookbackDays: getEnvInt("MAX_LOOKBACK_DAYS", def.MaxLookbackDays),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if !contains(cacheBackends, c.CacheBackend) {
		errs = append(errs, fmt.Errorf("CACHE_BACKEND %q is not one of %v", c.CacheBackend, cacheBackends))
	}
	if c.CacheBackend == "firestore" && c.FirestoreProject == "" {
		errs = append(errs, errors.New("FIRESTORE_PROJECT_ID is required for the firestore cache backend"))
	}
	if c.MaxConcurrentFetches < 1 {
		errs = append(errs, errors.New("MAX_CONCURRENT_FETCHES must be at least 1"))
	}
	if c.FetchRetries < 1 {
		errs = append(errs, errors.New("FETCH_RETRIES must be at least 1"))
	}
	if c.CacheMaxEntries < 1 {
		errs = append(errs, errors.New("CACHE_MAX_ENTRIES must be at least 1"))
	}
	v := c.Validation
	if v.WeightTolerance <= 0 || v.WeightTolerance >= 0.1 {
		errs = append(errs, fmt.Errorf("WEIGHT_TOLERANCE %g out of range", v.WeightTolerance))
	}
	if v.MaxSymbols < 1 {
		errs = append(errs, errors.New("MAX_PORTFOLIO_SIZE must be at least 1"))
	}
	if v.MinCapital <= 0 || v.MaxCapital < v.MinCapital {
		errs = append(errs, errors.New("MIN_CAPITAL must be positive and not above MAX_CAPITAL"))
	}
	if v.MinWindowDays < 0 || v.MaxWindowDays < v.MinWindowDays {
		errs = append(errs, errors.New("MIN_WINDOW_DAYS must be between 0 and MAX_WINDOW_DAYS"))
	}
	return errors.Join(errs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
