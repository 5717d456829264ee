package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Fallback policy applied when a classification code is missing.
	FallbackPolicyName  string
	FallbackDutyPercent decimal.Decimal
	FallbackTaxPercent  decimal.Decimal
	FallbackReviewBy    time.Time

	// Insurance premium parameters.
	InsuranceRatePercent decimal.Decimal
	InsuranceMinimum     decimal.Decimal

	// Optional external exchange rate feed; the database is the source of
	// truth when unset.
	RateFeedURL     string
	RateFeedTimeout time.Duration

	SnapshotRefreshInterval time.Duration
	RatesCacheTTL           time.Duration
	AnalyticsCacheTTL       time.Duration
	IdempotencyTTL          time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	MetricsNamespace string

	TracingEnabled       bool
	TracingEndpoint      string
	TracingSamplingRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		FallbackPolicyName:  valueOrDefault(k.String("FALLBACK_POLICY_NAME"), "general-goods"),
		FallbackDutyPercent: parseDecimal(k.String("FALLBACK_DUTY_PERCENT"), "20"),
		FallbackTaxPercent:  parseDecimal(k.String("FALLBACK_TAX_PERCENT"), "13"),
		FallbackReviewBy:    parseTime(k.String("FALLBACK_REVIEW_BY"), time.Now().AddDate(0, 3, 0)),

		InsuranceRatePercent: parseDecimal(k.String("INSURANCE_RATE_PERCENT"), "1"),
		InsuranceMinimum:     parseDecimal(k.String("INSURANCE_MINIMUM"), "25"),

		RateFeedURL:     strings.TrimSpace(k.String("RATE_FEED_URL")),
		RateFeedTimeout: parseDuration(k.String("RATE_FEED_TIMEOUT"), "5s"),

		SnapshotRefreshInterval: parseDuration(k.String("SNAPSHOT_REFRESH_INTERVAL"), "15m"),
		RatesCacheTTL:           parseDuration(k.String("RATES_CACHE_TTL"), "5m"),
		AnalyticsCacheTTL:       parseDuration(k.String("ANALYTICS_CACHE_TTL"), "1m"),
		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    parseInt(k.String("RATE_LIMIT_MAX"), 120),

		MetricsNamespace: valueOrDefault(k.String("METRICS_NAMESPACE"), "pasal"),

		TracingEnabled:       parseBool(k.String("TRACING_ENABLED")),
		TracingEndpoint:      strings.TrimSpace(k.String("TRACING_ENDPOINT")),
		TracingSamplingRatio: parseFloat(k.String("TRACING_SAMPLING_RATIO"), 1),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.FallbackDutyPercent.IsNegative() || cfg.FallbackTaxPercent.IsNegative() {
		return nil, errors.New("fallback rates must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		d = decimal.RequireFromString(fallback)
	}
	return d
}

// parseTime falls back when the value is absent or not RFC3339. The fallback
// for the fallback-policy review date is three months out, so a fresh
// deployment starts with a policy that is valid but not forgotten forever.
func parseTime(value string, fallback time.Time) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return t
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
