package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadForTestsAppliesDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":          "postgres://localhost:5432/pricing",
		"REDIS_URL":             "redis://localhost:6379/0",
		"APP_ENV":               "",
		"PORT":                  "",
		"QUOTE_CACHE_TTL":       "",
		"QUOTE_VALID_FOR":       "",
		"QUEUE_PREFIX":          "",
		"QUEUE_CONCURRENCY":     "",
		"RATE_LIMIT_PER_MINUTE": "",
		"SERVICE_NAME":          "",
	})
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 15*time.Minute, cfg.QuoteCacheTTL)
	require.Equal(t, 15*time.Minute, cfg.QuoteValidFor)
	require.Equal(t, "pricing", cfg.QueuePrefix)
	require.Equal(t, 4, cfg.QueueConcurrency)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.Equal(t, "pricing-api", cfg.ServiceName)
}

func TestLoadForTestsParsesOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost:5432/pricing",
		"REDIS_URL":            "redis://localhost:6379/0",
		"PORT":                 "9090",
		"QUOTE_CACHE_TTL":      "30m",
		"QUOTE_VALID_FOR":      "5m",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
		"TRACING_ENABLED":      "true",
		"PPROF_ENABLED":        "yes",
	})
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 30*time.Minute, cfg.QuoteCacheTTL)
	require.Equal(t, 5*time.Minute, cfg.QuoteValidFor)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.True(t, cfg.TracingEnabled)
	require.True(t, cfg.PprofEnabled)
}

func TestLoadForTestsRequiresDatabaseURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	require.Error(t, err)
}

func TestLoadForTestsRequiresRedisURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/pricing",
		"REDIS_URL":    "",
	})
	require.Error(t, err)
}

func TestMustLoadPanicsWithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	require.Panics(t, func() { MustLoad() })
}

func TestInvalidDurationFallsBack(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":    "postgres://localhost:5432/pricing",
		"REDIS_URL":       "redis://localhost:6379/0",
		"QUOTE_CACHE_TTL": "not-a-duration",
	})
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, cfg.QuoteCacheTTL)
}
