package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsFallbackReviewDate(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":       "postgres://localhost:5432/pasal",
		"REDIS_URL":          "redis://localhost:6379/0",
		"FALLBACK_REVIEW_BY": "",
	})
	require.NoError(t, err)
	require.False(t, cfg.FallbackReviewBy.IsZero())
	require.True(t, cfg.FallbackReviewBy.After(time.Now()), "default review date must lie ahead")
}

func TestLoadParsesExplicitFallbackReviewDate(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":       "postgres://localhost:5432/pasal",
		"REDIS_URL":          "redis://localhost:6379/0",
		"FALLBACK_REVIEW_BY": "2027-01-15T00:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), cfg.FallbackReviewBy)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	require.Error(t, err)
}
