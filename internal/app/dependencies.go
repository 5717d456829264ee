package app

import (
	"context"
	"strings"

	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Dependencies enumerates core services shared across modules to make future wiring explicit.
type Dependencies struct {
	Context         context.Context
	DB              *pgxpool.Pool
	Redis           *redis.Client
	Validator       *validator.Validate
	TaskClient      *asynq.Client
	TaskServer      *asynq.Server
	MetricsRegistry *prometheus.Registry
	TracerProvider  trace.TracerProvider
	MeterProvider   metric.MeterProvider
}

// NewMigrator builds a migrator for the file-based migrations directory.
func NewMigrator(sourcePath, databaseURL string) (*migrate.Migrate, error) {
	// The pgx/v5 migrate driver registers the pgx5 URL scheme.
	url := databaseURL
	if strings.HasPrefix(url, "postgres://") {
		url = "pgx5://" + strings.TrimPrefix(url, "postgres://")
	} else if strings.HasPrefix(url, "postgresql://") {
		url = "pgx5://" + strings.TrimPrefix(url, "postgresql://")
	}
	return migrate.New("file://"+sourcePath, url)
}

// RunMigrations applies all pending migrations.
func RunMigrations(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// AsynqRedisOpt converts a redis URL into the asynq connection options.
func AsynqRedisOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Network:  opts.Network,
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	}, nil
}

// Tracer returns the default OpenTelemetry tracer for instrumentation hooks.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns the default OpenTelemetry meter for instrumentation hooks.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
