package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pasal/internal/analytics"
	"github.com/noah-isme/backend-pasal/internal/app"
	"github.com/noah-isme/backend-pasal/internal/classification"
	"github.com/noah-isme/backend-pasal/internal/common"
	"github.com/noah-isme/backend-pasal/internal/config"
	"github.com/noah-isme/backend-pasal/internal/currency"
	"github.com/noah-isme/backend-pasal/internal/events"
	"github.com/noah-isme/backend-pasal/internal/gateway"
	"github.com/noah-isme/backend-pasal/internal/health"
	"github.com/noah-isme/backend-pasal/internal/lock"
	"github.com/noah-isme/backend-pasal/internal/obs"
	"github.com/noah-isme/backend-pasal/internal/quote"
	"github.com/noah-isme/backend-pasal/internal/ratelimit"
	"github.com/noah-isme/backend-pasal/internal/rates"
	"github.com/noah-isme/backend-pasal/internal/refresh"
	"github.com/noah-isme/backend-pasal/internal/repo"
	"github.com/noah-isme/backend-pasal/internal/resilience"
	"github.com/noah-isme/backend-pasal/internal/review"
	"github.com/noah-isme/backend-pasal/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pasal-quote-api",
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: cfg.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "pasal-quote-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if envBool("MIGRATE_ON_START", false) {
		migrator, err := app.NewMigrator("db/migrations", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise migrator")
		}
		if err := app.RunMigrations(migrator); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	store := repo.NewStore(pool)
	bus := &events.Bus{Store: store}

	var ratesSource currency.Source = store
	if cfg.RateFeedURL != "" {
		feedBreaker := resilience.NewBreaker(5, 0.6, 30*time.Second).
			WithTarget("rate_feed").
			WithLogger(logger)
		ratesSource = &currency.Feed{
			URL:     cfg.RateFeedURL,
			Timeout: cfg.RateFeedTimeout,
			Client: resilience.HTTPClient{
				Client:      &http.Client{},
				Breaker:     feedBreaker,
				MaxAttempts: 3,
				BaseBackoff: 250 * time.Millisecond,
				Jitter:      0.2,
			},
		}
	}

	rateStore := &currency.Store{}
	registryStore := &classification.Store{}
	refresher := &refresh.Refresher{
		Interval:       cfg.SnapshotRefreshInterval,
		Lock:           lock.Locker{R: redisClient},
		Rates:          rateStore,
		RatesSource:    ratesSource,
		Registry:       registryStore,
		RegistrySource: store,
		Bus:            bus,
		Logger:         logger.With().Str("component", "refresher").Logger(),
	}
	if err := refresher.LoadInitial(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load initial snapshots")
	}

	fallback := classification.FallbackPolicy{
		Name:            cfg.FallbackPolicyName,
		DutyRatePercent: cfg.FallbackDutyPercent,
		TaxRatePercent:  cfg.FallbackTaxPercent,
		ReviewBy:        cfg.FallbackReviewBy,
	}
	if err := fallback.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid fallback policy")
	}
	if fallback.Expired(time.Now()) {
		logger.Warn().Str("policy", fallback.Name).Time("review_by", fallback.ReviewBy).
			Msg("fallback policy is past its review date")
	}

	gatewayConfigs, err := store.ListGateways(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load payment gateways")
	}
	gateways, err := gateway.NewSchedule(gatewayConfigs)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid payment gateway configuration")
	}

	engine := &quote.Engine{
		Rates:    rateStore,
		Registry: registryStore,
		Fallback: fallback,
		Shipping: &rates.Table{
			Source: store,
			Cache:  rates.NewCache(redisClient, cfg.RatesCacheTTL),
		},
		Insurance: rates.FixedRatePolicy{
			RatePercent:    cfg.InsuranceRatePercent,
			MinimumPremium: cfg.InsuranceMinimum,
		},
		Gateways: gateways,
	}

	asynqOpt, err := app.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	quoteHandler := quote.NewHandler(quote.HandlerConfig{
		Engine:    engine,
		Validator: validator.New(),
		Bus:       bus,
		Reviews:   review.Enqueuer{Client: taskClient},
		Logger:    logger.With().Str("component", "quote").Logger(),
	})
	currencyAdmin := &currency.Handler{
		Store:  rateStore,
		Writer: store,
		Source: store,
		Logger: logger.With().Str("component", "currency-admin").Logger(),
	}
	classificationAdmin := &classification.Handler{
		Store:  registryStore,
		Writer: store,
		Source: store,
		Logger: logger.With().Str("component", "classification-admin").Logger(),
	}
	reviewHandler := &review.Handler{Store: store}

	analyticsSvc := &analytics.Service{
		Q:            store,
		R:            redisClient,
		TTL:          cfg.AnalyticsCacheTTL,
		DefaultRange: 30,
	}
	analyticsHandler := &analytics.Handler{Svc: analyticsSvc}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
		Config: ratelimit.Config{
			Key:    clientIPKey,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.With(limiter.Middleware, idem.Middleware).Post("/quotes", quoteHandler.Calculate)

		v.Route("/admin", func(admin chi.Router) {
			admin.Get("/exchange-rates", currencyAdmin.SnapshotInfo)
			admin.Put("/exchange-rates", currencyAdmin.Upsert)
			admin.Put("/classifications", classificationAdmin.Upsert)
			admin.Get("/classifications/{code}", classificationAdmin.Lookup)
			admin.Get("/reviews", reviewHandler.ListPending)
			admin.Post("/reviews/{id}/resolve", reviewHandler.Resolve)
		})

		v.Route("/analytics", func(an chi.Router) {
			an.Get("/quotes", analyticsHandler.QuoteDaily)
			an.Get("/overview", analyticsHandler.Overview)
		})
	})

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		if err := refresher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("snapshot refresher stopped")
		}
	}()

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func clientIPKey(r *http.Request) string {
	return "ip:" + common.ClientIP(r)
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
