package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"geopulse/internal/attribution"
	"geopulse/internal/geo"
	"geopulse/internal/handlers"
	"geopulse/internal/issues"
	"geopulse/internal/metrics"
	"geopulse/internal/pulse"
	"geopulse/internal/scheduler"
	"geopulse/internal/sentiment"
	"geopulse/internal/stats"
	"geopulse/pkg/config"
	"geopulse/pkg/database"
	"geopulse/pkg/logging"
	"geopulse/pkg/monitoring"
	"geopulse/pkg/redis"
	"geopulse/pkg/server"
	"geopulse/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("geopulse")

	// Load environment variables
	config.LoadEnv(logger)

	buildInfo := version.GetInfo()
	logger.WithFields(logging.Fields{
		"version":    buildInfo.Version,
		"commit":     version.GetShortCommit(),
		"build_date": buildInfo.BuildDate,
	}).Info("Starting Geopulse (Geo Attribution & Sentiment Analytics API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	analysisURL := config.GetEnv("ANALYSIS_SERVICE_URL", "http://localhost:8000")
	fallbackState := config.GetEnv("FALLBACK_STATE_NAME", "Karnataka")
	statsRunAt := config.GetEnv("STATS_RUN_AT", scheduler.DefaultRunAt)

	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	rawDB := database.MustConnect(dbConfig, logger)
	defer func() { _ = rawDB.Close() }()
	db := sqlx.NewDb(rawDB, "postgres")

	// Optional Redis response cache. The service runs without it.
	var responseCache *redis.JSONCache
	var redisClient interface{ Ping(ctx context.Context) error }
	if redisURL := config.GetEnv("REDIS_URL", ""); redisURL != "" {
		client, err := redis.NewClientFromURL(context.Background(), redisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, response caching disabled")
		} else {
			defer func() { _ = client.Close() }()
			responseCache = redis.NewJSONCache(client, config.GetEnvDuration("CACHE_TTL", 5*time.Minute))
			redisClient = redis.Pinger(client)
		}
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("geopulse", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("geopulse", version.Version, version.GitCommit)

	healthChecker.AddCheck("postgres", monitoring.DatabaseHealthCheck(rawDB))
	if redisClient != nil {
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
	}
	healthChecker.AddCheck("analysis_service", monitoring.HTTPServiceHealthCheck("analysis-service", analysisURL+"/health"))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": dbURL,
	}))

	serviceMetrics := &metrics.Metrics{
		SignalsStored:    metricsCollector.NewCounter("sentiment_signals_stored_total", "Sentiment signals written", []string{"source_type"}),
		StatsRuns:        metricsCollector.NewCounter("daily_stats_runs_total", "Daily stats aggregation runs", []string{"trigger", "status"}),
		StatsRunDuration: metricsCollector.NewHistogram("daily_stats_run_duration_seconds", "Daily stats aggregation duration", []string{"trigger"}, nil),
		AnalysisRequests: metricsCollector.NewCounter("analysis_requests_total", "Article analysis requests", []string{"status"}),
		AnalysisDuration: metricsCollector.NewHistogram("analysis_request_duration_seconds", "Article analysis duration", []string{"status"}, nil),
	}

	// Domain services
	geoStore := geo.NewStore(db)
	geoService := geo.NewService(geoStore, logger)

	resolver := attribution.NewResolver(
		attribution.NewStore(db), geoStore,
		attribution.Config{FallbackStateName: fallbackState}, logger)

	aggregator := stats.NewAggregator(stats.NewStore(db), issues.MustNewExtractor(), logger)

	analysisClient := sentiment.NewClient(analysisURL, logger)
	pipeline := sentiment.NewPipeline(analysisClient, resolver, sentiment.NewStore(db), logger)

	pulseService := pulse.NewService(pulse.NewStore(db), logger)

	// Nightly stats aggregation
	taskScheduler, err := scheduler.NewScheduler(aggregator, statsRunAt, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid STATS_RUN_AT")
	}
	taskScheduler.OnRun(func(written int, err error, elapsed time.Duration) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		serviceMetrics.StatsRuns.WithLabelValues("scheduled", status).Inc()
		serviceMetrics.StatsRunDuration.WithLabelValues("scheduled").Observe(elapsed.Seconds())
	})
	taskScheduler.Start()
	defer taskScheduler.Stop()

	handlers.Init(handlers.Deps{
		Geo:        geoService,
		Aggregator: aggregator,
		Scheduler:  taskScheduler,
		Pulse:      pulseService,
		Pipeline:   pipeline,
		Resolver:   resolver,
		Cache:      responseCache,
		Logger:     logger,
		Metrics:    serviceMetrics,
	})

	router := server.SetupServiceRouter(logger, "geopulse", healthChecker, metricsCollector)
	handlers.RegisterRoutes(router)

	serverConfig := server.DefaultConfig("geopulse", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
