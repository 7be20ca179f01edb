package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sahilchouksey/course-ingest/api"
	"github.com/sahilchouksey/course-ingest/config"
	"github.com/sahilchouksey/course-ingest/database"
	"github.com/sahilchouksey/course-ingest/handlers"
	ingest_handlers "github.com/sahilchouksey/course-ingest/handlers/ingest"
	"github.com/sahilchouksey/course-ingest/router"
	"github.com/sahilchouksey/course-ingest/services/answerkey"
	"github.com/sahilchouksey/course-ingest/services/cron"
	"github.com/sahilchouksey/course-ingest/services/extraction"
	"github.com/sahilchouksey/course-ingest/services/extraction/inference"
	"github.com/sahilchouksey/course-ingest/services/ingestion"
	"github.com/sahilchouksey/course-ingest/services/metrics"
	"github.com/sahilchouksey/course-ingest/services/storage"
	"github.com/sahilchouksey/course-ingest/services/worker"
	"github.com/sahilchouksey/course-ingest/utils/cache"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

func SetupAndRunServer() error {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	cfg, err := config.Get()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	// Initialize GORM database connection
	store, err := database.StartGORM(cfg, log)
	if err != nil {
		log.Error("check whether Postgres is running", "host", cfg.Database.Host, "port", cfg.Database.Port)
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Error("failed to initialize database tables", "error", err)
		return err
	}

	// Redis only backs progress snapshots, so the service runs without it
	var snapshots ingestion.SnapshotStore
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		log.Warn("redis unavailable, job progress is served from the database", "error", err)
	} else {
		snapshots = redisCache
		defer redisCache.Close()
	}

	m := metrics.New()

	ctx := context.Background()
	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	backend := extraction.Throttle(inference.New(inference.Config{
		APIKey:    cfg.Extraction.APIKey,
		BaseURL:   cfg.Extraction.BaseURL,
		Model:     cfg.Extraction.Model,
		MaxTokens: cfg.Extraction.MaxTokens,
		Timeout:   cfg.Extraction.Timeout,
	}), cfg.Extraction.RequestsPerMinute, cfg.Extraction.Burst)
	extractor := extraction.NewService(backend, log)
	extractor.SetObserver(m)

	db := store.DB()
	jobs := database.NewJobRepository(db)
	progress := ingestion.NewProgressTracker(snapshots, cfg.Ingestion.ProgressTTL, log)

	controller := ingestion.NewController(ingestion.Dependencies{
		Jobs:       jobs,
		Questions:  database.NewQuestionRepository(db, log),
		Calendar:   database.NewCalendarRepository(db),
		Documents:  objects,
		Extractor:  extractor,
		AnswerKeys: answerkey.New(extractor, log),
		Progress:   progress,
		Metrics:    m,
		Logger:     log,
	}, ingestion.Options{
		MaxDocumentBytes:     cfg.Ingestion.MaxDocumentBytes,
		MaxPDFPages:          cfg.Ingestion.MaxPDFPages,
		DedupeCalendarEvents: cfg.Ingestion.DedupeCalendarEvents,
	})

	queue := worker.NewQueue("ingestion", func(ctx context.Context, id uuid.UUID) error {
		_, err := controller.Run(ctx, id)
		return err
	}, worker.Config{
		Workers:    cfg.Ingestion.Workers,
		BufferSize: cfg.Ingestion.QueueSize,
		Logger:     log,
		Depth:      m,
	})
	queue.Start(ctx)

	service := ingestion.NewService(jobs, queue, progress, log)
	if _, err := service.RequeuePending(ctx); err != nil {
		log.Warn("failed to requeue pending jobs", "error", err)
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if cfg.Cron.Enabled {
		cronManager = cron.NewCronManager(jobs, cron.Config{
			StaleJobTimeout: cfg.Cron.StaleJobTimeout,
			Progress:        progress,
			Metrics:         m,
			Logger:          log,
		})
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.Warn("failed to start cron jobs", "error", err)
			cronManager = nil
		}
	}

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", cfg.Port), cfg.HTTP.BodyLimit, log)
	router.SetupRoutes(server.GetEngine(), router.Handlers{
		Health: handlers.NewHealthHandler(healthChecks(store, redisCache)),
		Ingest: ingest_handlers.NewIngestHandler(service, objects, cfg.Ingestion.MaxDocumentBytes, log),
	}, m, log, router.Config{
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		RateLimitRequests: cfg.HTTP.RateLimitRequests,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-errCh:
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", "error", serr)
	}
	if cronManager != nil {
		cronManager.Stop()
	}
	// running jobs finish, queued ones stay pending and are requeued on start
	if qerr := queue.Stop(shutdownCtx); qerr != nil {
		log.Warn("worker shutdown", "error", qerr)
	}
	return err
}

func healthChecks(store *database.GORMStore, redisCache *cache.RedisCache) map[string]handlers.Checker {
	checks := map[string]handlers.Checker{
		"database": func(context.Context) error { return store.HealthCheck() },
	}
	if redisCache != nil {
		checks["redis"] = redisCache.Ping
	}
	return checks
}
