package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/sahilchouksey/course-ingest/handlers"
	ingest_handlers "github.com/sahilchouksey/course-ingest/handlers/ingest"
	"github.com/sahilchouksey/course-ingest/services/metrics"
	"github.com/sahilchouksey/course-ingest/utils/logger"
	"github.com/sahilchouksey/course-ingest/utils/middleware"
)

type Config struct {
	AllowedOrigins    string
	RateLimitRequests int
}

type Handlers struct {
	Health *handlers.HealthHandler
	Ingest *ingest_handlers.IngestHandler
}

func SetupRoutes(app *fiber.App, h Handlers, m *metrics.Service, log *logger.Logger, cfg Config) {
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   1 * time.Minute,
		Logger:            log,
		Metrics:           m,
	})

	app.Get("/health", h.Health.CheckHealth)
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	// API v1 group
	api := app.Group("/api/v1")

	// Ingestion routes
	api.Post("/course-packs/:course_pack_id/ingestion-jobs", h.Ingest.CreateJob) // Upload a document and start a job
	api.Get("/ingestion-jobs/:id", h.Ingest.GetJob)                              // Poll job status
	api.Get("/ingestion-jobs/:id/events", h.Ingest.StreamJob)                    // Stream job status (SSE)
}
