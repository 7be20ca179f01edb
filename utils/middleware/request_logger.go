package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/course-ingest/utils/logger"
)

// RequestObserver records request latency, typically the metrics service.
type RequestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// RequestLogger logs every request with zap and reports it to obs. The
// route pattern is used as the path label so ids do not explode cardinality.
func RequestLogger(log *logger.Logger, obs RequestObserver) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			// let the app error handler pick the status before we read it
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		latency := time.Since(start)
		route := c.Route().Path
		if obs != nil {
			obs.ObserveHTTPRequest(c.Method(), route, status, latency)
		}

		kv := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", latency,
			"ip", c.IP(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		}
		switch {
		case status >= 500:
			log.Error("request", kv...)
		case status >= 400:
			log.Warn("request", kv...)
		default:
			log.Debug("request", kv...)
		}
		return nil
	}
}
