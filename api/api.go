package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/course-ingest/utils/apperr"
	"github.com/sahilchouksey/course-ingest/utils/logger"
	"github.com/sahilchouksey/course-ingest/utils/response"
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
	log           *logger.Logger
}

func NewAPIServer(listenAddress string, bodyLimit int, log *logger.Logger) *APIServer {
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:      "course-ingest",
			BodyLimit:    bodyLimit,
			ReadTimeout:  2 * time.Minute,
			ErrorHandler: errorHandler,
		}),
		listenAddress: listenAddress,
		log:           log,
	}
}

// errorHandler renders errors that escape handlers in the standard envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return response.Error(c, fe.Code, fe.Message, "HTTP_ERROR")
	}
	return response.FromError(c, apperr.FromError(err))
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	s.log.Info("starting API server", "address", s.listenAddress)
	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *APIServer) Shutdown(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return s.app.Shutdown()
	}
	return s.app.ShutdownWithTimeout(time.Until(deadline))
}
