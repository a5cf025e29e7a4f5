// Package server exposes the citation pipeline over HTTP: upload, job
// polling, apply, and export endpoints on a fiber app.
package server

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"doifind/internal/config"
	"doifind/internal/job"
)

// Server wires the HTTP surface to the job store and orchestrator.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	logger   *slog.Logger
	store    job.Store
	orch     *job.Orchestrator
	validate *validator.Validate
}

// New builds the fiber app with all routes registered.
func New(cfg *config.Config, logger *slog.Logger, store job.Store, orch *job.Orchestrator) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "doifind",
		DisableStartupMessage: true,
		// Leave headroom for multipart framing around the document itself.
		BodyLimit:    int(cfg.Upload.MaxBytes) + 1024*1024,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())

	s := &Server{
		app:      app,
		cfg:      cfg,
		logger:   logger,
		store:    store,
		orch:     orch,
		validate: validator.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)
	s.app.Post("/upload", s.upload)
	s.app.Get("/job/:id", s.jobStatus)
	s.app.Get("/process/:id", s.processStatus)
	s.app.Post("/apply/:id", s.apply)
	s.app.Get("/download/:id", s.download)
	s.app.Get("/export/:id", s.exportCSV)
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until Shutdown is called.
func (s *Server) Listen() error { return s.app.Listen(s.cfg.Server.Addr) }

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

// detail writes the error body shape shared by every endpoint.
func detail(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"detail": msg})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return detail(c, code, err.Error())
}
