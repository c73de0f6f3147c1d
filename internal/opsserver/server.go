// Package opsserver serves the operational endpoints of the gateway on a port
// of their own, outside the bearer token gate.
package opsserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evidenceledger/ledgergateway/internal/metrics"
)

// Checker reports whether a dependency of the gateway is usable
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to a Checker
type CheckFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (f CheckFunc) Name() string                    { return f.Label }
func (f CheckFunc) Check(ctx context.Context) error { return f.Fn(ctx) }

// Server represents the operations server
type Server struct {
	app    *fiber.App
	addr   string
	checks []Checker
}

// New creates the operations server. Metrics are read from the registry of m.
func New(host, port string, m *metrics.Metrics, checks ...Checker) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Ledger Gateway Operations",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())

	s := &Server{
		app:    app,
		addr:   net.JoinHostPort(host, port),
		checks: checks,
	}

	s.app.Get("/health", s.handleHealth)

	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	return s
}

// App exposes the fiber application, for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// handleHealth runs every check. Any failure turns the answer into a 503
// naming the failed dependencies.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	failed := fiber.Map{}
	for _, check := range s.checks {
		if err := check.Check(c.UserContext()); err != nil {
			slog.Warn("Health check failed", "check", check.Name(), "error", err)
			failed[check.Name()] = err.Error()
		}
	}

	if len(failed) > 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"failed": failed,
		})
	}
	return c.JSON(fiber.Map{"status": "healthy"})
}

// Start starts the server and stops it when ctx is done
func (s *Server) Start(ctx context.Context) error {
	slog.Info("Starting operations server", "addr", s.addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- fmt.Errorf("failed to start operations server: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.app.Shutdown()
	}
}
