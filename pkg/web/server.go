// Package web serves the control plane for the tracking rig: a small
// JSON API for status and manual target selection, plus a websocket
// stream of status snapshots for dashboards.
package web

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/Group6Cameo/go-cameo/internal/log"

	"github.com/Group6Cameo/go-cameo/pkg/hub"

	"github.com/Group6Cameo/go-cameo/pkg/tracking"
)

// StatusProvider exposes the tracker's current snapshot.
type StatusProvider interface {
	Status() tracking.Status
}

// TargetStore reads and writes the manual target id.
type TargetStore interface {
	Read() (string, error)
	Write(id string) error
}

// Server is the control-plane HTTP server.
type Server struct {
	app  *fiber.App
	addr string

	tracker StatusProvider
	targets TargetStore

	statusHub *hub.Hub
}

// NewServer wires the API against a tracker and a target store.
func NewServer(addr string, tracker StatusProvider, targets TargetStore) *Server {
	s := &Server{
		addr:      addr,
		tracker:   tracker,
		targets:   targets,
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "cameo control",
		DisableStartupMessage: true,
	})

	// CORS for dashboards served from elsewhere
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/target", s.handleGetTarget)
	api.Post("/target", s.handleSetTarget)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Run serves until the context is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(2 * time.Second); err != nil {
			log.Warn("control api shutdown", "error", err)
		}
	}()

	log.Info("control api listening", "addr", s.addr)
	if err := s.app.Listen(s.addr); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve control api: %w", err)
	}
	return nil
}

// UpdateStatus broadcasts a fresh snapshot to websocket clients. The
// tracker calls this through its StateUpdater hook.
func (s *Server) UpdateStatus(st tracking.Status) {
	if err := s.statusHub.BroadcastJSON(st); err != nil {
		log.Warn("status broadcast failed", "error", err)
	}
}
