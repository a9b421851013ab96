package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Group6Cameo/go-cameo/internal/log"

	"github.com/Group6Cameo/go-cameo/pkg/hub"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

// handleStatus returns the tracker's current snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.tracker.Status())
}

// handleGetTarget returns the manual target id on file.
func (s *Server) handleGetTarget(c *fiber.Ctx) error {
	id, err := s.targets.Read()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"id": id})
}

// SetTargetRequest is the body for POST /api/target.
type SetTargetRequest struct {
	ID string `json:"id"`
}

// handleSetTarget writes a new manual target id. The tracker picks it
// up on its next manual poll.
func (s *Server) handleSetTarget(c *fiber.Ctx) error {
	var req SetTargetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body must be JSON with an id field",
		})
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id must not be empty",
		})
	}
	if err := s.targets.Write(id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	log.Info("manual target set via api", "subject", id)
	return c.JSON(fiber.Map{"id": id})
}

// handleStatusWS streams status snapshots: current state first so the
// dashboard renders immediately, then live updates through the hub.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	if err := conn.WriteJSON(s.tracker.Status()); err != nil {
		conn.Close()
		return
	}
	client := hub.NewClient(s.statusHub, conn)
	client.Run()
}
