package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ClientCounter is satisfied by *ws.Hub.
type ClientCounter interface {
	ClientCount() int
}

type HealthHandler struct {
	db      Pinger
	clients ClientCounter
	started time.Time
}

func NewHealthHandler(db Pinger, clients ClientCounter) *HealthHandler {
	return &HealthHandler{db: db, clients: clients, started: time.Now()}
}

// Health reports database reachability and live websocket clients
// GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, dbStatus := "ok", "ok"
	code := fiber.StatusOK
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status, dbStatus = "degraded", err.Error()
			code = fiber.StatusServiceUnavailable
		}
	}

	clients := 0
	if h.clients != nil {
		clients = h.clients.ClientCount()
	}

	return c.Status(code).JSON(fiber.Map{
		"status":     status,
		"database":   dbStatus,
		"ws_clients": clients,
		"uptime":     time.Since(h.started).Round(time.Second).String(),
	})
}
