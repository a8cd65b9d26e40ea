package handler

import (
	"go-inventory-tree/internal/service"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WSUpgrade admits websocket upgrades carrying a valid ?token=. Browsers
// cannot set an Authorization header on a websocket handshake.
func WSUpgrade(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := c.Query("token")
		if token == "" {
			return apperror.Unauthorized(apperror.CodeInvalidToken, "Missing token")
		}
		user, err := auth.ValidateToken(c.UserContext(), token)
		if err != nil {
			return err
		}
		c.Locals("allowed", true)
		c.Locals("username", user.Username)
		return c.Next()
	}
}

// WSFeed streams entity events to the client until it disconnects.
// Incoming messages are read and discarded to detect the close.
func WSFeed(hub *ws.Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		hub.Register <- c
		defer func() {
			hub.Unregister <- c
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("ws: read error", zap.Any("user", c.Locals("username")), zap.Error(err))
				}
				return
			}
		}
	})
}
