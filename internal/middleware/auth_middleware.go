package middleware

import (
	"strings"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/service"
	"go-inventory-tree/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals keys set by RequireAuth.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
	LocalRole     = "role"
)

// RequireAuth validates the bearer token and sets user info in context
func RequireAuth(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperror.Unauthorized(apperror.CodeInvalidToken, "Missing authorization token")
		}

		// "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return apperror.Unauthorized(apperror.CodeInvalidToken, "Invalid authorization format. Use: Bearer <token>")
		}

		user, err := auth.ValidateToken(c.UserContext(), parts[1])
		if err != nil {
			return err
		}

		c.Locals(LocalUserID, user.ID)
		c.Locals(LocalUsername, user.Username)
		c.Locals(LocalRole, user.Role)

		return c.Next()
	}
}

// RequireRole rejects users whose role ranks below min. Must run after
// RequireAuth.
func RequireRole(min model.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(model.UserRole)
		if !role.AtLeast(min) {
			return apperror.Forbidden(apperror.CodeInsufficientRole,
				"Forbidden: requires '"+string(min)+"' role").
				WithParams(map[string]interface{}{"required": min, "role": role})
		}
		return c.Next()
	}
}

// UserID returns the authenticated user, or uuid.Nil on public routes.
func UserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(LocalUserID).(uuid.UUID)
	return id
}
