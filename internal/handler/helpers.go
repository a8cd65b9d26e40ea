package handler

import (
	"strconv"

	"go-inventory-tree/internal/middleware"
	"go-inventory-tree/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.Wrap(err, apperror.KindValidation, apperror.CodeInvalidInput, "Invalid JSON")
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Params(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation(apperror.CodeInvalidInput, "Invalid "+name).
			WithParams(map[string]interface{}{"field": name, "value": raw})
	}
	return id, nil
}

func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "Invalid "+name).
			WithParams(map[string]interface{}{"field": name, "value": raw})
	}
	return &id, nil
}

// queryInt returns def when the parameter is absent.
func queryInt(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation(apperror.CodeInvalidInput, name+" must be an integer").
			WithParams(map[string]interface{}{"field": name, "value": raw})
	}
	return n, nil
}

func actor(c *fiber.Ctx) uuid.UUID {
	return middleware.UserID(c)
}
