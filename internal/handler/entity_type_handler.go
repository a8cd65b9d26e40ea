package handler

import (
	"go-inventory-tree/internal/service"

	"github.com/gofiber/fiber/v2"
)

type EntityTypeHandler struct {
	typeService service.EntityTypeService
}

func NewEntityTypeHandler(typeService service.EntityTypeService) *EntityTypeHandler {
	return &EntityTypeHandler{typeService: typeService}
}

// GET /api/v1/entity-types?include_inactive=true
func (h *EntityTypeHandler) List(c *fiber.Ctx) error {
	types, err := h.typeService.List(c.UserContext(), c.QueryBool("include_inactive", false))
	if err != nil {
		return err
	}
	return c.JSON(types)
}

// GET /api/v1/entity-types/:code
func (h *EntityTypeHandler) Get(c *fiber.Ctx) error {
	et, err := h.typeService.Get(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(et)
}

// POST /api/v1/entity-types
func (h *EntityTypeHandler) Create(c *fiber.Ctx) error {
	var req service.CreateEntityTypeInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	et, err := h.typeService.Create(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(et)
}

// PUT /api/v1/entity-types/:code
func (h *EntityTypeHandler) Update(c *fiber.Ctx) error {
	var req service.UpdateEntityTypeInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	et, err := h.typeService.Update(c.UserContext(), c.Params("code"), &req)
	if err != nil {
		return err
	}
	return c.JSON(et)
}

// POST /api/v1/entity-types/:code/activate
func (h *EntityTypeHandler) Activate(c *fiber.Ctx) error {
	et, err := h.typeService.Activate(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(et)
}

// POST /api/v1/entity-types/:code/deactivate
func (h *EntityTypeHandler) Deactivate(c *fiber.Ctx) error {
	et, err := h.typeService.Deactivate(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(et)
}

// Delete refuses builtin types and types still referenced by entities
// DELETE /api/v1/entity-types/:code
func (h *EntityTypeHandler) Delete(c *fiber.Ctx) error {
	if err := h.typeService.Delete(c.UserContext(), c.Params("code")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// InitDefaults inserts any missing builtin type and returns the full list
// POST /api/v1/entity-types/init-defaults
func (h *EntityTypeHandler) InitDefaults(c *fiber.Ctx) error {
	ctx := c.UserContext()
	inserted, err := h.typeService.EnsureDefaults(ctx)
	if err != nil {
		return err
	}
	types, err := h.typeService.List(ctx, true)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"inserted": inserted, "entity_types": types})
}
