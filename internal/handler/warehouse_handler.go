package handler

import (
	"go-inventory-tree/internal/service"

	"github.com/gofiber/fiber/v2"
)

type WarehouseHandler struct {
	warehouseService service.WarehouseService
}

func NewWarehouseHandler(warehouseService service.WarehouseService) *WarehouseHandler {
	return &WarehouseHandler{warehouseService: warehouseService}
}

// GET /api/v1/warehouses
func (h *WarehouseHandler) List(c *fiber.Ctx) error {
	warehouses, err := h.warehouseService.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(warehouses)
}

// GET /api/v1/warehouses/:id
func (h *WarehouseHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	warehouse, err := h.warehouseService.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(warehouse)
}

// POST /api/v1/warehouses
func (h *WarehouseHandler) Create(c *fiber.Ctx) error {
	var req service.WarehouseInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	warehouse, err := h.warehouseService.Create(c.UserContext(), &req, actor(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(warehouse)
}

// PUT /api/v1/warehouses/:id
func (h *WarehouseHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.WarehouseInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	warehouse, err := h.warehouseService.Update(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(warehouse)
}

// Delete refuses warehouses that still hold entities
// DELETE /api/v1/warehouses/:id
func (h *WarehouseHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.warehouseService.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
