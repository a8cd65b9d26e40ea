package handler

import (
	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/service"

	"github.com/gofiber/fiber/v2"
)

type InventoryCheckHandler struct {
	checkService service.InventoryCheckService
}

func NewInventoryCheckHandler(checkService service.InventoryCheckService) *InventoryCheckHandler {
	return &InventoryCheckHandler{checkService: checkService}
}

// GET /api/v1/checks?status=
func (h *InventoryCheckHandler) List(c *fiber.Ctx) error {
	checks, err := h.checkService.List(c.UserContext(), model.CheckStatus(c.Query("status")))
	if err != nil {
		return err
	}
	return c.JSON(checks)
}

// POST /api/v1/checks
func (h *InventoryCheckHandler) Create(c *fiber.Ctx) error {
	var req service.CreateCheckInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	check, err := h.checkService.Create(c.UserContext(), &req, actor(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(check)
}

// Active answers null when nothing is being counted
// GET /api/v1/checks/active
func (h *InventoryCheckHandler) Active(c *fiber.Ctx) error {
	check, err := h.checkService.Active(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(check)
}

// GET /api/v1/checks/:id
func (h *InventoryCheckHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	check, err := h.checkService.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(check)
}

// GET /api/v1/checks/:id/grouped
func (h *InventoryCheckHandler) Grouped(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	check, err := h.checkService.Grouped(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(check)
}

// PUT /api/v1/checks/:id
func (h *InventoryCheckHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdateCheckInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	check, err := h.checkService.Update(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(check)
}

// POST /api/v1/checks/:id/complete
func (h *InventoryCheckHandler) Complete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	check, err := h.checkService.Complete(c.UserContext(), id, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(check)
}

// POST /api/v1/checks/:id/cancel
func (h *InventoryCheckHandler) Cancel(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	check, err := h.checkService.Cancel(c.UserContext(), id, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(check)
}

// DELETE /api/v1/checks/:id
func (h *InventoryCheckHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.checkService.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PUT /api/v1/checks/:id/items/:entityId
func (h *InventoryCheckHandler) RecordCount(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	entityID, err := paramUUID(c, "entityId")
	if err != nil {
		return err
	}
	var req service.CountInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	item, err := h.checkService.RecordCount(c.UserContext(), id, entityID, &req, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// POST /api/v1/checks/:id/items/barcode/:barcode
func (h *InventoryCheckHandler) RecordCountByBarcode(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.CountInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	item, err := h.checkService.RecordCountByBarcode(c.UserContext(), id, c.Params("barcode"), &req, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// GET /api/v1/checks/:id/compare/:previousId
func (h *InventoryCheckHandler) Compare(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	previousID, err := paramUUID(c, "previousId")
	if err != nil {
		return err
	}
	rows, err := h.checkService.Compare(c.UserContext(), id, previousID)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// POST /api/v1/checks/:id/apply-corrections
func (h *InventoryCheckHandler) ApplyCorrections(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	result, err := h.checkService.ApplyCorrections(c.UserContext(), id, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(result)
}
