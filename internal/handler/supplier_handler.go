package handler

import (
	"go-inventory-tree/internal/service"
	"go-inventory-tree/pkg/validator"

	"github.com/gofiber/fiber/v2"
)

type SupplierHandler struct {
	supplierService service.SupplierService
}

func NewSupplierHandler(supplierService service.SupplierService) *SupplierHandler {
	return &SupplierHandler{supplierService: supplierService}
}

type PatternTestRequest struct {
	Pattern string `json:"pattern"`
	Barcode string `json:"barcode" validate:"required"`
}

// GET /api/v1/supplier-patterns?enabled_only=true
func (h *SupplierHandler) List(c *fiber.Ctx) error {
	patterns, err := h.supplierService.List(c.UserContext(), c.QueryBool("enabled_only", false))
	if err != nil {
		return err
	}
	return c.JSON(patterns)
}

// GET /api/v1/supplier-patterns/:id
func (h *SupplierHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	pattern, err := h.supplierService.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(pattern)
}

// Match finds the first enabled supplier whose pattern fits the barcode
// GET /api/v1/supplier-patterns/match/:barcode
func (h *SupplierHandler) Match(c *fiber.Ctx) error {
	match, err := h.supplierService.Match(c.UserContext(), c.Params("barcode"))
	if err != nil {
		return err
	}
	return c.JSON(match)
}

// POST /api/v1/supplier-patterns
func (h *SupplierHandler) Create(c *fiber.Ctx) error {
	var req service.SupplierPatternInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	pattern, err := h.supplierService.Create(c.UserContext(), &req, actor(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(pattern)
}

// PUT /api/v1/supplier-patterns/:id
func (h *SupplierHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdateSupplierPatternInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	pattern, err := h.supplierService.Update(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(pattern)
}

// DELETE /api/v1/supplier-patterns/:id
func (h *SupplierHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.supplierService.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Test checks a pattern against a barcode without storing anything
// POST /api/v1/supplier-patterns/test
func (h *SupplierHandler) Test(c *fiber.Ctx) error {
	var req PatternTestRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validator.Validate(&req); err != nil {
		return err
	}
	return c.JSON(h.supplierService.Test(req.Pattern, req.Barcode))
}
