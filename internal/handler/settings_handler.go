package handler

import (
	"go-inventory-tree/internal/service"
	"go-inventory-tree/pkg/validator"

	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	barcodeService service.BarcodeService
}

func NewSettingsHandler(barcodeService service.BarcodeService) *SettingsHandler {
	return &SettingsHandler{barcodeService: barcodeService}
}

type UpdateSettingRequest struct {
	Value string `json:"value"`
}

type ValidateBarcodeRequest struct {
	Barcode string `json:"barcode" validate:"required"`
}

// GET /api/v1/settings
func (h *SettingsHandler) List(c *fiber.Ctx) error {
	settings, err := h.barcodeService.Settings(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"settings": settings})
}

// GET /api/v1/settings/:key
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	setting, err := h.barcodeService.GetSetting(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(setting)
}

// PUT /api/v1/settings/:key
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var req UpdateSettingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	setting, err := h.barcodeService.UpdateSetting(c.UserContext(), c.Params("key"), req.Value)
	if err != nil {
		return err
	}
	return c.JSON(setting)
}

// TestPattern reports whether a barcode would be treated as internal under
// the given pattern
// POST /api/v1/settings/test-pattern
func (h *SettingsHandler) TestPattern(c *fiber.Ctx) error {
	var req PatternTestRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validator.Validate(&req); err != nil {
		return err
	}
	return c.JSON(h.barcodeService.TestPattern(req.Pattern, req.Barcode))
}

// GET /api/v1/settings/pattern/examples?pattern=INV-#####
func (h *SettingsHandler) PatternExamples(c *fiber.Ctx) error {
	return c.JSON(h.barcodeService.PatternInfo(c.Query("pattern")))
}

// ValidateBarcode classifies a scanned code against the stored pattern
// POST /api/v1/settings/validate-barcode
func (h *SettingsHandler) ValidateBarcode(c *fiber.Ctx) error {
	var req ValidateBarcodeRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	if req.Barcode == "" {
		req.Barcode = c.Query("barcode")
	}
	if err := validator.Validate(&req); err != nil {
		return err
	}
	class, err := h.barcodeService.Classify(c.UserContext(), req.Barcode)
	if err != nil {
		return err
	}
	return c.JSON(class)
}
