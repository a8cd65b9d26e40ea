package handler

import (
	"go-inventory-tree/internal/lookup"

	"github.com/gofiber/fiber/v2"
)

type LookupHandler struct {
	lookupService lookup.ProductLookupService
}

func NewLookupHandler(lookupService lookup.ProductLookupService) *LookupHandler {
	return &LookupHandler{lookupService: lookupService}
}

type LookupResponse struct {
	Barcode      string           `json:"barcode"`
	Found        bool             `json:"found"`
	Product      *lookup.Product  `json:"product"`
	Alternatives []lookup.Product `json:"alternatives"`
}

// Lookup queries every external catalog; the best match comes first
// GET /api/v1/barcode-lookup/:barcode
func (h *LookupHandler) Lookup(c *fiber.Ctx) error {
	code := c.Params("barcode")
	products, err := h.lookupService.LookupAll(c.UserContext(), code)
	if err != nil {
		return err
	}
	resp := LookupResponse{Barcode: code, Alternatives: []lookup.Product{}}
	if len(products) > 0 {
		resp.Found = true
		resp.Product = &products[0]
		resp.Alternatives = products[1:]
	}
	return c.JSON(resp)
}

// Quick returns only the best match. Codes too short to look up are a
// miss, not an error.
// GET /api/v1/barcode-lookup/quick/:barcode
func (h *LookupHandler) Quick(c *fiber.Ctx) error {
	code := c.Params("barcode")
	if len(code) < lookup.MinBarcodeLength {
		return c.JSON(fiber.Map{"found": false, "barcode": code})
	}
	product, err := h.lookupService.LookupBest(c.UserContext(), code)
	if err != nil {
		return err
	}
	if product == nil {
		return c.JSON(fiber.Map{"found": false, "barcode": code})
	}
	return c.JSON(fiber.Map{
		"found":       true,
		"barcode":     code,
		"name":        product.Name,
		"description": product.Description,
		"brand":       product.Brand,
		"source":      product.Source,
	})
}
