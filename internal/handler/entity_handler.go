package handler

import (
	"strconv"

	"go-inventory-tree/internal/service"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/validator"

	"github.com/gofiber/fiber/v2"
)

type EntityHandler struct {
	entityService  service.EntityService
	historyService service.HistoryService
}

func NewEntityHandler(entityService service.EntityService, historyService service.HistoryService) *EntityHandler {
	return &EntityHandler{entityService: entityService, historyService: historyService}
}

// List returns entity summaries
// GET /api/v1/entities?entity_type=&warehouse_id=&parent_id=&root_only=&status=&search=&skip=&limit=
func (h *EntityHandler) List(c *fiber.Ctx) error {
	warehouseID, err := queryUUID(c, "warehouse_id")
	if err != nil {
		return err
	}
	parentID, err := queryUUID(c, "parent_id")
	if err != nil {
		return err
	}
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		return err
	}

	entities, err := h.entityService.List(c.UserContext(), service.ListEntitiesInput{
		EntityType:  c.Query("entity_type"),
		WarehouseID: warehouseID,
		ParentID:    parentID,
		RootOnly:    c.QueryBool("root_only", false),
		Status:      c.Query("status"),
		Search:      c.Query("search"),
		Offset:      skip,
		Limit:       limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(entities)
}

// Create places a new entity in a warehouse, under a parent, or nowhere
// POST /api/v1/entities
func (h *EntityHandler) Create(c *fiber.Ctx) error {
	var req service.CreateEntityInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	entity, err := h.entityService.Create(c.UserContext(), &req, actor(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(entity)
}

// GET /api/v1/entities/:id
func (h *EntityHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	entity, err := h.entityService.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(entity)
}

// GET /api/v1/entities/barcode/:barcode
func (h *EntityHandler) GetByBarcode(c *fiber.Ctx) error {
	entity, err := h.entityService.GetByBarcode(c.UserContext(), c.Params("barcode"))
	if err != nil {
		return err
	}
	return c.JSON(entity)
}

// Update applies a partial update; explicit nulls clear nullable fields
// PUT /api/v1/entities/:id
func (h *EntityHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdateEntityInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	entity, err := h.entityService.Update(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(entity)
}

// Delete removes an entity; ?force=true takes its subtree with it
// DELETE /api/v1/entities/:id
func (h *EntityHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.entityService.Delete(c.UserContext(), id, c.QueryBool("force", false), actor(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/v1/entities/:id/move
func (h *EntityHandler) Move(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.MoveInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	entity, err := h.entityService.Move(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(entity)
}

// POST /api/v1/entities/:id/convert
func (h *EntityHandler) Convert(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.ConvertInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	entity, err := h.entityService.Convert(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(entity)
}

// POST /api/v1/entities/:id/split
func (h *EntityHandler) Split(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.SplitInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.entityService.Split(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// POST /api/v1/entities/:id/merge
func (h *EntityHandler) Merge(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.MergeInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validator.Validate(&req); err != nil {
		return err
	}
	result, err := h.entityService.Merge(c.UserContext(), id, req.SourceIDs, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// AdjustQuantity adds a signed delta to the quantity
// POST /api/v1/entities/:id/quantity?adjustment=-3
func (h *EntityHandler) AdjustQuantity(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	raw := c.Query("adjustment")
	delta, convErr := strconv.Atoi(raw)
	if convErr != nil {
		return apperror.Validation(apperror.CodeInvalidInput, "adjustment must be an integer").
			WithParams(map[string]interface{}{"field": "adjustment", "value": raw})
	}
	entity, err := h.entityService.AdjustQuantity(c.UserContext(), id, delta, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(entity)
}

// GET /api/v1/entities/:id/children
func (h *EntityHandler) ListChildren(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	children, err := h.entityService.ListChildren(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(children)
}

// AddChild links a child by barcode or id, optionally taking the quantity
// out of the child's own stock
// POST /api/v1/entities/:id/children
func (h *EntityHandler) AddChild(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.AddChildInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	relation, err := h.entityService.AddChild(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(relation)
}

// PUT /api/v1/entities/:id/children/:relationId
func (h *EntityHandler) UpdateChild(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	relationID, err := paramUUID(c, "relationId")
	if err != nil {
		return err
	}
	var req service.UpdateRelationInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	relation, err := h.entityService.UpdateRelation(c.UserContext(), id, relationID, &req)
	if err != nil {
		return err
	}
	return c.JSON(relation)
}

// DELETE /api/v1/entities/:id/children/:relationId?return_quantity=true
func (h *EntityHandler) RemoveChild(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	relationID, err := paramUUID(c, "relationId")
	if err != nil {
		return err
	}
	err = h.entityService.RemoveChild(c.UserContext(), id, relationID, c.QueryBool("return_quantity", false), actor(c))
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// History returns the audit trail, newest first
// GET /api/v1/entities/:id/history?skip=&limit=
func (h *EntityHandler) History(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return err
	}
	history, err := h.historyService.History(c.UserContext(), id, skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(history)
}
