package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateCheckInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
	// EntityTypes selects what gets counted; empty means items only.
	EntityTypes []string `json:"entity_types" validate:"omitempty,dive,required,max=50"`
}

type UpdateCheckInput struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description Optional[string] `json:"description"`
}

type CountInput struct {
	ActualQuantity *int `json:"actual_quantity" validate:"required,gte=0"`
}

// CheckGroup collects the items of one container.
type CheckGroup struct {
	ParentID     *uuid.UUID        `json:"parent_id"`
	ParentName   string            `json:"parent_name"`
	TotalItems   int               `json:"total_items"`
	CheckedItems int               `json:"checked_items"`
	Items        []model.CheckItem `json:"items"`
}

type GroupedCheck struct {
	model.InventoryCheck
	Groups []CheckGroup `json:"groups"`
}

// CheckComparison lines up one entity across two checks.
type CheckComparison struct {
	EntityID         uuid.UUID `json:"entity_id"`
	Barcode          string    `json:"barcode"`
	Name             string    `json:"name"`
	ParentName       *string   `json:"parent_name"`
	PreviousExpected *int      `json:"previous_expected"`
	PreviousActual   *int      `json:"previous_actual"`
	CurrentExpected  int       `json:"current_expected"`
	CurrentActual    *int      `json:"current_actual"`
	// ChangeSinceLast is what the system gained or lost between the last
	// count and this check's snapshot.
	ChangeSinceLast *int `json:"change_since_last"`
}

type Correction struct {
	EntityID uuid.UUID `json:"entity_id"`
	Barcode  string    `json:"barcode"`
	From     int       `json:"from"`
	To       int       `json:"to"`
}

type CorrectionResult struct {
	CheckID     uuid.UUID    `json:"check_id"`
	Applied     int          `json:"applied"`
	Corrections []Correction `json:"corrections"`
	// Missing lists counted entities deleted since the check started.
	Missing []uuid.UUID `json:"missing"`
}

// noParentGroup names the group of items stored directly in a warehouse.
const noParentGroup = "No container"

// InventoryCheckService runs stock-takes: snapshot, count, close, and
// write the counted quantities back.
type InventoryCheckService interface {
	List(ctx context.Context, status model.CheckStatus) ([]model.InventoryCheckSummary, error)
	Create(ctx context.Context, input *CreateCheckInput, actorID uuid.UUID) (*model.InventoryCheck, error)
	Get(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error)
	Active(ctx context.Context) (*GroupedCheck, error)
	Grouped(ctx context.Context, id uuid.UUID) (*GroupedCheck, error)
	Update(ctx context.Context, id uuid.UUID, input *UpdateCheckInput, actorID uuid.UUID) (*model.InventoryCheck, error)
	Complete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*model.InventoryCheck, error)
	Cancel(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*model.InventoryCheck, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RecordCount(ctx context.Context, checkID, entityID uuid.UUID, input *CountInput, actorID uuid.UUID) (*model.CheckItem, error)
	RecordCountByBarcode(ctx context.Context, checkID uuid.UUID, barcode string, input *CountInput, actorID uuid.UUID) (*model.CheckItem, error)
	Compare(ctx context.Context, id, previousID uuid.UUID) ([]CheckComparison, error)
	ApplyCorrections(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*CorrectionResult, error)
}

type inventoryCheckService struct {
	db       *gorm.DB
	checks   repository.InventoryCheckRepository
	entities repository.EntityRepository
	history  repository.HistoryRepository
	types    EntityTypeService
	events   ws.Publisher
}

func NewInventoryCheckService(
	db *gorm.DB,
	checks repository.InventoryCheckRepository,
	entities repository.EntityRepository,
	history repository.HistoryRepository,
	types EntityTypeService,
	events ws.Publisher,
) InventoryCheckService {
	if events == nil {
		events = ws.Nop{}
	}
	return &inventoryCheckService{
		db:       db,
		checks:   checks,
		entities: entities,
		history:  history,
		types:    types,
		events:   events,
	}
}

type checkTx struct {
	checks   repository.InventoryCheckRepository
	entities repository.EntityRepository
	history  repository.HistoryRepository
}

func (s *inventoryCheckService) transaction(ctx context.Context, op string, fn func(r *checkTx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&checkTx{
			checks:   s.checks.WithTx(tx),
			entities: s.entities.WithTx(tx),
			history:  s.history.WithTx(tx),
		})
	})
	return storage(err, op)
}

func (s *inventoryCheckService) publish(id uuid.UUID, actorID uuid.UUID, data map[string]interface{}) {
	ev := ws.Event{Type: ws.EventCheckChanged, EntityID: id.String(), Data: data}
	if actorID != uuid.Nil {
		ev.ActorID = actorID.String()
	}
	s.events.Publish(ev)
}

func (s *inventoryCheckService) List(ctx context.Context, status model.CheckStatus) ([]model.InventoryCheckSummary, error) {
	switch status {
	case "", model.CheckInProgress, model.CheckCompleted, model.CheckCancelled:
	default:
		return nil, apperror.Validation(apperror.CodeInvalidStatus, fmt.Sprintf("Unknown check status '%s'", status)).
			WithParams(map[string]interface{}{"status": status})
	}
	checks, err := s.checks.FindAll(ctx, status)
	if err != nil {
		return nil, apperror.Unexpected(err, "list inventory checks")
	}
	return checks, nil
}

// Create snapshots every entity of the selected types with its current
// quantity, price and container.
func (s *inventoryCheckService) Create(ctx context.Context, input *CreateCheckInput, actorID uuid.UUID) (*model.InventoryCheck, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	types := input.EntityTypes
	if len(types) == 0 {
		types = []string{model.TypeItem}
	}
	for _, code := range types {
		if _, err := s.types.Find(ctx, code); err != nil {
			return nil, err
		}
	}

	check := &model.InventoryCheck{
		Name:        input.Name,
		Description: input.Description,
		Status:      model.CheckInProgress,
		StartedAt:   time.Now(),
	}
	check.CreatedBy = actorName(actorID)
	check.UpdatedBy = check.CreatedBy

	var counted int
	err := s.transaction(ctx, "create inventory check", func(r *checkTx) error {
		entities, err := r.entities.FindByTypes(ctx, types)
		if err != nil {
			return err
		}
		parentNames, err := r.parentNames(ctx, entities)
		if err != nil {
			return err
		}
		if err := r.checks.Create(ctx, check); err != nil {
			return err
		}

		items := make([]model.CheckItem, len(entities))
		for i, e := range entities {
			items[i] = model.CheckItem{
				CheckID:          check.ID,
				EntityID:         e.ID,
				Barcode:          e.Barcode,
				Name:             e.Name,
				EntityType:       e.EntityType,
				ParentID:         e.ParentID,
				ExpectedQuantity: e.Quantity,
				Price:            e.Price,
			}
			if e.ParentID != nil {
				if name, ok := parentNames[*e.ParentID]; ok {
					items[i].ParentName = &name
				}
			}
		}
		counted = len(items)
		return r.checks.CreateItems(ctx, items)
	})
	if err != nil {
		return nil, err
	}
	s.publish(check.ID, actorID, map[string]interface{}{"status": check.Status, "items": counted})
	return s.Get(ctx, check.ID)
}

func (r *checkTx) parentNames(ctx context.Context, entities []model.Entity) (map[uuid.UUID]string, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, e := range entities {
		if e.ParentID != nil && !seen[*e.ParentID] {
			seen[*e.ParentID] = true
			ids = append(ids, *e.ParentID)
		}
	}
	parents, err := r.entities.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(parents))
	for _, p := range parents {
		names[p.ID] = p.Name
	}
	return names, nil
}

func (s *inventoryCheckService) Get(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error) {
	check, err := s.checks.FindDetailed(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeCheckNotFound, "inventory check", id)
	}
	if check.Items == nil {
		check.Items = []model.CheckItem{}
	}
	return check, nil
}

// Active returns the oldest check in progress, or nil when there is none.
func (s *inventoryCheckService) Active(ctx context.Context) (*GroupedCheck, error) {
	check, err := s.checks.FindActive(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Unexpected(err, "load active inventory check")
	}
	return s.Grouped(ctx, check.ID)
}

// Grouped returns the check with its items grouped by container, groups
// ordered by name.
func (s *inventoryCheckService) Grouped(ctx context.Context, id uuid.UUID) (*GroupedCheck, error) {
	check, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return groupByParent(check), nil
}

func groupByParent(check *model.InventoryCheck) *GroupedCheck {
	byParent := map[uuid.UUID]*CheckGroup{}
	var order []*CheckGroup
	for _, item := range check.Items {
		key := uuid.Nil
		if item.ParentID != nil {
			key = *item.ParentID
		}
		group, ok := byParent[key]
		if !ok {
			group = &CheckGroup{ParentID: item.ParentID, ParentName: noParentGroup, Items: []model.CheckItem{}}
			if item.ParentName != nil {
				group.ParentName = *item.ParentName
			}
			byParent[key] = group
			order = append(order, group)
		}
		group.Items = append(group.Items, item)
		group.TotalItems++
		if item.ActualQuantity != nil {
			group.CheckedItems++
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return order[a].ParentName < order[b].ParentName })

	out := &GroupedCheck{InventoryCheck: *check, Groups: make([]CheckGroup, len(order))}
	out.Items = nil
	for i, g := range order {
		out.Groups[i] = *g
	}
	return out
}

func (s *inventoryCheckService) Update(ctx context.Context, id uuid.UUID, input *UpdateCheckInput, actorID uuid.UUID) (*model.InventoryCheck, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if input.Name != nil {
		fields["name"] = *input.Name
	}
	if input.Description.Set {
		fields["description"] = input.Description.Value
	}
	err := s.transaction(ctx, "update inventory check", func(r *checkTx) error {
		if _, err := r.lockCheck(ctx, id); err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		fields["updated_by"] = actorName(actorID)
		return r.checks.Updates(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *inventoryCheckService) Complete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*model.InventoryCheck, error) {
	return s.finish(ctx, id, model.CheckCompleted, actorID)
}

func (s *inventoryCheckService) Cancel(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*model.InventoryCheck, error) {
	return s.finish(ctx, id, model.CheckCancelled, actorID)
}

func (s *inventoryCheckService) finish(ctx context.Context, id uuid.UUID, status model.CheckStatus, actorID uuid.UUID) (*model.InventoryCheck, error) {
	err := s.transaction(ctx, "close inventory check", func(r *checkTx) error {
		check, err := r.lockCheck(ctx, id)
		if err != nil {
			return err
		}
		if err := requireInProgress(check); err != nil {
			return err
		}
		return r.checks.Updates(ctx, id, map[string]interface{}{
			"status":       status,
			"completed_at": time.Now(),
			"updated_by":   actorName(actorID),
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(id, actorID, map[string]interface{}{"status": status})
	return s.Get(ctx, id)
}

func (s *inventoryCheckService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.transaction(ctx, "delete inventory check", func(r *checkTx) error {
		if _, err := r.lockCheck(ctx, id); err != nil {
			return err
		}
		return r.checks.Delete(ctx, id)
	})
}

func (s *inventoryCheckService) RecordCount(ctx context.Context, checkID, entityID uuid.UUID, input *CountInput, actorID uuid.UUID) (*model.CheckItem, error) {
	return s.recordCount(ctx, checkID, input, actorID, func(r *checkTx) (*model.CheckItem, error) {
		item, err := r.checks.FindItem(ctx, checkID, entityID)
		if err != nil {
			return nil, notFoundOr(err, apperror.CodeCheckItemNotFound, "check item", entityID)
		}
		return item, nil
	})
}

// RecordCountByBarcode is the scanner path: the item is found by the
// barcode it had when the check started.
func (s *inventoryCheckService) RecordCountByBarcode(ctx context.Context, checkID uuid.UUID, barcode string, input *CountInput, actorID uuid.UUID) (*model.CheckItem, error) {
	return s.recordCount(ctx, checkID, input, actorID, func(r *checkTx) (*model.CheckItem, error) {
		item, err := r.checks.FindItemByBarcode(ctx, checkID, barcode)
		if err != nil {
			return nil, notFoundOr(err, apperror.CodeCheckItemNotFound, "check item", barcode)
		}
		return item, nil
	})
}

func (s *inventoryCheckService) recordCount(ctx context.Context, checkID uuid.UUID, input *CountInput, actorID uuid.UUID, find func(r *checkTx) (*model.CheckItem, error)) (*model.CheckItem, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	var item *model.CheckItem
	err := s.transaction(ctx, "record count", func(r *checkTx) error {
		check, err := r.lockCheck(ctx, checkID)
		if err != nil {
			return err
		}
		if err := requireInProgress(check); err != nil {
			return err
		}
		if item, err = find(r); err != nil {
			return err
		}
		now := time.Now()
		actual := *input.ActualQuantity
		item.ActualQuantity = &actual
		item.CheckedAt = &now
		item.CheckedBy = nil
		if actorID != uuid.Nil {
			actor := actorID
			item.CheckedBy = &actor
		}
		return r.checks.SaveItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	item.SetDifference()
	return item, nil
}

// Compare lists every item of the current check next to the same entity in
// the previous one.
func (s *inventoryCheckService) Compare(ctx context.Context, id, previousID uuid.UUID) ([]CheckComparison, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous, err := s.Get(ctx, previousID)
	if err != nil {
		return nil, err
	}

	before := make(map[uuid.UUID]model.CheckItem, len(previous.Items))
	for _, item := range previous.Items {
		before[item.EntityID] = item
	}
	out := make([]CheckComparison, 0, len(current.Items))
	for _, item := range current.Items {
		row := CheckComparison{
			EntityID:        item.EntityID,
			Barcode:         item.Barcode,
			Name:            item.Name,
			ParentName:      item.ParentName,
			CurrentExpected: item.ExpectedQuantity,
			CurrentActual:   item.ActualQuantity,
		}
		if prev, ok := before[item.EntityID]; ok {
			expected := prev.ExpectedQuantity
			row.PreviousExpected = &expected
			row.PreviousActual = prev.ActualQuantity
			if prev.ActualQuantity != nil {
				change := item.ExpectedQuantity - *prev.ActualQuantity
				row.ChangeSinceLast = &change
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// ApplyCorrections writes counted quantities that disagree with the
// snapshot back onto the entities, once per completed check. Each change
// is recorded as a quantity change in the entity's history.
func (s *inventoryCheckService) ApplyCorrections(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*CorrectionResult, error) {
	result := &CorrectionResult{CheckID: id, Corrections: []Correction{}, Missing: []uuid.UUID{}}
	err := s.transaction(ctx, "apply check corrections", func(r *checkTx) error {
		check, err := r.lockCheck(ctx, id)
		if err != nil {
			return err
		}
		if check.Status != model.CheckCompleted {
			return apperror.PreconditionFailed(apperror.CodeCheckNotCompleted,
				"Check must be completed before applying corrections").
				WithParams(map[string]interface{}{"id": id.String(), "status": check.Status})
		}
		if check.CorrectionsAppliedAt != nil {
			return apperror.Conflict(apperror.CodeCorrectionsApplied, "Corrections for this check were already applied").
				WithParams(map[string]interface{}{"id": id.String(), "applied_at": *check.CorrectionsAppliedAt})
		}

		detailed, err := r.checks.FindDetailed(ctx, id)
		if err != nil {
			return err
		}
		var pending []model.CheckItem
		ids := make([]uuid.UUID, 0, len(detailed.Items))
		for _, item := range detailed.Items {
			if item.Differs() {
				pending = append(pending, item)
				ids = append(ids, item.EntityID)
			}
		}
		rows, err := r.entities.LockMany(ctx, ids)
		if err != nil {
			return err
		}
		locked := make(map[uuid.UUID]*model.Entity, len(rows))
		for i := range rows {
			locked[rows[i].ID] = &rows[i]
		}

		for _, item := range pending {
			entity, ok := locked[item.EntityID]
			if !ok {
				result.Missing = append(result.Missing, item.EntityID)
				continue
			}
			to := *item.ActualQuantity
			if entity.Quantity == to {
				continue
			}
			if err := r.entities.Updates(ctx, entity.ID, map[string]interface{}{
				"quantity":   to,
				"updated_by": actorName(actorID),
			}); err != nil {
				return err
			}
			if err := r.history.Append(ctx, historyEntry(entity.ID, model.OpQuantityChange, nil, map[string]interface{}{
				"from":               entity.Quantity,
				"to":                 to,
				"delta":              to - entity.Quantity,
				"inventory_check_id": id.String(),
			}, actorID)); err != nil {
				return err
			}
			result.Corrections = append(result.Corrections, Correction{
				EntityID: entity.ID,
				Barcode:  entity.Barcode,
				From:     entity.Quantity,
				To:       to,
			})
		}
		result.Applied = len(result.Corrections)
		return r.checks.Updates(ctx, id, map[string]interface{}{
			"corrections_applied_at": time.Now(),
			"updated_by":             actorName(actorID),
		})
	})
	if err != nil {
		return nil, err
	}

	for _, c := range result.Corrections {
		ev := ws.Event{Type: ws.EventQuantityChanged, EntityID: c.EntityID.String(), Data: map[string]interface{}{
			"from":               c.From,
			"to":                 c.To,
			"delta":              c.To - c.From,
			"inventory_check_id": id.String(),
		}}
		if actorID != uuid.Nil {
			ev.ActorID = actorID.String()
		}
		s.events.Publish(ev)
	}
	s.publish(id, actorID, map[string]interface{}{"corrections_applied": result.Applied})
	return result, nil
}

func (r *checkTx) lockCheck(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error) {
	check, err := r.checks.LockByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeCheckNotFound, "inventory check", id)
	}
	return check, nil
}

func requireInProgress(check *model.InventoryCheck) error {
	if check.Status != model.CheckInProgress {
		return apperror.PreconditionFailed(apperror.CodeCheckNotInProgress, "Check is not in progress").
			WithParams(map[string]interface{}{"id": check.ID.String(), "status": check.Status})
	}
	return nil
}
