package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntityService owns the entity tree and the relation graph beside it.
// Every mutation is one transaction; events go out after commit.
type EntityService interface {
	Create(ctx context.Context, input *CreateEntityInput, actorID uuid.UUID) (*model.Entity, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	GetByBarcode(ctx context.Context, barcode string) (*model.Entity, error)
	List(ctx context.Context, input ListEntitiesInput) ([]model.EntitySummary, error)
	Update(ctx context.Context, id uuid.UUID, input *UpdateEntityInput, actorID uuid.UUID) (*model.Entity, error)
	Delete(ctx context.Context, id uuid.UUID, force bool, actorID uuid.UUID) error

	Move(ctx context.Context, id uuid.UUID, input *MoveInput, actorID uuid.UUID) (*model.Entity, error)
	Convert(ctx context.Context, id uuid.UUID, input *ConvertInput, actorID uuid.UUID) (*model.Entity, error)
	Split(ctx context.Context, id uuid.UUID, input *SplitInput, actorID uuid.UUID) (*SplitResult, error)
	Merge(ctx context.Context, targetID uuid.UUID, sourceIDs []uuid.UUID, actorID uuid.UUID) (*MergeResult, error)
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int, actorID uuid.UUID) (*model.Entity, error)

	AddChild(ctx context.Context, parentID uuid.UUID, input *AddChildInput, actorID uuid.UUID) (*model.EntityRelation, error)
	RemoveChild(ctx context.Context, parentID, relationID uuid.UUID, returnQuantity bool, actorID uuid.UUID) error
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.EntityRelation, error)
	UpdateRelation(ctx context.Context, parentID, relationID uuid.UUID, input *UpdateRelationInput) (*model.EntityRelation, error)
}

type entityService struct {
	db         *gorm.DB
	entities   repository.EntityRepository
	relations  repository.RelationRepository
	history    repository.HistoryRepository
	warehouses repository.WarehouseRepository
	types      EntityTypeService
	events     ws.Publisher
}

func NewEntityService(
	db *gorm.DB,
	entities repository.EntityRepository,
	relations repository.RelationRepository,
	history repository.HistoryRepository,
	warehouses repository.WarehouseRepository,
	types EntityTypeService,
	events ws.Publisher,
) EntityService {
	if events == nil {
		events = ws.Nop{}
	}
	return &entityService{
		db:         db,
		entities:   entities,
		relations:  relations,
		history:    history,
		warehouses: warehouses,
		types:      types,
		events:     events,
	}
}

// entityTx is the set of repositories bound to one transaction.
type entityTx struct {
	entities   repository.EntityRepository
	relations  repository.RelationRepository
	history    repository.HistoryRepository
	warehouses repository.WarehouseRepository
	types      EntityTypeService
}

func (s *entityService) transaction(ctx context.Context, op string, fn func(r *entityTx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&entityTx{
			entities:   s.entities.WithTx(tx),
			relations:  s.relations.WithTx(tx),
			history:    s.history.WithTx(tx),
			warehouses: s.warehouses.WithTx(tx),
			types:      s.types.WithTx(tx),
		})
	})
	return storage(err, op)
}

func (s *entityService) publish(eventType string, entityID uuid.UUID, actorID uuid.UUID, data interface{}) {
	ev := ws.Event{Type: eventType, EntityID: entityID.String(), Data: data}
	if actorID != uuid.Nil {
		ev.ActorID = actorID.String()
	}
	s.events.Publish(ev)
}

func (s *entityService) Create(ctx context.Context, input *CreateEntityInput, actorID uuid.UUID) (*model.Entity, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.WarehouseID != nil && input.ParentID != nil {
		return nil, errBothLocations()
	}
	if input.Price.Valid && input.Price.Decimal.IsNegative() {
		return nil, errNegativePrice()
	}

	quantity := 1
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	customFields := datatypes.JSONMap(input.CustomFields)
	if customFields == nil {
		customFields = datatypes.JSONMap{}
	}
	entity := &model.Entity{
		Barcode:       input.Barcode,
		OriginBarcode: input.OriginBarcode,
		Name:          input.Name,
		Description:   input.Description,
		EntityType:    input.EntityType,
		Quantity:      quantity,
		Price:         input.Price,
		WarehouseID:   input.WarehouseID,
		ParentID:      input.ParentID,
		CustomFields:  customFields,
		Status:        input.Status,
	}
	entity.CreatedBy = actorName(actorID)
	entity.UpdatedBy = entity.CreatedBy

	err := s.transaction(ctx, "create entity", func(r *entityTx) error {
		entityType, err := r.types.ValidateActive(ctx, input.EntityType)
		if err != nil {
			return err
		}
		if err := r.requireBarcodeFree(ctx, input.Barcode); err != nil {
			return err
		}
		if input.WarehouseID != nil {
			if err := r.requireWarehouse(ctx, *input.WarehouseID); err != nil {
				return err
			}
		}
		if input.ParentID != nil {
			parent, err := r.lockParent(ctx, *input.ParentID)
			if err != nil {
				return err
			}
			if err := r.checkContainment(ctx, parent, entityType.Code); err != nil {
				return err
			}
		}
		if entity.Status == nil && entityType.DefaultStatus != nil {
			status := *entityType.DefaultStatus
			entity.Status = &status
		}
		if err := r.types.ValidateFields(entityType, entity); err != nil {
			return err
		}
		if err := r.entities.Create(ctx, entity); err != nil {
			return err
		}
		return r.history.Append(ctx, historyEntry(entity.ID, model.OpCreate, nil, map[string]interface{}{
			"barcode":     entity.Barcode,
			"entity_type": entity.EntityType,
			"quantity":    entity.Quantity,
		}, actorID))
	})
	if err != nil {
		return nil, err
	}
	s.publish(ws.EventEntityCreated, entity.ID, actorID, map[string]interface{}{"barcode": entity.Barcode})
	return entity, nil
}

func (s *entityService) Get(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	entity, err := s.entities.FindDetailed(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeEntityNotFound, "entity", id)
	}
	return entity, nil
}

func (s *entityService) GetByBarcode(ctx context.Context, barcode string) (*model.Entity, error) {
	entity, err := s.entities.FindDetailedByBarcode(ctx, barcode)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeEntityNotFound, "entity", barcode)
	}
	return entity, nil
}

func (s *entityService) List(ctx context.Context, input ListEntitiesInput) ([]model.EntitySummary, error) {
	entities, err := s.entities.List(ctx, input.filter())
	if err != nil {
		return nil, apperror.Unexpected(err, "list entities")
	}
	return entities, nil
}

func (s *entityService) Update(ctx context.Context, id uuid.UUID, input *UpdateEntityInput, actorID uuid.UUID) (*model.Entity, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.Price.Set && input.Price.Value != nil && input.Price.Value.IsNegative() {
		return nil, errNegativePrice()
	}
	if input.WarehouseID.Value != nil && input.ParentID.Value != nil {
		return nil, errBothLocations()
	}
	newParent := input.ParentID.Value

	var updated *model.Entity
	var changed []string
	err := s.transaction(ctx, "update entity", func(r *entityTx) error {
		var locked map[uuid.UUID]*model.Entity
		var err error
		if input.ParentID.Set || input.WarehouseID.Set || input.EntityType != nil {
			var extra []uuid.UUID
			if newParent != nil {
				extra = append(extra, *newParent)
			}
			if input.EntityType != nil {
				if err := r.entities.LockTree(ctx); err != nil {
					return err
				}
				children, err := r.entities.ChildIDs(ctx, []uuid.UUID{id})
				if err != nil {
					return err
				}
				extra = append(extra, children...)
			}
			locked, err = r.lockStructure(ctx, id, extra...)
		} else {
			locked, err = r.lockSet(ctx, id)
		}
		if err != nil {
			return err
		}
		entity, ok := locked[id]
		if !ok {
			return errEntityNotFound(id)
		}

		next := *entity
		fields := map[string]interface{}{}

		if input.Barcode != nil && *input.Barcode != entity.Barcode {
			if err := r.requireBarcodeFree(ctx, *input.Barcode); err != nil {
				return err
			}
			fields["barcode"] = *input.Barcode
			next.Barcode = *input.Barcode
		}
		if input.OriginBarcode.Set {
			fields["origin_barcode"] = input.OriginBarcode.Value
			next.OriginBarcode = input.OriginBarcode.Value
		}
		if input.Name != nil {
			fields["name"] = *input.Name
			next.Name = *input.Name
		}
		if input.Description.Set {
			fields["description"] = input.Description.Value
			next.Description = input.Description.Value
		}
		if input.Quantity != nil {
			fields["quantity"] = *input.Quantity
			next.Quantity = *input.Quantity
		}
		if input.Price.Set {
			next.Price.Valid = input.Price.Value != nil
			if next.Price.Valid {
				next.Price.Decimal = *input.Price.Value
			}
			fields["price"] = next.Price
		}
		if input.Status.Set {
			fields["status"] = input.Status.Value
			next.Status = input.Status.Value
		}
		if input.CustomFields.Set {
			custom := datatypes.JSONMap{}
			if input.CustomFields.Value != nil {
				custom = datatypes.JSONMap(*input.CustomFields.Value)
			}
			fields["custom_fields"] = custom
			next.CustomFields = custom
		}

		typeChanged := input.EntityType != nil && *input.EntityType != entity.EntityType
		var entityType *model.EntityType
		if typeChanged {
			entityType, err = r.types.ValidateActive(ctx, *input.EntityType)
			if err != nil {
				return err
			}
			fields["entity_type"] = entityType.Code
			next.EntityType = entityType.Code
		} else if entityType, err = r.types.Find(ctx, entity.EntityType); err != nil {
			return err
		}

		var parent *model.Entity
		if input.ParentID.Set {
			if newParent != nil {
				if *newParent == id {
					return errSelfParent(id)
				}
				if parent, ok = locked[*newParent]; !ok {
					return errParentNotFound(*newParent)
				}
				if err := r.rejectCycle(ctx, id, *newParent); err != nil {
					return err
				}
				fields["parent_id"] = *newParent
				fields["warehouse_id"] = nil
				next.ParentID, next.WarehouseID = newParent, nil
			} else {
				fields["parent_id"] = nil
				next.ParentID = nil
			}
		}
		if input.WarehouseID.Set {
			if wh := input.WarehouseID.Value; wh != nil {
				if err := r.requireWarehouse(ctx, *wh); err != nil {
					return err
				}
				fields["warehouse_id"] = *wh
				fields["parent_id"] = nil
				next.WarehouseID, next.ParentID = wh, nil
			} else {
				fields["warehouse_id"] = nil
				next.WarehouseID = nil
			}
		}

		if next.ParentID != nil && (newParent != nil || typeChanged) {
			if parent == nil {
				if parent, err = r.entities.FindByID(ctx, *next.ParentID); err != nil {
					return notFoundOr(err, apperror.CodeParentNotFound, "parent entity", *next.ParentID)
				}
			}
			if err := r.checkContainment(ctx, parent, next.EntityType); err != nil {
				return err
			}
		}
		if typeChanged {
			if err := r.checkChildrenFit(ctx, id, entityType); err != nil {
				return err
			}
		}
		if typeChanged || input.Status.Set || touchesAny(fields, entityType.RequiredFields) {
			if err := r.types.ValidateFields(entityType, &next); err != nil {
				return err
			}
		}

		if len(fields) == 0 {
			updated = entity
			return nil
		}
		changed = fieldNames(fields)
		fields["updated_by"] = actorName(actorID)
		if err := r.entities.Updates(ctx, id, fields); err != nil {
			return err
		}
		if err := r.history.Append(ctx, historyEntry(id, model.OpUpdate, nil, map[string]interface{}{
			"updated_fields": changed,
		}, actorID)); err != nil {
			return err
		}
		updated, err = r.entities.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		s.publish(ws.EventEntityUpdated, id, actorID, map[string]interface{}{"updated_fields": changed})
	}
	return updated, nil
}

// Delete removes the entity, its whole subtree, every relation touching
// the subtree and their history.
func (s *entityService) Delete(ctx context.Context, id uuid.UUID, force bool, actorID uuid.UUID) error {
	var removed []uuid.UUID
	var barcode string
	err := s.transaction(ctx, "delete entity", func(r *entityTx) error {
		locked, subtree, err := r.lockSubtree(ctx, id)
		if err != nil {
			return err
		}
		entity := locked[id]
		treeChildren, err := r.entities.CountChildren(ctx, id)
		if err != nil {
			return err
		}
		relationChildren, err := r.relations.CountByParent(ctx, id)
		if err != nil {
			return err
		}
		if !force && treeChildren+relationChildren > 0 {
			return apperror.PreconditionFailed(apperror.CodeHasChildren,
				"Cannot delete entity with children. Use force=true to cascade delete.").
				WithParams(map[string]interface{}{
					"id":                id.String(),
					"tree_children":     treeChildren,
					"relation_children": relationChildren,
				})
		}

		if err := r.relations.DeleteTouching(ctx, subtree); err != nil {
			return err
		}
		if err := r.history.DeleteByEntities(ctx, subtree); err != nil {
			return err
		}
		if err := r.entities.DeleteByIDs(ctx, subtree); err != nil {
			return err
		}
		if entity.ParentID != nil {
			if err := r.history.Append(ctx, historyEntry(*entity.ParentID, model.OpDelete, &id, map[string]interface{}{
				"barcode": entity.Barcode,
				"name":    entity.Name,
				"removed": len(subtree),
			}, actorID)); err != nil {
				return err
			}
		}
		removed, barcode = subtree, entity.Barcode
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ws.EventEntityDeleted, id, actorID, map[string]interface{}{
		"barcode": barcode,
		"removed": idStrings(removed),
	})
	return nil
}

func (r *entityTx) lockEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	entity, err := r.entities.LockByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeEntityNotFound, "entity", id)
	}
	return entity, nil
}

func (r *entityTx) lockParent(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	parent, err := r.entities.LockByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeParentNotFound, "parent entity", id)
	}
	return parent, nil
}

// lockSet locks the given ids in ascending order and indexes the rows found.
func (r *entityTx) lockSet(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*model.Entity, error) {
	rows, err := r.entities.LockMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*model.Entity, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// lockStructure takes the tree lock, then locks id, its current parent and
// extra in one ascending pass. Parent links only change under the tree
// lock, so the parent read before locking is still the parent afterwards.
func (r *entityTx) lockStructure(ctx context.Context, id uuid.UUID, extra ...uuid.UUID) (map[uuid.UUID]*model.Entity, error) {
	if err := r.entities.LockTree(ctx); err != nil {
		return nil, err
	}
	parentID, err := r.entities.ParentOf(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errEntityNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	ids := append([]uuid.UUID{id}, extra...)
	if parentID != nil {
		ids = append(ids, *parentID)
	}
	locked, err := r.lockSet(ctx, ids...)
	if err != nil {
		return nil, err
	}
	if _, ok := locked[id]; !ok {
		return nil, errEntityNotFound(id)
	}
	return locked, nil
}

// lockSubtree takes the tree lock and locks root with every descendant. New
// children are only inserted under a locked parent, so the walk repeats
// until a pass finds no rows it has not locked yet. The returned ids are
// those whose locked parent chain reaches root, root first.
func (r *entityTx) lockSubtree(ctx context.Context, root uuid.UUID) (map[uuid.UUID]*model.Entity, []uuid.UUID, error) {
	if err := r.entities.LockTree(ctx); err != nil {
		return nil, nil, err
	}
	ids, err := r.subtree(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	for {
		locked, err := r.lockSet(ctx, ids...)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := locked[root]; !ok {
			return nil, nil, errEntityNotFound(root)
		}
		again, err := r.subtree(ctx, root)
		if err != nil {
			return nil, nil, err
		}
		if len(again) <= len(ids) {
			return locked, chainedTo(root, locked), nil
		}
		ids = again
	}
}

// chainedTo lists root and every row of locked whose parent chain leads to
// root, breadth first.
func chainedTo(root uuid.UUID, locked map[uuid.UUID]*model.Entity) []uuid.UUID {
	children := make(map[uuid.UUID][]uuid.UUID, len(locked))
	for id, e := range locked {
		if e.ParentID != nil && id != root {
			children[*e.ParentID] = append(children[*e.ParentID], id)
		}
	}
	out := []uuid.UUID{root}
	seen := map[uuid.UUID]bool{root: true}
	for i := 0; i < len(out); i++ {
		next := children[out[i]]
		sort.Slice(next, func(a, b int) bool { return next[a].String() < next[b].String() })
		for _, id := range next {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func (r *entityTx) requireBarcodeFree(ctx context.Context, barcode string) error {
	taken, err := r.entities.BarcodeTaken(ctx, barcode)
	if err != nil {
		return err
	}
	if taken {
		return apperror.Conflict(apperror.CodeDuplicateBarcode,
			fmt.Sprintf("Entity with barcode '%s' already exists", barcode)).
			WithParams(map[string]interface{}{"barcode": barcode})
	}
	return nil
}

func (r *entityTx) requireWarehouse(ctx context.Context, id uuid.UUID) error {
	ok, err := r.warehouses.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound(apperror.CodeWarehouseNotFound, "Warehouse not found").
			WithParams(map[string]interface{}{"id": id.String()})
	}
	return nil
}

func (r *entityTx) checkContainment(ctx context.Context, parent *model.Entity, childType string) error {
	parentType, err := r.types.Find(ctx, parent.EntityType)
	if err != nil {
		return err
	}
	return r.types.ValidateContainment(parentType, childType)
}

// checkChildrenFit verifies that every current tree child may stay under an
// entity of the given type.
func (r *entityTx) checkChildrenFit(ctx context.Context, id uuid.UUID, entityType *model.EntityType) error {
	childTypes, err := r.entities.ChildTypes(ctx, id)
	if err != nil {
		return err
	}
	for _, code := range childTypes {
		if !entityType.AllowsChild(code) {
			return apperror.Validation(apperror.CodeContainment,
				fmt.Sprintf("Type '%s' cannot contain existing children of type '%s'", entityType.Code, code)).
				WithParams(map[string]interface{}{"parent_type": entityType.Code, "child_type": code})
		}
	}
	return nil
}

// rejectCycle fails when newParentID lies inside the subtree rooted at id.
func (r *entityTx) rejectCycle(ctx context.Context, id, newParentID uuid.UUID) error {
	inside, err := r.isDescendant(ctx, newParentID, id)
	if err != nil {
		return err
	}
	if inside {
		return apperror.PreconditionFailed(apperror.CodeCycle,
			"Cannot move an entity inside its own subtree").
			WithParams(map[string]interface{}{"id": id.String(), "parent_id": newParentID.String()})
	}
	return nil
}

// isDescendant walks up from candidate and reports whether ancestor is on
// the path.
func (r *entityTx) isDescendant(ctx context.Context, candidate, ancestor uuid.UUID) (bool, error) {
	seen := map[uuid.UUID]bool{candidate: true}
	current := candidate
	for {
		parent, err := r.entities.ParentOf(ctx, current)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if parent == nil {
			return false, nil
		}
		if *parent == ancestor {
			return true, nil
		}
		if seen[*parent] {
			// corrupted chain; treat as a cycle so nothing attaches to it
			return true, nil
		}
		seen[*parent] = true
		current = *parent
	}
}

// subtree returns root followed by all tree descendants, breadth first.
func (r *entityTx) subtree(ctx context.Context, root uuid.UUID) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{root: true}
	all := []uuid.UUID{root}
	frontier := []uuid.UUID{root}
	for len(frontier) > 0 {
		children, err := r.entities.ChildIDs(ctx, frontier)
		if err != nil {
			return nil, err
		}
		var next []uuid.UUID
		for _, child := range children {
			if seen[child] {
				continue
			}
			seen[child] = true
			all = append(all, child)
			next = append(next, child)
		}
		frontier = next
	}
	return all, nil
}

func historyEntry(entityID uuid.UUID, op model.HistoryOperation, related *uuid.UUID, details map[string]interface{}, actorID uuid.UUID) *model.EntityHistory {
	entry := &model.EntityHistory{
		EntityID:        entityID,
		Operation:       op,
		RelatedEntityID: related,
		Details:         datatypes.JSONMap(details),
	}
	if actorID != uuid.Nil {
		actor := actorID
		entry.UserID = &actor
	}
	return entry
}

func actorName(actorID uuid.UUID) string {
	if actorID == uuid.Nil {
		return "system"
	}
	return actorID.String()
}

// nullableID turns a nil pointer into an untyped nil for map updates.
func nullableID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func fieldNames(fields map[string]interface{}) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func touchesAny(fields map[string]interface{}, names []string) bool {
	for _, name := range names {
		if _, ok := fields[name]; ok {
			return true
		}
	}
	return false
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func errEntityNotFound(id uuid.UUID) error {
	return apperror.NotFound(apperror.CodeEntityNotFound, "Entity not found").
		WithParams(map[string]interface{}{"id": id.String()})
}

func errParentNotFound(id uuid.UUID) error {
	return apperror.NotFound(apperror.CodeParentNotFound, "Parent entity not found").
		WithParams(map[string]interface{}{"id": id.String()})
}

func errSelfParent(id uuid.UUID) error {
	return apperror.PreconditionFailed(apperror.CodeSelfParent, "Entity cannot be its own parent").
		WithParams(map[string]interface{}{"id": id.String()})
}

func errBothLocations() error {
	return apperror.Validation(apperror.CodeInvalidInput, "Only one of warehouse_id and parent_id may be set").
		WithParams(map[string]interface{}{"field": "parent_id"})
}

func errNegativePrice() error {
	return apperror.Validation(apperror.CodeInvalidInput, "Price cannot be negative").
		WithParams(map[string]interface{}{"field": "price"})
}
