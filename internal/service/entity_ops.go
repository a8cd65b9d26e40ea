package service

import (
	"context"
	"fmt"
	"math"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/validator"

	"github.com/google/uuid"
)

type SplitResult struct {
	Source  *model.Entity `json:"source"`
	Created *model.Entity `json:"created"`
}

// SkippedSource is a merge source that was left untouched.
type SkippedSource struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Reason string    `json:"reason"`
}

type MergeResult struct {
	Entity  *model.Entity   `json:"entity"`
	Merged  []uuid.UUID     `json:"merged"`
	Skipped []SkippedSource `json:"skipped"`
}

func (s *entityService) Move(ctx context.Context, id uuid.UUID, input *MoveInput, actorID uuid.UUID) (*model.Entity, error) {
	if (input.TargetWarehouseID == nil) == (input.TargetParentID == nil) {
		return nil, apperror.Validation(apperror.CodeInvalidInput,
			"Exactly one of target_warehouse_id and target_parent_id is required").
			WithParams(map[string]interface{}{"field": "target_parent_id"})
	}
	if input.Quantity != nil && *input.Quantity <= 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "Quantity must be positive").
			WithParams(map[string]interface{}{"field": "quantity", "value": *input.Quantity})
	}

	var result *model.Entity
	split := false
	err := s.transaction(ctx, "move entity", func(r *entityTx) error {
		var extra []uuid.UUID
		if input.TargetParentID != nil {
			extra = append(extra, *input.TargetParentID)
		}
		locked, err := r.lockStructure(ctx, id, extra...)
		if err != nil {
			return err
		}
		entity := locked[id]
		split = input.Quantity != nil && *input.Quantity < entity.Quantity

		if input.TargetWarehouseID != nil {
			if err := r.requireWarehouse(ctx, *input.TargetWarehouseID); err != nil {
				return err
			}
		}
		if target := input.TargetParentID; target != nil {
			parent, ok := locked[*target]
			if !ok {
				return errParentNotFound(*target)
			}
			// a split-off copy is a fresh entity and cannot close a cycle
			if !split {
				if *target == id {
					return errSelfParent(id)
				}
				if err := r.rejectCycle(ctx, id, *target); err != nil {
					return err
				}
			}
			if err := r.checkContainment(ctx, parent, entity.EntityType); err != nil {
				return err
			}
		}

		if split {
			result, err = r.splitOff(ctx, entity, *input.Quantity, "", input.TargetWarehouseID, input.TargetParentID, actorID)
			return err
		}

		from := entity.Location()
		entity.WarehouseID, entity.ParentID = input.TargetWarehouseID, input.TargetParentID
		if err := r.entities.Updates(ctx, id, map[string]interface{}{
			"warehouse_id": nullableID(entity.WarehouseID),
			"parent_id":    nullableID(entity.ParentID),
			"updated_by":   actorName(actorID),
		}); err != nil {
			return err
		}
		if err := r.history.Append(ctx, historyEntry(id, model.OpMove, input.TargetParentID, map[string]interface{}{
			"from": from,
			"to":   entity.Location(),
		}, actorID)); err != nil {
			return err
		}
		result, err = r.entities.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if split {
		s.publish(ws.EventEntitySplit, id, actorID, map[string]interface{}{
			"new_entity_id": result.ID.String(),
			"quantity":      result.Quantity,
		})
	} else {
		s.publish(ws.EventEntityMoved, id, actorID, result.Location())
	}
	return result, nil
}

// splitOff carves quantity units of source into a new entity at the given
// location. An empty barcode derives one from the source and the new id.
func (r *entityTx) splitOff(ctx context.Context, source *model.Entity, quantity int, barcode string, warehouseID, parentID *uuid.UUID, actorID uuid.UUID) (*model.Entity, error) {
	newID := uuid.New()
	if barcode == "" {
		barcode = fmt.Sprintf("%s-split-%s", source.Barcode, newID)
	}
	created := source.CloneFor(barcode, quantity, warehouseID, parentID)
	created.ID = newID
	created.CreatedBy = actorName(actorID)
	created.UpdatedBy = created.CreatedBy
	if err := r.entities.Create(ctx, created); err != nil {
		return nil, err
	}

	remaining := source.Quantity - quantity
	if err := r.entities.Updates(ctx, source.ID, map[string]interface{}{
		"quantity":   remaining,
		"updated_by": actorName(actorID),
	}); err != nil {
		return nil, err
	}
	source.Quantity = remaining

	sourceID := source.ID
	return created, r.history.Append(ctx,
		historyEntry(source.ID, model.OpSplit, &newID, map[string]interface{}{
			"quantity":    quantity,
			"remaining":   remaining,
			"new_barcode": barcode,
		}, actorID),
		historyEntry(newID, model.OpCreate, &sourceID, map[string]interface{}{
			"split_from":     sourceID.String(),
			"source_barcode": source.Barcode,
			"quantity":       quantity,
		}, actorID),
	)
}

func (s *entityService) Convert(ctx context.Context, id uuid.UUID, input *ConvertInput, actorID uuid.UUID) (*model.Entity, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	var converted *model.Entity
	var fromType string
	err := s.transaction(ctx, "convert entity", func(r *entityTx) error {
		if err := r.entities.LockTree(ctx); err != nil {
			return err
		}
		children, err := r.entities.ChildIDs(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		locked, err := r.lockStructure(ctx, id, children...)
		if err != nil {
			return err
		}
		entity := locked[id]
		newType, err := r.types.ValidateActive(ctx, input.NewType)
		if err != nil {
			return err
		}
		if entity.ParentID != nil {
			parent, ok := locked[*entity.ParentID]
			if !ok {
				return errParentNotFound(*entity.ParentID)
			}
			if err := r.checkContainment(ctx, parent, newType.Code); err != nil {
				return err
			}
		}
		if err := r.checkChildrenFit(ctx, id, newType); err != nil {
			return err
		}

		fromType = entity.EntityType
		fields := map[string]interface{}{
			"entity_type": newType.Code,
			"updated_by":  actorName(actorID),
		}
		details := map[string]interface{}{"from_type": fromType, "to_type": newType.Code}

		status := input.NewStatus
		if status == nil {
			status = newType.DefaultStatus
		}
		if status != nil {
			if !newType.AllowsStatus(*status) {
				return apperror.Validation(apperror.CodeInvalidStatus,
					fmt.Sprintf("Status '%s' is not available for type '%s'", *status, newType.Code)).
					WithParams(map[string]interface{}{"status": *status, "allowed": []string(newType.AvailableStatuses)})
			}
			fields["status"] = *status
			details["from_status"] = entity.Status
			details["to_status"] = *status
		}

		if err := r.entities.Updates(ctx, id, fields); err != nil {
			return err
		}
		if err := r.history.Append(ctx, historyEntry(id, model.OpConvert, nil, details, actorID)); err != nil {
			return err
		}
		converted, err = r.entities.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ws.EventEntityConverted, id, actorID, map[string]interface{}{
		"from_type": fromType,
		"to_type":   converted.EntityType,
	})
	return converted, nil
}

func (s *entityService) Split(ctx context.Context, id uuid.UUID, input *SplitInput, actorID uuid.UUID) (*SplitResult, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.TargetWarehouseID != nil && input.TargetParentID != nil {
		return nil, errBothLocations()
	}

	var result *SplitResult
	err := s.transaction(ctx, "split entity", func(r *entityTx) error {
		ids := []uuid.UUID{id}
		if input.TargetParentID != nil {
			ids = append(ids, *input.TargetParentID)
		}
		locked, err := r.lockSet(ctx, ids...)
		if err != nil {
			return err
		}
		entity, ok := locked[id]
		if !ok {
			return errEntityNotFound(id)
		}
		if input.Quantity >= entity.Quantity {
			return apperror.PreconditionFailed(apperror.CodeSplitQuantity,
				"Split quantity must be less than current quantity").
				WithParams(map[string]interface{}{"quantity": input.Quantity, "current": entity.Quantity})
		}
		if err := r.requireBarcodeFree(ctx, input.NewBarcode); err != nil {
			return err
		}

		warehouseID, parentID := entity.WarehouseID, entity.ParentID
		switch {
		case input.TargetWarehouseID != nil:
			if err := r.requireWarehouse(ctx, *input.TargetWarehouseID); err != nil {
				return err
			}
			warehouseID, parentID = input.TargetWarehouseID, nil
		case input.TargetParentID != nil:
			parent, ok := locked[*input.TargetParentID]
			if !ok {
				return errParentNotFound(*input.TargetParentID)
			}
			if err := r.checkContainment(ctx, parent, entity.EntityType); err != nil {
				return err
			}
			warehouseID, parentID = nil, input.TargetParentID
		}

		created, err := r.splitOff(ctx, entity, input.Quantity, input.NewBarcode, warehouseID, parentID, actorID)
		if err != nil {
			return err
		}
		result = &SplitResult{Source: entity, Created: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ws.EventEntitySplit, id, actorID, map[string]interface{}{
		"new_entity_id": result.Created.ID.String(),
		"quantity":      input.Quantity,
	})
	return result, nil
}

// Merge folds each source into target. Sources that fail a domain check are
// reported in Skipped and the rest still merge; storage errors roll back
// the whole call.
func (s *entityService) Merge(ctx context.Context, targetID uuid.UUID, sourceIDs []uuid.UUID, actorID uuid.UUID) (*MergeResult, error) {
	if len(sourceIDs) == 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "At least one source is required").
			WithParams(map[string]interface{}{"field": "source_ids"})
	}

	sources := make([]uuid.UUID, 0, len(sourceIDs))
	seen := map[uuid.UUID]bool{targetID: true}
	for _, sourceID := range sourceIDs {
		if !seen[sourceID] {
			seen[sourceID] = true
			sources = append(sources, sourceID)
		}
	}

	result := &MergeResult{Merged: []uuid.UUID{}, Skipped: []SkippedSource{}}
	err := s.transaction(ctx, "merge entities", func(r *entityTx) error {
		if err := r.entities.LockTree(ctx); err != nil {
			return err
		}
		// children of the sources are reparented onto the target
		moved, err := r.entities.ChildIDs(ctx, sources)
		if err != nil {
			return err
		}
		ids := append([]uuid.UUID{targetID}, sources...)
		locked, err := r.lockSet(ctx, append(ids, moved...)...)
		if err != nil {
			return err
		}
		target, ok := locked[targetID]
		if !ok {
			return errEntityNotFound(targetID)
		}

		total := target.Quantity
		for _, sourceID := range sources {
			source, ok := locked[sourceID]
			if !ok {
				result.skip(sourceID, errEntityNotFound(sourceID))
				continue
			}
			next, err := addQuantity("quantity", total, source.Quantity)
			if err == nil {
				err = r.mergeOne(ctx, target, source, actorID)
			}
			if err != nil {
				if apperror.IsDomain(err) {
					result.skip(sourceID, err)
					continue
				}
				return err
			}
			total = next
			result.Merged = append(result.Merged, sourceID)
		}

		if len(result.Merged) > 0 {
			if err := r.entities.Updates(ctx, targetID, map[string]interface{}{
				"quantity":   total,
				"updated_by": actorName(actorID),
			}); err != nil {
				return err
			}
		}
		result.Entity, err = r.entities.FindByID(ctx, targetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(result.Merged) > 0 {
		s.publish(ws.EventEntityMerged, targetID, actorID, map[string]interface{}{
			"merged":   idStrings(result.Merged),
			"quantity": result.Entity.Quantity,
		})
	}
	return result, nil
}

func (r *entityTx) mergeOne(ctx context.Context, target, source *model.Entity, actorID uuid.UUID) error {
	if source.EntityType != target.EntityType {
		return apperror.PreconditionFailed(apperror.CodeTypeMismatch,
			fmt.Sprintf("Cannot merge %s into %s", source.EntityType, target.EntityType)).
			WithParams(map[string]interface{}{"source_type": source.EntityType, "target_type": target.EntityType})
	}
	inside, err := r.isDescendant(ctx, target.ID, source.ID)
	if err != nil {
		return err
	}
	if inside {
		return apperror.PreconditionFailed(apperror.CodeCycle, "Cannot merge an entity into its own descendant").
			WithParams(map[string]interface{}{"source": source.ID.String(), "target": target.ID.String()})
	}

	reparented, err := r.entities.Reparent(ctx, source.ID, target.ID, actorName(actorID))
	if err != nil {
		return err
	}
	gone := []uuid.UUID{source.ID}
	if err := r.relations.DeleteTouching(ctx, gone); err != nil {
		return err
	}
	if err := r.history.DeleteByEntities(ctx, gone); err != nil {
		return err
	}
	if err := r.entities.DeleteByIDs(ctx, gone); err != nil {
		return err
	}
	sourceID := source.ID
	return r.history.Append(ctx, historyEntry(target.ID, model.OpMerge, &sourceID, map[string]interface{}{
		"source_barcode":      source.Barcode,
		"merged_quantity":     source.Quantity,
		"reparented_children": reparented,
	}, actorID))
}

func (m *MergeResult) skip(id uuid.UUID, err error) {
	skipped := SkippedSource{ID: id, Reason: err.Error()}
	if appErr, ok := apperror.As(err); ok {
		skipped.Code = appErr.Code
		skipped.Reason = appErr.Message
	}
	m.Skipped = append(m.Skipped, skipped)
}

func (s *entityService) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int, actorID uuid.UUID) (*model.Entity, error) {
	var adjusted *model.Entity
	var from int
	err := s.transaction(ctx, "adjust quantity", func(r *entityTx) error {
		entity, err := r.lockEntity(ctx, id)
		if err != nil {
			return err
		}
		from = entity.Quantity
		to, err := addQuantity("adjustment", from, delta)
		if err != nil {
			return err
		}
		if to < 0 {
			return apperror.PreconditionFailed(apperror.CodeNegativeResult, "Resulting quantity cannot be negative").
				WithParams(map[string]interface{}{"current": from, "delta": delta})
		}
		if err := r.entities.Updates(ctx, id, map[string]interface{}{
			"quantity":   to,
			"updated_by": actorName(actorID),
		}); err != nil {
			return err
		}
		if err := r.history.Append(ctx, historyEntry(id, model.OpQuantityChange, nil, map[string]interface{}{
			"from":  from,
			"to":    to,
			"delta": delta,
		}, actorID)); err != nil {
			return err
		}
		entity.Quantity = to
		adjusted = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ws.EventQuantityChanged, id, actorID, map[string]interface{}{
		"from":  from,
		"to":    adjusted.Quantity,
		"delta": delta,
	})
	return adjusted, nil
}

// addQuantity sums two quantities and rejects results that do not fit an int.
func addQuantity(field string, current, delta int) (int, error) {
	if (delta > 0 && current > math.MaxInt-delta) || (delta < 0 && current < math.MinInt-delta) {
		return 0, apperror.Validation(apperror.CodeInvalidInput, "Resulting quantity is out of range").
			WithParams(map[string]interface{}{"field": field, "current": current, "delta": delta})
	}
	return current + delta, nil
}
