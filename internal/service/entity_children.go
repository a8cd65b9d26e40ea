package service

import (
	"context"
	"errors"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddChild counts quantity units of the child inside parent without
// reparenting it. Repeated calls for the same pair accumulate.
func (s *entityService) AddChild(ctx context.Context, parentID uuid.UUID, input *AddChildInput, actorID uuid.UUID) (*model.EntityRelation, error) {
	if input.ChildBarcode == nil && input.ChildID == nil {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "Either child_barcode or child_id is required").
			WithParams(map[string]interface{}{"field": "child_barcode"})
	}
	quantity := 1
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if quantity < 1 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "Quantity must be at least 1").
			WithParams(map[string]interface{}{"field": "quantity", "value": quantity})
	}
	removeFromSource := true
	if input.RemoveFromSource != nil {
		removeFromSource = *input.RemoveFromSource
	}

	var relation *model.EntityRelation
	var childID uuid.UUID
	err := s.transaction(ctx, "add child", func(r *entityTx) error {
		child, err := r.resolveChild(ctx, input)
		if err != nil {
			return err
		}
		childID = child.ID
		if childID == parentID {
			return errSelfParent(parentID)
		}

		locked, err := r.lockSet(ctx, parentID, childID)
		if err != nil {
			return err
		}
		parent, ok := locked[parentID]
		if !ok {
			return errEntityNotFound(parentID)
		}
		if child, ok = locked[childID]; !ok {
			return errEntityNotFound(childID)
		}
		if err := r.checkContainment(ctx, parent, child.EntityType); err != nil {
			return err
		}
		if removeFromSource && quantity > child.Quantity {
			return apperror.PreconditionFailed(apperror.CodeInsufficientQuantity,
				"Not enough quantity in source").
				WithParams(map[string]interface{}{"available": child.Quantity, "requested": quantity})
		}

		existing, err := r.relations.FindByPair(ctx, parentID, childID)
		switch {
		case err == nil:
			if existing.Quantity, err = addQuantity("quantity", existing.Quantity, quantity); err != nil {
				return err
			}
			if input.PriceSnapshot.Valid {
				existing.PriceSnapshot = input.PriceSnapshot
			}
			if input.Notes != nil {
				existing.Notes = input.Notes
			}
			if err := r.relations.Save(ctx, existing); err != nil {
				return err
			}
			relation = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			relation = &model.EntityRelation{
				ParentID:      parentID,
				ChildID:       childID,
				Quantity:      quantity,
				PriceSnapshot: input.PriceSnapshot,
				Notes:         input.Notes,
			}
			if !relation.PriceSnapshot.Valid {
				relation.PriceSnapshot = child.Price
			}
			if err := r.relations.Create(ctx, relation); err != nil {
				return err
			}
		default:
			return err
		}

		if removeFromSource {
			remaining := child.Quantity - quantity
			if remaining < 0 {
				remaining = 0
			}
			if err := r.entities.Updates(ctx, childID, map[string]interface{}{
				"quantity":   remaining,
				"updated_by": actorName(actorID),
			}); err != nil {
				return err
			}
			child.Quantity = remaining
		}
		relation.Child = child

		return r.history.Append(ctx, historyEntry(parentID, model.OpAddChild, &childID, map[string]interface{}{
			"quantity":            quantity,
			"relation_id":         relation.ID.String(),
			"child_barcode":       child.Barcode,
			"removed_from_source": removeFromSource,
		}, actorID))
	})
	if err != nil {
		return nil, err
	}
	s.publish(ws.EventChildAdded, parentID, actorID, map[string]interface{}{
		"child_id": childID.String(),
		"quantity": quantity,
	})
	return relation, nil
}

// resolveChild prefers the barcode when both references are given.
func (r *entityTx) resolveChild(ctx context.Context, input *AddChildInput) (*model.Entity, error) {
	if input.ChildBarcode != nil && *input.ChildBarcode != "" {
		child, err := r.entities.FindByBarcode(ctx, *input.ChildBarcode)
		if err == nil {
			return child, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if input.ChildID == nil {
			return nil, apperror.NotFound(apperror.CodeEntityNotFound, "Child entity not found").
				WithParams(map[string]interface{}{"barcode": *input.ChildBarcode})
		}
	}
	if input.ChildID == nil {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "Either child_barcode or child_id is required").
			WithParams(map[string]interface{}{"field": "child_barcode"})
	}
	child, err := r.entities.FindByID(ctx, *input.ChildID)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeEntityNotFound, "child entity", *input.ChildID)
	}
	return child, nil
}

func (s *entityService) RemoveChild(ctx context.Context, parentID, relationID uuid.UUID, returnQuantity bool, actorID uuid.UUID) error {
	var childID uuid.UUID
	err := s.transaction(ctx, "remove child", func(r *entityTx) error {
		relation, err := r.relations.FindForParent(ctx, parentID, relationID)
		if err != nil {
			return notFoundOr(err, apperror.CodeRelationNotFound, "relation", relationID)
		}
		childID = relation.ChildID

		locked, err := r.lockSet(ctx, parentID, childID)
		if err != nil {
			return err
		}
		if _, ok := locked[parentID]; !ok {
			return errEntityNotFound(parentID)
		}
		// relations of a parent only change under its row lock
		if relation, err = r.relations.FindForParent(ctx, parentID, relationID); err != nil {
			return notFoundOr(err, apperror.CodeRelationNotFound, "relation", relationID)
		}

		if returnQuantity {
			child, ok := locked[childID]
			if !ok {
				return errEntityNotFound(childID)
			}
			returned, err := addQuantity("quantity", child.Quantity, relation.Quantity)
			if err != nil {
				return err
			}
			if err := r.entities.Updates(ctx, childID, map[string]interface{}{
				"quantity":   returned,
				"updated_by": actorName(actorID),
			}); err != nil {
				return err
			}
		}
		if err := r.history.Append(ctx, historyEntry(parentID, model.OpRemoveChild, &childID, map[string]interface{}{
			"quantity":          relation.Quantity,
			"relation_id":       relationID.String(),
			"returned_quantity": returnQuantity,
		}, actorID)); err != nil {
			return err
		}
		return r.relations.Delete(ctx, relationID)
	})
	if err != nil {
		return err
	}
	s.publish(ws.EventChildRemoved, parentID, actorID, map[string]interface{}{
		"child_id":    childID.String(),
		"relation_id": relationID.String(),
	})
	return nil
}

func (s *entityService) ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.EntityRelation, error) {
	if _, err := s.entities.FindByID(ctx, parentID); err != nil {
		return nil, notFoundOr(err, apperror.CodeEntityNotFound, "entity", parentID)
	}
	relations, err := s.relations.ListByParent(ctx, parentID)
	if err != nil {
		return nil, apperror.Unexpected(err, "list child relations")
	}
	return relations, nil
}

func (s *entityService) UpdateRelation(ctx context.Context, parentID, relationID uuid.UUID, input *UpdateRelationInput) (*model.EntityRelation, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.PriceSnapshot.Value != nil && input.PriceSnapshot.Value.IsNegative() {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "Price cannot be negative").
			WithParams(map[string]interface{}{"field": "price_snapshot"})
	}

	var relation *model.EntityRelation
	err := s.transaction(ctx, "update relation", func(r *entityTx) error {
		var err error
		relation, err = r.relations.FindForParent(ctx, parentID, relationID)
		if err != nil {
			return notFoundOr(err, apperror.CodeRelationNotFound, "relation", relationID)
		}
		if input.Quantity != nil {
			relation.Quantity = *input.Quantity
		}
		if input.PriceSnapshot.Set {
			relation.PriceSnapshot.Valid = input.PriceSnapshot.Value != nil
			if relation.PriceSnapshot.Valid {
				relation.PriceSnapshot.Decimal = *input.PriceSnapshot.Value
			}
		}
		if input.Notes.Set {
			relation.Notes = input.Notes.Value
		}
		if err := r.relations.Save(ctx, relation); err != nil {
			return err
		}
		relation.Child, err = r.entities.FindByID(ctx, relation.ChildID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return relation, nil
}
