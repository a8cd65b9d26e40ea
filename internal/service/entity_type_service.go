package service

import (
	"context"
	"errors"
	"fmt"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/database"
	"go-inventory-tree/pkg/logger"
	"go-inventory-tree/pkg/validator"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateEntityTypeInput struct {
	Code               string   `json:"code" validate:"required,max=50,type_code"`
	Name               string   `json:"name" validate:"required,max=100"`
	Description        *string  `json:"description"`
	Icon               string   `json:"icon" validate:"max=16"`
	Color              string   `json:"color" validate:"max=20"`
	CanContainChildren bool     `json:"can_contain_children"`
	CanBeChild         *bool    `json:"can_be_child"`
	AllowedParentTypes []string `json:"allowed_parent_types"`
	AllowedChildTypes  []string `json:"allowed_child_types"`
	VisibleFields      []string `json:"visible_fields"`
	RequiredFields     []string `json:"required_fields"`
	AvailableStatuses  []string `json:"available_statuses"`
	DefaultStatus      *string  `json:"default_status" validate:"omitempty,max=50"`
	SortOrder          int      `json:"sort_order"`
}

type UpdateEntityTypeInput struct {
	Name               *string          `json:"name" validate:"omitempty,min=1,max=100"`
	Description        Optional[string] `json:"description"`
	Icon               *string          `json:"icon" validate:"omitempty,max=16"`
	Color              *string          `json:"color" validate:"omitempty,max=20"`
	CanContainChildren *bool            `json:"can_contain_children"`
	CanBeChild         *bool            `json:"can_be_child"`
	AllowedParentTypes *[]string        `json:"allowed_parent_types"`
	AllowedChildTypes  *[]string        `json:"allowed_child_types"`
	VisibleFields      *[]string        `json:"visible_fields"`
	RequiredFields     *[]string        `json:"required_fields"`
	AvailableStatuses  *[]string        `json:"available_statuses"`
	DefaultStatus      Optional[string] `json:"default_status"`
	SortOrder          *int             `json:"sort_order"`
}

// EntityTypeService is the registry of entity types and the containment and
// field rules attached to them.
type EntityTypeService interface {
	WithTx(tx *gorm.DB) EntityTypeService

	EnsureDefaults(ctx context.Context) (int64, error)
	ValidateActive(ctx context.Context, code string) (*model.EntityType, error)
	ValidateContainment(parentType *model.EntityType, childCode string) error
	ValidateFields(entityType *model.EntityType, entity *model.Entity) error
	Find(ctx context.Context, code string) (*model.EntityType, error)

	List(ctx context.Context, includeInactive bool) ([]model.EntityType, error)
	Get(ctx context.Context, code string) (*model.EntityType, error)
	Create(ctx context.Context, input *CreateEntityTypeInput) (*model.EntityType, error)
	Update(ctx context.Context, code string, input *UpdateEntityTypeInput) (*model.EntityType, error)
	Activate(ctx context.Context, code string) (*model.EntityType, error)
	Deactivate(ctx context.Context, code string) (*model.EntityType, error)
	Delete(ctx context.Context, code string) error
}

type entityTypeService struct {
	repo     repository.EntityTypeRepository
	entities repository.EntityRepository
	events   ws.Publisher
}

func NewEntityTypeService(repo repository.EntityTypeRepository, entities repository.EntityRepository, events ws.Publisher) EntityTypeService {
	if events == nil {
		events = ws.Nop{}
	}
	return &entityTypeService{repo: repo, entities: entities, events: events}
}

func (s *entityTypeService) WithTx(tx *gorm.DB) EntityTypeService {
	return &entityTypeService{repo: s.repo.WithTx(tx), entities: s.entities.WithTx(tx), events: s.events}
}

func (s *entityTypeService) EnsureDefaults(ctx context.Context) (int64, error) {
	inserted, err := s.repo.InsertMissing(ctx, model.DefaultEntityTypes())
	if err != nil {
		return 0, apperror.Unexpected(err, "seed entity types")
	}
	if inserted > 0 {
		logger.Info("seeded builtin entity types", zap.Int64("inserted", inserted))
	}
	return inserted, nil
}

func (s *entityTypeService) Find(ctx context.Context, code string) (*model.EntityType, error) {
	entityType, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeEntityTypeNotFound, "entity type", code)
	}
	return entityType, nil
}

func (s *entityTypeService) ValidateActive(ctx context.Context, code string) (*model.EntityType, error) {
	entityType, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !entityType.IsActive) {
		return nil, apperror.Validation(apperror.CodeInvalidEntityType,
			fmt.Sprintf("Invalid or inactive entity type: %s", code)).
			WithParams(map[string]interface{}{"entity_type": code})
	}
	if err != nil {
		return nil, apperror.Unexpected(err, "load entity type")
	}
	return entityType, nil
}

func (s *entityTypeService) ValidateContainment(parentType *model.EntityType, childCode string) error {
	if parentType.AllowsChild(childCode) {
		return nil
	}
	msg := fmt.Sprintf("Entity type '%s' cannot contain '%s'", parentType.Code, childCode)
	if !parentType.CanContainChildren {
		msg = fmt.Sprintf("Entity type '%s' cannot contain children", parentType.Code)
	}
	return apperror.Validation(apperror.CodeContainment, msg).
		WithParams(map[string]interface{}{"parent_type": parentType.Code, "child_type": childCode})
}

// ValidateFields checks required_fields and the status list against the
// entity's current values.
func (s *entityTypeService) ValidateFields(entityType *model.EntityType, entity *model.Entity) error {
	for _, field := range entityType.RequiredFields {
		if !fieldPresent(entity, field) {
			return apperror.Validation(apperror.CodeMissingField,
				fmt.Sprintf("Field '%s' is required for type '%s'", field, entityType.Code)).
				WithParams(map[string]interface{}{"field": field, "entity_type": entityType.Code})
		}
	}
	if entity.Status != nil && !entityType.AllowsStatus(*entity.Status) {
		return apperror.Validation(apperror.CodeInvalidStatus,
			fmt.Sprintf("Status '%s' is not available for type '%s'", *entity.Status, entityType.Code)).
			WithParams(map[string]interface{}{"status": *entity.Status, "allowed": []string(entityType.AvailableStatuses)})
	}
	return nil
}

func fieldPresent(e *model.Entity, field string) bool {
	switch field {
	case "barcode":
		return e.Barcode != ""
	case "name":
		return e.Name != ""
	case "origin_barcode":
		return e.OriginBarcode != nil && *e.OriginBarcode != ""
	case "description":
		return e.Description != nil && *e.Description != ""
	case "price":
		return e.Price.Valid
	case "status":
		return e.Status != nil && *e.Status != ""
	case "quantity":
		return true
	}
	// anything else is looked up in custom_fields
	v, ok := e.CustomFields[field]
	return ok && v != nil && v != ""
}

func (s *entityTypeService) List(ctx context.Context, includeInactive bool) ([]model.EntityType, error) {
	types, err := s.repo.FindAll(ctx, includeInactive)
	if err != nil {
		return nil, apperror.Unexpected(err, "list entity types")
	}
	return types, nil
}

func (s *entityTypeService) Get(ctx context.Context, code string) (*model.EntityType, error) {
	return s.Find(ctx, code)
}

func (s *entityTypeService) Create(ctx context.Context, input *CreateEntityTypeInput) (*model.EntityType, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByCode(ctx, input.Code); err == nil {
		return nil, duplicateType(input.Code)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Unexpected(err, "load entity type")
	}

	canBeChild := true
	if input.CanBeChild != nil {
		canBeChild = *input.CanBeChild
	}
	entityType := &model.EntityType{
		Code:               input.Code,
		Name:               input.Name,
		Description:        input.Description,
		Icon:               input.Icon,
		Color:              input.Color,
		CanContainChildren: input.CanContainChildren,
		CanBeChild:         canBeChild,
		AllowedParentTypes: jsonList(input.AllowedParentTypes),
		AllowedChildTypes:  jsonList(input.AllowedChildTypes),
		VisibleFields:      jsonList(input.VisibleFields),
		RequiredFields:     jsonList(input.RequiredFields),
		AvailableStatuses:  jsonList(input.AvailableStatuses),
		DefaultStatus:      input.DefaultStatus,
		SortOrder:          input.SortOrder,
		IsActive:           true,
	}
	if err := checkDefaultStatus(entityType); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, entityType); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, duplicateType(input.Code)
		}
		return nil, apperror.Unexpected(err, "create entity type")
	}
	s.changed(entityType, "created")
	return entityType, nil
}

func (s *entityTypeService) Update(ctx context.Context, code string, input *UpdateEntityTypeInput) (*model.EntityType, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	entityType, err := s.Find(ctx, code)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		entityType.Name = *input.Name
	}
	if input.Description.Set {
		entityType.Description = input.Description.Value
	}
	if input.Icon != nil {
		entityType.Icon = *input.Icon
	}
	if input.Color != nil {
		entityType.Color = *input.Color
	}
	if input.CanContainChildren != nil {
		entityType.CanContainChildren = *input.CanContainChildren
	}
	if input.CanBeChild != nil {
		entityType.CanBeChild = *input.CanBeChild
	}
	if input.AllowedParentTypes != nil {
		entityType.AllowedParentTypes = jsonList(*input.AllowedParentTypes)
	}
	if input.AllowedChildTypes != nil {
		entityType.AllowedChildTypes = jsonList(*input.AllowedChildTypes)
	}
	if input.VisibleFields != nil {
		entityType.VisibleFields = jsonList(*input.VisibleFields)
	}
	if input.RequiredFields != nil {
		entityType.RequiredFields = jsonList(*input.RequiredFields)
	}
	if input.AvailableStatuses != nil {
		entityType.AvailableStatuses = jsonList(*input.AvailableStatuses)
	}
	if input.DefaultStatus.Set {
		entityType.DefaultStatus = input.DefaultStatus.Value
	}
	if input.SortOrder != nil {
		entityType.SortOrder = *input.SortOrder
	}
	if err := checkDefaultStatus(entityType); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, entityType); err != nil {
		return nil, apperror.Unexpected(err, "update entity type")
	}
	s.changed(entityType, "updated")
	return entityType, nil
}

func (s *entityTypeService) Activate(ctx context.Context, code string) (*model.EntityType, error) {
	return s.setActive(ctx, code, true)
}

// Deactivate hides the type from new entities. Existing entities keep it.
func (s *entityTypeService) Deactivate(ctx context.Context, code string) (*model.EntityType, error) {
	return s.setActive(ctx, code, false)
}

func (s *entityTypeService) setActive(ctx context.Context, code string, active bool) (*model.EntityType, error) {
	entityType, err := s.Find(ctx, code)
	if err != nil {
		return nil, err
	}
	if entityType.IsActive == active {
		return entityType, nil
	}
	entityType.IsActive = active
	if err := s.repo.Save(ctx, entityType); err != nil {
		return nil, apperror.Unexpected(err, "update entity type")
	}
	if active {
		s.changed(entityType, "activated")
	} else {
		s.changed(entityType, "deactivated")
	}
	return entityType, nil
}

func (s *entityTypeService) Delete(ctx context.Context, code string) error {
	entityType, err := s.Find(ctx, code)
	if err != nil {
		return err
	}
	if entityType.IsBuiltin {
		return apperror.PreconditionFailed(apperror.CodeBuiltinType, "Cannot delete built-in entity type").
			WithParams(map[string]interface{}{"code": code})
	}
	inUse, err := s.entities.CountByType(ctx, code)
	if err != nil {
		return apperror.Unexpected(err, "count entities by type")
	}
	if inUse > 0 {
		return apperror.PreconditionFailed(apperror.CodeTypeInUse,
			fmt.Sprintf("Cannot delete: %d entities use this type", inUse)).
			WithParams(map[string]interface{}{"code": code, "count": inUse})
	}
	if err := s.repo.Delete(ctx, entityType.ID); err != nil {
		return apperror.Unexpected(err, "delete entity type")
	}
	s.changed(entityType, "deleted")
	return nil
}

func (s *entityTypeService) changed(entityType *model.EntityType, action string) {
	s.events.Publish(ws.Event{
		Type: ws.EventTypeChanged,
		Data: map[string]interface{}{"code": entityType.Code, "action": action},
	})
}

func checkDefaultStatus(entityType *model.EntityType) error {
	if entityType.DefaultStatus == nil || entityType.AllowsStatus(*entityType.DefaultStatus) {
		return nil
	}
	return apperror.Validation(apperror.CodeInvalidStatus,
		fmt.Sprintf("Default status '%s' is not in available statuses", *entityType.DefaultStatus)).
		WithParams(map[string]interface{}{"status": *entityType.DefaultStatus})
}

func duplicateType(code string) error {
	return apperror.Conflict(apperror.CodeDuplicateTypeCode,
		fmt.Sprintf("Entity type with code '%s' already exists", code)).
		WithParams(map[string]interface{}{"code": code})
}

func jsonList(values []string) datatypes.JSONSlice[string] {
	if values == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](values)
}
