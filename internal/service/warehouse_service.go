package service

import (
	"context"
	"fmt"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/validator"

	"github.com/google/uuid"
)

type WarehouseInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description"`
	Location    *string `json:"location" validate:"omitempty,max=255"`
}

type WarehouseService interface {
	List(ctx context.Context) ([]model.Warehouse, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Warehouse, error)
	Create(ctx context.Context, input *WarehouseInput, actorID uuid.UUID) (*model.Warehouse, error)
	Update(ctx context.Context, id uuid.UUID, input *WarehouseInput, actorID uuid.UUID) (*model.Warehouse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type warehouseService struct {
	repo     repository.WarehouseRepository
	entities repository.EntityRepository
}

func NewWarehouseService(repo repository.WarehouseRepository, entities repository.EntityRepository) WarehouseService {
	return &warehouseService{repo: repo, entities: entities}
}

func (s *warehouseService) List(ctx context.Context) ([]model.Warehouse, error) {
	warehouses, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, apperror.Unexpected(err, "list warehouses")
	}
	return warehouses, nil
}

func (s *warehouseService) Get(ctx context.Context, id uuid.UUID) (*model.Warehouse, error) {
	warehouse, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, apperror.CodeWarehouseNotFound, "warehouse", id)
	}
	return warehouse, nil
}

func (s *warehouseService) Create(ctx context.Context, input *WarehouseInput, actorID uuid.UUID) (*model.Warehouse, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	warehouse := &model.Warehouse{
		Name:        input.Name,
		Description: input.Description,
		Location:    input.Location,
	}
	warehouse.CreatedBy = actorName(actorID)
	warehouse.UpdatedBy = warehouse.CreatedBy
	if err := s.repo.Create(ctx, warehouse); err != nil {
		return nil, apperror.Unexpected(err, "create warehouse")
	}
	return warehouse, nil
}

func (s *warehouseService) Update(ctx context.Context, id uuid.UUID, input *WarehouseInput, actorID uuid.UUID) (*model.Warehouse, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	warehouse, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	warehouse.Name = input.Name
	warehouse.Description = input.Description
	warehouse.Location = input.Location
	warehouse.UpdatedBy = actorName(actorID)
	if err := s.repo.Save(ctx, warehouse); err != nil {
		return nil, apperror.Unexpected(err, "update warehouse")
	}
	return warehouse, nil
}

// Delete refuses while any root entity still lives in the warehouse.
func (s *warehouseService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.entities.CountByWarehouse(ctx, id)
	if err != nil {
		return apperror.Unexpected(err, "count entities in warehouse")
	}
	if count > 0 {
		return apperror.PreconditionFailed(apperror.CodeWarehouseInUse,
			fmt.Sprintf("Cannot delete: %d entities are stored in this warehouse", count)).
			WithParams(map[string]interface{}{"id": id.String(), "count": count})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperror.Unexpected(err, "delete warehouse")
	}
	return nil
}
