package repository

import (
	"context"

	"go-inventory-tree/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WarehouseRepository interface {
	WithTx(tx *gorm.DB) WarehouseRepository

	Create(ctx context.Context, warehouse *model.Warehouse) error
	FindAll(ctx context.Context) ([]model.Warehouse, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Warehouse, error)
	Save(ctx context.Context, warehouse *model.Warehouse) error
	Delete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type warehouseRepo struct {
	db *gorm.DB
}

func NewWarehouseRepo(db *gorm.DB) WarehouseRepository {
	return &warehouseRepo{db}
}

func (r *warehouseRepo) WithTx(tx *gorm.DB) WarehouseRepository {
	return &warehouseRepo{tx}
}

func (r *warehouseRepo) Create(ctx context.Context, warehouse *model.Warehouse) error {
	return r.db.WithContext(ctx).Create(warehouse).Error
}

func (r *warehouseRepo) FindAll(ctx context.Context) ([]model.Warehouse, error) {
	var warehouses []model.Warehouse
	err := r.db.WithContext(ctx).Order("name ASC").Find(&warehouses).Error
	return warehouses, err
}

func (r *warehouseRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Warehouse, error) {
	var warehouse model.Warehouse
	if err := r.db.WithContext(ctx).First(&warehouse, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func (r *warehouseRepo) Save(ctx context.Context, warehouse *model.Warehouse) error {
	return r.db.WithContext(ctx).Save(warehouse).Error
}

func (r *warehouseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Warehouse{}, "id = ?", id).Error
}

// Exists takes a shared lock where supported so the warehouse cannot vanish
// under a concurrent delete before the caller commits.
func (r *warehouseRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).Model(&model.Warehouse{}).Where("id = ?", id)
	if err := sharedLock(q).Limit(1).Pluck("id", &ids).Error; err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}
