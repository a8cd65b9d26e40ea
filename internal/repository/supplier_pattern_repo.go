package repository

import (
	"context"

	"go-inventory-tree/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SupplierPatternRepository interface {
	Create(ctx context.Context, pattern *model.SupplierPattern) error
	FindAll(ctx context.Context, enabledOnly bool) ([]model.SupplierPattern, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.SupplierPattern, error)
	Save(ctx context.Context, pattern *model.SupplierPattern) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type supplierPatternRepo struct {
	db *gorm.DB
}

func NewSupplierPatternRepo(db *gorm.DB) SupplierPatternRepository {
	return &supplierPatternRepo{db}
}

func (r *supplierPatternRepo) Create(ctx context.Context, pattern *model.SupplierPattern) error {
	return r.db.WithContext(ctx).Create(pattern).Error
}

// FindAll orders by name, then id, so matching is stable across calls.
func (r *supplierPatternRepo) FindAll(ctx context.Context, enabledOnly bool) ([]model.SupplierPattern, error) {
	var patterns []model.SupplierPattern
	q := r.db.WithContext(ctx)
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	err := q.Order("name ASC").Order("id ASC").Find(&patterns).Error
	return patterns, err
}

func (r *supplierPatternRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.SupplierPattern, error) {
	var pattern model.SupplierPattern
	if err := r.db.WithContext(ctx).First(&pattern, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pattern, nil
}

func (r *supplierPatternRepo) Save(ctx context.Context, pattern *model.SupplierPattern) error {
	return r.db.WithContext(ctx).Save(pattern).Error
}

func (r *supplierPatternRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.SupplierPattern{}, "id = ?", id).Error
}
