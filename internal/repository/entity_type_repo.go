package repository

import (
	"context"

	"go-inventory-tree/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EntityTypeRepository interface {
	WithTx(tx *gorm.DB) EntityTypeRepository

	FindByCode(ctx context.Context, code string) (*model.EntityType, error)
	FindAll(ctx context.Context, includeInactive bool) ([]model.EntityType, error)
	Create(ctx context.Context, entityType *model.EntityType) error
	Save(ctx context.Context, entityType *model.EntityType) error
	Delete(ctx context.Context, id uint) error
	InsertMissing(ctx context.Context, types []model.EntityType) (int64, error)
}

type entityTypeRepo struct {
	db *gorm.DB
}

func NewEntityTypeRepo(db *gorm.DB) EntityTypeRepository {
	return &entityTypeRepo{db}
}

func (r *entityTypeRepo) WithTx(tx *gorm.DB) EntityTypeRepository {
	return &entityTypeRepo{tx}
}

func (r *entityTypeRepo) FindByCode(ctx context.Context, code string) (*model.EntityType, error) {
	var entityType model.EntityType
	if err := r.db.WithContext(ctx).First(&entityType, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &entityType, nil
}

func (r *entityTypeRepo) FindAll(ctx context.Context, includeInactive bool) ([]model.EntityType, error) {
	var types []model.EntityType
	q := r.db.WithContext(ctx)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("sort_order ASC").Order("name ASC").Find(&types).Error
	return types, err
}

func (r *entityTypeRepo) Create(ctx context.Context, entityType *model.EntityType) error {
	return r.db.WithContext(ctx).Create(entityType).Error
}

func (r *entityTypeRepo) Save(ctx context.Context, entityType *model.EntityType) error {
	return r.db.WithContext(ctx).Save(entityType).Error
}

func (r *entityTypeRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.EntityType{}, id).Error
}

// InsertMissing inserts types whose code is absent and leaves existing rows
// untouched. Safe to run from several processes at once.
func (r *entityTypeRepo) InsertMissing(ctx context.Context, types []model.EntityType) (int64, error) {
	if len(types) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&types)
	return res.RowsAffected, res.Error
}
