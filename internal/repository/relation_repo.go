package repository

import (
	"context"

	"go-inventory-tree/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RelationRepository interface {
	WithTx(tx *gorm.DB) RelationRepository

	Create(ctx context.Context, relation *model.EntityRelation) error
	Save(ctx context.Context, relation *model.EntityRelation) error
	FindByPair(ctx context.Context, parentID, childID uuid.UUID) (*model.EntityRelation, error)
	FindForParent(ctx context.Context, parentID, relationID uuid.UUID) (*model.EntityRelation, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]model.EntityRelation, error)
	CountByParent(ctx context.Context, parentID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTouching(ctx context.Context, entityIDs []uuid.UUID) error
}

type relationRepo struct {
	db *gorm.DB
}

func NewRelationRepo(db *gorm.DB) RelationRepository {
	return &relationRepo{db}
}

func (r *relationRepo) WithTx(tx *gorm.DB) RelationRepository {
	return &relationRepo{tx}
}

func (r *relationRepo) Create(ctx context.Context, relation *model.EntityRelation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(relation).Error
}

func (r *relationRepo) Save(ctx context.Context, relation *model.EntityRelation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(relation).Error
}

// FindByPair locks the relation row; callers hold the parent lock already.
func (r *relationRepo) FindByPair(ctx context.Context, parentID, childID uuid.UUID) (*model.EntityRelation, error) {
	var relation model.EntityRelation
	err := forUpdate(r.db.WithContext(ctx)).
		First(&relation, "parent_id = ? AND child_id = ?", parentID, childID).Error
	if err != nil {
		return nil, err
	}
	return &relation, nil
}

func (r *relationRepo) FindForParent(ctx context.Context, parentID, relationID uuid.UUID) (*model.EntityRelation, error) {
	var relation model.EntityRelation
	err := forUpdate(r.db.WithContext(ctx)).
		First(&relation, "id = ? AND parent_id = ?", relationID, parentID).Error
	if err != nil {
		return nil, err
	}
	return &relation, nil
}

func (r *relationRepo) ListByParent(ctx context.Context, parentID uuid.UUID) ([]model.EntityRelation, error) {
	var relations []model.EntityRelation
	err := r.db.WithContext(ctx).
		Preload("Child").
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Find(&relations).Error
	return relations, err
}

func (r *relationRepo) CountByParent(ctx context.Context, parentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.EntityRelation{}).Where("parent_id = ?", parentID).Count(&count).Error
	return count, err
}

func (r *relationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.EntityRelation{}, "id = ?", id).Error
}

// DeleteTouching removes every relation in which any of entityIDs is the
// parent or the child.
func (r *relationRepo) DeleteTouching(ctx context.Context, entityIDs []uuid.UUID) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("parent_id IN ? OR child_id IN ?", entityIDs, entityIDs).
		Delete(&model.EntityRelation{}).Error
}
