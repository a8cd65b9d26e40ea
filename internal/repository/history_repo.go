package repository

import (
	"context"

	"go-inventory-tree/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository is insert-only apart from cascade deletes.
type HistoryRepository interface {
	WithTx(tx *gorm.DB) HistoryRepository

	Append(ctx context.Context, entries ...*model.EntityHistory) error
	ListByEntity(ctx context.Context, entityID uuid.UUID, page Page) ([]model.EntityHistory, error)
	DeleteByEntities(ctx context.Context, entityIDs []uuid.UUID) error
}

type historyRepo struct {
	db *gorm.DB
}

func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db}
}

func (r *historyRepo) WithTx(tx *gorm.DB) HistoryRepository {
	return &historyRepo{tx}
}

func (r *historyRepo) Append(ctx context.Context, entries ...*model.EntityHistory) error {
	if len(entries) == 0 {
		return nil
	}
	// one insert per entry keeps ids in call order
	for _, entry := range entries {
		if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
			return err
		}
	}
	return nil
}

// ListByEntity returns newest first. id breaks ties between entries written
// in the same clock tick.
func (r *historyRepo) ListByEntity(ctx context.Context, entityID uuid.UUID, page Page) ([]model.EntityHistory, error) {
	var entries []model.EntityHistory
	q := r.db.WithContext(ctx).Where("entity_id = ?", entityID).Order("created_at DESC").Order("id DESC")
	err := page.apply(q, 50, 500).Find(&entries).Error
	return entries, err
}

func (r *historyRepo) DeleteByEntities(ctx context.Context, entityIDs []uuid.UUID) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("entity_id IN ?", entityIDs).Delete(&model.EntityHistory{}).Error
}
