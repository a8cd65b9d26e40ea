package repository

import (
	"context"

	"go-inventory-tree/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryCheckRepository interface {
	WithTx(tx *gorm.DB) InventoryCheckRepository

	Create(ctx context.Context, check *model.InventoryCheck) error
	CreateItems(ctx context.Context, items []model.CheckItem) error
	FindAll(ctx context.Context, status model.CheckStatus) ([]model.InventoryCheckSummary, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error)
	FindDetailed(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error)
	FindActive(ctx context.Context) (*model.InventoryCheck, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error)
	Updates(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error

	FindItem(ctx context.Context, checkID, entityID uuid.UUID) (*model.CheckItem, error)
	FindItemByBarcode(ctx context.Context, checkID uuid.UUID, barcode string) (*model.CheckItem, error)
	SaveItem(ctx context.Context, item *model.CheckItem) error
}

type inventoryCheckRepo struct {
	db *gorm.DB
}

func NewInventoryCheckRepo(db *gorm.DB) InventoryCheckRepository {
	return &inventoryCheckRepo{db}
}

func (r *inventoryCheckRepo) WithTx(tx *gorm.DB) InventoryCheckRepository {
	return &inventoryCheckRepo{tx}
}

func (r *inventoryCheckRepo) Create(ctx context.Context, check *model.InventoryCheck) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(check).Error
}

func (r *inventoryCheckRepo) CreateItems(ctx context.Context, items []model.CheckItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(items, 200).Error
}

type checkCounts struct {
	CheckID    uuid.UUID
	Total      int64
	Checked    int64
	Difference int64
}

// FindAll lists checks newest first with their counting progress. An empty
// status lists every check.
func (r *inventoryCheckRepo) FindAll(ctx context.Context, status model.CheckStatus) ([]model.InventoryCheckSummary, error) {
	q := r.db.WithContext(ctx).Model(&model.InventoryCheck{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var checks []model.InventoryCheck
	if err := q.Order("started_at DESC").Order("id ASC").Find(&checks).Error; err != nil {
		return nil, err
	}
	out := make([]model.InventoryCheckSummary, len(checks))
	if len(checks) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, len(checks))
	for i, c := range checks {
		ids[i] = c.ID
	}
	var rows []checkCounts
	if err := r.db.WithContext(ctx).Model(&model.CheckItem{}).
		Select("check_id, COUNT(*) AS total, COUNT(actual_quantity) AS checked, "+
			"SUM(CASE WHEN actual_quantity IS NOT NULL AND actual_quantity <> expected_quantity THEN 1 ELSE 0 END) AS difference").
		Where("check_id IN ?", ids).
		Group("check_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]checkCounts, len(rows))
	for _, row := range rows {
		counts[row.CheckID] = row
	}

	for i, c := range checks {
		n := counts[c.ID]
		out[i] = model.InventoryCheckSummary{
			ID:                  c.ID,
			Name:                c.Name,
			Description:         c.Description,
			Status:              c.Status,
			StartedAt:           c.StartedAt,
			CompletedAt:         c.CompletedAt,
			TotalItems:          n.Total,
			CheckedItems:        n.Checked,
			ItemsWithDifference: n.Difference,
		}
	}
	return out, nil
}

func (r *inventoryCheckRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error) {
	var check model.InventoryCheck
	if err := r.db.WithContext(ctx).First(&check, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &check, nil
}

func (r *inventoryCheckRepo) FindDetailed(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error) {
	var check model.InventoryCheck
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC").Order("id ASC") }).
		First(&check, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &check, nil
}

// FindActive returns the oldest check still in progress.
func (r *inventoryCheckRepo) FindActive(ctx context.Context) (*model.InventoryCheck, error) {
	var check model.InventoryCheck
	err := r.db.WithContext(ctx).
		Where("status = ?", model.CheckInProgress).
		Order("started_at ASC").
		First(&check).Error
	if err != nil {
		return nil, err
	}
	return &check, nil
}

func (r *inventoryCheckRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error) {
	var check model.InventoryCheck
	if err := forUpdate(r.db.WithContext(ctx)).First(&check, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &check, nil
}

func (r *inventoryCheckRepo) Updates(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.InventoryCheck{}).Where("id = ?", id).Updates(fields).Error
}

// Delete removes the check and its items.
func (r *inventoryCheckRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("check_id = ?", id).Delete(&model.CheckItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.InventoryCheck{}, "id = ?", id).Error
	})
}

func (r *inventoryCheckRepo) FindItem(ctx context.Context, checkID, entityID uuid.UUID) (*model.CheckItem, error) {
	var item model.CheckItem
	if err := r.db.WithContext(ctx).First(&item, "check_id = ? AND entity_id = ?", checkID, entityID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *inventoryCheckRepo) FindItemByBarcode(ctx context.Context, checkID uuid.UUID, barcode string) (*model.CheckItem, error) {
	var item model.CheckItem
	if err := r.db.WithContext(ctx).First(&item, "check_id = ? AND barcode = ?", checkID, barcode).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *inventoryCheckRepo) SaveItem(ctx context.Context, item *model.CheckItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}
