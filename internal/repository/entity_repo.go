package repository

import (
	"context"
	"sort"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntityFilter narrows List. ParentID wins over RootOnly.
type EntityFilter struct {
	EntityType  string
	WarehouseID *uuid.UUID
	ParentID    *uuid.UUID
	RootOnly    bool
	Status      string
	Search      string
	Page        Page
}

type EntityRepository interface {
	WithTx(tx *gorm.DB) EntityRepository

	Create(ctx context.Context, entity *model.Entity) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	FindByBarcode(ctx context.Context, barcode string) (*model.Entity, error)
	FindDetailed(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	FindDetailedByBarcode(ctx context.Context, barcode string) (*model.Entity, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	LockMany(ctx context.Context, ids []uuid.UUID) ([]model.Entity, error)
	LockTree(ctx context.Context) error
	BarcodeTaken(ctx context.Context, barcode string) (bool, error)
	Updates(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	List(ctx context.Context, filter EntityFilter) ([]model.EntitySummary, error)

	ParentOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)
	ChildIDs(ctx context.Context, parentIDs []uuid.UUID) ([]uuid.UUID, error)
	ChildTypes(ctx context.Context, parentID uuid.UUID) ([]string, error)
	CountChildren(ctx context.Context, parentID uuid.UUID) (int64, error)
	Reparent(ctx context.Context, fromParentID, toParentID uuid.UUID, updatedBy string) (int64, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error

	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Entity, error)
	FindByTypes(ctx context.Context, types []string) ([]model.Entity, error)
	CountByType(ctx context.Context, code string) (int64, error)
	CountByWarehouse(ctx context.Context, warehouseID uuid.UUID) (int64, error)
}

type entityRepo struct {
	db *gorm.DB
}

func NewEntityRepo(db *gorm.DB) EntityRepository {
	return &entityRepo{db}
}

func (r *entityRepo) WithTx(tx *gorm.DB) EntityRepository {
	return &entityRepo{tx}
}

func (r *entityRepo) Create(ctx context.Context, entity *model.Entity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(entity).Error
}

func (r *entityRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	var entity model.Entity
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *entityRepo) FindByBarcode(ctx context.Context, barcode string) (*model.Entity, error) {
	var entity model.Entity
	if err := r.db.WithContext(ctx).First(&entity, "barcode = ?", barcode).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *entityRepo) detailed(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Children", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("ChildRelations", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("ChildRelations.Child")
}

func (r *entityRepo) FindDetailed(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	var entity model.Entity
	if err := r.detailed(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *entityRepo) FindDetailedByBarcode(ctx context.Context, barcode string) (*model.Entity, error) {
	var entity model.Entity
	if err := r.detailed(ctx).First(&entity, "barcode = ?", barcode).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// LockByID reads the row under FOR UPDATE; only meaningful inside a transaction.
func (r *entityRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	var entity model.Entity
	if err := forUpdate(r.db.WithContext(ctx)).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// LockMany locks rows in ascending id order so that two callers locking
// overlapping sets cannot deadlock. Missing ids are silently absent.
func (r *entityRepo) LockMany(ctx context.Context, ids []uuid.UUID) ([]model.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := make([]string, 0, len(ids))
	for _, id := range ids {
		sorted = append(sorted, id.String())
	}
	sort.Strings(sorted)

	var entities []model.Entity
	err := forUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", sorted).
		Order("id ASC").
		Find(&entities).Error
	return entities, err
}

// treeLockKey identifies the advisory lock that serializes parent changes.
const treeLockKey = 0x1e7a7ee

// LockTree takes a transaction-scoped advisory lock so that two structural
// moves cannot each pass the cycle check against the other's pre-move state.
func (r *entityRepo) LockTree(ctx context.Context) error {
	if !database.SupportsRowLocks(r.db) {
		return nil
	}
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", treeLockKey).Error
}

func (r *entityRepo) BarcodeTaken(ctx context.Context, barcode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Entity{}).Where("barcode = ?", barcode).Count(&count).Error
	return count > 0, err
}

func (r *entityRepo) Updates(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Entity{}).Where("id = ?", id).Updates(fields).Error
}

func (r *entityRepo) List(ctx context.Context, filter EntityFilter) ([]model.EntitySummary, error) {
	q := r.db.WithContext(ctx).Model(&model.Entity{})

	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.WarehouseID != nil {
		q = q.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.ParentID != nil {
		q = q.Where("parent_id = ?", *filter.ParentID)
	} else if filter.RootOnly {
		q = q.Where("parent_id IS NULL")
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		q = q.Where("LOWER(name) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?) OR LOWER(barcode) LIKE LOWER(?)", term, term, term)
	}

	var entities []model.Entity
	if err := filter.Page.apply(q, 100, 500).Order("created_at DESC").Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return []model.EntitySummary{}, nil
	}

	ids := make([]uuid.UUID, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	counts, err := r.childrenCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.EntitySummary, len(entities))
	for i, e := range entities {
		out[i] = model.EntitySummary{
			ID:            e.ID,
			Barcode:       e.Barcode,
			Name:          e.Name,
			EntityType:    e.EntityType,
			Quantity:      e.Quantity,
			Status:        e.Status,
			ChildrenCount: counts[e.ID],
			WarehouseID:   e.WarehouseID,
			ParentID:      e.ParentID,
			CreatedAt:     e.CreatedAt,
		}
	}
	return out, nil
}

type countRow struct {
	ParentID uuid.UUID
	N        int64
}

// childrenCounts sums tree children and relation children per parent.
func (r *entityRepo) childrenCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(ids))

	var tree []countRow
	if err := r.db.WithContext(ctx).Model(&model.Entity{}).
		Select("parent_id, COUNT(*) AS n").
		Where("parent_id IN ?", ids).
		Group("parent_id").
		Scan(&tree).Error; err != nil {
		return nil, err
	}
	for _, row := range tree {
		counts[row.ParentID] += row.N
	}

	var rel []countRow
	if err := r.db.WithContext(ctx).Model(&model.EntityRelation{}).
		Select("parent_id, COUNT(*) AS n").
		Where("parent_id IN ?", ids).
		Group("parent_id").
		Scan(&rel).Error; err != nil {
		return nil, err
	}
	for _, row := range rel {
		counts[row.ParentID] += row.N
	}
	return counts, nil
}

func (r *entityRepo) ParentOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	var entity model.Entity
	if err := r.db.WithContext(ctx).Select("id", "parent_id").First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return entity.ParentID, nil
}

func (r *entityRepo) ChildIDs(ctx context.Context, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Entity{}).
		Where("parent_id IN ?", parentIDs).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *entityRepo) ChildTypes(ctx context.Context, parentID uuid.UUID) ([]string, error) {
	var types []string
	err := r.db.WithContext(ctx).Model(&model.Entity{}).
		Where("parent_id = ?", parentID).
		Distinct("entity_type").
		Pluck("entity_type", &types).Error
	return types, err
}

func (r *entityRepo) CountChildren(ctx context.Context, parentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Entity{}).Where("parent_id = ?", parentID).Count(&count).Error
	return count, err
}

func (r *entityRepo) Reparent(ctx context.Context, fromParentID, toParentID uuid.UUID, updatedBy string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Entity{}).
		Where("parent_id = ?", fromParentID).
		Updates(map[string]interface{}{
			"parent_id":    toParentID,
			"warehouse_id": nil,
			"updated_by":   updatedBy,
		})
	return res.RowsAffected, res.Error
}

func (r *entityRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Entity{}).Error
}

func (r *entityRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entities []model.Entity
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&entities).Error
	return entities, err
}

func (r *entityRepo) FindByTypes(ctx context.Context, types []string) ([]model.Entity, error) {
	var entities []model.Entity
	err := r.db.WithContext(ctx).
		Where("entity_type IN ?", types).
		Order("name ASC").Order("id ASC").
		Find(&entities).Error
	return entities, err
}

func (r *entityRepo) CountByType(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Entity{}).Where("entity_type = ?", code).Count(&count).Error
	return count, err
}

func (r *entityRepo) CountByWarehouse(ctx context.Context, warehouseID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Entity{}).Where("warehouse_id = ?", warehouseID).Count(&count).Error
	return count, err
}
