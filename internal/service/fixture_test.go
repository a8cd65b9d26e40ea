package service

import (
	"context"
	"sync"
	"testing"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/internal/testutil"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recorder struct {
	mu     sync.Mutex
	events []ws.Event
}

func (r *recorder) Publish(ev ws.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	db         *gorm.DB
	events     *recorder
	entityRepo repository.EntityRepository
	types      EntityTypeService
	entities   EntityService
	warehouses WarehouseService
	history    HistoryService
	warehouse  *model.Warehouse
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	events := &recorder{}

	entityRepo := repository.NewEntityRepo(db)
	historyRepo := repository.NewHistoryRepo(db)
	warehouseRepo := repository.NewWarehouseRepo(db)
	types := NewEntityTypeService(repository.NewEntityTypeRepo(db), entityRepo, events)
	_, err := types.EnsureDefaults(context.Background())
	require.NoError(t, err)

	f := &fixture{
		db:         db,
		events:     events,
		entityRepo: entityRepo,
		types:      types,
		entities: NewEntityService(db, entityRepo, repository.NewRelationRepo(db), historyRepo,
			warehouseRepo, types, events),
		warehouses: NewWarehouseService(warehouseRepo, entityRepo),
		history:    NewHistoryService(entityRepo, historyRepo),
	}
	f.warehouse, err = f.warehouses.Create(context.Background(), &WarehouseInput{Name: "Main"}, uuid.Nil)
	require.NoError(t, err)
	events.reset()
	return f
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func boolPtr(v bool) *bool { return &v }

func idPtr(id uuid.UUID) *uuid.UUID { return &id }

// root creates an entity stored directly in the fixture warehouse.
func (f *fixture) root(t *testing.T, barcode, entityType string, quantity int) *model.Entity {
	t.Helper()
	e, err := f.entities.Create(context.Background(), &CreateEntityInput{
		Barcode:     barcode,
		Name:        barcode,
		EntityType:  entityType,
		Quantity:    intPtr(quantity),
		WarehouseID: idPtr(f.warehouse.ID),
	}, uuid.Nil)
	require.NoError(t, err)
	return e
}

// child creates an entity inside parent.
func (f *fixture) child(t *testing.T, parent *model.Entity, barcode, entityType string, quantity int) *model.Entity {
	t.Helper()
	e, err := f.entities.Create(context.Background(), &CreateEntityInput{
		Barcode:    barcode,
		Name:       barcode,
		EntityType: entityType,
		Quantity:   intPtr(quantity),
		ParentID:   idPtr(parent.ID),
	}, uuid.Nil)
	require.NoError(t, err)
	return e
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.Entity {
	t.Helper()
	e, err := f.entityRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (f *fixture) exists(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&model.Entity{}).Where("id = ?", id).Count(&count).Error)
	return count > 0
}

func (f *fixture) operations(t *testing.T, id uuid.UUID) []model.HistoryOperation {
	t.Helper()
	entries, err := f.history.History(context.Background(), id, 0, 0)
	require.NoError(t, err)
	ops := make([]model.HistoryOperation, len(entries))
	for i, e := range entries {
		ops[i] = e.Operation
	}
	return ops
}

func assertCode(t *testing.T, err error, kind apperror.Kind, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, kind, appErr.Kind)
	assert.Equal(t, code, appErr.Code)
}
