package service

import (
	"context"
	"testing"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// the fixture already seeded once
	inserted, err := f.types.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, inserted)

	types, err := f.types.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, types, 3)
	codes := []string{types[0].Code, types[1].Code, types[2].Code}
	assert.Equal(t, []string{model.TypeItem, model.TypeContainer, model.TypePackage}, codes)
}

func TestEnsureDefaultsKeepsEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.types.Update(ctx, model.TypeItem, &UpdateEntityTypeInput{Name: strPtr("Part")})
	require.NoError(t, err)
	_, err = f.types.EnsureDefaults(ctx)
	require.NoError(t, err)

	item, err := f.types.Get(ctx, model.TypeItem)
	require.NoError(t, err)
	assert.Equal(t, "Part", item.Name)
}

func TestValidateContainment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	container, err := f.types.Get(ctx, model.TypeContainer)
	require.NoError(t, err)
	item, err := f.types.Get(ctx, model.TypeItem)
	require.NoError(t, err)
	pkg, err := f.types.Get(ctx, model.TypePackage)
	require.NoError(t, err)

	assert.NoError(t, f.types.ValidateContainment(container, model.TypeItem))
	assert.NoError(t, f.types.ValidateContainment(container, model.TypeContainer))
	assert.NoError(t, f.types.ValidateContainment(pkg, model.TypeItem))

	err = f.types.ValidateContainment(item, model.TypeItem)
	assertCode(t, err, apperror.KindValidation, apperror.CodeContainment)
	assert.Contains(t, err.Error(), "cannot contain children")

	err = f.types.ValidateContainment(pkg, model.TypeContainer)
	assertCode(t, err, apperror.KindValidation, apperror.CodeContainment)
}

func TestEntityTypeLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.types.Create(ctx, &CreateEntityTypeInput{
		Code:               "pallet",
		Name:               "Pallet",
		CanContainChildren: true,
		AllowedChildTypes:  []string{model.TypeContainer},
		AvailableStatuses:  []string{"inbound", "stored"},
		DefaultStatus:      strPtr("inbound"),
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.True(t, created.CanBeChild)
	assert.False(t, created.IsBuiltin)
	assert.Contains(t, f.events.types(), ws.EventTypeChanged)

	_, err = f.types.Create(ctx, &CreateEntityTypeInput{Code: "pallet", Name: "Again"})
	assertCode(t, err, apperror.KindConflict, apperror.CodeDuplicateTypeCode)

	_, err = f.types.Create(ctx, &CreateEntityTypeInput{Code: "Bad Code", Name: "x"})
	assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)

	_, err = f.types.Create(ctx, &CreateEntityTypeInput{
		Code: "crate", Name: "Crate", AvailableStatuses: []string{"a"}, DefaultStatus: strPtr("b"),
	})
	assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidStatus)

	pallet, err := f.entities.Create(ctx, &CreateEntityInput{
		Barcode: "PAL-1", Name: "pallet one", EntityType: "pallet", WarehouseID: idPtr(f.warehouse.ID),
	}, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, "inbound", *pallet.Status)

	err = f.types.Delete(ctx, "pallet")
	assertCode(t, err, apperror.KindPreconditionFailed, apperror.CodeTypeInUse)

	_, err = f.types.Deactivate(ctx, "pallet")
	require.NoError(t, err)
	active, err := f.types.List(ctx, false)
	require.NoError(t, err)
	for _, et := range active {
		assert.NotEqual(t, "pallet", et.Code)
	}
	_, err = f.entities.Create(ctx, &CreateEntityInput{Barcode: "PAL-2", Name: "p", EntityType: "pallet"}, uuid.Nil)
	assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidEntityType)

	// existing entities keep a deactivated type
	got, err := f.entities.Get(ctx, pallet.ID)
	require.NoError(t, err)
	assert.Equal(t, "pallet", got.EntityType)

	require.NoError(t, f.entities.Delete(ctx, pallet.ID, false, uuid.Nil))
	require.NoError(t, f.types.Delete(ctx, "pallet"))
	_, err = f.types.Get(ctx, "pallet")
	assertCode(t, err, apperror.KindNotFound, apperror.CodeEntityTypeNotFound)
}

func TestUpdateEntityType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.types.Update(ctx, model.TypePackage, &UpdateEntityTypeInput{
		AvailableStatuses: &[]string{"open", "closed"},
		DefaultStatus:     Some("open"),
		Description:       Null[string](),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "closed"}, []string(updated.AvailableStatuses))
	assert.Equal(t, "open", *updated.DefaultStatus)
	assert.Nil(t, updated.Description)

	_, err = f.types.Update(ctx, model.TypePackage, &UpdateEntityTypeInput{DefaultStatus: Some("lost")})
	assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidStatus)

	_, err = f.types.Update(ctx, "nope", &UpdateEntityTypeInput{Name: strPtr("x")})
	assertCode(t, err, apperror.KindNotFound, apperror.CodeEntityTypeNotFound)
}

func TestBuiltinTypesCannotBeDeleted(t *testing.T) {
	f := newFixture(t)
	err := f.types.Delete(context.Background(), model.TypeItem)
	assertCode(t, err, apperror.KindPreconditionFailed, apperror.CodeBuiltinType)
}

func TestValidateFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pkg, err := f.types.Get(ctx, model.TypePackage)
	require.NoError(t, err)
	pkg.RequiredFields = append(pkg.RequiredFields, "description")

	entity := &model.Entity{Barcode: "B", Name: "n"}
	err = f.types.ValidateFields(pkg, entity)
	assertCode(t, err, apperror.KindValidation, apperror.CodeMissingField)

	entity.Description = strPtr("d")
	assert.NoError(t, f.types.ValidateFields(pkg, entity))

	entity.Status = strPtr("packed")
	assert.NoError(t, f.types.ValidateFields(pkg, entity))

	entity.Status = strPtr("shipped")
	err = f.types.ValidateFields(pkg, entity)
	assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidStatus)
}
