package service

import (
	"context"
	"testing"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddChildAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	container := f.root(t, "C", model.TypeContainer, 1)
	item := f.root(t, "I", model.TypeItem, 5)

	rel, err := f.entities.AddChild(ctx, container.ID, &AddChildInput{
		ChildBarcode:     strPtr("I"),
		Quantity:         intPtr(3),
		RemoveFromSource: boolPtr(true),
	}, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rel.Quantity)
	assert.Equal(t, 2, f.reload(t, item.ID).Quantity)

	again, err := f.entities.AddChild(ctx, container.ID, &AddChildInput{
		ChildBarcode:     strPtr("I"),
		Quantity:         intPtr(2),
		RemoveFromSource: boolPtr(true),
	}, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, rel.ID, again.ID)
	assert.Equal(t, 5, again.Quantity)

	got, err := f.entities.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Quantity)

	children, err := f.entities.ListChildren(ctx, container.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, item.ID, children[0].ChildID)
	require.NotNil(t, children[0].Child)
	assert.Equal(t, "I", children[0].Child.Barcode)

	ops := f.operations(t, container.ID)
	assert.Contains(t, ops, model.OpAddChild)
}

func TestAddChildRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pkg := f.root(t, "PKG", model.TypePackage, 1)
	item := f.root(t, "ITEM", model.TypeItem, 2)
	box := f.root(t, "BOX", model.TypeContainer, 1)

	t.Run("insufficient quantity", func(t *testing.T) {
		_, err := f.entities.AddChild(ctx, pkg.ID, &AddChildInput{ChildID: idPtr(item.ID), Quantity: intPtr(3)}, uuid.Nil)
		assertCode(t, err, apperror.KindPreconditionFailed, apperror.CodeInsufficientQuantity)
		assert.Equal(t, 2, f.reload(t, item.ID).Quantity)
	})

	t.Run("without removing from source", func(t *testing.T) {
		rel, err := f.entities.AddChild(ctx, pkg.ID, &AddChildInput{
			ChildID:          idPtr(item.ID),
			Quantity:         intPtr(7),
			RemoveFromSource: boolPtr(false),
		}, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, 7, rel.Quantity)
		assert.Equal(t, 2, f.reload(t, item.ID).Quantity)
	})

	t.Run("containment", func(t *testing.T) {
		_, err := f.entities.AddChild(ctx, pkg.ID, &AddChildInput{ChildID: idPtr(box.ID)}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeContainment)
	})

	t.Run("self", func(t *testing.T) {
		_, err := f.entities.AddChild(ctx, box.ID, &AddChildInput{ChildID: idPtr(box.ID)}, uuid.Nil)
		assertCode(t, err, apperror.KindPreconditionFailed, apperror.CodeSelfParent)
	})

	t.Run("unknown child", func(t *testing.T) {
		_, err := f.entities.AddChild(ctx, pkg.ID, &AddChildInput{ChildBarcode: strPtr("NOPE")}, uuid.Nil)
		assertCode(t, err, apperror.KindNotFound, apperror.CodeEntityNotFound)
	})

	t.Run("no child reference", func(t *testing.T) {
		_, err := f.entities.AddChild(ctx, pkg.ID, &AddChildInput{}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)
	})

	t.Run("unknown parent", func(t *testing.T) {
		_, err := f.entities.AddChild(ctx, uuid.New(), &AddChildInput{ChildID: idPtr(item.ID)}, uuid.Nil)
		assertCode(t, err, apperror.KindNotFound, apperror.CodeEntityNotFound)
	})
}

func TestAddChildPriceSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pkg := f.root(t, "PKG", model.TypePackage, 1)
	item, err := f.entities.Create(ctx, &CreateEntityInput{
		Barcode:    "PRICED",
		Name:       "priced",
		EntityType: model.TypeItem,
		Quantity:   intPtr(4),
		Price:      decimal.NewNullDecimal(decimal.RequireFromString("2.5")),
	}, uuid.Nil)
	require.NoError(t, err)

	rel, err := f.entities.AddChild(ctx, pkg.ID, &AddChildInput{ChildID: idPtr(item.ID)}, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rel.Quantity)
	require.True(t, rel.PriceSnapshot.Valid)
	assert.True(t, rel.PriceSnapshot.Decimal.Equal(decimal.RequireFromString("2.5")))

	updated, err := f.entities.UpdateRelation(ctx, pkg.ID, rel.ID, &UpdateRelationInput{
		Quantity:      intPtr(2),
		PriceSnapshot: Null[decimal.Decimal](),
		Notes:         Some("gift wrap"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)
	assert.False(t, updated.PriceSnapshot.Valid)
	assert.Equal(t, "gift wrap", *updated.Notes)

	_, err = f.entities.UpdateRelation(ctx, pkg.ID, uuid.New(), &UpdateRelationInput{Quantity: intPtr(1)})
	assertCode(t, err, apperror.KindNotFound, apperror.CodeRelationNotFound)

	_, err = f.entities.UpdateRelation(ctx, pkg.ID, rel.ID, &UpdateRelationInput{Quantity: intPtr(0)})
	assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)
}

func TestRemoveChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pkg := f.root(t, "PKG", model.TypePackage, 1)
	item := f.root(t, "ITEM", model.TypeItem, 5)

	rel, err := f.entities.AddChild(ctx, pkg.ID, &AddChildInput{ChildID: idPtr(item.ID), Quantity: intPtr(4)}, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.reload(t, item.ID).Quantity)

	require.NoError(t, f.entities.RemoveChild(ctx, pkg.ID, rel.ID, true, uuid.Nil))
	assert.Equal(t, 5, f.reload(t, item.ID).Quantity)

	children, err := f.entities.ListChildren(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Contains(t, f.operations(t, pkg.ID), model.OpRemoveChild)

	err = f.entities.RemoveChild(ctx, pkg.ID, rel.ID, false, uuid.Nil)
	assertCode(t, err, apperror.KindNotFound, apperror.CodeRelationNotFound)

	rel, err = f.entities.AddChild(ctx, pkg.ID, &AddChildInput{ChildID: idPtr(item.ID), Quantity: intPtr(2)}, uuid.Nil)
	require.NoError(t, err)
	require.NoError(t, f.entities.RemoveChild(ctx, pkg.ID, rel.ID, false, uuid.Nil))
	assert.Equal(t, 3, f.reload(t, item.ID).Quantity)
}
