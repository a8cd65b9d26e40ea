package service

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("into container", func(t *testing.T) {
		box := f.root(t, "M-BOX", model.TypeContainer, 1)
		item := f.root(t, "M-1", model.TypeItem, 3)
		moved, err := f.entities.Move(ctx, item.ID, &MoveInput{TargetParentID: idPtr(box.ID)}, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, box.ID, *moved.ParentID)
		assert.Nil(t, moved.WarehouseID)

		entries, err := f.history.History(ctx, item.ID, 0, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.OpMove, entries[0].Operation)
		assert.Equal(t, box.ID, *entries[0].RelatedEntityID)
	})

	t.Run("needs exactly one target", func(t *testing.T) {
		item := f.root(t, "M-2", model.TypeItem, 1)
		_, err := f.entities.Move(ctx, item.ID, &MoveInput{}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)

		_, err = f.entities.Move(ctx, item.ID, &MoveInput{
			TargetWarehouseID: idPtr(f.warehouse.ID),
			TargetParentID:    idPtr(uuid.New()),
		}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		item := f.root(t, "M-3", model.TypeItem, 4)
		_, err := f.entities.Move(ctx, item.ID, &MoveInput{TargetWarehouseID: idPtr(f.warehouse.ID), Quantity: intPtr(0)}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)
	})

	t.Run("into own descendant", func(t *testing.T) {
		outer := f.root(t, "M-OUT", model.TypeContainer, 1)
		mid := f.child(t, outer, "M-MID", model.TypeContainer, 1)
		inner := f.child(t, mid, "M-IN", model.TypeContainer, 1)
		_, err := f.entities.Move(ctx, outer.ID, &MoveInput{TargetParentID: idPtr(inner.ID)}, uuid.Nil)
		assertCode(t, err, apperror.KindPreconditionFailed, apperror.CodeCycle)

		_, err = f.entities.Move(ctx, outer.ID, &MoveInput{TargetParentID: idPtr(outer.ID)}, uuid.Nil)
		assertCode(t, err, apperror.KindPreconditionFailed, apperror.CodeSelfParent)
	})

	t.Run("containment", func(t *testing.T) {
		pkg := f.root(t, "M-PKG", model.TypePackage, 1)
		box := f.root(t, "M-BOX2", model.TypeContainer, 1)
		_, err := f.entities.Move(ctx, box.ID, &MoveInput{TargetParentID: idPtr(pkg.ID)}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeContainment)
	})

	t.Run("partial quantity splits", func(t *testing.T) {
		box := f.root(t, "M-BOX3", model.TypeContainer, 1)
		item := f.root(t, "M-4", model.TypeItem, 10)
		f.events.reset()

		created, err := f.entities.Move(ctx, item.ID, &MoveInput{TargetParentID: idPtr(box.ID), Quantity: intPtr(4)}, uuid.Nil)
		require.NoError(t, err)
		assert.NotEqual(t, item.ID, created.ID)
		assert.Equal(t, 4, created.Quantity)
		assert.Equal(t, box.ID, *created.ParentID)
		assert.True(t, strings.HasPrefix(created.Barcode, "M-4-split-"))

		source := f.reload(t, item.ID)
		assert.Equal(t, 6, source.Quantity)
		assert.Equal(t, f.warehouse.ID, *source.WarehouseID)
		assert.Contains(t, f.operations(t, item.ID), model.OpSplit)
		assert.Equal(t, []string{ws.EventEntitySplit}, f.events.types())
	})

	t.Run("full quantity moves the entity", func(t *testing.T) {
		box := f.root(t, "M-BOX4", model.TypeContainer, 1)
		item := f.root(t, "M-5", model.TypeItem, 2)
		moved, err := f.entities.Move(ctx, item.ID, &MoveInput{TargetParentID: idPtr(box.ID), Quantity: intPtr(2)}, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, item.ID, moved.ID)
		assert.Equal(t, 2, moved.Quantity)
	})
}

func TestConvert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("item to package", func(t *testing.T) {
		item := f.root(t, "CV-1", model.TypeItem, 1)
		converted, err := f.entities.Convert(ctx, item.ID, &ConvertInput{NewType: model.TypePackage, NewStatus: strPtr("sourcing")}, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, model.TypePackage, converted.EntityType)
		assert.Equal(t, "sourcing", *converted.Status)

		entries, err := f.history.History(ctx, item.ID, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, model.OpConvert, entries[0].Operation)
		assert.Equal(t, model.TypeItem, entries[0].Details["from_type"])
		assert.Equal(t, model.TypePackage, entries[0].Details["to_type"])
	})

	t.Run("status not allowed", func(t *testing.T) {
		item := f.root(t, "CV-2", model.TypeItem, 1)
		_, err := f.entities.Convert(ctx, item.ID, &ConvertInput{NewType: model.TypePackage, NewStatus: strPtr("lost")}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidStatus)
	})

	t.Run("children must fit", func(t *testing.T) {
		box := f.root(t, "CV-BOX", model.TypeContainer, 1)
		f.child(t, box, "CV-3", model.TypeItem, 1)
		_, err := f.entities.Convert(ctx, box.ID, &ConvertInput{NewType: model.TypeItem}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeContainment)
	})

	t.Run("parent must accept the new type", func(t *testing.T) {
		box := f.root(t, "CV-BOX2", model.TypeContainer, 1)
		item := f.child(t, box, "CV-4", model.TypeItem, 1)
		_, err := f.entities.Convert(ctx, item.ID, &ConvertInput{NewType: model.TypePackage}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeContainment)
	})

	t.Run("inactive type", func(t *testing.T) {
		item := f.root(t, "CV-5", model.TypeItem, 1)
		_, err := f.types.Deactivate(ctx, model.TypePackage)
		require.NoError(t, err)
		defer func() {
			_, err := f.types.Activate(ctx, model.TypePackage)
			require.NoError(t, err)
		}()
		_, err = f.entities.Convert(ctx, item.ID, &ConvertInput{NewType: model.TypePackage}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidEntityType)
	})
}

func TestSplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("preserves total quantity", func(t *testing.T) {
		item := f.root(t, "SP-1", model.TypeItem, 10)
		res, err := f.entities.Split(ctx, item.ID, &SplitInput{Quantity: 3, NewBarcode: "SP-1B"}, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, 7, res.Source.Quantity)
		assert.Equal(t, 3, res.Created.Quantity)
		assert.Equal(t, 10, f.reload(t, item.ID).Quantity+f.reload(t, res.Created.ID).Quantity)
		assert.Equal(t, item.Name, res.Created.Name)
		assert.Equal(t, f.warehouse.ID, *res.Created.WarehouseID)

		entries, err := f.history.History(ctx, res.Created.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.OpCreate, entries[0].Operation)
		assert.Equal(t, item.ID.String(), entries[0].Details["split_from"])
	})

	t.Run("quantity must be less than current", func(t *testing.T) {
		item := f.root(t, "SP-2", model.TypeItem, 3)
		_, err := f.entities.Split(ctx, item.ID, &SplitInput{Quantity: 3, NewBarcode: "SP-2B"}, uuid.Nil)
		assertCode(t, err, apperror.KindPreconditionFailed, apperror.CodeSplitQuantity)
		assert.Equal(t, 3, f.reload(t, item.ID).Quantity)
	})

	t.Run("barcode taken", func(t *testing.T) {
		item := f.root(t, "SP-3", model.TypeItem, 3)
		_, err := f.entities.Split(ctx, item.ID, &SplitInput{Quantity: 1, NewBarcode: "SP-1"}, uuid.Nil)
		assertCode(t, err, apperror.KindConflict, apperror.CodeDuplicateBarcode)
	})

	t.Run("into a container", func(t *testing.T) {
		box := f.root(t, "SP-BOX", model.TypeContainer, 1)
		item := f.root(t, "SP-4", model.TypeItem, 5)
		res, err := f.entities.Split(ctx, item.ID, &SplitInput{Quantity: 2, NewBarcode: "SP-4B", TargetParentID: idPtr(box.ID)}, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, box.ID, *res.Created.ParentID)
		assert.Nil(t, res.Created.WarehouseID)
	})

	t.Run("invalid input", func(t *testing.T) {
		item := f.root(t, "SP-5", model.TypeItem, 5)
		_, err := f.entities.Split(ctx, item.ID, &SplitInput{Quantity: 0, NewBarcode: "SP-5B"}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)
	})
}

func TestMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("sums quantities and reparents children", func(t *testing.T) {
		target := f.root(t, "MG-T", model.TypeContainer, 2)
		a := f.root(t, "MG-A", model.TypeContainer, 3)
		b := f.root(t, "MG-B", model.TypeContainer, 5)
		inA := f.child(t, a, "MG-A1", model.TypeItem, 1)

		res, err := f.entities.Merge(ctx, target.ID, []uuid.UUID{a.ID, b.ID, a.ID, target.ID}, uuid.Nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, res.Merged)
		assert.Empty(t, res.Skipped)
		assert.Equal(t, 10, res.Entity.Quantity)

		assert.False(t, f.exists(t, a.ID))
		assert.False(t, f.exists(t, b.ID))
		assert.Equal(t, target.ID, *f.reload(t, inA.ID).ParentID)

		ops := f.operations(t, target.ID)
		merges := 0
		for _, op := range ops {
			if op == model.OpMerge {
				merges++
			}
		}
		assert.Equal(t, 2, merges)
	})

	t.Run("skips incompatible sources", func(t *testing.T) {
		target := f.root(t, "MG-T2", model.TypeItem, 1)
		item := f.root(t, "MG-I", model.TypeItem, 4)
		box := f.root(t, "MG-BOX", model.TypeContainer, 1)
		missing := uuid.New()

		res, err := f.entities.Merge(ctx, target.ID, []uuid.UUID{box.ID, missing, item.ID}, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{item.ID}, res.Merged)
		require.Len(t, res.Skipped, 2)
		codes := []string{res.Skipped[0].Code, res.Skipped[1].Code}
		assert.ElementsMatch(t, []string{apperror.CodeTypeMismatch, apperror.CodeEntityNotFound}, codes)
		assert.Equal(t, 5, res.Entity.Quantity)
		assert.True(t, f.exists(t, box.ID))
	})

	t.Run("source containing the target", func(t *testing.T) {
		outer := f.root(t, "MG-OUT", model.TypeContainer, 1)
		inner := f.child(t, outer, "MG-IN", model.TypeContainer, 1)
		res, err := f.entities.Merge(ctx, inner.ID, []uuid.UUID{outer.ID}, uuid.Nil)
		require.NoError(t, err)
		assert.Empty(t, res.Merged)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, apperror.CodeCycle, res.Skipped[0].Code)
		assert.True(t, f.exists(t, outer.ID))
	})

	t.Run("missing target", func(t *testing.T) {
		item := f.root(t, "MG-X", model.TypeItem, 1)
		_, err := f.entities.Merge(ctx, uuid.New(), []uuid.UUID{item.ID}, uuid.Nil)
		assertCode(t, err, apperror.KindNotFound, apperror.CodeEntityNotFound)
	})

	t.Run("no sources", func(t *testing.T) {
		item := f.root(t, "MG-Y", model.TypeItem, 1)
		_, err := f.entities.Merge(ctx, item.ID, nil, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)
	})
}

func TestAdjustQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.root(t, "AQ-1", model.TypeItem, 5)

	adjusted, err := f.entities.AdjustQuantity(ctx, item.ID, -2, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 3, adjusted.Quantity)

	adjusted, err = f.entities.AdjustQuantity(ctx, item.ID, 10, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 13, adjusted.Quantity)

	_, err = f.entities.AdjustQuantity(ctx, item.ID, -14, uuid.Nil)
	assertCode(t, err, apperror.KindPreconditionFailed, apperror.CodeNegativeResult)
	assert.Equal(t, 13, f.reload(t, item.ID).Quantity)

	adjusted, err = f.entities.AdjustQuantity(ctx, item.ID, -13, uuid.Nil)
	require.NoError(t, err)
	assert.Zero(t, adjusted.Quantity)

	entries, err := f.history.History(ctx, item.ID, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, model.OpQuantityChange, entries[0].Operation)
	assert.Equal(t, json.Number("-13"), entries[0].Details["delta"])

	_, err = f.entities.AdjustQuantity(ctx, uuid.New(), 1, uuid.Nil)
	assertCode(t, err, apperror.KindNotFound, apperror.CodeEntityNotFound)
}

func TestQuantityOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("adjust", func(t *testing.T) {
		item := f.root(t, "OV-1", model.TypeItem, 5)
		_, err := f.entities.AdjustQuantity(ctx, item.ID, math.MaxInt, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)
		assert.Equal(t, 5, f.reload(t, item.ID).Quantity)

		adjusted, err := f.entities.AdjustQuantity(ctx, item.ID, math.MaxInt-5, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, math.MaxInt, adjusted.Quantity)

		_, err = f.entities.AdjustQuantity(ctx, item.ID, 1, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)
	})

	t.Run("merge skips the overflowing source", func(t *testing.T) {
		target := f.root(t, "OV-T", model.TypeItem, math.MaxInt-1)
		fits := f.root(t, "OV-S1", model.TypeItem, 1)
		tooMany := f.root(t, "OV-S2", model.TypeItem, 1)

		res, err := f.entities.Merge(ctx, target.ID, []uuid.UUID{fits.ID, tooMany.ID}, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{fits.ID}, res.Merged)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, tooMany.ID, res.Skipped[0].ID)
		assert.Equal(t, apperror.CodeInvalidInput, res.Skipped[0].Code)
		assert.Equal(t, math.MaxInt, res.Entity.Quantity)
		assert.True(t, f.exists(t, tooMany.ID))
	})
}

func TestAddQuantity(t *testing.T) {
	sum, err := addQuantity("quantity", 3, -5)
	require.NoError(t, err)
	assert.Equal(t, -2, sum)

	_, err = addQuantity("quantity", math.MinInt, -1)
	assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)

	sum, err = addQuantity("quantity", math.MaxInt, 0)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, sum)
}
