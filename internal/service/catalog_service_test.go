package service

import (
	"context"
	"testing"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/internal/testutil"
	"go-inventory-tree/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupplierPatterns(t *testing.T) {
	ctx := context.Background()
	svc := NewSupplierService(repository.NewSupplierPatternRepo(testutil.NewDB(t)))

	lcsc, err := svc.Create(ctx, &SupplierPatternInput{
		Name:      "LCSC",
		Pattern:   "C#####$",
		SearchURL: "https://lcsc.example/search?q={barcode}",
	}, uuid.Nil)
	require.NoError(t, err)
	assert.True(t, lcsc.Enabled)

	_, err = svc.Create(ctx, &SupplierPatternInput{
		Name:      "Archived",
		Pattern:   "C*****",
		SearchURL: "https://old.example/{barcode}",
		Enabled:   boolPtr(false),
	}, uuid.Nil)
	require.NoError(t, err)

	t.Run("match is case insensitive", func(t *testing.T) {
		m, err := svc.Match(ctx, "c12345")
		require.NoError(t, err)
		require.True(t, m.Matched)
		assert.Equal(t, "LCSC", m.Supplier.Name)
		assert.Equal(t, "https://lcsc.example/search?q=c12345", *m.SearchURL)
	})

	t.Run("disabled patterns are ignored", func(t *testing.T) {
		m, err := svc.Match(ctx, "CABCDE")
		require.NoError(t, err)
		assert.False(t, m.Matched)
		assert.Nil(t, m.SearchURL)
	})

	t.Run("template needs placeholder", func(t *testing.T) {
		_, err := svc.Create(ctx, &SupplierPatternInput{Name: "x", Pattern: "#", SearchURL: "https://x.example"}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidTemplate)

		_, err = svc.Update(ctx, lcsc.ID, &UpdateSupplierPatternInput{SearchURL: strPtr("https://x.example")}, uuid.Nil)
		assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidTemplate)
	})

	t.Run("update and list", func(t *testing.T) {
		updated, err := svc.Update(ctx, lcsc.ID, &UpdateSupplierPatternInput{Enabled: boolPtr(false)}, uuid.Nil)
		require.NoError(t, err)
		assert.False(t, updated.Enabled)

		enabled, err := svc.List(ctx, true)
		require.NoError(t, err)
		assert.Empty(t, enabled)

		all, err := svc.List(ctx, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, lcsc.ID))
		_, err := svc.Get(ctx, lcsc.ID)
		assertCode(t, err, apperror.KindNotFound, apperror.CodePatternNotFound)
	})

	t.Run("test without storing", func(t *testing.T) {
		res := svc.Test("LA######$", "la150177m")
		assert.True(t, res.Matches)
		assert.Equal(t, "Barcode 'la150177m' matches pattern 'LA######$'", res.Message)

		res = svc.Test("LA######$", "LB150177")
		assert.False(t, res.Matches)
		assert.Contains(t, res.Message, "does NOT match")
	})
}

func TestBarcodeSettings(t *testing.T) {
	ctx := context.Background()
	svc := NewBarcodeService(repository.NewSettingRepo(testutil.NewDB(t)))

	settings, err := svc.Settings(ctx)
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, model.SettingAutoLookupExternal, settings[0].Key)
	assert.Equal(t, "true", settings[0].Value)
	assert.Equal(t, model.SettingBarcodePattern, settings[1].Key)
	assert.Equal(t, "", settings[1].Value)

	_, err = svc.GetSetting(ctx, "colour")
	assertCode(t, err, apperror.KindNotFound, apperror.CodeSettingNotFound)
	_, err = svc.UpdateSetting(ctx, "colour", "blue")
	assertCode(t, err, apperror.KindNotFound, apperror.CodeSettingNotFound)

	class, err := svc.Classify(ctx, "5901234123457")
	require.NoError(t, err)
	assert.True(t, class.IsInternal, "no pattern means every code is internal")
	assert.False(t, class.ShouldLookup)

	_, err = svc.UpdateSetting(ctx, model.SettingBarcodePattern, "INV-#####")
	require.NoError(t, err)
	_, err = svc.UpdateSetting(ctx, model.SettingBarcodePattern, "INV-####")
	require.NoError(t, err)
	stored, err := svc.GetSetting(ctx, model.SettingBarcodePattern)
	require.NoError(t, err)
	assert.Equal(t, "INV-####", stored.Value)

	class, err = svc.Classify(ctx, "INV-0042")
	require.NoError(t, err)
	assert.True(t, class.IsInternal)
	assert.False(t, class.ShouldLookup)

	class, err = svc.Classify(ctx, "5901234123457")
	require.NoError(t, err)
	assert.False(t, class.IsInternal)
	assert.True(t, class.ShouldLookup)

	_, err = svc.UpdateSetting(ctx, model.SettingAutoLookupExternal, "false")
	require.NoError(t, err)
	class, err = svc.Classify(ctx, "5901234123457")
	require.NoError(t, err)
	assert.False(t, class.ShouldLookup)
}

func TestBarcodePatternTools(t *testing.T) {
	svc := NewBarcodeService(nil)

	res := svc.TestPattern("INV-#####", "INV-00042")
	assert.True(t, res.Matches)
	assert.True(t, res.IsInternal)

	res = svc.TestPattern("INV-#####", "5901234123457")
	assert.False(t, res.Matches)
	assert.Equal(t, "Barcode '5901234123457' does NOT match pattern - will trigger external lookup", res.Message)

	res = svc.TestPattern("", "anything")
	assert.True(t, res.Matches)
	assert.Contains(t, res.Message, "No pattern set")

	info := svc.PatternInfo("AB#*$")
	assert.Equal(t, "^AB[0-9]..?$", info.Regex)
	assert.Len(t, info.Examples, 5)
	assert.Equal(t, "1 digit(s), 1 any character(s), 1 optional character(s)", info.Description)
}

func TestWarehouses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.warehouses.Create(ctx, &WarehouseInput{}, uuid.Nil)
	assertCode(t, err, apperror.KindValidation, apperror.CodeInvalidInput)

	updated, err := f.warehouses.Update(ctx, f.warehouse.ID, &WarehouseInput{Name: "Main hall", Location: strPtr("Dock 3")}, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, "Main hall", updated.Name)
	assert.Equal(t, "Dock 3", *updated.Location)

	item := f.root(t, "W-1", model.TypeItem, 1)
	err = f.warehouses.Delete(ctx, f.warehouse.ID)
	assertCode(t, err, apperror.KindPreconditionFailed, apperror.CodeWarehouseInUse)

	require.NoError(t, f.entities.Delete(ctx, item.ID, false, uuid.Nil))
	require.NoError(t, f.warehouses.Delete(ctx, f.warehouse.ID))

	list, err := f.warehouses.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.warehouses.Get(ctx, f.warehouse.ID)
	assertCode(t, err, apperror.KindNotFound, apperror.CodeWarehouseNotFound)
}
