package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/inventory"
)

func TestReceivePurchaseOrder(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 1, 2, map[string]float64{"Tape": 4})

	po, err := f.warehouse.ReceivePurchaseOrder(f.admin, &domain.CreatePurchaseOrderRequest{
		VendorName: "Foam Supply Co",
		Lines: []domain.PurchaseOrderLineInput{
			{Kind: domain.PurchaseOrderLineOpenCell, Quantity: 5, UnitCost: 1900},
			{Kind: domain.PurchaseOrderLineClosedCell, Quantity: 1.5, UnitCost: 2500},
			{Kind: domain.PurchaseOrderLineInventory, Name: "Tape", Quantity: 6, UnitCost: 3.25},
			{Kind: domain.PurchaseOrderLineInventory, Name: "Poly Sheeting", Quantity: 2, Unit: "rolls", UnitCost: 40},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 9500.0+3750.0+19.5+80.0, po.TotalCost)
	require.Len(t, po.Lines, 4)
	assert.Equal(t, inventory.OpenCellMaterial, po.Lines[0].Name)
	for _, line := range po.Lines[2:] {
		assert.NotNil(t, line.ItemID)
	}

	w := f.warehouseState(t)
	assert.Equal(t, 6.0, w.OpenCellSets)
	assert.Equal(t, 3.5, w.ClosedCellSets)
	assert.Equal(t, 10.0, itemQuantity(w, "Tape"))
	assert.Equal(t, 2.0, itemQuantity(w, "Poly Sheeting"))
	for _, it := range w.Items {
		if it.Name == "Tape" {
			assert.Equal(t, 3.25, it.UnitCost)
		}
	}

	list, err := f.warehouse.ListPurchaseOrders(f.admin, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestReceivePurchaseOrder_RejectsBadLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.warehouse.ReceivePurchaseOrder(f.admin, &domain.CreatePurchaseOrderRequest{
		VendorName: "Foam Supply Co",
		Lines:      []domain.PurchaseOrderLineInput{{Kind: domain.PurchaseOrderLineInventory, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.warehouse.ReceivePurchaseOrder(f.crew, &domain.CreatePurchaseOrderRequest{
		VendorName: "Foam Supply Co",
		Lines:      []domain.PurchaseOrderLineInput{{Kind: domain.PurchaseOrderLineOpenCell, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, int64(0), f.countRows(t, &domain.PurchaseOrder{}))
}

func TestUpdateWarehouse_ReplacesItems(t *testing.T) {
	f := newFixture(t)
	f.stock(t, 3, 4, map[string]float64{"Tape": 1, "Foil": 2})

	w, err := f.warehouse.UpdateWarehouse(f.admin, &domain.UpdateWarehouseRequest{
		OpenCellSets:   3.333,
		ClosedCellSets: 4,
		Items:          []domain.WarehouseItemInput{{Name: "Foil", Quantity: 7, ReorderThreshold: 8}},
	})
	require.NoError(t, err)

	assert.Equal(t, 3.33, w.OpenCellSets)
	require.Len(t, w.Items, 1)
	assert.Equal(t, "Foil", w.Items[0].Name)
	assert.True(t, w.Items[0].BelowReorder)

	_, err = f.warehouse.UpdateWarehouse(f.admin, &domain.UpdateWarehouseRequest{
		Items: []domain.WarehouseItemInput{{Name: "Foil"}, {Name: "Foil "}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListProfitLoss_OfficeOnly(t *testing.T) {
	f := newFixture(t)
	_, err := f.warehouse.ListProfitLoss(f.crew, 1, 20)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdateSettings_KeepsOmittedSections(t *testing.T) {
	f := newFixture(t)

	_, err := f.settings.UpdateSettings(f.admin, &domain.UpdateSettingsRequest{
		Costs: &domain.CostSettings{OpenCell: 2100, ClosedCell: 2700, LaborRate: 90},
	})
	require.NoError(t, err)
	settings, err := f.settings.UpdateSettings(f.admin, &domain.UpdateSettingsRequest{
		Expenses: &domain.ExpenseDefaults{TripCharge: 75},
	})
	require.NoError(t, err)

	assert.Equal(t, 2100.0, settings.Costs.OpenCell)
	assert.Equal(t, 75.0, settings.Expenses.TripCharge)
	assert.Equal(t, domain.DefaultYieldSettings(), settings.Yields)

	_, err = f.settings.UpdateSettings(f.admin, &domain.UpdateSettingsRequest{
		Costs: &domain.CostSettings{OpenCell: -1},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateInvoiceNumber(t *testing.T) {
	f := newFixture(t)

	first, err := f.numbers.GenerateInvoiceNumber(f.admin, nil, testCompany)
	require.NoError(t, err)
	second, err := f.numbers.GenerateInvoiceNumber(f.admin, nil, testCompany)
	require.NoError(t, err)
	other, err := f.numbers.GenerateInvoiceNumber(f.admin, nil, "other-co")
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-0001", first)
	assert.Equal(t, "INV-2026-0002", second)
	assert.Equal(t, "INV-2026-0001", other)

	_, err = f.numbers.GenerateInvoiceNumber(f.admin, nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
