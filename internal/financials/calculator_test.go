package financials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"github.com/sprayline/foamops-api/internal/domain"
)

var paidAt = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func TestCalculate_Breakdown(t *testing.T) {
	in := Input{
		Revenue: 15000,
		Usage: domain.MaterialSet{
			OpenCellSets:   4.5,
			ClosedCellSets: 1,
			Inventory: []domain.MaterialLine{
				{Name: "Tape", Quantity: 3, UnitCost: 4.5},
				{Name: "Plastic", Quantity: 2},
			},
		},
		LaborHours: 10,
		Costs:      domain.CostSettings{OpenCell: 2000, ClosedCell: 2600, LaborRate: 50},
		Expenses: domain.JobExpenses{
			TripCharge:    100,
			FuelSurcharge: 25.5,
			Other:         domain.OtherExpense{Description: "permit", Amount: 40},
		},
		ItemCosts: map[string]float64{"Plastic": 12.25},
	}

	snap := Calculate(in, paidAt)

	assert.Equal(t, 11600.0, snap.ChemicalCost)
	assert.Equal(t, 500.0, snap.LaborCost)
	assert.Equal(t, 38.0, snap.InventoryCost)
	assert.Equal(t, 165.5, snap.MiscCost)
	assert.Equal(t, 12303.5, snap.TotalCOGS)
	assert.Equal(t, 2696.5, snap.NetProfit)
	assert.Equal(t, 0.1798, snap.Margin)
	assert.Equal(t, paidAt, snap.CalculatedAt)
}

func TestCalculate_LaborRateOverride(t *testing.T) {
	rate := 80.0
	snap := Calculate(Input{
		Revenue:    1000,
		LaborHours: 2.5,
		LaborRate:  &rate,
		Costs:      domain.CostSettings{LaborRate: 50},
	}, paidAt)
	assert.Equal(t, 200.0, snap.LaborCost)
}

func TestCalculate_ZeroRevenueHasZeroMargin(t *testing.T) {
	snap := Calculate(Input{
		Revenue: 0,
		Usage:   domain.MaterialSet{OpenCellSets: 1},
		Costs:   domain.CostSettings{OpenCell: 2000},
	}, paidAt)
	assert.Equal(t, 0.0, snap.Margin)
	assert.Equal(t, -2000.0, snap.NetProfit)
}

func TestInputFromEstimate_PrefersActuals(t *testing.T) {
	est := &domain.Estimate{TotalValue: 12000}
	est.Materials = datatypes.NewJSONType(domain.MaterialSnapshot{
		MaterialSet: domain.MaterialSet{OpenCellSets: 4},
	})
	est.Actuals = datatypes.NewJSONType(&domain.JobActuals{OpenCellSets: 4.5, LaborHours: 6})

	in := InputFromEstimate(est, domain.CostSettings{OpenCell: 2000}, nil)
	snap := Calculate(in, paidAt)

	assert.Equal(t, 9000.0, snap.ChemicalCost)
	assert.Equal(t, 6.0, in.LaborHours)
}

func TestInputFromEstimate_FallsBackToMaterials(t *testing.T) {
	est := &domain.Estimate{TotalValue: 12000}
	est.Materials = datatypes.NewJSONType(domain.MaterialSnapshot{
		MaterialSet: domain.MaterialSet{
			OpenCellSets: 4,
			Inventory:    []domain.MaterialLine{{Name: "Tape", Quantity: 2}},
		},
	})
	est.Results = datatypes.NewJSONType(domain.CalculationResults{LaborHours: 8})
	est.Actuals = datatypes.NewJSONType[*domain.JobActuals](nil)

	in := InputFromEstimate(est, domain.CostSettings{OpenCell: 2000}, []domain.WarehouseItem{{Name: "Tape", UnitCost: 5}})
	snap := Calculate(in, paidAt)

	assert.Equal(t, 8000.0, snap.ChemicalCost)
	assert.Equal(t, 10.0, snap.InventoryCost)
	assert.Equal(t, 8.0, in.LaborHours)
}

func TestRecord(t *testing.T) {
	est := &domain.Estimate{CompanyID: "acme", CustomerName: "Jane", InvoiceNumber: "INV-2026-0001"}
	snap := Calculate(Input{Revenue: 100}, paidAt)
	rec := Record(est, snap)
	assert.Equal(t, domain.CompanyID("acme"), rec.CompanyID)
	assert.Equal(t, 100.0, rec.NetProfit)
	assert.Equal(t, 1.0, rec.Margin)
	assert.Equal(t, paidAt, rec.RecordedAt)
}
