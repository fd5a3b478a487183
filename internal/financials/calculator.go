// Package financials computes the cost of goods sold and margin snapshot
// recorded when an estimate is paid.
package financials

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/quantity"
)

// MarginPlaces is the precision margins are stored with
const MarginPlaces = 4

// Input is everything the calculator reads
type Input struct {
	Revenue    float64
	Usage      domain.MaterialSet
	LaborHours float64
	// LaborRate overrides Costs.LaborRate when set
	LaborRate *float64
	Costs     domain.CostSettings
	Expenses  domain.JobExpenses
	// ItemCosts holds warehouse unit costs by item name, used for
	// inventory lines that carry no cost of their own
	ItemCosts map[string]float64
}

// InputFromEstimate prefers crew actuals over estimated materials
func InputFromEstimate(est *domain.Estimate, costs domain.CostSettings, items []domain.WarehouseItem) Input {
	expenses := est.Expenses.Data()
	in := Input{
		Revenue:   est.TotalValue,
		LaborRate: est.LaborRate,
		Costs:     costs,
		Expenses:  expenses,
		ItemCosts: make(map[string]float64, len(items)),
	}
	for _, it := range items {
		in.ItemCosts[domain.ItemKey(it.Name)] = it.UnitCost
	}

	if actuals := est.Actuals.Data(); actuals != nil {
		in.Usage = actuals.Usage()
		in.LaborHours = actuals.LaborHours
		return in
	}

	in.Usage = est.Materials.Data().Required()
	in.LaborHours = expenses.LaborHours
	if in.LaborHours == 0 {
		in.LaborHours = est.Results.Data().LaborHours
	}
	return in
}

// Calculate builds the snapshot. Every monetary value is rounded to cents
// and margin is zero when there is no revenue.
func Calculate(in Input, at time.Time) domain.FinancialSnapshot {
	chem := quantity.Add(
		quantity.Mul(in.Usage.OpenCellSets, in.Costs.OpenCell),
		quantity.Mul(in.Usage.ClosedCellSets, in.Costs.ClosedCell),
	)

	rate := in.Costs.LaborRate
	if in.LaborRate != nil {
		rate = *in.LaborRate
	}
	labor := quantity.Mul(in.LaborHours, rate)

	inventory := 0.0
	for _, line := range in.Usage.Inventory {
		unitCost := line.UnitCost
		if unitCost == 0 {
			unitCost = in.ItemCosts[domain.ItemKey(line.Name)]
		}
		inventory = quantity.Add(inventory, quantity.Mul(line.Quantity, unitCost))
	}

	misc := quantity.Sum(in.Expenses.TripCharge, in.Expenses.FuelSurcharge, in.Expenses.Other.Amount)
	revenue := quantity.Round2(in.Revenue)
	cogs := quantity.Sum(chem, labor, inventory, misc)
	net := quantity.Sub(revenue, cogs)

	return domain.FinancialSnapshot{
		Revenue:       revenue,
		ChemicalCost:  chem,
		LaborCost:     labor,
		InventoryCost: inventory,
		MiscCost:      misc,
		TotalCOGS:     cogs,
		NetProfit:     net,
		Margin:        margin(net, revenue),
		CalculatedAt:  at,
	}
}

func margin(net, revenue float64) float64 {
	if revenue <= 0 {
		return 0
	}
	m, _ := decimal.NewFromFloat(net).DivRound(decimal.NewFromFloat(revenue), MarginPlaces).Float64()
	return m
}

// Record turns a snapshot into the profit/loss row written alongside it
func Record(est *domain.Estimate, snap domain.FinancialSnapshot) domain.ProfitLossRecord {
	return domain.ProfitLossRecord{
		CompanyID:     est.CompanyID,
		EstimateID:    est.ID,
		CustomerName:  est.CustomerName,
		InvoiceNumber: est.InvoiceNumber,
		Revenue:       snap.Revenue,
		ChemicalCost:  snap.ChemicalCost,
		LaborCost:     snap.LaborCost,
		InventoryCost: snap.InventoryCost,
		MiscCost:      snap.MiscCost,
		TotalCOGS:     snap.TotalCOGS,
		NetProfit:     snap.NetProfit,
		Margin:        snap.Margin,
		RecordedAt:    snap.CalculatedAt,
	}
}
