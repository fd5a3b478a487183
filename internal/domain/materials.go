package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaterialLine is a named, non-foam material on an estimate or in crew actuals
type MaterialLine struct {
	ItemID   *uuid.UUID `json:"itemId,omitempty"`
	Name     string     `json:"name" validate:"required,max=200"`
	Quantity float64    `json:"quantity" validate:"gte=0"`
	Unit     string     `json:"unit,omitempty" validate:"max=30"`
	UnitCost float64    `json:"unitCost,omitempty" validate:"gte=0"`
}

// MaterialSet is a quantity of foam sets plus named items
type MaterialSet struct {
	OpenCellSets   float64        `json:"openCellSets" validate:"gte=0"`
	ClosedCellSets float64        `json:"closedCellSets" validate:"gte=0"`
	Inventory      []MaterialLine `json:"inventory,omitempty" validate:"dive"`
}

// Clone returns a deep copy
func (m MaterialSet) Clone() MaterialSet {
	out := m
	if m.Inventory != nil {
		out.Inventory = make([]MaterialLine, len(m.Inventory))
		copy(out.Inventory, m.Inventory)
	}
	return out
}

// MaterialSnapshot is what an estimate requires, plus what was actually
// withdrawn from stock for it when it became a work order.
type MaterialSnapshot struct {
	MaterialSet
	Reserved *MaterialSet `json:"reserved,omitempty"`
}

// Required returns the required quantities without the reservation
func (m MaterialSnapshot) Required() MaterialSet {
	return m.MaterialSet.Clone()
}

// JobActuals are recorded once by the crew when a job is completed
type JobActuals struct {
	OpenCellSets   float64        `json:"openCellSets"`
	ClosedCellSets float64        `json:"closedCellSets"`
	Inventory      []MaterialLine `json:"inventory,omitempty"`
	LaborHours     float64        `json:"laborHours"`
	Notes          string         `json:"notes,omitempty"`
	CompletedBy    string         `json:"completedBy"`
	CompletedAt    time.Time      `json:"completedAt"`
}

// Usage returns the consumed materials
func (a JobActuals) Usage() MaterialSet {
	return MaterialSet{
		OpenCellSets:   a.OpenCellSets,
		ClosedCellSets: a.ClosedCellSets,
		Inventory:      a.Inventory,
	}.Clone()
}

// CalculationResults is the output of the job calculator. The core only
// reads the set counts, labor hours and price from it.
type CalculationResults struct {
	WallArea            float64 `json:"wallArea"`
	RoofArea            float64 `json:"roofArea"`
	TotalSprayArea      float64 `json:"totalSprayArea"`
	OpenCellBoardFeet   float64 `json:"openCellBoardFeet"`
	ClosedCellBoardFeet float64 `json:"closedCellBoardFeet"`
	OpenCellSets        float64 `json:"openCellSets"`
	ClosedCellSets      float64 `json:"closedCellSets"`
	LaborHours          float64 `json:"laborHours"`
	MaterialCost        float64 `json:"materialCost"`
	TotalCost           float64 `json:"totalCost"`
	TotalPrice          float64 `json:"totalPrice"`
}

// OtherExpense is a free-form job expense
type OtherExpense struct {
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

// JobExpenses are the misc per-job charges counted in cost of goods sold
type JobExpenses struct {
	TripCharge    float64      `json:"tripCharge"`
	FuelSurcharge float64      `json:"fuelSurcharge"`
	Other         OtherExpense `json:"other"`
	LaborHours    float64      `json:"laborHours"`
}

// FinancialSnapshot is written once when the estimate is paid
type FinancialSnapshot struct {
	Revenue       float64   `json:"revenue"`
	ChemicalCost  float64   `json:"chemicalCost"`
	LaborCost     float64   `json:"laborCost"`
	InventoryCost float64   `json:"inventoryCost"`
	MiscCost      float64   `json:"miscCost"`
	TotalCOGS     float64   `json:"totalCogs"`
	NetProfit     float64   `json:"netProfit"`
	Margin        float64   `json:"margin"`
	CalculatedAt  time.Time `json:"calculatedAt"`
}
