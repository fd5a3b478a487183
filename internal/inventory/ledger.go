package inventory

import (
	"time"

	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/quantity"
)

// Material names used for foam lines in usage logs and shortages
const (
	OpenCellMaterial   = "Open Cell Foam"
	ClosedCellMaterial = "Closed Cell Foam"
	FoamUnit           = "sets"
)

// Reconciliation is the outcome of comparing a reservation with crew actuals
type Reconciliation struct {
	Delta StockDelta
	// Items holds the per-item net movement, reserved minus actual
	Items []ItemDelta
}

// Shortage describes a material whose stock would go negative
type Shortage struct {
	Material  string  `json:"material"`
	Required  float64 `json:"required"`
	OnHand    float64 `json:"onHand"`
	Shortfall float64 `json:"shortfall"`
}

// Normalize rounds every quantity and merges inventory lines that share a name.
// Lines with no quantity left are dropped.
func Normalize(m domain.MaterialSet) domain.MaterialSet {
	out := domain.MaterialSet{
		OpenCellSets:   quantity.Round2(m.OpenCellSets),
		ClosedCellSets: quantity.Round2(m.ClosedCellSets),
	}
	index := make(map[string]int)
	for _, line := range m.Inventory {
		key := domain.ItemKey(line.Name)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out.Inventory[i].Quantity = quantity.Add(out.Inventory[i].Quantity, line.Quantity)
			continue
		}
		line.Name = key
		line.Quantity = quantity.Round2(line.Quantity)
		index[key] = len(out.Inventory)
		out.Inventory = append(out.Inventory, line)
	}
	kept := out.Inventory[:0]
	for _, line := range out.Inventory {
		if !quantity.IsZero(line.Quantity) {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	out.Inventory = kept
	return out
}

// Reserve withdraws the required materials. The returned reservation is
// exactly what the delta subtracts. Negative resulting stock is allowed.
func Reserve(required domain.MaterialSet) (StockDelta, domain.MaterialSet) {
	reservation := Normalize(required)
	acc := newAccumulator()
	acc.addMaterials(reservation, -1)
	return acc.delta(), reservation
}

// AdjustReservation moves stock by old minus new for every material and
// makes newRequired the reservation. A zero delta means no stock write.
func AdjustReservation(oldReserved, newRequired domain.MaterialSet) (StockDelta, domain.MaterialSet) {
	reservation := Normalize(newRequired)
	acc := newAccumulator()
	acc.addMaterials(Normalize(oldReserved), 1)
	acc.addMaterials(reservation, -1)
	return acc.delta(), reservation
}

// Release returns a reservation to stock. Estimates saved before reservations
// were tracked have no baseline; for those only the named inventory lines of
// materials are returned and foam sets stay consumed.
func Release(reserved *domain.MaterialSet, materials domain.MaterialSet) StockDelta {
	acc := newAccumulator()
	if reserved != nil {
		acc.addMaterials(Normalize(*reserved), 1)
		return acc.delta()
	}
	fallback := Normalize(materials)
	acc.addSet(0, 0, linesToDeltas(fallback.Inventory), 1)
	return acc.delta()
}

// Reconcile returns the residual of baseline over actual to stock. A positive
// movement means less was used than reserved.
func Reconcile(baseline, actual domain.MaterialSet) Reconciliation {
	acc := newAccumulator()
	acc.addMaterials(Normalize(baseline), 1)
	acc.addMaterials(Normalize(actual), -1)
	d := acc.delta()
	return Reconciliation{Delta: d, Items: d.Items}
}

// Shortages lists every material that applying delta to w would drive below zero
func Shortages(w domain.Warehouse, delta StockDelta) []Shortage {
	var out []Shortage
	check := func(name string, onHand, change float64) {
		if change >= 0 {
			return
		}
		after := quantity.Add(onHand, change)
		if after >= 0 {
			return
		}
		out = append(out, Shortage{
			Material:  name,
			Required:  quantity.Round2(-change),
			OnHand:    quantity.Round2(onHand),
			Shortfall: quantity.Round2(-after),
		})
	}
	check(OpenCellMaterial, w.OpenCellSets, delta.OpenCellSets)
	check(ClosedCellMaterial, w.ClosedCellSets, delta.ClosedCellSets)
	for _, it := range delta.Items {
		onHand := 0.0
		if item := w.ItemByName(it.Name); item != nil {
			onHand = item.Quantity
		}
		check(it.Name, onHand, it.Quantity)
	}
	return out
}

// UsageEntries builds one audit row per actual line with a positive quantity
func UsageEntries(est *domain.Estimate, actuals domain.JobActuals) []domain.MaterialUsageLog {
	at := actuals.CompletedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	entry := func(name, unit string, qty float64) domain.MaterialUsageLog {
		return domain.MaterialUsageLog{
			CompanyID:    est.CompanyID,
			EstimateID:   est.ID,
			JobName:      est.CustomerName,
			MaterialName: name,
			Quantity:     quantity.Round2(qty),
			Unit:         unit,
			LoggedBy:     actuals.CompletedBy,
			LoggedAt:     at,
		}
	}

	var out []domain.MaterialUsageLog
	if quantity.Positive(actuals.OpenCellSets) {
		out = append(out, entry(OpenCellMaterial, FoamUnit, actuals.OpenCellSets))
	}
	if quantity.Positive(actuals.ClosedCellSets) {
		out = append(out, entry(ClosedCellMaterial, FoamUnit, actuals.ClosedCellSets))
	}
	for _, line := range actuals.Inventory {
		if quantity.Positive(line.Quantity) {
			out = append(out, entry(domain.ItemKey(line.Name), line.Unit, line.Quantity))
		}
	}
	return out
}

// Receive adds every purchase-order line to stock
func Receive(lines []domain.PurchaseOrderLine) StockDelta {
	acc := newAccumulator()
	for _, line := range lines {
		switch line.Kind {
		case domain.PurchaseOrderLineOpenCell:
			acc.open = quantity.Add(acc.open, line.Quantity)
		case domain.PurchaseOrderLineClosedCell:
			acc.closed = quantity.Add(acc.closed, line.Quantity)
		case domain.PurchaseOrderLineInventory:
			acc.addItem(line.Name, line.Quantity)
		}
	}
	return acc.delta()
}
