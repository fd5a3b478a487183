// Package inventory computes how warehouse stock must move when estimates
// reserve, adjust, release and reconcile materials. It only decides the
// deltas; applying them to persistent stock is the repository's job.
package inventory

import (
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/quantity"
)

// ItemDelta is a signed change to one named warehouse item
type ItemDelta struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// StockDelta is a signed change to a tenant's warehouse. Positive values
// return stock, negative values consume it.
type StockDelta struct {
	OpenCellSets   float64     `json:"openCellSets"`
	ClosedCellSets float64     `json:"closedCellSets"`
	Items          []ItemDelta `json:"items,omitempty"`
}

// IsZero reports whether applying the delta would change nothing
func (d StockDelta) IsZero() bool {
	if !quantity.IsZero(d.OpenCellSets) || !quantity.IsZero(d.ClosedCellSets) {
		return false
	}
	for _, it := range d.Items {
		if !quantity.IsZero(it.Quantity) {
			return false
		}
	}
	return true
}

// Add combines two deltas
func (d StockDelta) Add(other StockDelta) StockDelta {
	acc := newAccumulator()
	acc.addSet(d.OpenCellSets, d.ClosedCellSets, d.Items, 1)
	acc.addSet(other.OpenCellSets, other.ClosedCellSets, other.Items, 1)
	return acc.delta()
}

// Negate flips the direction of every movement
func (d StockDelta) Negate() StockDelta {
	out := StockDelta{
		OpenCellSets:   quantity.Round2(-d.OpenCellSets),
		ClosedCellSets: quantity.Round2(-d.ClosedCellSets),
	}
	for _, it := range d.Items {
		out.Items = append(out.Items, ItemDelta{Name: it.Name, Quantity: quantity.Round2(-it.Quantity)})
	}
	return out
}

// ApplyTo returns a copy of w with the delta applied. Names with no
// matching warehouse item are skipped and returned.
func (d StockDelta) ApplyTo(w domain.Warehouse) (domain.Warehouse, []string) {
	out := w
	out.Items = make([]domain.WarehouseItem, len(w.Items))
	copy(out.Items, w.Items)

	out.OpenCellSets = quantity.Add(out.OpenCellSets, d.OpenCellSets)
	out.ClosedCellSets = quantity.Add(out.ClosedCellSets, d.ClosedCellSets)

	var missing []string
	for _, it := range d.Items {
		if quantity.IsZero(it.Quantity) {
			continue
		}
		item := out.ItemByName(it.Name)
		if item == nil {
			missing = append(missing, it.Name)
			continue
		}
		item.Quantity = quantity.Add(item.Quantity, it.Quantity)
	}
	return out, missing
}

// accumulator sums signed quantities per item name, keeping first-seen order
type accumulator struct {
	open   float64
	closed float64
	order  []string
	items  map[string]float64
}

func newAccumulator() *accumulator {
	return &accumulator{items: make(map[string]float64)}
}

func (a *accumulator) addItem(name string, qty float64) {
	key := domain.ItemKey(name)
	if key == "" {
		return
	}
	if _, ok := a.items[key]; !ok {
		a.order = append(a.order, key)
	}
	a.items[key] = quantity.Add(a.items[key], qty)
}

func (a *accumulator) addSet(open, closed float64, items []ItemDelta, sign float64) {
	a.open = quantity.Add(a.open, quantity.Mul(open, sign))
	a.closed = quantity.Add(a.closed, quantity.Mul(closed, sign))
	for _, it := range items {
		a.addItem(it.Name, quantity.Mul(it.Quantity, sign))
	}
}

func (a *accumulator) addMaterials(m domain.MaterialSet, sign float64) {
	a.addSet(m.OpenCellSets, m.ClosedCellSets, linesToDeltas(m.Inventory), sign)
}

// delta drops items whose net change rounds to zero
func (a *accumulator) delta() StockDelta {
	d := StockDelta{OpenCellSets: a.open, ClosedCellSets: a.closed}
	for _, key := range a.order {
		qty := a.items[key]
		if quantity.IsZero(qty) {
			continue
		}
		d.Items = append(d.Items, ItemDelta{Name: key, Quantity: qty})
	}
	return d
}

func linesToDeltas(lines []domain.MaterialLine) []ItemDelta {
	out := make([]ItemDelta, 0, len(lines))
	for _, l := range lines {
		out = append(out, ItemDelta{Name: l.Name, Quantity: l.Quantity})
	}
	return out
}
