package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/inventory"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// roundedAdd adds a bound delta to a 2-decimal column in one statement.
// The cast keeps ROUND valid on postgres when the parameter arrives as float.
const roundedAdd = "ROUND(CAST(%s + ? AS NUMERIC), 2)"

// WarehouseRepository owns the per-tenant stock row and its named items.
// All stock movements are relative updates so concurrent writers never
// overwrite each other's changes.
type WarehouseRepository struct {
	db *gorm.DB
}

func NewWarehouseRepository(db *gorm.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// Ensure creates the warehouse row for a company if it does not exist yet
func (r *WarehouseRepository) Ensure(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID) error {
	w := domain.Warehouse{CompanyID: companyID, UpdatedAt: time.Now().UTC()}
	return conn(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&w).Error
}

// Get loads the warehouse with its items, creating an empty one on first use
func (r *WarehouseRepository) Get(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID) (*domain.Warehouse, error) {
	if err := r.Ensure(ctx, tx, companyID); err != nil {
		return nil, fmt.Errorf("failed to ensure warehouse: %w", err)
	}

	db := conn(r.db, tx).WithContext(ctx)
	var w domain.Warehouse
	if err := db.Where("company_id = ?", companyID).First(&w).Error; err != nil {
		return nil, err
	}

	items, err := r.ListItems(ctx, tx, companyID)
	if err != nil {
		return nil, err
	}
	w.Items = items
	return &w, nil
}

func (r *WarehouseRepository) ListItems(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID) ([]domain.WarehouseItem, error) {
	var items []domain.WarehouseItem
	err := conn(r.db, tx).WithContext(ctx).
		Scopes(ForCompany(companyID)).
		Order("position ASC, name ASC").
		Find(&items).Error
	return items, err
}

// ApplyDelta moves stock relative to its current value. Item deltas whose
// name matches no warehouse item are skipped and returned.
func (r *WarehouseRepository) ApplyDelta(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, delta inventory.StockDelta) ([]string, error) {
	if err := r.Ensure(ctx, tx, companyID); err != nil {
		return nil, fmt.Errorf("failed to ensure warehouse: %w", err)
	}
	db := conn(r.db, tx).WithContext(ctx)

	if delta.OpenCellSets != 0 || delta.ClosedCellSets != 0 {
		err := db.Model(&domain.Warehouse{}).
			Where("company_id = ?", companyID).
			Updates(map[string]interface{}{
				"open_cell_sets":   gorm.Expr(fmt.Sprintf(roundedAdd, "open_cell_sets"), delta.OpenCellSets),
				"closed_cell_sets": gorm.Expr(fmt.Sprintf(roundedAdd, "closed_cell_sets"), delta.ClosedCellSets),
				"updated_at":       time.Now().UTC(),
			}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to update foam stock: %w", err)
		}
	}

	var missing []string
	for _, it := range delta.Items {
		if it.Quantity == 0 {
			continue
		}
		result := db.Model(&domain.WarehouseItem{}).
			Where("company_id = ? AND name = ?", companyID, domain.ItemKey(it.Name)).
			Updates(map[string]interface{}{
				"quantity":   gorm.Expr(fmt.Sprintf(roundedAdd, "quantity"), it.Quantity),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update item %q: %w", it.Name, result.Error)
		}
		if result.RowsAffected == 0 {
			missing = append(missing, it.Name)
		}
	}
	return missing, nil
}

// CreateItem adds a named item to a company's warehouse
func (r *WarehouseRepository) CreateItem(ctx context.Context, tx *gorm.DB, item *domain.WarehouseItem) error {
	item.Name = domain.ItemKey(item.Name)
	return conn(r.db, tx).WithContext(ctx).Create(item).Error
}

// SetItemUnitCost records the latest purchase price of an item
func (r *WarehouseRepository) SetItemUnitCost(ctx context.Context, tx *gorm.DB, companyID domain.CompanyID, name string, unitCost float64) error {
	return conn(r.db, tx).WithContext(ctx).
		Model(&domain.WarehouseItem{}).
		Where("company_id = ? AND name = ?", companyID, domain.ItemKey(name)).
		Update("unit_cost", unitCost).Error
}

// Replace overwrites counters and the item list with an administrator's edit.
// Items missing from w are removed; items with an unknown or empty ID are created.
func (r *WarehouseRepository) Replace(ctx context.Context, tx *gorm.DB, w *domain.Warehouse) error {
	if err := r.Ensure(ctx, tx, w.CompanyID); err != nil {
		return fmt.Errorf("failed to ensure warehouse: %w", err)
	}
	db := conn(r.db, tx).WithContext(ctx)

	err := db.Model(&domain.Warehouse{}).
		Where("company_id = ?", w.CompanyID).
		Updates(map[string]interface{}{
			"open_cell_sets":   w.OpenCellSets,
			"closed_cell_sets": w.ClosedCellSets,
			"updated_at":       time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update foam stock: %w", err)
	}

	existing, err := r.ListItems(ctx, tx, w.CompanyID)
	if err != nil {
		return err
	}
	known := make(map[uuid.UUID]bool, len(existing))
	for _, it := range existing {
		known[it.ID] = true
	}
	keep := make(map[uuid.UUID]bool, len(w.Items))
	for _, it := range w.Items {
		if known[it.ID] {
			keep[it.ID] = true
		}
	}

	// Deletes go first so a removed item's name can be reused by a new one
	for _, it := range existing {
		if !keep[it.ID] {
			if err := db.Delete(&domain.WarehouseItem{}, "id = ?", it.ID).Error; err != nil {
				return fmt.Errorf("failed to delete item %q: %w", it.Name, err)
			}
		}
	}

	for i := range w.Items {
		item := &w.Items[i]
		item.CompanyID = w.CompanyID
		item.Name = domain.ItemKey(item.Name)
		item.Position = i
		if keep[item.ID] {
			err := db.Model(&domain.WarehouseItem{}).
				Where("company_id = ? AND id = ?", w.CompanyID, item.ID).
				Updates(map[string]interface{}{
					"name":              item.Name,
					"quantity":          item.Quantity,
					"unit":              item.Unit,
					"unit_cost":         item.UnitCost,
					"reorder_threshold": item.ReorderThreshold,
					"position":          item.Position,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to update item %q: %w", item.Name, err)
			}
			continue
		}
		item.ID = uuid.Nil
		if err := db.Create(item).Error; err != nil {
			return fmt.Errorf("failed to create item %q: %w", item.Name, err)
		}
	}
	return nil
}
