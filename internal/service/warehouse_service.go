package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/inventory"
	"github.com/sprayline/foamops-api/internal/lock"
	"github.com/sprayline/foamops-api/internal/mapper"
	"github.com/sprayline/foamops-api/internal/metrics"
	"github.com/sprayline/foamops-api/internal/quantity"
	"github.com/sprayline/foamops-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WarehouseService owns the tenant's stock outside of estimate transitions:
// manual edits, purchase-order receipts and the audit listings
type WarehouseService struct {
	db            *gorm.DB
	stock         stockTx
	warehouseRepo *repository.WarehouseRepository
	poRepo        *repository.PurchaseOrderRepository
	usageRepo     *repository.UsageLogRepository
	profitRepo    *repository.ProfitLossRepository
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewWarehouseService creates a new WarehouseService
func NewWarehouseService(
	db *gorm.DB,
	locker lock.Locker,
	warehouseRepo *repository.WarehouseRepository,
	poRepo *repository.PurchaseOrderRepository,
	usageRepo *repository.UsageLogRepository,
	profitRepo *repository.ProfitLossRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *WarehouseService {
	return &WarehouseService{
		db:            db,
		stock:         stockTx{db: db, locker: locker},
		warehouseRepo: warehouseRepo,
		poRepo:        poRepo,
		usageRepo:     usageRepo,
		profitRepo:    profitRepo,
		metrics:       m,
		logger:        logger,
	}
}

// GetWarehouse returns the caller's stock
func (s *WarehouseService) GetWarehouse(ctx context.Context) (*domain.WarehouseDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	w, err := s.warehouseRepo.Get(ctx, nil, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load warehouse: %w", err)
	}
	dto := mapper.ToWarehouseDTO(w)
	return &dto, nil
}

// UpdateWarehouse overwrites counters and items with an administrator's count
func (s *WarehouseService) UpdateWarehouse(ctx context.Context, req *domain.UpdateWarehouseRequest) (*domain.WarehouseDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	seen := make(map[string]bool, len(req.Items))
	w := &domain.Warehouse{
		CompanyID:      user.CompanyID,
		OpenCellSets:   quantity.Round2(req.OpenCellSets),
		ClosedCellSets: quantity.Round2(req.ClosedCellSets),
	}
	for _, in := range req.Items {
		name := domain.ItemKey(in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: item name is required", ErrInvalidInput)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("%w: duplicate item %q", ErrInvalidInput, name)
		}
		seen[strings.ToLower(name)] = true

		item := domain.WarehouseItem{
			CompanyID:        user.CompanyID,
			Name:             name,
			Quantity:         quantity.Round2(in.Quantity),
			Unit:             in.Unit,
			UnitCost:         quantity.Round2(in.UnitCost),
			ReorderThreshold: quantity.Round2(in.ReorderThreshold),
		}
		if in.ID != nil {
			item.ID = *in.ID
		}
		w.Items = append(w.Items, item)
	}

	var saved *domain.Warehouse
	err = s.stock.run(ctx, user.CompanyID, func(tx *gorm.DB) error {
		if err := s.warehouseRepo.Replace(ctx, tx, w); err != nil {
			return err
		}
		saved, err = s.warehouseRepo.Get(ctx, tx, user.CompanyID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update warehouse: %w", err)
	}

	s.metrics.StockMutation("manual")
	s.logger.Info("warehouse edited",
		zap.String("company_id", string(user.CompanyID)),
		zap.String("by", user.Actor()),
		zap.Int("items", len(saved.Items)))

	dto := mapper.ToWarehouseDTO(saved)
	return &dto, nil
}

// ReceivePurchaseOrder records a replenishment and adds it to stock in one
// transaction. Named lines for items the warehouse does not carry yet create them.
func (s *WarehouseService) ReceivePurchaseOrder(ctx context.Context, req *domain.CreatePurchaseOrderRequest) (*domain.PurchaseOrderDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	lines := make([]domain.PurchaseOrderLine, 0, len(req.Lines))
	totals := make([]float64, 0, len(req.Lines))
	for _, in := range req.Lines {
		line := domain.PurchaseOrderLine{
			Kind:     in.Kind,
			ItemID:   in.ItemID,
			Name:     domain.ItemKey(in.Name),
			Quantity: quantity.Round2(in.Quantity),
			Unit:     in.Unit,
			UnitCost: quantity.Round2(in.UnitCost),
		}
		switch in.Kind {
		case domain.PurchaseOrderLineOpenCell:
			line.Name, line.Unit = inventory.OpenCellMaterial, inventory.FoamUnit
		case domain.PurchaseOrderLineClosedCell:
			line.Name, line.Unit = inventory.ClosedCellMaterial, inventory.FoamUnit
		case domain.PurchaseOrderLineInventory:
			if line.Name == "" {
				return nil, fmt.Errorf("%w: inventory line needs a name", ErrInvalidInput)
			}
		default:
			return nil, fmt.Errorf("%w: unknown line kind %q", ErrInvalidInput, in.Kind)
		}
		if !quantity.Positive(line.Quantity) {
			return nil, fmt.Errorf("%w: line quantity must be positive", ErrInvalidInput)
		}
		line.LineTotal = quantity.Mul(line.Quantity, line.UnitCost)
		totals = append(totals, line.LineTotal)
		lines = append(lines, line)
	}

	orderDate := nowUTC()
	if req.OrderDate != nil {
		orderDate = req.OrderDate.UTC()
	}
	po := &domain.PurchaseOrder{
		CompanyID:     user.CompanyID,
		VendorName:    strings.TrimSpace(req.VendorName),
		OrderDate:     orderDate,
		Lines:         datatypes.NewJSONType(lines),
		TotalCost:     quantity.Sum(totals...),
		Notes:         req.Notes,
		CreatedByName: user.Actor(),
	}

	err = s.stock.run(ctx, user.CompanyID, func(tx *gorm.DB) error {
		w, err := s.warehouseRepo.Get(ctx, tx, user.CompanyID)
		if err != nil {
			return err
		}
		for i := range lines {
			line := &lines[i]
			if line.Kind != domain.PurchaseOrderLineInventory {
				continue
			}
			if existing := w.ItemByName(line.Name); existing != nil {
				id := existing.ID
				line.ItemID = &id
				if quantity.Positive(line.UnitCost) {
					if err := s.warehouseRepo.SetItemUnitCost(ctx, tx, user.CompanyID, line.Name, line.UnitCost); err != nil {
						return err
					}
				}
				continue
			}
			item := &domain.WarehouseItem{
				CompanyID: user.CompanyID,
				Name:      line.Name,
				Unit:      line.Unit,
				UnitCost:  line.UnitCost,
				Position:  len(w.Items),
			}
			if err := s.warehouseRepo.CreateItem(ctx, tx, item); err != nil {
				return fmt.Errorf("failed to create item %q: %w", line.Name, err)
			}
			w.Items = append(w.Items, *item)
			id := item.ID
			line.ItemID = &id
		}

		po.Lines = datatypes.NewJSONType(lines)
		if err := s.poRepo.Create(ctx, tx, po); err != nil {
			return fmt.Errorf("failed to save purchase order: %w", err)
		}

		missing, err := s.warehouseRepo.ApplyDelta(ctx, tx, user.CompanyID, inventory.Receive(lines))
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("purchase order items not in warehouse: %s", strings.Join(missing, ", "))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StockMutation("receive")
	s.logger.Info("purchase order received",
		zap.String("purchase_order_id", po.ID.String()),
		zap.String("company_id", string(user.CompanyID)),
		zap.Float64("total_cost", po.TotalCost))

	dto := mapper.ToPurchaseOrderDTO(po)
	return &dto, nil
}

// ListPurchaseOrders returns receipts, newest first
func (s *WarehouseService) ListPurchaseOrders(ctx context.Context, page, pageSize int) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	orders, total, err := s.poRepo.List(ctx, nil, user.CompanyID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	dtos := make([]domain.PurchaseOrderDTO, 0, len(orders))
	for i := range orders {
		dtos = append(dtos, mapper.ToPurchaseOrderDTO(&orders[i]))
	}
	return paginated(dtos, total, page, pageSize), nil
}

// ListUsageLog returns material usage, optionally for one estimate
func (s *WarehouseService) ListUsageLog(ctx context.Context, estimateID *uuid.UUID, page, pageSize int) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	entries, total, err := s.usageRepo.List(ctx, nil, user.CompanyID, estimateID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage log: %w", err)
	}
	dtos := make([]domain.UsageLogDTO, 0, len(entries))
	for i := range entries {
		dtos = append(dtos, mapper.ToUsageLogDTO(&entries[i]))
	}
	return paginated(dtos, total, page, pageSize), nil
}

// ListProfitLoss returns paid-job records. Office staff only.
func (s *WarehouseService) ListProfitLoss(ctx context.Context, page, pageSize int) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	page, pageSize = normalizePage(page, pageSize)

	records, total, err := s.profitRepo.List(ctx, nil, user.CompanyID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list profit/loss records: %w", err)
	}
	dtos := make([]domain.ProfitLossDTO, 0, len(records))
	for i := range records {
		dtos = append(dtos, mapper.ToProfitLossDTO(&records[i]))
	}
	return paginated(dtos, total, page, pageSize), nil
}
