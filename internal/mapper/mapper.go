package mapper

import (
	"time"

	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/inventory"
	"gorm.io/datatypes"
)

// TimeFormat is the ISO 8601 layout used in every DTO
const TimeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// ParseTime reads a DTO timestamp; an empty or malformed value yields nil
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// ToEstimateDTO converts Estimate to EstimateDTO
func ToEstimateDTO(est *domain.Estimate) domain.EstimateDTO {
	return domain.EstimateDTO{
		ID:              est.ID,
		CustomerName:    est.CustomerName,
		JobAddress:      est.JobAddress,
		Status:          est.Status,
		ExecutionStatus: est.ExecutionStatus,
		TotalValue:      est.TotalValue,
		LaborRate:       est.LaborRate,
		Results:         est.Results.Data(),
		Materials:       est.Materials.Data(),
		Actuals:         est.Actuals.Data(),
		Financials:      est.Financials.Data(),
		Expenses:        est.Expenses.Data(),
		InvoiceNumber:   est.InvoiceNumber,
		InvoiceDate:     formatTimePtr(est.InvoiceDate),
		PaidDate:        formatTimePtr(est.PaidDate),
		WorkOrderURL:    est.WorkOrderURL,
		InvoiceURL:      est.InvoiceURL,
		Notes:           est.Notes,
		Version:         est.Version,
		CreatedByName:   est.CreatedByName,
		UpdatedByName:   est.UpdatedByName,
		CreatedAt:       formatTime(est.CreatedAt),
		UpdatedAt:       formatTime(est.UpdatedAt),
	}
}

// ToEstimateDTOs converts a slice of estimates
func ToEstimateDTOs(estimates []domain.Estimate) []domain.EstimateDTO {
	out := make([]domain.EstimateDTO, 0, len(estimates))
	for i := range estimates {
		out = append(out, ToEstimateDTO(&estimates[i]))
	}
	return out
}

// EstimateFromDTO rebuilds an estimate from a synced DTO. Server-owned
// fields (version, document URLs) are left for the caller to decide.
func EstimateFromDTO(companyID domain.CompanyID, dto domain.EstimateDTO) *domain.Estimate {
	est := &domain.Estimate{
		CompanyID:       companyID,
		CustomerName:    dto.CustomerName,
		JobAddress:      dto.JobAddress,
		Status:          dto.Status,
		ExecutionStatus: dto.ExecutionStatus,
		TotalValue:      dto.TotalValue,
		LaborRate:       dto.LaborRate,
		Results:         datatypes.NewJSONType(dto.Results),
		Materials:       datatypes.NewJSONType(dto.Materials),
		Actuals:         datatypes.NewJSONType(dto.Actuals),
		Financials:      datatypes.NewJSONType(dto.Financials),
		Expenses:        datatypes.NewJSONType(dto.Expenses),
		InvoiceNumber:   dto.InvoiceNumber,
		InvoiceDate:     ParseTime(dto.InvoiceDate),
		PaidDate:        ParseTime(dto.PaidDate),
		Notes:           dto.Notes,
		CreatedByName:   dto.CreatedByName,
		UpdatedByName:   dto.UpdatedByName,
	}
	est.ID = dto.ID
	return est
}

// ToWarehouseDTO converts Warehouse to WarehouseDTO
func ToWarehouseDTO(w *domain.Warehouse) domain.WarehouseDTO {
	dto := domain.WarehouseDTO{
		OpenCellSets:   w.OpenCellSets,
		ClosedCellSets: w.ClosedCellSets,
		Items:          make([]domain.WarehouseItemDTO, 0, len(w.Items)),
		UpdatedAt:      formatTime(w.UpdatedAt),
	}
	for _, it := range w.Items {
		dto.Items = append(dto.Items, domain.WarehouseItemDTO{
			ID:               it.ID,
			Name:             it.Name,
			Quantity:         it.Quantity,
			Unit:             it.Unit,
			UnitCost:         it.UnitCost,
			ReorderThreshold: it.ReorderThreshold,
			BelowReorder:     it.ReorderThreshold > 0 && it.Quantity <= it.ReorderThreshold,
		})
	}
	return dto
}

// ToPurchaseOrderDTO converts PurchaseOrder to PurchaseOrderDTO
func ToPurchaseOrderDTO(po *domain.PurchaseOrder) domain.PurchaseOrderDTO {
	return domain.PurchaseOrderDTO{
		ID:            po.ID,
		VendorName:    po.VendorName,
		OrderDate:     formatTime(po.OrderDate),
		Lines:         po.Lines.Data(),
		TotalCost:     po.TotalCost,
		Notes:         po.Notes,
		CreatedByName: po.CreatedByName,
		CreatedAt:     formatTime(po.CreatedAt),
	}
}

// ToUsageLogDTO converts MaterialUsageLog to UsageLogDTO
func ToUsageLogDTO(e *domain.MaterialUsageLog) domain.UsageLogDTO {
	return domain.UsageLogDTO{
		ID:           e.ID,
		EstimateID:   e.EstimateID,
		JobName:      e.JobName,
		MaterialName: e.MaterialName,
		Quantity:     e.Quantity,
		Unit:         e.Unit,
		LoggedBy:     e.LoggedBy,
		LoggedAt:     formatTime(e.LoggedAt),
	}
}

// ToProfitLossDTO converts ProfitLossRecord to ProfitLossDTO
func ToProfitLossDTO(r *domain.ProfitLossRecord) domain.ProfitLossDTO {
	return domain.ProfitLossDTO{
		ID:            r.ID,
		EstimateID:    r.EstimateID,
		CustomerName:  r.CustomerName,
		InvoiceNumber: r.InvoiceNumber,
		Revenue:       r.Revenue,
		ChemicalCost:  r.ChemicalCost,
		LaborCost:     r.LaborCost,
		InventoryCost: r.InventoryCost,
		MiscCost:      r.MiscCost,
		TotalCOGS:     r.TotalCOGS,
		NetProfit:     r.NetProfit,
		Margin:        r.Margin,
		RecordedAt:    formatTime(r.RecordedAt),
	}
}

// ToSettingsDTO converts CompanySettings to SettingsDTO
func ToSettingsDTO(s *domain.CompanySettings) domain.SettingsDTO {
	return domain.SettingsDTO{
		Profile:  s.Profile.Data(),
		Costs:    s.Costs.Data(),
		Yields:   s.Yields.Data(),
		Expenses: s.Expenses.Data(),
	}
}

// ToShortageDTOs converts ledger shortages for the API
func ToShortageDTOs(shortages []inventory.Shortage) []domain.ShortageDTO {
	out := make([]domain.ShortageDTO, 0, len(shortages))
	for _, s := range shortages {
		out = append(out, domain.ShortageDTO{
			Material:  s.Material,
			Required:  s.Required,
			OnHand:    s.OnHand,
			Shortfall: s.Shortfall,
		})
	}
	return out
}
