package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserRole is the role carried by an authenticated caller
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleCrew  UserRole = "crew"
)

// DTOs for API responses

type EstimateDTO struct {
	ID              uuid.UUID           `json:"id"`
	CustomerName    string              `json:"customerName"`
	JobAddress      string              `json:"jobAddress,omitempty"`
	Status          EstimateStatus      `json:"status"`
	ExecutionStatus ExecutionStatus     `json:"executionStatus"`
	TotalValue      float64             `json:"totalValue"`
	LaborRate       *float64            `json:"laborRate,omitempty"`
	Results         CalculationResults  `json:"results"`
	Materials       MaterialSnapshot    `json:"materials"`
	Actuals         *JobActuals         `json:"actuals,omitempty"`
	Financials      *FinancialSnapshot  `json:"financials,omitempty"`
	Expenses        JobExpenses         `json:"expenses"`
	InvoiceNumber   string              `json:"invoiceNumber,omitempty"`
	InvoiceDate     string              `json:"invoiceDate,omitempty"` // ISO 8601
	PaidDate        string              `json:"paidDate,omitempty"`    // ISO 8601
	WorkOrderURL    string              `json:"workOrderUrl,omitempty"`
	InvoiceURL      string              `json:"invoiceUrl,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	Version         int                 `json:"version"`
	CreatedByName   string              `json:"createdByName,omitempty"`
	UpdatedByName   string              `json:"updatedByName,omitempty"`
	CreatedAt       string              `json:"createdAt"` // ISO 8601
	UpdatedAt       string              `json:"updatedAt"` // ISO 8601
}

type ShortageDTO struct {
	Material  string  `json:"material"`
	Required  float64 `json:"required"`
	OnHand    float64 `json:"onHand"`
	Shortfall float64 `json:"shortfall"`
}

type ShortagePreviewDTO struct {
	EstimateID  uuid.UUID     `json:"estimateId"`
	HasShortage bool          `json:"hasShortage"`
	Shortages   []ShortageDTO `json:"shortages"`
}

type WarehouseItemDTO struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Quantity         float64   `json:"quantity"`
	Unit             string    `json:"unit,omitempty"`
	UnitCost         float64   `json:"unitCost"`
	ReorderThreshold float64   `json:"reorderThreshold"`
	BelowReorder     bool      `json:"belowReorder"`
}

type WarehouseDTO struct {
	OpenCellSets   float64            `json:"openCellSets"`
	ClosedCellSets float64            `json:"closedCellSets"`
	Items          []WarehouseItemDTO `json:"items"`
	UpdatedAt      string             `json:"updatedAt,omitempty"` // ISO 8601
}

type PurchaseOrderDTO struct {
	ID            uuid.UUID           `json:"id"`
	VendorName    string              `json:"vendorName"`
	OrderDate     string              `json:"orderDate"` // ISO 8601
	Lines         []PurchaseOrderLine `json:"lines"`
	TotalCost     float64             `json:"totalCost"`
	Notes         string              `json:"notes,omitempty"`
	CreatedByName string              `json:"createdByName,omitempty"`
	CreatedAt     string              `json:"createdAt"` // ISO 8601
}

type UsageLogDTO struct {
	ID           uuid.UUID `json:"id"`
	EstimateID   uuid.UUID `json:"estimateId"`
	JobName      string    `json:"jobName"`
	MaterialName string    `json:"materialName"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit,omitempty"`
	LoggedBy     string    `json:"loggedBy"`
	LoggedAt     string    `json:"loggedAt"` // ISO 8601
}

type ProfitLossDTO struct {
	ID            uuid.UUID `json:"id"`
	EstimateID    uuid.UUID `json:"estimateId"`
	CustomerName  string    `json:"customerName"`
	InvoiceNumber string    `json:"invoiceNumber,omitempty"`
	Revenue       float64   `json:"revenue"`
	ChemicalCost  float64   `json:"chemicalCost"`
	LaborCost     float64   `json:"laborCost"`
	InventoryCost float64   `json:"inventoryCost"`
	MiscCost      float64   `json:"miscCost"`
	TotalCOGS     float64   `json:"totalCogs"`
	NetProfit     float64   `json:"netProfit"`
	Margin        float64   `json:"margin"`
	RecordedAt    string    `json:"recordedAt"` // ISO 8601
}

type SettingsDTO struct {
	Profile  CompanyProfile  `json:"profile"`
	Costs    CostSettings    `json:"costs"`
	Yields   YieldSettings   `json:"yields"`
	Expenses ExpenseDefaults `json:"expenses"`
}

// PaginatedResponse wraps list endpoints
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

type CreateEstimateRequest struct {
	// ID may be generated by an offline client; the server generates one otherwise
	ID           *uuid.UUID         `json:"id,omitempty"`
	CustomerName string             `json:"customerName" validate:"max=200"`
	JobAddress   string             `json:"jobAddress,omitempty" validate:"max=300"`
	TotalValue   float64            `json:"totalValue" validate:"gte=0"`
	LaborRate    *float64           `json:"laborRate,omitempty" validate:"omitempty,gte=0"`
	Results      CalculationResults `json:"results"`
	Materials    MaterialSet        `json:"materials"`
	Expenses     *JobExpenses       `json:"expenses,omitempty"`
	Notes        string             `json:"notes,omitempty"`
}

type UpdateEstimateRequest struct {
	CustomerName string             `json:"customerName" validate:"max=200"`
	JobAddress   string             `json:"jobAddress,omitempty" validate:"max=300"`
	TotalValue   float64            `json:"totalValue" validate:"gte=0"`
	LaborRate    *float64           `json:"laborRate,omitempty" validate:"omitempty,gte=0"`
	Results      CalculationResults `json:"results"`
	Materials    MaterialSet        `json:"materials"`
	Expenses     JobExpenses        `json:"expenses"`
	Notes        string             `json:"notes,omitempty"`
}

type ConfirmWorkOrderRequest struct {
	// Materials replaces the required materials before confirming when set
	Materials           *MaterialSet `json:"materials,omitempty"`
	AcknowledgeShortage bool         `json:"acknowledgeShortage"`
}

type CompleteJobRequest struct {
	OpenCellSets   float64        `json:"openCellSets" validate:"gte=0"`
	ClosedCellSets float64        `json:"closedCellSets" validate:"gte=0"`
	Inventory      []MaterialLine `json:"inventory,omitempty" validate:"dive"`
	LaborHours     float64        `json:"laborHours" validate:"gte=0"`
	Notes          string         `json:"notes,omitempty" validate:"max=2000"`
}

type MarkInvoicedRequest struct {
	// ApplyActuals copies crew-reported usage and hours onto the estimate
	ApplyActuals bool       `json:"applyActuals"`
	InvoiceDate  *time.Time `json:"invoiceDate,omitempty"`
}

type MarkPaidRequest struct {
	PaidDate *time.Time `json:"paidDate,omitempty"`
}

type WarehouseItemInput struct {
	ID               *uuid.UUID `json:"id,omitempty"`
	Name             string     `json:"name" validate:"required,max=200"`
	Quantity         float64    `json:"quantity"`
	Unit             string     `json:"unit,omitempty" validate:"max=30"`
	UnitCost         float64    `json:"unitCost" validate:"gte=0"`
	ReorderThreshold float64    `json:"reorderThreshold" validate:"gte=0"`
}

type UpdateWarehouseRequest struct {
	OpenCellSets   float64              `json:"openCellSets"`
	ClosedCellSets float64              `json:"closedCellSets"`
	Items          []WarehouseItemInput `json:"items" validate:"dive"`
}

type PurchaseOrderLineInput struct {
	Kind     PurchaseOrderLineKind `json:"kind" validate:"required,oneof=open_cell closed_cell inventory"`
	ItemID   *uuid.UUID            `json:"itemId,omitempty"`
	Name     string                `json:"name,omitempty" validate:"required_if=Kind inventory,max=200"`
	Quantity float64               `json:"quantity" validate:"gt=0"`
	Unit     string                `json:"unit,omitempty" validate:"max=30"`
	UnitCost float64               `json:"unitCost" validate:"gte=0"`
}

type CreatePurchaseOrderRequest struct {
	VendorName string                   `json:"vendorName" validate:"required,max=200"`
	OrderDate  *time.Time               `json:"orderDate,omitempty"`
	Lines      []PurchaseOrderLineInput `json:"lines" validate:"required,min=1,dive"`
	Notes      string                   `json:"notes,omitempty"`
}

// UpdateSettingsRequest replaces only the sections that are present
type UpdateSettingsRequest struct {
	Profile  *CompanyProfile  `json:"profile,omitempty"`
	Costs    *CostSettings    `json:"costs,omitempty"`
	Yields   *YieldSettings   `json:"yields,omitempty"`
	Expenses *ExpenseDefaults `json:"expenses,omitempty"`
}
