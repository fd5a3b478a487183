package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CompanyID identifies a tenant (one contractor business)
type CompanyID string

// BaseModel with common fields. IDs are time-ordered (UUIDv7) and may be
// generated by the client before the record ever reaches the server.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns a time-ordered ID when the caller did not supply one
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id
	}
	return nil
}

// Estimate is the central aggregate: a quote that becomes a work order, then
// an invoice, then a paid job.
type Estimate struct {
	BaseModel
	CompanyID       CompanyID       `gorm:"type:varchar(50);not null;index"`
	CustomerName    string          `gorm:"type:varchar(200)"`
	JobAddress      string          `gorm:"type:varchar(300)"`
	Status          EstimateStatus  `gorm:"type:varchar(30);not null;index"`
	ExecutionStatus ExecutionStatus `gorm:"type:varchar(30);not null"`
	TotalValue      float64         `gorm:"type:decimal(12,2);not null;default:0"`
	LaborRate       *float64        `gorm:"type:decimal(12,2)"`

	Results    datatypes.JSONType[CalculationResults] `gorm:"not null"`
	Materials  datatypes.JSONType[MaterialSnapshot]   `gorm:"not null"`
	Actuals    datatypes.JSONType[*JobActuals]        `gorm:"not null"`
	Financials datatypes.JSONType[*FinancialSnapshot] `gorm:"not null"`
	Expenses   datatypes.JSONType[JobExpenses]        `gorm:"not null"`

	InvoiceNumber string     `gorm:"type:varchar(50);index"`
	InvoiceDate   *time.Time `gorm:"type:timestamp"`
	PaidDate      *time.Time `gorm:"type:timestamp"`
	WorkOrderURL  string     `gorm:"type:varchar(500)"`
	InvoiceURL    string     `gorm:"type:varchar(500)"`
	Notes         string     `gorm:"type:text"`
	Version       int        `gorm:"not null;default:1"`
	CreatedByID   string     `gorm:"type:varchar(100)"`
	CreatedByName string     `gorm:"type:varchar(200)"`
	UpdatedByName string     `gorm:"type:varchar(200)"`
}

// Lifecycle returns the commercial and execution status as one pair
func (e *Estimate) Lifecycle() LifecycleState {
	return LifecycleState{Status: e.Status, Execution: e.ExecutionStatus}
}

// HasCustomerName reports whether the estimate can leave draft
func (e *Estimate) HasCustomerName() bool {
	return strings.TrimSpace(e.CustomerName) != ""
}

// IsAlreadySold is true once the estimate has been confirmed as a work order
func (e *Estimate) IsAlreadySold() bool {
	switch e.Status {
	case EstimateStatusWorkOrder, EstimateStatusInvoiced, EstimateStatusPaid:
		return true
	}
	return false
}

// IsActiveWorkOrder is true while stock is committed but the crew has not finished
func (e *Estimate) IsActiveWorkOrder() bool {
	return e.Status == EstimateStatusWorkOrder && e.ExecutionStatus != ExecutionStatusCompleted
}

// Reservation returns the reserved baseline or nil for legacy estimates
func (e *Estimate) Reservation() *MaterialSet {
	return e.Materials.Data().Reserved
}

// Warehouse is the per-tenant stock singleton. Foam counters may go negative
// to represent a committed shortage.
type Warehouse struct {
	CompanyID      CompanyID       `gorm:"type:varchar(50);primaryKey"`
	OpenCellSets   float64         `gorm:"type:decimal(12,2);not null;default:0"`
	ClosedCellSets float64         `gorm:"type:decimal(12,2);not null;default:0"`
	Items          []WarehouseItem `gorm:"-"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// ItemByName finds a named stock item
func (w *Warehouse) ItemByName(name string) *WarehouseItem {
	key := ItemKey(name)
	for i := range w.Items {
		if ItemKey(w.Items[i].Name) == key {
			return &w.Items[i]
		}
	}
	return nil
}

// WarehouseItem is a named, non-foam stock item (tape, plastic sheeting, ...)
type WarehouseItem struct {
	BaseModel
	CompanyID        CompanyID `gorm:"type:varchar(50);not null;uniqueIndex:idx_warehouse_items_company_name"`
	Name             string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_warehouse_items_company_name"`
	Quantity         float64   `gorm:"type:decimal(12,2);not null;default:0"`
	Unit             string    `gorm:"type:varchar(30)"`
	UnitCost         float64   `gorm:"type:decimal(12,2);not null;default:0"`
	ReorderThreshold float64   `gorm:"type:decimal(12,2);not null;default:0"`
	Position         int       `gorm:"not null;default:0"`
}

// ItemKey normalises an item name for matching across estimates and stock
func ItemKey(name string) string {
	return strings.TrimSpace(name)
}

// PurchaseOrderLineKind tags what a purchase-order line replenishes
type PurchaseOrderLineKind string

const (
	PurchaseOrderLineOpenCell   PurchaseOrderLineKind = "open_cell"
	PurchaseOrderLineClosedCell PurchaseOrderLineKind = "closed_cell"
	PurchaseOrderLineInventory  PurchaseOrderLineKind = "inventory"
)

// PurchaseOrderLine is one replenished material
type PurchaseOrderLine struct {
	Kind      PurchaseOrderLineKind `json:"kind"`
	ItemID    *uuid.UUID            `json:"itemId,omitempty"`
	Name      string                `json:"name"`
	Quantity  float64               `json:"quantity"`
	Unit      string                `json:"unit,omitempty"`
	UnitCost  float64               `json:"unitCost"`
	LineTotal float64               `json:"lineTotal"`
}

// PurchaseOrder is immutable once saved; it is applied additively to stock at creation
type PurchaseOrder struct {
	BaseModel
	CompanyID     CompanyID                              `gorm:"type:varchar(50);not null;index"`
	VendorName    string                                 `gorm:"type:varchar(200);not null"`
	OrderDate     time.Time                              `gorm:"not null"`
	Lines         datatypes.JSONType[[]PurchaseOrderLine] `gorm:"not null"`
	TotalCost     float64                                `gorm:"type:decimal(12,2);not null;default:0"`
	Notes         string                                 `gorm:"type:text"`
	CreatedByName string                                 `gorm:"type:varchar(200)"`
}

// MaterialUsageLog is an append-only audit row for material consumed on a job
type MaterialUsageLog struct {
	BaseModel
	CompanyID    CompanyID `gorm:"type:varchar(50);not null;index"`
	EstimateID   uuid.UUID `gorm:"type:uuid;not null;index"`
	JobName      string    `gorm:"type:varchar(200)"`
	MaterialName string    `gorm:"type:varchar(200);not null"`
	Quantity     float64   `gorm:"type:decimal(12,2);not null"`
	Unit         string    `gorm:"type:varchar(30)"`
	LoggedBy     string    `gorm:"type:varchar(200)"`
	LoggedAt     time.Time `gorm:"not null"`
}

// ProfitLossRecord is the append-only financial snapshot written at payment
type ProfitLossRecord struct {
	BaseModel
	CompanyID     CompanyID `gorm:"type:varchar(50);not null;index"`
	EstimateID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	CustomerName  string    `gorm:"type:varchar(200)"`
	InvoiceNumber string    `gorm:"type:varchar(50)"`
	Revenue       float64   `gorm:"type:decimal(12,2);not null"`
	ChemicalCost  float64   `gorm:"type:decimal(12,2);not null"`
	LaborCost     float64   `gorm:"type:decimal(12,2);not null"`
	InventoryCost float64   `gorm:"type:decimal(12,2);not null"`
	MiscCost      float64   `gorm:"type:decimal(12,2);not null"`
	TotalCOGS     float64   `gorm:"type:decimal(12,2);not null"`
	NetProfit     float64   `gorm:"type:decimal(12,2);not null"`
	Margin        float64   `gorm:"type:decimal(8,4);not null"`
	RecordedAt    time.Time `gorm:"not null"`
}

// NumberSequence tracks the last issued invoice number per company and year
type NumberSequence struct {
	BaseModel
	CompanyID    CompanyID `gorm:"type:varchar(50);not null;uniqueIndex:idx_number_sequences_company_year"`
	Year         int       `gorm:"not null;uniqueIndex:idx_number_sequences_company_year"`
	LastSequence int       `gorm:"not null;default:0"`
}

// DeletedEstimate remembers a hard-deleted estimate id so a stale device
// snapshot cannot bring it back
type DeletedEstimate struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID     CompanyID `gorm:"type:varchar(50);not null;index"`
	DeletedByName string    `gorm:"type:varchar(200)"`
	DeletedAt     time.Time `gorm:"not null"`
}

// CompanySettings holds per-tenant configuration sections
type CompanySettings struct {
	CompanyID CompanyID                          `gorm:"type:varchar(50);primaryKey"`
	Profile   datatypes.JSONType[CompanyProfile]  `gorm:"not null"`
	Costs     datatypes.JSONType[CostSettings]    `gorm:"not null"`
	Yields    datatypes.JSONType[YieldSettings]   `gorm:"not null"`
	Expenses  datatypes.JSONType[ExpenseDefaults] `gorm:"not null"`
	UpdatedAt time.Time                          `gorm:"not null"`
}

// OutboxEventType names a queued side effect
type OutboxEventType string

const (
	OutboxEventWorkOrderConfirmed OutboxEventType = "estimate.work_order_confirmed"
	OutboxEventInvoiced           OutboxEventType = "estimate.invoiced"
	OutboxEventPaid               OutboxEventType = "estimate.paid"
)

// OutboxEvent is written in the same transaction as the state change that caused it
type OutboxEvent struct {
	BaseModel
	CompanyID    CompanyID       `gorm:"type:varchar(50);not null;index"`
	EventType    OutboxEventType `gorm:"type:varchar(60);not null"`
	AggregateID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Payload      datatypes.JSON  `gorm:"not null"`
	PublishedAt  *time.Time
	AttemptCount int     `gorm:"not null;default:0"`
	LastError    *string `gorm:"type:text"`
}
