package domain

import "github.com/google/uuid"

// TenantSnapshot is the full dataset exchanged by pull and push sync
type TenantSnapshot struct {
	Settings       SettingsDTO        `json:"settings"`
	Warehouse      WarehouseDTO       `json:"warehouse"`
	Estimates      []EstimateDTO      `json:"estimates"`
	PurchaseOrders []PurchaseOrderDTO `json:"purchaseOrders,omitempty"`
	ServerTime     string             `json:"serverTime,omitempty"` // ISO 8601

	// DeletedEstimateIDs lists estimates the server has hard-deleted
	DeletedEstimateIDs []uuid.UUID `json:"deletedEstimateIds,omitempty"`
	// PendingEstimateIDs is device bookkeeping: estimates created locally and
	// not yet accepted by a push. The server ignores it.
	PendingEstimateIDs []uuid.UUID `json:"pendingEstimateIds,omitempty"`
}

// PushResult reports how a pushed snapshot was merged
type PushResult struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Skipped   int      `json:"skipped"`
	Warnings  []string `json:"warnings,omitempty"`
}
