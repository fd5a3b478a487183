package domain

import "fmt"

// EstimateStatus is the commercial axis of an estimate's lifecycle
type EstimateStatus string

const (
	EstimateStatusDraft     EstimateStatus = "draft"
	EstimateStatusWorkOrder EstimateStatus = "work_order"
	EstimateStatusInvoiced  EstimateStatus = "invoiced"
	EstimateStatusPaid      EstimateStatus = "paid"
	EstimateStatusArchived  EstimateStatus = "archived"
)

// ExecutionStatus is the field-work axis, meaningful once sold
type ExecutionStatus string

const (
	ExecutionStatusNotStarted ExecutionStatus = "not_started"
	ExecutionStatusInProgress ExecutionStatus = "in_progress"
	ExecutionStatusCompleted  ExecutionStatus = "completed"
)

var estimateStatusRank = map[EstimateStatus]int{
	EstimateStatusDraft:     0,
	EstimateStatusWorkOrder: 1,
	EstimateStatusInvoiced:  2,
	EstimateStatusPaid:      3,
	EstimateStatusArchived:  4,
}

var executionStatusRank = map[ExecutionStatus]int{
	ExecutionStatusNotStarted: 0,
	ExecutionStatusInProgress: 1,
	ExecutionStatusCompleted:  2,
}

// IsValid checks if the status is a known value
func (s EstimateStatus) IsValid() bool {
	_, ok := estimateStatusRank[s]
	return ok
}

// Rank orders statuses by how far along the commercial lifecycle they are.
// Unknown values rank below draft.
func (s EstimateStatus) Rank() int {
	if r, ok := estimateStatusRank[s]; ok {
		return r
	}
	return -1
}

// IsValid checks if the execution status is a known value
func (s ExecutionStatus) IsValid() bool {
	_, ok := executionStatusRank[s]
	return ok
}

// Rank orders execution statuses. Unknown values rank below not_started.
func (s ExecutionStatus) Rank() int {
	if r, ok := executionStatusRank[s]; ok {
		return r
	}
	return -1
}

// LifecycleState is the (commercial, execution) pair carried by every estimate
type LifecycleState struct {
	Status    EstimateStatus  `json:"status"`
	Execution ExecutionStatus `json:"executionStatus"`
}

func (l LifecycleState) String() string {
	return fmt.Sprintf("%s/%s", l.Status, l.Execution)
}

// NewLifecycleState returns the state of a freshly created estimate
func NewLifecycleState() LifecycleState {
	return LifecycleState{Status: EstimateStatusDraft, Execution: ExecutionStatusNotStarted}
}

// MergeLifecycle combines two states for the same estimate so that neither
// axis ever moves backwards. Each axis is compared on its own.
func MergeLifecycle(existing, incoming LifecycleState) LifecycleState {
	merged := incoming
	if existing.Status.Rank() > incoming.Status.Rank() {
		merged.Status = existing.Status
	}
	if existing.Execution.Rank() > incoming.Execution.Rank() {
		merged.Execution = existing.Execution
	}
	if !merged.Status.IsValid() {
		merged.Status = EstimateStatusDraft
	}
	if !merged.Execution.IsValid() {
		merged.Execution = ExecutionStatusNotStarted
	}
	return merged
}

// CanArchive reports whether an estimate in this status may be soft-deleted
func (s EstimateStatus) CanArchive() bool {
	switch s {
	case EstimateStatusDraft, EstimateStatusWorkOrder, EstimateStatusInvoiced:
		return true
	}
	return false
}
