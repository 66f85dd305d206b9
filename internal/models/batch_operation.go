package models

import (
	"time"

	"gorm.io/datatypes"
)

// BatchOperation tracks a long-running multi-item job: clients poll it for
// status and progress while items are processed asynchronously.
type BatchOperation struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	Type           string            `gorm:"size:32;not null;index" json:"type"`
	Status         string            `gorm:"size:32;not null;index" json:"status"`
	TotalItems     int               `gorm:"not null" json:"total_items"`
	ProcessedItems int               `gorm:"not null;default:0" json:"processed_items"`
	FailedItems    int               `gorm:"not null;default:0" json:"failed_items"`
	ErrorMessage   string            `gorm:"type:text" json:"error_message"`
	Metadata       datatypes.JSONMap `json:"metadata"`
	Errors         []BatchItemError  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignKey:OperationID" json:"errors"`
	StartedAt      *time.Time        `json:"started_at"`
	FinishedAt     *time.Time        `json:"finished_at"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// BatchItemError records a single failed item inside a batch operation.
type BatchItemError struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OperationID string    `gorm:"size:36;not null;index" json:"operation_id"`
	ItemID      uint      `gorm:"not null" json:"item_id"`
	Error       string    `gorm:"type:text" json:"error"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
}

const (
	// BatchOperationTypeSolutionImport imports externally sourced solutions.
	BatchOperationTypeSolutionImport = "solution_import"
	// BatchOperationTypeLLMAssessment runs automated assessment over solutions.
	BatchOperationTypeLLMAssessment = "llm_assessment"
)

const (
	// BatchOperationStatusPending means the operation is accepted but not started.
	BatchOperationStatusPending = "pending"
	// BatchOperationStatusInProgress means items are being processed.
	BatchOperationStatusInProgress = "in_progress"
	// BatchOperationStatusCompleted means all items were attempted.
	BatchOperationStatusCompleted = "completed"
	// BatchOperationStatusFailed means the run aborted with a top-level error.
	BatchOperationStatusFailed = "failed"
	// BatchOperationStatusCancelled means the operation was cancelled by request.
	BatchOperationStatusCancelled = "cancelled"
)

// Progress derives the completion percentage from the processed counter,
// clamped to [0, 100]. Failed items do not advance progress; they are
// reported separately. It is never stored independently.
func (o BatchOperation) Progress() float64 {
	if o.TotalItems <= 0 {
		return 0
	}
	progress := float64(o.ProcessedItems) / float64(o.TotalItems) * 100
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// IsTerminal reports whether the operation reached a final state.
func (o BatchOperation) IsTerminal() bool {
	switch o.Status {
	case BatchOperationStatusCompleted, BatchOperationStatusFailed, BatchOperationStatusCancelled:
		return true
	default:
		return false
	}
}
