package dto

import (
	"time"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// OperationListRequest filters the operation listing endpoint.
type OperationListRequest struct {
	Type     string `query:"type" validate:"omitempty,oneof=solution_import llm_assessment"`
	Status   string `query:"status" validate:"omitempty,oneof=pending in_progress completed failed cancelled"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// OperationItemErrorResponse serializes one failed batch item.
type OperationItemErrorResponse struct {
	ItemID    uint      `json:"item_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// OperationResponse is the polled status view of a batch operation.
type OperationResponse struct {
	ID             string                       `json:"id"`
	Type           string                       `json:"type"`
	Status         string                       `json:"status"`
	TotalItems     int                          `json:"total_items"`
	ProcessedItems int                          `json:"processed_items"`
	FailedItems    int                          `json:"failed_items"`
	Progress       float64                      `json:"progress"`
	ErrorMessage   string                       `json:"error_message,omitempty"`
	Metadata       map[string]interface{}       `json:"metadata,omitempty"`
	Errors         []OperationItemErrorResponse `json:"errors"`
	StartedAt      *time.Time                   `json:"started_at"`
	FinishedAt     *time.Time                   `json:"finished_at"`
	CreatedAt      time.Time                    `json:"created_at"`
}

// OperationAcceptedResponse is returned when a batch request is accepted.
type OperationAcceptedResponse struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	TotalItems  int    `json:"total_items"`
}

// OperationListResponse wraps a paginated operation listing.
type OperationListResponse struct {
	Items      []OperationResponse `json:"items"`
	Pagination PaginationMeta      `json:"pagination"`
}

// NewOperationResponse converts a BatchOperation model into a DTO.
func NewOperationResponse(model models.BatchOperation) OperationResponse {
	itemErrors := make([]OperationItemErrorResponse, 0, len(model.Errors))
	for _, itemError := range model.Errors {
		itemErrors = append(itemErrors, OperationItemErrorResponse{
			ItemID:    itemError.ItemID,
			Error:     itemError.Error,
			Timestamp: itemError.Timestamp,
		})
	}

	return OperationResponse{
		ID:             model.ID,
		Type:           model.Type,
		Status:         model.Status,
		TotalItems:     model.TotalItems,
		ProcessedItems: model.ProcessedItems,
		FailedItems:    model.FailedItems,
		Progress:       model.Progress(),
		ErrorMessage:   model.ErrorMessage,
		Metadata:       model.Metadata,
		Errors:         itemErrors,
		StartedAt:      model.StartedAt,
		FinishedAt:     model.FinishedAt,
		CreatedAt:      model.CreatedAt,
	}
}

// NewOperationAcceptedResponse builds the immediate accept payload.
func NewOperationAcceptedResponse(model models.BatchOperation) OperationAcceptedResponse {
	return OperationAcceptedResponse{
		OperationID: model.ID,
		Status:      model.Status,
		TotalItems:  model.TotalItems,
	}
}
