package dto

import (
	"time"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// SolutionFilter describes query string filters for listing solutions.
type SolutionFilter struct {
	TaskID   *uint   `query:"task_id"`
	AuthorID *uint   `query:"author_id"`
	SourceID string  `query:"source_id"`
	Status   *string `query:"status" validate:"omitempty,oneof=submitted in_review reviewed"`
}

// SolutionImportItem is one solution inside an import payload.
type SolutionImportItem struct {
	AuthorRef string `json:"author_ref"`
	AuthorID  *uint  `json:"author_id"`
	Content   string `json:"content" validate:"required"`
}

// SolutionImportRequest imports a batch of externally sourced solutions.
type SolutionImportRequest struct {
	TaskID   uint                 `json:"task_id" validate:"required,gt=0"`
	SourceID string               `json:"source_id" validate:"required,min=1,max=128"`
	Items    []SolutionImportItem `json:"items" validate:"required,min=1,dive"`
}

// SolutionResponse is returned to API clients when viewing solutions.
type SolutionResponse struct {
	ID        uint      `json:"id"`
	TaskID    uint      `json:"task_id"`
	AuthorID  *uint     `json:"author_id"`
	SourceID  string    `json:"source_id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSolutionResponse converts a Solution model into a DTO.
func NewSolutionResponse(model models.Solution) SolutionResponse {
	return SolutionResponse{
		ID:        model.ID,
		TaskID:    model.TaskID,
		AuthorID:  model.AuthorID,
		SourceID:  model.SourceID,
		Content:   model.Content,
		Status:    model.Status,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
