package dto

import (
	"time"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// TaskCreateRequest describes the payload for creating a task with its rubric.
type TaskCreateRequest struct {
	Title             string                   `json:"title" validate:"required,min=3,max=255"`
	Description       string                   `json:"description" validate:"required"`
	ReferenceSolution string                   `json:"reference_solution"`
	Criteria          []CriterionCreateRequest `json:"criteria" validate:"required,min=1,dive"`
}

// CriterionCreateRequest describes one rubric criterion in a task payload.
type CriterionCreateRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=255"`
	Description string  `json:"description"`
	MaxPoints   float64 `json:"max_points" validate:"required,gt=0"`
}

// CriterionResponse serializes a rubric criterion.
type CriterionResponse struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MaxPoints   float64 `json:"max_points"`
	Position    int     `json:"position"`
}

// TaskResponse is returned to API clients when viewing tasks.
type TaskResponse struct {
	ID                uint                `json:"id"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	ReferenceSolution string              `json:"reference_solution"`
	MaxTotalPoints    float64             `json:"max_total_points"`
	Criteria          []CriterionResponse `json:"criteria"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// NewTaskResponse converts a Task model into a DTO.
func NewTaskResponse(model models.Task) TaskResponse {
	criteria := make([]CriterionResponse, 0, len(model.Criteria))
	for _, criterion := range model.Criteria {
		criteria = append(criteria, CriterionResponse{
			ID:          criterion.ID,
			Name:        criterion.Name,
			Description: criterion.Description,
			MaxPoints:   criterion.MaxPoints,
			Position:    criterion.Position,
		})
	}

	return TaskResponse{
		ID:                model.ID,
		Title:             model.Title,
		Description:       model.Description,
		ReferenceSolution: model.ReferenceSolution,
		MaxTotalPoints:    model.MaxTotalPoints(),
		Criteria:          criteria,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}
