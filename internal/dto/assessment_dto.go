package dto

import (
	"time"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// AssessSolutionsRequest starts a batch assessment over explicit solution ids.
type AssessSolutionsRequest struct {
	SolutionIDs []uint `json:"solution_ids" validate:"required,min=1,dive,gt=0"`
	Model       string `json:"model" validate:"omitempty,max=128"`
}

// AssessByModelRequest carries the optional model override for task/source
// level assessment runs.
type AssessByModelRequest struct {
	Model string `json:"model" validate:"omitempty,max=128"`
}

// AutoAssessmentResponse serializes an automated assessment.
type AutoAssessmentResponse struct {
	ID              uint               `json:"id"`
	SolutionID      uint               `json:"solution_id"`
	Model           string             `json:"model"`
	Provider        string             `json:"provider"`
	CriterionScores map[string]float64 `json:"criterion_scores"`
	Narrative       string             `json:"narrative"`
	TotalScore      float64            `json:"total_score"`
	Fallback        bool               `json:"fallback"`
	CreatedAt       time.Time          `json:"created_at"`
}

// NewAutoAssessmentResponse converts an AutoAssessment model into a DTO.
func NewAutoAssessmentResponse(model models.AutoAssessment) AutoAssessmentResponse {
	scores := make(map[string]float64, len(model.CriterionScores))
	for key, value := range model.CriterionScores {
		if number, ok := value.(float64); ok {
			scores[key] = number
		}
	}

	return AutoAssessmentResponse{
		ID:              model.ID,
		SolutionID:      model.SolutionID,
		Model:           model.Model,
		Provider:        model.Provider,
		CriterionScores: scores,
		Narrative:       model.Narrative,
		TotalScore:      model.TotalScore,
		Fallback:        model.Fallback,
		CreatedAt:       model.CreatedAt,
	}
}
