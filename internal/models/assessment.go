package models

import (
	"time"

	"gorm.io/datatypes"
)

// AutoAssessment captures the raw automated-evaluation result for one
// (solution, model) pair. At most one row exists per pair.
type AutoAssessment struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	SolutionID      uint              `gorm:"not null;index:idx_assessment_pair,unique" json:"solution_id"`
	Model           string            `gorm:"size:128;not null;index:idx_assessment_pair,unique" json:"model"`
	Provider        string            `gorm:"size:32" json:"provider"`
	CriterionScores datatypes.JSONMap `json:"criterion_scores"`
	Narrative       string            `gorm:"type:text" json:"narrative"`
	TotalScore      float64           `gorm:"not null" json:"total_score"`
	Fallback        bool              `gorm:"not null;default:false" json:"fallback"`
	PromptUsed      string            `gorm:"type:text" json:"prompt_used"`
	RawResponse     string            `gorm:"type:text" json:"raw_response"`
	CreatedAt       time.Time         `json:"created_at"`
	Solution        Solution          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"solution"`
}
