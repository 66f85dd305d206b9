package models

import "time"

// UsageRecord is an append-only accounting row for one provider invocation.
// Records are never mutated after creation.
type UsageRecord struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SolutionID        *uint     `gorm:"index" json:"solution_id"`
	TaskID            *uint     `gorm:"index" json:"task_id"`
	UserID            *uint     `gorm:"index" json:"user_id"`
	OperationType     string    `gorm:"size:64;not null" json:"operation_type"`
	Provider          string    `gorm:"size:32;not null" json:"provider"`
	Model             string    `gorm:"size:128;not null" json:"model"`
	PromptTokens      int       `gorm:"not null" json:"prompt_tokens"`
	CompletionTokens  int       `gorm:"not null" json:"completion_tokens"`
	TotalTokens       int       `gorm:"not null" json:"total_tokens"`
	CostUsd           float64   `gorm:"not null" json:"cost_usd"`
	RequestDurationMs int64     `gorm:"not null" json:"request_duration_ms"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}

// OperationTypeAssessment labels usage produced by rubric assessment calls.
const OperationTypeAssessment = "llm_assessment"
