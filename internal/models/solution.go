package models

import "time"

// Solution represents a student-submitted answer to a task.
type Solution struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	AuthorID  *uint     `gorm:"index" json:"author_id"`
	SourceID  string    `gorm:"size:128;index" json:"source_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Status    string    `gorm:"size:32;not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Task      Task      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"task"`
}

const (
	// SolutionStatusSubmitted indicates the solution has been received but not assessed.
	SolutionStatusSubmitted = "submitted"
	// SolutionStatusInReview indicates the solution is awaiting a review decision.
	SolutionStatusInReview = "in_review"
	// SolutionStatusReviewed indicates the solution carries a current review.
	SolutionStatusReviewed = "reviewed"
)

// IsReviewed reports whether the solution holds its authoritative grade.
func (s Solution) IsReviewed() bool {
	return s.Status == SolutionStatusReviewed
}
