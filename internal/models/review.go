package models

import "time"

// Review is the authoritative grade record for a solution, regardless of
// whether it originated from the automated evaluator or a human reviewer.
// A solution has at most one review at any time.
type Review struct {
	ID                uint                   `gorm:"primaryKey" json:"id"`
	SolutionID        uint                   `gorm:"not null;uniqueIndex" json:"solution_id"`
	ReviewerID        *uint                  `gorm:"index" json:"reviewer_id"`
	Scores            []ReviewCriterionScore `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"scores"`
	TotalScore        float64                `gorm:"not null" json:"total_score"`
	FeedbackToStudent string                 `gorm:"type:text" json:"feedback_to_student"`
	ReviewerComment   string                 `gorm:"type:text" json:"reviewer_comment"`
	Source            string                 `gorm:"size:32;not null" json:"source"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Solution          Solution               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"solution"`
}

// ReviewCriterionScore is one per-criterion score inside a review.
type ReviewCriterionScore struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	ReviewID    uint    `gorm:"not null;index" json:"review_id"`
	CriterionID uint    `gorm:"not null" json:"criterion_id"`
	Score       float64 `gorm:"not null" json:"score"`
	Comment     string  `gorm:"type:text" json:"comment"`
}

const (
	// ReviewSourceAuto marks a draft review produced by the automated evaluator.
	ReviewSourceAuto = "auto"
	// ReviewSourceManual marks a review authored directly by a human reviewer.
	ReviewSourceManual = "manual"
	// ReviewSourceAutoApproved marks an automated review confirmed by a reviewer.
	ReviewSourceAutoApproved = "auto_approved"
	// ReviewSourceAutoModified marks an automated review edited by a reviewer.
	ReviewSourceAutoModified = "auto_modified"
)

// SumScores recomputes the review total from its criterion scores.
func (r Review) SumScores() float64 {
	total := 0.0
	for _, score := range r.Scores {
		total += score.Score
	}
	return total
}

// IsAuto reports whether the review is still an unconfirmed automated draft.
func (r Review) IsAuto() bool {
	return r.Source == ReviewSourceAuto
}
