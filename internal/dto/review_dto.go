package dto

import (
	"time"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// CriterionScoreRequest is one per-criterion score in a review payload.
type CriterionScoreRequest struct {
	CriterionID uint    `json:"criterion_id" validate:"required,gt=0"`
	Score       float64 `json:"score" validate:"gte=0"`
	Comment     string  `json:"comment"`
}

// ReviewCreateRequest creates a manual review for a solution.
type ReviewCreateRequest struct {
	SolutionID        uint                    `json:"solution_id" validate:"required,gt=0"`
	Scores            []CriterionScoreRequest `json:"scores" validate:"required,min=1,dive"`
	FeedbackToStudent string                  `json:"feedback_to_student"`
	ReviewerComment   string                  `json:"reviewer_comment"`
}

// ReviewUpdateRequest patches an existing review. Nil fields are untouched.
type ReviewUpdateRequest struct {
	Scores            []CriterionScoreRequest `json:"scores" validate:"omitempty,min=1,dive"`
	FeedbackToStudent *string                 `json:"feedback_to_student"`
	ReviewerComment   *string                 `json:"reviewer_comment"`
}

// ReviewBatchRequest carries the review ids for batch approve/reject.
type ReviewBatchRequest struct {
	ReviewIDs []uint `json:"review_ids" validate:"required,min=1,dive,gt=0"`
}

// ReviewBatchItemError reports a single failed review in a batch decision.
type ReviewBatchItemError struct {
	ReviewID uint   `json:"review_id"`
	Error    string `json:"error"`
}

// ReviewBatchResult reports the outcome of a batch approve/reject call.
type ReviewBatchResult struct {
	SucceededCount int                    `json:"succeeded_count"`
	FailedCount    int                    `json:"failed_count"`
	Errors         []ReviewBatchItemError `json:"errors"`
}

// CriterionScoreResponse serializes a per-criterion review score.
type CriterionScoreResponse struct {
	CriterionID uint    `json:"criterion_id"`
	Score       float64 `json:"score"`
	Comment     string  `json:"comment"`
}

// ReviewResponse is returned to API clients when viewing reviews.
type ReviewResponse struct {
	ID                uint                     `json:"id"`
	SolutionID        uint                     `json:"solution_id"`
	ReviewerID        *uint                    `json:"reviewer_id"`
	Scores            []CriterionScoreResponse `json:"scores"`
	TotalScore        float64                  `json:"total_score"`
	FeedbackToStudent string                   `json:"feedback_to_student"`
	ReviewerComment   string                   `json:"reviewer_comment"`
	Source            string                   `json:"source"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// NewReviewResponse converts a Review model into a DTO.
func NewReviewResponse(model models.Review) ReviewResponse {
	scores := make([]CriterionScoreResponse, 0, len(model.Scores))
	for _, score := range model.Scores {
		scores = append(scores, CriterionScoreResponse{
			CriterionID: score.CriterionID,
			Score:       score.Score,
			Comment:     score.Comment,
		})
	}

	return ReviewResponse{
		ID:                model.ID,
		SolutionID:        model.SolutionID,
		ReviewerID:        model.ReviewerID,
		Scores:            scores,
		TotalScore:        model.TotalScore,
		FeedbackToStudent: model.FeedbackToStudent,
		ReviewerComment:   model.ReviewerComment,
		Source:            model.Source,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}
