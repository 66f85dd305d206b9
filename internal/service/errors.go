package service

import "errors"

// ErrTaskNotFound indicates the task was not located.
var ErrTaskNotFound = errors.New("task not found")

// ErrSolutionNotFound indicates the solution was not located.
var ErrSolutionNotFound = errors.New("solution not found")

// ErrReviewNotFound indicates the review was not located.
var ErrReviewNotFound = errors.New("review not found")

// ErrAssessmentNotFound indicates the automated assessment was not located.
var ErrAssessmentNotFound = errors.New("assessment not found")

// ErrOperationNotFound indicates the batch operation was not located.
var ErrOperationNotFound = errors.New("operation not found")

// ErrReviewExists indicates the solution already carries its current review.
var ErrReviewExists = errors.New("solution already has a review")

// ErrInvalidReviewState indicates an illegal review transition, such as
// approving a review that is not an automated draft.
var ErrInvalidReviewState = errors.New("invalid review state for this action")

// ErrReviewForbidden indicates the actor is not permitted to review.
var ErrReviewForbidden = errors.New("forbidden")

// ErrScoreExceedsMax indicates a criterion score surpasses its max points.
var ErrScoreExceedsMax = errors.New("score exceeds criterion max points")

// ErrUnknownCriterion indicates a score references a criterion outside the
// solution's task rubric.
var ErrUnknownCriterion = errors.New("criterion does not belong to the task rubric")

// ErrOperationTerminal indicates a completed, failed or cancelled operation
// cannot be mutated further.
var ErrOperationTerminal = errors.New("operation is in a terminal state")

// ErrOperationNotRestartable indicates restart was requested on a
// non-terminal operation.
var ErrOperationNotRestartable = errors.New("only terminal operations can be restarted")

// ErrProgressExceedsTotal indicates a progress update would break the
// processed+failed <= total invariant.
var ErrProgressExceedsTotal = errors.New("progress update exceeds total items")
