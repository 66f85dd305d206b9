package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
)

// Review actions gated by canTransition.
const (
	reviewActionCreate  = "create"
	reviewActionUpdate  = "update"
	reviewActionApprove = "approve"
	reviewActionReject  = "reject"
	reviewActionRemove  = "remove"
)

// canTransition is the single capability check consulted before any review
// mutation. It is independent of the transport layer: handlers pass the
// actor extracted from their authentication context.
func canTransition(actor ActivityActor, _ models.Review, action string) bool {
	switch normalizeRole(actor.Role) {
	case "reviewer", "teacher", "admin":
	default:
		return false
	}

	switch action {
	case reviewActionCreate, reviewActionUpdate, reviewActionApprove, reviewActionReject, reviewActionRemove:
		return true
	default:
		return false
	}
}

// ReviewService owns review records and their source-state transitions.
type ReviewService interface {
	Create(ctx context.Context, actor ActivityActor, payload dto.ReviewCreateRequest) (dto.ReviewResponse, error)
	CreateAuto(ctx context.Context, solutionID uint, scores []models.ReviewCriterionScore, feedback string) (models.Review, error)
	Get(ctx context.Context, id uint) (dto.ReviewResponse, error)
	List(ctx context.Context, filter repository.ReviewFilter) ([]dto.ReviewResponse, error)
	Update(ctx context.Context, actor ActivityActor, id uint, payload dto.ReviewUpdateRequest) (dto.ReviewResponse, error)
	Approve(ctx context.Context, actor ActivityActor, id uint) (dto.ReviewResponse, error)
	Reject(ctx context.Context, actor ActivityActor, id uint) error
	BatchApprove(ctx context.Context, actor ActivityActor, reviewIDs []uint) (dto.ReviewBatchResult, error)
	BatchReject(ctx context.Context, actor ActivityActor, reviewIDs []uint) (dto.ReviewBatchResult, error)
	Remove(ctx context.Context, actor ActivityActor, id uint) error
}

type reviewService struct {
	reviews   repository.ReviewRepository
	solutions repository.SolutionRepository
	tasks     repository.TaskRepository
	validator *validator.Validate
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewReviewService constructs the review workflow service.
func NewReviewService(reviews repository.ReviewRepository, solutions repository.SolutionRepository, tasks repository.TaskRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) ReviewService {
	return &reviewService{
		reviews:   reviews,
		solutions: solutions,
		tasks:     tasks,
		validator: validate,
		activity:  activity,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "review_service").Logger(),
		tracer:    otel.Tracer("github.com/arketa-lab/gradeflow-api/internal/service/review"),
	}
}

func (s *reviewService) Create(ctx context.Context, actor ActivityActor, payload dto.ReviewCreateRequest) (dto.ReviewResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReviewResponse{}, err
	}
	if !canTransition(actor, models.Review{}, reviewActionCreate) {
		return dto.ReviewResponse{}, ErrReviewForbidden
	}

	solution, err := s.loadSolution(ctx, payload.SolutionID)
	if err != nil {
		return dto.ReviewResponse{}, err
	}

	if _, err := s.reviews.GetBySolution(ctx, solution.ID); err == nil {
		return dto.ReviewResponse{}, ErrReviewExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ReviewResponse{}, err
	}

	task, err := s.loadTask(ctx, solution.TaskID)
	if err != nil {
		return dto.ReviewResponse{}, err
	}

	scores, err := s.buildScores(task, payload.Scores)
	if err != nil {
		return dto.ReviewResponse{}, err
	}

	reviewerID := actor.ID
	review := models.Review{
		SolutionID:        solution.ID,
		ReviewerID:        &reviewerID,
		Scores:            scores,
		FeedbackToStudent: s.sanitizer.Sanitize(payload.FeedbackToStudent),
		ReviewerComment:   payload.ReviewerComment,
		Source:            models.ReviewSourceManual,
	}
	review.TotalScore = review.SumScores()

	if err := s.reviews.Create(ctx, &review); err != nil {
		return dto.ReviewResponse{}, err
	}

	if err := s.solutions.UpdateStatus(ctx, solution.ID, models.SolutionStatusReviewed); err != nil {
		s.logger.Error().Err(err).Uint("solution_id", solution.ID).Msg("failed to mark solution reviewed")
	}

	s.recordActivity(ctx, actor, "review.created", review.ID, map[string]interface{}{
		"solution_id": solution.ID,
		"source":      review.Source,
		"total_score": review.TotalScore,
	})

	return dto.NewReviewResponse(review), nil
}

// CreateAuto persists the draft review derived from an automated assessment.
// Scores are expected to be pre-clamped by the response parser.
func (s *reviewService) CreateAuto(ctx context.Context, solutionID uint, scores []models.ReviewCriterionScore, feedback string) (models.Review, error) {
	if _, err := s.reviews.GetBySolution(ctx, solutionID); err == nil {
		return models.Review{}, ErrReviewExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Review{}, err
	}

	review := models.Review{
		SolutionID:        solutionID,
		Scores:            scores,
		FeedbackToStudent: s.sanitizer.Sanitize(feedback),
		Source:            models.ReviewSourceAuto,
	}
	review.TotalScore = review.SumScores()

	if err := s.reviews.Create(ctx, &review); err != nil {
		return models.Review{}, err
	}

	if err := s.solutions.UpdateStatus(ctx, solutionID, models.SolutionStatusReviewed); err != nil {
		s.logger.Error().Err(err).Uint("solution_id", solutionID).Msg("failed to mark solution reviewed")
	}

	s.recordActivity(ctx, ActivityActor{}, "review.created", review.ID, map[string]interface{}{
		"solution_id": solutionID,
		"source":      review.Source,
		"total_score": review.TotalScore,
	})

	return review, nil
}

func (s *reviewService) Get(ctx context.Context, id uint) (dto.ReviewResponse, error) {
	review, err := s.loadReview(ctx, id)
	if err != nil {
		return dto.ReviewResponse{}, err
	}
	return dto.NewReviewResponse(review), nil
}

func (s *reviewService) List(ctx context.Context, filter repository.ReviewFilter) ([]dto.ReviewResponse, error) {
	reviews, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ReviewResponse, 0, len(reviews))
	for _, review := range reviews {
		responses = append(responses, dto.NewReviewResponse(review))
	}
	return responses, nil
}

func (s *reviewService) Update(ctx context.Context, actor ActivityActor, id uint, payload dto.ReviewUpdateRequest) (dto.ReviewResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReviewResponse{}, err
	}

	review, err := s.loadReview(ctx, id)
	if err != nil {
		return dto.ReviewResponse{}, err
	}
	if !canTransition(actor, review, reviewActionUpdate) {
		return dto.ReviewResponse{}, ErrReviewForbidden
	}

	contentChanged := false

	if payload.Scores != nil {
		solution, err := s.loadSolution(ctx, review.SolutionID)
		if err != nil {
			return dto.ReviewResponse{}, err
		}
		task, err := s.loadTask(ctx, solution.TaskID)
		if err != nil {
			return dto.ReviewResponse{}, err
		}
		scores, err := s.buildScores(task, payload.Scores)
		if err != nil {
			return dto.ReviewResponse{}, err
		}
		if !scoresEqual(review.Scores, scores) {
			contentChanged = true
		}
		if err := s.reviews.ReplaceScores(ctx, review.ID, scores); err != nil {
			return dto.ReviewResponse{}, err
		}
		review.Scores = scores
		review.TotalScore = review.SumScores()
	}

	if payload.FeedbackToStudent != nil {
		sanitized := s.sanitizer.Sanitize(*payload.FeedbackToStudent)
		if sanitized != review.FeedbackToStudent {
			contentChanged = true
		}
		review.FeedbackToStudent = sanitized
	}
	if payload.ReviewerComment != nil {
		review.ReviewerComment = *payload.ReviewerComment
	}

	if review.Source == models.ReviewSourceAuto && contentChanged {
		review.Source = models.ReviewSourceAutoModified
	} else if review.Source != models.ReviewSourceAuto {
		review.Source = models.ReviewSourceManual
	}

	reviewerID := actor.ID
	review.ReviewerID = &reviewerID

	if err := s.reviews.Update(ctx, &review); err != nil {
		return dto.ReviewResponse{}, err
	}

	s.recordActivity(ctx, actor, "review.updated", review.ID, map[string]interface{}{
		"solution_id":     review.SolutionID,
		"source":          review.Source,
		"total_score":     review.TotalScore,
		"content_changed": contentChanged,
	})

	return dto.NewReviewResponse(review), nil
}

func (s *reviewService) Approve(ctx context.Context, actor ActivityActor, id uint) (dto.ReviewResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.approve", trace.WithAttributes(
		attribute.Int64("review.id", int64(id)),
		attribute.Int64("review.actor_id", int64(actor.ID)),
	))
	defer span.End()

	review, err := s.loadReview(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review_lookup_failed")
		return dto.ReviewResponse{}, err
	}
	if !canTransition(actor, review, reviewActionApprove) {
		return dto.ReviewResponse{}, ErrReviewForbidden
	}
	if !review.IsAuto() {
		err := fmt.Errorf("%w: cannot approve review with source %q", ErrInvalidReviewState, review.Source)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_state")
		return dto.ReviewResponse{}, err
	}

	reviewerID := actor.ID
	review.Source = models.ReviewSourceAutoApproved
	review.ReviewerID = &reviewerID

	if err := s.reviews.Update(ctx, &review); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review_update_failed")
		return dto.ReviewResponse{}, err
	}

	s.recordActivity(ctx, actor, "review.approved", review.ID, map[string]interface{}{
		"solution_id": review.SolutionID,
		"total_score": review.TotalScore,
	})

	return dto.NewReviewResponse(review), nil
}

func (s *reviewService) Reject(ctx context.Context, actor ActivityActor, id uint) error {
	ctx, span := s.tracer.Start(ctx, "review.reject", trace.WithAttributes(
		attribute.Int64("review.id", int64(id)),
		attribute.Int64("review.actor_id", int64(actor.ID)),
	))
	defer span.End()

	review, err := s.loadReview(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review_lookup_failed")
		return err
	}
	if !canTransition(actor, review, reviewActionReject) {
		return ErrReviewForbidden
	}
	if !review.IsAuto() {
		err := fmt.Errorf("%w: cannot reject review with source %q", ErrInvalidReviewState, review.Source)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_state")
		return err
	}

	if err := s.deleteAndRevert(ctx, review); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review_delete_failed")
		return err
	}

	s.recordActivity(ctx, actor, "review.rejected", review.ID, map[string]interface{}{
		"solution_id": review.SolutionID,
	})

	return nil
}

func (s *reviewService) BatchApprove(ctx context.Context, actor ActivityActor, reviewIDs []uint) (dto.ReviewBatchResult, error) {
	return s.batchDecide(ctx, actor, reviewIDs, func(ctx context.Context, id uint) error {
		_, err := s.Approve(ctx, actor, id)
		return err
	})
}

func (s *reviewService) BatchReject(ctx context.Context, actor ActivityActor, reviewIDs []uint) (dto.ReviewBatchResult, error) {
	return s.batchDecide(ctx, actor, reviewIDs, func(ctx context.Context, id uint) error {
		return s.Reject(ctx, actor, id)
	})
}

// batchDecide applies the decision to each review independently. A failure
// on one id is recorded and never aborts the remaining items.
func (s *reviewService) batchDecide(ctx context.Context, actor ActivityActor, reviewIDs []uint, decide func(context.Context, uint) error) (dto.ReviewBatchResult, error) {
	if !canTransition(actor, models.Review{}, reviewActionApprove) {
		return dto.ReviewBatchResult{}, ErrReviewForbidden
	}

	result := dto.ReviewBatchResult{Errors: make([]dto.ReviewBatchItemError, 0)}
	for _, id := range reviewIDs {
		if err := decide(ctx, id); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, dto.ReviewBatchItemError{
				ReviewID: id,
				Error:    err.Error(),
			})
			continue
		}
		result.SucceededCount++
	}

	return result, nil
}

func (s *reviewService) Remove(ctx context.Context, actor ActivityActor, id uint) error {
	review, err := s.loadReview(ctx, id)
	if err != nil {
		return err
	}
	if !canTransition(actor, review, reviewActionRemove) {
		return ErrReviewForbidden
	}

	if err := s.deleteAndRevert(ctx, review); err != nil {
		return err
	}

	s.recordActivity(ctx, actor, "review.removed", review.ID, map[string]interface{}{
		"solution_id": review.SolutionID,
		"source":      review.Source,
	})

	return nil
}

func (s *reviewService) deleteAndRevert(ctx context.Context, review models.Review) error {
	if err := s.reviews.Delete(ctx, review.ID); err != nil {
		return err
	}

	solution, err := s.solutions.GetByID(ctx, review.SolutionID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("solution_id", review.SolutionID).Msg("failed to load solution for status revert")
		return nil
	}
	if solution.IsReviewed() {
		if err := s.solutions.UpdateStatus(ctx, solution.ID, models.SolutionStatusInReview); err != nil {
			s.logger.Error().Err(err).Uint("solution_id", solution.ID).Msg("failed to revert solution status")
		}
	}
	return nil
}

func (s *reviewService) buildScores(task models.Task, requested []dto.CriterionScoreRequest) ([]models.ReviewCriterionScore, error) {
	criteria := make(map[uint]models.Criterion, len(task.Criteria))
	for _, criterion := range task.Criteria {
		criteria[criterion.ID] = criterion
	}

	scores := make([]models.ReviewCriterionScore, 0, len(requested))
	for _, request := range requested {
		criterion, ok := criteria[request.CriterionID]
		if !ok {
			return nil, fmt.Errorf("%w: criterion %d", ErrUnknownCriterion, request.CriterionID)
		}
		if request.Score > criterion.MaxPoints+1e-9 {
			return nil, fmt.Errorf("%w: criterion %d allows at most %g points", ErrScoreExceedsMax, criterion.ID, criterion.MaxPoints)
		}
		scores = append(scores, models.ReviewCriterionScore{
			CriterionID: request.CriterionID,
			Score:       request.Score,
			Comment:     strings.TrimSpace(request.Comment),
		})
	}
	return scores, nil
}

func scoresEqual(current, next []models.ReviewCriterionScore) bool {
	if len(current) != len(next) {
		return false
	}
	existing := make(map[uint]models.ReviewCriterionScore, len(current))
	for _, score := range current {
		existing[score.CriterionID] = score
	}
	for _, score := range next {
		previous, ok := existing[score.CriterionID]
		if !ok || previous.Score != score.Score || previous.Comment != score.Comment {
			return false
		}
	}
	return true
}

func (s *reviewService) loadReview(ctx context.Context, id uint) (models.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Review{}, ErrReviewNotFound
		}
		return models.Review{}, err
	}
	return review, nil
}

func (s *reviewService) loadSolution(ctx context.Context, id uint) (models.Solution, error) {
	solution, err := s.solutions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Solution{}, ErrSolutionNotFound
		}
		return models.Solution{}, err
	}
	return solution, nil
}

func (s *reviewService) loadTask(ctx context.Context, id uint) (models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}
	return task, nil
}

func (s *reviewService) recordActivity(ctx context.Context, actor ActivityActor, action string, reviewID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	resourceID := reviewID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Action:       action,
		ResourceType: "review",
		ResourceID:   &resourceID,
		Outcome:      models.ActivityOutcomeSuccess,
		Metadata:     metadata,
	})
}
