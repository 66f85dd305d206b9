package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
	"github.com/arketa-lab/gradeflow-api/pkg/ai"
)

var (
	assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradeflow_assessments_total",
		Help: "Completed single-solution assessments by model and outcome.",
	}, []string{"model", "outcome"})
	assessmentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gradeflow_assessment_duration_seconds",
		Help:    "End-to-end duration of one solution assessment.",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})
)

// AssessmentConfig tunes the orchestrator.
type AssessmentConfig struct {
	DefaultModel string
	Temperature  float32
	MaxTokens    int
	Workers      int
}

// AssessmentService runs automated rubric grading over solutions.
type AssessmentService interface {
	AssessSolution(ctx context.Context, solutionID uint, model string) (dto.AutoAssessmentResponse, error)
	AssessSolutions(ctx context.Context, actor ActivityActor, payload dto.AssessSolutionsRequest) (dto.OperationAcceptedResponse, error)
	AssessSolutionsByTask(ctx context.Context, actor ActivityActor, taskID uint, model string) (dto.OperationAcceptedResponse, error)
	AssessSolutionsBySource(ctx context.Context, actor ActivityActor, sourceID string, model string) (dto.OperationAcceptedResponse, error)
	ResumeOperation(ctx context.Context, actor ActivityActor, operationID string) (dto.OperationAcceptedResponse, error)
	GetAssessment(ctx context.Context, id uint) (dto.AutoAssessmentResponse, error)
	ListBySolution(ctx context.Context, solutionID uint) ([]dto.AutoAssessmentResponse, error)
}

type assessmentService struct {
	assessments repository.AssessmentRepository
	solutions   repository.SolutionRepository
	tasks       repository.TaskRepository
	provider    ai.Provider
	costs       CostService
	reviews     ReviewService
	batches     BatchService
	activity    ActivityRecorder
	validator   *validator.Validate
	config      AssessmentConfig
	locks       *keyedMutex
	logger      zerolog.Logger
	tracer      trace.Tracer

	// detach produces the context used by background batch runs. Tests
	// override it to keep processing synchronous.
	detach func() context.Context
}

// NewAssessmentService constructs the assessment orchestrator.
func NewAssessmentService(
	assessments repository.AssessmentRepository,
	solutions repository.SolutionRepository,
	tasks repository.TaskRepository,
	provider ai.Provider,
	costs CostService,
	reviews ReviewService,
	batches BatchService,
	activity ActivityRecorder,
	validate *validator.Validate,
	config AssessmentConfig,
	logger zerolog.Logger,
) AssessmentService {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &assessmentService{
		assessments: assessments,
		solutions:   solutions,
		tasks:       tasks,
		provider:    provider,
		costs:       costs,
		reviews:     reviews,
		batches:     batches,
		activity:    activity,
		validator:   validate,
		config:      config,
		locks:       newKeyedMutex(),
		logger:      logger.With().Str("component", "assessment_service").Logger(),
		tracer:      otel.Tracer("github.com/arketa-lab/gradeflow-api/internal/service/assessment"),
		detach:      context.Background,
	}
}

// AssessSolution grades a single solution with the given model. The
// (solution, model) pair is idempotent: a stored assessment is returned
// without a new provider call, and concurrent requests for the same pair are
// serialised so that exactly one of them performs the work.
func (s *assessmentService) AssessSolution(ctx context.Context, solutionID uint, model string) (dto.AutoAssessmentResponse, error) {
	model = s.resolveModel(model)

	ctx, span := s.tracer.Start(ctx, "assessment.assess_solution", trace.WithAttributes(
		attribute.Int64("solution.id", int64(solutionID)),
		attribute.String("assessment.model", model),
	))
	defer span.End()

	unlock := s.locks.Lock(fmt.Sprintf("%d|%s", solutionID, model))
	defer unlock()

	if existing, err := s.assessments.GetBySolutionAndModel(ctx, solutionID, model); err == nil {
		span.SetAttributes(attribute.Bool("assessment.deduplicated", true))
		return dto.NewAutoAssessmentResponse(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.AutoAssessmentResponse{}, err
	}

	solution, err := s.solutions.GetByID(ctx, solutionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AutoAssessmentResponse{}, ErrSolutionNotFound
		}
		span.RecordError(err)
		return dto.AutoAssessmentResponse{}, err
	}

	task, err := s.tasks.GetByID(ctx, solution.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AutoAssessmentResponse{}, ErrTaskNotFound
		}
		span.RecordError(err)
		return dto.AutoAssessmentResponse{}, err
	}

	criteria := make([]ai.RubricCriterion, 0, len(task.Criteria))
	for _, criterion := range task.Criteria {
		criteria = append(criteria, ai.RubricCriterion{
			ID:          criterion.ID,
			Name:        criterion.Name,
			Description: criterion.Description,
			MaxPoints:   criterion.MaxPoints,
		})
	}

	prompt := ai.BuildRubricPrompt(ai.RubricInput{
		TaskTitle:         task.Title,
		TaskDescription:   task.Description,
		ReferenceSolution: task.ReferenceSolution,
		SubmissionContent: solution.Content,
		Criteria:          criteria,
	})

	started := time.Now()
	completion, err := s.provider.Complete(ctx, ai.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: ai.RubricSystemPrompt(),
		Model:        model,
		Temperature:  s.config.Temperature,
		MaxTokens:    s.config.MaxTokens,
	})
	elapsed := time.Since(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider_call_failed")
		assessmentsTotal.WithLabelValues(model, "provider_error").Inc()
		return dto.AutoAssessmentResponse{}, fmt.Errorf("assess solution %d: %w", solutionID, err)
	}
	assessmentDuration.WithLabelValues(model).Observe(elapsed.Seconds())

	outcome := ai.ParseAssessment(completion.Content, criteria)

	cost := s.costs.Calculate(s.provider.Name(), model, completion.Usage)
	if err := s.costs.RecordUsage(ctx, UsageEntry{
		SolutionID:        &solution.ID,
		TaskID:            &solution.TaskID,
		UserID:            solution.AuthorID,
		OperationType:     models.OperationTypeAssessment,
		Provider:          s.provider.Name(),
		Model:             model,
		Usage:             completion.Usage,
		Cost:              cost,
		RequestDurationMs: elapsed.Milliseconds(),
	}); err != nil {
		s.logger.Error().Err(err).Uint("solution_id", solution.ID).Msg("failed to record usage")
	}

	scores := make(datatypes.JSONMap, len(outcome.Result.Scores))
	for criterionID, score := range outcome.Result.Scores {
		scores[strconv.FormatUint(uint64(criterionID), 10)] = score
	}

	assessment := models.AutoAssessment{
		SolutionID:      solution.ID,
		Model:           model,
		Provider:        s.provider.Name(),
		CriterionScores: scores,
		Narrative:       outcome.Result.Feedback,
		TotalScore:      outcome.Result.TotalScore,
		Fallback:        outcome.Fallback,
		PromptUsed:      prompt,
		RawResponse:     completion.Content,
	}
	if err := s.assessments.Create(ctx, &assessment); err != nil {
		span.RecordError(err)
		return dto.AutoAssessmentResponse{}, err
	}

	s.deriveReview(ctx, solution, outcome)

	outcomeLabel := "ok"
	if outcome.Fallback {
		outcomeLabel = "fallback"
		s.logger.Warn().
			Uint("solution_id", solution.ID).
			Str("model", model).
			Str("reason", outcome.FallbackReason).
			Msg("assessment fell back to zero scores")
	}
	assessmentsTotal.WithLabelValues(model, outcomeLabel).Inc()

	s.recordActivity(ctx, "assessment.completed", solution.ID, map[string]interface{}{
		"model":       model,
		"total_score": assessment.TotalScore,
		"fallback":    assessment.Fallback,
		"cost_usd":    cost.TotalCost,
	})

	return dto.NewAutoAssessmentResponse(assessment), nil
}

// deriveReview turns the assessment outcome into an AUTO review draft. An
// existing review of any source is left untouched.
func (s *assessmentService) deriveReview(ctx context.Context, solution models.Solution, outcome ai.AssessmentOutcome) {
	scores := make([]models.ReviewCriterionScore, 0, len(outcome.Result.Scores))
	for criterionID, score := range outcome.Result.Scores {
		scores = append(scores, models.ReviewCriterionScore{
			CriterionID: criterionID,
			Score:       score,
		})
	}

	if _, err := s.reviews.CreateAuto(ctx, solution.ID, scores, outcome.Result.Feedback); err != nil {
		if errors.Is(err, ErrReviewExists) {
			return
		}
		s.logger.Error().Err(err).Uint("solution_id", solution.ID).Msg("failed to derive auto review")
	}
}

func (s *assessmentService) AssessSolutions(ctx context.Context, actor ActivityActor, payload dto.AssessSolutionsRequest) (dto.OperationAcceptedResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.OperationAcceptedResponse{}, err
	}
	model := s.resolveModel(payload.Model)
	return s.startBatch(ctx, actor, payload.SolutionIDs, model, map[string]interface{}{
		"model": model,
	})
}

func (s *assessmentService) AssessSolutionsByTask(ctx context.Context, actor ActivityActor, taskID uint, model string) (dto.OperationAcceptedResponse, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.OperationAcceptedResponse{}, ErrTaskNotFound
		}
		return dto.OperationAcceptedResponse{}, err
	}

	ids, err := s.solutions.ListIDs(ctx, repository.SolutionFilter{TaskID: &taskID})
	if err != nil {
		return dto.OperationAcceptedResponse{}, err
	}

	model = s.resolveModel(model)
	return s.startBatch(ctx, actor, ids, model, map[string]interface{}{
		"model":   model,
		"task_id": taskID,
	})
}

func (s *assessmentService) AssessSolutionsBySource(ctx context.Context, actor ActivityActor, sourceID string, model string) (dto.OperationAcceptedResponse, error) {
	ids, err := s.solutions.ListIDs(ctx, repository.SolutionFilter{SourceID: sourceID})
	if err != nil {
		return dto.OperationAcceptedResponse{}, err
	}

	model = s.resolveModel(model)
	return s.startBatch(ctx, actor, ids, model, map[string]interface{}{
		"model":     model,
		"source_id": sourceID,
	})
}

// startBatch registers the operation and answers immediately; the items are
// processed by a detached goroutine. The solution ids are kept in the
// operation metadata so a restart can replay the same input set.
func (s *assessmentService) startBatch(ctx context.Context, actor ActivityActor, solutionIDs []uint, model string, metadata map[string]interface{}) (dto.OperationAcceptedResponse, error) {
	ids := make([]interface{}, 0, len(solutionIDs))
	for _, id := range solutionIDs {
		ids = append(ids, float64(id))
	}
	metadata["solution_ids"] = ids

	operation, err := s.batches.Create(ctx, models.BatchOperationTypeLLMAssessment, len(solutionIDs), metadata)
	if err != nil {
		return dto.OperationAcceptedResponse{}, err
	}

	s.recordActivityAs(ctx, actor, "assessment.batch_started", nil, map[string]interface{}{
		"operation_id": operation.ID,
		"model":        model,
		"total_items":  len(solutionIDs),
	})

	go s.runBatch(s.detach(), operation.ID, solutionIDs, model)

	return dto.OperationAcceptedResponse{
		OperationID: operation.ID,
		Status:      operation.Status,
		TotalItems:  operation.TotalItems,
	}, nil
}

// ResumeOperation clones a terminal assessment operation and replays its
// recorded input set. Already-assessed solutions are deduplicated, so only
// the items that previously failed cause new provider calls.
func (s *assessmentService) ResumeOperation(ctx context.Context, actor ActivityActor, operationID string) (dto.OperationAcceptedResponse, error) {
	previous, err := s.batches.Get(ctx, operationID)
	if err != nil {
		return dto.OperationAcceptedResponse{}, err
	}
	if previous.Type != models.BatchOperationTypeLLMAssessment {
		return dto.OperationAcceptedResponse{}, ErrOperationNotRestartable
	}

	operation, err := s.batches.Restart(ctx, operationID)
	if err != nil {
		return dto.OperationAcceptedResponse{}, err
	}

	model, _ := operation.Metadata["model"].(string)
	model = s.resolveModel(model)

	rawIDs, _ := operation.Metadata["solution_ids"].([]interface{})
	solutionIDs := make([]uint, 0, len(rawIDs))
	for _, raw := range rawIDs {
		if id, ok := raw.(float64); ok && id > 0 {
			solutionIDs = append(solutionIDs, uint(id))
		}
	}

	s.recordActivityAs(ctx, actor, "assessment.batch_restarted", nil, map[string]interface{}{
		"operation_id":   operation.ID,
		"restarted_from": operationID,
		"model":          model,
		"total_items":    len(solutionIDs),
	})

	go s.runBatch(s.detach(), operation.ID, solutionIDs, model)

	return dto.OperationAcceptedResponse{
		OperationID: operation.ID,
		Status:      operation.Status,
		TotalItems:  operation.TotalItems,
	}, nil
}

func (s *assessmentService) runBatch(ctx context.Context, operationID string, solutionIDs []uint, model string) {
	logger := s.logger.With().Str("operation_id", operationID).Str("model", model).Logger()

	if err := s.batches.Start(ctx, operationID); err != nil {
		logger.Error().Err(err).Msg("failed to start batch operation")
		return
	}

	if len(solutionIDs) == 0 {
		if err := s.batches.Complete(ctx, operationID); err != nil {
			logger.Error().Err(err).Msg("failed to complete empty batch")
		}
		return
	}

	sem := semaphore.NewWeighted(int64(s.config.Workers))
	for _, solutionID := range solutionIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			logger.Error().Err(err).Msg("batch context cancelled")
			return
		}

		// Checked after acquiring a slot so a cancel that lands while
		// the pool is saturated stops the very next item.
		cancelled, err := s.batches.IsCancelled(ctx, operationID)
		if err != nil {
			sem.Release(1)
			logger.Error().Err(err).Msg("failed to poll cancellation, stopping batch")
			break
		}
		if cancelled {
			sem.Release(1)
			logger.Info().Msg("batch cancelled, stopping")
			break
		}

		go func(id uint) {
			defer sem.Release(1)
			s.processBatchItem(ctx, operationID, id, model, logger)
		}(solutionID)
	}

	// drain the pool before closing the operation
	if err := sem.Acquire(ctx, int64(s.config.Workers)); err != nil {
		logger.Error().Err(err).Msg("batch context cancelled while draining")
		return
	}
	sem.Release(int64(s.config.Workers))

	if err := s.batches.Complete(ctx, operationID); err != nil && !errors.Is(err, ErrOperationTerminal) {
		logger.Error().Err(err).Msg("failed to complete batch operation")
	}
}

func (s *assessmentService) processBatchItem(ctx context.Context, operationID string, solutionID uint, model string, logger zerolog.Logger) {
	if _, err := s.AssessSolution(ctx, solutionID, model); err != nil {
		logger.Warn().Err(err).Uint("solution_id", solutionID).Msg("batch item failed")
		failure := &BatchItemFailure{ItemID: solutionID, Message: err.Error()}
		if err := s.batches.UpdateProgress(ctx, operationID, 0, 1, failure); err != nil {
			logger.Error().Err(err).Msg("failed to record item failure")
		}
		return
	}
	if err := s.batches.UpdateProgress(ctx, operationID, 1, 0, nil); err != nil {
		logger.Error().Err(err).Msg("failed to record item progress")
	}
}

func (s *assessmentService) GetAssessment(ctx context.Context, id uint) (dto.AutoAssessmentResponse, error) {
	assessment, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AutoAssessmentResponse{}, ErrAssessmentNotFound
		}
		return dto.AutoAssessmentResponse{}, err
	}
	return dto.NewAutoAssessmentResponse(assessment), nil
}

func (s *assessmentService) ListBySolution(ctx context.Context, solutionID uint) ([]dto.AutoAssessmentResponse, error) {
	if _, err := s.solutions.GetByID(ctx, solutionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSolutionNotFound
		}
		return nil, err
	}

	assessments, err := s.assessments.ListBySolution(ctx, solutionID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AutoAssessmentResponse, 0, len(assessments))
	for _, assessment := range assessments {
		responses = append(responses, dto.NewAutoAssessmentResponse(assessment))
	}
	return responses, nil
}

func (s *assessmentService) resolveModel(model string) string {
	if model == "" {
		return s.config.DefaultModel
	}
	return model
}

func (s *assessmentService) recordActivity(ctx context.Context, action string, solutionID uint, metadata map[string]interface{}) {
	s.recordActivityAs(ctx, ActivityActor{}, action, &solutionID, metadata)
}

func (s *assessmentService) recordActivityAs(ctx context.Context, actor ActivityActor, action string, resourceID *uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Action:       action,
		ResourceType: "solution",
		ResourceID:   resourceID,
		Outcome:      models.ActivityOutcomeSuccess,
		Metadata:     metadata,
	})
}
