package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
)

// SolutionService exposes the solution read surface and the bulk import path.
type SolutionService interface {
	Get(ctx context.Context, id uint) (dto.SolutionResponse, error)
	List(ctx context.Context, filter dto.SolutionFilter) ([]dto.SolutionResponse, error)
	Import(ctx context.Context, actor ActivityActor, payload dto.SolutionImportRequest) (dto.OperationAcceptedResponse, error)
}

type solutionService struct {
	solutions repository.SolutionRepository
	tasks     repository.TaskRepository
	batches   BatchService
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger

	// detach produces the context used by background import runs. Tests
	// override it to keep processing synchronous.
	detach func() context.Context
}

// NewSolutionService constructs the solution service.
func NewSolutionService(solutions repository.SolutionRepository, tasks repository.TaskRepository, batches BatchService, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) SolutionService {
	return &solutionService{
		solutions: solutions,
		tasks:     tasks,
		batches:   batches,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "solution_service").Logger(),
		detach:    context.Background,
	}
}

func (s *solutionService) Get(ctx context.Context, id uint) (dto.SolutionResponse, error) {
	solution, err := s.solutions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SolutionResponse{}, ErrSolutionNotFound
		}
		return dto.SolutionResponse{}, err
	}
	return dto.NewSolutionResponse(solution), nil
}

func (s *solutionService) List(ctx context.Context, filter dto.SolutionFilter) ([]dto.SolutionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	solutions, err := s.solutions.List(ctx, repository.SolutionFilter{
		TaskID:   filter.TaskID,
		AuthorID: filter.AuthorID,
		SourceID: filter.SourceID,
		Status:   filter.Status,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SolutionResponse, 0, len(solutions))
	for _, solution := range solutions {
		responses = append(responses, dto.NewSolutionResponse(solution))
	}
	return responses, nil
}

// Import registers a solution_import operation and answers immediately; the
// items are persisted by a detached goroutine with per-item failure
// isolation.
func (s *solutionService) Import(ctx context.Context, actor ActivityActor, payload dto.SolutionImportRequest) (dto.OperationAcceptedResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.OperationAcceptedResponse{}, err
	}

	if _, err := s.tasks.GetByID(ctx, payload.TaskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.OperationAcceptedResponse{}, ErrTaskNotFound
		}
		return dto.OperationAcceptedResponse{}, err
	}

	operation, err := s.batches.Create(ctx, models.BatchOperationTypeSolutionImport, len(payload.Items), map[string]interface{}{
		"task_id":   payload.TaskID,
		"source_id": payload.SourceID,
	})
	if err != nil {
		return dto.OperationAcceptedResponse{}, err
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:      actor.ID,
			ActorRole:    actor.Role,
			Action:       "solution.import_started",
			ResourceType: "task",
			ResourceID:   &payload.TaskID,
			Outcome:      models.ActivityOutcomeSuccess,
			Metadata: map[string]interface{}{
				"operation_id": operation.ID,
				"source_id":    payload.SourceID,
				"total_items":  len(payload.Items),
			},
		})
	}

	go s.runImport(s.detach(), operation.ID, payload)

	return dto.OperationAcceptedResponse{
		OperationID: operation.ID,
		Status:      operation.Status,
		TotalItems:  operation.TotalItems,
	}, nil
}

func (s *solutionService) runImport(ctx context.Context, operationID string, payload dto.SolutionImportRequest) {
	logger := s.logger.With().Str("operation_id", operationID).Logger()

	if err := s.batches.Start(ctx, operationID); err != nil {
		logger.Error().Err(err).Msg("failed to start import operation")
		return
	}

	for index, item := range payload.Items {
		cancelled, err := s.batches.IsCancelled(ctx, operationID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to poll cancellation, stopping import")
			return
		}
		if cancelled {
			logger.Info().Msg("import cancelled, stopping")
			return
		}

		if err := s.importItem(ctx, payload, item); err != nil {
			logger.Warn().Err(err).Int("item_index", index).Msg("import item failed")
			failure := &BatchItemFailure{ItemID: uint(index), Message: err.Error()}
			if err := s.batches.UpdateProgress(ctx, operationID, 0, 1, failure); err != nil {
				logger.Error().Err(err).Msg("failed to record item failure")
			}
			continue
		}
		if err := s.batches.UpdateProgress(ctx, operationID, 1, 0, nil); err != nil {
			logger.Error().Err(err).Msg("failed to record item progress")
		}
	}

	if err := s.batches.Complete(ctx, operationID); err != nil && !errors.Is(err, ErrOperationTerminal) {
		logger.Error().Err(err).Msg("failed to complete import operation")
	}
}

func (s *solutionService) importItem(ctx context.Context, payload dto.SolutionImportRequest, item dto.SolutionImportItem) error {
	content := strings.TrimSpace(item.Content)
	if content == "" {
		return errors.New("empty solution content")
	}

	solution := models.Solution{
		TaskID:   payload.TaskID,
		AuthorID: item.AuthorID,
		SourceID: payload.SourceID,
		Content:  content,
		Status:   models.SolutionStatusSubmitted,
	}
	return s.solutions.Create(ctx, &solution)
}
