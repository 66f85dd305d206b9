package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
)

// TaskService manages tasks and their grading rubrics.
type TaskService interface {
	Create(ctx context.Context, actor ActivityActor, payload dto.TaskCreateRequest) (dto.TaskResponse, error)
	Get(ctx context.Context, id uint) (dto.TaskResponse, error)
	List(ctx context.Context) ([]dto.TaskResponse, error)
}

type taskService struct {
	repo      repository.TaskRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewTaskService constructs the task service.
func NewTaskService(repo repository.TaskRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) TaskService {
	return &taskService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "task_service").Logger(),
	}
}

func (s *taskService) Create(ctx context.Context, actor ActivityActor, payload dto.TaskCreateRequest) (dto.TaskResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	criteria := make([]models.Criterion, 0, len(payload.Criteria))
	for position, criterion := range payload.Criteria {
		criteria = append(criteria, models.Criterion{
			Name:        criterion.Name,
			Description: criterion.Description,
			MaxPoints:   criterion.MaxPoints,
			Position:    position,
		})
	}

	task := models.Task{
		Title:             payload.Title,
		Description:       payload.Description,
		ReferenceSolution: payload.ReferenceSolution,
		Criteria:          criteria,
	}
	if err := s.repo.Create(ctx, &task); err != nil {
		return dto.TaskResponse{}, err
	}

	if s.activity != nil {
		resourceID := task.ID
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:      actor.ID,
			ActorRole:    actor.Role,
			Action:       "task.created",
			ResourceType: "task",
			ResourceID:   &resourceID,
			Outcome:      models.ActivityOutcomeSuccess,
			Metadata: map[string]interface{}{
				"title":          task.Title,
				"criteria_count": len(task.Criteria),
			},
		})
	}

	return dto.NewTaskResponse(task), nil
}

func (s *taskService) Get(ctx context.Context, id uint) (dto.TaskResponse, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskResponse{}, ErrTaskNotFound
		}
		return dto.TaskResponse{}, err
	}
	return dto.NewTaskResponse(task), nil
}

func (s *taskService) List(ctx context.Context) ([]dto.TaskResponse, error) {
	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, dto.NewTaskResponse(task))
	}
	return responses, nil
}
