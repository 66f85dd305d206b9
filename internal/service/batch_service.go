package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
)

// BatchItemFailure describes one failed item inside a progress update.
type BatchItemFailure struct {
	ItemID  uint
	Message string
}

// BatchService is the single source of truth for long-running operation
// state. Counters only move through UpdateProgress; progress percentages are
// always derived from the counters, never stored.
type BatchService interface {
	Create(ctx context.Context, opType string, totalItems int, metadata map[string]interface{}) (models.BatchOperation, error)
	Start(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, processedDelta, failedDelta int, itemFailure *BatchItemFailure) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, message string) error
	Cancel(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) (models.BatchOperation, error)
	IsCancelled(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (dto.OperationResponse, error)
	List(ctx context.Context, req dto.OperationListRequest) (dto.OperationListResponse, error)
}

type batchService struct {
	repo   repository.BatchOperationRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewBatchService constructs the batch operation tracker.
func NewBatchService(repo repository.BatchOperationRepository, logger zerolog.Logger) BatchService {
	return &batchService{
		repo:   repo,
		logger: logger.With().Str("component", "batch_service").Logger(),
		now:    time.Now,
	}
}

func (s *batchService) Create(ctx context.Context, opType string, totalItems int, metadata map[string]interface{}) (models.BatchOperation, error) {
	operation := models.BatchOperation{
		ID:         uuid.NewString(),
		Type:       opType,
		Status:     models.BatchOperationStatusPending,
		TotalItems: totalItems,
		Metadata:   datatypes.JSONMap(sanitizeMetadata(metadata)),
	}

	if err := s.repo.Create(ctx, &operation); err != nil {
		return models.BatchOperation{}, err
	}
	return operation, nil
}

func (s *batchService) load(ctx context.Context, id string) (models.BatchOperation, error) {
	operation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.BatchOperation{}, ErrOperationNotFound
		}
		return models.BatchOperation{}, err
	}
	return operation, nil
}

func (s *batchService) Start(ctx context.Context, id string) error {
	operation, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if operation.Status != models.BatchOperationStatusPending {
		if operation.IsTerminal() {
			return ErrOperationTerminal
		}
		// Already in progress; starting twice is a no-op.
		return nil
	}

	started := s.now()
	operation.Status = models.BatchOperationStatusInProgress
	operation.StartedAt = &started
	return s.repo.Update(ctx, &operation)
}

// UpdateProgress moves the item counters through a single atomic increment,
// so concurrent workers reporting items never lose each other's updates.
func (s *batchService) UpdateProgress(ctx context.Context, id string, processedDelta, failedDelta int, itemFailure *BatchItemFailure) error {
	rows, err := s.repo.IncrementProgress(ctx, id, processedDelta, failedDelta)
	if err != nil {
		return err
	}
	if rows == 0 {
		// The guard rejected the update; re-read to report the precise cause.
		operation, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if operation.IsTerminal() {
			return ErrOperationTerminal
		}
		return ErrProgressExceedsTotal
	}

	if itemFailure != nil {
		itemError := models.BatchItemError{
			OperationID: id,
			ItemID:      itemFailure.ItemID,
			Error:       itemFailure.Message,
			Timestamp:   s.now(),
		}
		if err := s.repo.AppendItemError(ctx, &itemError); err != nil {
			s.logger.Warn().Err(err).Str("operation_id", id).Msg("failed to persist item error")
		}
	}

	return nil
}

func (s *batchService) finish(ctx context.Context, id, status, message string) error {
	operation, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if operation.IsTerminal() {
		return ErrOperationTerminal
	}

	finished := s.now()
	operation.Status = status
	operation.ErrorMessage = message
	operation.FinishedAt = &finished
	return s.repo.Update(ctx, &operation)
}

func (s *batchService) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, models.BatchOperationStatusCompleted, "")
}

func (s *batchService) Fail(ctx context.Context, id string, message string) error {
	return s.finish(ctx, id, models.BatchOperationStatusFailed, message)
}

func (s *batchService) Cancel(ctx context.Context, id string) error {
	return s.finish(ctx, id, models.BatchOperationStatusCancelled, "")
}

// Restart clones a terminal operation's input parameters into a fresh
// pending operation. The terminal operation itself is never resurrected.
func (s *batchService) Restart(ctx context.Context, id string) (models.BatchOperation, error) {
	operation, err := s.load(ctx, id)
	if err != nil {
		return models.BatchOperation{}, err
	}
	if !operation.IsTerminal() {
		return models.BatchOperation{}, ErrOperationNotRestartable
	}

	metadata := make(map[string]interface{}, len(operation.Metadata)+1)
	for key, value := range operation.Metadata {
		metadata[key] = value
	}
	metadata["restarted_from"] = operation.ID

	return s.Create(ctx, operation.Type, operation.TotalItems, metadata)
}

// IsCancelled reports whether a cancel request has been recorded. Processing
// loops poll it between items, so an in-flight item always completes first.
func (s *batchService) IsCancelled(ctx context.Context, id string) (bool, error) {
	status, err := s.repo.GetStatus(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrOperationNotFound
		}
		return false, err
	}
	return status == models.BatchOperationStatusCancelled, nil
}

func (s *batchService) Get(ctx context.Context, id string) (dto.OperationResponse, error) {
	operation, err := s.load(ctx, id)
	if err != nil {
		return dto.OperationResponse{}, err
	}
	return dto.NewOperationResponse(operation), nil
}

func (s *batchService) List(ctx context.Context, req dto.OperationListRequest) (dto.OperationListResponse, error) {
	filter := repository.BatchOperationFilter{
		Type:     req.Type,
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	operations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.OperationListResponse{}, err
	}

	items := make([]dto.OperationResponse, 0, len(operations))
	for _, operation := range operations {
		items = append(items, dto.NewOperationResponse(operation))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   filter.PageSize,
		TotalItems: total,
	}
	if filter.PageSize > 0 {
		pagination.TotalPages = int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))
	}

	return dto.OperationListResponse{Items: items, Pagination: pagination}, nil
}
