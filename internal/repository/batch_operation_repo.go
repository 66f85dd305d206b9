package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// BatchOperationFilter narrows operation queries.
type BatchOperationFilter struct {
	Type     string
	Status   string
	Page     int
	PageSize int
}

// BatchOperationRepository persists long-running operation state.
type BatchOperationRepository interface {
	List(ctx context.Context, filter BatchOperationFilter) ([]models.BatchOperation, int64, error)
	GetByID(ctx context.Context, id string) (models.BatchOperation, error)
	Create(ctx context.Context, operation *models.BatchOperation) error
	Update(ctx context.Context, operation *models.BatchOperation) error
	IncrementProgress(ctx context.Context, id string, processedDelta, failedDelta int) (int64, error)
	AppendItemError(ctx context.Context, itemError *models.BatchItemError) error
	GetStatus(ctx context.Context, id string) (string, error)
}

type batchOperationRepository struct {
	db *gorm.DB
}

// NewBatchOperationRepository instantiates the repository.
func NewBatchOperationRepository(db *gorm.DB) BatchOperationRepository {
	return &batchOperationRepository{db: db}
}

func (r *batchOperationRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.BatchOperation{}).
		Preload("Errors", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, id ASC")
		})
}

func (r *batchOperationRepository) List(ctx context.Context, filter BatchOperationFilter) ([]models.BatchOperation, int64, error) {
	query := r.baseQuery(ctx)

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var operations []models.BatchOperation
	if err := query.Order("created_at DESC").Find(&operations).Error; err != nil {
		return nil, 0, err
	}
	return operations, total, nil
}

func (r *batchOperationRepository) GetByID(ctx context.Context, id string) (models.BatchOperation, error) {
	var operation models.BatchOperation
	if err := r.baseQuery(ctx).Where("id = ?", id).First(&operation).Error; err != nil {
		return models.BatchOperation{}, err
	}
	return operation, nil
}

func (r *batchOperationRepository) Create(ctx context.Context, operation *models.BatchOperation) error {
	return r.db.WithContext(ctx).Create(operation).Error
}

func (r *batchOperationRepository) Update(ctx context.Context, operation *models.BatchOperation) error {
	return r.db.WithContext(ctx).Omit("Errors").Save(operation).Error
}

// IncrementProgress applies counter deltas in a single guarded UPDATE so
// concurrent workers never overwrite each other's increments. Zero rows
// affected means the operation is missing, terminal, or the deltas would
// push the counters out of bounds; callers distinguish those by re-reading.
func (r *batchOperationRepository) IncrementProgress(ctx context.Context, id string, processedDelta, failedDelta int) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.BatchOperation{}).
		Where("id = ?", id).
		Where("status IN ?", []string{models.BatchOperationStatusPending, models.BatchOperationStatusInProgress}).
		Where("processed_items + ? >= 0", processedDelta).
		Where("failed_items + ? >= 0", failedDelta).
		Where("processed_items + failed_items + ? <= total_items", processedDelta+failedDelta).
		Updates(map[string]interface{}{
			"processed_items": gorm.Expr("processed_items + ?", processedDelta),
			"failed_items":    gorm.Expr("failed_items + ?", failedDelta),
		})
	return result.RowsAffected, result.Error
}

func (r *batchOperationRepository) AppendItemError(ctx context.Context, itemError *models.BatchItemError) error {
	return r.db.WithContext(ctx).Create(itemError).Error
}

func (r *batchOperationRepository) GetStatus(ctx context.Context, id string) (string, error) {
	var status string
	if err := r.db.WithContext(ctx).Model(&models.BatchOperation{}).
		Where("id = ?", id).
		Pluck("status", &status).Error; err != nil {
		return "", err
	}
	if status == "" {
		return "", gorm.ErrRecordNotFound
	}
	return status, nil
}
