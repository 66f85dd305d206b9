package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// UsageAggregate is one cost-report bucket grouped by day, model and
// operation type. Sums are consistent with the underlying usage records.
type UsageAggregate struct {
	Day              string  `json:"day"`
	Model            string  `json:"model"`
	OperationType    string  `json:"operation_type"`
	Requests         int64   `json:"requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	CostUsd          float64 `json:"cost_usd"`
}

// UsageRepository appends and aggregates usage records. Records are
// append-only; there is deliberately no update or delete operation.
type UsageRepository interface {
	Create(ctx context.Context, record *models.UsageRecord) error
	CountBySolution(ctx context.Context, solutionID uint) (int64, error)
	AggregateSystem(ctx context.Context, since time.Time) ([]UsageAggregate, error)
	AggregateByTask(ctx context.Context, taskID uint) ([]UsageAggregate, error)
	AggregateByUser(ctx context.Context, userID uint, since time.Time) ([]UsageAggregate, error)
}

type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository instantiates the repository.
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Create(ctx context.Context, record *models.UsageRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *usageRepository) CountBySolution(ctx context.Context, solutionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UsageRecord{}).
		Where("solution_id = ?", solutionID).
		Count(&count).Error
	return count, err
}

func (r *usageRepository) aggregate(query *gorm.DB) ([]UsageAggregate, error) {
	var aggregates []UsageAggregate
	err := query.
		Select("DATE(created_at) AS day, model, operation_type, " +
			"COUNT(*) AS requests, " +
			"SUM(prompt_tokens) AS prompt_tokens, " +
			"SUM(completion_tokens) AS completion_tokens, " +
			"SUM(total_tokens) AS total_tokens, " +
			"SUM(cost_usd) AS cost_usd").
		Group("DATE(created_at), model, operation_type").
		Order("day DESC").
		Scan(&aggregates).Error
	if err != nil {
		return nil, err
	}
	return aggregates, nil
}

func (r *usageRepository) AggregateSystem(ctx context.Context, since time.Time) ([]UsageAggregate, error) {
	return r.aggregate(r.db.WithContext(ctx).Model(&models.UsageRecord{}).
		Where("created_at >= ?", since))
}

func (r *usageRepository) AggregateByTask(ctx context.Context, taskID uint) ([]UsageAggregate, error) {
	return r.aggregate(r.db.WithContext(ctx).Model(&models.UsageRecord{}).
		Where("task_id = ?", taskID))
}

func (r *usageRepository) AggregateByUser(ctx context.Context, userID uint, since time.Time) ([]UsageAggregate, error) {
	return r.aggregate(r.db.WithContext(ctx).Model(&models.UsageRecord{}).
		Where("user_id = ?", userID).
		Where("created_at >= ?", since))
}
