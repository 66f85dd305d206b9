package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/pricing"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
	"github.com/arketa-lab/gradeflow-api/pkg/ai"
)

const defaultCostReportDays = 30

// UsageEntry carries the accounting details of one provider invocation.
type UsageEntry struct {
	SolutionID        *uint
	TaskID            *uint
	UserID            *uint
	OperationType     string
	Provider          string
	Model             string
	Usage             ai.Usage
	Cost              pricing.Cost
	RequestDurationMs int64
}

// CostService converts token usage into money, persists usage records and
// serves aggregated cost reports.
type CostService interface {
	Calculate(provider, model string, usage ai.Usage) pricing.Cost
	RecordUsage(ctx context.Context, entry UsageEntry) error
	SystemCosts(ctx context.Context, days int) (dto.CostReportResponse, error)
	TaskCosts(ctx context.Context, taskID uint) (dto.CostReportResponse, error)
	UserCosts(ctx context.Context, userID uint, days int) (dto.CostReportResponse, error)
}

type costService struct {
	repo     repository.UsageRepository
	table    pricing.Table
	redis    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCostService constructs the cost accountant. The redis client is
// optional; without it system reports skip the cache.
func NewCostService(repo repository.UsageRepository, table pricing.Table, redisClient *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) CostService {
	return &costService{
		repo:     repo,
		table:    table,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "cost_service").Logger(),
		now:      time.Now,
	}
}

func (s *costService) Calculate(provider, model string, usage ai.Usage) pricing.Cost {
	return s.table.Calculate(provider, model, usage)
}

func (s *costService) RecordUsage(ctx context.Context, entry UsageEntry) error {
	record := models.UsageRecord{
		SolutionID:        entry.SolutionID,
		TaskID:            entry.TaskID,
		UserID:            entry.UserID,
		OperationType:     entry.OperationType,
		Provider:          entry.Provider,
		Model:             entry.Model,
		PromptTokens:      entry.Usage.PromptTokens,
		CompletionTokens:  entry.Usage.CompletionTokens,
		TotalTokens:       entry.Usage.TotalTokens,
		CostUsd:           entry.Cost.TotalCost,
		RequestDurationMs: entry.RequestDurationMs,
	}
	return s.repo.Create(ctx, &record)
}

func (s *costService) SystemCosts(ctx context.Context, days int) (dto.CostReportResponse, error) {
	if days <= 0 {
		days = defaultCostReportDays
	}

	cacheKey := fmt.Sprintf("gradeflow:costs:system:%d", days)
	if cached, ok := s.readCache(ctx, cacheKey); ok {
		cached.CacheHit = true
		return cached, nil
	}

	since := s.now().AddDate(0, 0, -days)
	aggregates, err := s.repo.AggregateSystem(ctx, since)
	if err != nil {
		return dto.CostReportResponse{}, err
	}

	report := dto.NewCostReportResponse("system", days, aggregates)
	s.writeCache(ctx, cacheKey, report)
	return report, nil
}

func (s *costService) TaskCosts(ctx context.Context, taskID uint) (dto.CostReportResponse, error) {
	aggregates, err := s.repo.AggregateByTask(ctx, taskID)
	if err != nil {
		return dto.CostReportResponse{}, err
	}
	return dto.NewCostReportResponse("task", 0, aggregates), nil
}

func (s *costService) UserCosts(ctx context.Context, userID uint, days int) (dto.CostReportResponse, error) {
	if days <= 0 {
		days = defaultCostReportDays
	}

	since := s.now().AddDate(0, 0, -days)
	aggregates, err := s.repo.AggregateByUser(ctx, userID, since)
	if err != nil {
		return dto.CostReportResponse{}, err
	}
	return dto.NewCostReportResponse("user", days, aggregates), nil
}

func (s *costService) readCache(ctx context.Context, key string) (dto.CostReportResponse, bool) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return dto.CostReportResponse{}, false
	}

	payload, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return dto.CostReportResponse{}, false
	}

	var report dto.CostReportResponse
	if err := json.Unmarshal(payload, &report); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to decode cached cost report")
		return dto.CostReportResponse{}, false
	}
	return report, true
}

func (s *costService) writeCache(ctx context.Context, key string, report dto.CostReportResponse) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to cache cost report")
	}
}
