package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/pricing"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
	"github.com/arketa-lab/gradeflow-api/pkg/ai"
)

func setupCostService(t *testing.T, redisClient *redis.Client) (CostService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:cost_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UsageRecord{}))

	svc := NewCostService(repository.NewUsageRepository(db), pricing.DefaultTable(), redisClient, time.Minute, zerolog.Nop())
	return svc, db
}

func TestCostServiceCalculateRoundsToSixDecimals(t *testing.T) {
	table := pricing.NewTable(map[string]map[string]pricing.Rate{
		"openai": {
			"gpt-test": {PromptPerToken: 0.000005, CompletionPerToken: 0.000015},
		},
	}, pricing.DefaultRate)
	svc := NewCostService(nil, table, nil, time.Minute, zerolog.Nop())

	cost := svc.Calculate("openai", "gpt-test", ai.Usage{PromptTokens: 1000, CompletionTokens: 500})
	require.InDelta(t, 0.005, cost.PromptCost, 1e-9)
	require.InDelta(t, 0.0075, cost.CompletionCost, 1e-9)
	require.InDelta(t, 0.0125, cost.TotalCost, 1e-9)
}

func TestCostServiceRecordUsagePersistsRecord(t *testing.T) {
	svc, db := setupCostService(t, nil)
	solutionID := uint(11)

	err := svc.RecordUsage(context.Background(), UsageEntry{
		SolutionID:        &solutionID,
		OperationType:     models.OperationTypeAssessment,
		Provider:          "openai",
		Model:             "gpt-4o",
		Usage:             ai.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
		Cost:              pricing.Cost{TotalCost: 0.0031},
		RequestDurationMs: 900,
	})
	require.NoError(t, err)

	var record models.UsageRecord
	require.NoError(t, db.First(&record).Error)
	require.Equal(t, models.OperationTypeAssessment, record.OperationType)
	require.Equal(t, 120, record.TotalTokens)
	require.InDelta(t, 0.0031, record.CostUsd, 1e-9)
}

func TestCostServiceSystemCostsUsesCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	svc, db := setupCostService(t, redisClient)

	require.NoError(t, db.Create(&models.UsageRecord{
		OperationType: models.OperationTypeAssessment,
		Provider:      "openai",
		Model:         "gpt-4o",
		PromptTokens:  100,
		TotalTokens:   100,
		CostUsd:       0.5,
	}).Error)

	first, err := svc.SystemCosts(context.Background(), 30)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.InDelta(t, 0.5, first.TotalCostUsd, 1e-9)

	// the cached report survives new usage until the TTL expires
	require.NoError(t, db.Create(&models.UsageRecord{
		OperationType: models.OperationTypeAssessment,
		Provider:      "openai",
		Model:         "gpt-4o",
		TotalTokens:   50,
		CostUsd:       0.25,
	}).Error)

	second, err := svc.SystemCosts(context.Background(), 30)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.InDelta(t, 0.5, second.TotalCostUsd, 1e-9)
}

func TestCostServiceSystemCostsWithoutRedis(t *testing.T) {
	svc, db := setupCostService(t, nil)

	require.NoError(t, db.Create(&models.UsageRecord{
		OperationType: models.OperationTypeAssessment,
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		TotalTokens:   40,
		CostUsd:       0.1,
	}).Error)

	report, err := svc.SystemCosts(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, report.CacheHit)
	require.InDelta(t, 0.1, report.TotalCostUsd, 1e-9)
	require.Len(t, report.Buckets, 1)
}
