package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
)

type solutionFixture struct {
	db      *gorm.DB
	service SolutionService
	batches BatchService
	task    models.Task
}

func setupSolutionService(t *testing.T) *solutionFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:solution_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Task{}, &models.Criterion{},
		&models.Solution{},
		&models.BatchOperation{}, &models.BatchItemError{},
	))

	task := models.Task{
		Title:       "Essay",
		Description: "Write about error handling.",
		Criteria:    []models.Criterion{{Name: "Clarity", MaxPoints: 10}},
	}
	require.NoError(t, db.Create(&task).Error)

	logger := zerolog.Nop()
	batches := NewBatchService(repository.NewBatchOperationRepository(db), logger)
	service := NewSolutionService(
		repository.NewSolutionRepository(db),
		repository.NewTaskRepository(db),
		batches, nil,
		validator.New(validator.WithRequiredStructEnabled()),
		logger,
	)

	return &solutionFixture{db: db, service: service, batches: batches, task: task}
}

func TestSolutionImportPersistsItems(t *testing.T) {
	f := setupSolutionService(t)
	ctx := context.Background()

	accepted, err := f.service.Import(ctx, ActivityActor{ID: 1, Role: "admin"}, dto.SolutionImportRequest{
		TaskID:   f.task.ID,
		SourceID: "moodle-2026-spring",
		Items: []dto.SolutionImportItem{
			{AuthorRef: "student-1", Content: "first answer"},
			{AuthorRef: "student-2", Content: "second answer"},
			{AuthorRef: "student-3", Content: "   "},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, accepted.TotalItems)

	require.Eventually(t, func() bool {
		status, err := f.batches.Get(ctx, accepted.OperationID)
		return err == nil && status.Status == models.BatchOperationStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	status, err := f.batches.Get(ctx, accepted.OperationID)
	require.NoError(t, err)
	require.Equal(t, 2, status.ProcessedItems)
	require.Equal(t, 1, status.FailedItems)
	require.Len(t, status.Errors, 1)
	require.Equal(t, uint(2), status.Errors[0].ItemID)

	solutions, err := f.service.List(ctx, dto.SolutionFilter{SourceID: "moodle-2026-spring"})
	require.NoError(t, err)
	require.Len(t, solutions, 2)
	for _, solution := range solutions {
		require.Equal(t, models.SolutionStatusSubmitted, solution.Status)
		require.Equal(t, f.task.ID, solution.TaskID)
	}
}

func TestSolutionImportUnknownTask(t *testing.T) {
	f := setupSolutionService(t)

	_, err := f.service.Import(context.Background(), ActivityActor{ID: 1, Role: "admin"}, dto.SolutionImportRequest{
		TaskID:   9999,
		SourceID: "src",
		Items:    []dto.SolutionImportItem{{Content: "answer"}},
	})
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestSolutionListFiltersByStatus(t *testing.T) {
	f := setupSolutionService(t)
	ctx := context.Background()

	require.NoError(t, f.db.Create(&models.Solution{TaskID: f.task.ID, Content: "a", Status: models.SolutionStatusSubmitted}).Error)
	require.NoError(t, f.db.Create(&models.Solution{TaskID: f.task.ID, Content: "b", Status: models.SolutionStatusReviewed}).Error)

	status := models.SolutionStatusReviewed
	solutions, err := f.service.List(ctx, dto.SolutionFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, solutions, 1)
	require.Equal(t, "b", solutions[0].Content)
}

func TestSolutionGetUnknown(t *testing.T) {
	f := setupSolutionService(t)

	_, err := f.service.Get(context.Background(), 12345)
	require.ErrorIs(t, err, ErrSolutionNotFound)
}
