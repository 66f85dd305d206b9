package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/config"
	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/handler"
	"github.com/arketa-lab/gradeflow-api/internal/middleware"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/pricing"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
	"github.com/arketa-lab/gradeflow-api/internal/router"
	"github.com/arketa-lab/gradeflow-api/internal/service"
	"github.com/arketa-lab/gradeflow-api/pkg/ai"
)

type scriptedProvider struct {
	respond func(req ai.CompletionRequest) (ai.Completion, error)
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req ai.CompletionRequest) (ai.Completion, error) {
	return p.respond(req)
}

func setupGradingApp(t *testing.T, provider *scriptedProvider) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:e2e_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Task{}, &models.Criterion{},
		&models.Solution{},
		&models.AutoAssessment{},
		&models.Review{}, &models.ReviewCriterionScore{},
		&models.BatchOperation{}, &models.BatchItemError{},
		&models.UsageRecord{},
		&models.ActivityLog{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	taskRepo := repository.NewTaskRepository(db)
	solutionRepo := repository.NewSolutionRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	batchRepo := repository.NewBatchOperationRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, nil, "gradeflow", validate, logger)
	batchService := service.NewBatchService(batchRepo, logger)
	costService := service.NewCostService(usageRepo, pricing.DefaultTable(), nil, time.Minute, logger)
	taskService := service.NewTaskService(taskRepo, validate, activityService, logger)
	solutionService := service.NewSolutionService(solutionRepo, taskRepo, batchService, activityService, validate, logger)
	reviewService := service.NewReviewService(reviewRepo, solutionRepo, taskRepo, validate, activityService, logger)
	assessmentService := service.NewAssessmentService(
		assessmentRepo, solutionRepo, taskRepo,
		provider, costService, reviewService, batchService, activityService, validate,
		service.AssessmentConfig{DefaultModel: "gpt-4o-mini", Workers: 2, MaxTokens: 1024},
		logger,
	)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})

	router.Register(app, config.Config{AppName: "GradeFlow API", AppEnv: "test"}, router.Dependencies{
		TaskHandler:       handler.NewTaskHandler(taskService, logger),
		SolutionHandler:   handler.NewSolutionHandler(solutionService, assessmentService, logger),
		AssessmentHandler: handler.NewAssessmentHandler(assessmentService, logger),
		ReviewHandler:     handler.NewReviewHandler(reviewService, logger),
		OperationHandler:  handler.NewOperationHandler(batchService, assessmentService, logger),
		CostHandler:       handler.NewCostHandler(costService, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(9001))
			c.Locals("user_role", "admin")
			return c.Next()
		},
	})

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func TestGradingEndToEndFlow(t *testing.T) {
	provider := &scriptedProvider{}
	app := setupGradingApp(t, provider)

	// Step 1: create a task with a two-criterion rubric
	createResp := postJSON(t, app, "/api/v1/tasks", map[string]interface{}{
		"title":       "Shortest path",
		"description": "Implement Dijkstra over an adjacency list.",
		"criteria": []map[string]interface{}{
			{"name": "Correctness", "max_points": 10},
			{"name": "Complexity", "max_points": 5},
		},
	})
	require.Equal(t, fiber.StatusCreated, createResp.StatusCode)

	var taskBody struct {
		Success bool             `json:"success"`
		Data    dto.TaskResponse `json:"data"`
	}
	decode(t, createResp, &taskBody)
	require.True(t, taskBody.Success)
	require.Len(t, taskBody.Data.Criteria, 2)

	correctness := taskBody.Data.Criteria[0].ID
	complexity := taskBody.Data.Criteria[1].ID
	provider.respond = func(ai.CompletionRequest) (ai.Completion, error) {
		return ai.Completion{
			Content: fmt.Sprintf(`{"scores": {"%d": 9, "%d": 4}, "feedback": "Clean implementation.", "total": 13}`, correctness, complexity),
			Usage:   ai.Usage{PromptTokens: 800, CompletionTokens: 200, TotalTokens: 1000},
		}, nil
	}

	// Step 2: import two solutions and wait for the operation to finish
	importResp := postJSON(t, app, "/api/v1/solutions/import", map[string]interface{}{
		"task_id":   taskBody.Data.ID,
		"source_id": "course-42",
		"items": []map[string]interface{}{
			{"author_ref": "student-1", "content": "func dijkstra(...) {...}"},
			{"author_ref": "student-2", "content": "func shortest(...) {...}"},
		},
	})
	require.Equal(t, fiber.StatusAccepted, importResp.StatusCode)

	var importBody struct {
		Success bool                          `json:"success"`
		Data    dto.OperationAcceptedResponse `json:"data"`
	}
	decode(t, importResp, &importBody)
	require.True(t, importBody.Success)
	require.Equal(t, 2, importBody.Data.TotalItems)

	require.Eventually(t, func() bool {
		resp := getJSON(t, app, "/api/v1/operations/"+importBody.Data.OperationID)
		var body struct {
			Data dto.OperationResponse `json:"data"`
		}
		decode(t, resp, &body)
		return body.Data.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	listResp := getJSON(t, app, "/api/v1/solutions?task_id="+strconv.Itoa(int(taskBody.Data.ID)))
	require.Equal(t, fiber.StatusOK, listResp.StatusCode)

	var solutionsBody struct {
		Data []dto.SolutionResponse `json:"data"`
	}
	decode(t, listResp, &solutionsBody)
	require.Len(t, solutionsBody.Data, 2)
	solutionID := solutionsBody.Data[0].ID

	// Step 3: run the automated assessment inline
	assessResp := postJSON(t, app, "/api/v1/assessments/solutions/"+strconv.Itoa(int(solutionID)), nil)
	require.Equal(t, fiber.StatusOK, assessResp.StatusCode)

	var assessBody struct {
		Success bool                       `json:"success"`
		Data    dto.AutoAssessmentResponse `json:"data"`
	}
	decode(t, assessResp, &assessBody)
	require.True(t, assessBody.Success)
	require.Equal(t, 13.0, assessBody.Data.TotalScore)
	require.Equal(t, "gpt-4o-mini", assessBody.Data.Model)

	// Step 4: the assessment derives a draft review
	reviewsResp := getJSON(t, app, "/api/v1/reviews?solution_id="+strconv.Itoa(int(solutionID)))
	require.Equal(t, fiber.StatusOK, reviewsResp.StatusCode)

	var reviewsBody struct {
		Data []dto.ReviewResponse `json:"data"`
	}
	decode(t, reviewsResp, &reviewsBody)
	require.Len(t, reviewsBody.Data, 1)
	require.Equal(t, models.ReviewSourceAuto, reviewsBody.Data[0].Source)
	require.Equal(t, 13.0, reviewsBody.Data[0].TotalScore)

	// Step 5: a reviewer approves the draft
	approveResp := postJSON(t, app, "/api/v1/reviews/"+strconv.Itoa(int(reviewsBody.Data[0].ID))+"/approve", nil)
	require.Equal(t, fiber.StatusOK, approveResp.StatusCode)

	var approvedBody struct {
		Data dto.ReviewResponse `json:"data"`
	}
	decode(t, approveResp, &approvedBody)
	require.Equal(t, models.ReviewSourceAutoApproved, approvedBody.Data.Source)
	require.NotNil(t, approvedBody.Data.ReviewerID)
	require.Equal(t, uint(9001), *approvedBody.Data.ReviewerID)

	// Step 6: the solution carries the authoritative grade
	solutionResp := getJSON(t, app, "/api/v1/solutions/"+strconv.Itoa(int(solutionID)))
	var solutionBody struct {
		Data dto.SolutionResponse `json:"data"`
	}
	decode(t, solutionResp, &solutionBody)
	require.Equal(t, models.SolutionStatusReviewed, solutionBody.Data.Status)

	// Step 7: usage shows up in the system cost report
	costResp := getJSON(t, app, "/api/v1/costs/system")
	require.Equal(t, fiber.StatusOK, costResp.StatusCode)

	var costBody struct {
		Data dto.CostReportResponse `json:"data"`
	}
	decode(t, costResp, &costBody)
	require.Equal(t, int64(1000), costBody.Data.TotalTokens)
	require.Greater(t, costBody.Data.TotalCostUsd, 0.0)
}
