package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/handler"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
	"github.com/arketa-lab/gradeflow-api/internal/service"
)

type mockReviewService struct {
	lastActor   service.ActivityActor
	lastPayload dto.ReviewCreateRequest
	lastBatch   []uint
	response    dto.ReviewResponse
	batchResult dto.ReviewBatchResult
	err         error
}

func (m *mockReviewService) Create(_ context.Context, actor service.ActivityActor, payload dto.ReviewCreateRequest) (dto.ReviewResponse, error) {
	m.lastActor = actor
	m.lastPayload = payload
	if m.err != nil {
		return dto.ReviewResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockReviewService) CreateAuto(context.Context, uint, []models.ReviewCriterionScore, string) (models.Review, error) {
	return models.Review{}, m.err
}

func (m *mockReviewService) Get(context.Context, uint) (dto.ReviewResponse, error) {
	if m.err != nil {
		return dto.ReviewResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockReviewService) List(context.Context, repository.ReviewFilter) ([]dto.ReviewResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []dto.ReviewResponse{m.response}, nil
}

func (m *mockReviewService) Update(_ context.Context, actor service.ActivityActor, _ uint, _ dto.ReviewUpdateRequest) (dto.ReviewResponse, error) {
	m.lastActor = actor
	if m.err != nil {
		return dto.ReviewResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockReviewService) Approve(_ context.Context, actor service.ActivityActor, _ uint) (dto.ReviewResponse, error) {
	m.lastActor = actor
	if m.err != nil {
		return dto.ReviewResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockReviewService) Reject(_ context.Context, actor service.ActivityActor, _ uint) error {
	m.lastActor = actor
	return m.err
}

func (m *mockReviewService) BatchApprove(_ context.Context, actor service.ActivityActor, reviewIDs []uint) (dto.ReviewBatchResult, error) {
	m.lastActor = actor
	m.lastBatch = reviewIDs
	return m.batchResult, m.err
}

func (m *mockReviewService) BatchReject(_ context.Context, actor service.ActivityActor, reviewIDs []uint) (dto.ReviewBatchResult, error) {
	m.lastActor = actor
	m.lastBatch = reviewIDs
	return m.batchResult, m.err
}

func (m *mockReviewService) Remove(_ context.Context, actor service.ActivityActor, _ uint) error {
	m.lastActor = actor
	return m.err
}

func newReviewApp(svc service.ReviewService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/reviews", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		c.Locals("user_role", "reviewer")
		return c.Next()
	})
	handler.NewReviewHandler(svc, zerolog.New(io.Discard)).Register(group)
	return app
}

func TestReviewHandler_CreateSuccess(t *testing.T) {
	svc := &mockReviewService{response: dto.ReviewResponse{ID: 3, SolutionID: 5, TotalScore: 12}}
	app := newReviewApp(svc)

	payload := dto.ReviewCreateRequest{
		SolutionID: 5,
		Scores:     []dto.CriterionScoreRequest{{CriterionID: 1, Score: 12}},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool               `json:"success"`
		Data    dto.ReviewResponse `json:"data"`
		Message string             `json:"message"`
	}
	decodeResponse(t, resp, &response)

	require.True(t, response.Success)
	require.Equal(t, "review created", response.Message)
	require.Equal(t, uint(3), response.Data.ID)
	require.Equal(t, uint(7), svc.lastActor.ID)
	require.Equal(t, "reviewer", svc.lastActor.Role)
	require.Equal(t, uint(5), svc.lastPayload.SolutionID)
}

func TestReviewHandler_ApproveSuccess(t *testing.T) {
	svc := &mockReviewService{response: dto.ReviewResponse{ID: 9, Source: models.ReviewSourceAutoApproved}}
	app := newReviewApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/9/approve", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data    dto.ReviewResponse `json:"data"`
		Message string             `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "review approved", response.Message)
	require.Equal(t, models.ReviewSourceAutoApproved, response.Data.Source)
}

func TestReviewHandler_BatchApprovePassesIDs(t *testing.T) {
	svc := &mockReviewService{batchResult: dto.ReviewBatchResult{SucceededCount: 2, FailedCount: 1}}
	app := newReviewApp(svc)

	body, err := json.Marshal(dto.ReviewBatchRequest{ReviewIDs: []uint{1, 2, 3}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/batch/approve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []uint{1, 2, 3}, svc.lastBatch)

	var response struct {
		Data dto.ReviewBatchResult `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, 2, response.Data.SucceededCount)
	require.Equal(t, 1, response.Data.FailedCount)
}

func TestReviewHandler_BatchApproveRequiresIDs(t *testing.T) {
	svc := &mockReviewService{}
	app := newReviewApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/batch/approve", bytes.NewReader([]byte(`{"review_ids": []}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Nil(t, svc.lastBatch)
}

func TestReviewHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "not found", err: service.ErrReviewNotFound, statusCode: fiber.StatusNotFound},
		{name: "already reviewed", err: service.ErrReviewExists, statusCode: fiber.StatusConflict},
		{name: "invalid state", err: service.ErrInvalidReviewState, statusCode: fiber.StatusConflict},
		{name: "forbidden", err: service.ErrReviewForbidden, statusCode: fiber.StatusForbidden},
		{name: "score too high", err: service.ErrScoreExceedsMax, statusCode: fiber.StatusBadRequest},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockReviewService{err: tc.err}
			app := newReviewApp(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/4/approve", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
