package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/handler"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
	"github.com/arketa-lab/gradeflow-api/internal/service"
)

type stubReviewService struct {
	response dto.ReviewResponse
}

func (s stubReviewService) Create(context.Context, service.ActivityActor, dto.ReviewCreateRequest) (dto.ReviewResponse, error) {
	return s.response, nil
}

func (s stubReviewService) CreateAuto(context.Context, uint, []models.ReviewCriterionScore, string) (models.Review, error) {
	return models.Review{}, nil
}

func (s stubReviewService) Get(context.Context, uint) (dto.ReviewResponse, error) {
	return s.response, nil
}

func (s stubReviewService) List(context.Context, repository.ReviewFilter) ([]dto.ReviewResponse, error) {
	return []dto.ReviewResponse{s.response}, nil
}

func (s stubReviewService) Update(context.Context, service.ActivityActor, uint, dto.ReviewUpdateRequest) (dto.ReviewResponse, error) {
	return s.response, nil
}

func (s stubReviewService) Approve(context.Context, service.ActivityActor, uint) (dto.ReviewResponse, error) {
	return s.response, nil
}

func (s stubReviewService) Reject(context.Context, service.ActivityActor, uint) error {
	return nil
}

func (s stubReviewService) BatchApprove(context.Context, service.ActivityActor, []uint) (dto.ReviewBatchResult, error) {
	return dto.ReviewBatchResult{}, nil
}

func (s stubReviewService) BatchReject(context.Context, service.ActivityActor, []uint) (dto.ReviewBatchResult, error) {
	return dto.ReviewBatchResult{}, nil
}

func (s stubReviewService) Remove(context.Context, service.ActivityActor, uint) error {
	return nil
}

func TestReviewContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "review.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	reviewerID := uint(7)
	review := dto.ReviewResponse{
		ID:         12,
		SolutionID: 4,
		ReviewerID: &reviewerID,
		Scores: []dto.CriterionScoreResponse{
			{CriterionID: 1, Score: 8.5, Comment: "solid structure"},
			{CriterionID: 2, Score: 3, Comment: ""},
		},
		TotalScore:        11.5,
		FeedbackToStudent: "Well organised solution.",
		ReviewerComment:   "checked against the rubric",
		Source:            "auto_modified",
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}

	serviceStub := stubReviewService{response: review}
	reviewHandler := handler.NewReviewHandler(serviceStub, zerolog.Nop())

	app := fiber.New()
	reviewHandler.Register(app.Group("/api/v1/reviews"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews/12", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
