package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
	"github.com/arketa-lab/gradeflow-api/internal/service"
	"github.com/arketa-lab/gradeflow-api/internal/utils"
)

// ReviewHandler serves the review workflow endpoints.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler constructs the handler instance.
func NewReviewHandler(service service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register wires the review routes.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Post("/", h.create)
	router.Patch("/:id", h.update)
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/reject", h.reject)
	router.Post("/batch/approve", h.batchApprove)
	router.Post("/batch/reject", h.batchReject)
	router.Delete("/:id", h.remove)
}

func (h *ReviewHandler) list(c *fiber.Ctx) error {
	var filter repository.ReviewFilter

	solutionID, err := parseQueryUint(c, "solution_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid solution_id")
	}
	filter.SolutionID = solutionID

	reviewerID, err := parseQueryUint(c, "reviewer_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid reviewer_id")
	}
	filter.ReviewerID = reviewerID
	filter.Source = strings.TrimSpace(c.Query("source"))

	reviews, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "reviews retrieved", reviews)
}

func (h *ReviewHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	review, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "review retrieved", review)
}

func (h *ReviewHandler) create(c *fiber.Ctx) error {
	var payload dto.ReviewCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	review, err := h.service.Create(c.Context(), activityActorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "review created", review)
}

func (h *ReviewHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ReviewUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	review, err := h.service.Update(c.Context(), activityActorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "review updated", review)
}

func (h *ReviewHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	review, err := h.service.Approve(c.Context(), activityActorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "review approved", review)
}

func (h *ReviewHandler) reject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Reject(c.Context(), activityActorFromContext(c), id); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "review rejected", fiber.Map{"id": id})
}

func (h *ReviewHandler) remove(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Remove(c.Context(), activityActorFromContext(c), id); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "review removed", fiber.Map{"id": id})
}

func (h *ReviewHandler) batchApprove(c *fiber.Ctx) error {
	return h.batchDecision(c, h.service.BatchApprove, "batch approve finished")
}

func (h *ReviewHandler) batchReject(c *fiber.Ctx) error {
	return h.batchDecision(c, h.service.BatchReject, "batch reject finished")
}

func (h *ReviewHandler) batchDecision(c *fiber.Ctx, decide func(context.Context, service.ActivityActor, []uint) (dto.ReviewBatchResult, error), message string) error {
	var payload dto.ReviewBatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(payload.ReviewIDs) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "review_ids is required")
	}

	result, err := decide(c.Context(), activityActorFromContext(c), payload.ReviewIDs)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, message, result)
}

func (h *ReviewHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrReviewNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "review not found")
	case errors.Is(err, service.ErrSolutionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "solution not found")
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrReviewExists):
		return utils.SendError(c, fiber.StatusConflict, "solution already has a review")
	case errors.Is(err, service.ErrInvalidReviewState):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrReviewForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "not allowed to review")
	case errors.Is(err, service.ErrScoreExceedsMax), errors.Is(err, service.ErrUnknownCriterion):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
