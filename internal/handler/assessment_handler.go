package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/service"
	"github.com/arketa-lab/gradeflow-api/internal/utils"
	"github.com/arketa-lab/gradeflow-api/pkg/ai"
)

// AssessmentHandler serves automated assessment endpoints. Single-solution
// assessment runs inline; the batch variants answer immediately with an
// operation id that clients poll.
type AssessmentHandler struct {
	service service.AssessmentService
	logger  zerolog.Logger
}

// NewAssessmentHandler constructs the handler instance.
func NewAssessmentHandler(service service.AssessmentService, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register wires the assessment routes.
func (h *AssessmentHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Post("/solutions/:id", h.assessSolution)
	router.Post("/batch", h.assessBatch)
	router.Post("/tasks/:id", h.assessByTask)
	router.Post("/sources/:sourceId", h.assessBySource)
}

func (h *AssessmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assessment, err := h.service.GetAssessment(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "assessment retrieved", assessment)
}

func (h *AssessmentHandler) assessSolution(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssessByModelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	assessment, err := h.service.AssessSolution(c.Context(), id, payload.Model)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "solution assessed", assessment)
}

func (h *AssessmentHandler) assessBatch(c *fiber.Ctx) error {
	var payload dto.AssessSolutionsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	accepted, err := h.service.AssessSolutions(c.Context(), activityActorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "assessment accepted", accepted)
}

func (h *AssessmentHandler) assessByTask(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssessByModelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	accepted, err := h.service.AssessSolutionsByTask(c.Context(), activityActorFromContext(c), taskID, payload.Model)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "assessment accepted", accepted)
}

func (h *AssessmentHandler) assessBySource(c *fiber.Ctx) error {
	sourceID := strings.TrimSpace(c.Params("sourceId"))
	if sourceID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid source identifier")
	}

	var payload dto.AssessByModelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	accepted, err := h.service.AssessSolutionsBySource(c.Context(), activityActorFromContext(c), sourceID, payload.Model)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "assessment accepted", accepted)
}

func (h *AssessmentHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	var configErr *ai.ConfigurationError
	var providerErr *ai.ProviderError
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assessment not found")
	case errors.Is(err, service.ErrSolutionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "solution not found")
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.As(err, &configErr):
		requestLogger(h.logger, c).Error().Err(err).Msg("evaluator misconfigured")
		return utils.SendError(c, fiber.StatusServiceUnavailable, "automated evaluator is not configured")
	case errors.As(err, &providerErr):
		requestLogger(h.logger, c).Error().Err(err).Msg("evaluator call failed")
		return utils.SendError(c, fiber.StatusBadGateway, "automated evaluator is unavailable")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
