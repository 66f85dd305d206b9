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
)

// OperationHandler serves the batch operation polling and control endpoints.
type OperationHandler struct {
	service     service.BatchService
	assessments service.AssessmentService
	logger      zerolog.Logger
}

// NewOperationHandler constructs the handler instance.
func NewOperationHandler(service service.BatchService, assessments service.AssessmentService, logger zerolog.Logger) *OperationHandler {
	return &OperationHandler{
		service:     service,
		assessments: assessments,
		logger:      logger.With().Str("component", "operation_handler").Logger(),
	}
}

// Register wires the operation routes.
func (h *OperationHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/cancel", h.cancel)
	router.Post("/:id/restart", h.restart)
}

func (h *OperationHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	req := dto.OperationListRequest{
		Type:     strings.TrimSpace(c.Query("type")),
		Status:   strings.TrimSpace(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	}

	operations, err := h.service.List(c.Context(), req)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "operations retrieved", operations)
}

func (h *OperationHandler) get(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid operation identifier")
	}

	operation, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "operation retrieved", operation)
}

func (h *OperationHandler) cancel(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid operation identifier")
	}

	if err := h.service.Cancel(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "operation cancelled", fiber.Map{"id": id})
}

func (h *OperationHandler) restart(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid operation identifier")
	}

	accepted, err := h.assessments.ResumeOperation(c.Context(), activityActorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "operation restarted", accepted)
}

func (h *OperationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrOperationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "operation not found")
	case errors.Is(err, service.ErrOperationTerminal):
		return utils.SendError(c, fiber.StatusConflict, "operation is already finished")
	case errors.Is(err, service.ErrOperationNotRestartable):
		return utils.SendError(c, fiber.StatusConflict, "only finished operations can be restarted")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
