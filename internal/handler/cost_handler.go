package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/arketa-lab/gradeflow-api/internal/service"
	"github.com/arketa-lab/gradeflow-api/internal/utils"
)

// CostHandler serves aggregated usage-cost reports.
type CostHandler struct {
	service service.CostService
	logger  zerolog.Logger
}

// NewCostHandler constructs the handler instance.
func NewCostHandler(service service.CostService, logger zerolog.Logger) *CostHandler {
	return &CostHandler{
		service: service,
		logger:  logger.With().Str("component", "cost_handler").Logger(),
	}
}

// Register wires the cost reporting routes.
func (h *CostHandler) Register(router fiber.Router) {
	router.Get("/system", h.system)
	router.Get("/tasks/:id", h.task)
	router.Get("/users/:id", h.user)
}

func (h *CostHandler) system(c *fiber.Ctx) error {
	days, err := parseQueryInt(c, "days")
	if err != nil || days < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
	}

	report, err := h.service.SystemCosts(c.Context(), days)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "system costs retrieved", report)
}

func (h *CostHandler) task(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.service.TaskCosts(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "task costs retrieved", report)
}

func (h *CostHandler) user(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	days, err := parseQueryInt(c, "days")
	if err != nil || days < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
	}

	report, err := h.service.UserCosts(c.Context(), id, days)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "user costs retrieved", report)
}

func (h *CostHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	}
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
