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

// SolutionHandler serves solution listing, detail and bulk import endpoints.
type SolutionHandler struct {
	solutions   service.SolutionService
	assessments service.AssessmentService
	logger      zerolog.Logger
}

// NewSolutionHandler constructs the handler instance.
func NewSolutionHandler(solutions service.SolutionService, assessments service.AssessmentService, logger zerolog.Logger) *SolutionHandler {
	return &SolutionHandler{
		solutions:   solutions,
		assessments: assessments,
		logger:      logger.With().Str("component", "solution_handler").Logger(),
	}
}

// Register wires the solution routes.
func (h *SolutionHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/assessments", h.listAssessments)
	router.Post("/import", h.importSolutions)
}

func (h *SolutionHandler) list(c *fiber.Ctx) error {
	var filter dto.SolutionFilter

	taskID, err := parseQueryUint(c, "task_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task_id")
	}
	filter.TaskID = taskID

	authorID, err := parseQueryUint(c, "author_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid author_id")
	}
	filter.AuthorID = authorID

	filter.SourceID = strings.TrimSpace(c.Query("source_id"))
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = &status
	}

	solutions, err := h.solutions.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "solutions retrieved", solutions)
}

func (h *SolutionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	solution, err := h.solutions.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "solution retrieved", solution)
}

func (h *SolutionHandler) listAssessments(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assessments, err := h.assessments.ListBySolution(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "assessments retrieved", assessments)
}

func (h *SolutionHandler) importSolutions(c *fiber.Ctx) error {
	var payload dto.SolutionImportRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	accepted, err := h.solutions.Import(c.Context(), activityActorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "import accepted", accepted)
}

func (h *SolutionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSolutionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "solution not found")
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
