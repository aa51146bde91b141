package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/markwise-go-api/internal/dto"
	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/service"
	"github.com/noah-isme/markwise-go-api/internal/utils"
)

// DeadlineHandler wires deadline resolution and override HTTP routes.
type DeadlineHandler struct {
	courseworks service.CourseworkService
	deadlines   service.DeadlineService
	logger      zerolog.Logger
}

// NewDeadlineHandler constructs the handler.
func NewDeadlineHandler(courseworks service.CourseworkService, deadlines service.DeadlineService, logger zerolog.Logger) *DeadlineHandler {
	return &DeadlineHandler{
		courseworks: courseworks,
		deadlines:   deadlines,
		logger:      logger.With().Str("component", "deadline_handler").Logger(),
	}
}

// Register attaches deadline endpoints to a coursework-scoped group.
func (h *DeadlineHandler) Register(router fiber.Router) {
	router.Get("/effective", h.effective)
	router.Put("/personal", h.setPersonal)
	router.Post("/extensions", h.grantExtension)
}

func (h *DeadlineHandler) effective(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	target, err := allocatableFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	deadline, err := h.deadlines.EffectiveDeadline(c.Context(), coursework, target)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "effective deadline resolved", dto.DeadlineResponse{
		AllocatableID:   target.ID,
		AllocatableType: string(target.Type),
		Deadline:        deadline,
	})
}

func (h *DeadlineHandler) setPersonal(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	var payload dto.PersonalDeadlineRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	deadline, err := h.deadlines.SetPersonalDeadline(c.Context(), coursework, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "personal deadline saved", deadline)
}

func (h *DeadlineHandler) grantExtension(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	var payload dto.ExtensionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	extension, err := h.deadlines.GrantExtension(c.Context(), coursework, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "extension granted", dto.NewExtensionResponse(extension))
}

func (h *DeadlineHandler) loadCoursework(c *fiber.Ctx) (models.Coursework, error) {
	id, err := parseUintParam(c, "courseworkID")
	if err != nil {
		return models.Coursework{}, err
	}
	return h.courseworks.Get(c.Context(), id)
}

func (h *DeadlineHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidIdentifier):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCourseworkNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "coursework not found")
	case errors.Is(err, service.ErrPermissionDenied):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrPersonalDeadlinesDisabled), errors.Is(err, service.ErrExtensionsDisabled), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *DeadlineHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
