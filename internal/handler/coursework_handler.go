package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/markwise-go-api/internal/dto"
	"github.com/noah-isme/markwise-go-api/internal/service"
	"github.com/noah-isme/markwise-go-api/internal/utils"
)

// CourseworkHandler wires coursework settings HTTP routes.
type CourseworkHandler struct {
	service service.CourseworkService
	logger  zerolog.Logger
}

// NewCourseworkHandler constructs the handler.
func NewCourseworkHandler(service service.CourseworkService, logger zerolog.Logger) *CourseworkHandler {
	return &CourseworkHandler{
		service: service,
		logger:  logger.With().Str("component", "coursework_handler").Logger(),
	}
}

// Register attaches coursework endpoints to the router group.
func (h *CourseworkHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Patch("/:id", h.update)
}

func (h *CourseworkHandler) list(c *fiber.Ctx) error {
	courseworks, err := h.service.List(c.Context())
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "courseworks retrieved", dto.NewCourseworkResponseSlice(courseworks))
}

func (h *CourseworkHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	coursework, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrCourseworkNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "coursework not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "coursework retrieved", dto.NewCourseworkResponse(coursework))
}

func (h *CourseworkHandler) create(c *fiber.Ctx) error {
	var payload dto.CourseworkCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	coursework, err := h.service.Create(c.Context(), payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "coursework created", dto.NewCourseworkResponse(coursework))
}

func (h *CourseworkHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CourseworkUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	coursework, err := h.service.Update(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "coursework updated", dto.NewCourseworkResponse(coursework))
}

func (h *CourseworkHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrCourseworkNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "coursework not found")
	case errors.Is(err, service.ErrPermissionDenied):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrInvalidSettings), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *CourseworkHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
