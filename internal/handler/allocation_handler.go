package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/markwise-go-api/internal/dto"
	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/service"
	"github.com/noah-isme/markwise-go-api/internal/utils"
)

// AllocationHandler wires marker allocation HTTP routes.
type AllocationHandler struct {
	courseworks service.CourseworkService
	allocations service.AllocationService
	repo        repository.AllocationRepository
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAllocationHandler constructs the handler.
func NewAllocationHandler(courseworks service.CourseworkService, allocations service.AllocationService, repo repository.AllocationRepository, validate *validator.Validate, logger zerolog.Logger) *AllocationHandler {
	return &AllocationHandler{
		courseworks: courseworks,
		allocations: allocations,
		repo:        repo,
		validator:   validate,
		logger:      logger.With().Str("component", "allocation_handler").Logger(),
	}
}

// Register attaches allocation endpoints to a coursework-scoped group.
func (h *AllocationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/run/:stage", h.run)
	router.Post("/pin", h.pin)
	router.Delete("/:id", h.delete)
}

func (h *AllocationHandler) list(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	allocations, err := h.repo.ListByCoursework(c.Context(), coursework.ID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "allocations retrieved", dto.NewAllocationResponseSlice(allocations))
}

func (h *AllocationHandler) run(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	stage, err := models.ParseStage(c.Params("stage"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	allocations, err := h.allocations.ProcessAllocations(c.Context(), coursework, stage, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "allocation run completed", dto.NewAllocationResponseSlice(allocations))
}

func (h *AllocationHandler) pin(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	var payload dto.AllocationPinRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stage, err := models.ParseStage(payload.Stage)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	target := models.Allocatable{ID: payload.AllocatableID, Type: models.AllocatableType(payload.AllocatableType)}
	allocation, err := h.allocations.PinAllocation(c.Context(), coursework, target, stage, payload.AssessorID, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "allocation pinned", dto.NewAllocationResponse(allocation))
}

func (h *AllocationHandler) delete(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.allocations.DeleteAllocation(c.Context(), coursework, id, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "allocation deleted", fiber.Map{"id": id})
}

func (h *AllocationHandler) loadCoursework(c *fiber.Ctx) (models.Coursework, error) {
	id, err := parseUintParam(c, "courseworkID")
	if err != nil {
		return models.Coursework{}, err
	}
	return h.courseworks.Get(c.Context(), id)
}

func (h *AllocationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidIdentifier):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCourseworkNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "coursework not found")
	case errors.Is(err, service.ErrPermissionDenied):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrAllocationFrozen):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnknownStrategy), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *AllocationHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
