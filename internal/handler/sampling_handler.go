package handler

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/markwise-go-api/internal/dto"
	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/service"
	"github.com/noah-isme/markwise-go-api/internal/utils"
)

// SamplingHandler wires sampling and moderation HTTP routes.
type SamplingHandler struct {
	courseworks service.CourseworkService
	sampling    service.SamplingService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSamplingHandler constructs the handler.
func NewSamplingHandler(courseworks service.CourseworkService, sampling service.SamplingService, validate *validator.Validate, logger zerolog.Logger) *SamplingHandler {
	return &SamplingHandler{
		courseworks: courseworks,
		sampling:    sampling,
		validator:   validate,
		logger:      logger.With().Str("component", "sampling_handler").Logger(),
	}
}

// Register attaches sampling endpoints to a coursework-scoped group.
func (h *SamplingHandler) Register(router fiber.Router) {
	router.Post("/compute/:stage", h.compute)
	router.Post("/rules", h.saveRule)
	router.Post("/manual", h.addManual)
}

func (h *SamplingHandler) compute(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	stage, err := models.ParseStage(c.Params("stage"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	sample, err := h.sampling.ComputeSample(c.Context(), coursework, stage)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "sample computed", sample)
}

func (h *SamplingHandler) saveRule(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	var payload dto.SampleRuleRequest
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

	config, err := json.Marshal(payload.Config)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid rule config")
	}

	rule, err := h.sampling.SaveRule(c.Context(), coursework, stage, payload.Type, config, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "sampling rule saved", rule)
}

func (h *SamplingHandler) addManual(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	var payload dto.SampleManualRequest
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
	if err := h.sampling.AddManual(c.Context(), coursework, target, stage, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission added to sample", fiber.Map{
		"allocatable_id":   target.ID,
		"allocatable_type": target.Type,
		"stage":            stage.Identifier(),
	})
}

func (h *SamplingHandler) loadCoursework(c *fiber.Ctx) (models.Coursework, error) {
	id, err := parseUintParam(c, "courseworkID")
	if err != nil {
		return models.Coursework{}, err
	}
	return h.courseworks.Get(c.Context(), id)
}

func (h *SamplingHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidIdentifier):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCourseworkNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "coursework not found")
	case errors.Is(err, service.ErrPermissionDenied):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrInvalidSampleRule), errors.Is(err, service.ErrSamplingDisabled), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *SamplingHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
