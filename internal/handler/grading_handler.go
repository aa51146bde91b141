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

// GradingHandler wires the aggregation and publishing sweeps.
type GradingHandler struct {
	courseworks service.CourseworkService
	aggregation service.AggregationService
	publishing  service.PublishService
	logger      zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(courseworks service.CourseworkService, aggregation service.AggregationService, publishing service.PublishService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		courseworks: courseworks,
		aggregation: aggregation,
		publishing:  publishing,
		logger:      logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to a coursework-scoped group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("/aggregate", h.aggregate)
	router.Post("/publish", h.publishAll)
	router.Post("/publish/:submissionID", h.publishOne)
}

func (h *GradingHandler) aggregate(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	created, err := h.aggregation.CreateAutomaticFeedback(c.Context(), coursework)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "aggregation sweep completed", fiber.Map{"created": created})
}

func (h *GradingHandler) publishAll(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	published, err := h.publishing.PublishAll(c.Context(), coursework, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "publish sweep completed", fiber.Map{"published": published})
}

func (h *GradingHandler) publishOne(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	submissionID, err := parseUintParam(c, "submissionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.publishing.Publish(c.Context(), coursework, submissionID, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grades published", dto.NewSubmissionResponse(submission, models.StatePublished))
}

func (h *GradingHandler) loadCoursework(c *fiber.Ctx) (models.Coursework, error) {
	id, err := parseUintParam(c, "courseworkID")
	if err != nil {
		return models.Coursework{}, err
	}
	return h.courseworks.Get(c.Context(), id)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidIdentifier):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCourseworkNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "coursework not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrPermissionDenied):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrNotReadyToPublish):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrGradebookWrite):
		return utils.SendError(c, fiber.StatusBadGateway, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *GradingHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
