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

// FeedbackHandler wires feedback HTTP routes.
type FeedbackHandler struct {
	courseworks service.CourseworkService
	feedbacks   service.FeedbackService
	logger      zerolog.Logger
}

// NewFeedbackHandler constructs the handler.
func NewFeedbackHandler(courseworks service.CourseworkService, feedbacks service.FeedbackService, logger zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		courseworks: courseworks,
		feedbacks:   feedbacks,
		logger:      logger.With().Str("component", "feedback_handler").Logger(),
	}
}

// Register attaches feedback endpoints to a coursework-scoped group.
func (h *FeedbackHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Patch("/:id", h.update)
	router.Get("/submission/:submissionID", h.listForSubmission)
}

func (h *FeedbackHandler) create(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	var payload dto.FeedbackCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	feedback, err := h.feedbacks.Create(c.Context(), coursework, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback created", dto.NewFeedbackResponse(feedback))
}

func (h *FeedbackHandler) update(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.FeedbackUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	feedback, err := h.feedbacks.Update(c.Context(), coursework, id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "feedback updated", dto.NewFeedbackResponse(feedback))
}

func (h *FeedbackHandler) listForSubmission(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	submissionID, err := parseUintParam(c, "submissionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	feedbacks, err := h.feedbacks.ListForSubmission(c.Context(), coursework, submissionID, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "feedback retrieved", dto.NewFeedbackResponseSlice(feedbacks))
}

func (h *FeedbackHandler) loadCoursework(c *fiber.Ctx) (models.Coursework, error) {
	id, err := parseUintParam(c, "courseworkID")
	if err != nil {
		return models.Coursework{}, err
	}
	return h.courseworks.Get(c.Context(), id)
}

func (h *FeedbackHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidIdentifier):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCourseworkNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "coursework not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrFeedbackNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "feedback not found")
	case errors.Is(err, service.ErrPermissionDenied):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrFeedbackExists), errors.Is(err, service.ErrEditingWindowClosed):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrGradeOutOfRange), errors.Is(err, service.ErrStageNotConfigured), errors.Is(err, models.ErrInvalidStage), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *FeedbackHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
