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

// SubmissionHandler wires submission lifecycle HTTP routes.
type SubmissionHandler struct {
	courseworks service.CourseworkService
	submissions service.SubmissionService
	states      service.StateService
	logger      zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(courseworks service.CourseworkService, submissions service.SubmissionService, states service.StateService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		courseworks: courseworks,
		submissions: submissions,
		states:      states,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission endpoints to a coursework-scoped group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("/files", h.upload)
	router.Post("/:id/finalise", h.finalise)
	router.Post("/sweep", h.autoFinalise)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	submissions, err := h.submissions.ListForCoursework(c.Context(), coursework, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		state, err := h.states.State(c.Context(), coursework, submission)
		if err != nil {
			return h.internalError(c, err)
		}
		responses = append(responses, dto.NewSubmissionResponse(submission, state))
	}

	return utils.SendSuccess(c, "submissions retrieved", responses)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, state, err := h.submissions.Get(c.Context(), coursework, id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", dto.NewSubmissionResponse(submission, state))
}

func (h *SubmissionHandler) upload(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "submission file is required")
	}

	submission, err := h.submissions.Upload(c.Context(), coursework, file, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	state, err := h.states.State(c.Context(), coursework, submission)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "file uploaded", dto.NewSubmissionResponse(submission, state))
}

func (h *SubmissionHandler) finalise(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.submissions.Finalise(c.Context(), coursework, id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	state, err := h.states.State(c.Context(), coursework, submission)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "submission finalised", dto.NewSubmissionResponse(submission, state))
}

func (h *SubmissionHandler) autoFinalise(c *fiber.Ctx) error {
	coursework, err := h.loadCoursework(c)
	if err != nil {
		return h.handleError(c, err)
	}

	count, err := h.submissions.AutoFinalise(c.Context(), coursework)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "auto-finalise sweep completed", fiber.Map{"finalised": count})
}

func (h *SubmissionHandler) loadCoursework(c *fiber.Ctx) (coursework models.Coursework, err error) {
	id, err := parseUintParam(c, "courseworkID")
	if err != nil {
		return coursework, err
	}
	return h.courseworks.Get(c.Context(), id)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidIdentifier):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCourseworkNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "coursework not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrPermissionDenied):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrSubmissionFinalised), errors.Is(err, service.ErrNoFilesToFinalise):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *SubmissionHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
