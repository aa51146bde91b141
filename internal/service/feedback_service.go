package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/dto"
	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/store"
)

// ErrSubmissionNotFound indicates the submission was not located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrFeedbackNotFound indicates the feedback was not located.
var ErrFeedbackNotFound = errors.New("feedback not found")

// ErrFeedbackExists indicates a feedback already exists for the
// (submission, stage) pair.
var ErrFeedbackExists = errors.New("feedback already exists for stage")

// ErrEditingWindowClosed indicates the feedback can no longer be changed.
var ErrEditingWindowClosed = errors.New("feedback editing window closed")

// ErrStageNotConfigured indicates a stage outside the coursework's
// configured workflow, e.g. assessor_3 on a two-marker coursework.
var ErrStageNotConfigured = errors.New("stage not configured for coursework")

// ErrGradeOutOfRange indicates a grade outside [0, coursework max].
var ErrGradeOutOfRange = errors.New("grade out of range")

// FeedbackService records markers' grades and comments.
type FeedbackService interface {
	Create(ctx context.Context, coursework models.Coursework, payload dto.FeedbackCreateRequest, actor Actor) (models.Feedback, error)
	Update(ctx context.Context, coursework models.Coursework, feedbackID uint, payload dto.FeedbackUpdateRequest, actor Actor) (models.Feedback, error)
	ListForSubmission(ctx context.Context, coursework models.Coursework, submissionID uint, actor Actor) ([]models.Feedback, error)
}

type feedbackService struct {
	feedbacks   repository.FeedbackRepository
	submissions repository.SubmissionRepository
	allocations repository.AllocationRepository
	sampling    SamplingService
	cache       *store.CourseworkCache
	permissions PermissionChecker
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewFeedbackService constructs the feedback service.
func NewFeedbackService(
	feedbacks repository.FeedbackRepository,
	submissions repository.SubmissionRepository,
	allocations repository.AllocationRepository,
	sampling SamplingService,
	cache *store.CourseworkCache,
	permissions PermissionChecker,
	validate *validator.Validate,
	logger zerolog.Logger,
) FeedbackService {
	return &feedbackService{
		feedbacks:   feedbacks,
		submissions: submissions,
		allocations: allocations,
		sampling:    sampling,
		cache:       cache,
		permissions: permissions,
		validator:   validate,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "feedback_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/markwise-go-api/internal/service/feedback"),
		now:         time.Now,
	}
}

func (s *feedbackService) Create(ctx context.Context, coursework models.Coursework, payload dto.FeedbackCreateRequest, actor Actor) (models.Feedback, error) {
	ctx, span := s.tracer.Start(ctx, "feedback.create")
	span.SetAttributes(
		attribute.Int64("submission_id", int64(payload.SubmissionID)),
		attribute.String("stage", payload.Stage),
	)
	defer span.End()

	if !s.permissions.Can(ctx, actor, ActionAddFeedback, coursework.ID) {
		return models.Feedback{}, ErrPermissionDenied
	}

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return models.Feedback{}, err
	}

	stage, err := models.ParseStage(payload.Stage)
	if err != nil {
		span.RecordError(err)
		return models.Feedback{}, err
	}

	// a stage the coursework never configured must not exist as feedback;
	// a stray assessor_3 on a two-marker coursework would skew aggregation
	if !coursework.HasStage(stage) {
		return models.Feedback{}, ErrStageNotConfigured
	}

	submission, err := s.submissions.GetByID(ctx, payload.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Feedback{}, ErrSubmissionNotFound
		}
		return models.Feedback{}, err
	}

	if payload.Grade != nil && (*payload.Grade < 0 || *payload.Grade > coursework.MaxGrade) {
		return models.Feedback{}, ErrGradeOutOfRange
	}

	if _, err := s.feedbacks.GetBySubmissionAndStage(ctx, submission.ID, stage.Identifier()); err == nil {
		return models.Feedback{}, ErrFeedbackExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Feedback{}, err
	}

	maxNumber, err := s.feedbacks.MaxMarkerNumber(ctx, submission.ID)
	if err != nil {
		return models.Feedback{}, err
	}

	editor := actor.ID
	feedback := models.Feedback{
		CourseworkID: coursework.ID,
		SubmissionID: submission.ID,
		AssessorID:   actor.ID,
		Stage:        stage.Identifier(),
		Grade:        payload.Grade,
		Comment:      strings.TrimSpace(s.sanitizer.Sanitize(payload.Comment)),
		MarkerNumber: maxNumber + 1,
		IsModeration: stage.Role == models.StageModerator,
		IsFinalGrade: stage.Role == models.StageFinalAgreed,
		LastEditedBy: &editor,
	}

	if err := s.feedbacks.Create(ctx, &feedback); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feedback_create_failed")
		return models.Feedback{}, err
	}

	// marking has started; freeze the matching allocation
	if err := MarkAllocationTimeLocked(ctx, s.allocations, s.cache, coursework.ID, submission.Allocatable(), stage.Identifier()); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to time-lock allocation")
	}

	s.cache.Invalidate(ctx, coursework.ID)

	if stage.IsInitial() && feedback.HasGrade() {
		if err := s.sampling.OnGradeChanged(ctx, coursework); err != nil {
			s.logger.Warn().Err(err).Uint("coursework_id", coursework.ID).Msg("failed to refresh samples after grade change")
		}
	}

	return feedback, nil
}

func (s *feedbackService) Update(ctx context.Context, coursework models.Coursework, feedbackID uint, payload dto.FeedbackUpdateRequest, actor Actor) (models.Feedback, error) {
	if !s.permissions.Can(ctx, actor, ActionEditFeedback, coursework.ID) {
		return models.Feedback{}, ErrPermissionDenied
	}

	if err := s.validator.Struct(payload); err != nil {
		return models.Feedback{}, err
	}

	feedback, err := s.feedbacks.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Feedback{}, ErrFeedbackNotFound
		}
		return models.Feedback{}, err
	}

	// markers may only edit inside the window; coursework managers may
	// always correct a grade
	if !feedback.IsEditable(coursework.GradeEditingTime, s.now()) {
		if !s.permissions.Can(ctx, actor, ActionManageCoursework, coursework.ID) {
			return models.Feedback{}, ErrEditingWindowClosed
		}
	}

	if payload.Grade != nil && (*payload.Grade < 0 || *payload.Grade > coursework.MaxGrade) {
		return models.Feedback{}, ErrGradeOutOfRange
	}

	if payload.Grade != nil {
		feedback.Grade = payload.Grade
	}
	if payload.Comment != nil {
		feedback.Comment = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Comment))
	}
	editor := actor.ID
	feedback.LastEditedBy = &editor

	if err := s.feedbacks.Update(ctx, &feedback); err != nil {
		return models.Feedback{}, err
	}

	s.cache.Invalidate(ctx, coursework.ID)

	stage, stageErr := models.ParseStage(feedback.Stage)
	if stageErr == nil && stage.IsInitial() && feedback.HasGrade() {
		if err := s.sampling.OnGradeChanged(ctx, coursework); err != nil {
			s.logger.Warn().Err(err).Uint("coursework_id", coursework.ID).Msg("failed to refresh samples after grade change")
		}
	}

	return feedback, nil
}

func (s *feedbackService) ListForSubmission(ctx context.Context, coursework models.Coursework, submissionID uint, actor Actor) ([]models.Feedback, error) {
	if !s.permissions.Can(ctx, actor, ActionViewFeedback, coursework.ID) {
		return nil, ErrPermissionDenied
	}

	return s.feedbacks.List(ctx, repository.FeedbackFilter{SubmissionID: &submissionID})
}
