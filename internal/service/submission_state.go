package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
)

// StateService derives submission lifecycle states. The state is never
// stored; it is recomputed from the submission row and its feedback.
type StateService interface {
	State(ctx context.Context, coursework models.Coursework, submission models.Submission) (models.SubmissionState, error)
	RequiredFeedbackCount(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable) (int, error)
}

type stateService struct {
	feedbacks repository.FeedbackRepository
	samples   repository.SampleRepository
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStateService constructs the state machine.
func NewStateService(feedbacks repository.FeedbackRepository, samples repository.SampleRepository, logger zerolog.Logger) StateService {
	return &stateService{
		feedbacks: feedbacks,
		samples:   samples,
		logger:    logger.With().Str("component", "state_service").Logger(),
		now:       time.Now,
	}
}

func (s *stateService) State(ctx context.Context, coursework models.Coursework, submission models.Submission) (models.SubmissionState, error) {
	feedbacks, err := s.feedbacks.List(ctx, repository.FeedbackFilter{SubmissionID: &submission.ID})
	if err != nil {
		return 0, err
	}

	required, err := s.RequiredFeedbackCount(ctx, coursework, submission.Allocatable())
	if err != nil {
		return 0, err
	}

	return DeriveState(coursework, submission, feedbacks, required, s.now()), nil
}

// RequiredFeedbackCount returns how many initial-stage feedbacks the
// allocatable needs. Stage one is always required; with sampling enabled
// each later-stage sample membership adds one.
func (s *stateService) RequiredFeedbackCount(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable) (int, error) {
	if !coursework.SamplingEnabled {
		return coursework.NumberOfMarkers, nil
	}

	memberships, err := s.samples.ListMembershipsForAllocatable(ctx, coursework.ID, allocatable)
	if err != nil {
		return 0, err
	}

	required := 1
	for _, membership := range memberships {
		stage, err := models.ParseStage(membership.Stage)
		if err != nil {
			s.logger.Warn().Str("stage", membership.Stage).Msg("ignoring sample membership with bad stage")
			continue
		}
		if stage.Role == models.StageAssessor && stage.Number > 1 {
			required++
		}
	}

	return required, nil
}

// DeriveState computes the lifecycle state from current data. Feedback at
// the final agreed stage dominates completeness of the initial stages; an
// open editing window holds the submission below FULLY_GRADED even when
// all required feedbacks are nominally present.
func DeriveState(coursework models.Coursework, submission models.Submission, feedbacks []models.Feedback, required int, now time.Time) models.SubmissionState {
	if submission.IsPublished() {
		return models.StatePublished
	}

	initial := 0
	editableOpen := false
	for _, feedback := range feedbacks {
		if feedback.IsFinalGrade {
			return models.StateFinalGraded
		}
		stage, err := models.ParseStage(feedback.Stage)
		if err != nil || !stage.IsInitial() {
			continue
		}
		initial++
		if feedback.IsEditable(coursework.GradeEditingTime, now) {
			editableOpen = true
		}
	}

	if submission.Finalised {
		switch {
		case initial >= required && !editableOpen:
			return models.StateFullyGraded
		case initial >= 1:
			return models.StatePartiallyGraded
		default:
			return models.StateFinalised
		}
	}

	if submission.HasFiles() {
		return models.StateSubmitted
	}

	return models.StateNotSubmitted
}
