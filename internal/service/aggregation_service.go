package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/observability"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/store"
)

// AggregationService reconciles initial-stage feedback into one agreed
// final grade per submission.
type AggregationService interface {
	CreateAutomaticFeedback(ctx context.Context, coursework models.Coursework) (int, error)
}

type aggregationService struct {
	feedbacks   repository.FeedbackRepository
	submissions repository.SubmissionRepository
	state       StateService
	cache       *store.CourseworkCache
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAggregationService constructs the aggregation engine.
func NewAggregationService(feedbacks repository.FeedbackRepository, submissions repository.SubmissionRepository, state StateService, cache *store.CourseworkCache, logger zerolog.Logger) AggregationService {
	return &aggregationService{
		feedbacks:   feedbacks,
		submissions: submissions,
		state:       state,
		cache:       cache,
		logger:      logger.With().Str("component", "aggregation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/markwise-go-api/internal/service/aggregation"),
		now:         time.Now,
	}
}

// CreateAutomaticFeedback scans finalised submissions lacking an agreed
// grade and, where the configured strategy can decide one, inserts a
// final-stage feedback with no editing user. One bad submission never
// aborts the sweep; it is skipped and the batch continues. Returns how
// many agreed grades were created.
func (s *aggregationService) CreateAutomaticFeedback(ctx context.Context, coursework models.Coursework) (int, error) {
	ctx, span := s.tracer.Start(ctx, "aggregation.sweep")
	span.SetAttributes(attribute.Int64("coursework_id", int64(coursework.ID)))
	defer span.End()

	if !coursework.AutoAgreementEnabled() || coursework.NumberOfMarkers <= 1 {
		return 0, nil
	}

	finalised := true
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		CourseworkID: &coursework.ID,
		Finalised:    &finalised,
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	created := 0
	for _, submission := range submissions {
		ok, err := s.aggregateSubmission(ctx, coursework, submission)
		if err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("skipping submission in aggregation sweep")
			continue
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		s.cache.Invalidate(ctx, coursework.ID)
	}

	s.logger.Info().
		Uint("coursework_id", coursework.ID).
		Int("created", created).
		Str("strategy", coursework.AgreementStrategy).
		Msg("automatic agreement sweep completed")

	return created, nil
}

func (s *aggregationService) aggregateSubmission(ctx context.Context, coursework models.Coursework, submission models.Submission) (bool, error) {
	finalStage := models.FinalAgreedStage().Identifier()

	if _, err := s.feedbacks.GetBySubmissionAndStage(ctx, submission.ID, finalStage); err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	feedbacks, err := s.feedbacks.List(ctx, repository.FeedbackFilter{SubmissionID: &submission.ID})
	if err != nil {
		return false, err
	}

	required, err := s.state.RequiredFeedbackCount(ctx, coursework, submission.Allocatable())
	if err != nil {
		return false, err
	}

	now := s.now()
	grades := make([]float64, 0, required)
	for _, feedback := range feedbacks {
		stage, err := models.ParseStage(feedback.Stage)
		if err != nil || !stage.IsInitial() {
			continue
		}
		if !feedback.HasGrade() {
			return false, nil
		}
		// a just-created feedback cannot trigger immediate aggregation
		if feedback.IsEditable(coursework.GradeEditingTime, now) {
			return false, nil
		}
		grades = append(grades, *feedback.Grade)
	}

	if len(grades) < required {
		return false, nil
	}

	grade, decided := agreeGrade(coursework, grades)
	if !decided {
		return false, nil
	}

	maxNumber, err := s.feedbacks.MaxMarkerNumber(ctx, submission.ID)
	if err != nil {
		return false, err
	}

	feedback := models.Feedback{
		CourseworkID: coursework.ID,
		SubmissionID: submission.ID,
		Stage:        finalStage,
		Grade:        &grade,
		MarkerNumber: maxNumber + 1,
		IsFinalGrade: true,
		LastEditedBy: nil,
	}
	if err := s.feedbacks.Create(ctx, &feedback); err != nil {
		return false, err
	}

	observability.AutoAgreements().WithLabelValues(coursework.AgreementStrategy).Inc()

	return true, nil
}

// agreeGrade applies the coursework's agreement strategy. The boolean
// reports whether a grade could be decided automatically; percentage
// distance leaves disagreements beyond the band to a human adjudicator.
func agreeGrade(coursework models.Coursework, grades []float64) (float64, bool) {
	if len(grades) == 0 {
		return 0, false
	}

	switch coursework.AgreementStrategy {
	case models.AgreementAverageGrade:
		return roundGrade(mean(grades), coursework.RoundingRule), true
	case models.AgreementPercentageDistance:
		min, max := grades[0], grades[0]
		for _, grade := range grades[1:] {
			if grade < min {
				min = grade
			}
			if grade > max {
				max = grade
			}
		}
		band := float64(coursework.PercentageDistance) / 100 * coursework.MaxGrade
		if max-min > band {
			return 0, false
		}
		return roundGrade(mean(grades), coursework.RoundingRule), true
	default:
		return 0, false
	}
}

func mean(grades []float64) float64 {
	total := 0.0
	for _, grade := range grades {
		total += grade
	}
	return total / float64(len(grades))
}

func roundGrade(grade float64, rule string) float64 {
	switch rule {
	case models.RoundingUp:
		return math.Ceil(grade)
	case models.RoundingDown:
		return math.Floor(grade)
	default:
		return math.Floor(grade + 0.5)
	}
}
