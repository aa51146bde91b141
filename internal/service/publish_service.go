package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/observability"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/store"
	"github.com/noah-isme/markwise-go-api/pkg/gradebook"
)

// ErrNotReadyToPublish indicates the submission fails a publish gate.
var ErrNotReadyToPublish = errors.New("submission not ready to publish")

// ErrGradebookWrite indicates the gradebook collaborator rejected the
// write. Nothing is mutated; the next sweep retries.
var ErrGradebookWrite = errors.New("gradebook write failed")

// Gradebook is the only channel to external grade storage.
type Gradebook interface {
	WriteGrades(ctx context.Context, courseworkRef string, grades map[uint]gradebook.GradeRecord) (bool, error)
}

// PublishService pushes agreed grades into the gradebook.
type PublishService interface {
	ReadyToPublish(ctx context.Context, coursework models.Coursework, submission models.Submission) (bool, error)
	Publish(ctx context.Context, coursework models.Coursework, submissionID uint, actor Actor) (models.Submission, error)
	PublishAll(ctx context.Context, coursework models.Coursework, actor Actor) (int, error)
}

type publishService struct {
	submissions  repository.SubmissionRepository
	feedbacks    repository.FeedbackRepository
	plagiarism   repository.PlagiarismRepository
	allocatables repository.AllocatableRepository
	sampling     SamplingService
	gradebook    Gradebook
	notifier     Notifier
	cache        *store.CourseworkCache
	permissions  PermissionChecker
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewPublishService constructs the publishing pipeline.
func NewPublishService(
	submissions repository.SubmissionRepository,
	feedbacks repository.FeedbackRepository,
	plagiarism repository.PlagiarismRepository,
	allocatables repository.AllocatableRepository,
	sampling SamplingService,
	gradebook Gradebook,
	notifier Notifier,
	cache *store.CourseworkCache,
	permissions PermissionChecker,
	logger zerolog.Logger,
) PublishService {
	return &publishService{
		submissions:  submissions,
		feedbacks:    feedbacks,
		plagiarism:   plagiarism,
		allocatables: allocatables,
		sampling:     sampling,
		gradebook:    gradebook,
		notifier:     notifier,
		cache:        cache,
		permissions:  permissions,
		logger:       logger.With().Str("component", "publish_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/markwise-go-api/internal/service/publish"),
		now:          time.Now,
	}
}

// ReadyToPublish checks the publish gates: an agreed final grade exists,
// its editing window has elapsed, no plagiarism flag blocks release, and
// no unmoderated work remains when moderation is enabled.
func (s *publishService) ReadyToPublish(ctx context.Context, coursework models.Coursework, submission models.Submission) (bool, error) {
	feedback, err := s.finalFeedback(ctx, coursework, submission)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if !feedback.HasGrade() {
		return false, nil
	}

	if feedback.IsEditable(coursework.GradeEditingTime, s.now()) {
		return false, nil
	}

	flags, err := s.plagiarism.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return false, err
	}
	for _, flag := range flags {
		if flag.Blocks() {
			return false, nil
		}
	}

	unmoderated, err := s.sampling.UnmoderatedWorkExists(ctx, coursework)
	if err != nil {
		return false, err
	}
	if unmoderated {
		return false, nil
	}

	return true, nil
}

// Publish writes the capped agreed grade through the gradebook. On
// success the first-publish timestamp is set once and the feedback
// released notification fires exactly once; later publishes only advance
// the last-published timestamp. A failed gradebook write mutates nothing.
func (s *publishService) Publish(ctx context.Context, coursework models.Coursework, submissionID uint, actor Actor) (models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "publish.submission")
	span.SetAttributes(
		attribute.Int64("coursework_id", int64(coursework.ID)),
		attribute.Int64("submission_id", int64(submissionID)),
	)
	defer span.End()

	if !s.permissions.Can(ctx, actor, ActionPublish, coursework.ID) {
		return models.Submission{}, ErrPermissionDenied
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	ready, err := s.ReadyToPublish(ctx, coursework, submission)
	if err != nil {
		span.RecordError(err)
		return models.Submission{}, err
	}
	if !ready {
		return models.Submission{}, ErrNotReadyToPublish
	}

	feedback, err := s.finalFeedback(ctx, coursework, submission)
	if err != nil {
		return models.Submission{}, err
	}

	grade := judgeGrade(*feedback.Grade, coursework)
	records, err := s.gradeRecipients(ctx, submission, grade, feedback.Comment)
	if err != nil {
		return models.Submission{}, err
	}
	if len(records) == 0 {
		// a group with no student members has nobody to publish to
		s.logger.Warn().Uint("submission_id", submission.ID).Msg("skipping publish: no grade recipients")
		return models.Submission{}, ErrNotReadyToPublish
	}

	ok, err := s.gradebook.WriteGrades(ctx, fmt.Sprintf("coursework:%d", coursework.ID), records)
	if err != nil {
		observability.PublishFailures().WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "gradebook_write_failed")
		return models.Submission{}, fmt.Errorf("%w: %v", ErrGradebookWrite, err)
	}
	if !ok {
		observability.PublishFailures().WithLabelValues("rejected").Inc()
		span.SetStatus(codes.Error, "gradebook_write_rejected")
		return models.Submission{}, ErrGradebookWrite
	}

	firstPublish := !submission.IsPublished()
	timestamp := s.now().Unix()
	if firstPublish {
		submission.FirstPublished = timestamp
	}
	submission.LastPublished = timestamp

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return models.Submission{}, err
	}

	s.cache.Invalidate(ctx, coursework.ID)
	observability.GradesPublished().WithLabelValues(fmt.Sprintf("%t", !firstPublish)).Inc()

	if firstPublish {
		s.notifier.Send(ctx, EventFeedbackReleased, map[string]interface{}{
			"coursework_id":    coursework.ID,
			"submission_id":    submission.ID,
			"allocatable_id":   submission.AllocatableID,
			"allocatable_type": submission.AllocatableType,
		})
	}

	return submission, nil
}

// PublishAll sweeps every finalised submission and publishes those that
// pass the gates. Submissions that are not ready are skipped, not errors.
func (s *publishService) PublishAll(ctx context.Context, coursework models.Coursework, actor Actor) (int, error) {
	if !s.permissions.Can(ctx, actor, ActionPublish, coursework.ID) {
		return 0, ErrPermissionDenied
	}

	finalised := true
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		CourseworkID: &coursework.ID,
		Finalised:    &finalised,
	})
	if err != nil {
		return 0, err
	}

	published := 0
	for _, submission := range submissions {
		if _, err := s.Publish(ctx, coursework, submission.ID, actor); err != nil {
			if errors.Is(err, ErrNotReadyToPublish) {
				continue
			}
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("skipping submission in publish sweep")
			continue
		}
		published++
	}

	return published, nil
}

// finalFeedback resolves the feedback carrying the submission's final
// grade: the agreed-stage feedback, or the single assessor's feedback on a
// one-marker coursework.
func (s *publishService) finalFeedback(ctx context.Context, coursework models.Coursework, submission models.Submission) (models.Feedback, error) {
	if coursework.NumberOfMarkers == 1 {
		return s.feedbacks.GetBySubmissionAndStage(ctx, submission.ID, models.AssessorStage(1).Identifier())
	}
	return s.feedbacks.GetBySubmissionAndStage(ctx, submission.ID, models.FinalAgreedStage().Identifier())
}

// gradeRecipients expands a submission into per-student grade records: the
// student themselves, or every student member of the group.
func (s *publishService) gradeRecipients(ctx context.Context, submission models.Submission, grade float64, comment string) (map[uint]gradebook.GradeRecord, error) {
	records := make(map[uint]gradebook.GradeRecord)

	switch submission.AllocatableType {
	case models.AllocatableUser:
		records[submission.AllocatableID] = gradebook.GradeRecord{UserID: submission.AllocatableID, Grade: grade, Comment: comment}
	case models.AllocatableGroup:
		members, err := s.allocatables.ListGroupMembers(ctx, submission.AllocatableID)
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			if member.Role != models.GroupRoleStudent {
				continue
			}
			records[member.UserID] = gradebook.GradeRecord{UserID: member.UserID, Grade: grade, Comment: comment}
		}
	}

	return records, nil
}

// judgeGrade caps the agreed grade into the gradebook's accepted range.
func judgeGrade(grade float64, coursework models.Coursework) float64 {
	if grade < 0 {
		return 0
	}
	if grade > coursework.MaxGrade {
		return coursework.MaxGrade
	}
	return grade
}
