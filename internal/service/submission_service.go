package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/store"
)

// ErrSubmissionFinalised indicates the submission can no longer be changed
// by its author.
var ErrSubmissionFinalised = errors.New("submission already finalised")

// ErrNoFilesToFinalise indicates finalisation was requested on an empty
// submission.
var ErrNoFilesToFinalise = errors.New("submission has no files")

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// SubmissionService orchestrates the submission lifecycle from first file
// upload through finalisation.
type SubmissionService interface {
	Upload(ctx context.Context, coursework models.Coursework, file *multipart.FileHeader, actor Actor) (models.Submission, error)
	Finalise(ctx context.Context, coursework models.Coursework, submissionID uint, actor Actor) (models.Submission, error)
	AutoFinalise(ctx context.Context, coursework models.Coursework) (int, error)
	Get(ctx context.Context, coursework models.Coursework, submissionID uint, actor Actor) (models.Submission, models.SubmissionState, error)
	ListForCoursework(ctx context.Context, coursework models.Coursework, actor Actor) ([]models.Submission, error)
}

type submissionService struct {
	submissions  repository.SubmissionRepository
	allocatables repository.AllocatableRepository
	deadlines    DeadlineService
	allocations  AllocationService
	states       StateService
	uploader     FileUploader
	cache        *store.CourseworkCache
	permissions  PermissionChecker
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	allocatables repository.AllocatableRepository,
	deadlines DeadlineService,
	allocations AllocationService,
	states StateService,
	uploader FileUploader,
	cache *store.CourseworkCache,
	permissions PermissionChecker,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissions:  submissions,
		allocatables: allocatables,
		deadlines:    deadlines,
		allocations:  allocations,
		states:       states,
		uploader:     uploader,
		cache:        cache,
		permissions:  permissions,
		logger:       logger.With().Str("component", "submission_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/markwise-go-api/internal/service/submission"),
		now:          time.Now,
	}
}

// Upload attaches a file to the actor's submission, creating the
// submission row on first upload. Finalised submissions reject new files.
func (s *submissionService) Upload(ctx context.Context, coursework models.Coursework, file *multipart.FileHeader, actor Actor) (models.Submission, error) {
	if file == nil {
		return models.Submission{}, fmt.Errorf("submission file is required")
	}

	target, err := s.resolveTarget(ctx, coursework, actor)
	if err != nil {
		return models.Submission{}, err
	}

	submission, err := s.submissions.GetByAllocatable(ctx, coursework.ID, target)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, err
		}
		submission = models.Submission{
			CourseworkID:    coursework.ID,
			AllocatableID:   target.ID,
			AllocatableType: target.Type,
			AuthorID:        actor.ID,
		}
		if err := s.submissions.Create(ctx, &submission); err != nil {
			return models.Submission{}, err
		}
	}

	if submission.Finalised {
		return models.Submission{}, ErrSubmissionFinalised
	}

	if err := validateFileType(file); err != nil {
		return models.Submission{}, err
	}

	reader, err := file.Open()
	if err != nil {
		return models.Submission{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	url, err := s.uploader.Upload(ctx, file.Filename, reader)
	if err != nil {
		return models.Submission{}, fmt.Errorf("failed to upload file: %w", err)
	}

	submission.FileCount++
	submission.FileURL = url
	submission.TimeSubmitted = s.now().Unix()

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return models.Submission{}, err
	}

	s.cache.Invalidate(ctx, coursework.ID)
	s.logger.Info().Uint("submission_id", submission.ID).Str("file", file.Filename).Msg("file uploaded")

	return submission, nil
}

// Finalise locks the submission for marking. Finalisation is allowed after
// the deadline; the derived state reports lateness instead of blocking the
// student. Finalising on behalf of another target needs its own permission.
func (s *submissionService) Finalise(ctx context.Context, coursework models.Coursework, submissionID uint, actor Actor) (models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "submission.finalise")
	span.SetAttributes(attribute.Int64("submission_id", int64(submissionID)))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	if submission.AuthorID != actor.ID && !s.ownsTarget(ctx, submission, actor) {
		if !s.permissions.Can(ctx, actor, ActionSubmitOnBehalf, coursework.ID) {
			return models.Submission{}, ErrPermissionDenied
		}
	}

	if submission.Finalised {
		return models.Submission{}, ErrSubmissionFinalised
	}
	if !submission.HasFiles() {
		return models.Submission{}, ErrNoFilesToFinalise
	}

	submission.Finalised = true
	submission.TimeSubmitted = s.now().Unix()

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return models.Submission{}, err
	}

	s.cache.Invalidate(ctx, coursework.ID)

	if _, err := s.allocations.MakeAutoAllocationIfNecessary(ctx, coursework, submission.Allocatable(), models.AssessorStage(1)); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("auto allocation on finalise failed")
	}

	deadline, err := s.deadlines.EffectiveDeadline(ctx, coursework, submission.Allocatable())
	if err == nil && submission.IsLate(deadline) {
		s.logger.Info().Uint("submission_id", submission.ID).Int64("deadline", deadline).Msg("submission finalised late")
	}

	return submission, nil
}

// AutoFinalise sweeps a coursework and finalises every unfinalised
// submission with files whose effective deadline has passed. Returns how
// many submissions were finalised.
func (s *submissionService) AutoFinalise(ctx context.Context, coursework models.Coursework) (int, error) {
	finalised := false
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		CourseworkID: &coursework.ID,
		Finalised:    &finalised,
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, submission := range submissions {
		if !submission.HasFiles() {
			continue
		}

		deadline, err := s.deadlines.EffectiveDeadline(ctx, coursework, submission.Allocatable())
		if err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("skipping submission in auto-finalise sweep")
			continue
		}
		if deadline == 0 || s.now().Unix() < deadline {
			continue
		}

		submission.Finalised = true
		if err := s.submissions.Update(ctx, &submission); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to auto-finalise submission")
			continue
		}

		if _, err := s.allocations.MakeAutoAllocationIfNecessary(ctx, coursework, submission.Allocatable(), models.AssessorStage(1)); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("auto allocation on finalise failed")
		}

		count++
	}

	if count > 0 {
		s.cache.Invalidate(ctx, coursework.ID)
	}

	return count, nil
}

// Get loads a submission together with its derived lifecycle state.
func (s *submissionService) Get(ctx context.Context, coursework models.Coursework, submissionID uint, actor Actor) (models.Submission, models.SubmissionState, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, 0, ErrSubmissionNotFound
		}
		return models.Submission{}, 0, err
	}

	if submission.AuthorID != actor.ID && !s.ownsTarget(ctx, submission, actor) {
		if !s.permissions.Can(ctx, actor, ActionViewAllSubmission, coursework.ID) {
			return models.Submission{}, 0, ErrPermissionDenied
		}
	}

	state, err := s.states.State(ctx, coursework, submission)
	if err != nil {
		return models.Submission{}, 0, err
	}

	return submission, state, nil
}

func (s *submissionService) ListForCoursework(ctx context.Context, coursework models.Coursework, actor Actor) ([]models.Submission, error) {
	if !s.permissions.Can(ctx, actor, ActionViewAllSubmission, coursework.ID) {
		return nil, ErrPermissionDenied
	}

	return s.submissions.List(ctx, repository.SubmissionFilter{CourseworkID: &coursework.ID})
}

// resolveTarget maps the acting student to the submission target: their
// own user identity, or their group on group courseworks.
func (s *submissionService) resolveTarget(ctx context.Context, coursework models.Coursework, actor Actor) (models.Allocatable, error) {
	if !coursework.UseGroups {
		return models.UserAllocatable(actor.ID), nil
	}

	memberships, err := s.allocatables.ListGroupsForUser(ctx, actor.ID)
	if err != nil {
		return models.Allocatable{}, err
	}
	enrolled, err := s.allocatables.ListEnrolled(ctx, coursework.ID)
	if err != nil {
		return models.Allocatable{}, err
	}

	enrolledGroups := make(map[uint]bool, len(enrolled))
	for _, target := range enrolled {
		if target.Type == models.AllocatableGroup {
			enrolledGroups[target.ID] = true
		}
	}
	for _, membership := range memberships {
		if enrolledGroups[membership.GroupID] {
			return models.GroupAllocatable(membership.GroupID), nil
		}
	}

	return models.Allocatable{}, fmt.Errorf("user %d has no group for coursework %d", actor.ID, coursework.ID)
}

// ownsTarget reports whether the actor is a member of the submission's
// target group. User-targeted submissions are covered by the author check.
func (s *submissionService) ownsTarget(ctx context.Context, submission models.Submission, actor Actor) bool {
	if submission.AllocatableType != models.AllocatableGroup {
		return false
	}

	members, err := s.allocatables.ListGroupMembers(ctx, submission.AllocatableID)
	if err != nil {
		return false
	}
	for _, member := range members {
		if member.UserID == actor.ID {
			return true
		}
	}

	return false
}

func validateFileType(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	allowed := []string{"application/pdf", "application/zip", "application/x-zip-compressed", "text/plain"}
	for _, a := range allowed {
		if mime.Is(a) {
			return nil
		}
	}

	return fmt.Errorf("unsupported file type: %s", mime.String())
}
