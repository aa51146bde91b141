package service

import (
	"context"
	"errors"

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
)

// ErrAllocationFrozen indicates the allocation is pinned or marking has
// started, so it cannot be replaced or deleted.
var ErrAllocationFrozen = errors.New("allocation is pinned or time-locked")

// AllocationService assigns markers to allocatables per stage and maintains
// the pinning semantics that let manual allocations survive re-runs.
type AllocationService interface {
	ProcessAllocations(ctx context.Context, coursework models.Coursework, stage models.Stage, actor Actor) ([]models.Allocation, error)
	MakeAutoAllocationIfNecessary(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable, stage models.Stage) (*models.Allocation, error)
	PinAllocation(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable, stage models.Stage, assessorID uint, actor Actor) (models.Allocation, error)
	CanDeleteAllocation(ctx context.Context, allocation models.Allocation) (bool, error)
	DeleteAllocation(ctx context.Context, coursework models.Coursework, allocationID uint, actor Actor) error
}

type allocationService struct {
	allocations  repository.AllocationRepository
	allocatables repository.AllocatableRepository
	markers      repository.MarkerRepository
	feedbacks    repository.FeedbackRepository
	submissions  repository.SubmissionRepository
	registry     *StrategyRegistry
	cache        *store.CourseworkCache
	permissions  PermissionChecker
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewAllocationService constructs the allocation manager.
func NewAllocationService(
	allocations repository.AllocationRepository,
	allocatables repository.AllocatableRepository,
	markers repository.MarkerRepository,
	feedbacks repository.FeedbackRepository,
	submissions repository.SubmissionRepository,
	registry *StrategyRegistry,
	cache *store.CourseworkCache,
	permissions PermissionChecker,
	logger zerolog.Logger,
) AllocationService {
	return &allocationService{
		allocations:  allocations,
		allocatables: allocatables,
		markers:      markers,
		feedbacks:    feedbacks,
		submissions:  submissions,
		registry:     registry,
		cache:        cache,
		permissions:  permissions,
		logger:       logger.With().Str("component", "allocation_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/markwise-go-api/internal/service/allocation"),
	}
}

// ProcessAllocations runs the coursework's configured strategy for one
// stage. Frozen rows are untouched; a bad allocatable is skipped and logged
// rather than aborting the batch.
func (s *allocationService) ProcessAllocations(ctx context.Context, coursework models.Coursework, stage models.Stage, actor Actor) ([]models.Allocation, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.process")
	span.SetAttributes(
		attribute.Int64("coursework_id", int64(coursework.ID)),
		attribute.String("stage", stage.Identifier()),
	)
	defer span.End()

	if !s.permissions.Can(ctx, actor, ActionAllocate, coursework.ID) {
		return nil, ErrPermissionDenied
	}

	strategy, err := s.registry.Resolve(coursework.StrategyFor(stage.Role))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown_strategy")
		return nil, err
	}

	input, err := s.buildStrategyInput(ctx, coursework, stage)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	assignments, err := strategy.Allocate(ctx, input)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	created := make([]models.Allocation, 0, len(assignments))
	for _, assignment := range assignments {
		allocation := models.Allocation{
			CourseworkID:    coursework.ID,
			AllocatableID:   assignment.Allocatable.ID,
			AllocatableType: assignment.Allocatable.Type,
			Stage:           stage.Identifier(),
			AssessorID:      assignment.AssessorID,
		}
		if err := s.allocations.Create(ctx, &allocation); err != nil {
			s.logger.Warn().Err(err).
				Uint("allocatable_id", assignment.Allocatable.ID).
				Str("stage", stage.Identifier()).
				Msg("skipping allocatable: failed to persist allocation")
			continue
		}
		created = append(created, allocation)
	}

	if len(created) > 0 {
		s.cache.Invalidate(ctx, coursework.ID)
	}

	observability.AllocationRuns().WithLabelValues(strategy.Name(), stage.Identifier()).Inc()
	s.logger.Info().
		Uint("coursework_id", coursework.ID).
		Str("stage", stage.Identifier()).
		Str("strategy", strategy.Name()).
		Int("created", len(created)).
		Msg("allocation run completed")

	return created, nil
}

// MakeAutoAllocationIfNecessary allocates one allocatable at one stage if
// no allocation exists yet, returning nil when one already does.
func (s *allocationService) MakeAutoAllocationIfNecessary(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable, stage models.Stage) (*models.Allocation, error) {
	if _, err := s.allocations.GetByTarget(ctx, coursework.ID, allocatable, stage.Identifier()); err == nil {
		return nil, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	strategy, err := s.registry.Resolve(coursework.StrategyFor(stage.Role))
	if err != nil {
		return nil, err
	}

	input, err := s.buildStrategyInput(ctx, coursework, stage)
	if err != nil {
		return nil, err
	}
	input.Unallocated = []models.Allocatable{allocatable}

	assignments, err := strategy.Allocate(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	allocation := models.Allocation{
		CourseworkID:    coursework.ID,
		AllocatableID:   allocatable.ID,
		AllocatableType: allocatable.Type,
		Stage:           stage.Identifier(),
		AssessorID:      assignments[0].AssessorID,
	}
	if err := s.allocations.Create(ctx, &allocation); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, coursework.ID)

	return &allocation, nil
}

// PinAllocation records a manual pairing. Writing over an existing pinned
// or time-locked row is a no-op returning ErrAllocationFrozen.
func (s *allocationService) PinAllocation(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable, stage models.Stage, assessorID uint, actor Actor) (models.Allocation, error) {
	if !s.permissions.Can(ctx, actor, ActionAllocate, coursework.ID) {
		return models.Allocation{}, ErrPermissionDenied
	}

	existing, err := s.allocations.GetByTarget(ctx, coursework.ID, allocatable, stage.Identifier())
	switch {
	case err == nil:
		if existing.Frozen() {
			return existing, ErrAllocationFrozen
		}
		existing.AssessorID = assessorID
		existing.Pinned = true
		if err := s.allocations.Update(ctx, &existing); err != nil {
			return models.Allocation{}, err
		}
		s.cache.Invalidate(ctx, coursework.ID)
		return existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		allocation := models.Allocation{
			CourseworkID:    coursework.ID,
			AllocatableID:   allocatable.ID,
			AllocatableType: allocatable.Type,
			Stage:           stage.Identifier(),
			AssessorID:      assessorID,
			Pinned:          true,
		}
		if err := s.allocations.Create(ctx, &allocation); err != nil {
			return models.Allocation{}, err
		}
		s.cache.Invalidate(ctx, coursework.ID)
		return allocation, nil
	default:
		return models.Allocation{}, err
	}
}

// CanDeleteAllocation reports whether an allocation may be removed: it must
// not be pinned and no feedback may exist at its stage for its allocatable.
// Feedback the assessor left on other allocatables does not block deletion.
func (s *allocationService) CanDeleteAllocation(ctx context.Context, allocation models.Allocation) (bool, error) {
	if allocation.Frozen() {
		return false, nil
	}

	submission, err := s.submissions.GetByAllocatable(ctx, allocation.CourseworkID, allocation.Allocatable())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	_, err = s.feedbacks.GetBySubmissionAndStage(ctx, submission.ID, allocation.Stage)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return true, nil
	default:
		return false, err
	}
}

func (s *allocationService) DeleteAllocation(ctx context.Context, coursework models.Coursework, allocationID uint, actor Actor) error {
	if !s.permissions.Can(ctx, actor, ActionAllocate, coursework.ID) {
		return ErrPermissionDenied
	}

	allocations, err := s.allocations.ListByCoursework(ctx, coursework.ID)
	if err != nil {
		return err
	}

	for _, allocation := range allocations {
		if allocation.ID != allocationID {
			continue
		}
		deletable, err := s.CanDeleteAllocation(ctx, allocation)
		if err != nil {
			return err
		}
		if !deletable {
			return ErrAllocationFrozen
		}
		if err := s.allocations.Delete(ctx, allocation.ID); err != nil {
			return err
		}
		s.cache.Invalidate(ctx, coursework.ID)
		return nil
	}

	return gorm.ErrRecordNotFound
}

// MarkAllocationTimeLocked freezes the allocation for the given target once
// marking has started there.
func MarkAllocationTimeLocked(ctx context.Context, allocations repository.AllocationRepository, cache *store.CourseworkCache, courseworkID uint, allocatable models.Allocatable, stage string) error {
	allocation, err := allocations.GetByTarget(ctx, courseworkID, allocatable, stage)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if allocation.TimeLocked {
		return nil
	}

	allocation.TimeLocked = true
	if err := allocations.Update(ctx, &allocation); err != nil {
		return err
	}

	cache.Invalidate(ctx, courseworkID)
	return nil
}

func (s *allocationService) buildStrategyInput(ctx context.Context, coursework models.Coursework, stage models.Stage) (StrategyInput, error) {
	enrolled, err := s.allocatables.ListEnrolled(ctx, coursework.ID)
	if err != nil {
		return StrategyInput{}, err
	}

	existing, err := s.allocations.ListByStage(ctx, coursework.ID, stage.Identifier())
	if err != nil {
		return StrategyInput{}, err
	}

	allocated := make(map[models.Allocatable]struct{}, len(existing))
	for _, allocation := range existing {
		allocated[allocation.Allocatable()] = struct{}{}
	}

	expectedType := coursework.AllocatableType()
	unallocated := make([]models.Allocatable, 0, len(enrolled))
	for _, allocatable := range enrolled {
		if allocatable.Type != expectedType {
			s.logger.Warn().
				Uint("allocatable_id", allocatable.ID).
				Str("type", string(allocatable.Type)).
				Msg("skipping allocatable: type does not match coursework grouping")
			continue
		}
		if _, ok := allocated[allocatable]; ok {
			continue
		}
		unallocated = append(unallocated, allocatable)
	}

	role := models.MarkerRoleAssessor
	if stage.Role == models.StageModerator {
		role = models.MarkerRoleModerator
	}
	markers, err := s.markers.ListByCoursework(ctx, coursework.ID, role)
	if err != nil {
		return StrategyInput{}, err
	}

	return StrategyInput{
		Coursework:  coursework,
		Stage:       stage,
		Unallocated: unallocated,
		Existing:    existing,
		Markers:     markers,
		Groups:      s.allocatables,
	}, nil
}
