package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/dto"
	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/store"
)

// DeadlineService resolves effective deadlines and manages the override
// records they are computed from.
type DeadlineService interface {
	EffectiveDeadline(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable) (int64, error)
	SetPersonalDeadline(ctx context.Context, coursework models.Coursework, payload dto.PersonalDeadlineRequest, actor Actor) (models.PersonalDeadline, error)
	GrantExtension(ctx context.Context, coursework models.Coursework, payload dto.ExtensionRequest, actor Actor) (models.DeadlineExtension, error)
}

type deadlineService struct {
	deadlines   repository.DeadlineRepository
	cache       *store.CourseworkCache
	permissions PermissionChecker
	notifier    Notifier
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewDeadlineService constructs the deadline resolver.
func NewDeadlineService(deadlines repository.DeadlineRepository, cache *store.CourseworkCache, permissions PermissionChecker, notifier Notifier, validate *validator.Validate, logger zerolog.Logger) DeadlineService {
	return &deadlineService{
		deadlines:   deadlines,
		cache:       cache,
		permissions: permissions,
		notifier:    notifier,
		validator:   validate,
		logger:      logger.With().Str("component", "deadline_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/markwise-go-api/internal/service/deadline"),
		now:         time.Now,
	}
}

// EffectiveDeadline applies the override precedence: coursework default,
// then personal deadline, then a non-expired extension. The extension wins
// while unexpired even when its date is earlier than the personal deadline;
// an expired extension falls back to whatever preceded it. Returns 0 when
// nothing applies, meaning submissions are never late.
func (s *deadlineService) EffectiveDeadline(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable) (int64, error) {
	cacheKey := fmt.Sprintf("deadline:%s:%d", allocatable.Type, allocatable.ID)

	var cached int64
	if s.cache.Get(ctx, coursework.ID, cacheKey, &cached) {
		return cached, nil
	}

	deadline := coursework.Deadline

	if coursework.PersonalDeadlinesEnabled {
		personal, err := s.deadlines.GetPersonalDeadline(ctx, coursework.ID, allocatable)
		if err == nil {
			deadline = personal.Deadline
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	if coursework.ExtensionsEnabled {
		extension, err := s.deadlines.GetExtension(ctx, coursework.ID, allocatable)
		if err == nil {
			if !extension.Expired(s.now()) {
				deadline = extension.ExtendedDeadline
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	s.cache.Set(ctx, coursework.ID, cacheKey, deadline)

	return deadline, nil
}

func (s *deadlineService) SetPersonalDeadline(ctx context.Context, coursework models.Coursework, payload dto.PersonalDeadlineRequest, actor Actor) (models.PersonalDeadline, error) {
	if !s.permissions.Can(ctx, actor, ActionGrantExtension, coursework.ID) {
		return models.PersonalDeadline{}, ErrPermissionDenied
	}

	if err := s.validator.Struct(payload); err != nil {
		return models.PersonalDeadline{}, err
	}

	if !coursework.PersonalDeadlinesEnabled {
		return models.PersonalDeadline{}, ErrPersonalDeadlinesDisabled
	}

	deadline := models.PersonalDeadline{
		CourseworkID:    coursework.ID,
		AllocatableID:   payload.AllocatableID,
		AllocatableType: models.AllocatableType(payload.AllocatableType),
		Deadline:        payload.Deadline,
	}

	if err := s.deadlines.SavePersonalDeadline(ctx, &deadline); err != nil {
		return models.PersonalDeadline{}, err
	}

	s.cache.Invalidate(ctx, coursework.ID)
	s.notifier.Send(ctx, EventDeadlineChanged, map[string]interface{}{
		"coursework_id":    coursework.ID,
		"allocatable_id":   deadline.AllocatableID,
		"allocatable_type": deadline.AllocatableType,
		"deadline":         deadline.Deadline,
	})

	return deadline, nil
}

func (s *deadlineService) GrantExtension(ctx context.Context, coursework models.Coursework, payload dto.ExtensionRequest, actor Actor) (models.DeadlineExtension, error) {
	ctx, span := s.tracer.Start(ctx, "deadline.grant_extension")
	span.SetAttributes(
		attribute.Int64("coursework_id", int64(coursework.ID)),
		attribute.Int64("allocatable_id", int64(payload.AllocatableID)),
	)
	defer span.End()

	if !s.permissions.Can(ctx, actor, ActionGrantExtension, coursework.ID) {
		return models.DeadlineExtension{}, ErrPermissionDenied
	}

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return models.DeadlineExtension{}, err
	}

	if !coursework.ExtensionsEnabled {
		return models.DeadlineExtension{}, ErrExtensionsDisabled
	}

	extension := models.DeadlineExtension{
		CourseworkID:     coursework.ID,
		AllocatableID:    payload.AllocatableID,
		AllocatableType:  models.AllocatableType(payload.AllocatableType),
		ExtendedDeadline: payload.ExtendedDeadline,
		Reason:           payload.Reason,
		GrantedBy:        actor.ID,
	}

	if err := s.deadlines.SaveExtension(ctx, &extension); err != nil {
		span.RecordError(err)
		return models.DeadlineExtension{}, err
	}

	s.cache.Invalidate(ctx, coursework.ID)
	s.notifier.Send(ctx, EventDeadlineChanged, map[string]interface{}{
		"coursework_id":     coursework.ID,
		"allocatable_id":    extension.AllocatableID,
		"allocatable_type":  extension.AllocatableType,
		"extended_deadline": extension.ExtendedDeadline,
	})

	return extension, nil
}

// ErrPersonalDeadlinesDisabled indicates the coursework does not allow
// personal deadline overrides.
var ErrPersonalDeadlinesDisabled = errors.New("personal deadlines disabled for coursework")

// ErrExtensionsDisabled indicates the coursework does not allow extensions.
var ErrExtensionsDisabled = errors.New("extensions disabled for coursework")
