package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/dto"
	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/store"
)

// ErrCourseworkNotFound indicates a coursework could not be found.
var ErrCourseworkNotFound = errors.New("coursework not found")

// ErrInvalidSettings indicates a settings combination the marking workflow
// cannot run with.
var ErrInvalidSettings = errors.New("invalid coursework settings")

// CourseworkService manages coursework marking settings.
type CourseworkService interface {
	List(ctx context.Context) ([]models.Coursework, error)
	Get(ctx context.Context, id uint) (models.Coursework, error)
	Create(ctx context.Context, payload dto.CourseworkCreateRequest, actor Actor) (models.Coursework, error)
	Update(ctx context.Context, id uint, payload dto.CourseworkUpdateRequest, actor Actor) (models.Coursework, error)
}

type courseworkService struct {
	courseworks repository.CourseworkRepository
	strategies  *StrategyRegistry
	cache       *store.CourseworkCache
	permissions PermissionChecker
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCourseworkService constructs a CourseworkService instance.
func NewCourseworkService(
	courseworks repository.CourseworkRepository,
	strategies *StrategyRegistry,
	cache *store.CourseworkCache,
	permissions PermissionChecker,
	validate *validator.Validate,
	logger zerolog.Logger,
) CourseworkService {
	return &courseworkService{
		courseworks: courseworks,
		strategies:  strategies,
		cache:       cache,
		permissions: permissions,
		validator:   validate,
		logger:      logger.With().Str("component", "coursework_service").Logger(),
		now:         time.Now,
	}
}

func (s *courseworkService) List(ctx context.Context) ([]models.Coursework, error) {
	return s.courseworks.List(ctx)
}

func (s *courseworkService) Get(ctx context.Context, id uint) (models.Coursework, error) {
	var cached models.Coursework
	if s.cache.Get(ctx, id, "settings", &cached) {
		return cached, nil
	}

	coursework, err := s.courseworks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Coursework{}, ErrCourseworkNotFound
		}
		return models.Coursework{}, err
	}

	s.cache.Set(ctx, id, "settings", coursework)

	return coursework, nil
}

func (s *courseworkService) Create(ctx context.Context, payload dto.CourseworkCreateRequest, actor Actor) (models.Coursework, error) {
	if !s.permissions.Can(ctx, actor, ActionManageCoursework, 0) {
		return models.Coursework{}, ErrPermissionDenied
	}

	if err := s.validator.Struct(payload); err != nil {
		return models.Coursework{}, err
	}

	coursework := models.Coursework{
		Title:                    payload.Title,
		Deadline:                 payload.Deadline,
		NumberOfMarkers:          payload.NumberOfMarkers,
		UseGroups:                payload.UseGroups,
		SamplingEnabled:          payload.SamplingEnabled,
		ModerationEnabled:        payload.ModerationEnabled,
		PersonalDeadlinesEnabled: payload.PersonalDeadlinesEnabled,
		ExtensionsEnabled:        payload.ExtensionsEnabled,
		BlindMarking:             payload.BlindMarking,
		AssessorStrategy:         payload.AssessorStrategy,
		ModeratorStrategy:        payload.ModeratorStrategy,
		AgreementStrategy:        payload.AgreementStrategy,
		RoundingRule:             payload.RoundingRule,
		PercentageDistance:       payload.PercentageDistance,
		MaxGrade:                 payload.MaxGrade,
		GradeEditingTime:         payload.GradeEditingTime,
	}
	applySettingDefaults(&coursework)

	if err := s.checkSettings(coursework); err != nil {
		return models.Coursework{}, err
	}

	if err := s.courseworks.Create(ctx, &coursework); err != nil {
		return models.Coursework{}, err
	}

	s.logger.Info().Uint("coursework_id", coursework.ID).Str("title", coursework.Title).Msg("coursework created")

	return coursework, nil
}

func (s *courseworkService) Update(ctx context.Context, id uint, payload dto.CourseworkUpdateRequest, actor Actor) (models.Coursework, error) {
	if !s.permissions.Can(ctx, actor, ActionManageCoursework, id) {
		return models.Coursework{}, ErrPermissionDenied
	}

	if err := s.validator.Struct(payload); err != nil {
		return models.Coursework{}, err
	}

	coursework, err := s.courseworks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Coursework{}, ErrCourseworkNotFound
		}
		return models.Coursework{}, err
	}

	if payload.Title != nil {
		coursework.Title = *payload.Title
	}
	if payload.Deadline != nil {
		coursework.Deadline = *payload.Deadline
	}
	if payload.NumberOfMarkers != nil {
		coursework.NumberOfMarkers = *payload.NumberOfMarkers
	}
	if payload.UseGroups != nil {
		coursework.UseGroups = *payload.UseGroups
	}
	if payload.SamplingEnabled != nil {
		coursework.SamplingEnabled = *payload.SamplingEnabled
	}
	if payload.ModerationEnabled != nil {
		coursework.ModerationEnabled = *payload.ModerationEnabled
	}
	if payload.PersonalDeadlinesEnabled != nil {
		coursework.PersonalDeadlinesEnabled = *payload.PersonalDeadlinesEnabled
	}
	if payload.ExtensionsEnabled != nil {
		coursework.ExtensionsEnabled = *payload.ExtensionsEnabled
	}
	if payload.BlindMarking != nil {
		coursework.BlindMarking = *payload.BlindMarking
	}
	if payload.AssessorStrategy != nil {
		coursework.AssessorStrategy = *payload.AssessorStrategy
	}
	if payload.ModeratorStrategy != nil {
		coursework.ModeratorStrategy = *payload.ModeratorStrategy
	}
	if payload.AgreementStrategy != nil {
		coursework.AgreementStrategy = *payload.AgreementStrategy
	}
	if payload.RoundingRule != nil {
		coursework.RoundingRule = *payload.RoundingRule
	}
	if payload.PercentageDistance != nil {
		coursework.PercentageDistance = *payload.PercentageDistance
	}
	if payload.MaxGrade != nil {
		coursework.MaxGrade = *payload.MaxGrade
	}
	if payload.GradeEditingTime != nil {
		coursework.GradeEditingTime = *payload.GradeEditingTime
	}

	if err := s.checkSettings(coursework); err != nil {
		return models.Coursework{}, err
	}

	if err := s.courseworks.Update(ctx, &coursework); err != nil {
		return models.Coursework{}, err
	}

	s.cache.Invalidate(ctx, id)
	s.logger.Info().Uint("coursework_id", coursework.ID).Msg("coursework settings updated")

	return coursework, nil
}

// checkSettings rejects combinations the workflow cannot run with. Strategy
// names are checked against the registry at configuration time so a bad
// name fails here rather than during an allocation run.
func (s *courseworkService) checkSettings(coursework models.Coursework) error {
	if coursework.NumberOfMarkers < 1 {
		return fmt.Errorf("%w: at least one marker is required", ErrInvalidSettings)
	}
	if coursework.SamplingEnabled && coursework.NumberOfMarkers <= 1 {
		return fmt.Errorf("%w: sampling requires more than one marker", ErrInvalidSettings)
	}
	if !s.strategies.Known(coursework.AssessorStrategy) {
		return fmt.Errorf("%w: unknown assessor strategy %q", ErrInvalidSettings, coursework.AssessorStrategy)
	}
	if coursework.ModerationEnabled && !s.strategies.Known(coursework.ModeratorStrategy) {
		return fmt.Errorf("%w: unknown moderator strategy %q", ErrInvalidSettings, coursework.ModeratorStrategy)
	}
	if coursework.AssessorStrategy == models.StrategyGroupAssessor && !coursework.UseGroups {
		return fmt.Errorf("%w: group assessor strategy requires group submissions", ErrInvalidSettings)
	}
	if coursework.AgreementStrategy == models.AgreementPercentageDistance && coursework.PercentageDistance <= 0 {
		return fmt.Errorf("%w: percentage distance agreement requires a positive distance", ErrInvalidSettings)
	}

	return nil
}

func applySettingDefaults(coursework *models.Coursework) {
	if coursework.ModeratorStrategy == "" {
		coursework.ModeratorStrategy = models.StrategyManual
	}
	if coursework.AgreementStrategy == "" {
		coursework.AgreementStrategy = models.AgreementNone
	}
	if coursework.RoundingRule == "" {
		coursework.RoundingRule = models.RoundingMid
	}
}
