package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/observability"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/store"
)

// ErrInvalidSampleRule indicates a rule config failed schema validation or
// named an unknown rule type.
var ErrInvalidSampleRule = errors.New("invalid sample rule")

// ErrSamplingDisabled indicates sampling is not enabled on the coursework.
var ErrSamplingDisabled = errors.New("sampling disabled for coursework")

const percentageRuleSchema = `{
	"type": "object",
	"properties": {
		"percentage": {"type": "integer", "minimum": 1, "maximum": 100}
	},
	"required": ["percentage"],
	"additionalProperties": false
}`

const gradeBoundaryRuleSchema = `{
	"type": "object",
	"properties": {
		"min": {"type": "number", "minimum": 0},
		"max": {"type": "number", "minimum": 0}
	},
	"required": ["min", "max"],
	"additionalProperties": false
}`

const totalTargetRuleSchema = `{
	"type": "object",
	"properties": {
		"target": {"type": "integer", "minimum": 1}
	},
	"required": ["target"],
	"additionalProperties": false
}`

// SamplingService selects allocatables into marking/moderation samples and
// reports whether unmoderated work gates publishing.
type SamplingService interface {
	ComputeSample(ctx context.Context, coursework models.Coursework, stage models.Stage) ([]models.Allocatable, error)
	OnGradeChanged(ctx context.Context, coursework models.Coursework) error
	AddManual(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable, stage models.Stage, actor Actor) error
	SaveRule(ctx context.Context, coursework models.Coursework, stage models.Stage, ruleType string, config json.RawMessage, actor Actor) (models.SampleRule, error)
	UnmoderatedWorkExists(ctx context.Context, coursework models.Coursework) (bool, error)
}

type samplingService struct {
	samples     repository.SampleRepository
	submissions repository.SubmissionRepository
	feedbacks   repository.FeedbackRepository
	allocations repository.AllocationRepository
	cache       *store.CourseworkCache
	permissions PermissionChecker
	schemas     map[string]*jsonschema.Schema
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewSamplingService constructs the rule engine. Rule config schemas are
// compiled once here so malformed configs fail fast at save time.
func NewSamplingService(
	samples repository.SampleRepository,
	submissions repository.SubmissionRepository,
	feedbacks repository.FeedbackRepository,
	allocations repository.AllocationRepository,
	cache *store.CourseworkCache,
	permissions PermissionChecker,
	logger zerolog.Logger,
) SamplingService {
	schemas := map[string]*jsonschema.Schema{
		models.SampleRulePercentage:    jsonschema.MustCompileString("percentage.json", percentageRuleSchema),
		models.SampleRuleGradeBoundary: jsonschema.MustCompileString("grade_boundary.json", gradeBoundaryRuleSchema),
		models.SampleRuleTotalTarget:   jsonschema.MustCompileString("total_target.json", totalTargetRuleSchema),
	}

	return &samplingService{
		samples:     samples,
		submissions: submissions,
		feedbacks:   feedbacks,
		allocations: allocations,
		cache:       cache,
		permissions: permissions,
		schemas:     schemas,
		logger:      logger.With().Str("component", "sampling_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/markwise-go-api/internal/service/sampling"),
	}
}

// ComputeSample evaluates the stage's automatic rules over the finalised
// submissions, unions the results with manual memberships, and reconciles
// the stored membership rows. Manual memberships are never touched by a
// re-run; automatic memberships are added and removed as rule outcomes
// change. A membership whose allocatable no longer matches the coursework
// grouping is dropped silently.
func (s *samplingService) ComputeSample(ctx context.Context, coursework models.Coursework, stage models.Stage) ([]models.Allocatable, error) {
	ctx, span := s.tracer.Start(ctx, "sampling.compute")
	span.SetAttributes(
		attribute.Int64("coursework_id", int64(coursework.ID)),
		attribute.String("stage", stage.Identifier()),
	)
	defer span.End()

	if !coursework.SamplingEnabled && stage.Role != models.StageModerator {
		return nil, ErrSamplingDisabled
	}

	candidates, err := s.finalisedAllocatables(ctx, coursework)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	automatic, err := s.evaluateRules(ctx, coursework, stage, candidates)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	memberships, err := s.samples.ListMemberships(ctx, coursework.ID, stage.Identifier())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	expectedType := coursework.AllocatableType()
	autoSelected := make(map[models.Allocatable]struct{}, len(automatic))
	for _, allocatable := range automatic {
		autoSelected[allocatable] = struct{}{}
	}

	manual := make(map[models.Allocatable]struct{})
	storedAuto := make(map[models.Allocatable]uint)
	for _, membership := range memberships {
		allocatable := membership.Allocatable()

		if allocatable.Type != expectedType {
			// stale reference, e.g. a dissolved group: ignore and continue
			if !membership.Manual {
				if err := s.samples.DeleteMembership(ctx, membership.ID); err != nil {
					s.logger.Warn().Err(err).Uint("membership_id", membership.ID).Msg("failed to drop stale sample membership")
				}
			}
			continue
		}

		if membership.Manual {
			manual[allocatable] = struct{}{}
			continue
		}
		storedAuto[allocatable] = membership.ID
	}

	for allocatable, membershipID := range storedAuto {
		if _, ok := autoSelected[allocatable]; ok {
			continue
		}
		if err := s.samples.DeleteMembership(ctx, membershipID); err != nil {
			s.logger.Warn().Err(err).Uint("membership_id", membershipID).Msg("failed to remove automatic sample membership")
		}
	}

	for _, allocatable := range automatic {
		if _, ok := storedAuto[allocatable]; ok {
			continue
		}
		if _, ok := manual[allocatable]; ok {
			continue
		}
		membership := models.SampleMembership{
			CourseworkID:    coursework.ID,
			AllocatableID:   allocatable.ID,
			AllocatableType: allocatable.Type,
			Stage:           stage.Identifier(),
		}
		if err := s.samples.CreateMembership(ctx, &membership); err != nil {
			s.logger.Warn().Err(err).Uint("allocatable_id", allocatable.ID).Msg("skipping allocatable: failed to record sample membership")
		}
	}

	s.cache.Invalidate(ctx, coursework.ID)
	observability.SamplesComputed().WithLabelValues(stage.Identifier()).Inc()

	result := make([]models.Allocatable, 0, len(autoSelected)+len(manual))
	for allocatable := range autoSelected {
		result = append(result, allocatable)
	}
	for allocatable := range manual {
		if _, ok := autoSelected[allocatable]; !ok {
			result = append(result, allocatable)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

// OnGradeChanged re-runs the automatic rules for every stage carrying a
// grade-boundary rule, because an initial grade landing or changing can
// move allocatables across the configured band.
func (s *samplingService) OnGradeChanged(ctx context.Context, coursework models.Coursework) error {
	if !coursework.SamplingEnabled && !coursework.ModerationEnabled {
		return nil
	}

	for _, stage := range coursework.MarkingStages() {
		if stage.Role == models.StageAssessor && stage.Number == 1 {
			continue
		}
		rules, err := s.samples.ListRules(ctx, coursework.ID, stage.Identifier())
		if err != nil {
			return err
		}
		hasBoundary := false
		for _, rule := range rules {
			if rule.RuleType == models.SampleRuleGradeBoundary {
				hasBoundary = true
				break
			}
		}
		if !hasBoundary {
			continue
		}
		if _, err := s.ComputeSample(ctx, coursework, stage); err != nil && !errors.Is(err, ErrSamplingDisabled) {
			return err
		}
	}

	return nil
}

// AddManual records an admin-selected membership that automatic re-runs
// will never remove.
func (s *samplingService) AddManual(ctx context.Context, coursework models.Coursework, allocatable models.Allocatable, stage models.Stage, actor Actor) error {
	if !s.permissions.Can(ctx, actor, ActionManageSampling, coursework.ID) {
		return ErrPermissionDenied
	}

	memberships, err := s.samples.ListMembershipsForAllocatable(ctx, coursework.ID, allocatable)
	if err != nil {
		return err
	}
	for _, membership := range memberships {
		if membership.Stage == stage.Identifier() {
			if membership.Manual {
				return nil
			}
			// promote the automatic membership so re-runs keep it
			if err := s.samples.DeleteMembership(ctx, membership.ID); err != nil {
				return err
			}
			break
		}
	}

	membership := models.SampleMembership{
		CourseworkID:    coursework.ID,
		AllocatableID:   allocatable.ID,
		AllocatableType: allocatable.Type,
		Stage:           stage.Identifier(),
		Manual:          true,
	}
	if err := s.samples.CreateMembership(ctx, &membership); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, coursework.ID)
	return nil
}

// SaveRule validates the rule config against its schema and persists it.
// Unknown rule types and malformed configs are configuration errors and
// fail fast.
func (s *samplingService) SaveRule(ctx context.Context, coursework models.Coursework, stage models.Stage, ruleType string, config json.RawMessage, actor Actor) (models.SampleRule, error) {
	if !s.permissions.Can(ctx, actor, ActionManageSampling, coursework.ID) {
		return models.SampleRule{}, ErrPermissionDenied
	}

	if coursework.SamplingEnabled && coursework.NumberOfMarkers <= 1 {
		return models.SampleRule{}, fmt.Errorf("%w: sampling requires more than one marker", ErrInvalidSampleRule)
	}

	schema, ok := s.schemas[ruleType]
	if !ok {
		return models.SampleRule{}, fmt.Errorf("%w: unknown rule type %q", ErrInvalidSampleRule, ruleType)
	}

	var decoded interface{}
	if err := json.Unmarshal(config, &decoded); err != nil {
		return models.SampleRule{}, fmt.Errorf("%w: %v", ErrInvalidSampleRule, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return models.SampleRule{}, fmt.Errorf("%w: %v", ErrInvalidSampleRule, err)
	}

	if ruleType == models.SampleRuleGradeBoundary {
		var boundary models.GradeBoundaryRuleConfig
		if err := json.Unmarshal(config, &boundary); err != nil {
			return models.SampleRule{}, fmt.Errorf("%w: %v", ErrInvalidSampleRule, err)
		}
		if boundary.Min > boundary.Max {
			return models.SampleRule{}, fmt.Errorf("%w: min exceeds max", ErrInvalidSampleRule)
		}
	}

	rule := models.SampleRule{
		CourseworkID: coursework.ID,
		Stage:        stage.Identifier(),
		RuleType:     ruleType,
		Config:       []byte(config),
	}
	if err := s.samples.CreateRule(ctx, &rule); err != nil {
		return models.SampleRule{}, err
	}

	s.cache.Invalidate(ctx, coursework.ID)
	return rule, nil
}

// UnmoderatedWorkExists reports whether any finalised submission still
// lacks moderation feedback while holding a moderator allocation (when
// moderator allocation is in use). It gates grade publishing.
func (s *samplingService) UnmoderatedWorkExists(ctx context.Context, coursework models.Coursework) (bool, error) {
	if !coursework.ModerationEnabled {
		return false, nil
	}

	finalised := true
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		CourseworkID: &coursework.ID,
		Finalised:    &finalised,
	})
	if err != nil {
		return false, err
	}

	moderatorStage := models.ModeratorStage().Identifier()
	usesModeratorAllocation := coursework.ModeratorStrategy != models.StrategyManual

	for _, submission := range submissions {
		if _, err := s.feedbacks.GetBySubmissionAndStage(ctx, submission.ID, moderatorStage); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}

		if usesModeratorAllocation {
			if _, err := s.allocations.GetByTarget(ctx, coursework.ID, submission.Allocatable(), moderatorStage); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return false, err
			}
		}

		return true, nil
	}

	return false, nil
}

func (s *samplingService) finalisedAllocatables(ctx context.Context, coursework models.Coursework) ([]models.Allocatable, error) {
	finalised := true
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		CourseworkID: &coursework.ID,
		Finalised:    &finalised,
	})
	if err != nil {
		return nil, err
	}

	expectedType := coursework.AllocatableType()
	allocatables := make([]models.Allocatable, 0, len(submissions))
	for _, submission := range submissions {
		allocatable := submission.Allocatable()
		if allocatable.Type != expectedType {
			continue
		}
		allocatables = append(allocatables, allocatable)
	}

	sort.Slice(allocatables, func(i, j int) bool { return allocatables[i].ID < allocatables[j].ID })
	return allocatables, nil
}

func (s *samplingService) evaluateRules(ctx context.Context, coursework models.Coursework, stage models.Stage, candidates []models.Allocatable) ([]models.Allocatable, error) {
	rules, err := s.samples.ListRules(ctx, coursework.ID, stage.Identifier())
	if err != nil {
		return nil, err
	}

	selected := make(map[models.Allocatable]struct{})
	totalTarget := 0
	for _, rule := range rules {
		switch rule.RuleType {
		case models.SampleRulePercentage:
			var config models.PercentageRuleConfig
			if err := json.Unmarshal(rule.Config, &config); err != nil {
				s.logger.Warn().Err(err).Uint("rule_id", rule.ID).Msg("skipping rule: bad percentage config")
				continue
			}
			target := int(math.Floor(float64(len(candidates))*float64(config.Percentage)/100 + 0.5))
			for i := 0; i < target && i < len(candidates); i++ {
				selected[candidates[i]] = struct{}{}
			}
		case models.SampleRuleGradeBoundary:
			boundary, err := s.gradeBoundarySelection(ctx, coursework, rule, candidates)
			if err != nil {
				return nil, err
			}
			for _, allocatable := range boundary {
				selected[allocatable] = struct{}{}
			}
		case models.SampleRuleTotalTarget:
			var config models.TotalTargetRuleConfig
			if err := json.Unmarshal(rule.Config, &config); err != nil {
				s.logger.Warn().Err(err).Uint("rule_id", rule.ID).Msg("skipping rule: bad total target config")
				continue
			}
			if totalTarget == 0 || config.Target < totalTarget {
				totalTarget = config.Target
			}
		default:
			s.logger.Warn().Str("rule_type", rule.RuleType).Uint("rule_id", rule.ID).Msg("skipping rule: unknown type")
		}
	}

	result := make([]models.Allocatable, 0, len(selected))
	for allocatable := range selected {
		result = append(result, allocatable)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	// the total target caps only what the rules selected; manual
	// memberships are unioned by the caller and never count against it
	if totalTarget > 0 && len(result) > totalTarget {
		result = result[:totalTarget]
	}

	return result, nil
}

// gradeBoundarySelection picks allocatables whose first-stage grade lies in
// the configured band. Evaluated lazily: allocatables without a stage-1
// grade yet are simply not selected.
func (s *samplingService) gradeBoundarySelection(ctx context.Context, coursework models.Coursework, rule models.SampleRule, candidates []models.Allocatable) ([]models.Allocatable, error) {
	var config models.GradeBoundaryRuleConfig
	if err := json.Unmarshal(rule.Config, &config); err != nil {
		s.logger.Warn().Err(err).Uint("rule_id", rule.ID).Msg("skipping rule: bad grade boundary config")
		return nil, nil
	}

	firstStage := models.AssessorStage(1).Identifier()
	selected := make([]models.Allocatable, 0)
	for _, allocatable := range candidates {
		submission, err := s.submissions.GetByAllocatable(ctx, coursework.ID, allocatable)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		feedback, err := s.feedbacks.GetBySubmissionAndStage(ctx, submission.ID, firstStage)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		if !feedback.HasGrade() {
			continue
		}
		if *feedback.Grade >= config.Min && *feedback.Grade <= config.Max {
			selected = append(selected, allocatable)
		}
	}

	return selected, nil
}
