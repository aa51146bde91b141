package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/markwise-go-api/internal/dto"
	"github.com/noah-isme/markwise-go-api/internal/models"
)

func newCourseworkFixture(permissions PermissionChecker) (*memoryCourseworkRepo, CourseworkService) {
	repo := newMemoryCourseworkRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewCourseworkService(repo, NewStrategyRegistry(), testCache(), permissions, validate, testLogger())
	return repo, svc
}

func validCourseworkPayload() dto.CourseworkCreateRequest {
	return dto.CourseworkCreateRequest{
		Title:            "Compilers coursework",
		NumberOfMarkers:  2,
		AssessorStrategy: models.StrategyEqualSplit,
		MaxGrade:         100,
	}
}

func TestCourseworkCreateAppliesDefaults(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})

	coursework, err := svc.Create(context.Background(), validCourseworkPayload(), Actor{ID: 1, Role: RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, models.StrategyManual, coursework.ModeratorStrategy)
	require.Equal(t, models.AgreementNone, coursework.AgreementStrategy)
	require.Equal(t, models.RoundingMid, coursework.RoundingRule)
	require.NotZero(t, coursework.ID)
}

func TestCourseworkCreatePermissionDenied(t *testing.T) {
	_, svc := newCourseworkFixture(denyAllPermissions{})

	_, err := svc.Create(context.Background(), validCourseworkPayload(), Actor{ID: 10, Role: RoleStudent})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCourseworkCreateRejectsSamplingWithSingleMarker(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})

	payload := validCourseworkPayload()
	payload.NumberOfMarkers = 1
	payload.SamplingEnabled = true

	_, err := svc.Create(context.Background(), payload, Actor{ID: 1, Role: RoleAdmin})
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestCourseworkCreateRejectsGroupAssessorWithoutGroups(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})

	payload := validCourseworkPayload()
	payload.AssessorStrategy = models.StrategyGroupAssessor

	_, err := svc.Create(context.Background(), payload, Actor{ID: 1, Role: RoleAdmin})
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestCourseworkCreateRejectsDistanceAgreementWithoutBand(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})

	payload := validCourseworkPayload()
	payload.AgreementStrategy = models.AgreementPercentageDistance

	_, err := svc.Create(context.Background(), payload, Actor{ID: 1, Role: RoleAdmin})
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestCourseworkCreateRejectsUnknownStrategyName(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})

	payload := validCourseworkPayload()
	payload.AssessorStrategy = "legacy_rotation"

	_, err := svc.Create(context.Background(), payload, Actor{ID: 1, Role: RoleAdmin})
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestCourseworkGetNotFound(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})

	_, err := svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, ErrCourseworkNotFound)
}

func TestCourseworkUpdateSettings(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})
	actor := Actor{ID: 1, Role: RoleAdmin}

	created, err := svc.Create(context.Background(), validCourseworkPayload(), actor)
	require.NoError(t, err)

	agreement := models.AgreementPercentageDistance
	distance := 15
	updated, err := svc.Update(context.Background(), created.ID, dto.CourseworkUpdateRequest{
		AgreementStrategy:  &agreement,
		PercentageDistance: &distance,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, agreement, updated.AgreementStrategy)
	require.Equal(t, 15, updated.PercentageDistance)
}

func TestCourseworkUpdateGroupingDeadlinesAndMaxGrade(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})
	actor := Actor{ID: 1, Role: RoleAdmin}

	created, err := svc.Create(context.Background(), validCourseworkPayload(), actor)
	require.NoError(t, err)

	useGroups := true
	personalDeadlines := true
	maxGrade := 20.0
	updated, err := svc.Update(context.Background(), created.ID, dto.CourseworkUpdateRequest{
		UseGroups:                &useGroups,
		PersonalDeadlinesEnabled: &personalDeadlines,
		MaxGrade:                 &maxGrade,
	}, actor)
	require.NoError(t, err)
	require.True(t, updated.UseGroups)
	require.True(t, updated.PersonalDeadlinesEnabled)
	require.Equal(t, 20.0, updated.MaxGrade)
	require.Equal(t, models.AllocatableGroup, updated.AllocatableType())
}

func TestCourseworkUpdateRejectsBrokenCombination(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})
	actor := Actor{ID: 1, Role: RoleAdmin}

	created, err := svc.Create(context.Background(), validCourseworkPayload(), actor)
	require.NoError(t, err)

	markers := 1
	sampling := true
	_, err = svc.Update(context.Background(), created.ID, dto.CourseworkUpdateRequest{
		NumberOfMarkers: &markers,
		SamplingEnabled: &sampling,
	}, actor)
	require.ErrorIs(t, err, ErrInvalidSettings)

	// the stored settings were left untouched
	stored, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.NumberOfMarkers)
	require.False(t, stored.SamplingEnabled)
}

func TestCourseworkUpdateNotFound(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})

	title := "Renamed"
	_, err := svc.Update(context.Background(), 42, dto.CourseworkUpdateRequest{Title: &title}, Actor{ID: 1, Role: RoleAdmin})
	require.ErrorIs(t, err, ErrCourseworkNotFound)
}

func TestCourseworkList(t *testing.T) {
	_, svc := newCourseworkFixture(allowAllPermissions{})
	actor := Actor{ID: 1, Role: RoleAdmin}

	for _, title := range []string{"First coursework", "Second coursework"} {
		payload := validCourseworkPayload()
		payload.Title = title
		_, err := svc.Create(context.Background(), payload, actor)
		require.NoError(t, err)
	}

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 2)
}
