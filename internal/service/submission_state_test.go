package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

func gradePtr(value float64) *float64 {
	return &value
}

func TestDeriveStateLifecycle(t *testing.T) {
	now := time.Unix(100000, 0)
	coursework := models.Coursework{ID: 1, NumberOfMarkers: 2}
	graded := func(stage string) models.Feedback {
		return models.Feedback{Stage: stage, Grade: gradePtr(60), CreatedAt: now.Add(-time.Hour)}
	}

	cases := []struct {
		name       string
		submission models.Submission
		feedbacks  []models.Feedback
		required   int
		expected   models.SubmissionState
	}{
		{"no files", models.Submission{}, nil, 2, models.StateNotSubmitted},
		{"files not finalised", models.Submission{FileCount: 1}, nil, 2, models.StateSubmitted},
		{"finalised no feedback", models.Submission{FileCount: 1, Finalised: true}, nil, 2, models.StateFinalised},
		{
			"one of two feedbacks",
			models.Submission{FileCount: 1, Finalised: true},
			[]models.Feedback{graded("assessor_1")},
			2,
			models.StatePartiallyGraded,
		},
		{
			"all required feedbacks",
			models.Submission{FileCount: 1, Finalised: true},
			[]models.Feedback{graded("assessor_1"), graded("assessor_2")},
			2,
			models.StateFullyGraded,
		},
		{
			"agreed final grade",
			models.Submission{FileCount: 1, Finalised: true},
			[]models.Feedback{graded("assessor_1"), {Stage: "final_agreed_1", Grade: gradePtr(65), IsFinalGrade: true}},
			2,
			models.StateFinalGraded,
		},
		{
			"published",
			models.Submission{FileCount: 1, Finalised: true, FirstPublished: 90000},
			[]models.Feedback{graded("assessor_1")},
			2,
			models.StatePublished,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := DeriveState(coursework, tc.submission, tc.feedbacks, tc.required, now)
			require.Equal(t, tc.expected, state)
		})
	}
}

func TestDeriveStateOrderingIsMonotonic(t *testing.T) {
	require.Less(t, models.StateNotSubmitted, models.StateSubmitted)
	require.Less(t, models.StateSubmitted, models.StateFinalised)
	require.Less(t, models.StateFinalised, models.StatePartiallyGraded)
	require.Less(t, models.StatePartiallyGraded, models.StateFullyGraded)
	require.Less(t, models.StateFullyGraded, models.StateFinalGraded)
	require.Less(t, models.StateFinalGraded, models.StatePublished)
}

func TestDeriveStateOpenEditingWindowHoldsBelowFullyGraded(t *testing.T) {
	now := time.Unix(100000, 0)
	coursework := models.Coursework{ID: 1, NumberOfMarkers: 2, GradeEditingTime: 3600}
	submission := models.Submission{FileCount: 1, Finalised: true}
	feedbacks := []models.Feedback{
		{Stage: "assessor_1", Grade: gradePtr(60), CreatedAt: now.Add(-2 * time.Hour)},
		{Stage: "assessor_2", Grade: gradePtr(70), CreatedAt: now.Add(-time.Minute)},
	}

	state := DeriveState(coursework, submission, feedbacks, 2, now)
	require.Equal(t, models.StatePartiallyGraded, state)

	state = DeriveState(coursework, submission, feedbacks, 2, now.Add(2*time.Hour))
	require.Equal(t, models.StateFullyGraded, state)
}

func TestStateServiceDerivesFromStoredRows(t *testing.T) {
	feedbacks := newMemoryFeedbackRepo()
	samples := newMemorySampleRepo()
	svc := NewStateService(feedbacks, samples, testLogger())

	coursework := models.Coursework{ID: 1, NumberOfMarkers: 1}
	submission := models.Submission{ID: 5, CourseworkID: 1, AllocatableID: 10, AllocatableType: models.AllocatableUser, FileCount: 1, Finalised: true}

	state, err := svc.State(context.Background(), coursework, submission)
	require.NoError(t, err)
	require.Equal(t, models.StateFinalised, state)

	require.NoError(t, feedbacks.Create(context.Background(), &models.Feedback{
		CourseworkID: 1,
		SubmissionID: 5,
		Stage:        "assessor_1",
		Grade:        gradePtr(55),
		MarkerNumber: 1,
	}))

	state, err = svc.State(context.Background(), coursework, submission)
	require.NoError(t, err)
	require.Equal(t, models.StateFullyGraded, state)
}

func TestRequiredFeedbackCountWithoutSampling(t *testing.T) {
	svc := NewStateService(newMemoryFeedbackRepo(), newMemorySampleRepo(), testLogger())

	coursework := models.Coursework{ID: 1, NumberOfMarkers: 3}
	required, err := svc.RequiredFeedbackCount(context.Background(), coursework, models.UserAllocatable(10))
	require.NoError(t, err)
	require.Equal(t, 3, required)
}

func TestRequiredFeedbackCountWithSampling(t *testing.T) {
	samples := newMemorySampleRepo()
	svc := NewStateService(newMemoryFeedbackRepo(), samples, testLogger())

	coursework := models.Coursework{ID: 1, NumberOfMarkers: 3, SamplingEnabled: true}

	required, err := svc.RequiredFeedbackCount(context.Background(), coursework, models.UserAllocatable(10))
	require.NoError(t, err)
	require.Equal(t, 1, required, "only stage one is required outside the sample")

	require.NoError(t, samples.CreateMembership(context.Background(), &models.SampleMembership{
		CourseworkID:    1,
		AllocatableID:   10,
		AllocatableType: models.AllocatableUser,
		Stage:           "assessor_2",
	}))
	require.NoError(t, samples.CreateMembership(context.Background(), &models.SampleMembership{
		CourseworkID:    1,
		AllocatableID:   10,
		AllocatableType: models.AllocatableUser,
		Stage:           "moderator_1",
	}))

	required, err = svc.RequiredFeedbackCount(context.Background(), coursework, models.UserAllocatable(10))
	require.NoError(t, err)
	require.Equal(t, 2, required, "moderator memberships do not add initial-stage requirements")
}
