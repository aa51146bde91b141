package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStageRoundTrip(t *testing.T) {
	cases := []struct {
		identifier string
		stage      Stage
	}{
		{"assessor_1", AssessorStage(1)},
		{"assessor_3", AssessorStage(3)},
		{"final_agreed_1", FinalAgreedStage()},
		{"moderator_1", ModeratorStage()},
	}

	for _, tc := range cases {
		parsed, err := ParseStage(tc.identifier)
		require.NoError(t, err, tc.identifier)
		require.Equal(t, tc.stage, parsed)
		require.Equal(t, tc.identifier, parsed.Identifier())
	}
}

func TestParseStageRejectsUnknownIdentifiers(t *testing.T) {
	for _, identifier := range []string{"", "assessor_0", "assessor_x", "final_agreed_2", "reviewer_1"} {
		_, err := ParseStage(identifier)
		require.ErrorIs(t, err, ErrInvalidStage, identifier)
	}
}

func TestStageOrdering(t *testing.T) {
	require.True(t, AssessorStage(1).Before(AssessorStage(2)))
	require.True(t, AssessorStage(2).Before(FinalAgreedStage()))
	require.True(t, FinalAgreedStage().Before(ModeratorStage()))
	require.False(t, ModeratorStage().Before(AssessorStage(1)))
}

func TestStageIsInitial(t *testing.T) {
	require.True(t, AssessorStage(1).IsInitial())
	require.True(t, AssessorStage(4).IsInitial())
	require.False(t, FinalAgreedStage().IsInitial())
	require.False(t, ModeratorStage().IsInitial())
}
