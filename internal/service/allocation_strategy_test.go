package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

func allocatables(ids ...uint) []models.Allocatable {
	results := make([]models.Allocatable, 0, len(ids))
	for _, id := range ids {
		results = append(results, models.UserAllocatable(id))
	}
	return results
}

func TestRegistryResolvesBuiltinStrategies(t *testing.T) {
	registry := NewStrategyRegistry()
	for _, name := range []string{
		models.StrategyManual,
		models.StrategyEqualSplit,
		models.StrategyPercentage,
		models.StrategyGroupAssessor,
	} {
		require.True(t, registry.Known(name))
		strategy, err := registry.Resolve(name)
		require.NoError(t, err)
		require.Equal(t, name, strategy.Name())
	}
}

func TestRegistryRejectsUnknownStrategy(t *testing.T) {
	registry := NewStrategyRegistry()
	require.False(t, registry.Known("round_robin"))
	_, err := registry.Resolve("round_robin")
	require.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestManualStrategyProducesNoAssignments(t *testing.T) {
	assignments, err := manualStrategy{}.Allocate(context.Background(), StrategyInput{
		Unallocated: allocatables(1, 2, 3),
		Markers:     []models.Marker{{ID: 1, UserID: 100}},
	})
	require.NoError(t, err)
	require.Empty(t, assignments)
}

func TestEqualSplitBalancesAcrossMarkers(t *testing.T) {
	assignments, err := equalSplitStrategy{}.Allocate(context.Background(), StrategyInput{
		Unallocated: allocatables(1, 2, 3, 4),
		Markers: []models.Marker{
			{ID: 1, UserID: 100},
			{ID: 2, UserID: 200},
		},
	})
	require.NoError(t, err)
	require.Len(t, assignments, 4)

	counts := make(map[uint]int)
	for _, assignment := range assignments {
		counts[assignment.AssessorID]++
	}
	require.Equal(t, 2, counts[100])
	require.Equal(t, 2, counts[200])
}

func TestEqualSplitHonoursExistingLoad(t *testing.T) {
	assignments, err := equalSplitStrategy{}.Allocate(context.Background(), StrategyInput{
		Unallocated: allocatables(3, 4),
		Existing: []models.Allocation{
			{AllocatableID: 1, AllocatableType: models.AllocatableUser, AssessorID: 100},
			{AllocatableID: 2, AllocatableType: models.AllocatableUser, AssessorID: 100},
		},
		Markers: []models.Marker{
			{ID: 1, UserID: 100},
			{ID: 2, UserID: 200},
		},
	})
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	for _, assignment := range assignments {
		require.Equal(t, uint(200), assignment.AssessorID, "new work goes to the lighter marker")
	}
}

func TestEqualSplitWithoutMarkers(t *testing.T) {
	assignments, err := equalSplitStrategy{}.Allocate(context.Background(), StrategyInput{
		Unallocated: allocatables(1, 2),
	})
	require.NoError(t, err)
	require.Empty(t, assignments)
}

func TestPercentageStrategyKeepsProportions(t *testing.T) {
	assignments, err := percentageStrategy{}.Allocate(context.Background(), StrategyInput{
		Unallocated: allocatables(1, 2, 3, 4),
		Markers: []models.Marker{
			{ID: 1, UserID: 100, AllocationPercentage: 75},
			{ID: 2, UserID: 200, AllocationPercentage: 25},
		},
	})
	require.NoError(t, err)
	require.Len(t, assignments, 4)

	counts := make(map[uint]int)
	for _, assignment := range assignments {
		counts[assignment.AssessorID]++
	}
	require.Equal(t, 3, counts[100])
	require.Equal(t, 1, counts[200])
}

func TestPercentageStrategyWithoutTargets(t *testing.T) {
	assignments, err := percentageStrategy{}.Allocate(context.Background(), StrategyInput{
		Unallocated: allocatables(1, 2),
		Markers:     []models.Marker{{ID: 1, UserID: 100}},
	})
	require.NoError(t, err)
	require.Empty(t, assignments, "markers without a percentage receive nothing")
}

func TestGroupAssessorPicksQualifiedTeacher(t *testing.T) {
	groups := newMemoryAllocatableRepo()
	groups.members[7] = []models.GroupMembership{
		{GroupID: 7, UserID: 10, Role: models.GroupRoleStudent},
		{GroupID: 7, UserID: 20, Role: models.GroupRoleTeacher},
	}
	groups.members[8] = []models.GroupMembership{
		{GroupID: 8, UserID: 11, Role: models.GroupRoleStudent},
	}

	assignments, err := groupAssessorStrategy{}.Allocate(context.Background(), StrategyInput{
		Stage:       models.AssessorStage(1),
		Unallocated: []models.Allocatable{models.GroupAllocatable(7), models.GroupAllocatable(8)},
		Markers:     []models.Marker{{ID: 1, UserID: 20, Role: models.MarkerRoleAssessor}},
		Groups:      groups,
	})
	require.NoError(t, err)
	require.Len(t, assignments, 1, "groups without a qualifying teacher are skipped")
	require.Equal(t, models.GroupAllocatable(7), assignments[0].Allocatable)
	require.Equal(t, uint(20), assignments[0].AssessorID)
}

func TestGroupAssessorOnlyRunsAtStageOne(t *testing.T) {
	groups := newMemoryAllocatableRepo()
	groups.members[7] = []models.GroupMembership{{GroupID: 7, UserID: 20, Role: models.GroupRoleTeacher}}

	assignments, err := groupAssessorStrategy{}.Allocate(context.Background(), StrategyInput{
		Stage:       models.AssessorStage(2),
		Unallocated: []models.Allocatable{models.GroupAllocatable(7)},
		Markers:     []models.Marker{{ID: 1, UserID: 20}},
		Groups:      groups,
	})
	require.NoError(t, err)
	require.Empty(t, assignments)
}
