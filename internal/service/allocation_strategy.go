package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
)

// ErrUnknownStrategy signals a stored strategy name that does not resolve.
// The operation is rejected and the stored configuration left unchanged;
// an unknown strategy is never silently substituted.
var ErrUnknownStrategy = errors.New("unknown allocation strategy")

// StageAssignment is one proposed (allocatable, assessor) pairing produced
// by a strategy run.
type StageAssignment struct {
	Allocatable models.Allocatable
	AssessorID  uint
}

// StrategyInput carries everything a strategy may consult. Existing holds
// the stage's current allocations (frozen rows included) so strategies can
// balance against work already assigned.
type StrategyInput struct {
	Coursework  models.Coursework
	Stage       models.Stage
	Unallocated []models.Allocatable
	Existing    []models.Allocation
	Markers     []models.Marker
	Groups      repository.AllocatableRepository
}

// AllocationStrategy partitions unallocated allocatables across markers.
type AllocationStrategy interface {
	Name() string
	Allocate(ctx context.Context, input StrategyInput) ([]StageAssignment, error)
}

// StrategyRegistry resolves strategies by their stored names. Names are
// validated at configuration time so an invalid name stored anyway (e.g. a
// migration gone wrong) fails closed at run time.
type StrategyRegistry struct {
	strategies map[string]AllocationStrategy
}

// NewStrategyRegistry builds the registry with the built-in strategies.
func NewStrategyRegistry() *StrategyRegistry {
	registry := &StrategyRegistry{strategies: make(map[string]AllocationStrategy)}
	for _, strategy := range []AllocationStrategy{
		manualStrategy{},
		equalSplitStrategy{},
		percentageStrategy{},
		groupAssessorStrategy{},
	} {
		registry.strategies[strategy.Name()] = strategy
	}
	return registry
}

// Resolve returns the strategy registered under name.
func (r *StrategyRegistry) Resolve(name string) (AllocationStrategy, error) {
	strategy, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return strategy, nil
}

// Known reports whether name resolves to a registered strategy.
func (r *StrategyRegistry) Known(name string) bool {
	_, ok := r.strategies[name]
	return ok
}

// manualStrategy persists only admin-entered pairs; an automatic run
// produces no assignments.
type manualStrategy struct{}

func (manualStrategy) Name() string { return models.StrategyManual }

func (manualStrategy) Allocate(_ context.Context, _ StrategyInput) ([]StageAssignment, error) {
	return nil, nil
}

// equalSplitStrategy balances counts across markers, never exceeding
// ceil(n/k) per marker, deterministic for the fixed ascending-ID marker
// ordering.
type equalSplitStrategy struct{}

func (equalSplitStrategy) Name() string { return models.StrategyEqualSplit }

func (equalSplitStrategy) Allocate(_ context.Context, input StrategyInput) ([]StageAssignment, error) {
	markers := sortedMarkers(input.Markers)
	if len(markers) == 0 {
		return nil, nil
	}

	counts := make(map[uint]int, len(markers))
	for _, allocation := range input.Existing {
		counts[allocation.AssessorID]++
	}

	total := len(input.Existing) + len(input.Unallocated)
	limit := (total + len(markers) - 1) / len(markers)

	assignments := make([]StageAssignment, 0, len(input.Unallocated))
	for _, allocatable := range input.Unallocated {
		chosen := uint(0)
		chosenCount := -1
		for _, marker := range markers {
			count := counts[marker.UserID]
			if count >= limit {
				continue
			}
			if chosenCount == -1 || count < chosenCount {
				chosen = marker.UserID
				chosenCount = count
			}
		}
		if chosenCount == -1 {
			// every marker at capacity; leave the remainder unallocated
			break
		}
		counts[chosen]++
		assignments = append(assignments, StageAssignment{Allocatable: allocatable, AssessorID: chosen})
	}

	return assignments, nil
}

// percentageStrategy keeps each marker's running total proportional to its
// configured target percentage.
type percentageStrategy struct{}

func (percentageStrategy) Name() string { return models.StrategyPercentage }

func (percentageStrategy) Allocate(_ context.Context, input StrategyInput) ([]StageAssignment, error) {
	markers := sortedMarkers(input.Markers)

	targets := make(map[uint]float64, len(markers))
	totalPercentage := 0
	for _, marker := range markers {
		if marker.AllocationPercentage > 0 {
			targets[marker.UserID] = float64(marker.AllocationPercentage)
			totalPercentage += marker.AllocationPercentage
		}
	}
	if totalPercentage == 0 {
		return nil, nil
	}

	counts := make(map[uint]int, len(markers))
	total := 0
	for _, allocation := range input.Existing {
		counts[allocation.AssessorID]++
		total++
	}

	assignments := make([]StageAssignment, 0, len(input.Unallocated))
	for _, allocatable := range input.Unallocated {
		total++
		chosen := uint(0)
		bestDeficit := 0.0
		found := false
		for _, marker := range markers {
			target, ok := targets[marker.UserID]
			if !ok {
				continue
			}
			expected := target / float64(totalPercentage) * float64(total)
			deficit := expected - float64(counts[marker.UserID])
			if !found || deficit > bestDeficit {
				chosen = marker.UserID
				bestDeficit = deficit
				found = true
			}
		}
		if !found {
			break
		}
		counts[chosen]++
		assignments = append(assignments, StageAssignment{Allocatable: allocatable, AssessorID: chosen})
	}

	return assignments, nil
}

// groupAssessorStrategy allocates a qualifying teacher within the
// allocatable's group at stage 1; the first qualifying teacher wins and a
// group with none is skipped.
type groupAssessorStrategy struct{}

func (groupAssessorStrategy) Name() string { return models.StrategyGroupAssessor }

func (g groupAssessorStrategy) Allocate(ctx context.Context, input StrategyInput) ([]StageAssignment, error) {
	if input.Stage.Role != models.StageAssessor || input.Stage.Number != 1 {
		return nil, nil
	}
	if input.Groups == nil {
		return nil, nil
	}

	qualified := make(map[uint]struct{}, len(input.Markers))
	for _, marker := range input.Markers {
		qualified[marker.UserID] = struct{}{}
	}

	assignments := make([]StageAssignment, 0, len(input.Unallocated))
	for _, allocatable := range input.Unallocated {
		teacher, err := g.groupTeacher(ctx, input.Groups, allocatable, qualified)
		if err != nil {
			return nil, err
		}
		if teacher == 0 {
			continue
		}
		assignments = append(assignments, StageAssignment{Allocatable: allocatable, AssessorID: teacher})
	}

	return assignments, nil
}

func (groupAssessorStrategy) groupTeacher(ctx context.Context, groups repository.AllocatableRepository, allocatable models.Allocatable, qualified map[uint]struct{}) (uint, error) {
	var memberships []models.GroupMembership

	switch allocatable.Type {
	case models.AllocatableGroup:
		members, err := groups.ListGroupMembers(ctx, allocatable.ID)
		if err != nil {
			return 0, err
		}
		memberships = members
	case models.AllocatableUser:
		userGroups, err := groups.ListGroupsForUser(ctx, allocatable.ID)
		if err != nil {
			return 0, err
		}
		for _, membership := range userGroups {
			members, err := groups.ListGroupMembers(ctx, membership.GroupID)
			if err != nil {
				return 0, err
			}
			memberships = append(memberships, members...)
		}
	}

	teachers := make([]uint, 0, 1)
	for _, membership := range memberships {
		if membership.Role != models.GroupRoleTeacher {
			continue
		}
		if _, ok := qualified[membership.UserID]; !ok {
			continue
		}
		teachers = append(teachers, membership.UserID)
	}
	if len(teachers) == 0 {
		return 0, nil
	}

	sort.Slice(teachers, func(i, j int) bool { return teachers[i] < teachers[j] })
	return teachers[0], nil
}

func sortedMarkers(markers []models.Marker) []models.Marker {
	sorted := append([]models.Marker(nil), markers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}
