package candidate

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	number string
	err    error
}

func (s *stubRegistry) Lookup(context.Context, uint, uint) (string, error) {
	return s.number, s.err
}

func TestCandidateNumberPrefersRegistry(t *testing.T) {
	provider := New(&stubRegistry{number: "C1042"}, zerolog.Nop())

	number, err := provider.CandidateNumber(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, "C1042", number)
}

func TestCandidateNumberFallsBackOnRegistryFailure(t *testing.T) {
	provider := New(&stubRegistry{err: errors.New("registry down")}, zerolog.Nop())

	number, err := provider.CandidateNumber(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, Fallback(1, 10), number)
}

func TestCandidateNumberWithoutRegistry(t *testing.T) {
	provider := New(nil, zerolog.Nop())

	number, err := provider.CandidateNumber(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, Fallback(1, 10), number)
}

func TestFallbackIsStableAndMarked(t *testing.T) {
	first := Fallback(3, 7)
	require.Equal(t, first, Fallback(3, 7))
	require.Len(t, first, 9)
	require.Equal(t, byte('X'), first[0])

	require.NotEqual(t, first, Fallback(3, 8))
	require.NotEqual(t, first, Fallback(4, 7))
	// the separator keeps (3,7) and (37, "") style collisions apart
	require.NotEqual(t, Fallback(31, 7), Fallback(3, 17))
}
