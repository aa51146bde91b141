// Package candidate resolves anonymous candidate numbers for blind
// marking. When the institution's registry does not know a target, a
// stable fallback number is derived from the coursework and target
// identifiers so the same work always shows the same number.
package candidate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// Provider resolves the candidate number shown to markers instead of a
// student or group name.
type Provider interface {
	CandidateNumber(ctx context.Context, courseworkID, allocatableID uint) (string, error)
}

// Registry is an optional upstream source of institutional candidate
// numbers.
type Registry interface {
	Lookup(ctx context.Context, courseworkID, allocatableID uint) (string, error)
}

type provider struct {
	registry Registry
	logger   zerolog.Logger
}

// New constructs a Provider backed by an optional registry. A nil registry
// always yields fallback numbers.
func New(registry Registry, logger zerolog.Logger) Provider {
	return &provider{
		registry: registry,
		logger:   logger.With().Str("component", "candidate").Logger(),
	}
}

func (p *provider) CandidateNumber(ctx context.Context, courseworkID, allocatableID uint) (string, error) {
	if p.registry != nil {
		number, err := p.registry.Lookup(ctx, courseworkID, allocatableID)
		if err == nil && number != "" {
			return number, nil
		}
		if err != nil {
			p.logger.Warn().Err(err).Uint("coursework_id", courseworkID).Uint("allocatable_id", allocatableID).Msg("candidate registry lookup failed, using fallback")
		}
	}

	return Fallback(courseworkID, allocatableID), nil
}

// Fallback derives a stable pseudo candidate number. The X prefix marks it
// as generated so it can never collide with registry-issued numbers.
func Fallback(courseworkID, allocatableID uint) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d.%d", courseworkID, allocatableID)))
	return "X" + hex.EncodeToString(sum[:])[:8]
}
