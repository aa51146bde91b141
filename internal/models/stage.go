package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidStage indicates a stage identifier outside the closed set the
// marking workflow understands.
var ErrInvalidStage = errors.New("invalid stage identifier")

// StageRole identifies the kind of marking step a stage represents.
type StageRole int

const (
	// StageAssessor is an initial marking stage (assessor_1..assessor_n).
	StageAssessor StageRole = iota + 1
	// StageFinalAgreed is the agreed-grade stage that reconciles the
	// assessor stages into one grade.
	StageFinalAgreed
	// StageModerator is the moderation stage.
	StageModerator
)

// Stage is a marking role instance within a coursework. It is derived from
// the coursework configuration and persisted only as its identifier string
// on allocation and feedback rows.
type Stage struct {
	Role   StageRole `json:"role"`
	Number int       `json:"number"`
}

// AssessorStage returns the nth initial marking stage (1-based).
func AssessorStage(n int) Stage {
	return Stage{Role: StageAssessor, Number: n}
}

// FinalAgreedStage returns the agreed-grade stage.
func FinalAgreedStage() Stage {
	return Stage{Role: StageFinalAgreed, Number: 1}
}

// ModeratorStage returns the moderation stage.
func ModeratorStage() Stage {
	return Stage{Role: StageModerator, Number: 1}
}

// Identifier renders the storage form of the stage: assessor_N,
// final_agreed_1 or moderator_1.
func (s Stage) Identifier() string {
	switch s.Role {
	case StageAssessor:
		return fmt.Sprintf("assessor_%d", s.Number)
	case StageFinalAgreed:
		return "final_agreed_1"
	case StageModerator:
		return "moderator_1"
	default:
		return ""
	}
}

// IsInitial reports whether the stage is one of the assessor stages whose
// feedback feeds grade aggregation.
func (s Stage) IsInitial() bool {
	return s.Role == StageAssessor
}

// Before reports stage ordering: assessor stages precede final_agreed,
// which precedes moderator.
func (s Stage) Before(other Stage) bool {
	if s.Role != other.Role {
		return s.Role < other.Role
	}
	return s.Number < other.Number
}

// ParseStage resolves a stored stage identifier back into a Stage value.
func ParseStage(identifier string) (Stage, error) {
	switch {
	case identifier == "final_agreed_1":
		return FinalAgreedStage(), nil
	case identifier == "moderator_1":
		return ModeratorStage(), nil
	case strings.HasPrefix(identifier, "assessor_"):
		n, err := strconv.Atoi(strings.TrimPrefix(identifier, "assessor_"))
		if err != nil || n < 1 {
			return Stage{}, fmt.Errorf("%w: %q", ErrInvalidStage, identifier)
		}
		return AssessorStage(n), nil
	default:
		return Stage{}, fmt.Errorf("%w: %q", ErrInvalidStage, identifier)
	}
}
