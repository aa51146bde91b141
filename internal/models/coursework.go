package models

import "time"

// Allocation strategy names accepted per marking role.
const (
	StrategyManual        = "manual"
	StrategyEqualSplit    = "equal_split"
	StrategyPercentage    = "percentage"
	StrategyGroupAssessor = "group_assessor"
)

// Grade agreement strategy names.
const (
	AgreementNone               = "none"
	AgreementAverageGrade       = "average_grade"
	AgreementPercentageDistance = "percentage_distance"
)

// Rounding rules applied to averaged grades.
const (
	RoundingMid  = "mid"
	RoundingUp   = "up"
	RoundingDown = "down"
)

// Coursework is one assignment configuration: its deadline, marking
// workflow shape and grade agreement policy. Every other entity is owned
// by a coursework via CourseworkID.
type Coursework struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	Title                    string    `gorm:"size:255;not null" json:"title"`
	Deadline                 int64     `json:"deadline"`
	NumberOfMarkers          int       `gorm:"not null;default:1" json:"number_of_markers"`
	UseGroups                bool      `json:"use_groups"`
	SamplingEnabled          bool      `json:"sampling_enabled"`
	ModerationEnabled        bool      `json:"moderation_enabled"`
	PersonalDeadlinesEnabled bool      `json:"personal_deadlines_enabled"`
	ExtensionsEnabled        bool      `json:"extensions_enabled"`
	BlindMarking             bool      `json:"blind_marking"`
	AssessorStrategy         string    `gorm:"size:32;not null;default:manual" json:"assessor_strategy"`
	ModeratorStrategy        string    `gorm:"size:32;not null;default:manual" json:"moderator_strategy"`
	AgreementStrategy        string    `gorm:"size:32;not null;default:none" json:"agreement_strategy"`
	RoundingRule             string    `gorm:"size:8;not null;default:mid" json:"rounding_rule"`
	PercentageDistance       int       `json:"percentage_distance"`
	MaxGrade                 float64   `gorm:"not null;default:100" json:"max_grade"`
	GradeEditingTime         int64     `json:"grade_editing_time"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// AllocatableType returns the allocatable kind this coursework marks:
// groups when group submissions are enabled, individual users otherwise.
func (c Coursework) AllocatableType() AllocatableType {
	if c.UseGroups {
		return AllocatableGroup
	}
	return AllocatableUser
}

// AssessorStages lists the initial marking stages in order.
func (c Coursework) AssessorStages() []Stage {
	stages := make([]Stage, 0, c.NumberOfMarkers)
	for n := 1; n <= c.NumberOfMarkers; n++ {
		stages = append(stages, AssessorStage(n))
	}
	return stages
}

// MarkingStages lists every stage of the workflow in order: assessors,
// then final agreed when more than one marker is configured, then the
// moderator stage when moderation is enabled.
func (c Coursework) MarkingStages() []Stage {
	stages := c.AssessorStages()
	if c.NumberOfMarkers > 1 {
		stages = append(stages, FinalAgreedStage())
	}
	if c.ModerationEnabled {
		stages = append(stages, ModeratorStage())
	}
	return stages
}

// HasStage reports whether the stage belongs to this coursework's
// configured workflow.
func (c Coursework) HasStage(stage Stage) bool {
	for _, configured := range c.MarkingStages() {
		if configured == stage {
			return true
		}
	}
	return false
}

// HasDeadline reports whether a default deadline is configured; zero means
// submissions are never late.
func (c Coursework) HasDeadline() bool {
	return c.Deadline > 0
}

// AutoAgreementEnabled reports whether final grades may be produced
// without a human adjudicator.
func (c Coursework) AutoAgreementEnabled() bool {
	return c.AgreementStrategy == AgreementAverageGrade || c.AgreementStrategy == AgreementPercentageDistance
}

// StrategyFor returns the configured allocation strategy name for a stage
// role.
func (c Coursework) StrategyFor(role StageRole) string {
	if role == StageModerator {
		return c.ModeratorStrategy
	}
	return c.AssessorStrategy
}
