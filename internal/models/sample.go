package models

import (
	"time"

	"gorm.io/datatypes"
)

// Sample rule types.
const (
	SampleRulePercentage    = "percentage"
	SampleRuleGradeBoundary = "grade_boundary"
	SampleRuleTotalTarget   = "total_target"
)

// SampleRule configures one automatic sampling rule for a stage. Config is
// rule-specific JSON ({"percentage": N}, {"min": x, "max": y} or
// {"target": N}) validated against a schema when the rule is saved.
type SampleRule struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CourseworkID uint           `gorm:"not null;index" json:"coursework_id"`
	Stage        string         `gorm:"size:32;not null" json:"stage"`
	RuleType     string         `gorm:"size:32;not null" json:"rule_type"`
	Config       datatypes.JSON `gorm:"type:json" json:"config"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// PercentageRuleConfig is the decoded config for a percentage rule.
type PercentageRuleConfig struct {
	Percentage int `json:"percentage"`
}

// GradeBoundaryRuleConfig is the decoded config for a grade-boundary rule.
type GradeBoundaryRuleConfig struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TotalTargetRuleConfig caps how many allocatables the automatic rules may
// select at a stage in total.
type TotalTargetRuleConfig struct {
	Target int `json:"target"`
}

// SampleMembership marks an allocatable as selected for extra marking at a
// stage. Manual memberships are admin-entered and survive automatic
// re-runs untouched.
type SampleMembership struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CourseworkID    uint            `gorm:"not null;index" json:"coursework_id"`
	AllocatableID   uint            `gorm:"not null;index:idx_sample_target" json:"allocatable_id"`
	AllocatableType AllocatableType `gorm:"size:8;not null;index:idx_sample_target" json:"allocatable_type"`
	Stage           string          `gorm:"size:32;not null" json:"stage"`
	Manual          bool            `json:"manual"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Allocatable returns the sampled allocatable's identity.
func (m SampleMembership) Allocatable() Allocatable {
	return Allocatable{ID: m.AllocatableID, Type: m.AllocatableType}
}
