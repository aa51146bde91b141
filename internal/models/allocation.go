package models

import "time"

// Allocation assigns one assessor to one allocatable at one marking stage.
// At most one allocation exists per (coursework, allocatable, stage); last
// write wins unless the row is pinned or time-locked.
type Allocation struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CourseworkID    uint            `gorm:"not null;index" json:"coursework_id"`
	AllocatableID   uint            `gorm:"not null;index:idx_allocation_target" json:"allocatable_id"`
	AllocatableType AllocatableType `gorm:"size:8;not null;index:idx_allocation_target" json:"allocatable_type"`
	Stage           string          `gorm:"size:32;not null" json:"stage"`
	AssessorID      uint            `gorm:"not null" json:"assessor_id"`
	Pinned          bool            `json:"pinned"`
	TimeLocked      bool            `json:"time_locked"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Allocatable returns the allocation target's identity.
func (a Allocation) Allocatable() Allocatable {
	return Allocatable{ID: a.AllocatableID, Type: a.AllocatableType}
}

// Frozen reports whether automatic re-allocation must leave the row
// untouched: manual pins and rows whose marking has started are frozen.
func (a Allocation) Frozen() bool {
	return a.Pinned || a.TimeLocked
}
