package models

import "time"

// PersonalDeadline overrides the coursework deadline for one allocatable.
type PersonalDeadline struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CourseworkID    uint            `gorm:"not null;index" json:"coursework_id"`
	AllocatableID   uint            `gorm:"not null;index:idx_personal_deadline_target" json:"allocatable_id"`
	AllocatableType AllocatableType `gorm:"size:8;not null;index:idx_personal_deadline_target" json:"allocatable_type"`
	Deadline        int64           `gorm:"not null" json:"deadline"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DeadlineExtension grants extra time beyond the coursework or personal
// deadline. A granted extension takes precedence over a personal deadline
// while it has not expired, regardless of which date is later.
type DeadlineExtension struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	CourseworkID     uint            `gorm:"not null;index" json:"coursework_id"`
	AllocatableID    uint            `gorm:"not null;index:idx_extension_target" json:"allocatable_id"`
	AllocatableType  AllocatableType `gorm:"size:8;not null;index:idx_extension_target" json:"allocatable_type"`
	ExtendedDeadline int64           `gorm:"not null" json:"extended_deadline"`
	Reason           string          `gorm:"type:text" json:"reason"`
	GrantedBy        uint            `json:"granted_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Expired reports whether the extension date has already passed.
func (e DeadlineExtension) Expired(now time.Time) bool {
	return e.ExtendedDeadline <= now.Unix()
}
