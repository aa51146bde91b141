package models

import "time"

// AllocatableType distinguishes individual students from submission groups.
type AllocatableType string

const (
	// AllocatableUser marks an individual student allocatable.
	AllocatableUser AllocatableType = "user"
	// AllocatableGroup marks a submission-group allocatable.
	AllocatableGroup AllocatableType = "group"
)

// Valid reports whether the type tag is one of the closed set.
func (t AllocatableType) Valid() bool {
	return t == AllocatableUser || t == AllocatableGroup
}

// Allocatable identifies the unit being marked: a student or a group.
// It is a value type used as a composite map key throughout the marking
// engines; it is never persisted as its own row.
type Allocatable struct {
	ID   uint            `json:"id"`
	Type AllocatableType `json:"type"`
}

// UserAllocatable builds the allocatable identity for a student.
func UserAllocatable(id uint) Allocatable {
	return Allocatable{ID: id, Type: AllocatableUser}
}

// GroupAllocatable builds the allocatable identity for a submission group.
func GroupAllocatable(id uint) Allocatable {
	return Allocatable{ID: id, Type: AllocatableGroup}
}

// User represents a platform account: students, assessors and moderators.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CourseGroup is a submission group; when a coursework uses group
// submissions each group produces one submission.
type CourseGroup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// GroupRoleStudent marks an ordinary group member.
	GroupRoleStudent = "student"
	// GroupRoleTeacher marks a member who may be auto-allocated as the
	// group's assessor.
	GroupRoleTeacher = "teacher"
)

// GroupMembership links a user to a course group with a role.
type GroupMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;index" json:"group_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Enrolment registers an allocatable as participating in a coursework.
// It is the candidate set the allocation strategies partition.
type Enrolment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CourseworkID    uint            `gorm:"not null;index" json:"coursework_id"`
	AllocatableID   uint            `gorm:"not null;index:idx_enrolment_target" json:"allocatable_id"`
	AllocatableType AllocatableType `gorm:"size:8;not null;index:idx_enrolment_target" json:"allocatable_type"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Allocatable returns the enrolled unit's identity.
func (e Enrolment) Allocatable() Allocatable {
	return Allocatable{ID: e.AllocatableID, Type: e.AllocatableType}
}

const (
	// MarkerRoleAssessor can hold assessor stages.
	MarkerRoleAssessor = "assessor"
	// MarkerRoleModerator can hold the moderator stage.
	MarkerRoleModerator = "moderator"
)

// Marker is a coursework's grading roster entry: one user who may be
// allocated work at the stages their role covers. AllocationPercentage
// feeds the percentage allocation strategy and is ignored by the others.
type Marker struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	CourseworkID         uint      `gorm:"not null;index" json:"coursework_id"`
	UserID               uint      `gorm:"not null" json:"user_id"`
	Role                 string    `gorm:"size:32;not null" json:"role"`
	AllocationPercentage int       `json:"allocation_percentage"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
