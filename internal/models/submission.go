package models

import "time"

// SubmissionState is a derived lifecycle level. Levels are spaced powers of
// two so ">=" comparisons are meaningful across the ordering.
type SubmissionState int

const (
	StateNotSubmitted    SubmissionState = 1
	StateSubmitted       SubmissionState = 2
	StateFinalised       SubmissionState = 4
	StatePartiallyGraded SubmissionState = 8
	StateFullyGraded     SubmissionState = 16
	StateFinalGraded     SubmissionState = 32
	StatePublished       SubmissionState = 64
)

// String renders the state for logs and API responses.
func (s SubmissionState) String() string {
	switch s {
	case StateNotSubmitted:
		return "not_submitted"
	case StateSubmitted:
		return "submitted"
	case StateFinalised:
		return "finalised"
	case StatePartiallyGraded:
		return "partially_graded"
	case StateFullyGraded:
		return "fully_graded"
	case StateFinalGraded:
		return "final_graded"
	case StatePublished:
		return "published"
	default:
		return "unknown"
	}
}

// Submission is one allocatable's piece of work for one coursework. Its
// lifecycle state is never stored; it is derived from these fields and the
// related feedback rows.
type Submission struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CourseworkID    uint            `gorm:"not null;index" json:"coursework_id"`
	AllocatableID   uint            `gorm:"not null;index:idx_submission_allocatable" json:"allocatable_id"`
	AllocatableType AllocatableType `gorm:"size:8;not null;index:idx_submission_allocatable" json:"allocatable_type"`
	AuthorID        uint            `gorm:"not null" json:"author_id"`
	Finalised       bool            `json:"finalised"`
	FileCount       int             `json:"file_count"`
	FileURL         string          `gorm:"size:512" json:"file_url"`
	TimeSubmitted   int64           `json:"time_submitted"`
	FirstPublished  int64           `json:"first_published"`
	LastPublished   int64           `json:"last_published"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Allocatable returns the submission owner's allocatable identity.
func (s Submission) Allocatable() Allocatable {
	return Allocatable{ID: s.AllocatableID, Type: s.AllocatableType}
}

// HasFiles reports whether any files have been uploaded.
func (s Submission) HasFiles() bool {
	return s.FileCount > 0
}

// IsPublished reports whether the agreed grade has ever reached the
// gradebook.
func (s Submission) IsPublished() bool {
	return s.FirstPublished > 0
}

// IsLate reports whether the submission arrived after the given effective
// deadline. A zero deadline means submissions are never late.
func (s Submission) IsLate(effectiveDeadline int64) bool {
	return effectiveDeadline > 0 && s.TimeSubmitted > effectiveDeadline
}
