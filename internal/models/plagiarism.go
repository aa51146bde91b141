package models

import "time"

// Plagiarism flag statuses. Investigation and not-cleared block grade
// release; released and cleared allow it.
const (
	PlagiarismInvestigation = "investigation"
	PlagiarismReleased      = "released"
	PlagiarismCleared       = "cleared"
	PlagiarismNotCleared    = "not_cleared"
)

// PlagiarismFlag gates whether a submission's grade may be published,
// independent of grading completeness.
type PlagiarismFlag struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CourseworkID uint      `gorm:"not null;index" json:"coursework_id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	Status       string    `gorm:"size:32;not null" json:"status"`
	Comment      string    `gorm:"type:text" json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Blocks reports whether the flag prevents grade release.
func (f PlagiarismFlag) Blocks() bool {
	return f.Status == PlagiarismInvestigation || f.Status == PlagiarismNotCleared
}
