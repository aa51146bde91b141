package models

import "time"

// Feedback is one marker's grade and comment for a submission at a stage.
// The final agreed stage may be filled in automatically by the aggregation
// engine, in which case LastEditedBy stays nil.
type Feedback struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CourseworkID uint      `gorm:"not null;index" json:"coursework_id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	AssessorID   uint      `json:"assessor_id"`
	Stage        string    `gorm:"size:32;not null" json:"stage"`
	Grade        *float64  `json:"grade"`
	Comment      string    `gorm:"type:text" json:"comment"`
	MarkerNumber int       `gorm:"not null" json:"marker_number"`
	IsModeration bool      `json:"is_moderation"`
	IsFinalGrade bool      `json:"is_final_grade"`
	LastEditedBy *uint     `json:"last_edited_by"`
	Version      int       `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAutoGrade reports whether the feedback was generated by the aggregation
// engine rather than entered by a person.
func (f Feedback) IsAutoGrade() bool {
	return f.LastEditedBy == nil
}

// HasGrade reports whether a grade has been recorded.
func (f Feedback) HasGrade() bool {
	return f.Grade != nil
}

// EditableUntil returns the instant the editing window closes for the given
// per-coursework editing time. A zero editing time closes the window
// immediately.
func (f Feedback) EditableUntil(gradeEditingTime int64) time.Time {
	return f.CreatedAt.Add(time.Duration(gradeEditingTime) * time.Second)
}

// IsEditable reports whether the feedback is still inside its editing
// window at the given time.
func (f Feedback) IsEditable(gradeEditingTime int64, now time.Time) bool {
	return gradeEditingTime > 0 && now.Before(f.EditableUntil(gradeEditingTime))
}
