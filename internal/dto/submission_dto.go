package dto

import (
	"github.com/noah-isme/markwise-go-api/internal/models"
)

// SubmissionFinaliseRequest describes the payload for finalising a
// submission, optionally on behalf of another target.
type SubmissionFinaliseRequest struct {
	AllocatableID   uint   `json:"allocatable_id" validate:"omitempty"`
	AllocatableType string `json:"allocatable_type" validate:"omitempty,oneof=user group"`
}

// SubmissionResponse is the serialized representation returned to API
// clients. State is derived, not stored.
type SubmissionResponse struct {
	ID              uint   `json:"id"`
	CourseworkID    uint   `json:"coursework_id"`
	AllocatableID   uint   `json:"allocatable_id"`
	AllocatableType string `json:"allocatable_type"`
	AuthorID        uint   `json:"author_id"`
	Finalised       bool   `json:"finalised"`
	FileCount       int    `json:"file_count"`
	FileURL         string `json:"file_url,omitempty"`
	TimeSubmitted   int64  `json:"time_submitted"`
	FirstPublished  int64  `json:"first_published,omitempty"`
	LastPublished   int64  `json:"last_published,omitempty"`
	State           string `json:"state"`
}

// NewSubmissionResponse converts a model and its derived state into a DTO.
func NewSubmissionResponse(model models.Submission, state models.SubmissionState) SubmissionResponse {
	return SubmissionResponse{
		ID:              model.ID,
		CourseworkID:    model.CourseworkID,
		AllocatableID:   model.AllocatableID,
		AllocatableType: string(model.AllocatableType),
		AuthorID:        model.AuthorID,
		Finalised:       model.Finalised,
		FileCount:       model.FileCount,
		FileURL:         model.FileURL,
		TimeSubmitted:   model.TimeSubmitted,
		FirstPublished:  model.FirstPublished,
		LastPublished:   model.LastPublished,
		State:           state.String(),
	}
}
