package dto

import (
	"time"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// FeedbackCreateRequest describes the payload for adding feedback to a
// submission at a marking stage.
type FeedbackCreateRequest struct {
	SubmissionID uint     `json:"submission_id" validate:"required"`
	Stage        string   `json:"stage" validate:"required"`
	Grade        *float64 `json:"grade" validate:"omitempty,gte=0"`
	Comment      string   `json:"comment" validate:"omitempty,max=20000"`
}

// FeedbackUpdateRequest describes the payload for editing feedback inside
// its editing window.
type FeedbackUpdateRequest struct {
	Grade   *float64 `json:"grade" validate:"omitempty,gte=0"`
	Comment *string  `json:"comment" validate:"omitempty,max=20000"`
}

// FeedbackResponse is the serialized representation returned to API clients.
type FeedbackResponse struct {
	ID           uint      `json:"id"`
	SubmissionID uint      `json:"submission_id"`
	AssessorID   uint      `json:"assessor_id"`
	Stage        string    `json:"stage"`
	Grade        *float64  `json:"grade"`
	Comment      string    `json:"comment"`
	MarkerNumber int       `json:"marker_number"`
	IsModeration bool      `json:"is_moderation"`
	IsFinalGrade bool      `json:"is_final_grade"`
	IsAutoGrade  bool      `json:"is_auto_grade"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewFeedbackResponse converts a model into a DTO.
func NewFeedbackResponse(model models.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:           model.ID,
		SubmissionID: model.SubmissionID,
		AssessorID:   model.AssessorID,
		Stage:        model.Stage,
		Grade:        model.Grade,
		Comment:      model.Comment,
		MarkerNumber: model.MarkerNumber,
		IsModeration: model.IsModeration,
		IsFinalGrade: model.IsFinalGrade,
		IsAutoGrade:  model.IsAutoGrade(),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewFeedbackResponseSlice converts a slice of models into DTOs.
func NewFeedbackResponseSlice(feedbacks []models.Feedback) []FeedbackResponse {
	responses := make([]FeedbackResponse, 0, len(feedbacks))
	for _, feedback := range feedbacks {
		responses = append(responses, NewFeedbackResponse(feedback))
	}

	return responses
}
