package dto

import (
	"time"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// CourseworkCreateRequest describes the payload for creating a coursework.
type CourseworkCreateRequest struct {
	Title                    string  `json:"title" validate:"required,min=3"`
	Deadline                 int64   `json:"deadline" validate:"omitempty,gt=0"`
	NumberOfMarkers          int     `json:"number_of_markers" validate:"required,min=1,max=10"`
	UseGroups                bool    `json:"use_groups"`
	SamplingEnabled          bool    `json:"sampling_enabled"`
	ModerationEnabled        bool    `json:"moderation_enabled"`
	PersonalDeadlinesEnabled bool    `json:"personal_deadlines_enabled"`
	ExtensionsEnabled        bool    `json:"extensions_enabled"`
	BlindMarking             bool    `json:"blind_marking"`
	AssessorStrategy         string  `json:"assessor_strategy" validate:"required"`
	ModeratorStrategy        string  `json:"moderator_strategy" validate:"omitempty"`
	AgreementStrategy        string  `json:"agreement_strategy" validate:"omitempty,oneof=none average_grade percentage_distance"`
	RoundingRule             string  `json:"rounding_rule" validate:"omitempty,oneof=mid up down"`
	PercentageDistance       int     `json:"percentage_distance" validate:"omitempty,gte=0,lte=100"`
	MaxGrade                 float64 `json:"max_grade" validate:"required,gt=0"`
	GradeEditingTime         int64   `json:"grade_editing_time" validate:"omitempty,gte=0"`
}

// CourseworkUpdateRequest describes the payload for updating coursework
// settings. All fields are optional; absent fields keep their value.
type CourseworkUpdateRequest struct {
	Title                    *string  `json:"title" validate:"omitempty,min=3"`
	Deadline                 *int64   `json:"deadline" validate:"omitempty,gt=0"`
	NumberOfMarkers          *int     `json:"number_of_markers" validate:"omitempty,min=1,max=10"`
	UseGroups                *bool    `json:"use_groups"`
	SamplingEnabled          *bool    `json:"sampling_enabled"`
	ModerationEnabled        *bool    `json:"moderation_enabled"`
	PersonalDeadlinesEnabled *bool    `json:"personal_deadlines_enabled"`
	ExtensionsEnabled        *bool    `json:"extensions_enabled"`
	BlindMarking             *bool    `json:"blind_marking"`
	AssessorStrategy         *string  `json:"assessor_strategy"`
	ModeratorStrategy        *string  `json:"moderator_strategy"`
	AgreementStrategy        *string  `json:"agreement_strategy" validate:"omitempty,oneof=none average_grade percentage_distance"`
	RoundingRule             *string  `json:"rounding_rule" validate:"omitempty,oneof=mid up down"`
	PercentageDistance       *int     `json:"percentage_distance" validate:"omitempty,gte=0,lte=100"`
	MaxGrade                 *float64 `json:"max_grade" validate:"omitempty,gt=0"`
	GradeEditingTime         *int64   `json:"grade_editing_time" validate:"omitempty,gte=0"`
}

// CourseworkResponse is the serialized representation returned to API clients.
type CourseworkResponse struct {
	ID                       uint      `json:"id"`
	Title                    string    `json:"title"`
	Deadline                 int64     `json:"deadline"`
	NumberOfMarkers          int       `json:"number_of_markers"`
	UseGroups                bool      `json:"use_groups"`
	SamplingEnabled          bool      `json:"sampling_enabled"`
	ModerationEnabled        bool      `json:"moderation_enabled"`
	PersonalDeadlinesEnabled bool      `json:"personal_deadlines_enabled"`
	ExtensionsEnabled        bool      `json:"extensions_enabled"`
	BlindMarking             bool      `json:"blind_marking"`
	AssessorStrategy         string    `json:"assessor_strategy"`
	ModeratorStrategy        string    `json:"moderator_strategy"`
	AgreementStrategy        string    `json:"agreement_strategy"`
	RoundingRule             string    `json:"rounding_rule"`
	PercentageDistance       int       `json:"percentage_distance"`
	MaxGrade                 float64   `json:"max_grade"`
	GradeEditingTime         int64     `json:"grade_editing_time"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// NewCourseworkResponse converts a model into a DTO.
func NewCourseworkResponse(model models.Coursework) CourseworkResponse {
	return CourseworkResponse{
		ID:                       model.ID,
		Title:                    model.Title,
		Deadline:                 model.Deadline,
		NumberOfMarkers:          model.NumberOfMarkers,
		UseGroups:                model.UseGroups,
		SamplingEnabled:          model.SamplingEnabled,
		ModerationEnabled:        model.ModerationEnabled,
		PersonalDeadlinesEnabled: model.PersonalDeadlinesEnabled,
		ExtensionsEnabled:        model.ExtensionsEnabled,
		BlindMarking:             model.BlindMarking,
		AssessorStrategy:         model.AssessorStrategy,
		ModeratorStrategy:        model.ModeratorStrategy,
		AgreementStrategy:        model.AgreementStrategy,
		RoundingRule:             model.RoundingRule,
		PercentageDistance:       model.PercentageDistance,
		MaxGrade:                 model.MaxGrade,
		GradeEditingTime:         model.GradeEditingTime,
		CreatedAt:                model.CreatedAt,
		UpdatedAt:                model.UpdatedAt,
	}
}

// NewCourseworkResponseSlice converts a slice of models into DTOs.
func NewCourseworkResponseSlice(courseworks []models.Coursework) []CourseworkResponse {
	responses := make([]CourseworkResponse, 0, len(courseworks))
	for _, coursework := range courseworks {
		responses = append(responses, NewCourseworkResponse(coursework))
	}

	return responses
}
