package dto

import "github.com/noah-isme/markwise-go-api/internal/models"

// SampleRuleRequest describes the payload for saving a sampling rule. The
// config is validated against the per-type JSON schema before storage.
type SampleRuleRequest struct {
	Stage  string         `json:"stage" validate:"required"`
	Type   string         `json:"type" validate:"required,oneof=percentage grade_boundary"`
	Config map[string]any `json:"config" validate:"required"`
}

// SampleManualRequest describes the payload for hand-picking a submission
// into a stage's sample.
type SampleManualRequest struct {
	AllocatableID   uint   `json:"allocatable_id" validate:"required"`
	AllocatableType string `json:"allocatable_type" validate:"required,oneof=user group"`
	Stage           string `json:"stage" validate:"required"`
}

// SampleMembershipResponse is the serialized representation of one sample
// membership.
type SampleMembershipResponse struct {
	ID              uint   `json:"id"`
	CourseworkID    uint   `json:"coursework_id"`
	AllocatableID   uint   `json:"allocatable_id"`
	AllocatableType string `json:"allocatable_type"`
	Stage           string `json:"stage"`
	Manual          bool   `json:"manual"`
}

// NewSampleMembershipResponse converts a model into a DTO.
func NewSampleMembershipResponse(model models.SampleMembership) SampleMembershipResponse {
	return SampleMembershipResponse{
		ID:              model.ID,
		CourseworkID:    model.CourseworkID,
		AllocatableID:   model.AllocatableID,
		AllocatableType: string(model.AllocatableType),
		Stage:           model.Stage,
		Manual:          model.Manual,
	}
}

// NewSampleMembershipResponseSlice converts a slice of models into DTOs.
func NewSampleMembershipResponseSlice(memberships []models.SampleMembership) []SampleMembershipResponse {
	responses := make([]SampleMembershipResponse, 0, len(memberships))
	for _, membership := range memberships {
		responses = append(responses, NewSampleMembershipResponse(membership))
	}

	return responses
}
