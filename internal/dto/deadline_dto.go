package dto

import "github.com/noah-isme/markwise-go-api/internal/models"

// PersonalDeadlineRequest describes the payload for setting a personal
// deadline override for one student or group.
type PersonalDeadlineRequest struct {
	AllocatableID   uint   `json:"allocatable_id" validate:"required"`
	AllocatableType string `json:"allocatable_type" validate:"required,oneof=user group"`
	Deadline        int64  `json:"deadline" validate:"required,gt=0"`
}

// ExtensionRequest describes the payload for granting a deadline extension.
type ExtensionRequest struct {
	AllocatableID    uint   `json:"allocatable_id" validate:"required"`
	AllocatableType  string `json:"allocatable_type" validate:"required,oneof=user group"`
	ExtendedDeadline int64  `json:"extended_deadline" validate:"required,gt=0"`
	Reason           string `json:"reason" validate:"omitempty,max=500"`
}

// DeadlineResponse reports the resolved effective deadline for a target.
type DeadlineResponse struct {
	AllocatableID   uint   `json:"allocatable_id"`
	AllocatableType string `json:"allocatable_type"`
	Deadline        int64  `json:"deadline"`
}

// ExtensionResponse is the serialized representation of an extension.
type ExtensionResponse struct {
	ID               uint   `json:"id"`
	CourseworkID     uint   `json:"coursework_id"`
	AllocatableID    uint   `json:"allocatable_id"`
	AllocatableType  string `json:"allocatable_type"`
	ExtendedDeadline int64  `json:"extended_deadline"`
	Reason           string `json:"reason"`
	GrantedBy        uint   `json:"granted_by"`
}

// NewExtensionResponse converts a model into a DTO.
func NewExtensionResponse(model models.DeadlineExtension) ExtensionResponse {
	return ExtensionResponse{
		ID:               model.ID,
		CourseworkID:     model.CourseworkID,
		AllocatableID:    model.AllocatableID,
		AllocatableType:  string(model.AllocatableType),
		ExtendedDeadline: model.ExtendedDeadline,
		Reason:           model.Reason,
		GrantedBy:        model.GrantedBy,
	}
}
