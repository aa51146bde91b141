package dto

import "github.com/noah-isme/markwise-go-api/internal/models"

// AllocationPinRequest describes the payload for pinning an allocation by
// hand. A pinned allocation survives every later strategy run.
type AllocationPinRequest struct {
	AllocatableID   uint   `json:"allocatable_id" validate:"required"`
	AllocatableType string `json:"allocatable_type" validate:"required,oneof=user group"`
	AssessorID      uint   `json:"assessor_id" validate:"required"`
	Stage           string `json:"stage" validate:"required"`
}

// AllocationResponse is the serialized representation of one allocation.
type AllocationResponse struct {
	ID              uint   `json:"id"`
	CourseworkID    uint   `json:"coursework_id"`
	AllocatableID   uint   `json:"allocatable_id"`
	AllocatableType string `json:"allocatable_type"`
	AssessorID      uint   `json:"assessor_id"`
	Stage           string `json:"stage"`
	Pinned          bool   `json:"pinned"`
	TimeLocked      bool   `json:"time_locked"`
}

// NewAllocationResponse converts a model into a DTO.
func NewAllocationResponse(model models.Allocation) AllocationResponse {
	return AllocationResponse{
		ID:              model.ID,
		CourseworkID:    model.CourseworkID,
		AllocatableID:   model.AllocatableID,
		AllocatableType: string(model.AllocatableType),
		AssessorID:      model.AssessorID,
		Stage:           model.Stage,
		Pinned:          model.Pinned,
		TimeLocked:      model.TimeLocked,
	}
}

// NewAllocationResponseSlice converts a slice of models into DTOs.
func NewAllocationResponseSlice(allocations []models.Allocation) []AllocationResponse {
	responses := make([]AllocationResponse, 0, len(allocations))
	for _, allocation := range allocations {
		responses = append(responses, NewAllocationResponse(allocation))
	}

	return responses
}
