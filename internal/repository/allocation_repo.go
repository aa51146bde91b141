package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// AllocationRepository defines persistence operations for allocations.
type AllocationRepository interface {
	ListByCoursework(ctx context.Context, courseworkID uint) ([]models.Allocation, error)
	ListByStage(ctx context.Context, courseworkID uint, stage string) ([]models.Allocation, error)
	GetByTarget(ctx context.Context, courseworkID uint, allocatable models.Allocatable, stage string) (models.Allocation, error)
	Create(ctx context.Context, allocation *models.Allocation) error
	Update(ctx context.Context, allocation *models.Allocation) error
	Delete(ctx context.Context, id uint) error
}

type allocationRepository struct {
	db *gorm.DB
}

// NewAllocationRepository instantiates the repository.
func NewAllocationRepository(db *gorm.DB) AllocationRepository {
	return &allocationRepository{db: db}
}

func (r *allocationRepository) ListByCoursework(ctx context.Context, courseworkID uint) ([]models.Allocation, error) {
	var allocations []models.Allocation
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Order("allocatable_id ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}

	return allocations, nil
}

func (r *allocationRepository) ListByStage(ctx context.Context, courseworkID uint, stage string) ([]models.Allocation, error) {
	var allocations []models.Allocation
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ? AND stage = ?", courseworkID, stage).
		Order("allocatable_id ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}

	return allocations, nil
}

func (r *allocationRepository) GetByTarget(ctx context.Context, courseworkID uint, allocatable models.Allocatable, stage string) (models.Allocation, error) {
	var allocation models.Allocation
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Where("allocatable_id = ? AND allocatable_type = ?", allocatable.ID, allocatable.Type).
		Where("stage = ?", stage).
		First(&allocation).Error; err != nil {
		return models.Allocation{}, err
	}

	return allocation, nil
}

func (r *allocationRepository) Create(ctx context.Context, allocation *models.Allocation) error {
	return r.db.WithContext(ctx).Create(allocation).Error
}

func (r *allocationRepository) Update(ctx context.Context, allocation *models.Allocation) error {
	return r.db.WithContext(ctx).Save(allocation).Error
}

func (r *allocationRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Allocation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
