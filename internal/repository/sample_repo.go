package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// SampleRepository defines persistence operations for sampling rules and
// sample-set memberships.
type SampleRepository interface {
	ListRules(ctx context.Context, courseworkID uint, stage string) ([]models.SampleRule, error)
	CreateRule(ctx context.Context, rule *models.SampleRule) error
	DeleteRule(ctx context.Context, id uint) error

	ListMemberships(ctx context.Context, courseworkID uint, stage string) ([]models.SampleMembership, error)
	ListMembershipsForAllocatable(ctx context.Context, courseworkID uint, allocatable models.Allocatable) ([]models.SampleMembership, error)
	CreateMembership(ctx context.Context, membership *models.SampleMembership) error
	DeleteMembership(ctx context.Context, id uint) error
}

type sampleRepository struct {
	db *gorm.DB
}

// NewSampleRepository instantiates the repository.
func NewSampleRepository(db *gorm.DB) SampleRepository {
	return &sampleRepository{db: db}
}

func (r *sampleRepository) ListRules(ctx context.Context, courseworkID uint, stage string) ([]models.SampleRule, error) {
	var rules []models.SampleRule
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ? AND stage = ?", courseworkID, stage).
		Order("id ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}

	return rules, nil
}

func (r *sampleRepository) CreateRule(ctx context.Context, rule *models.SampleRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *sampleRepository) DeleteRule(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.SampleRule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *sampleRepository) ListMemberships(ctx context.Context, courseworkID uint, stage string) ([]models.SampleMembership, error) {
	var memberships []models.SampleMembership
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ? AND stage = ?", courseworkID, stage).
		Order("allocatable_id ASC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}

	return memberships, nil
}

func (r *sampleRepository) ListMembershipsForAllocatable(ctx context.Context, courseworkID uint, allocatable models.Allocatable) ([]models.SampleMembership, error) {
	var memberships []models.SampleMembership
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Where("allocatable_id = ? AND allocatable_type = ?", allocatable.ID, allocatable.Type).
		Find(&memberships).Error; err != nil {
		return nil, err
	}

	return memberships, nil
}

func (r *sampleRepository) CreateMembership(ctx context.Context, membership *models.SampleMembership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

func (r *sampleRepository) DeleteMembership(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.SampleMembership{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
