package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// DeadlineRepository defines persistence operations for personal deadlines
// and extensions.
type DeadlineRepository interface {
	GetPersonalDeadline(ctx context.Context, courseworkID uint, allocatable models.Allocatable) (models.PersonalDeadline, error)
	GetExtension(ctx context.Context, courseworkID uint, allocatable models.Allocatable) (models.DeadlineExtension, error)
	ListPersonalDeadlines(ctx context.Context, courseworkID uint) ([]models.PersonalDeadline, error)
	ListExtensions(ctx context.Context, courseworkID uint) ([]models.DeadlineExtension, error)
	SavePersonalDeadline(ctx context.Context, deadline *models.PersonalDeadline) error
	SaveExtension(ctx context.Context, extension *models.DeadlineExtension) error
}

type deadlineRepository struct {
	db *gorm.DB
}

// NewDeadlineRepository instantiates the repository.
func NewDeadlineRepository(db *gorm.DB) DeadlineRepository {
	return &deadlineRepository{db: db}
}

func (r *deadlineRepository) GetPersonalDeadline(ctx context.Context, courseworkID uint, allocatable models.Allocatable) (models.PersonalDeadline, error) {
	var deadline models.PersonalDeadline
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Where("allocatable_id = ? AND allocatable_type = ?", allocatable.ID, allocatable.Type).
		First(&deadline).Error; err != nil {
		return models.PersonalDeadline{}, err
	}

	return deadline, nil
}

func (r *deadlineRepository) GetExtension(ctx context.Context, courseworkID uint, allocatable models.Allocatable) (models.DeadlineExtension, error) {
	var extension models.DeadlineExtension
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Where("allocatable_id = ? AND allocatable_type = ?", allocatable.ID, allocatable.Type).
		First(&extension).Error; err != nil {
		return models.DeadlineExtension{}, err
	}

	return extension, nil
}

func (r *deadlineRepository) ListPersonalDeadlines(ctx context.Context, courseworkID uint) ([]models.PersonalDeadline, error) {
	var deadlines []models.PersonalDeadline
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Find(&deadlines).Error; err != nil {
		return nil, err
	}

	return deadlines, nil
}

func (r *deadlineRepository) ListExtensions(ctx context.Context, courseworkID uint) ([]models.DeadlineExtension, error) {
	var extensions []models.DeadlineExtension
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Find(&extensions).Error; err != nil {
		return nil, err
	}

	return extensions, nil
}

// SavePersonalDeadline creates or replaces the override for the row's
// (coursework, allocatable) key.
func (r *deadlineRepository) SavePersonalDeadline(ctx context.Context, deadline *models.PersonalDeadline) error {
	existing, err := r.GetPersonalDeadline(ctx, deadline.CourseworkID, models.Allocatable{ID: deadline.AllocatableID, Type: deadline.AllocatableType})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(deadline).Error
		}
		return err
	}

	deadline.ID = existing.ID
	deadline.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(deadline).Error
}

// SaveExtension creates or replaces the extension for the row's
// (coursework, allocatable) key.
func (r *deadlineRepository) SaveExtension(ctx context.Context, extension *models.DeadlineExtension) error {
	existing, err := r.GetExtension(ctx, extension.CourseworkID, models.Allocatable{ID: extension.AllocatableID, Type: extension.AllocatableType})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(extension).Error
		}
		return err
	}

	extension.ID = existing.ID
	extension.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(extension).Error
}
