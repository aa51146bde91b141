package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	CourseworkID *uint
	Allocatable  *models.Allocatable
	Finalised    *bool
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByAllocatable(ctx context.Context, courseworkID uint, allocatable models.Allocatable) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{})

	if filter.CourseworkID != nil {
		query = query.Where("coursework_id = ?", *filter.CourseworkID)
	}

	if filter.Allocatable != nil {
		query = query.Where("allocatable_id = ? AND allocatable_type = ?", filter.Allocatable.ID, filter.Allocatable.Type)
	}

	if filter.Finalised != nil {
		query = query.Where("finalised = ?", *filter.Finalised)
	}

	var submissions []models.Submission
	if err := query.Order("allocatable_id ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByAllocatable(ctx context.Context, courseworkID uint, allocatable models.Allocatable) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Where("allocatable_id = ? AND allocatable_type = ?", allocatable.ID, allocatable.Type).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}
