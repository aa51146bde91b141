package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// CourseworkRepository defines persistence operations for courseworks.
type CourseworkRepository interface {
	List(ctx context.Context) ([]models.Coursework, error)
	GetByID(ctx context.Context, id uint) (models.Coursework, error)
	Create(ctx context.Context, coursework *models.Coursework) error
	Update(ctx context.Context, coursework *models.Coursework) error
}

type courseworkRepository struct {
	db *gorm.DB
}

// NewCourseworkRepository instantiates a GORM-backed repository.
func NewCourseworkRepository(db *gorm.DB) CourseworkRepository {
	return &courseworkRepository{db: db}
}

func (r *courseworkRepository) List(ctx context.Context) ([]models.Coursework, error) {
	var courseworks []models.Coursework
	if err := r.db.WithContext(ctx).Order("deadline ASC").Find(&courseworks).Error; err != nil {
		return nil, err
	}

	return courseworks, nil
}

func (r *courseworkRepository) GetByID(ctx context.Context, id uint) (models.Coursework, error) {
	var coursework models.Coursework
	if err := r.db.WithContext(ctx).First(&coursework, id).Error; err != nil {
		return models.Coursework{}, err
	}

	return coursework, nil
}

func (r *courseworkRepository) Create(ctx context.Context, coursework *models.Coursework) error {
	return r.db.WithContext(ctx).Create(coursework).Error
}

func (r *courseworkRepository) Update(ctx context.Context, coursework *models.Coursework) error {
	return r.db.WithContext(ctx).Save(coursework).Error
}
