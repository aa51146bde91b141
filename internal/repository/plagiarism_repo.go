package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// PlagiarismRepository defines persistence operations for plagiarism flags.
type PlagiarismRepository interface {
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.PlagiarismFlag, error)
	Create(ctx context.Context, flag *models.PlagiarismFlag) error
	Update(ctx context.Context, flag *models.PlagiarismFlag) error
}

type plagiarismRepository struct {
	db *gorm.DB
}

// NewPlagiarismRepository instantiates the repository.
func NewPlagiarismRepository(db *gorm.DB) PlagiarismRepository {
	return &plagiarismRepository{db: db}
}

func (r *plagiarismRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.PlagiarismFlag, error) {
	var flags []models.PlagiarismFlag
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Find(&flags).Error; err != nil {
		return nil, err
	}

	return flags, nil
}

func (r *plagiarismRepository) Create(ctx context.Context, flag *models.PlagiarismFlag) error {
	return r.db.WithContext(ctx).Create(flag).Error
}

func (r *plagiarismRepository) Update(ctx context.Context, flag *models.PlagiarismFlag) error {
	return r.db.WithContext(ctx).Save(flag).Error
}
