package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// FeedbackFilter allows narrowing feedback queries.
type FeedbackFilter struct {
	CourseworkID *uint
	SubmissionID *uint
	Stage        *string
	IsFinalGrade *bool
	IsModeration *bool
}

// FeedbackRepository defines persistence operations for feedback rows.
type FeedbackRepository interface {
	List(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, error)
	GetByID(ctx context.Context, id uint) (models.Feedback, error)
	GetBySubmissionAndStage(ctx context.Context, submissionID uint, stage string) (models.Feedback, error)
	MaxMarkerNumber(ctx context.Context, submissionID uint) (int, error)
	Create(ctx context.Context, feedback *models.Feedback) error
	Update(ctx context.Context, feedback *models.Feedback) error
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository instantiates the repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) List(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, error) {
	query := r.db.WithContext(ctx).Model(&models.Feedback{})

	if filter.CourseworkID != nil {
		query = query.Where("coursework_id = ?", *filter.CourseworkID)
	}

	if filter.SubmissionID != nil {
		query = query.Where("submission_id = ?", *filter.SubmissionID)
	}

	if filter.Stage != nil {
		query = query.Where("stage = ?", *filter.Stage)
	}

	if filter.IsFinalGrade != nil {
		query = query.Where("is_final_grade = ?", *filter.IsFinalGrade)
	}

	if filter.IsModeration != nil {
		query = query.Where("is_moderation = ?", *filter.IsModeration)
	}

	var feedbacks []models.Feedback
	if err := query.Order("marker_number ASC").Find(&feedbacks).Error; err != nil {
		return nil, err
	}

	return feedbacks, nil
}

func (r *feedbackRepository) GetByID(ctx context.Context, id uint) (models.Feedback, error) {
	var feedback models.Feedback
	if err := r.db.WithContext(ctx).First(&feedback, id).Error; err != nil {
		return models.Feedback{}, err
	}

	return feedback, nil
}

func (r *feedbackRepository) GetBySubmissionAndStage(ctx context.Context, submissionID uint, stage string) (models.Feedback, error) {
	var feedback models.Feedback
	if err := r.db.WithContext(ctx).
		Where("submission_id = ? AND stage = ?", submissionID, stage).
		First(&feedback).Error; err != nil {
		return models.Feedback{}, err
	}

	return feedback, nil
}

func (r *feedbackRepository) MaxMarkerNumber(ctx context.Context, submissionID uint) (int, error) {
	var max *int
	if err := r.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("submission_id = ?", submissionID).
		Select("MAX(marker_number)").
		Scan(&max).Error; err != nil {
		return 0, err
	}

	if max == nil {
		return 0, nil
	}

	return *max, nil
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

// Update applies an optimistic-concurrency guarded save: the write only
// lands when the stored version still matches the one the caller read.
func (r *feedbackRepository) Update(ctx context.Context, feedback *models.Feedback) error {
	currentVersion := feedback.Version
	feedback.Version++

	result := r.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("id = ? AND version = ?", feedback.ID, currentVersion).
		Updates(map[string]interface{}{
			"grade":          feedback.Grade,
			"comment":        feedback.Comment,
			"is_final_grade": feedback.IsFinalGrade,
			"last_edited_by": feedback.LastEditedBy,
			"version":        feedback.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
