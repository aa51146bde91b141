package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

// AllocatableRepository resolves who can be marked and who belongs to
// which group.
type AllocatableRepository interface {
	ListEnrolled(ctx context.Context, courseworkID uint) ([]models.Allocatable, error)
	Enrol(ctx context.Context, enrolment *models.Enrolment) error
	Withdraw(ctx context.Context, courseworkID uint, allocatable models.Allocatable) error
	ListGroupMembers(ctx context.Context, groupID uint) ([]models.GroupMembership, error)
	ListGroupsForUser(ctx context.Context, userID uint) ([]models.GroupMembership, error)
}

// MarkerRepository resolves the grading roster for a coursework.
type MarkerRepository interface {
	ListByCoursework(ctx context.Context, courseworkID uint, role string) ([]models.Marker, error)
	Create(ctx context.Context, marker *models.Marker) error
	Delete(ctx context.Context, id uint) error
}

type allocatableRepository struct {
	db *gorm.DB
}

// NewAllocatableRepository instantiates the repository.
func NewAllocatableRepository(db *gorm.DB) AllocatableRepository {
	return &allocatableRepository{db: db}
}

func (r *allocatableRepository) ListEnrolled(ctx context.Context, courseworkID uint) ([]models.Allocatable, error) {
	var enrolments []models.Enrolment
	if err := r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Order("allocatable_id ASC").
		Find(&enrolments).Error; err != nil {
		return nil, err
	}

	allocatables := make([]models.Allocatable, 0, len(enrolments))
	for _, enrolment := range enrolments {
		allocatables = append(allocatables, enrolment.Allocatable())
	}

	return allocatables, nil
}

func (r *allocatableRepository) Enrol(ctx context.Context, enrolment *models.Enrolment) error {
	return r.db.WithContext(ctx).Create(enrolment).Error
}

func (r *allocatableRepository) Withdraw(ctx context.Context, courseworkID uint, allocatable models.Allocatable) error {
	return r.db.WithContext(ctx).
		Where("coursework_id = ?", courseworkID).
		Where("allocatable_id = ? AND allocatable_type = ?", allocatable.ID, allocatable.Type).
		Delete(&models.Enrolment{}).Error
}

func (r *allocatableRepository) ListGroupMembers(ctx context.Context, groupID uint) ([]models.GroupMembership, error) {
	var memberships []models.GroupMembership
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Find(&memberships).Error; err != nil {
		return nil, err
	}

	return memberships, nil
}

func (r *allocatableRepository) ListGroupsForUser(ctx context.Context, userID uint) ([]models.GroupMembership, error) {
	var memberships []models.GroupMembership
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&memberships).Error; err != nil {
		return nil, err
	}

	return memberships, nil
}

type markerRepository struct {
	db *gorm.DB
}

// NewMarkerRepository instantiates the repository.
func NewMarkerRepository(db *gorm.DB) MarkerRepository {
	return &markerRepository{db: db}
}

func (r *markerRepository) ListByCoursework(ctx context.Context, courseworkID uint, role string) ([]models.Marker, error) {
	query := r.db.WithContext(ctx).Where("coursework_id = ?", courseworkID)
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var markers []models.Marker
	if err := query.Order("id ASC").Find(&markers).Error; err != nil {
		return nil, err
	}

	return markers, nil
}

func (r *markerRepository) Create(ctx context.Context, marker *models.Marker) error {
	return r.db.WithContext(ctx).Create(marker).Error
}

func (r *markerRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Marker{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
