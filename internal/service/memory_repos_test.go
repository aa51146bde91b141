package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
)

type memoryCourseworkRepo struct {
	courseworks map[uint]models.Coursework
	nextID      uint
}

func newMemoryCourseworkRepo() *memoryCourseworkRepo {
	return &memoryCourseworkRepo{courseworks: make(map[uint]models.Coursework), nextID: 1}
}

func (m *memoryCourseworkRepo) List(context.Context) ([]models.Coursework, error) {
	results := make([]models.Coursework, 0, len(m.courseworks))
	for _, coursework := range m.courseworks {
		results = append(results, coursework)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memoryCourseworkRepo) GetByID(_ context.Context, id uint) (models.Coursework, error) {
	coursework, ok := m.courseworks[id]
	if !ok {
		return models.Coursework{}, gorm.ErrRecordNotFound
	}
	return coursework, nil
}

func (m *memoryCourseworkRepo) Create(_ context.Context, coursework *models.Coursework) error {
	coursework.ID = m.nextID
	coursework.CreatedAt = time.Now()
	coursework.UpdatedAt = time.Now()
	m.courseworks[m.nextID] = *coursework
	m.nextID++
	return nil
}

func (m *memoryCourseworkRepo) Update(_ context.Context, coursework *models.Coursework) error {
	if _, ok := m.courseworks[coursework.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	coursework.UpdatedAt = time.Now()
	m.courseworks[coursework.ID] = *coursework
	return nil
}

type memorySubmissionRepo struct {
	submissions map[uint]models.Submission
	nextID      uint
}

func newMemorySubmissionRepo() *memorySubmissionRepo {
	return &memorySubmissionRepo{submissions: make(map[uint]models.Submission), nextID: 1}
}

func (m *memorySubmissionRepo) List(_ context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	results := make([]models.Submission, 0, len(m.submissions))
	for _, submission := range m.submissions {
		if filter.CourseworkID != nil && submission.CourseworkID != *filter.CourseworkID {
			continue
		}
		if filter.Allocatable != nil && submission.Allocatable() != *filter.Allocatable {
			continue
		}
		if filter.Finalised != nil && submission.Finalised != *filter.Finalised {
			continue
		}
		results = append(results, submission)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memorySubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	submission, ok := m.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (m *memorySubmissionRepo) GetByAllocatable(_ context.Context, courseworkID uint, allocatable models.Allocatable) (models.Submission, error) {
	for _, submission := range m.submissions {
		if submission.CourseworkID == courseworkID && submission.Allocatable() == allocatable {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (m *memorySubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	submission.ID = m.nextID
	submission.CreatedAt = time.Now()
	submission.UpdatedAt = time.Now()
	m.submissions[m.nextID] = *submission
	m.nextID++
	return nil
}

func (m *memorySubmissionRepo) Update(_ context.Context, submission *models.Submission) error {
	if _, ok := m.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	submission.UpdatedAt = time.Now()
	m.submissions[submission.ID] = *submission
	return nil
}

type memoryFeedbackRepo struct {
	feedbacks map[uint]models.Feedback
	nextID    uint
}

func newMemoryFeedbackRepo() *memoryFeedbackRepo {
	return &memoryFeedbackRepo{feedbacks: make(map[uint]models.Feedback), nextID: 1}
}

func (m *memoryFeedbackRepo) List(_ context.Context, filter repository.FeedbackFilter) ([]models.Feedback, error) {
	results := make([]models.Feedback, 0, len(m.feedbacks))
	for _, feedback := range m.feedbacks {
		if filter.CourseworkID != nil && feedback.CourseworkID != *filter.CourseworkID {
			continue
		}
		if filter.SubmissionID != nil && feedback.SubmissionID != *filter.SubmissionID {
			continue
		}
		if filter.Stage != nil && feedback.Stage != *filter.Stage {
			continue
		}
		if filter.IsFinalGrade != nil && feedback.IsFinalGrade != *filter.IsFinalGrade {
			continue
		}
		if filter.IsModeration != nil && feedback.IsModeration != *filter.IsModeration {
			continue
		}
		results = append(results, feedback)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].MarkerNumber < results[j].MarkerNumber })
	return results, nil
}

func (m *memoryFeedbackRepo) GetByID(_ context.Context, id uint) (models.Feedback, error) {
	feedback, ok := m.feedbacks[id]
	if !ok {
		return models.Feedback{}, gorm.ErrRecordNotFound
	}
	return feedback, nil
}

func (m *memoryFeedbackRepo) GetBySubmissionAndStage(_ context.Context, submissionID uint, stage string) (models.Feedback, error) {
	for _, feedback := range m.feedbacks {
		if feedback.SubmissionID == submissionID && feedback.Stage == stage {
			return feedback, nil
		}
	}
	return models.Feedback{}, gorm.ErrRecordNotFound
}

func (m *memoryFeedbackRepo) MaxMarkerNumber(_ context.Context, submissionID uint) (int, error) {
	max := 0
	for _, feedback := range m.feedbacks {
		if feedback.SubmissionID == submissionID && feedback.MarkerNumber > max {
			max = feedback.MarkerNumber
		}
	}
	return max, nil
}

func (m *memoryFeedbackRepo) Create(_ context.Context, feedback *models.Feedback) error {
	feedback.ID = m.nextID
	if feedback.Version == 0 {
		feedback.Version = 1
	}
	feedback.CreatedAt = time.Now()
	feedback.UpdatedAt = time.Now()
	m.feedbacks[m.nextID] = *feedback
	m.nextID++
	return nil
}

// Update mirrors the optimistic-concurrency guard of the real repository:
// a stale version loses the write.
func (m *memoryFeedbackRepo) Update(_ context.Context, feedback *models.Feedback) error {
	stored, ok := m.feedbacks[feedback.ID]
	if !ok || stored.Version != feedback.Version {
		return gorm.ErrRecordNotFound
	}
	feedback.Version++
	feedback.UpdatedAt = time.Now()
	m.feedbacks[feedback.ID] = *feedback
	return nil
}

type memoryAllocationRepo struct {
	allocations map[uint]models.Allocation
	nextID      uint
}

func newMemoryAllocationRepo() *memoryAllocationRepo {
	return &memoryAllocationRepo{allocations: make(map[uint]models.Allocation), nextID: 1}
}

func (m *memoryAllocationRepo) ListByCoursework(_ context.Context, courseworkID uint) ([]models.Allocation, error) {
	results := make([]models.Allocation, 0, len(m.allocations))
	for _, allocation := range m.allocations {
		if allocation.CourseworkID == courseworkID {
			results = append(results, allocation)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memoryAllocationRepo) ListByStage(_ context.Context, courseworkID uint, stage string) ([]models.Allocation, error) {
	results := make([]models.Allocation, 0, len(m.allocations))
	for _, allocation := range m.allocations {
		if allocation.CourseworkID == courseworkID && allocation.Stage == stage {
			results = append(results, allocation)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memoryAllocationRepo) GetByTarget(_ context.Context, courseworkID uint, allocatable models.Allocatable, stage string) (models.Allocation, error) {
	for _, allocation := range m.allocations {
		if allocation.CourseworkID == courseworkID && allocation.Allocatable() == allocatable && allocation.Stage == stage {
			return allocation, nil
		}
	}
	return models.Allocation{}, gorm.ErrRecordNotFound
}

func (m *memoryAllocationRepo) Create(_ context.Context, allocation *models.Allocation) error {
	allocation.ID = m.nextID
	allocation.CreatedAt = time.Now()
	allocation.UpdatedAt = time.Now()
	m.allocations[m.nextID] = *allocation
	m.nextID++
	return nil
}

func (m *memoryAllocationRepo) Update(_ context.Context, allocation *models.Allocation) error {
	if _, ok := m.allocations[allocation.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	allocation.UpdatedAt = time.Now()
	m.allocations[allocation.ID] = *allocation
	return nil
}

func (m *memoryAllocationRepo) Delete(_ context.Context, id uint) error {
	if _, ok := m.allocations[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.allocations, id)
	return nil
}

type memoryAllocatableRepo struct {
	enrolments []models.Enrolment
	members    map[uint][]models.GroupMembership
}

func newMemoryAllocatableRepo() *memoryAllocatableRepo {
	return &memoryAllocatableRepo{members: make(map[uint][]models.GroupMembership)}
}

func (m *memoryAllocatableRepo) ListEnrolled(_ context.Context, courseworkID uint) ([]models.Allocatable, error) {
	results := make([]models.Allocatable, 0, len(m.enrolments))
	for _, enrolment := range m.enrolments {
		if enrolment.CourseworkID == courseworkID {
			results = append(results, enrolment.Allocatable())
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memoryAllocatableRepo) Enrol(_ context.Context, enrolment *models.Enrolment) error {
	m.enrolments = append(m.enrolments, *enrolment)
	return nil
}

func (m *memoryAllocatableRepo) Withdraw(_ context.Context, courseworkID uint, allocatable models.Allocatable) error {
	kept := m.enrolments[:0]
	for _, enrolment := range m.enrolments {
		if enrolment.CourseworkID == courseworkID && enrolment.Allocatable() == allocatable {
			continue
		}
		kept = append(kept, enrolment)
	}
	m.enrolments = kept
	return nil
}

func (m *memoryAllocatableRepo) ListGroupMembers(_ context.Context, groupID uint) ([]models.GroupMembership, error) {
	return m.members[groupID], nil
}

func (m *memoryAllocatableRepo) ListGroupsForUser(_ context.Context, userID uint) ([]models.GroupMembership, error) {
	var results []models.GroupMembership
	groupIDs := make([]uint, 0, len(m.members))
	for groupID := range m.members {
		groupIDs = append(groupIDs, groupID)
	}
	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i] < groupIDs[j] })
	for _, groupID := range groupIDs {
		for _, membership := range m.members[groupID] {
			if membership.UserID == userID {
				results = append(results, membership)
			}
		}
	}
	return results, nil
}

type memoryMarkerRepo struct {
	markers []models.Marker
	nextID  uint
}

func newMemoryMarkerRepo() *memoryMarkerRepo {
	return &memoryMarkerRepo{nextID: 1}
}

func (m *memoryMarkerRepo) ListByCoursework(_ context.Context, courseworkID uint, role string) ([]models.Marker, error) {
	results := make([]models.Marker, 0, len(m.markers))
	for _, marker := range m.markers {
		if marker.CourseworkID == courseworkID && marker.Role == role {
			results = append(results, marker)
		}
	}
	return results, nil
}

func (m *memoryMarkerRepo) Create(_ context.Context, marker *models.Marker) error {
	marker.ID = m.nextID
	m.markers = append(m.markers, *marker)
	m.nextID++
	return nil
}

func (m *memoryMarkerRepo) Delete(_ context.Context, id uint) error {
	kept := m.markers[:0]
	for _, marker := range m.markers {
		if marker.ID != id {
			kept = append(kept, marker)
		}
	}
	m.markers = kept
	return nil
}

type deadlineKey struct {
	courseworkID uint
	allocatable  models.Allocatable
}

type memoryDeadlineRepo struct {
	personal   map[deadlineKey]models.PersonalDeadline
	extensions map[deadlineKey]models.DeadlineExtension
	nextID     uint
}

func newMemoryDeadlineRepo() *memoryDeadlineRepo {
	return &memoryDeadlineRepo{
		personal:   make(map[deadlineKey]models.PersonalDeadline),
		extensions: make(map[deadlineKey]models.DeadlineExtension),
		nextID:     1,
	}
}

func (m *memoryDeadlineRepo) GetPersonalDeadline(_ context.Context, courseworkID uint, allocatable models.Allocatable) (models.PersonalDeadline, error) {
	deadline, ok := m.personal[deadlineKey{courseworkID, allocatable}]
	if !ok {
		return models.PersonalDeadline{}, gorm.ErrRecordNotFound
	}
	return deadline, nil
}

func (m *memoryDeadlineRepo) GetExtension(_ context.Context, courseworkID uint, allocatable models.Allocatable) (models.DeadlineExtension, error) {
	extension, ok := m.extensions[deadlineKey{courseworkID, allocatable}]
	if !ok {
		return models.DeadlineExtension{}, gorm.ErrRecordNotFound
	}
	return extension, nil
}

func (m *memoryDeadlineRepo) ListPersonalDeadlines(_ context.Context, courseworkID uint) ([]models.PersonalDeadline, error) {
	results := make([]models.PersonalDeadline, 0, len(m.personal))
	for key, deadline := range m.personal {
		if key.courseworkID == courseworkID {
			results = append(results, deadline)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memoryDeadlineRepo) ListExtensions(_ context.Context, courseworkID uint) ([]models.DeadlineExtension, error) {
	results := make([]models.DeadlineExtension, 0, len(m.extensions))
	for key, extension := range m.extensions {
		if key.courseworkID == courseworkID {
			results = append(results, extension)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memoryDeadlineRepo) SavePersonalDeadline(_ context.Context, deadline *models.PersonalDeadline) error {
	if deadline.ID == 0 {
		deadline.ID = m.nextID
		m.nextID++
	}
	m.personal[deadlineKey{deadline.CourseworkID, models.Allocatable{ID: deadline.AllocatableID, Type: deadline.AllocatableType}}] = *deadline
	return nil
}

func (m *memoryDeadlineRepo) SaveExtension(_ context.Context, extension *models.DeadlineExtension) error {
	if extension.ID == 0 {
		extension.ID = m.nextID
		m.nextID++
	}
	m.extensions[deadlineKey{extension.CourseworkID, models.Allocatable{ID: extension.AllocatableID, Type: extension.AllocatableType}}] = *extension
	return nil
}

type memorySampleRepo struct {
	rules       map[uint]models.SampleRule
	memberships map[uint]models.SampleMembership
	nextID      uint
}

func newMemorySampleRepo() *memorySampleRepo {
	return &memorySampleRepo{
		rules:       make(map[uint]models.SampleRule),
		memberships: make(map[uint]models.SampleMembership),
		nextID:      1,
	}
}

func (m *memorySampleRepo) ListRules(_ context.Context, courseworkID uint, stage string) ([]models.SampleRule, error) {
	results := make([]models.SampleRule, 0, len(m.rules))
	for _, rule := range m.rules {
		if rule.CourseworkID == courseworkID && rule.Stage == stage {
			results = append(results, rule)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memorySampleRepo) CreateRule(_ context.Context, rule *models.SampleRule) error {
	rule.ID = m.nextID
	m.rules[m.nextID] = *rule
	m.nextID++
	return nil
}

func (m *memorySampleRepo) DeleteRule(_ context.Context, id uint) error {
	if _, ok := m.rules[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *memorySampleRepo) ListMemberships(_ context.Context, courseworkID uint, stage string) ([]models.SampleMembership, error) {
	results := make([]models.SampleMembership, 0, len(m.memberships))
	for _, membership := range m.memberships {
		if membership.CourseworkID == courseworkID && membership.Stage == stage {
			results = append(results, membership)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memorySampleRepo) ListMembershipsForAllocatable(_ context.Context, courseworkID uint, allocatable models.Allocatable) ([]models.SampleMembership, error) {
	results := make([]models.SampleMembership, 0, len(m.memberships))
	for _, membership := range m.memberships {
		if membership.CourseworkID == courseworkID && membership.Allocatable() == allocatable {
			results = append(results, membership)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memorySampleRepo) CreateMembership(_ context.Context, membership *models.SampleMembership) error {
	membership.ID = m.nextID
	m.memberships[m.nextID] = *membership
	m.nextID++
	return nil
}

func (m *memorySampleRepo) DeleteMembership(_ context.Context, id uint) error {
	if _, ok := m.memberships[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.memberships, id)
	return nil
}

type memoryPlagiarismRepo struct {
	flags  map[uint]models.PlagiarismFlag
	nextID uint
}

func newMemoryPlagiarismRepo() *memoryPlagiarismRepo {
	return &memoryPlagiarismRepo{flags: make(map[uint]models.PlagiarismFlag), nextID: 1}
}

func (m *memoryPlagiarismRepo) ListBySubmission(_ context.Context, submissionID uint) ([]models.PlagiarismFlag, error) {
	results := make([]models.PlagiarismFlag, 0, len(m.flags))
	for _, flag := range m.flags {
		if flag.SubmissionID == submissionID {
			results = append(results, flag)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *memoryPlagiarismRepo) Create(_ context.Context, flag *models.PlagiarismFlag) error {
	flag.ID = m.nextID
	m.flags[m.nextID] = *flag
	m.nextID++
	return nil
}

func (m *memoryPlagiarismRepo) Update(_ context.Context, flag *models.PlagiarismFlag) error {
	if _, ok := m.flags[flag.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.flags[flag.ID] = *flag
	return nil
}
