package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/markwise-go-api/internal/models"
)

type stubUploader struct {
	uploads int
}

func (s *stubUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	s.uploads++
	return "https://files.example.com/" + name, nil
}

type submissionFixture struct {
	submissions  *memorySubmissionRepo
	allocatables *memoryAllocatableRepo
	allocations  *memoryAllocationRepo
	markers      *memoryMarkerRepo
	deadlines    *memoryDeadlineRepo
	feedbacks    *memoryFeedbackRepo
	uploader     *stubUploader
	svc          SubmissionService
}

func newSubmissionFixture(permissions PermissionChecker, now time.Time) *submissionFixture {
	fixture := &submissionFixture{
		submissions:  newMemorySubmissionRepo(),
		allocatables: newMemoryAllocatableRepo(),
		allocations:  newMemoryAllocationRepo(),
		markers:      newMemoryMarkerRepo(),
		deadlines:    newMemoryDeadlineRepo(),
		feedbacks:    newMemoryFeedbackRepo(),
		uploader:     &stubUploader{},
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	deadlines := NewDeadlineService(fixture.deadlines, testCache(), permissions, &recordingNotifier{}, validate, testLogger())
	deadlines.(*deadlineService).now = func() time.Time { return now }
	allocations := NewAllocationService(
		fixture.allocations,
		fixture.allocatables,
		fixture.markers,
		fixture.feedbacks,
		fixture.submissions,
		NewStrategyRegistry(),
		testCache(),
		permissions,
		testLogger(),
	)
	states := NewStateService(fixture.feedbacks, newMemorySampleRepo(), testLogger())

	svc := NewSubmissionService(
		fixture.submissions,
		fixture.allocatables,
		deadlines,
		allocations,
		states,
		fixture.uploader,
		testCache(),
		permissions,
		testLogger(),
	)
	svc.(*submissionService).now = func() time.Time { return now }
	fixture.svc = svc
	return fixture
}

func newUploadFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(int64(len(content))+1024))
	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func TestUploadCreatesSubmissionOnFirstFile(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(1000, 0))
	coursework := models.Coursework{ID: 1, NumberOfMarkers: 1}

	file := newUploadFile(t, "essay.txt", []byte("comparison of parser generators"))
	submission, err := fixture.svc.Upload(context.Background(), coursework, file, Actor{ID: 10, Role: RoleStudent})
	require.NoError(t, err)
	require.Equal(t, models.UserAllocatable(10), submission.Allocatable())
	require.Equal(t, 1, submission.FileCount)
	require.Equal(t, "https://files.example.com/essay.txt", submission.FileURL)
	require.Equal(t, int64(1000), submission.TimeSubmitted)
	require.Equal(t, 1, fixture.uploader.uploads)

	// a second file lands on the same submission
	again, err := fixture.svc.Upload(context.Background(), coursework, newUploadFile(t, "appendix.txt", []byte("raw measurements")), Actor{ID: 10, Role: RoleStudent})
	require.NoError(t, err)
	require.Equal(t, submission.ID, again.ID)
	require.Equal(t, 2, again.FileCount)
}

func TestUploadRejectsFinalisedSubmission(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(1000, 0))
	coursework := models.Coursework{ID: 1}
	require.NoError(t, fixture.submissions.Create(context.Background(), &models.Submission{
		CourseworkID:    1,
		AllocatableID:   10,
		AllocatableType: models.AllocatableUser,
		AuthorID:        10,
		FileCount:       1,
		Finalised:       true,
	}))

	_, err := fixture.svc.Upload(context.Background(), coursework, newUploadFile(t, "late.txt", []byte("too late")), Actor{ID: 10, Role: RoleStudent})
	require.ErrorIs(t, err, ErrSubmissionFinalised)
}

func TestUploadRejectsUnsupportedFileType(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(1000, 0))
	coursework := models.Coursework{ID: 1}

	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	_, err := fixture.svc.Upload(context.Background(), coursework, newUploadFile(t, "diagram.png", pngHeader), Actor{ID: 10, Role: RoleStudent})
	require.Error(t, err)
	require.Zero(t, fixture.uploader.uploads)
}

func TestUploadResolvesGroupTarget(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(1000, 0))
	coursework := models.Coursework{ID: 1, UseGroups: true}
	fixture.allocatables.members[7] = []models.GroupMembership{
		{GroupID: 7, UserID: 10, Role: models.GroupRoleStudent},
	}
	require.NoError(t, fixture.allocatables.Enrol(context.Background(), &models.Enrolment{
		CourseworkID:    1,
		AllocatableID:   7,
		AllocatableType: models.AllocatableGroup,
	}))

	submission, err := fixture.svc.Upload(context.Background(), coursework, newUploadFile(t, "group.txt", []byte("group report")), Actor{ID: 10, Role: RoleStudent})
	require.NoError(t, err)
	require.Equal(t, models.GroupAllocatable(7), submission.Allocatable())
	require.Equal(t, uint(10), submission.AuthorID)
}

func TestUploadGroupCourseworkWithoutGroup(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(1000, 0))
	coursework := models.Coursework{ID: 1, UseGroups: true}

	_, err := fixture.svc.Upload(context.Background(), coursework, newUploadFile(t, "orphan.txt", []byte("solo work")), Actor{ID: 10, Role: RoleStudent})
	require.Error(t, err)
}

func TestFinaliseLocksAndAllocates(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(2000, 0))
	coursework := models.Coursework{ID: 1, NumberOfMarkers: 1, AssessorStrategy: models.StrategyEqualSplit}
	require.NoError(t, fixture.markers.Create(context.Background(), &models.Marker{
		CourseworkID: 1,
		UserID:       100,
		Role:         models.MarkerRoleAssessor,
	}))

	submission := models.Submission{
		CourseworkID:    1,
		AllocatableID:   10,
		AllocatableType: models.AllocatableUser,
		AuthorID:        10,
		FileCount:       1,
	}
	require.NoError(t, fixture.submissions.Create(context.Background(), &submission))

	finalised, err := fixture.svc.Finalise(context.Background(), coursework, submission.ID, Actor{ID: 10, Role: RoleStudent})
	require.NoError(t, err)
	require.True(t, finalised.Finalised)
	require.Equal(t, int64(2000), finalised.TimeSubmitted)

	allocation, err := fixture.allocations.GetByTarget(context.Background(), 1, models.UserAllocatable(10), "assessor_1")
	require.NoError(t, err)
	require.Equal(t, uint(100), allocation.AssessorID)
}

func TestFinaliseRequiresFiles(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(2000, 0))
	coursework := models.Coursework{ID: 1}

	submission := models.Submission{
		CourseworkID:    1,
		AllocatableID:   10,
		AllocatableType: models.AllocatableUser,
		AuthorID:        10,
	}
	require.NoError(t, fixture.submissions.Create(context.Background(), &submission))

	_, err := fixture.svc.Finalise(context.Background(), coursework, submission.ID, Actor{ID: 10, Role: RoleStudent})
	require.ErrorIs(t, err, ErrNoFilesToFinalise)
}

func TestFinaliseTwiceFails(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(2000, 0))
	coursework := models.Coursework{ID: 1, AssessorStrategy: models.StrategyManual}

	submission := models.Submission{
		CourseworkID:    1,
		AllocatableID:   10,
		AllocatableType: models.AllocatableUser,
		AuthorID:        10,
		FileCount:       1,
	}
	require.NoError(t, fixture.submissions.Create(context.Background(), &submission))

	_, err := fixture.svc.Finalise(context.Background(), coursework, submission.ID, Actor{ID: 10, Role: RoleStudent})
	require.NoError(t, err)

	_, err = fixture.svc.Finalise(context.Background(), coursework, submission.ID, Actor{ID: 10, Role: RoleStudent})
	require.ErrorIs(t, err, ErrSubmissionFinalised)
}

func TestFinaliseOnBehalfNeedsPermission(t *testing.T) {
	fixture := newSubmissionFixture(denyAllPermissions{}, time.Unix(2000, 0))
	coursework := models.Coursework{ID: 1}

	submission := models.Submission{
		CourseworkID:    1,
		AllocatableID:   10,
		AllocatableType: models.AllocatableUser,
		AuthorID:        10,
		FileCount:       1,
	}
	require.NoError(t, fixture.submissions.Create(context.Background(), &submission))

	_, err := fixture.svc.Finalise(context.Background(), coursework, submission.ID, Actor{ID: 99, Role: RoleStudent})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestFinaliseByGroupMember(t *testing.T) {
	fixture := newSubmissionFixture(denyAllPermissions{}, time.Unix(2000, 0))
	coursework := models.Coursework{ID: 1, UseGroups: true, AssessorStrategy: models.StrategyManual}
	fixture.allocatables.members[7] = []models.GroupMembership{
		{GroupID: 7, UserID: 10, Role: models.GroupRoleStudent},
		{GroupID: 7, UserID: 11, Role: models.GroupRoleStudent},
	}

	submission := models.Submission{
		CourseworkID:    1,
		AllocatableID:   7,
		AllocatableType: models.AllocatableGroup,
		AuthorID:        10,
		FileCount:       1,
	}
	require.NoError(t, fixture.submissions.Create(context.Background(), &submission))

	// a fellow group member may finalise without any special permission
	finalised, err := fixture.svc.Finalise(context.Background(), coursework, submission.ID, Actor{ID: 11, Role: RoleStudent})
	require.NoError(t, err)
	require.True(t, finalised.Finalised)
}

func TestAutoFinaliseSweep(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(10000, 0))
	coursework := models.Coursework{ID: 1, Deadline: 5000, AssessorStrategy: models.StrategyManual}

	withFiles := models.Submission{
		CourseworkID:    1,
		AllocatableID:   10,
		AllocatableType: models.AllocatableUser,
		AuthorID:        10,
		FileCount:       1,
		TimeSubmitted:   4000,
	}
	empty := models.Submission{
		CourseworkID:    1,
		AllocatableID:   11,
		AllocatableType: models.AllocatableUser,
		AuthorID:        11,
	}
	extended := models.Submission{
		CourseworkID:    1,
		AllocatableID:   12,
		AllocatableType: models.AllocatableUser,
		AuthorID:        12,
		FileCount:       1,
	}
	for _, submission := range []*models.Submission{&withFiles, &empty, &extended} {
		require.NoError(t, fixture.submissions.Create(context.Background(), submission))
	}

	coursework.ExtensionsEnabled = true
	require.NoError(t, fixture.deadlines.SaveExtension(context.Background(), &models.DeadlineExtension{
		CourseworkID:     1,
		AllocatableID:    12,
		AllocatableType:  models.AllocatableUser,
		ExtendedDeadline: 20000,
	}))

	count, err := fixture.svc.AutoFinalise(context.Background(), coursework)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	swept, err := fixture.submissions.GetByID(context.Background(), withFiles.ID)
	require.NoError(t, err)
	require.True(t, swept.Finalised)

	untouched, err := fixture.submissions.GetByID(context.Background(), extended.ID)
	require.NoError(t, err)
	require.False(t, untouched.Finalised, "an unexpired extension defers the sweep")
}

func TestGetDerivesLifecycleState(t *testing.T) {
	fixture := newSubmissionFixture(allowAllPermissions{}, time.Unix(2000, 0))
	coursework := models.Coursework{ID: 1, NumberOfMarkers: 1}

	submission := models.Submission{
		CourseworkID:    1,
		AllocatableID:   10,
		AllocatableType: models.AllocatableUser,
		AuthorID:        10,
		FileCount:       1,
	}
	require.NoError(t, fixture.submissions.Create(context.Background(), &submission))

	loaded, state, err := fixture.svc.Get(context.Background(), coursework, submission.ID, Actor{ID: 10, Role: RoleStudent})
	require.NoError(t, err)
	require.Equal(t, submission.ID, loaded.ID)
	require.Equal(t, models.StateSubmitted, state)
}

func TestListForCourseworkRequiresPermission(t *testing.T) {
	fixture := newSubmissionFixture(denyAllPermissions{}, time.Unix(2000, 0))

	_, err := fixture.svc.ListForCoursework(context.Background(), models.Coursework{ID: 1}, Actor{ID: 10, Role: RoleStudent})
	require.ErrorIs(t, err, ErrPermissionDenied)
}
