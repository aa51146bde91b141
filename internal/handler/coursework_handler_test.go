package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/markwise-go-api/internal/config"
	"github.com/noah-isme/markwise-go-api/internal/dto"
	"github.com/noah-isme/markwise-go-api/internal/handler"
	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/router"
	"github.com/noah-isme/markwise-go-api/internal/service"
	"github.com/noah-isme/markwise-go-api/internal/store"
)

func setupCourseworkApp(t *testing.T, role string) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Coursework{}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	courseworkRepo := repository.NewCourseworkRepository(db)
	cache := store.NewCourseworkCache(nil, 0, logger)
	permissions := service.NewRolePermissionChecker()
	courseworkService := service.NewCourseworkService(courseworkRepo, service.NewStrategyRegistry(), cache, permissions, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		CourseworkHandler: handler.NewCourseworkHandler(courseworkService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func TestCourseworkHandlerCreateGetAndList(t *testing.T) {
	app := setupCourseworkApp(t, "admin")

	resp := postJSON(t, app, "/api/v1/marking/courseworks", dto.CourseworkCreateRequest{
		Title:            "Operating systems exercise 3",
		NumberOfMarkers:  2,
		AssessorStrategy: models.StrategyEqualSplit,
		MaxGrade:         100,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Success bool                   `json:"success"`
		Data    dto.CourseworkResponse `json:"data"`
		Message string                 `json:"message"`
	}
	decodeResponse(t, resp, &created)
	require.True(t, created.Success)
	require.Equal(t, "coursework created", created.Message)
	require.NotZero(t, created.Data.ID)
	require.Equal(t, models.AgreementNone, created.Data.AgreementStrategy)
	require.Equal(t, models.RoundingMid, created.Data.RoundingRule)

	getReq := httptest.NewRequest("GET", "/api/v1/marking/courseworks/"+itoa(created.Data.ID), nil)
	getResp, err := app.Test(getReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, getResp.StatusCode)

	var fetched struct {
		Success bool                   `json:"success"`
		Data    dto.CourseworkResponse `json:"data"`
	}
	decodeResponse(t, getResp, &fetched)
	require.Equal(t, "Operating systems exercise 3", fetched.Data.Title)

	listReq := httptest.NewRequest("GET", "/api/v1/marking/courseworks", nil)
	listResp, err := app.Test(listReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, listResp.StatusCode)

	var listed struct {
		Success bool                     `json:"success"`
		Data    []dto.CourseworkResponse `json:"data"`
	}
	decodeResponse(t, listResp, &listed)
	require.NotEmpty(t, listed.Data)
}

func TestCourseworkHandlerCreateRejectsBadSettings(t *testing.T) {
	app := setupCourseworkApp(t, "admin")

	resp := postJSON(t, app, "/api/v1/marking/courseworks", dto.CourseworkCreateRequest{
		Title:            "Single marker with sampling",
		NumberOfMarkers:  1,
		SamplingEnabled:  true,
		AssessorStrategy: models.StrategyEqualSplit,
		MaxGrade:         100,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.False(t, body.Success)
}

func TestCourseworkHandlerCreateForbiddenForStudents(t *testing.T) {
	app := setupCourseworkApp(t, "student")

	resp := postJSON(t, app, "/api/v1/marking/courseworks", dto.CourseworkCreateRequest{
		Title:            "Forbidden coursework",
		NumberOfMarkers:  1,
		AssessorStrategy: models.StrategyManual,
		MaxGrade:         100,
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestCourseworkHandlerGetUnknown(t *testing.T) {
	app := setupCourseworkApp(t, "admin")

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/marking/courseworks/999999", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/marking/courseworks/not-a-number", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCourseworkHandlerUpdateSettings(t *testing.T) {
	app := setupCourseworkApp(t, "admin")

	resp := postJSON(t, app, "/api/v1/marking/courseworks", dto.CourseworkCreateRequest{
		Title:            "Updatable coursework",
		NumberOfMarkers:  2,
		AssessorStrategy: models.StrategyEqualSplit,
		MaxGrade:         100,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Data dto.CourseworkResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)

	agreement := models.AgreementPercentageDistance
	distance := 15
	body, err := json.Marshal(dto.CourseworkUpdateRequest{
		AgreementStrategy:  &agreement,
		PercentageDistance: &distance,
	})
	require.NoError(t, err)
	req := httptest.NewRequest("PATCH", "/api/v1/marking/courseworks/"+itoa(created.Data.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	patchResp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, patchResp.StatusCode)

	var updated struct {
		Data dto.CourseworkResponse `json:"data"`
	}
	decodeResponse(t, patchResp, &updated)
	require.Equal(t, models.AgreementPercentageDistance, updated.Data.AgreementStrategy)
	require.Equal(t, 15, updated.Data.PercentageDistance)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
