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

	"github.com/noah-isme/renluyen-go-api/internal/config"
	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/handler"
	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
	"github.com/noah-isme/renluyen-go-api/internal/router"
	"github.com/noah-isme/renluyen-go-api/internal/service"
)

// testAuth reads the identity from request headers so tests can act as
// different users without minting tokens.
func testAuth(c *fiber.Ctx) error {
	if id := c.Get("X-Test-User"); id != "" {
		parsed, err := strconv.ParseUint(id, 10, 64)
		if err == nil {
			c.Locals("user_id", uint(parsed))
		}
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func setupScoringApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A fresh in-memory database per connection; keep the pool at one.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.ScoringRecord{},
		&models.SectionScore{},
		&models.Notification{},
		&models.ActivityLog{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	scoringRepo := repository.NewScoringRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, nil, "", nil, validate, logger)
	scoringService := service.NewScoringService(scoringRepo, studentRepo, validate, notificationService, activityService, logger)
	gradingService := service.NewGradingService(scoringRepo, validate, notificationService, activityService, logger)
	exportService := service.NewExportService(scoringRepo, studentRepo, logger)
	studentService := service.NewStudentService(studentRepo, validate, activityService, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		ScoringHandler:      handler.NewScoringHandler(scoringService, exportService, logger),
		GradingHandler:      handler.NewGradingHandler(gradingService, exportService, logger),
		StudentHandler:      handler.NewStudentHandler(studentService, exportService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, 0),
		JWTMiddleware:       testAuth,
	})

	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, userID uint, role string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(userID), 10))
	req.Header.Set("X-Test-Role", role)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeScoring(t *testing.T, resp *http.Response) dto.ScoringResponse {
	t.Helper()

	var payload struct {
		Success bool                `json:"success"`
		Data    dto.ScoringResponse `json:"data"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload.Data
}

func TestScoringLifecycleOverHTTP(t *testing.T) {
	app, db := setupScoringApp(t)

	student := models.Student{StudentCode: "SV007", FullName: "Nguyễn Văn An", Email: "an@example.edu.vn", ClassID: "CNTT01", Status: models.StudentStatusActive}
	require.NoError(t, db.Create(&student).Error)

	const period = "?semester=1&academic_year=2025-2026"

	// First read creates a zeroed draft.
	resp := doJSON(t, app, http.MethodGet, "/api/v1/student/scores"+period, nil, student.ID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	record := decodeScoring(t, resp)
	require.Equal(t, models.ScoringStatusDraft, record.Status)
	require.Len(t, record.Sections, 5)
	require.Equal(t, 0, record.TotalSelfScore)

	// Fill every section through the bulk draft endpoint.
	resp = doJSON(t, app, http.MethodPut, "/api/v1/student/scores/draft", dto.DraftSaveRequest{
		Semester:     "1",
		AcademicYear: "2025-2026",
		Sections: []dto.SectionInput{
			{SectionNumber: 1, SelfScore: 18, Evidence: "Tham gia đầy đủ"},
			{SectionNumber: 2, SelfScore: 23},
			{SectionNumber: 3, SelfScore: 17},
			{SectionNumber: 4, SelfScore: 22},
			{SectionNumber: 5, SelfScore: 8},
		},
	}, student.ID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	record = decodeScoring(t, resp)
	require.Equal(t, 88, record.TotalSelfScore)

	// A score above the section maximum is rejected and nothing changes.
	over := 25
	resp = doJSON(t, app, http.MethodPut, "/api/v1/student/scores/sections/1", dto.SectionUpdateRequest{
		Semester:     "1",
		AcademicYear: "2025-2026",
		SelfScore:    &over,
	}, student.ID, "student")
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	// Submit locks the draft.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/student/scores/submit", dto.SubmitRequest{Semester: "1", AcademicYear: "2025-2026"}, student.ID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	record = decodeScoring(t, resp)
	require.Equal(t, models.ScoringStatusSubmitted, record.Status)
	require.NotNil(t, record.SubmittedAt)

	// Editing after submission is a conflict.
	ten := 10
	resp = doJSON(t, app, http.MethodPut, "/api/v1/student/scores/sections/1", dto.SectionUpdateRequest{
		Semester:     "1",
		AcademicYear: "2025-2026",
		SelfScore:    &ten,
	}, student.ID, "student")
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// Students cannot reach the grading queue.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/teacher/grading", nil, student.ID, "student")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The teacher sees the submitted record.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/teacher/grading", nil, 42, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var queue struct {
		Data []dto.ScoringResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&queue))
	resp.Body.Close()
	require.Len(t, queue.Data, 1)
	recordID := queue.Data[0].ID

	// A teacher score outside 0..100 is rejected.
	bad := 105
	resp = doJSON(t, app, http.MethodPost, "/api/v1/teacher/grading/"+strconv.FormatUint(uint64(recordID), 10)+"/grade", dto.GradeRequest{TeacherScore: &bad}, 42, "teacher")
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	// Grade with class input: round((88+85+87)/3) = 87.
	teacherScore := 87
	classScore := 85
	resp = doJSON(t, app, http.MethodPost, "/api/v1/teacher/grading/"+strconv.FormatUint(uint64(recordID), 10)+"/grade", dto.GradeRequest{
		TeacherScore: &teacherScore,
		ClassScore:   &classScore,
		Feedback:     "Tốt",
	}, 42, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	record = decodeScoring(t, resp)
	require.Equal(t, models.ScoringStatusGraded, record.Status)
	require.Equal(t, 87, *record.FinalScore)
	require.Equal(t, models.GradeGood, record.GradeBand)
	require.Equal(t, uint(42), *record.GradedBy)

	// Re-grading with identical inputs is a no-op.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/teacher/grading/"+strconv.FormatUint(uint64(recordID), 10)+"/grade", dto.GradeRequest{
		TeacherScore: &teacherScore,
		ClassScore:   &classScore,
		Feedback:     "Tốt",
	}, 42, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The student sees the graded result in history.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/student/scores/history", nil, student.ID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var history struct {
		Data []dto.ScoringResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	resp.Body.Close()
	require.Len(t, history.Data, 1)
	require.Equal(t, models.ScoringStatusGraded, history.Data[0].Status)

	// The student can download their own record as CSV.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/student/scores/export"+period, nil, student.ID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv; charset=utf-8", resp.Header.Get(fiber.HeaderContentType))
	resp.Body.Close()

	// CSV export carries the UTF-8 BOM and the student identity.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/teacher/grading/"+strconv.FormatUint(uint64(recordID), 10)+"/export", nil, 42, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	payload, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(payload, []byte{0xEF, 0xBB, 0xBF}))
	require.Contains(t, string(payload), `"SV007"`)

	// The submission notification was persisted for the teacher role.
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("target_role = ?", "teacher").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestGradingDraftRecordOverHTTP(t *testing.T) {
	app, db := setupScoringApp(t)

	student := models.Student{StudentCode: "SV008", FullName: "Trần Thị Bình", Email: "binh@example.edu.vn", ClassID: "CNTT01", Status: models.StudentStatusActive}
	require.NoError(t, db.Create(&student).Error)

	draft := models.NewScoringRecord(student.ID, "1", "2025-2026")
	require.NoError(t, db.Create(&draft).Error)

	score := 80
	resp := doJSON(t, app, http.MethodPost, "/api/v1/teacher/grading/"+strconv.FormatUint(uint64(draft.ID), 10)+"/grade", dto.GradeRequest{TeacherScore: &score}, 42, "teacher")
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
