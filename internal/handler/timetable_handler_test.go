package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableGeneratorMock struct {
	captured dto.GenerateTimetableRequest
	err      error
}

func (m *timetableGeneratorMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerateTimetableResponse{Message: "timetable generated", FilledSlots: 96, TotalSlots: 96, CoveragePercent: 100}, nil
}

type timetableReaderMock struct {
	query     dto.SectionTimetableQuery
	teacherID string
}

func (m *timetableReaderMock) SectionTimetable(ctx context.Context, q dto.SectionTimetableQuery) (*dto.SectionTimetable, error) {
	m.query = q
	return &dto.SectionTimetable{Section: q.Section}, nil
}

func (m *timetableReaderMock) TeacherSchedule(ctx context.Context, teacherID string) ([]models.TeacherScheduleEntry, error) {
	m.teacherID = teacherID
	return []models.TeacherScheduleEntry{{ID: "slot-1", DayOfWeek: "MONDAY", Hour: "1"}}, nil
}

func (m *timetableReaderMock) TeacherCurrentSchedule(ctx context.Context, teacherID string) (*dto.TeacherCurrentSchedule, error) {
	return &dto.TeacherCurrentSchedule{TeacherID: teacherID}, nil
}

func (m *timetableReaderMock) Coverage(ctx context.Context, q dto.ScopeQuery) (*dto.CoverageStats, error) {
	return nil, appErrors.WithDetails(appErrors.ErrScopeNotFound, "", map[string]interface{}{"department": q.Department})
}

func (m *timetableReaderMock) Now() dto.CurrentSlot {
	return dto.CurrentSlot{DayOfWeek: "MONDAY", Hour: "2", InSession: true}
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestTimetableHandlerGenerateCapturesRequester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gen := &timetableGeneratorMock{}
	handler := NewTimetableHandler(gen, &timetableReaderMock{})

	body := []byte(`{"department":"Computer Science","semester":"3","academic_year":"2024-2025","sections":["A","B"]}`)
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD})

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hod-1", gen.captured.RequestedBy)
	assert.Equal(t, []string{"A", "B"}, gen.captured.Sections)
	env := decodeEnvelope(t, w)
	var resp dto.GenerateTimetableResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 96, resp.FilledSlots)
}

func TestTimetableHandlerGenerateBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableGeneratorMock{}, &timetableReaderMock{})
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader([]byte(`{"department":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerGenerateMapsDomainErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gen := &timetableGeneratorMock{err: appErrors.WithDetails(appErrors.ErrUncoverable, "", map[string]interface{}{"sections": []dto.UncoverableSection{{Section: "Z"}}})}
	handler := NewTimetableHandler(gen, &timetableReaderMock{})
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader([]byte(`{"department":"CS","semester":"3","academic_year":"2024"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNCOVERABLE_SECTION", env.Error.Code)
	assert.NotNil(t, env.Error.Details)
}

func TestTimetableHandlerSectionQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reader := &timetableReaderMock{}
	handler := NewTimetableHandler(&timetableGeneratorMock{}, reader)
	router := gin.New()
	router.GET("/timetables/sections", handler.SectionTimetable)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetables/sections?department=Computer%20Science&semester=3&academic_year=2024-2025&section=A", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Computer Science", reader.query.Department)
	assert.Equal(t, "A", reader.query.Section)
}

func TestTimetableHandlerTeacherSchedule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reader := &timetableReaderMock{}
	handler := NewTimetableHandler(&timetableGeneratorMock{}, reader)
	router := gin.New()
	router.GET("/teachers/:id/schedule", handler.TeacherSchedule)
	router.GET("/teachers/:id/schedule/current", handler.TeacherCurrentSchedule)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/teachers/t-1/schedule", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t-1", reader.teacherID)
	env := decodeEnvelope(t, w)
	assert.Equal(t, float64(1), env.Meta["total"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/teachers/t-1/schedule/current", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTimetableHandlerCoverageNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableGeneratorMock{}, &timetableReaderMock{})
	router := gin.New()
	router.GET("/timetables/coverage", handler.Coverage)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetables/coverage?department=History&semester=1&academic_year=2024", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "SCOPE_NOT_FOUND", env.Error.Code)
}

func TestTimetableHandlerCurrentSlot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableGeneratorMock{}, &timetableReaderMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/timetables/current-slot", nil)

	handler.CurrentSlot(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var slot dto.CurrentSlot
	require.NoError(t, json.Unmarshal(env.Data, &slot))
	assert.Equal(t, "2", slot.Hour)
	assert.True(t, slot.InSession)
}
