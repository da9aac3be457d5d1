package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type scheduleSlotManagerMock struct {
	created     dto.UpsertScheduleSlotRequest
	updatedID   string
	deactivated string
	conflict    bool
}

func (m *scheduleSlotManagerMock) Create(ctx context.Context, req dto.UpsertScheduleSlotRequest) (*models.ScheduleSlot, error) {
	m.created = req
	if m.conflict {
		return nil, appErrors.WithDetails(appErrors.ErrSlotConflict, "", &models.ScheduleConflictError{
			Message:   "taken",
			Conflicts: []models.ScheduleConflict{{ScheduleID: "slot-9", SubjectName: "Databases", Section: req.Section, TeacherID: "t-2"}},
		})
	}
	return &models.ScheduleSlot{ID: "slot-1", Section: req.Section, Active: true}, nil
}

func (m *scheduleSlotManagerMock) Update(ctx context.Context, id string, req dto.UpsertScheduleSlotRequest) (*models.ScheduleSlot, error) {
	m.updatedID = id
	return &models.ScheduleSlot{ID: id, Section: req.Section, Active: true}, nil
}

func (m *scheduleSlotManagerMock) Deactivate(ctx context.Context, id string) error {
	m.deactivated = id
	return nil
}

func newSlotRouter(m *scheduleSlotManagerMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewScheduleSlotHandler(m)
	router := gin.New()
	router.POST("/schedule-slots", handler.Create)
	router.PUT("/schedule-slots/:id", handler.Update)
	router.DELETE("/schedule-slots/:id", handler.Deactivate)
	return router
}

const slotPayload = `{"department":"Computer Science","semester":"3","academic_year":"2024-2025","day_of_week":"MONDAY","hour":"1","section":"A","subject_id":"s1","teacher_id":"t1"}`

func TestScheduleSlotHandlerCreate(t *testing.T) {
	m := &scheduleSlotManagerMock{}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedule-slots", bytes.NewReader([]byte(slotPayload)))
	req.Header.Set("Content-Type", "application/json")
	newSlotRouter(m).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "MONDAY", m.created.DayOfWeek)
	assert.Equal(t, "t1", m.created.TeacherID)
}

func TestScheduleSlotHandlerCreateConflict(t *testing.T) {
	m := &scheduleSlotManagerMock{conflict: true}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedule-slots", bytes.NewReader([]byte(slotPayload)))
	req.Header.Set("Content-Type", "application/json")
	newSlotRouter(m).ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"SLOT_CONFLICT"`)
	assert.Contains(t, w.Body.String(), `"schedule_id":"slot-9"`)
	assert.Contains(t, w.Body.String(), `"subject_name":"Databases"`)
}

func TestScheduleSlotHandlerUpdateAndDeactivate(t *testing.T) {
	m := &scheduleSlotManagerMock{}
	router := newSlotRouter(m)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/schedule-slots/slot-3", bytes.NewReader([]byte(slotPayload)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "slot-3", m.updatedID)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodDelete, "/schedule-slots/slot-3", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "slot-3", m.deactivated)
}

func TestScheduleSlotHandlerRejectsMalformedBody(t *testing.T) {
	m := &scheduleSlotManagerMock{}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedule-slots", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	newSlotRouter(m).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
