package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
}

type timetableReader interface {
	SectionTimetable(ctx context.Context, q dto.SectionTimetableQuery) (*dto.SectionTimetable, error)
	TeacherSchedule(ctx context.Context, teacherID string) ([]models.TeacherScheduleEntry, error)
	TeacherCurrentSchedule(ctx context.Context, teacherID string) (*dto.TeacherCurrentSchedule, error)
	Coverage(ctx context.Context, q dto.ScopeQuery) (*dto.CoverageStats, error)
	Now() dto.CurrentSlot
}

// TimetableHandler exposes generation and timetable read endpoints.
type TimetableHandler struct {
	generator timetableGenerator
	reader    timetableReader
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator timetableGenerator, reader timetableReader) *TimetableHandler {
	return &TimetableHandler{generator: generator, reader: reader}
}

// Generate godoc
// @Summary Regenerate the weekly timetable of a department scope
// @Description Deletes every slot of the scope and rebuilds the day x hour x section grid.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation scope"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	if claims := middleware.CurrentUser(c); claims != nil {
		req.RequestedBy = claims.UserID
	}

	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// SectionTimetable godoc
// @Summary Day x hour matrix for one section
// @Tags Timetable
// @Produce json
// @Param department query string true "Department"
// @Param semester query string true "Semester"
// @Param academic_year query string true "Academic year"
// @Param section query string true "Section"
// @Success 200 {object} response.Envelope
// @Router /timetables/sections [get]
func (h *TimetableHandler) SectionTimetable(c *gin.Context) {
	var q dto.SectionTimetableQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.reader.SectionTimetable(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Coverage godoc
// @Summary Coverage statistics of a persisted scope
// @Tags Timetable
// @Produce json
// @Param department query string true "Department"
// @Param semester query string true "Semester"
// @Param academic_year query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /timetables/coverage [get]
func (h *TimetableHandler) Coverage(c *gin.Context) {
	var q dto.ScopeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.reader.Coverage(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// CurrentSlot godoc
// @Summary Current day and hour of the timetable
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/current-slot [get]
func (h *TimetableHandler) CurrentSlot(c *gin.Context) {
	response.OK(c, h.reader.Now())
}

// TeacherSchedule godoc
// @Summary Active slots of a teacher
// @Tags Timetable
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/schedule [get]
func (h *TimetableHandler) TeacherSchedule(c *gin.Context) {
	entries, err := h.reader.TeacherSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries, map[string]interface{}{"total": len(entries)})
}

// TeacherCurrentSchedule godoc
// @Summary Slots a teacher is scheduled for right now
// @Tags Timetable
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/schedule/current [get]
func (h *TimetableHandler) TeacherCurrentSchedule(c *gin.Context) {
	result, err := h.reader.TeacherCurrentSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
