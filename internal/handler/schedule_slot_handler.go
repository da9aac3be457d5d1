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

type scheduleSlotManager interface {
	Create(ctx context.Context, req dto.UpsertScheduleSlotRequest) (*models.ScheduleSlot, error)
	Update(ctx context.Context, id string, req dto.UpsertScheduleSlotRequest) (*models.ScheduleSlot, error)
	Deactivate(ctx context.Context, id string) error
}

// ScheduleSlotHandler exposes manual slot edits.
type ScheduleSlotHandler struct {
	service scheduleSlotManager
}

// NewScheduleSlotHandler constructs the handler.
func NewScheduleSlotHandler(svc scheduleSlotManager) *ScheduleSlotHandler {
	return &ScheduleSlotHandler{service: svc}
}

// Create godoc
// @Summary Create a slot by hand
// @Tags Schedule Slots
// @Accept json
// @Produce json
// @Param payload body dto.UpsertScheduleSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule-slots [post]
func (h *ScheduleSlotHandler) Create(c *gin.Context) {
	req, ok := bindSlotRequest(c)
	if !ok {
		return
	}
	slot, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Update godoc
// @Summary Move or reassign a slot
// @Tags Schedule Slots
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body dto.UpsertScheduleSlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule-slots/{id} [put]
func (h *ScheduleSlotHandler) Update(c *gin.Context) {
	req, ok := bindSlotRequest(c)
	if !ok {
		return
	}
	slot, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, slot)
}

// Deactivate godoc
// @Summary Deactivate a slot
// @Tags Schedule Slots
// @Param id path string true "Slot ID"
// @Success 204
// @Router /schedule-slots/{id} [delete]
func (h *ScheduleSlotHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func bindSlotRequest(c *gin.Context) (dto.UpsertScheduleSlotRequest, bool) {
	var req dto.UpsertScheduleSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return req, false
	}
	if claims := middleware.CurrentUser(c); claims != nil {
		req.RequestedBy = claims.UserID
	}
	return req, true
}
