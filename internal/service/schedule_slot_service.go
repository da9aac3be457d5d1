package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type scheduleSlotStore interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error)
	FindActiveConflicts(ctx context.Context, slot models.ScheduleSlot, excludeID string) ([]models.ScheduleSlotDetail, error)
	Create(ctx context.Context, slot *models.ScheduleSlot) error
	Update(ctx context.Context, slot *models.ScheduleSlot) error
	Deactivate(ctx context.Context, id string) error
}

type slotSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type slotTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// ScheduleSlotService handles manual edits of individual timetable slots.
type ScheduleSlotService struct {
	slots     scheduleSlotStore
	subjects  slotSubjectReader
	teachers  slotTeacherReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
}

// NewScheduleSlotService constructs the manual slot service.
func NewScheduleSlotService(
	slots scheduleSlotStore,
	subjects slotSubjectReader,
	teachers slotTeacherReader,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *ScheduleSlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleSlotService{
		slots:     slots,
		subjects:  subjects,
		teachers:  teachers,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// Create inserts a manual slot after checking its coordinate is free.
func (s *ScheduleSlotService) Create(ctx context.Context, req dto.UpsertScheduleSlotRequest) (*models.ScheduleSlot, error) {
	slot, err := s.buildSlot(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, *slot, ""); err != nil {
		return nil, err
	}
	if req.RequestedBy != "" {
		createdBy := req.RequestedBy
		slot.CreatedBy = &createdBy
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		if errors.Is(err, models.ErrSlotCoordinateTaken) {
			return nil, s.coordinateTaken(ctx, *slot, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule slot")
	}
	s.invalidateTeachers(ctx, slot.TeacherID)
	s.logger.Info("schedule slot created", zap.String("id", slot.ID), zap.String("section", slot.Section), zap.String("day", slot.DayOfWeek), zap.String("hour", slot.Hour))
	return slot, nil
}

// Update moves or reassigns an existing slot; its own row never counts as a conflict.
func (s *ScheduleSlotService) Update(ctx context.Context, id string, req dto.UpsertScheduleSlotRequest) (*models.ScheduleSlot, error) {
	existing, err := s.findSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	slot, err := s.buildSlot(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, *slot, existing.ID); err != nil {
		return nil, err
	}

	slot.ID = existing.ID
	slot.Active = existing.Active
	slot.CreatedBy = existing.CreatedBy
	slot.CreatedAt = existing.CreatedAt
	if err := s.slots.Update(ctx, slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
		}
		if errors.Is(err, models.ErrSlotCoordinateTaken) {
			return nil, s.coordinateTaken(ctx, *slot, existing.ID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule slot")
	}
	s.invalidateTeachers(ctx, existing.TeacherID, slot.TeacherID)
	return slot, nil
}

// Deactivate frees a slot's coordinate without deleting the row.
func (s *ScheduleSlotService) Deactivate(ctx context.Context, id string) error {
	existing, err := s.findSlot(ctx, id)
	if err != nil {
		return err
	}
	if err := s.slots.Deactivate(ctx, existing.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate schedule slot")
	}
	s.invalidateTeachers(ctx, existing.TeacherID)
	return nil
}

// ensureNoConflict rejects a slot whose (scope, day, hour, section) is already
// held by another active slot. A teacher booked in a different section at the
// same hour is not checked here.
func (s *ScheduleSlotService) ensureNoConflict(ctx context.Context, slot models.ScheduleSlot, excludeID string) error {
	existing, err := s.slots.FindActiveConflicts(ctx, slot, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}
	if len(existing) == 0 {
		return nil
	}

	conflicts := make([]models.ScheduleConflict, 0, len(existing))
	for _, e := range existing {
		c := models.ScheduleConflict{
			ScheduleID:  e.ID,
			SubjectID:   e.SubjectID,
			SubjectName: e.SubjectName,
			Section:     e.Section,
			TeacherID:   e.TeacherID,
			DayOfWeek:   e.DayOfWeek,
			Hour:        e.Hour,
		}
		if e.TeacherName != nil {
			c.TeacherName = *e.TeacherName
		}
		conflicts = append(conflicts, c)
	}
	message := fmt.Sprintf("section %s already has a class on %s hour %s", slot.Section, slot.DayOfWeek, slot.Hour)
	return appErrors.WithDetails(appErrors.ErrSlotConflict, message, &models.ScheduleConflictError{Message: message, Conflicts: conflicts})
}

// coordinateTaken handles a write that lost the race to a concurrent one after
// ensureNoConflict passed; the unique index is the final arbiter.
func (s *ScheduleSlotService) coordinateTaken(ctx context.Context, slot models.ScheduleSlot, excludeID string) error {
	if err := s.ensureNoConflict(ctx, slot, excludeID); err != nil {
		return err
	}
	message := fmt.Sprintf("section %s already has a class on %s hour %s", slot.Section, slot.DayOfWeek, slot.Hour)
	return appErrors.WithDetails(appErrors.ErrSlotConflict, message, &models.ScheduleConflictError{Message: message, Conflicts: []models.ScheduleConflict{}})
}

func (s *ScheduleSlotService) buildSlot(ctx context.Context, req dto.UpsertScheduleSlotRequest) (*models.ScheduleSlot, error) {
	scope := NormalizeScope(req.Department, req.Semester, req.AcademicYear)
	req.Department, req.Semester, req.AcademicYear = scope.Department, scope.Semester, scope.AcademicYear
	req.DayOfWeek = strings.ToUpper(strings.TrimSpace(req.DayOfWeek))
	req.Hour = strings.TrimSpace(req.Hour)
	req.Section = normalizeScopeValue(req.Section)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule slot payload")
	}
	if indexOf(s.cfg.Days, req.DayOfWeek) < 0 {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidSchedule, fmt.Sprintf("day_of_week must be one of %s", strings.Join(s.cfg.Days, ", ")), map[string]interface{}{"day_of_week": req.DayOfWeek})
	}
	if indexOf(s.cfg.Hours, req.Hour) < 0 {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidSchedule, fmt.Sprintf("hour must be one of %s", strings.Join(s.cfg.Hours, ", ")), map[string]interface{}{"hour": req.Hour})
	}

	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	room := strings.TrimSpace(req.Room)
	if room == "" {
		room = s.cfg.DefaultRoom
	}
	return &models.ScheduleSlot{
		Department:   scope.Department,
		Semester:     scope.Semester,
		AcademicYear: scope.AcademicYear,
		DayOfWeek:    req.DayOfWeek,
		Hour:         req.Hour,
		Section:      req.Section,
		SubjectID:    req.SubjectID,
		TeacherID:    req.TeacherID,
		Room:         room,
		Active:       true,
	}, nil
}

func (s *ScheduleSlotService) findSlot(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule slot")
	}
	return slot, nil
}

func (s *ScheduleSlotService) invalidateTeachers(ctx context.Context, teacherIDs ...string) {
	keys := make([]string, 0, len(teacherIDs))
	for _, id := range teacherIDs {
		if id != "" {
			keys = append(keys, teacherScheduleCacheKey(id))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("failed to invalidate teacher schedule cache", zap.Strings("keys", keys), zap.Error(err))
	}
}
