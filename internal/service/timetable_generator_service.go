package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/lock"
)

type scheduleSlotWriter interface {
	DeleteByScope(ctx context.Context, scope models.Scope) (int64, error)
	BulkCreate(ctx context.Context, slots []models.ScheduleSlot) error
	Create(ctx context.Context, slot *models.ScheduleSlot) error
}

// TimetableConfig carries the grid shape shared by the timetable services.
type TimetableConfig struct {
	Days               []string
	Hours              []string
	LowSupplyThreshold int
	DefaultRoom        string
}

func (c TimetableConfig) withDefaults() TimetableConfig {
	if len(c.Days) == 0 {
		c.Days = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY"}
	}
	if len(c.Hours) == 0 {
		c.Hours = []string{"1", "2", "3", "4"}
	}
	if c.LowSupplyThreshold <= 0 {
		c.LowSupplyThreshold = 3
	}
	if c.DefaultRoom == "" {
		c.DefaultRoom = models.DefaultRoom
	}
	return c
}

// TimetableGeneratorService wipes and rebuilds the weekly timetable of a scope.
type TimetableGeneratorService struct {
	catalog   subjectCatalogReader
	slots     scheduleSlotWriter
	locker    lock.Locker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
}

// NewTimetableGeneratorService wires generator dependencies.
func NewTimetableGeneratorService(
	catalog subjectCatalogReader,
	slots scheduleSlotWriter,
	locker lock.Locker,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &TimetableGeneratorService{
		catalog:   catalog,
		slots:     slots,
		locker:    locker,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// Generate replaces every slot of the requested scope with a freshly assigned grid.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (resp *dto.GenerateTimetableResponse, err error) {
	scope := NormalizeScope(req.Department, req.Semester, req.AcademicYear)
	req.Department, req.Semester, req.AcademicYear = scope.Department, scope.Semester, scope.AcademicYear
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	if len(req.Sections) > 0 {
		req.Sections = cleanSections(req.Sections)
		if len(req.Sections) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "sections must contain at least one non-blank name")
		}
	}

	started := time.Now()
	defer func() {
		outcome := GenerationOutcomeFailed
		var coverage float64
		var stats dto.TierStats
		if resp != nil {
			outcome = GenerationOutcomeSuccess
			if len(resp.Skipped) > 0 {
				outcome = GenerationOutcomePartial
			}
			coverage, stats = resp.CoveragePercent, resp.TierStats
		}
		s.metrics.ObserveGeneration(scope.Department, outcome, time.Since(started), coverage, stats)
	}()

	unlock, err := s.locker.Lock(ctx, scope.Key())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, lock.ErrNotAcquired) {
			return nil, appErrors.Wrap(err, appErrors.ErrScopeLocked.Code, appErrors.ErrScopeLocked.Status, appErrors.ErrScopeLocked.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to acquire scope lock")
	}
	defer unlock()

	units, err := loadTeachableUnits(ctx, s.catalog, scope)
	if err != nil {
		return nil, err
	}
	grid := newSlotGrid(s.cfg.Days, s.cfg.Hours, units, req.Sections)
	if err := grid.ensureCoverable(); err != nil {
		return nil, err
	}
	// Never wipe a scope we cannot refill.
	if grid.size() == 0 {
		return nil, appErrors.Clone(appErrors.ErrUncoverable, "timetable grid has no cells to fill")
	}
	result := assignSlots(grid)

	deleted, err := s.slots.DeleteByScope(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear existing timetable")
	}

	batch := s.buildSlots(scope, result.placements, req.RequestedBy)
	inserted, skipped := s.persist(ctx, scope, batch)
	skipped = append(result.skipped, skipped...)

	s.invalidateTeacherCache(ctx, batch)

	total := grid.size()
	coverage := coveragePercent(len(inserted), total)
	supply := grid.supply()
	warnings := lowSupplyWarnings(supply, s.cfg.LowSupplyThreshold)

	message := "timetable generated"
	if len(skipped) > 0 {
		message = fmt.Sprintf("timetable generated with %d skipped slot(s)", len(skipped))
	}

	s.logger.Info("timetable generated",
		zap.String("department", scope.Department),
		zap.String("semester", scope.Semester),
		zap.String("academic_year", scope.AcademicYear),
		zap.Int64("deleted", deleted),
		zap.Int("filled", len(inserted)),
		zap.Int("total", total),
		zap.Float64("coverage_percent", coverage),
		zap.Int("tier_strict", result.stats.Strict),
		zap.Int("tier_relaxed_teacher", result.stats.RelaxedTeacher),
		zap.Int("tier_last_resort", result.stats.LastResort),
		zap.Int("skipped", len(skipped)),
	)

	return &dto.GenerateTimetableResponse{
		Message:         message,
		Scope:           scope,
		FilledSlots:     len(inserted),
		TotalSlots:      total,
		CoveragePercent: coverage,
		SectionSupply:   supply,
		Warnings:        warnings,
		TierStats:       result.stats,
		Slots:           inserted,
		Skipped:         skipped,
	}, nil
}

func (s *TimetableGeneratorService) buildSlots(scope models.Scope, placements []placement, requestedBy string) []models.ScheduleSlot {
	var createdBy *string
	if requestedBy != "" {
		createdBy = &requestedBy
	}
	slots := make([]models.ScheduleSlot, 0, len(placements))
	for _, p := range placements {
		slots = append(slots, models.ScheduleSlot{
			Department:   scope.Department,
			Semester:     scope.Semester,
			AcademicYear: scope.AcademicYear,
			DayOfWeek:    p.cell.Day,
			Hour:         p.cell.Hour,
			Section:      p.cell.Section,
			SubjectID:    p.unit.SubjectID,
			TeacherID:    p.unit.TeacherID,
			Room:         s.cfg.DefaultRoom,
			Active:       true,
			CreatedBy:    createdBy,
		})
	}
	return slots
}

// persist tries one transactional bulk insert and falls back to row-by-row
// inserts, reporting each failed row as skipped.
func (s *TimetableGeneratorService) persist(ctx context.Context, scope models.Scope, batch []models.ScheduleSlot) ([]models.ScheduleSlot, []dto.SkippedCoordinate) {
	if len(batch) == 0 {
		return []models.ScheduleSlot{}, nil
	}
	start := time.Now()
	err := s.slots.BulkCreate(ctx, batch)
	s.metrics.ObserveDBQuery("schedule_slots_bulk_insert", time.Since(start))
	if err == nil {
		return batch, nil
	}

	s.metrics.RecordBulkFallback()
	s.logger.Warn("bulk slot insert failed, falling back to per-row inserts",
		zap.String("scope", scope.Key()),
		zap.Int("slots", len(batch)),
		zap.Error(err),
	)

	inserted := make([]models.ScheduleSlot, 0, len(batch))
	var skipped []dto.SkippedCoordinate
	for i := range batch {
		slot := batch[i]
		if err := s.slots.Create(ctx, &slot); err != nil {
			skipped = append(skipped, dto.SkippedCoordinate{
				DayOfWeek: slot.DayOfWeek,
				Hour:      slot.Hour,
				Section:   slot.Section,
				Reason:    err.Error(),
			})
			continue
		}
		inserted = append(inserted, slot)
	}
	return inserted, skipped
}

func (s *TimetableGeneratorService) invalidateTeacherCache(ctx context.Context, slots []models.ScheduleSlot) {
	if !s.cache.Enabled() {
		return
	}
	// Slots of the previous timetable are gone too, so drop every teacher entry.
	if err := s.cache.Invalidate(ctx, teacherScheduleCachePattern); err != nil {
		s.logger.Warn("failed to invalidate teacher schedule cache", zap.Int("slots", len(slots)), zap.Error(err))
	}
}

func coveragePercent(filled, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(filled)/float64(total)*1000) / 10
}

func lowSupplyWarnings(supply []dto.SectionSupply, threshold int) []string {
	warnings := make([]string, 0)
	for _, item := range supply {
		if item.UnitCount < threshold {
			warnings = append(warnings, fmt.Sprintf("section %s has only %d teachable unit(s); same-day repeats or teacher double-booking may occur", item.Section, item.UnitCount))
		}
	}
	return warnings
}
