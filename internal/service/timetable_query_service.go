package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const (
	teacherScheduleCachePrefix  = "timetable:teacher:"
	teacherScheduleCachePattern = teacherScheduleCachePrefix + "*"
)

func teacherScheduleCacheKey(teacherID string) string {
	return teacherScheduleCachePrefix + teacherID
}

type scheduleSlotReader interface {
	ListBySection(ctx context.Context, scope models.Scope, section string) ([]models.ScheduleSlotDetail, error)
	ListByScope(ctx context.Context, scope models.Scope) ([]models.ScheduleSlot, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherScheduleEntry, error)
}

// TimetableQueryConfig configures the read side.
type TimetableQueryConfig struct {
	TimetableConfig
	HourWindows []config.HourWindow
	Location    *time.Location
	CacheTTL    time.Duration
}

// TimetableQueryService serves section matrices, teacher lists and coverage.
type TimetableQueryService struct {
	slots     scheduleSlotReader
	catalog   subjectCatalogReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableQueryConfig
	group     singleflight.Group
	now       func() time.Time
}

// NewTimetableQueryService constructs the query service.
func NewTimetableQueryService(
	slots scheduleSlotReader,
	catalog subjectCatalogReader,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableQueryConfig,
) *TimetableQueryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	cfg.TimetableConfig = cfg.TimetableConfig.withDefaults()
	return &TimetableQueryService{
		slots:     slots,
		catalog:   catalog,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SectionTimetable returns the day -> hour -> slot matrix of one section.
// Unfilled cells are present as nulls.
func (s *TimetableQueryService) SectionTimetable(ctx context.Context, q dto.SectionTimetableQuery) (*dto.SectionTimetable, error) {
	scope := NormalizeScope(q.Department, q.Semester, q.AcademicYear)
	q.Department, q.Semester, q.AcademicYear = scope.Department, scope.Semester, scope.AcademicYear
	q.Section = normalizeScopeValue(q.Section)
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}

	rows, err := s.slots.ListBySection(ctx, scope, q.Section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section timetable")
	}

	grid := make(map[string]map[string]*models.ScheduleSlotDetail, len(s.cfg.Days))
	for _, day := range s.cfg.Days {
		grid[day] = make(map[string]*models.ScheduleSlotDetail, len(s.cfg.Hours))
		for _, hour := range s.cfg.Hours {
			grid[day][hour] = nil
		}
	}

	filled := 0
	for i := range rows {
		row := rows[i]
		hours, ok := grid[row.DayOfWeek]
		if !ok {
			continue
		}
		if _, ok := hours[row.Hour]; !ok {
			continue
		}
		if hours[row.Hour] == nil {
			filled++
		}
		hours[row.Hour] = &row
	}

	return &dto.SectionTimetable{
		Scope:   scope,
		Section: q.Section,
		Days:    s.cfg.Days,
		Hours:   s.cfg.Hours,
		Grid:    grid,
		Filled:  filled,
	}, nil
}

// TeacherSchedule lists a teacher's active slots in day, hour, section order.
// Results are read through the cache; concurrent misses share one query.
func (s *TimetableQueryService) TeacherSchedule(ctx context.Context, teacherID string) ([]models.TeacherScheduleEntry, error) {
	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}

	key := teacherScheduleCacheKey(teacherID)
	var cached []models.TeacherScheduleEntry
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		entries, err := s.slots.ListByTeacher(ctx, teacherID)
		if err != nil {
			return nil, err
		}
		s.sortEntries(entries)
		if entries == nil {
			entries = []models.TeacherScheduleEntry{}
		}
		if err := s.cache.Set(ctx, key, entries, s.cfg.CacheTTL); err != nil {
			s.logger.Debug("teacher schedule not cached", zap.String("teacher_id", teacherID), zap.Error(err))
		}
		return entries, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher schedule")
	}
	return value.([]models.TeacherScheduleEntry), nil
}

// CurrentSlot maps at onto the configured day and hour windows.
func (s *TimetableQueryService) CurrentSlot(at time.Time) dto.CurrentSlot {
	local := at.In(s.cfg.Location)
	out := dto.CurrentSlot{At: local.Format(time.RFC3339)}

	day := strings.ToUpper(local.Weekday().String())
	if indexOf(s.cfg.Days, day) < 0 {
		return out
	}
	out.DayOfWeek = day

	sinceMidnight := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute + time.Duration(local.Second())*time.Second
	for _, w := range s.cfg.HourWindows {
		if sinceMidnight >= w.Start && sinceMidnight < w.End {
			out.Hour = w.Hour
			out.InSession = true
			break
		}
	}
	return out
}

// Now returns the current slot for the service clock.
func (s *TimetableQueryService) Now() dto.CurrentSlot {
	return s.CurrentSlot(s.now())
}

// TeacherCurrentSchedule returns the slots a teacher should be teaching right now.
func (s *TimetableQueryService) TeacherCurrentSchedule(ctx context.Context, teacherID string) (*dto.TeacherCurrentSchedule, error) {
	entries, err := s.TeacherSchedule(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	slot := s.Now()
	current := make([]models.TeacherScheduleEntry, 0)
	if slot.InSession {
		for _, e := range entries {
			if e.DayOfWeek == slot.DayOfWeek && e.Hour == slot.Hour {
				current = append(current, e)
			}
		}
	}
	return &dto.TeacherCurrentSchedule{TeacherID: strings.TrimSpace(teacherID), Slot: slot, Entries: current}, nil
}

// Coverage reports how much of a persisted scope grid is filled. Sections come
// from both the catalog and the stored slots so an empty section still counts.
func (s *TimetableQueryService) Coverage(ctx context.Context, q dto.ScopeQuery) (*dto.CoverageStats, error) {
	scope := NormalizeScope(q.Department, q.Semester, q.AcademicYear)
	q.Department, q.Semester, q.AcademicYear = scope.Department, scope.Semester, scope.AcademicYear
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid coverage query")
	}

	slots, err := s.slots.ListByScope(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scope timetable")
	}
	entries, err := s.catalog.ListCatalogByScope(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject catalog")
	}
	if len(slots) == 0 && len(entries) == 0 {
		return nil, appErrors.WithDetails(appErrors.ErrScopeNotFound, "", map[string]interface{}{"scope": scope})
	}

	sectionSet := make(map[string]struct{})
	for _, e := range entries {
		for _, section := range cleanSections(e.Sections) {
			sectionSet[section] = struct{}{}
		}
	}
	filledBySection := make(map[string]map[dayHourKey]struct{})
	for _, slot := range slots {
		sectionSet[slot.Section] = struct{}{}
		if indexOf(s.cfg.Days, slot.DayOfWeek) < 0 || indexOf(s.cfg.Hours, slot.Hour) < 0 {
			continue
		}
		if filledBySection[slot.Section] == nil {
			filledBySection[slot.Section] = make(map[dayHourKey]struct{})
		}
		filledBySection[slot.Section][dayHourKey{day: slot.DayOfWeek, hour: slot.Hour}] = struct{}{}
	}

	sections := make([]string, 0, len(sectionSet))
	for section := range sectionSet {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	perSection := len(s.cfg.Days) * len(s.cfg.Hours)
	stats := &dto.CoverageStats{
		Scope:    scope,
		Sections: make([]dto.SectionCoverage, 0, len(sections)),
		Warnings: make([]string, 0),
	}
	for _, section := range sections {
		filled := len(filledBySection[section])
		stats.FilledSlots += filled
		stats.TotalSlots += perSection
		stats.Sections = append(stats.Sections, dto.SectionCoverage{
			Section:         section,
			FilledSlots:     filled,
			TotalSlots:      perSection,
			CoveragePercent: coveragePercent(filled, perSection),
		})
		if filled < perSection {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("section %s is missing %d of %d slots", section, perSection-filled, perSection))
		}
	}
	stats.CoveragePercent = coveragePercent(stats.FilledSlots, stats.TotalSlots)
	return stats, nil
}

func (s *TimetableQueryService) sortEntries(entries []models.TeacherScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := orderIndex(s.cfg.Days, entries[i].DayOfWeek), orderIndex(s.cfg.Days, entries[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		hi, hj := orderIndex(s.cfg.Hours, entries[i].Hour), orderIndex(s.cfg.Hours, entries[j].Hour)
		if hi != hj {
			return hi < hj
		}
		return entries[i].Section < entries[j].Section
	})
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}

// orderIndex sorts unknown values after every configured one.
func orderIndex(values []string, target string) int {
	if i := indexOf(values, target); i >= 0 {
		return i
	}
	return len(values)
}
