package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func testHourWindows(t *testing.T) []config.HourWindow {
	t.Helper()
	windows, err := config.ParseHourWindows("1=09:00-10:00,2=10:00-11:00,3=12:00-13:00,4=13:00-14:00")
	require.NoError(t, err)
	return windows
}

func newQueryFixture(t *testing.T, cacheRepo CacheRepository, entries ...models.SubjectCatalogEntry) (*TimetableQueryService, *memorySlotStore) {
	store := newMemorySlotStore()
	var cache *CacheService
	if cacheRepo != nil {
		cache = NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	}
	svc := NewTimetableQueryService(store, &stubCatalog{entries: entries}, cache, nil, nil, TimetableQueryConfig{
		HourWindows: testHourWindows(t),
		Location:    time.UTC,
	})
	return svc, store
}

func seedSlot(store *memorySlotStore, id, day, hour, section, subjectID, teacherID string) {
	store.rows = append(store.rows, models.ScheduleSlot{
		ID:           id,
		Department:   csScope.Department,
		Semester:     csScope.Semester,
		AcademicYear: csScope.AcademicYear,
		DayOfWeek:    day,
		Hour:         hour,
		Section:      section,
		SubjectID:    subjectID,
		TeacherID:    teacherID,
		Room:         models.DefaultRoom,
		Active:       true,
	})
}

func TestTimetableQuerySectionMatrix(t *testing.T) {
	svc, store := newQueryFixture(t, nil)
	store.subjects["s1"] = "Algorithms"
	seedSlot(store, "x1", "TUESDAY", "2", "A", "s1", "t1")
	seedSlot(store, "x2", "MONDAY", "1", "A", "s1", "t1")
	seedSlot(store, "x3", "MONDAY", "1", "B", "s1", "t1")

	matrix, err := svc.SectionTimetable(context.Background(), dto.SectionTimetableQuery{
		Department:   "Computer%20Science",
		Semester:     "3",
		AcademicYear: "2024-2025",
		Section:      " A ",
	})
	require.NoError(t, err)
	assert.Equal(t, "A", matrix.Section)
	assert.Equal(t, 2, matrix.Filled)
	assert.Equal(t, []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY"}, matrix.Days)
	require.Len(t, matrix.Grid, 6)
	for _, hours := range matrix.Grid {
		assert.Len(t, hours, 4)
	}
	require.NotNil(t, matrix.Grid["MONDAY"]["1"])
	assert.Equal(t, "Algorithms", matrix.Grid["MONDAY"]["1"].SubjectName)
	assert.Nil(t, matrix.Grid["MONDAY"]["2"])
	require.NotNil(t, matrix.Grid["TUESDAY"]["2"])
	assert.Equal(t, "x1", matrix.Grid["TUESDAY"]["2"].ID)
}

func TestTimetableQuerySectionMatrixValidates(t *testing.T) {
	svc, _ := newQueryFixture(t, nil)
	_, err := svc.SectionTimetable(context.Background(), dto.SectionTimetableQuery{Department: "CS", Semester: "3", AcademicYear: "2024"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestTimetableQueryTeacherScheduleSortedAndCached(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	svc, store := newQueryFixture(t, cacheRepo)
	seedSlot(store, "x1", "WEDNESDAY", "1", "A", "s1", "t1")
	seedSlot(store, "x2", "MONDAY", "3", "B", "s1", "t1")
	seedSlot(store, "x3", "MONDAY", "3", "A", "s1", "t1")
	seedSlot(store, "x4", "MONDAY", "1", "C", "s2", "t1")
	seedSlot(store, "x5", "MONDAY", "1", "C", "s2", "t2")

	entries, err := svc.TeacherSchedule(context.Background(), "t1")
	require.NoError(t, err)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"x4", "x3", "x2", "x1"}, ids)
	assert.Equal(t, "3", entries[0].Semester)
	assert.True(t, cacheRepo.has(teacherScheduleCacheKey("t1")))

	again, err := svc.TeacherSchedule(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, again, 4)
	assert.Equal(t, 1, store.listTeacherCalls)
}

func TestTimetableQueryTeacherScheduleConcurrentMisses(t *testing.T) {
	svc, store := newQueryFixture(t, nil)
	seedSlot(store, "x1", "MONDAY", "1", "A", "s1", "t1")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries, err := svc.TeacherSchedule(context.Background(), "t1")
			assert.NoError(t, err)
			assert.Len(t, entries, 1)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, store.listTeacherCalls, 16)
}

func TestTimetableQueryTeacherScheduleEmpty(t *testing.T) {
	svc, _ := newQueryFixture(t, nil)
	entries, err := svc.TeacherSchedule(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestTimetableQueryCurrentSlot(t *testing.T) {
	svc, _ := newQueryFixture(t, nil)

	// 2024-09-02 is a Monday.
	slot := svc.CurrentSlot(time.Date(2024, 9, 2, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, dto.CurrentSlot{At: "2024-09-02T09:30:00Z", DayOfWeek: "MONDAY", Hour: "1", InSession: true}, slot)

	slot = svc.CurrentSlot(time.Date(2024, 9, 2, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "3", slot.Hour)

	lunch := svc.CurrentSlot(time.Date(2024, 9, 2, 11, 30, 0, 0, time.UTC))
	assert.Equal(t, "MONDAY", lunch.DayOfWeek)
	assert.False(t, lunch.InSession)
	assert.Empty(t, lunch.Hour)

	edge := svc.CurrentSlot(time.Date(2024, 9, 2, 14, 0, 0, 0, time.UTC))
	assert.False(t, edge.InSession)

	sunday := svc.CurrentSlot(time.Date(2024, 9, 8, 9, 30, 0, 0, time.UTC))
	assert.Empty(t, sunday.DayOfWeek)
	assert.False(t, sunday.InSession)
}

func TestTimetableQueryTeacherCurrentSchedule(t *testing.T) {
	svc, store := newQueryFixture(t, nil)
	svc.now = func() time.Time { return time.Date(2024, 9, 3, 10, 15, 0, 0, time.UTC) }
	seedSlot(store, "x1", "TUESDAY", "2", "A", "s1", "t1")
	seedSlot(store, "x2", "TUESDAY", "3", "B", "s1", "t1")

	current, err := svc.TeacherCurrentSchedule(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "TUESDAY", current.Slot.DayOfWeek)
	assert.Equal(t, "2", current.Slot.Hour)
	require.Len(t, current.Entries, 1)
	assert.Equal(t, "x1", current.Entries[0].ID)
}

func TestTimetableQueryCoverage(t *testing.T) {
	svc, store := newQueryFixture(t, nil, catalogEntry("s1", "t1", true, "A", "B"))
	for _, day := range []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY"} {
		for _, hour := range []string{"1", "2", "3", "4"} {
			seedSlot(store, day+hour, day, hour, "A", "s1", "t1")
		}
	}
	seedSlot(store, "b1", "MONDAY", "1", "B", "s1", "t1")

	stats, err := svc.Coverage(context.Background(), dto.ScopeQuery{Department: csScope.Department, Semester: csScope.Semester, AcademicYear: csScope.AcademicYear})
	require.NoError(t, err)
	assert.Equal(t, 25, stats.FilledSlots)
	assert.Equal(t, 48, stats.TotalSlots)
	assert.InDelta(t, 52.1, stats.CoveragePercent, 1e-9)
	require.Len(t, stats.Sections, 2)
	assert.Equal(t, 100.0, stats.Sections[0].CoveragePercent)
	assert.Equal(t, 1, stats.Sections[1].FilledSlots)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0], "section B is missing 23 of 24")
}

func TestTimetableQueryCoverageUnknownScope(t *testing.T) {
	svc, _ := newQueryFixture(t, nil)
	_, err := svc.Coverage(context.Background(), dto.ScopeQuery{Department: "History", Semester: "1", AcademicYear: "2024"})
	assert.True(t, appErrors.Is(err, appErrors.ErrScopeNotFound))
}
