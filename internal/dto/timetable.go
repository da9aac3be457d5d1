package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// GenerateTimetableRequest asks for a full wipe-and-rebuild of one scope.
type GenerateTimetableRequest struct {
	Department   string   `json:"department" validate:"required"`
	Semester     string   `json:"semester" validate:"required"`
	AcademicYear string   `json:"academic_year" validate:"required"`
	Sections     []string `json:"sections" validate:"omitempty,max=32,dive,required"`
	RequestedBy  string   `json:"-"`
}

// SectionSupply reports how many teachable units can serve a section.
type SectionSupply struct {
	Section   string `json:"section"`
	UnitCount int    `json:"unit_count"`
}

// SkippedCoordinate is a grid cell that ended up without a persisted slot.
type SkippedCoordinate struct {
	DayOfWeek string `json:"day_of_week"`
	Hour      string `json:"hour"`
	Section   string `json:"section"`
	Reason    string `json:"reason"`
}

// TierStats counts placements per constraint-relaxation tier.
type TierStats struct {
	Strict         int `json:"strict"`
	RelaxedTeacher int `json:"relaxed_teacher"`
	LastResort     int `json:"last_resort"`
}

// GenerateTimetableResponse summarises a regeneration run.
type GenerateTimetableResponse struct {
	Message         string                `json:"message"`
	Scope           models.Scope          `json:"scope"`
	FilledSlots     int                   `json:"filled_slots"`
	TotalSlots      int                   `json:"total_slots"`
	CoveragePercent float64               `json:"coverage_percent"`
	SectionSupply   []SectionSupply       `json:"section_supply"`
	Warnings        []string              `json:"warnings"`
	TierStats       TierStats             `json:"tier_stats"`
	Slots           []models.ScheduleSlot `json:"slots"`
	Skipped         []SkippedCoordinate   `json:"skipped,omitempty"`
}

// SubjectDiagnostic explains why a subject did not qualify as a teachable unit.
type SubjectDiagnostic struct {
	SubjectID          string `json:"subject_id"`
	SubjectCode        string `json:"subject_code"`
	SubjectName        string `json:"subject_name"`
	MissingTeacher     bool   `json:"missing_teacher"`
	TeacherNotApproved bool   `json:"teacher_not_approved"`
	NoSections         bool   `json:"no_sections"`
}

// UncoverableSection names a grid section no teachable unit can serve.
type UncoverableSection struct {
	Section string `json:"section"`
}

// SectionTimetableQuery selects one section of one scope.
type SectionTimetableQuery struct {
	Department   string `form:"department" validate:"required"`
	Semester     string `form:"semester" validate:"required"`
	AcademicYear string `form:"academic_year" validate:"required"`
	Section      string `form:"section" validate:"required"`
}

// ScopeQuery selects a scope on read endpoints.
type ScopeQuery struct {
	Department   string `form:"department" validate:"required"`
	Semester     string `form:"semester" validate:"required"`
	AcademicYear string `form:"academic_year" validate:"required"`
}

// SectionTimetable is the day -> hour -> slot matrix for one section. Days and
// Hours carry the display order since JSON objects are unordered.
type SectionTimetable struct {
	Scope   models.Scope                                     `json:"scope"`
	Section string                                           `json:"section"`
	Days    []string                                         `json:"days"`
	Hours   []string                                         `json:"hours"`
	Grid    map[string]map[string]*models.ScheduleSlotDetail `json:"grid"`
	Filled  int                                              `json:"filled"`
}

// CoverageStats reports how much of a persisted scope grid is filled.
type CoverageStats struct {
	Scope           models.Scope      `json:"scope"`
	FilledSlots     int               `json:"filled_slots"`
	TotalSlots      int               `json:"total_slots"`
	CoveragePercent float64           `json:"coverage_percent"`
	Sections        []SectionCoverage `json:"sections"`
	Warnings        []string          `json:"warnings"`
}

// SectionCoverage is the per-section part of CoverageStats.
type SectionCoverage struct {
	Section         string  `json:"section"`
	FilledSlots     int     `json:"filled_slots"`
	TotalSlots      int     `json:"total_slots"`
	CoveragePercent float64 `json:"coverage_percent"`
}

// CurrentSlot maps a wall-clock instant onto the timetable grid.
type CurrentSlot struct {
	At        string `json:"at"`
	DayOfWeek string `json:"day_of_week,omitempty"`
	Hour      string `json:"hour,omitempty"`
	InSession bool   `json:"in_session"`
}

// TeacherCurrentSchedule lists what a teacher is scheduled for right now.
type TeacherCurrentSchedule struct {
	TeacherID string                        `json:"teacher_id"`
	Slot      CurrentSlot                   `json:"slot"`
	Entries   []models.TeacherScheduleEntry `json:"entries"`
}

// UpsertScheduleSlotRequest is the manual create/update payload.
type UpsertScheduleSlotRequest struct {
	Department   string `json:"department" validate:"required"`
	Semester     string `json:"semester" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
	DayOfWeek    string `json:"day_of_week" validate:"required"`
	Hour         string `json:"hour" validate:"required"`
	Section      string `json:"section" validate:"required"`
	SubjectID    string `json:"subject_id" validate:"required"`
	TeacherID    string `json:"teacher_id" validate:"required"`
	Room         string `json:"room"`
	RequestedBy  string `json:"-"`
}
