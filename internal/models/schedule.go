package models

import (
	"errors"
	"time"
)

// DefaultRoom is stored when a slot has no room assigned.
const DefaultRoom = "unassigned"

// ErrSlotCoordinateTaken reports a write rejected because another active slot
// already holds the same scope, day, hour and section.
var ErrSlotCoordinateTaken = errors.New("schedule slot coordinate already taken")

// ScheduleSlot is one teaching event in the weekly grid.
type ScheduleSlot struct {
	ID           string    `db:"id" json:"id"`
	Department   string    `db:"department" json:"department"`
	Semester     string    `db:"semester" json:"semester"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	DayOfWeek    string    `db:"day_of_week" json:"day_of_week"`
	Hour         string    `db:"hour" json:"hour"`
	Section      string    `db:"section" json:"section"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	Room         string    `db:"room" json:"room"`
	Active       bool      `db:"active" json:"active"`
	CreatedBy    *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Scope returns the slot's generation scope.
func (s ScheduleSlot) Scope() Scope {
	return Scope{Department: s.Department, Semester: s.Semester, AcademicYear: s.AcademicYear}
}

// ScheduleSlotDetail enriches a slot with subject and teacher names for display.
type ScheduleSlotDetail struct {
	ScheduleSlot
	SubjectCode string  `db:"subject_code" json:"subject_code"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
}

// TeacherScheduleEntry is the narrow projection polled by the attendance subsystem.
type TeacherScheduleEntry struct {
	ID           string `db:"id" json:"id"`
	Department   string `db:"department" json:"department"`
	Semester     string `db:"semester" json:"semester"`
	AcademicYear string `db:"academic_year" json:"academic_year"`
	DayOfWeek    string `db:"day_of_week" json:"day_of_week"`
	Hour         string `db:"hour" json:"hour"`
	Section      string `db:"section" json:"section"`
	SubjectID    string `db:"subject_id" json:"subject_id"`
	SubjectCode  string `db:"subject_code" json:"subject_code"`
	SubjectName  string `db:"subject_name" json:"subject_name"`
	Room         string `db:"room" json:"room"`
}

// ScheduleConflict describes an existing active slot occupying the same coordinate.
type ScheduleConflict struct {
	ScheduleID  string `json:"schedule_id"`
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name,omitempty"`
	Section     string `json:"section"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name,omitempty"`
	DayOfWeek   string `json:"day_of_week"`
	Hour        string `json:"hour"`
}

// ScheduleConflictError is returned when a manual slot collides with existing ones.
type ScheduleConflictError struct {
	Message   string             `json:"message"`
	Conflicts []ScheduleConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
