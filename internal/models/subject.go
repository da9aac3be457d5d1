package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject represents a paper offered by a department in one semester.
type Subject struct {
	ID           string         `db:"id" json:"id"`
	Code         string         `db:"code" json:"code"`
	Name         string         `db:"name" json:"name"`
	Department   string         `db:"department" json:"department"`
	Semester     string         `db:"semester" json:"semester"`
	AcademicYear string         `db:"academic_year" json:"academic_year"`
	TeacherID    *string        `db:"teacher_id" json:"teacher_id,omitempty"`
	Sections     pq.StringArray `db:"sections" json:"sections"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// SubjectCatalogEntry is a subject joined with its teacher's approval state.
type SubjectCatalogEntry struct {
	Subject
	TeacherName     *string `db:"teacher_name" json:"teacher_name,omitempty"`
	TeacherApproved bool    `db:"teacher_approved" json:"teacher_approved"`
}
