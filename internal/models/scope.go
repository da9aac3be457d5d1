package models

import (
	"strconv"
	"strings"
)

// Scope is the (department, semester, academic year) triple that bounds a
// timetable generation run.
type Scope struct {
	Department   string `db:"department" json:"department"`
	Semester     string `db:"semester" json:"semester"`
	AcademicYear string `db:"academic_year" json:"academic_year"`
}

// Key renders the scope as a single lock/cache key. Each part is length
// prefixed so a separator inside a department name cannot alias another scope.
func (s Scope) Key() string {
	var b strings.Builder
	for i, part := range []string{s.Department, s.Semester, s.AcademicYear} {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IsZero reports whether any scope component is missing.
func (s Scope) IsZero() bool {
	return s.Department == "" || s.Semester == "" || s.AcademicYear == ""
}
