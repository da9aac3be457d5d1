package models

import "time"

// TeacherStatus is the approval state of a staff member.
type TeacherStatus string

const (
	TeacherStatusPending  TeacherStatus = "PENDING"
	TeacherStatusApproved TeacherStatus = "APPROVED"
	TeacherStatusRejected TeacherStatus = "REJECTED"
)

// Teacher represents an instructor record owned by the staff directory.
type Teacher struct {
	ID         string        `db:"id" json:"id"`
	FullName   string        `db:"full_name" json:"full_name"`
	Email      string        `db:"email" json:"email"`
	Department string        `db:"department" json:"department"`
	Status     TeacherStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}
