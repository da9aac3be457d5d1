package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SubjectRepository reads the subject catalog owned by the academics module.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListCatalogByScope returns every subject of the scope joined with its teacher's
// approval state, in a stable catalog order.
func (r *SubjectRepository) ListCatalogByScope(ctx context.Context, scope models.Scope) ([]models.SubjectCatalogEntry, error) {
	const query = `SELECT s.id, s.code, s.name, s.department, s.semester, s.academic_year, s.teacher_id, s.sections, s.created_at, s.updated_at,
t.full_name AS teacher_name, COALESCE(t.status = 'APPROVED', FALSE) AS teacher_approved
FROM subjects s
LEFT JOIN teachers t ON t.id = s.teacher_id
WHERE s.department = $1 AND s.semester = $2 AND s.academic_year = $3
ORDER BY s.code ASC, s.id ASC`
	var entries []models.SubjectCatalogEntry
	if err := r.db.SelectContext(ctx, &entries, query, scope.Department, scope.Semester, scope.AcademicYear); err != nil {
		return nil, fmt.Errorf("list subject catalog: %w", err)
	}
	return entries, nil
}

// FindByID loads a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, code, name, department, semester, academic_year, teacher_id, sections, created_at, updated_at FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}
