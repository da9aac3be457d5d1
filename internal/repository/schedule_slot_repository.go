package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const (
	slotColumns = "id, department, semester, academic_year, day_of_week, hour, section, subject_id, teacher_id, room, active, created_by, created_at, updated_at"
	slotInsert  = `INSERT INTO schedule_slots (` + slotColumns + `) VALUES (:id, :department, :semester, :academic_year, :day_of_week, :hour, :section, :subject_id, :teacher_id, :room, :active, :created_by, :created_at, :updated_at)`

	slotDetailSelect = `SELECT ss.id, ss.department, ss.semester, ss.academic_year, ss.day_of_week, ss.hour, ss.section, ss.subject_id, ss.teacher_id, ss.room, ss.active, ss.created_by, ss.created_at, ss.updated_at,
sub.code AS subject_code, sub.name AS subject_name, t.full_name AS teacher_name
FROM schedule_slots ss
JOIN subjects sub ON sub.id = ss.subject_id
LEFT JOIN teachers t ON t.id = ss.teacher_id`

	// bulkChunkSize keeps a multi-row insert well under the 65535 bind parameter cap.
	bulkChunkSize = 500
)

// ScheduleSlotRepository provides persistence for timetable slots.
type ScheduleSlotRepository struct {
	db *sqlx.DB
}

// NewScheduleSlotRepository creates a new schedule slot repository.
func NewScheduleSlotRepository(db *sqlx.DB) *ScheduleSlotRepository {
	return &ScheduleSlotRepository{db: db}
}

// FindByID loads a slot by id.
func (r *ScheduleSlotRepository) FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1`
	var slot models.ScheduleSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// FindActiveConflicts returns active slots holding the same scope/day/hour/section
// coordinate, ignoring excludeID.
func (r *ScheduleSlotRepository) FindActiveConflicts(ctx context.Context, slot models.ScheduleSlot, excludeID string) ([]models.ScheduleSlotDetail, error) {
	query := slotDetailSelect + `
WHERE ss.active = TRUE AND ss.department = $1 AND ss.semester = $2 AND ss.academic_year = $3 AND ss.day_of_week = $4 AND ss.hour = $5 AND ss.section = $6 AND ss.id <> $7`
	var conflicts []models.ScheduleSlotDetail
	if err := r.db.SelectContext(ctx, &conflicts, query, slot.Department, slot.Semester, slot.AcademicYear, slot.DayOfWeek, slot.Hour, slot.Section, excludeID); err != nil {
		return nil, fmt.Errorf("find slot conflicts: %w", err)
	}
	return conflicts, nil
}

// ListBySection returns the active slots of one section within a scope.
func (r *ScheduleSlotRepository) ListBySection(ctx context.Context, scope models.Scope, section string) ([]models.ScheduleSlotDetail, error) {
	query := slotDetailSelect + `
WHERE ss.active = TRUE AND ss.department = $1 AND ss.semester = $2 AND ss.academic_year = $3 AND ss.section = $4
ORDER BY ss.day_of_week ASC, ss.hour ASC`
	var slots []models.ScheduleSlotDetail
	if err := r.db.SelectContext(ctx, &slots, query, scope.Department, scope.Semester, scope.AcademicYear, section); err != nil {
		return nil, fmt.Errorf("list slots by section: %w", err)
	}
	return slots, nil
}

// ListByScope returns every active slot of a scope.
func (r *ScheduleSlotRepository) ListByScope(ctx context.Context, scope models.Scope) ([]models.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE active = TRUE AND department = $1 AND semester = $2 AND academic_year = $3 ORDER BY section ASC, day_of_week ASC, hour ASC`
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, scope.Department, scope.Semester, scope.AcademicYear); err != nil {
		return nil, fmt.Errorf("list slots by scope: %w", err)
	}
	return slots, nil
}

// ListByTeacher returns a narrow projection of a teacher's active slots.
func (r *ScheduleSlotRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherScheduleEntry, error) {
	const query = `SELECT ss.id, ss.department, ss.semester, ss.academic_year, ss.day_of_week, ss.hour, ss.section, ss.subject_id, sub.code AS subject_code, sub.name AS subject_name, ss.room
FROM schedule_slots ss
JOIN subjects sub ON sub.id = ss.subject_id
WHERE ss.teacher_id = $1 AND ss.active = TRUE`
	var entries []models.TeacherScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID); err != nil {
		return nil, fmt.Errorf("list slots by teacher: %w", err)
	}
	return entries, nil
}

// DeleteByScope hard-deletes every slot of the scope, active or not.
func (r *ScheduleSlotRepository) DeleteByScope(ctx context.Context, scope models.Scope) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_slots WHERE department = $1 AND semester = $2 AND academic_year = $3`, scope.Department, scope.Semester, scope.AcademicYear)
	if err != nil {
		return 0, fmt.Errorf("delete slots by scope: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete slots by scope: %w", err)
	}
	return affected, nil
}

// BulkCreate inserts the slots in one transaction using multi-row inserts. On
// error nothing is persisted.
func (r *ScheduleSlotRepository) BulkCreate(ctx context.Context, slots []models.ScheduleSlot) (err error) {
	if len(slots) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create slots: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range slots {
		prepareSlot(&slots[i], now)
	}
	for start := 0; start < len(slots); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(slots) {
			end = len(slots)
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, slotInsert, slots[start:end]); err != nil {
			return fmt.Errorf("bulk insert slots: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create slots: %w", err)
	}
	return nil
}

// Create stores a single slot.
func (r *ScheduleSlotRepository) Create(ctx context.Context, slot *models.ScheduleSlot) error {
	prepareSlot(slot, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, slotInsert, slot); err != nil {
		return fmt.Errorf("create slot: %w", coordinateError(err))
	}
	return nil
}

// Update rewrites a slot's coordinate and assignment.
func (r *ScheduleSlotRepository) Update(ctx context.Context, slot *models.ScheduleSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_slots SET department = :department, semester = :semester, academic_year = :academic_year, day_of_week = :day_of_week, hour = :hour, section = :section, subject_id = :subject_id, teacher_id = :teacher_id, room = :room, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, slot)
	if err != nil {
		return fmt.Errorf("update slot: %w", coordinateError(err))
	}
	return requireAffected(res)
}

// Deactivate marks a slot inactive so it no longer occupies its coordinate.
func (r *ScheduleSlotRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE schedule_slots SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate slot: %w", err)
	}
	return requireAffected(res)
}

// pqUniqueViolation is the SQLSTATE postgres returns when a unique index rejects a row.
const pqUniqueViolation = "23505"

// coordinateError maps a hit on the active coordinate index to ErrSlotCoordinateTaken.
func coordinateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%w: %s", models.ErrSlotCoordinateTaken, pqErr.Constraint)
	}
	return err
}

func prepareSlot(slot *models.ScheduleSlot, now time.Time) {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.Room == "" {
		slot.Room = models.DefaultRoom
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
