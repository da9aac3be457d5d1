package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

var csScope = models.Scope{Department: "Computer Science", Semester: "3", AcademicYear: "2024-2025"}

type stubCatalog struct {
	entries []models.SubjectCatalogEntry
	err     error
	calls   int
}

func (s *stubCatalog) ListCatalogByScope(ctx context.Context, scope models.Scope) ([]models.SubjectCatalogEntry, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []models.SubjectCatalogEntry
	for _, e := range s.entries {
		if e.Department == scope.Department && e.Semester == scope.Semester && e.AcademicYear == scope.AcademicYear {
			out = append(out, e)
		}
	}
	return out, nil
}

func catalogEntry(id, teacherID string, approved bool, sections ...string) models.SubjectCatalogEntry {
	entry := models.SubjectCatalogEntry{
		Subject: models.Subject{
			ID:           id,
			Code:         strings.ToUpper(id),
			Name:         "Subject " + id,
			Department:   csScope.Department,
			Semester:     csScope.Semester,
			AcademicYear: csScope.AcademicYear,
			Sections:     sections,
		},
		TeacherApproved: approved,
	}
	if teacherID != "" {
		tid := teacherID
		name := "Teacher " + teacherID
		entry.TeacherID = &tid
		entry.TeacherName = &name
	}
	return entry
}

// memorySlotStore is an in-memory schedule_slots table.
type memorySlotStore struct {
	mu        sync.Mutex
	rows      []models.ScheduleSlot
	subjects  map[string]string
	seq       int
	bulkErr   error
	createErr func(slot models.ScheduleSlot) error
	updateErr error

	bulkCalls        int
	createCalls      int
	listTeacherCalls int
}

func newMemorySlotStore() *memorySlotStore {
	return &memorySlotStore{subjects: map[string]string{}}
}

func (m *memorySlotStore) nextID() string {
	m.seq++
	return fmt.Sprintf("slot-%d", m.seq)
}

func (m *memorySlotStore) DeleteByScope(ctx context.Context, scope models.Scope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var deleted int64
	for _, r := range m.rows {
		if r.Scope() == scope {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return deleted, nil
}

func (m *memorySlotStore) BulkCreate(ctx context.Context, slots []models.ScheduleSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkCalls++
	if m.bulkErr != nil {
		return m.bulkErr
	}
	for i := range slots {
		if slots[i].ID == "" {
			slots[i].ID = m.nextID()
		}
		m.rows = append(m.rows, slots[i])
	}
	return nil
}

func (m *memorySlotStore) Create(ctx context.Context, slot *models.ScheduleSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		if err := m.createErr(*slot); err != nil {
			return err
		}
	}
	if slot.ID == "" {
		slot.ID = m.nextID()
	}
	slot.CreatedAt = time.Now()
	m.rows = append(m.rows, *slot)
	return nil
}

func (m *memorySlotStore) Update(ctx context.Context, slot *models.ScheduleSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for i := range m.rows {
		if m.rows[i].ID == slot.ID {
			m.rows[i] = *slot
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memorySlotStore) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Active = false
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memorySlotStore) FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			slot := r
			return &slot, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memorySlotStore) detail(r models.ScheduleSlot) models.ScheduleSlotDetail {
	name := "Teacher " + r.TeacherID
	return models.ScheduleSlotDetail{
		ScheduleSlot: r,
		SubjectCode:  strings.ToUpper(r.SubjectID),
		SubjectName:  m.subjects[r.SubjectID],
		TeacherName:  &name,
	}
}

func (m *memorySlotStore) FindActiveConflicts(ctx context.Context, slot models.ScheduleSlot, excludeID string) ([]models.ScheduleSlotDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduleSlotDetail
	for _, r := range m.rows {
		if !r.Active || r.ID == excludeID {
			continue
		}
		if r.Scope() == slot.Scope() && r.DayOfWeek == slot.DayOfWeek && r.Hour == slot.Hour && r.Section == slot.Section {
			out = append(out, m.detail(r))
		}
	}
	return out, nil
}

func (m *memorySlotStore) ListBySection(ctx context.Context, scope models.Scope, section string) ([]models.ScheduleSlotDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduleSlotDetail
	for _, r := range m.rows {
		if r.Active && r.Scope() == scope && r.Section == section {
			out = append(out, m.detail(r))
		}
	}
	return out, nil
}

func (m *memorySlotStore) ListByScope(ctx context.Context, scope models.Scope) ([]models.ScheduleSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduleSlot
	for _, r := range m.rows {
		if r.Active && r.Scope() == scope {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memorySlotStore) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listTeacherCalls++
	var out []models.TeacherScheduleEntry
	for _, r := range m.rows {
		if !r.Active || r.TeacherID != teacherID {
			continue
		}
		out = append(out, models.TeacherScheduleEntry{
			ID:           r.ID,
			Department:   r.Department,
			Semester:     r.Semester,
			AcademicYear: r.AcademicYear,
			DayOfWeek:    r.DayOfWeek,
			Hour:         r.Hour,
			Section:      r.Section,
			SubjectID:    r.SubjectID,
			SubjectCode:  strings.ToUpper(r.SubjectID),
			SubjectName:  m.subjects[r.SubjectID],
			Room:         r.Room,
		})
	}
	return out, nil
}

func (m *memorySlotStore) activeInScope(scope models.Scope) []models.ScheduleSlot {
	rows, _ := m.ListByScope(context.Background(), scope)
	return rows
}

// memoryCacheRepo stores JSON payloads in a map.
type memoryCacheRepo struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: map[string][]byte{}}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.data[key] = raw
	return nil
}

func (r *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.data, k)
	}
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range r.data {
		if strings.HasPrefix(k, prefix) {
			delete(r.data, k)
		}
	}
	return nil
}

func (r *memoryCacheRepo) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.data[key]
	return ok
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(ctx context.Context, key string) (func(), error) {
	return nil, l.err
}
