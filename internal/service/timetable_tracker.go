package service

type sectionDayKey struct {
	section string
	day     string
}

type dayHourKey struct {
	day  string
	hour string
}

// conflictTracker remembers what one generation run has committed so far.
type conflictTracker struct {
	usedSubjects      map[sectionDayKey]map[string]struct{}
	committedTeachers map[dayHourKey]map[string]struct{}
	usage             map[string]int
}

func newConflictTracker() *conflictTracker {
	return &conflictTracker{
		usedSubjects:      make(map[sectionDayKey]map[string]struct{}),
		committedTeachers: make(map[dayHourKey]map[string]struct{}),
		usage:             make(map[string]int),
	}
}

func (t *conflictTracker) subjectUsed(section, day, subjectID string) bool {
	_, ok := t.usedSubjects[sectionDayKey{section: section, day: day}][subjectID]
	return ok
}

func (t *conflictTracker) teacherBusy(day, hour, teacherID string) bool {
	_, ok := t.committedTeachers[dayHourKey{day: day, hour: hour}][teacherID]
	return ok
}

func (t *conflictTracker) uses(u teachableUnit) int {
	return t.usage[u.key()]
}

func (t *conflictTracker) commit(cell gridCell, u teachableUnit) {
	sd := sectionDayKey{section: cell.Section, day: cell.Day}
	if t.usedSubjects[sd] == nil {
		t.usedSubjects[sd] = make(map[string]struct{})
	}
	t.usedSubjects[sd][u.SubjectID] = struct{}{}

	dh := dayHourKey{day: cell.Day, hour: cell.Hour}
	if t.committedTeachers[dh] == nil {
		t.committedTeachers[dh] = make(map[string]struct{})
	}
	t.committedTeachers[dh][u.TeacherID] = struct{}{}

	t.usage[u.key()]++
}
