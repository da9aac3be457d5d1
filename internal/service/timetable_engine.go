package service

import "github.com/noah-isme/sma-timetable-api/internal/dto"

const reasonNoUnits = "no units for section"

type placementTier int

const (
	tierStrict placementTier = iota + 1
	tierRelaxedTeacher
	tierLastResort
)

type placement struct {
	cell gridCell
	unit teachableUnit
	tier placementTier
}

type assignmentResult struct {
	placements []placement
	skipped    []dto.SkippedCoordinate
	stats      dto.TierStats
}

// assignSlots walks the grid greedily. Each cell takes the least-used
// candidate from the strictest tier that has one:
//  1. subject not yet taught to the section that day and teacher free that hour
//  2. subject not yet taught to the section that day
//  3. any candidate
func assignSlots(grid slotGrid) assignmentResult {
	tracker := newConflictTracker()
	result := assignmentResult{placements: make([]placement, 0, grid.size())}

	for _, cell := range grid.cells() {
		candidates := grid.candidates[cell.Section]
		if len(candidates) == 0 {
			result.skipped = append(result.skipped, dto.SkippedCoordinate{
				DayOfWeek: cell.Day,
				Hour:      cell.Hour,
				Section:   cell.Section,
				Reason:    reasonNoUnits,
			})
			continue
		}

		tier := tierStrict
		unit, ok := pickLeastUsed(candidates, tracker, func(u teachableUnit) bool {
			return !tracker.subjectUsed(cell.Section, cell.Day, u.SubjectID) && !tracker.teacherBusy(cell.Day, cell.Hour, u.TeacherID)
		})
		if !ok {
			tier = tierRelaxedTeacher
			unit, ok = pickLeastUsed(candidates, tracker, func(u teachableUnit) bool {
				return !tracker.subjectUsed(cell.Section, cell.Day, u.SubjectID)
			})
		}
		if !ok {
			tier = tierLastResort
			unit, _ = pickLeastUsed(candidates, tracker, nil)
		}

		tracker.commit(cell, unit)
		result.placements = append(result.placements, placement{cell: cell, unit: unit, tier: tier})
		switch tier {
		case tierStrict:
			result.stats.Strict++
		case tierRelaxedTeacher:
			result.stats.RelaxedTeacher++
		default:
			result.stats.LastResort++
		}
	}
	return result
}

// pickLeastUsed returns the first candidate, in catalog order, with the lowest
// usage count among those accepted by allow.
func pickLeastUsed(candidates []teachableUnit, tracker *conflictTracker, allow func(teachableUnit) bool) (teachableUnit, bool) {
	var (
		best   teachableUnit
		found  bool
		lowest int
	)
	for _, u := range candidates {
		if allow != nil && !allow(u) {
			continue
		}
		if n := tracker.uses(u); !found || n < lowest {
			best, lowest, found = u, n, true
		}
	}
	return best, found
}
