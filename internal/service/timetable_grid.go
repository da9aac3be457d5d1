package service

import (
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// gridCell is one (day, hour, section) coordinate.
type gridCell struct {
	Day     string
	Hour    string
	Section string
}

// slotGrid is the cross product of configured days, hours and scope sections.
type slotGrid struct {
	days       []string
	hours      []string
	sections   []string
	candidates map[string][]teachableUnit
}

// newSlotGrid builds the grid for units. When requested is non-empty it pins
// the section list instead of deriving it from the catalog.
func newSlotGrid(days, hours []string, units []teachableUnit, requested []string) slotGrid {
	sections := sectionUnion(units)
	if len(requested) > 0 {
		sections = cleanSections(requested)
		sort.Strings(sections)
	}

	candidates := make(map[string][]teachableUnit, len(sections))
	for _, section := range sections {
		for _, u := range units {
			if u.teaches(section) {
				candidates[section] = append(candidates[section], u)
			}
		}
	}
	return slotGrid{days: days, hours: hours, sections: sections, candidates: candidates}
}

func (g slotGrid) size() int {
	return len(g.days) * len(g.hours) * len(g.sections)
}

// cells visits day first, then hour, then section.
func (g slotGrid) cells() []gridCell {
	cells := make([]gridCell, 0, g.size())
	for _, day := range g.days {
		for _, hour := range g.hours {
			for _, section := range g.sections {
				cells = append(cells, gridCell{Day: day, Hour: hour, Section: section})
			}
		}
	}
	return cells
}

// supply reports the candidate unit count per section.
func (g slotGrid) supply() []dto.SectionSupply {
	out := make([]dto.SectionSupply, 0, len(g.sections))
	for _, section := range g.sections {
		out = append(out, dto.SectionSupply{Section: section, UnitCount: len(g.candidates[section])})
	}
	return out
}

// ensureCoverable fails when any grid section has no candidate unit.
func (g slotGrid) ensureCoverable() error {
	var missing []dto.UncoverableSection
	for _, section := range g.sections {
		if len(g.candidates[section]) == 0 {
			missing = append(missing, dto.UncoverableSection{Section: section})
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrUncoverable, "", map[string]interface{}{"sections": missing})
}
