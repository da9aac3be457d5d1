package service

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type subjectCatalogReader interface {
	ListCatalogByScope(ctx context.Context, scope models.Scope) ([]models.SubjectCatalogEntry, error)
}

// teachableUnit is a subject with an approved teacher and at least one section.
type teachableUnit struct {
	SubjectID   string
	SubjectCode string
	SubjectName string
	TeacherID   string
	TeacherName string
	Sections    []string
}

func (u teachableUnit) key() string {
	return u.SubjectID + ":" + u.TeacherID
}

func (u teachableUnit) teaches(section string) bool {
	for _, s := range u.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// NormalizeScope cleans raw scope input: URL-decodes, trims and collapses
// internal whitespace on every component.
func NormalizeScope(department, semester, academicYear string) models.Scope {
	return models.Scope{
		Department:   normalizeScopeValue(department),
		Semester:     normalizeScopeValue(semester),
		AcademicYear: normalizeScopeValue(academicYear),
	}
}

func normalizeScopeValue(raw string) string {
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.Join(strings.Fields(raw), " ")
}

// loadTeachableUnits reads the scope catalog and keeps the subjects that can be
// scheduled. Catalog order is preserved.
func loadTeachableUnits(ctx context.Context, reader subjectCatalogReader, scope models.Scope) ([]teachableUnit, error) {
	entries, err := reader.ListCatalogByScope(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject catalog")
	}
	if len(entries) == 0 {
		return nil, appErrors.WithDetails(appErrors.ErrScopeNotFound, "", map[string]interface{}{"scope": scope})
	}

	units := make([]teachableUnit, 0, len(entries))
	diagnostics := make([]dto.SubjectDiagnostic, 0)
	for _, entry := range entries {
		sections := cleanSections(entry.Sections)
		diag := dto.SubjectDiagnostic{
			SubjectID:          entry.ID,
			SubjectCode:        entry.Code,
			SubjectName:        entry.Name,
			MissingTeacher:     entry.TeacherID == nil || *entry.TeacherID == "",
			TeacherNotApproved: entry.TeacherID != nil && *entry.TeacherID != "" && !entry.TeacherApproved,
			NoSections:         len(sections) == 0,
		}
		if diag.MissingTeacher || diag.TeacherNotApproved || diag.NoSections {
			diagnostics = append(diagnostics, diag)
			continue
		}
		unit := teachableUnit{
			SubjectID:   entry.ID,
			SubjectCode: entry.Code,
			SubjectName: entry.Name,
			TeacherID:   *entry.TeacherID,
			Sections:    sections,
		}
		if entry.TeacherName != nil {
			unit.TeacherName = *entry.TeacherName
		}
		units = append(units, unit)
	}

	if len(units) == 0 {
		return nil, appErrors.WithDetails(appErrors.ErrInsufficient, "", map[string]interface{}{
			"scope":    scope,
			"subjects": diagnostics,
		})
	}
	return units, nil
}

// cleanSections trims and dedupes section labels, keeping first-seen order.
func cleanSections(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	sections := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		sections = append(sections, s)
	}
	return sections
}

// sectionUnion returns every section taught by the units, sorted.
func sectionUnion(units []teachableUnit) []string {
	seen := make(map[string]struct{})
	for _, u := range units {
		for _, s := range u.Sections {
			seen[s] = struct{}{}
		}
	}
	sections := make([]string, 0, len(seen))
	for s := range seen {
		sections = append(sections, s)
	}
	sort.Strings(sections)
	return sections
}
