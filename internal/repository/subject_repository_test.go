package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectRepositoryListCatalogByScope(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewSubjectRepository(sqlx.NewDb(db, "sqlmock"))
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "name", "department", "semester", "academic_year", "teacher_id", "sections", "created_at", "updated_at", "teacher_name", "teacher_approved"}).
		AddRow("sub-1", "CS101", "Algorithms", "Computer Science", "3", "2024-2025", "t-1", "{A,B}", now, now, "Dr. Rao", true).
		AddRow("sub-2", "CS102", "Networks", "Computer Science", "3", "2024-2025", nil, "{}", now, now, nil, false)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN teachers t ON t.id = s.teacher_id")).
		WithArgs("Computer Science", "3", "2024-2025").
		WillReturnRows(rows)

	entries, err := repo.ListCatalogByScope(context.Background(), testScope)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"A", "B"}, []string(entries[0].Sections))
	assert.True(t, entries[0].TeacherApproved)
	assert.Nil(t, entries[1].TeacherID)
	assert.Empty(t, entries[1].Sections)
	require.NoError(t, mock.ExpectationsWereMet())
}
