package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/emploi-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func templateColumns() []string {
	return []string{"id", "class_id", "period_start", "period_end", "effective_from", "status", "version", "generated_by", "meta", "created_at", "updated_at"}
}

func TestTemplateRepositoryCreateVersionedAssignsNextVersion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTemplateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_templates WHERE class_id = $1`)).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectExec("INSERT INTO timetable_templates").
		WillReturnResult(sqlmock.NewResult(0, 1))

	template := &models.TimetableTemplate{
		ClassID:       "class-1",
		PeriodStart:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		EffectiveFrom: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		GeneratedBy:   "admin",
	}
	err := repo.CreateVersioned(context.Background(), nil, template)
	require.NoError(t, err)

	assert.Equal(t, 3, template.Version)
	assert.NotEmpty(t, template.ID)
	assert.Equal(t, models.TemplateStatusDraft, template.Status)
	assert.JSONEq(t, `{}`, string(template.Meta))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryCreateVersionedRequiresClass(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewTemplateRepository(db)

	err := repo.CreateVersioned(context.Background(), nil, &models.TimetableTemplate{})
	require.Error(t, err)
}

func TestTemplateRepositoryActiveForClass(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTemplateRepository(db)

	asOf := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	effective := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(templateColumns()).
		AddRow("tpl-1", "class-1", effective, effective.AddDate(0, 10, 0), effective, "PUBLISHED", 2, "admin", []byte(`{}`), effective, effective)

	mock.ExpectQuery("FROM timetable_templates").
		WithArgs("class-1", models.TemplateStatusPublished, asOf).
		WillReturnRows(rows)

	template, err := repo.ActiveForClass(context.Background(), "class-1", asOf)
	require.NoError(t, err)
	assert.Equal(t, "tpl-1", template.ID)
	assert.Equal(t, 2, template.Version)
	assert.Equal(t, models.TemplateStatusPublished, template.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryActiveForClassNone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTemplateRepository(db)

	mock.ExpectQuery("FROM timetable_templates").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ActiveForClass(context.Background(), "class-1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTemplateRepositoryUpdateStatusNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTemplateRepository(db)

	mock.ExpectExec("UPDATE timetable_templates SET status").
		WithArgs(models.TemplateStatusPublished, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), nil, "missing", models.TemplateStatusPublished)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTemplateRepository(db)

	mock.ExpectExec("DELETE FROM timetable_templates").
		WithArgs("tpl-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "tpl-1"))

	mock.ExpectExec("DELETE FROM timetable_templates").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryListByClassOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTemplateRepository(db)

	effective := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(templateColumns()).
		AddRow("tpl-2", "class-1", effective, effective, effective, "DRAFT", 2, "admin", []byte(`{}`), effective, effective).
		AddRow("tpl-1", "class-1", effective, effective, effective, "PUBLISHED", 1, "admin", []byte(`{}`), effective, effective)

	mock.ExpectQuery("ORDER BY version DESC").
		WithArgs("class-1").
		WillReturnRows(rows)

	templates, err := repo.ListByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, 2, templates[0].Version)
	assert.Equal(t, 1, templates[1].Version)
}
