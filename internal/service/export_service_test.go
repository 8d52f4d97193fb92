package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/emploi-api/internal/models"
	"github.com/scolaris/emploi-api/pkg/config"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
)

type exportFixture struct {
	class    *models.Class
	template *models.TimetableTemplate
	details  []models.SlotDetail
}

func (f *exportFixture) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if f.class == nil || f.class.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.class, nil
}

func (f *exportFixture) ActiveForClass(ctx context.Context, classID string, asOf time.Time) (*models.TimetableTemplate, error) {
	if f.template == nil {
		return nil, sql.ErrNoRows
	}
	return f.template, nil
}

func (f *exportFixture) ListDetailByTemplate(ctx context.Context, templateID string) ([]models.SlotDetail, error) {
	return f.details, nil
}

func newExportFixture() *exportFixture {
	roomCode := "R1"
	detail := slotDetail("slot-1", "class-1", "tpl-1", "2025-09-01", 3, 1, "08:00", "10:00")
	detail.RoomCode = &roomCode
	return &exportFixture{
		class:    &models.Class{ID: "class-1", Name: "6A", Active: true},
		template: &models.TimetableTemplate{ID: "tpl-1", ClassID: "class-1", Version: 3, Status: models.TemplateStatusPublished},
		details:  []models.SlotDetail{detail},
	}
}

func newExportService(t *testing.T, fixture *exportFixture, enabled bool) *ExportService {
	t.Helper()
	svc, err := NewExportService(fixture, fixture, fixture, testTimetableConfig(), config.ExportsConfig{Enabled: enabled}, nil)
	require.NoError(t, err)
	return svc
}

func TestExportServiceRendersCSVGrid(t *testing.T) {
	svc := newExportService(t, newExportFixture(), true)

	file, err := svc.Export(context.Background(), "class-1", "csv", date("2025-12-01"))
	require.NoError(t, err)
	assert.Equal(t, "timetable_6a_v3.csv", file.FileName)
	assert.Equal(t, "text/csv", file.ContentType)

	content := string(file.Content)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	assert.Equal(t, "Time,Monday,Tuesday,Wednesday,Thursday,Friday,Saturday", strings.TrimSpace(lines[0]))
	// A two-block slot fills both rows it covers.
	assert.Contains(t, content, "08:00-09:00")
	assert.Contains(t, content, "09:00-10:00")
	assert.Equal(t, 2, strings.Count(content, "Mathematics / Alia (R1)"))
	// The carved-out lunch row exists but stays empty.
	assert.Contains(t, content, "13:00-14:00")
	assert.NotContains(t, content, "12:00-13:00")
}

func TestExportServiceRendersPDF(t *testing.T) {
	svc := newExportService(t, newExportFixture(), true)

	file, err := svc.Export(context.Background(), "class-1", "pdf", date("2025-12-01"))
	require.NoError(t, err)
	assert.Equal(t, "timetable_6a_v3.pdf", file.FileName)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Content), "%PDF"))
}

func TestExportServiceUnknownFormat(t *testing.T) {
	svc := newExportService(t, newExportFixture(), true)

	_, err := svc.Export(context.Background(), "class-1", "xlsx", date("2025-12-01"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestExportServiceNoActiveTimetable(t *testing.T) {
	fixture := newExportFixture()
	fixture.template = nil
	svc := newExportService(t, fixture, true)

	_, err := svc.Export(context.Background(), "class-1", "csv", date("2025-12-01"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	assert.Contains(t, err.Error(), "no active timetable")
}

func TestExportServiceUnknownClass(t *testing.T) {
	svc := newExportService(t, newExportFixture(), true)

	_, err := svc.Export(context.Background(), "missing", "csv", date("2025-12-01"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestExportServiceDisabled(t *testing.T) {
	svc := newExportService(t, newExportFixture(), false)

	_, err := svc.Export(context.Background(), "class-1", "csv", date("2025-12-01"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}
