package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/emploi-api/internal/service"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
)

type timetableExporterMock struct {
	file *service.ExportFile
	err  error
}

func (m *timetableExporterMock) Export(ctx context.Context, classID, format string, asOf time.Time) (*service.ExportFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.file, nil
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &timetableExporterMock{file: &service.ExportFile{
		FileName:    "timetable_6a_v3.csv",
		ContentType: "text/csv",
		Content:     []byte("Time,Monday\n"),
	}}
	handler := NewExportHandler(exporter)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = getRequest("/classes/class-1/timetable/export?format=csv")
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="timetable_6a_v3.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "Time,Monday\n", w.Body.String())
}

func TestExportHandlerNoActiveTimetable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &timetableExporterMock{err: appErrors.Clone(appErrors.ErrNotFound, "class has no active timetable")}
	handler := NewExportHandler(exporter)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = getRequest("/classes/class-1/timetable/export?format=pdf")
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.Export(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerBadAsOf(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&timetableExporterMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = getRequest("/classes/class-1/timetable/export?format=csv&asOf=soon")
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
