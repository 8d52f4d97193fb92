package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scolaris/emploi-api/internal/service"
	"github.com/scolaris/emploi-api/pkg/response"
)

type timetableExporter interface {
	Export(ctx context.Context, classID, format string, asOf time.Time) (*service.ExportFile, error)
}

// ExportHandler serves timetable downloads.
type ExportHandler struct {
	exports timetableExporter
}

// NewExportHandler creates a new handler.
func NewExportHandler(exports timetableExporter) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Export godoc
// @Summary Download the active timetable of a class
// @Description Weekly grid rendered as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param id path string true "Class id"
// @Param format query string true "csv or pdf"
// @Param asOf query string false "Resolution date YYYY-MM-DD, defaults to today"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/timetable/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	asOf, err := dateQuery(c, "asOf", time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exports.Export(c.Request.Context(), c.Param("id"), c.Query("format"), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
