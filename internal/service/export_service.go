package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scolaris/emploi-api/internal/models"
	"github.com/scolaris/emploi-api/pkg/config"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
	"github.com/scolaris/emploi-api/pkg/export"
)

type exportClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type exportTemplateReader interface {
	ActiveForClass(ctx context.Context, classID string, asOf time.Time) (*models.TimetableTemplate, error)
}

type exportSlotReader interface {
	ListDetailByTemplate(ctx context.Context, templateID string) ([]models.SlotDetail, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

var dayHeaders = map[int]string{
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
	6: "Saturday",
}

// ExportService renders a class's active timetable as a weekly grid.
type ExportService struct {
	classes   exportClassReader
	templates exportTemplateReader
	slots     exportSlotReader
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	shape     *weekShape
	enabled   bool
	logger    *zap.Logger
}

// NewExportService wires export dependencies.
func NewExportService(
	classes exportClassReader,
	templates exportTemplateReader,
	slots exportSlotReader,
	timetableCfg config.TimetableConfig,
	exportsCfg config.ExportsConfig,
	logger *zap.Logger,
) (*ExportService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	shape, err := newWeekShape(timetableCfg)
	if err != nil {
		return nil, fmt.Errorf("timetable configuration: %w", err)
	}
	return &ExportService{
		classes:   classes,
		templates: templates,
		slots:     slots,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		shape:     shape,
		enabled:   exportsCfg.Enabled,
		logger:    logger,
	}, nil
}

// Export renders the class's active timetable in the requested format.
func (s *ExportService) Export(ctx context.Context, classID, format string, asOf time.Time) (*ExportFile, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	template, err := s.templates.ActiveForClass(ctx, classID, asOf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class has no active timetable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active template")
	}
	details, err := s.slots.ListDetailByTemplate(ctx, template.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list template slots")
	}

	grid := s.buildGrid(details)
	title := fmt.Sprintf("%s timetable v%d", class.Name, template.Version)
	base := fmt.Sprintf("timetable_%s_v%d", strings.ReplaceAll(strings.ToLower(class.Name), " ", "_"), template.Version)

	switch format {
	case "csv":
		content, err := s.csv.Render(grid)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{FileName: base + ".csv", ContentType: "text/csv", Content: content}, nil
	default:
		content, err := s.pdf.Render(grid, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{FileName: base + ".pdf", ContentType: "application/pdf", Content: content}, nil
	}
}

// buildGrid lays slots onto the block raster, one row per block, one column
// per active day. Multi-block slots repeat over the rows they cover.
func (s *ExportService) buildGrid(details []models.SlotDetail) export.Grid {
	headers := []string{"Time"}
	for _, day := range s.shape.days {
		headers = append(headers, dayHeaders[day])
	}

	rows := make([]map[string]string, 0, len(s.shape.blockStarts))
	for _, blockStart := range s.shape.blockStarts {
		blockEnd := blockStart + s.shape.blockMin
		row := map[string]string{
			"Time": fmt.Sprintf("%s-%s", formatClock(blockStart), formatClock(blockEnd)),
		}
		for _, detail := range details {
			start, end, err := parseSlotRange(detail.StartTime, detail.EndTime)
			if err != nil {
				continue
			}
			if start > blockStart || end < blockEnd {
				continue
			}
			header, ok := dayHeaders[detail.DayOfWeek]
			if !ok {
				continue
			}
			cell := fmt.Sprintf("%s / %s", detail.SubjectName, detail.TeacherName)
			if detail.RoomCode != nil {
				cell = fmt.Sprintf("%s (%s)", cell, *detail.RoomCode)
			}
			row[header] = cell
		}
		rows = append(rows, row)
	}
	return export.Grid{Headers: headers, Rows: rows}
}
