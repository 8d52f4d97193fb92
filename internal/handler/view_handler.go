package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scolaris/emploi-api/internal/dto"
	"github.com/scolaris/emploi-api/internal/service"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
	"github.com/scolaris/emploi-api/pkg/response"
)

type timetableQueries interface {
	ActiveTemplateForClass(ctx context.Context, classID string, asOf time.Time) (*service.ActiveTimetable, error)
	DaySlotsForTeacher(ctx context.Context, teacherID string, date time.Time) ([]dto.SlotView, error)
	WeekEventsForTeacher(ctx context.Context, teacherID string, weekStart time.Time) ([]dto.EventView, error)
	YearSlotsForTeacher(ctx context.Context, teacherID string) ([]dto.SlotView, error)
}

// ViewHandler serves the read-side timetable projections.
type ViewHandler struct {
	queries timetableQueries
}

// NewViewHandler creates a new handler.
func NewViewHandler(queries timetableQueries) *ViewHandler {
	return &ViewHandler{queries: queries}
}

// ActiveForClass godoc
// @Summary Resolve the active timetable for a class
// @Description Latest published template with effective_from not after asOf
// @Tags Views
// @Produce json
// @Param id path string true "Class id"
// @Param asOf query string false "Resolution date YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/timetable/active [get]
func (h *ViewHandler) ActiveForClass(c *gin.Context) {
	asOf, err := dateQuery(c, "asOf", time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}

	active, err := h.queries.ActiveTemplateForClass(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, active, nil)
}

// TeacherDay godoc
// @Summary Teacher slots on a concrete date
// @Description Sundays are always empty
// @Tags Views
// @Produce json
// @Param id path string true "Teacher id"
// @Param date query string true "Date YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/slots/day [get]
func (h *ViewHandler) TeacherDay(c *gin.Context) {
	date, err := requiredDateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}

	slots, err := h.queries.DaySlotsForTeacher(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// TeacherWeek godoc
// @Summary Teacher slots over seven days as dated events
// @Tags Views
// @Produce json
// @Param id path string true "Teacher id"
// @Param start query string true "Week start date YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/slots/week [get]
func (h *ViewHandler) TeacherWeek(c *gin.Context) {
	start, err := requiredDateQuery(c, "start")
	if err != nil {
		response.Error(c, err)
		return
	}

	events, err := h.queries.WeekEventsForTeacher(c.Request.Context(), c.Param("id"), start)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// TeacherYear godoc
// @Summary Teacher slots across all classes, unbounded
// @Tags Views
// @Produce json
// @Param id path string true "Teacher id"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/slots/year [get]
func (h *ViewHandler) TeacherYear(c *gin.Context) {
	slots, err := h.queries.YearSlotsForTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

func dateQuery(c *gin.Context, name string, fallback time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback.Truncate(24 * time.Hour), nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, name+" must be YYYY-MM-DD")
	}
	return date, nil
}

func requiredDateQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, name+" is required")
	}
	return dateQuery(c, name, time.Time{})
}
