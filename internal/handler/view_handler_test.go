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

	"github.com/scolaris/emploi-api/internal/dto"
	"github.com/scolaris/emploi-api/internal/service"
)

type timetableQueriesMock struct {
	active    *service.ActiveTimetable
	slots     []dto.SlotView
	events    []dto.EventView
	lastAsOf  time.Time
	lastDates []time.Time
}

func (m *timetableQueriesMock) ActiveTemplateForClass(ctx context.Context, classID string, asOf time.Time) (*service.ActiveTimetable, error) {
	m.lastAsOf = asOf
	return m.active, nil
}

func (m *timetableQueriesMock) DaySlotsForTeacher(ctx context.Context, teacherID string, date time.Time) ([]dto.SlotView, error) {
	m.lastDates = append(m.lastDates, date)
	return m.slots, nil
}

func (m *timetableQueriesMock) WeekEventsForTeacher(ctx context.Context, teacherID string, weekStart time.Time) ([]dto.EventView, error) {
	m.lastDates = append(m.lastDates, weekStart)
	return m.events, nil
}

func (m *timetableQueriesMock) YearSlotsForTeacher(ctx context.Context, teacherID string) ([]dto.SlotView, error) {
	return m.slots, nil
}

func getRequest(path string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	return req
}

func TestViewHandlerTeacherDayRequiresDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewViewHandler(&timetableQueriesMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = getRequest("/teachers/teacher-1/slots/day")
	c.Params = gin.Params{{Key: "id", Value: "teacher-1"}}

	handler.TeacherDay(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewHandlerTeacherDayRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewViewHandler(&timetableQueriesMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = getRequest("/teachers/teacher-1/slots/day?date=01-12-2025")
	c.Params = gin.Params{{Key: "id", Value: "teacher-1"}}

	handler.TeacherDay(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewHandlerTeacherDay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queries := &timetableQueriesMock{slots: []dto.SlotView{{ID: "slot-1", StartTime: "08:00"}}}
	handler := NewViewHandler(queries)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = getRequest("/teachers/teacher-1/slots/day?date=2025-12-01")
	c.Params = gin.Params{{Key: "id", Value: "teacher-1"}}

	handler.TeacherDay(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, queries.lastDates, 1)
	assert.Equal(t, "2025-12-01", queries.lastDates[0].Format("2006-01-02"))
	assert.Contains(t, w.Body.String(), "slot-1")
}

func TestViewHandlerTeacherWeekRequiresStart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewViewHandler(&timetableQueriesMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = getRequest("/teachers/teacher-1/slots/week")
	c.Params = gin.Params{{Key: "id", Value: "teacher-1"}}

	handler.TeacherWeek(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewHandlerActiveForClassDefaultsToToday(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queries := &timetableQueriesMock{}
	handler := NewViewHandler(queries)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = getRequest("/classes/class-1/timetable/active")
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.ActiveForClass(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, queries.lastAsOf.IsZero())
	assert.WithinDuration(t, time.Now(), queries.lastAsOf, 24*time.Hour)
}

func TestViewHandlerActiveForClassWithAsOf(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queries := &timetableQueriesMock{}
	handler := NewViewHandler(queries)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = getRequest("/classes/class-1/timetable/active?asOf=2025-12-01")
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.ActiveForClass(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-12-01", queries.lastAsOf.Format("2006-01-02"))
}
