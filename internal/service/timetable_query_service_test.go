package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/emploi-api/internal/models"
	"github.com/scolaris/emploi-api/pkg/config"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
)

type queryTemplateStub struct {
	template *models.TimetableTemplate
	err      error
}

func (s *queryTemplateStub) ActiveForClass(ctx context.Context, classID string, asOf time.Time) (*models.TimetableTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.template, nil
}

type querySlotStub struct {
	details      []models.SlotDetail
	teacherCalls int
}

func (s *querySlotStub) ListDetailByTemplate(ctx context.Context, templateID string) ([]models.SlotDetail, error) {
	var out []models.SlotDetail
	for _, d := range s.details {
		if d.TemplateID == templateID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *querySlotStub) ListDetailForTeacher(ctx context.Context, teacherID string) ([]models.SlotDetail, error) {
	s.teacherCalls++
	return s.details, nil
}

// viewCacheStub mirrors the Redis-backed cache with an in-memory map.
type viewCacheStub struct {
	entries map[string][]byte
	sets    []string
}

func newViewCacheStub() *viewCacheStub {
	return &viewCacheStub{entries: map[string][]byte{}}
}

func (c *viewCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.Clone(appErrors.ErrCacheMiss, "")
	}
	return json.Unmarshal(raw, dest)
}

func (c *viewCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	c.sets = append(c.sets, key)
	return nil
}

type cacheRecorderStub struct {
	hits   int
	misses int
}

func (m *cacheRecorderStub) RecordCacheLookup(hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func date(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func slotDetail(slotID, classID, templateID, effectiveFrom string, version, day int, start, end string) models.SlotDetail {
	return models.SlotDetail{
		TimetableSlot: models.TimetableSlot{
			ID: slotID, TemplateID: templateID, DayOfWeek: day,
			StartTime: start, EndTime: end,
			SubjectID: "subj-math", TeacherID: "teacher-1",
			Status: models.SlotStatusActive,
		},
		SubjectName:   "Mathematics",
		SubjectCode:   "MATH",
		TeacherName:   "Alia",
		ClassID:       classID,
		ClassName:     classID,
		PeriodStart:   date("2025-09-01"),
		PeriodEnd:     date("2026-06-30"),
		EffectiveFrom: date(effectiveFrom),
		Version:       version,
	}
}

func newQueryService(slots *querySlotStub, cache *viewCacheStub, metrics *cacheRecorderStub) *TimetableQueryService {
	var vc viewCache
	if cache != nil {
		vc = cache
	}
	var rec cacheLookupRecorder
	if metrics != nil {
		rec = metrics
	}
	return NewTimetableQueryService(&queryTemplateStub{}, slots, vc, rec, config.ViewsConfig{CacheTTL: time.Minute}, nil)
}

func TestQueryServiceDaySupersession(t *testing.T) {
	// Two published versions for the same class; the January template takes
	// over once its effective_from is reached.
	slots := &querySlotStub{details: []models.SlotDetail{
		slotDetail("slot-sep", "class-1", "tpl-sep", "2025-09-01", 1, 1, "08:00", "09:00"),
		slotDetail("slot-jan", "class-1", "tpl-jan", "2026-01-15", 2, 1, "08:00", "09:00"),
	}}
	svc := newQueryService(slots, nil, nil)

	// 2025-12-01 is a Monday before the January cutover.
	views, err := svc.DaySlotsForTeacher(context.Background(), "teacher-1", date("2025-12-01"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "slot-sep", views[0].ID)

	// 2026-02-02 is a Monday after it.
	views, err = svc.DaySlotsForTeacher(context.Background(), "teacher-1", date("2026-02-02"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "slot-jan", views[0].ID)
}

func TestQueryServiceDaySundayEmpty(t *testing.T) {
	slots := &querySlotStub{details: []models.SlotDetail{
		slotDetail("slot-sep", "class-1", "tpl-sep", "2025-09-01", 1, 1, "08:00", "09:00"),
	}}
	svc := newQueryService(slots, nil, nil)

	// 2025-12-07 is a Sunday.
	views, err := svc.DaySlotsForTeacher(context.Background(), "teacher-1", date("2025-12-07"))
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestQueryServiceDayOutsidePeriod(t *testing.T) {
	slots := &querySlotStub{details: []models.SlotDetail{
		slotDetail("slot-sep", "class-1", "tpl-sep", "2025-09-01", 1, 1, "08:00", "09:00"),
	}}
	svc := newQueryService(slots, nil, nil)

	// A Monday before the period starts.
	views, err := svc.DaySlotsForTeacher(context.Background(), "teacher-1", date("2025-08-25"))
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestQueryServiceWeekMidCutover(t *testing.T) {
	// The January template becomes effective on Thursday of the queried week,
	// so Monday still shows the September slots and Thursday the new ones.
	slots := &querySlotStub{details: []models.SlotDetail{
		slotDetail("sep-mon", "class-1", "tpl-sep", "2025-09-01", 1, 1, "08:00", "09:00"),
		slotDetail("sep-thu", "class-1", "tpl-sep", "2025-09-01", 1, 4, "10:00", "11:00"),
		slotDetail("jan-thu", "class-1", "tpl-jan", "2026-01-15", 2, 4, "14:00", "15:00"),
	}}
	svc := newQueryService(slots, nil, nil)

	// Week of Monday 2026-01-12; 2026-01-15 is its Thursday.
	events, err := svc.WeekEventsForTeacher(context.Background(), "teacher-1", date("2026-01-12"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "sep-mon", events[0].ID)
	assert.Equal(t, "2026-01-12", events[0].Date)
	assert.Equal(t, "jan-thu", events[1].ID)
	assert.Equal(t, "2026-01-15", events[1].Date)
}

func TestQueryServiceYearPerClassSupersession(t *testing.T) {
	slots := &querySlotStub{details: []models.SlotDetail{
		slotDetail("c1-v1", "class-1", "tpl-1a", "2025-09-01", 1, 2, "08:00", "09:00"),
		slotDetail("c1-v2", "class-1", "tpl-1b", "2026-01-15", 2, 3, "08:00", "09:00"),
		slotDetail("c2-v1", "class-2", "tpl-2a", "2025-09-01", 1, 1, "10:00", "11:00"),
	}}
	svc := newQueryService(slots, nil, nil)

	views, err := svc.YearSlotsForTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	// Sorted by day then start; class-1's superseded version is gone.
	assert.Equal(t, "c2-v1", views[0].ID)
	assert.Equal(t, "c1-v2", views[1].ID)
}

func TestQueryServiceYearVersionTieBreak(t *testing.T) {
	// Same effective_from; the higher version wins.
	slots := &querySlotStub{details: []models.SlotDetail{
		slotDetail("old", "class-1", "tpl-old", "2025-09-01", 1, 1, "08:00", "09:00"),
		slotDetail("new", "class-1", "tpl-new", "2025-09-01", 2, 1, "09:00", "10:00"),
	}}
	svc := newQueryService(slots, nil, nil)

	views, err := svc.YearSlotsForTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "new", views[0].ID)
}

func TestQueryServiceDayViewIsCached(t *testing.T) {
	slots := &querySlotStub{details: []models.SlotDetail{
		slotDetail("slot-sep", "class-1", "tpl-sep", "2025-09-01", 1, 1, "08:00", "09:00"),
	}}
	cache := newViewCacheStub()
	metrics := &cacheRecorderStub{}
	svc := newQueryService(slots, cache, metrics)

	first, err := svc.DaySlotsForTeacher(context.Background(), "teacher-1", date("2025-12-01"))
	require.NoError(t, err)
	second, err := svc.DaySlotsForTeacher(context.Background(), "teacher-1", date("2025-12-01"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, slots.teacherCalls, "second read must come from the cache")
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 1, metrics.misses)
	assert.Equal(t, []string{"views:teacher:teacher-1:day:2025-12-01"}, cache.sets)
}

func TestQueryServiceActiveTemplateNoneIsNil(t *testing.T) {
	svc := NewTimetableQueryService(&queryTemplateStub{err: sql.ErrNoRows}, &querySlotStub{}, nil, nil, config.ViewsConfig{}, nil)

	active, err := svc.ActiveTemplateForClass(context.Background(), "class-1", date("2025-12-01"))
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestQueryServiceValidatesIDs(t *testing.T) {
	svc := newQueryService(&querySlotStub{}, nil, nil)

	_, err := svc.DaySlotsForTeacher(context.Background(), "", date("2025-12-01"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	_, err = svc.ActiveTemplateForClass(context.Background(), "", date("2025-12-01"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}
