package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/scolaris/emploi-api/internal/dto"
	"github.com/scolaris/emploi-api/internal/models"
	"github.com/scolaris/emploi-api/pkg/config"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
)

type queryTemplateReader interface {
	ActiveForClass(ctx context.Context, classID string, asOf time.Time) (*models.TimetableTemplate, error)
}

type querySlotReader interface {
	ListDetailByTemplate(ctx context.Context, templateID string) ([]models.SlotDetail, error)
	ListDetailForTeacher(ctx context.Context, teacherID string) ([]models.SlotDetail, error)
}

type viewCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type cacheLookupRecorder interface {
	RecordCacheLookup(hit bool)
}

// ActiveTimetable is the resolved active template for a class plus its slots.
type ActiveTimetable struct {
	Template models.TimetableTemplate `json:"template"`
	Slots    []dto.SlotView           `json:"slots"`
}

// TimetableQueryService serves the read-side projections. Pure reads; the
// academic period is always an explicit parameter, never ambient state.
type TimetableQueryService struct {
	templates queryTemplateReader
	slots     querySlotReader
	cache     viewCache
	metrics   cacheLookupRecorder
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewTimetableQueryService wires the query-side dependencies. Cache is
// optional; a nil cache disables memoisation.
func NewTimetableQueryService(
	templates queryTemplateReader,
	slots querySlotReader,
	cache viewCache,
	metrics cacheLookupRecorder,
	cfg config.ViewsConfig,
	logger *zap.Logger,
) *TimetableQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TimetableQueryService{
		templates: templates,
		slots:     slots,
		cache:     cache,
		metrics:   metrics,
		cacheTTL:  ttl,
		logger:    logger,
	}
}

// ActiveTemplateForClass resolves the published template with the latest
// effective_from not after asOf. Returns nil when the class has none.
func (s *TimetableQueryService) ActiveTemplateForClass(ctx context.Context, classID string, asOf time.Time) (*ActiveTimetable, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}

	key := fmt.Sprintf("views:class:%s:active:%s", classID, asOf.Format("2006-01-02"))
	var cached ActiveTimetable
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	template, err := s.templates.ActiveForClass(ctx, classID, asOf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active template")
	}
	details, err := s.slots.ListDetailByTemplate(ctx, template.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active template slots")
	}

	result := &ActiveTimetable{Template: *template, Slots: make([]dto.SlotView, 0, len(details))}
	for _, detail := range details {
		result.Slots = append(result.Slots, dto.NewSlotView(detail))
	}
	s.cacheSet(ctx, key, result)
	return result, nil
}

// DaySlotsForTeacher returns the teacher's slots on a concrete date. Sundays
// are always empty; only each class's active template contributes.
func (s *TimetableQueryService) DaySlotsForTeacher(ctx context.Context, teacherID string, date time.Time) ([]dto.SlotView, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}

	key := fmt.Sprintf("views:teacher:%s:day:%s", teacherID, date.Format("2006-01-02"))
	var cached []dto.SlotView
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	details, err := s.teacherDetails(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	views := projectDay(details, date)
	s.cacheSet(ctx, key, views)
	return views, nil
}

// WeekEventsForTeacher expands the teacher's active slots over the seven days
// starting at weekStart into dated events.
func (s *TimetableQueryService) WeekEventsForTeacher(ctx context.Context, teacherID string, weekStart time.Time) ([]dto.EventView, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}

	key := fmt.Sprintf("views:teacher:%s:week:%s", teacherID, weekStart.Format("2006-01-02"))
	var cached []dto.EventView
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	details, err := s.teacherDetails(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	events := make([]dto.EventView, 0, len(details))
	for offset := 0; offset < 7; offset++ {
		date := weekStart.AddDate(0, 0, offset)
		for _, view := range projectDay(details, date) {
			events = append(events, dto.EventView{SlotView: view, Date: date.Format("2006-01-02")})
		}
	}
	s.cacheSet(ctx, key, events)
	return events, nil
}

// YearSlotsForTeacher returns the teacher's slots across all classes without
// a date bound. Per class only the most-recently-effective published template
// contributes.
func (s *TimetableQueryService) YearSlotsForTeacher(ctx context.Context, teacherID string) ([]dto.SlotView, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}

	details, err := s.teacherDetails(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	winners := make(map[string]templateRank)
	for _, detail := range details {
		current, ok := winners[detail.ClassID]
		candidate := templateRank{templateID: detail.TemplateID, effectiveFrom: detail.EffectiveFrom, version: detail.Version}
		if !ok || candidate.newer(current) {
			winners[detail.ClassID] = candidate
		}
	}

	views := make([]dto.SlotView, 0, len(details))
	for _, detail := range details {
		if winners[detail.ClassID].templateID != detail.TemplateID {
			continue
		}
		views = append(views, dto.NewSlotView(detail))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].DayOfWeek == views[j].DayOfWeek {
			return views[i].StartTime < views[j].StartTime
		}
		return views[i].DayOfWeek < views[j].DayOfWeek
	})
	return views, nil
}

func (s *TimetableQueryService) teacherDetails(ctx context.Context, teacherID string) ([]models.SlotDetail, error) {
	details, err := s.slots.ListDetailForTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher slots")
	}
	return details, nil
}

func (s *TimetableQueryService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(err == nil)
	}
	if err == nil {
		return true
	}
	if !appErrors.HasCode(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("view cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *TimetableQueryService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("view cache write failed", zap.String("key", key), zap.Error(err))
	}
}

type templateRank struct {
	templateID    string
	effectiveFrom time.Time
	version       int
}

func (r templateRank) newer(other templateRank) bool {
	if !r.effectiveFrom.Equal(other.effectiveFrom) {
		return r.effectiveFrom.After(other.effectiveFrom)
	}
	return r.version > other.version
}

// projectDay filters slot details down to the ones active on a concrete date.
func projectDay(details []models.SlotDetail, date time.Time) []dto.SlotView {
	day := isoDayOfWeek(date)
	if day == 0 {
		return []dto.SlotView{}
	}

	// Resolve activeness per class for this date first.
	winners := make(map[string]templateRank)
	for _, detail := range details {
		if !validOn(detail, date) {
			continue
		}
		current, ok := winners[detail.ClassID]
		candidate := templateRank{templateID: detail.TemplateID, effectiveFrom: detail.EffectiveFrom, version: detail.Version}
		if !ok || candidate.newer(current) {
			winners[detail.ClassID] = candidate
		}
	}

	views := make([]dto.SlotView, 0)
	for _, detail := range details {
		if detail.DayOfWeek != day || !validOn(detail, date) {
			continue
		}
		if winners[detail.ClassID].templateID != detail.TemplateID {
			continue
		}
		views = append(views, dto.NewSlotView(detail))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].StartTime < views[j].StartTime
	})
	return views
}

func validOn(detail models.SlotDetail, date time.Time) bool {
	if date.Before(detail.PeriodStart) || date.After(detail.PeriodEnd) {
		return false
	}
	return !date.Before(detail.EffectiveFrom)
}

// isoDayOfWeek maps time.Weekday to the 1=Monday..6=Saturday convention used
// by slots. Sunday returns 0 and never matches.
func isoDayOfWeek(date time.Time) int {
	switch date.Weekday() {
	case time.Sunday:
		return 0
	default:
		return int(date.Weekday())
	}
}
