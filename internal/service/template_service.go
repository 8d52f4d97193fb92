package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/scolaris/emploi-api/internal/dto"
	"github.com/scolaris/emploi-api/internal/models"
	"github.com/scolaris/emploi-api/pkg/config"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
)

type templateRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, template *models.TimetableTemplate) error
	FindByID(ctx context.Context, id string) (*models.TimetableTemplate, error)
	ListByClass(ctx context.Context, classID string) ([]models.TimetableTemplate, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TemplateStatus) error
	Delete(ctx context.Context, id string) error
}

type templateSlotRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error
	ListByTemplate(ctx context.Context, templateID string) ([]models.TimetableSlot, error)
	ListDetailByTemplate(ctx context.Context, templateID string) ([]models.SlotDetail, error)
	FindByID(ctx context.Context, id string) (*models.TimetableSlot, error)
	Update(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error
	UpdateStatus(ctx context.Context, id string, status models.SlotStatus) error
	ListBusy(ctx context.Context) ([]models.TeacherBusy, error)
}

type templateTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type viewInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type draftAllocator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest, generatedBy string) (*DraftTimetable, error)
}

type generationObserver interface {
	ObserveGeneration(outcome string, slots int, duration time.Duration)
}

// TemplateService owns the draft/published lifecycle of timetable templates
// and all slot mutations. A single mutex serialises every mutation so the
// conflict reads and the writes they guard never interleave.
type TemplateService struct {
	allocator draftAllocator
	templates templateRepository
	slots     templateSlotRepository
	teachers  templateTeacherReader
	tx        txProvider
	cache     viewInvalidator
	metrics   generationObserver
	cfg       config.TimetableConfig
	shape     *weekShape
	validator *validator.Validate
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewTemplateService wires template store dependencies.
func NewTemplateService(
	allocator draftAllocator,
	templates templateRepository,
	slots templateSlotRepository,
	teachers templateTeacherReader,
	tx txProvider,
	cache viewInvalidator,
	metrics generationObserver,
	cfg config.TimetableConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) (*TemplateService, error) {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	shape, err := newWeekShape(cfg)
	if err != nil {
		return nil, fmt.Errorf("timetable configuration: %w", err)
	}
	return &TemplateService{
		allocator: allocator,
		templates: templates,
		slots:     slots,
		teachers:  teachers,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		cfg:       cfg,
		shape:     shape,
		validator: validate,
		logger:    logger,
	}, nil
}

// Generate allocates and persists a new draft template version for a class.
func (s *TemplateService) Generate(ctx context.Context, req dto.GenerateTimetableRequest, generatedBy string) (*models.TimetableTemplate, []models.TimetableSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	draft, err := s.allocator.Generate(ctx, req, generatedBy)
	if err == nil {
		err = s.save(ctx, draft)
	}
	if s.metrics != nil {
		if err != nil {
			s.metrics.ObserveGeneration(appErrors.FromError(err).Code, 0, time.Since(started))
		} else {
			s.metrics.ObserveGeneration("success", len(draft.Slots), time.Since(started))
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return &draft.Template, draft.Slots, nil
}

// save persists template and slots atomically; version assignment happens
// inside the same transaction.
func (s *TemplateService) save(ctx context.Context, draft *DraftTimetable) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.templates.CreateVersioned(ctx, tx, &draft.Template); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable template")
		return err
	}
	for i := range draft.Slots {
		draft.Slots[i].TemplateID = draft.Template.ID
	}
	if err = s.slots.InsertBatch(ctx, tx, draft.Slots); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable slots")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return err
	}
	s.logger.Info("timetable template saved",
		zap.String("template_id", draft.Template.ID),
		zap.String("class_id", draft.Template.ClassID),
		zap.Int("version", draft.Template.Version))
	return nil
}

// Publish flips a draft to PUBLISHED. Publishing is irreversible; a second
// call fails with ALREADY_PUBLISHED and leaves slots untouched.
func (s *TemplateService) Publish(ctx context.Context, templateID string) (*models.TimetableTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	template, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template.Status == models.TemplateStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPublished, "")
	}
	if err := s.templates.UpdateStatus(ctx, nil, templateID, models.TemplateStatusPublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish template")
	}
	template.Status = models.TemplateStatusPublished
	s.invalidateViews(ctx)
	s.logger.Info("timetable template published",
		zap.String("template_id", template.ID),
		zap.String("class_id", template.ClassID),
		zap.Int("version", template.Version))
	return template, nil
}

// Delete removes a draft template and its slots. Published templates are
// immutable history and can never be deleted.
func (s *TemplateService) Delete(ctx context.Context, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	template, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if template.Status != models.TemplateStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft templates can be deleted")
	}
	if err := s.templates.Delete(ctx, templateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	return nil
}

// List returns all versions for a class, newest first.
func (s *TemplateService) List(ctx context.Context, classID string) ([]models.TimetableTemplate, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	templates, err := s.templates.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// GetSlots returns the joined slot projection for a template.
func (s *TemplateService) GetSlots(ctx context.Context, templateID string) ([]dto.SlotView, error) {
	if _, err := s.loadTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	details, err := s.slots.ListDetailByTemplate(ctx, templateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list template slots")
	}
	views := make([]dto.SlotView, 0, len(details))
	for _, detail := range details {
		views = append(views, dto.NewSlotView(detail))
	}
	return views, nil
}

// LockSlot pins a slot so regeneration carries it verbatim.
func (s *TemplateService) LockSlot(ctx context.Context, slotID string) error {
	return s.setSlotStatus(ctx, slotID, models.SlotStatusLocked)
}

// UnlockSlot releases a pinned slot back to the allocator.
func (s *TemplateService) UnlockSlot(ctx context.Context, slotID string) error {
	return s.setSlotStatus(ctx, slotID, models.SlotStatusActive)
}

func (s *TemplateService) setSlotStatus(ctx context.Context, slotID string, status models.SlotStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slotID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "slot id is required")
	}
	if err := s.slots.UpdateStatus(ctx, slotID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot status")
	}
	return nil
}

// UpdateSlot applies a manual edit and re-validates every placement invariant
// before committing. A violation fails with CONFLICT naming the invariant.
func (s *TemplateService) UpdateSlot(ctx context.Context, slotID string, req dto.UpdateSlotRequest) (*models.TimetableSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot update payload")
	}
	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}

	if req.DayOfWeek != nil {
		slot.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		slot.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		slot.EndTime = *req.EndTime
	}
	if req.TeacherID != nil {
		slot.TeacherID = *req.TeacherID
	}
	if req.RoomID != nil {
		if *req.RoomID == "" {
			slot.RoomID = nil
		} else {
			slot.RoomID = req.RoomID
		}
	}

	if err := s.validatePlacement(ctx, slot); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.slots.Update(ctx, tx, slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "timetable slot not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit slot update")
		return nil, err
	}
	s.invalidateViews(ctx)
	return slot, nil
}

// validatePlacement re-checks the geometric and overlap invariants for an
// edited slot against the current occupancy state.
func (s *TemplateService) validatePlacement(ctx context.Context, slot *models.TimetableSlot) error {
	start, end, err := parseSlotRange(slot.StartTime, slot.EndTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "startTime and endTime must be HH:MM with startTime before endTime")
	}
	if !containsDay(s.shape.days, slot.DayOfWeek) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("day %d is outside the working week", slot.DayOfWeek))
	}
	if !s.shape.aligned(start, end) || start < s.shape.dayStart || end > s.shape.dayEnd {
		return appErrors.Clone(appErrors.ErrValidation, "slot must align to the block grid within the working day")
	}
	if s.shape.insideBreak(window{start: start, end: end}) {
		return appErrors.Clone(appErrors.ErrConflict, "slot overlaps a break window")
	}

	siblings, err := s.slots.ListByTemplate(ctx, slot.TemplateID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template slots")
	}
	for _, other := range siblings {
		if other.ID == slot.ID || other.DayOfWeek != slot.DayOfWeek {
			continue
		}
		otherStart, otherEnd, err := parseSlotRange(other.StartTime, other.EndTime)
		if err != nil {
			continue
		}
		if (window{start: start, end: end}).overlaps(window{start: otherStart, end: otherEnd}) {
			return appErrors.Clone(appErrors.ErrConflict, "slot overlaps another slot of the same template")
		}
	}

	busy, err := s.slots.ListBusy(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occupancy state")
	}
	teacherMinutes := end - start
	for _, row := range busy {
		sameTemplate := row.TemplateID == slot.TemplateID
		rowStart, rowEnd, err := parseSlotRange(row.StartTime, row.EndTime)
		if err != nil {
			continue
		}
		if row.TeacherID == slot.TeacherID && !sameTemplate {
			teacherMinutes += rowEnd - rowStart
		}
		if sameTemplate || row.DayOfWeek != slot.DayOfWeek {
			continue
		}
		overlap := (window{start: start, end: end}).overlaps(window{start: rowStart, end: rowEnd})
		if overlap && row.TeacherID == slot.TeacherID {
			return appErrors.Clone(appErrors.ErrConflict, "teacher is already scheduled at this time")
		}
		if overlap && slot.RoomID != nil && row.RoomID != nil && *row.RoomID == *slot.RoomID {
			return appErrors.Clone(appErrors.ErrConflict, "room is already occupied at this time")
		}
	}
	// Same-template minutes of the teacher, the edited slot excluded.
	for _, other := range siblings {
		if other.ID == slot.ID || other.TeacherID != slot.TeacherID {
			continue
		}
		otherStart, otherEnd, err := parseSlotRange(other.StartTime, other.EndTime)
		if err != nil {
			continue
		}
		teacherMinutes += otherEnd - otherStart
	}

	capHours := s.cfg.TeacherWeeklyHourCap
	if teacher, err := s.teachers.FindByID(ctx, slot.TeacherID); err == nil && teacher.WeeklyHourCap > 0 {
		capHours = teacher.WeeklyHourCap
	} else if err != nil && errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	if capHours > 0 && teacherMinutes > capHours*60 {
		return appErrors.Clone(appErrors.ErrConflict, "teacher weekly hour cap exceeded")
	}
	return nil
}

func (s *TemplateService) loadTemplate(ctx context.Context, templateID string) (*models.TimetableTemplate, error) {
	if templateID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template id is required")
	}
	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return template, nil
}

func (s *TemplateService) invalidateViews(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "views:*"); err != nil {
		s.logger.Warn("view cache invalidation failed", zap.Error(err))
	}
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
