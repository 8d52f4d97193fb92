package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/scolaris/emploi-api/internal/models"
)

// SlotRepository manages slots belonging to timetable templates.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository builds the repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch stores all slots of a freshly generated template.
func (r *SlotRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_slots (id, template_id, day_of_week, start_time, end_time, subject_id, teacher_id, room_id, status, created_at, updated_at)
VALUES (:id, :template_id, :day_of_week, :start_time, :end_time, :subject_id, :teacher_id, :room_id, :status, :created_at, :updated_at)`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.Status == "" {
			slot.Status = models.SlotStatusActive
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		slot.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("insert timetable slot: %w", err)
		}
	}
	return nil
}

// ListByTemplate returns slots ordered by day and start time.
func (r *SlotRepository) ListByTemplate(ctx context.Context, templateID string) ([]models.TimetableSlot, error) {
	const query = `SELECT id, template_id, day_of_week, start_time, end_time, subject_id, teacher_id, room_id, status, created_at, updated_at
FROM timetable_slots WHERE template_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, templateID); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}

// ListDetailByTemplate returns slots joined against the catalog.
func (r *SlotRepository) ListDetailByTemplate(ctx context.Context, templateID string) ([]models.SlotDetail, error) {
	const query = `
SELECT sl.id, sl.template_id, sl.day_of_week, sl.start_time, sl.end_time, sl.subject_id, sl.teacher_id, sl.room_id, sl.status, sl.created_at, sl.updated_at,
       s.name AS subject_name, s.code AS subject_code,
       t.full_name AS teacher_name,
       rm.code AS room_code, rm.name AS room_name,
       c.id AS class_id, c.name AS class_name,
       tpl.period_start, tpl.period_end, tpl.effective_from, tpl.version
FROM timetable_slots sl
JOIN timetable_templates tpl ON tpl.id = sl.template_id
JOIN classes c ON c.id = tpl.class_id
JOIN subjects s ON s.id = sl.subject_id
JOIN teachers t ON t.id = sl.teacher_id
LEFT JOIN rooms rm ON rm.id = sl.room_id
WHERE sl.template_id = $1
ORDER BY sl.day_of_week ASC, sl.start_time ASC`
	var details []models.SlotDetail
	if err := r.db.SelectContext(ctx, &details, query, templateID); err != nil {
		return nil, fmt.Errorf("list timetable slot details: %w", err)
	}
	return details, nil
}

// ListDetailForTeacher returns every slot of published templates for a teacher,
// joined with template validity columns so callers can filter by date.
func (r *SlotRepository) ListDetailForTeacher(ctx context.Context, teacherID string) ([]models.SlotDetail, error) {
	const query = `
SELECT sl.id, sl.template_id, sl.day_of_week, sl.start_time, sl.end_time, sl.subject_id, sl.teacher_id, sl.room_id, sl.status, sl.created_at, sl.updated_at,
       s.name AS subject_name, s.code AS subject_code,
       t.full_name AS teacher_name,
       rm.code AS room_code, rm.name AS room_name,
       c.id AS class_id, c.name AS class_name,
       tpl.period_start, tpl.period_end, tpl.effective_from, tpl.version
FROM timetable_slots sl
JOIN timetable_templates tpl ON tpl.id = sl.template_id
JOIN classes c ON c.id = tpl.class_id
JOIN subjects s ON s.id = sl.subject_id
JOIN teachers t ON t.id = sl.teacher_id
LEFT JOIN rooms rm ON rm.id = sl.room_id
WHERE sl.teacher_id = $1 AND tpl.status = $2
ORDER BY sl.day_of_week ASC, sl.start_time ASC`
	var details []models.SlotDetail
	if err := r.db.SelectContext(ctx, &details, query, teacherID, models.TemplateStatusPublished); err != nil {
		return nil, fmt.Errorf("list teacher slot details: %w", err)
	}
	return details, nil
}

// FindByID loads a slot by id.
func (r *SlotRepository) FindByID(ctx context.Context, id string) (*models.TimetableSlot, error) {
	const query = `SELECT id, template_id, day_of_week, start_time, end_time, subject_id, teacher_id, room_id, status, created_at, updated_at
FROM timetable_slots WHERE id = $1`
	var slot models.TimetableSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Update rewrites a slot's assignable fields.
func (r *SlotRepository) Update(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error {
	target := r.exec(exec)
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_slots SET day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, teacher_id = :teacher_id, room_id = :room_id, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, target, query, slot)
	if err != nil {
		return fmt.Errorf("update timetable slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("slot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus flips a slot between ACTIVE and LOCKED.
func (r *SlotRepository) UpdateStatus(ctx context.Context, id string, status models.SlotStatus) error {
	const query = `UPDATE timetable_slots SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update slot status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("slot status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListLockedByTemplate returns the locked slots of a template.
func (r *SlotRepository) ListLockedByTemplate(ctx context.Context, templateID string) ([]models.TimetableSlot, error) {
	const query = `SELECT id, template_id, day_of_week, start_time, end_time, subject_id, teacher_id, room_id, status, created_at, updated_at
FROM timetable_slots WHERE template_id = $1 AND status = $2 ORDER BY day_of_week ASC, start_time ASC`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, templateID, models.SlotStatusLocked); err != nil {
		return nil, fmt.Errorf("list locked slots: %w", err)
	}
	return slots, nil
}

// ListBusy returns the cross-template occupancy rows used for teacher/room
// conflict detection. Only each class's latest template version contributes;
// superseded versions are history and must not hold capacity.
func (r *SlotRepository) ListBusy(ctx context.Context) ([]models.TeacherBusy, error) {
	const query = `
SELECT sl.template_id, tpl.class_id, sl.teacher_id, sl.room_id, sl.day_of_week, sl.start_time, sl.end_time, sl.status
FROM timetable_slots sl
JOIN timetable_templates tpl ON tpl.id = sl.template_id
WHERE tpl.version = (SELECT MAX(version) FROM timetable_templates latest WHERE latest.class_id = tpl.class_id)
ORDER BY sl.day_of_week ASC, sl.start_time ASC`
	var busy []models.TeacherBusy
	if err := r.db.SelectContext(ctx, &busy, query); err != nil {
		return nil, fmt.Errorf("list busy slots: %w", err)
	}
	return busy, nil
}
