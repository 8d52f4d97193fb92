package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TemplateStatus represents the lifecycle phase of a timetable template.
type TemplateStatus string

const (
	TemplateStatusDraft     TemplateStatus = "DRAFT"
	TemplateStatusPublished TemplateStatus = "PUBLISHED"
)

// SlotStatus marks whether a slot participates in regeneration.
type SlotStatus string

const (
	SlotStatusActive SlotStatus = "ACTIVE"
	SlotStatusLocked SlotStatus = "LOCKED"
)

// TimetableTemplate is one versioned weekly schedule for one class, valid over
// a calendar period. Publishing is irreversible; a later effective_from
// supersedes an older published template without deleting it.
type TimetableTemplate struct {
	ID            string         `db:"id" json:"id"`
	ClassID       string         `db:"class_id" json:"class_id"`
	PeriodStart   time.Time      `db:"period_start" json:"period_start"`
	PeriodEnd     time.Time      `db:"period_end" json:"period_end"`
	EffectiveFrom time.Time      `db:"effective_from" json:"effective_from"`
	Status        TemplateStatus `db:"status" json:"status"`
	Version       int            `db:"version" json:"version"`
	GeneratedBy   string         `db:"generated_by" json:"generated_by"`
	Meta          types.JSONText `db:"meta" json:"meta"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// TimetableSlot is one scheduled (day, time range, subject, teacher, room)
// assignment within a template. Times are naive local "HH:MM" strings; the
// school is single-site so no timezone conversion is ever applied.
type TimetableSlot struct {
	ID         string     `db:"id" json:"id"`
	TemplateID string     `db:"template_id" json:"template_id"`
	DayOfWeek  int        `db:"day_of_week" json:"day_of_week"`
	StartTime  string     `db:"start_time" json:"start_time"`
	EndTime    string     `db:"end_time" json:"end_time"`
	SubjectID  string     `db:"subject_id" json:"subject_id"`
	TeacherID  string     `db:"teacher_id" json:"teacher_id"`
	RoomID     *string    `db:"room_id" json:"room_id,omitempty"`
	Status     SlotStatus `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// SlotDetail joins a slot against the catalog for client projections.
type SlotDetail struct {
	TimetableSlot
	SubjectName string  `db:"subject_name" json:"subject_name"`
	SubjectCode string  `db:"subject_code" json:"subject_code"`
	TeacherName string  `db:"teacher_name" json:"teacher_name"`
	RoomCode    *string `db:"room_code" json:"room_code,omitempty"`
	RoomName    *string `db:"room_name" json:"room_name,omitempty"`
	ClassID     string  `db:"class_id" json:"class_id"`
	ClassName   string  `db:"class_name" json:"class_name"`

	// Template validity columns carried along so read projections can apply
	// period and activeness filters without a second query.
	PeriodStart   time.Time `db:"period_start" json:"-"`
	PeriodEnd     time.Time `db:"period_end" json:"-"`
	EffectiveFrom time.Time `db:"effective_from" json:"-"`
	Version       int       `db:"version" json:"-"`
}

// TeacherBusy is a minimal cross-template occupancy row used for conflict
// detection while generating or editing slots.
type TeacherBusy struct {
	TemplateID string     `db:"template_id" json:"template_id"`
	ClassID    string     `db:"class_id" json:"class_id"`
	TeacherID  string     `db:"teacher_id" json:"teacher_id"`
	RoomID     *string    `db:"room_id" json:"room_id,omitempty"`
	DayOfWeek  int        `db:"day_of_week" json:"day_of_week"`
	StartTime  string     `db:"start_time" json:"start_time"`
	EndTime    string     `db:"end_time" json:"end_time"`
	Status     SlotStatus `db:"status" json:"status"`
}
