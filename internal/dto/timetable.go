package dto

import "github.com/scolaris/emploi-api/internal/models"

// GenerateTimetableRequest triggers generation for one class.
type GenerateTimetableRequest struct {
	ClassID       string `json:"classId" validate:"required"`
	PeriodStart   string `json:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd     string `json:"periodEnd" validate:"required,datetime=2006-01-02"`
	EffectiveFrom string `json:"effectiveFrom" validate:"required,datetime=2006-01-02"`
}

// GenerateAllRequest triggers generation for every active class.
type GenerateAllRequest struct {
	PeriodStart   string `json:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd     string `json:"periodEnd" validate:"required,datetime=2006-01-02"`
	EffectiveFrom string `json:"effectiveFrom" validate:"required,datetime=2006-01-02"`
}

// ClassOutcome reports the result of one class inside a batch run.
type ClassOutcome struct {
	ClassID    string `json:"classId"`
	TemplateID string `json:"templateId,omitempty"`
	ErrorCode  string `json:"errorCode,omitempty"`
	Message    string `json:"message,omitempty"`
}

// BatchReport aggregates per-class outcomes for operator visibility.
type BatchReport struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Outcomes  []ClassOutcome `json:"outcomes"`
}

// UpdateSlotRequest edits an individual slot. Zero-valued fields are left
// untouched; the store re-validates every overlap invariant before committing.
type UpdateSlotRequest struct {
	DayOfWeek *int    `json:"dayOfWeek" validate:"omitempty,min=1,max=6"`
	StartTime *string `json:"startTime" validate:"omitempty,len=5"`
	EndTime   *string `json:"endTime" validate:"omitempty,len=5"`
	TeacherID *string `json:"teacherId"`
	RoomID    *string `json:"roomId"`
}

// SlotView is the JSON projection served to clients.
type SlotView struct {
	ID          string  `json:"id"`
	DayOfWeek   int     `json:"dayOfWeek"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	SubjectID   string  `json:"subjectId"`
	SubjectName string  `json:"subjectName"`
	TeacherID   string  `json:"teacherId"`
	RoomID      *string `json:"roomId,omitempty"`
	RoomCode    *string `json:"roomCode,omitempty"`
	RoomName    *string `json:"roomName,omitempty"`
	Status      string  `json:"status"`
}

// EventView is a slot stamped onto a concrete date for week projections.
type EventView struct {
	SlotView
	Date string `json:"date"`
}

// NewSlotView projects a joined slot row.
func NewSlotView(d models.SlotDetail) SlotView {
	return SlotView{
		ID:          d.ID,
		DayOfWeek:   d.DayOfWeek,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		SubjectID:   d.SubjectID,
		SubjectName: d.SubjectName,
		TeacherID:   d.TeacherID,
		RoomID:      d.RoomID,
		RoomCode:    d.RoomCode,
		RoomName:    d.RoomName,
		Status:      string(d.Status),
	}
}
