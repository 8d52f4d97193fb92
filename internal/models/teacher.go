package models

import "time"

// Teacher represents an instructor record. WeeklyHourCap bounds the total
// minutes of slots a teacher may hold across all templates in a week.
type Teacher struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	FullName      string    `db:"full_name" json:"full_name"`
	WeeklyHourCap int       `db:"weekly_hour_cap" json:"weekly_hour_cap"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}