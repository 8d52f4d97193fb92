package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scolaris/emploi-api/internal/models"
)

// TeacherRepository reads the teacher roster and capability set.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository creates a new teacher repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByID loads a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, email, full_name, weekly_hour_cap, active, created_at, updated_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListActive returns all active teachers ordered by name.
func (r *TeacherRepository) ListActive(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, email, full_name, weekly_hour_cap, active, created_at, updated_at FROM teachers WHERE active = TRUE ORDER BY full_name ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list active teachers: %w", err)
	}
	return teachers, nil
}

// ListCapableForSubject returns active teachers able to teach a subject,
// ordered by id so allocation runs are reproducible.
func (r *TeacherRepository) ListCapableForSubject(ctx context.Context, subjectID string) ([]models.Teacher, error) {
	const query = `
SELECT t.id, t.email, t.full_name, t.weekly_hour_cap, t.active, t.created_at, t.updated_at
FROM teachers t
JOIN teacher_subjects ts ON ts.teacher_id = t.id
WHERE ts.subject_id = $1 AND t.active = TRUE
ORDER BY t.id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, subjectID); err != nil {
		return nil, fmt.Errorf("list capable teachers: %w", err)
	}
	return teachers, nil
}
