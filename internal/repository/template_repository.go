package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/scolaris/emploi-api/internal/models"
)

// TemplateRepository persists versioned timetable templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a template assigning the next version for the class.
func (r *TemplateRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, template *models.TimetableTemplate) error {
	if template == nil {
		return fmt.Errorf("template payload is nil")
	}
	if template.ClassID == "" {
		return fmt.Errorf("class_id is required")
	}
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if template.Status == "" {
		template.Status = models.TemplateStatusDraft
	}
	if len(template.Meta) == 0 {
		template.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_templates WHERE class_id = $1`
	if err := sqlx.GetContext(ctx, target, &template.Version, nextVersionQuery, template.ClassID); err != nil {
		return fmt.Errorf("compute next template version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetable_templates (id, class_id, period_start, period_end, effective_from, status, version, generated_by, meta, created_at, updated_at)
VALUES (:id, :class_id, :period_start, :period_end, :effective_from, :status, :version, :generated_by, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, template); err != nil {
		return fmt.Errorf("insert timetable template: %w", err)
	}
	return nil
}

// FindByID loads a template by its identifier.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.TimetableTemplate, error) {
	const query = `SELECT id, class_id, period_start, period_end, effective_from, status, version, generated_by, meta, created_at, updated_at
FROM timetable_templates WHERE id = $1`
	var template models.TimetableTemplate
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// ListByClass returns all template versions for a class, newest first.
func (r *TemplateRepository) ListByClass(ctx context.Context, classID string) ([]models.TimetableTemplate, error) {
	const query = `SELECT id, class_id, period_start, period_end, effective_from, status, version, generated_by, meta, created_at, updated_at
FROM timetable_templates WHERE class_id = $1 ORDER BY version DESC`
	var templates []models.TimetableTemplate
	if err := r.db.SelectContext(ctx, &templates, query, classID); err != nil {
		return nil, fmt.Errorf("list timetable templates: %w", err)
	}
	return templates, nil
}

// ActiveForClass resolves the published template with the latest effective_from
// not after asOf. Returns sql.ErrNoRows when the class has none.
func (r *TemplateRepository) ActiveForClass(ctx context.Context, classID string, asOf time.Time) (*models.TimetableTemplate, error) {
	const query = `SELECT id, class_id, period_start, period_end, effective_from, status, version, generated_by, meta, created_at, updated_at
FROM timetable_templates
WHERE class_id = $1 AND status = $2 AND effective_from <= $3
ORDER BY effective_from DESC, version DESC
LIMIT 1`
	var template models.TimetableTemplate
	if err := r.db.GetContext(ctx, &template, query, classID, models.TemplateStatusPublished, asOf); err != nil {
		return nil, err
	}
	return &template, nil
}

// UpdateStatus transitions a template's lifecycle status.
func (r *TemplateRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TemplateStatus) error {
	target := r.exec(exec)
	const query = `UPDATE timetable_templates SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := target.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update template status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("template status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a template; slots go with it via ON DELETE CASCADE.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM timetable_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("template rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LatestForClass returns the newest template version for a class regardless of
// status. Used to carry locked slots into a regeneration run.
func (r *TemplateRepository) LatestForClass(ctx context.Context, classID string) (*models.TimetableTemplate, error) {
	const query = `SELECT id, class_id, period_start, period_end, effective_from, status, version, generated_by, meta, created_at, updated_at
FROM timetable_templates WHERE class_id = $1 ORDER BY version DESC LIMIT 1`
	var template models.TimetableTemplate
	if err := r.db.GetContext(ctx, &template, query, classID); err != nil {
		return nil, err
	}
	return &template, nil
}
