package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scolaris/emploi-api/internal/models"
)

// ClassSubjectRepository reads per-class subject quotas.
type ClassSubjectRepository struct {
	db *sqlx.DB
}

// NewClassSubjectRepository creates a new repository.
func NewClassSubjectRepository(db *sqlx.DB) *ClassSubjectRepository {
	return &ClassSubjectRepository{db: db}
}

// ListDemandsByClass returns the weekly hour quota per subject for a class,
// joined against the subject catalog.
func (r *ClassSubjectRepository) ListDemandsByClass(ctx context.Context, classID string) ([]models.ClassSubjectDemand, error) {
	const query = `
SELECT cs.id, cs.class_id, cs.subject_id, cs.hours_per_week, cs.created_at,
       s.code AS subject_code, s.name AS subject_name
FROM class_subjects cs
JOIN subjects s ON s.id = cs.subject_id
WHERE cs.class_id = $1
ORDER BY cs.hours_per_week DESC, cs.subject_id ASC`
	var demands []models.ClassSubjectDemand
	if err := r.db.SelectContext(ctx, &demands, query, classID); err != nil {
		return nil, fmt.Errorf("list class subject demands: %w", err)
	}
	return demands, nil
}
