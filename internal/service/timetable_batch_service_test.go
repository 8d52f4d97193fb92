package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris/emploi-api/internal/dto"
	"github.com/scolaris/emploi-api/internal/models"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
)

type classListerStub struct {
	classes []models.Class
	err     error
}

func (s *classListerStub) ListActive(ctx context.Context) ([]models.Class, error) {
	return s.classes, s.err
}

// generatorStub fails the classes named in failures and succeeds otherwise.
type generatorStub struct {
	failures map[string]error
	calls    []string
}

func (s *generatorStub) Generate(ctx context.Context, req dto.GenerateTimetableRequest, generatedBy string) (*models.TimetableTemplate, []models.TimetableSlot, error) {
	s.calls = append(s.calls, req.ClassID)
	if err, ok := s.failures[req.ClassID]; ok {
		return nil, nil, err
	}
	template := &models.TimetableTemplate{ID: "tpl-" + req.ClassID, ClassID: req.ClassID}
	return template, nil, nil
}

func batchRequest() dto.GenerateAllRequest {
	return dto.GenerateAllRequest{
		PeriodStart:   "2025-09-01",
		PeriodEnd:     "2026-06-30",
		EffectiveFrom: "2025-09-01",
	}
}

func startedBatchService(t *testing.T, classes []models.Class, generator *generatorStub) *BatchService {
	t.Helper()
	svc := NewBatchService(&classListerStub{classes: classes}, generator, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		svc.Stop()
		cancel()
	})
	return svc
}

func TestBatchServiceReportsPerClassOutcomes(t *testing.T) {
	classes := []models.Class{
		{ID: "class-3", Name: "6C", Active: true},
		{ID: "class-1", Name: "6A", Active: true},
		{ID: "class-2", Name: "6B", Active: true},
	}
	generator := &generatorStub{failures: map[string]error{
		"class-2": appErrors.Clone(appErrors.ErrInfeasibleSchedule, "subject MATH does not fit"),
	}}
	svc := startedBatchService(t, classes, generator)

	report, err := svc.GenerateAll(context.Background(), batchRequest(), "admin")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Outcomes, 3)

	// Outcomes come back sorted by class id regardless of completion order.
	assert.Equal(t, "class-1", report.Outcomes[0].ClassID)
	assert.Equal(t, "tpl-class-1", report.Outcomes[0].TemplateID)
	assert.Empty(t, report.Outcomes[0].ErrorCode)

	assert.Equal(t, "class-2", report.Outcomes[1].ClassID)
	assert.Equal(t, appErrors.ErrInfeasibleSchedule.Code, report.Outcomes[1].ErrorCode)
	assert.Equal(t, "subject MATH does not fit", report.Outcomes[1].Message)
	assert.Empty(t, report.Outcomes[1].TemplateID)

	assert.Equal(t, "class-3", report.Outcomes[2].ClassID)
	assert.Equal(t, "tpl-class-3", report.Outcomes[2].TemplateID)

	// A failing class never aborts its siblings.
	assert.Len(t, generator.calls, 3)
}

func TestBatchServiceEmptyClassList(t *testing.T) {
	svc := startedBatchService(t, nil, &generatorStub{})

	report, err := svc.GenerateAll(context.Background(), batchRequest(), "admin")
	require.NoError(t, err)
	assert.Zero(t, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Outcomes)
}

func TestBatchServiceValidatesRequest(t *testing.T) {
	svc := startedBatchService(t, nil, &generatorStub{})

	_, err := svc.GenerateAll(context.Background(), dto.GenerateAllRequest{PeriodStart: "not-a-date"}, "admin")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}
