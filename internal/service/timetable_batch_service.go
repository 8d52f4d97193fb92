package service

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scolaris/emploi-api/internal/dto"
	"github.com/scolaris/emploi-api/internal/models"
	"github.com/scolaris/emploi-api/pkg/errors"
	"github.com/scolaris/emploi-api/pkg/jobs"
)

type batchClassLister interface {
	ListActive(ctx context.Context) ([]models.Class, error)
}

type batchGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest, generatedBy string) (*models.TimetableTemplate, []models.TimetableSlot, error)
}

// BatchService generates timetables for every active class. Classes run
// through a single-worker queue so occupancy reads and slot writes never
// race; one class failing never aborts its siblings.
type BatchService struct {
	classes   batchClassLister
	generator batchGenerator
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

type generateJob struct {
	classID     string
	req         dto.GenerateTimetableRequest
	generatedBy string
	results     chan<- dto.ClassOutcome
}

// NewBatchService wires the orchestrator and its queue. Start must be called
// before GenerateAll; Stop drains the worker on shutdown.
func NewBatchService(classes batchClassLister, generator batchGenerator, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BatchService{
		classes:   classes,
		generator: generator,
		validator: validate,
		logger:    logger,
	}
	// One worker is deliberate: generation reads the occupancy state its
	// predecessors just wrote.
	s.queue = jobs.NewQueue("timetable-generation", s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 64,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the queue worker.
func (s *BatchService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue worker.
func (s *BatchService) Stop() {
	s.queue.Stop()
}

// GenerateAll runs generation for every active class and reports per-class
// outcomes with success and failure counts.
func (s *BatchService) GenerateAll(ctx context.Context, req dto.GenerateAllRequest, generatedBy string) (*dto.BatchReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, errors.Wrap(err, errors.ErrValidation.Code, errors.ErrValidation.Status, "invalid batch generation payload")
	}

	classes, err := s.classes.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "failed to list active classes")
	}

	results := make(chan dto.ClassOutcome, len(classes))
	enqueued := 0
	for _, class := range classes {
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: "generate-timetable",
			Payload: generateJob{
				classID: class.ID,
				req: dto.GenerateTimetableRequest{
					ClassID:       class.ID,
					PeriodStart:   req.PeriodStart,
					PeriodEnd:     req.PeriodEnd,
					EffectiveFrom: req.EffectiveFrom,
				},
				generatedBy: generatedBy,
				results:     results,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			results <- dto.ClassOutcome{
				ClassID:   class.ID,
				ErrorCode: errors.ErrInternal.Code,
				Message:   "failed to enqueue generation job",
			}
		}
		enqueued++
	}

	report := &dto.BatchReport{Outcomes: make([]dto.ClassOutcome, 0, enqueued)}
	for i := 0; i < enqueued; i++ {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrInternal.Code, errors.ErrInternal.Status, "batch generation interrupted")
		case outcome := <-results:
			report.Outcomes = append(report.Outcomes, outcome)
			if outcome.ErrorCode == "" {
				report.Succeeded++
			} else {
				report.Failed++
			}
		}
	}
	sort.Slice(report.Outcomes, func(i, j int) bool {
		return report.Outcomes[i].ClassID < report.Outcomes[j].ClassID
	})

	s.logger.Info("batch generation finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))
	return report, nil
}

// handle runs one class's generation. It always returns nil: failures are
// reported through the outcome channel, never retried by the queue.
func (s *BatchService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(generateJob)
	if !ok {
		s.logger.Error("unexpected job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	template, _, err := s.generator.Generate(ctx, payload.req, payload.generatedBy)
	if err != nil {
		appErr := errors.FromError(err)
		payload.results <- dto.ClassOutcome{
			ClassID:   payload.classID,
			ErrorCode: appErr.Code,
			Message:   appErr.Message,
		}
		return nil
	}
	payload.results <- dto.ClassOutcome{
		ClassID:    payload.classID,
		TemplateID: template.ID,
	}
	return nil
}
