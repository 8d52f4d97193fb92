package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/scolaris/emploi-api/internal/dto"
	"github.com/scolaris/emploi-api/internal/models"
	"github.com/scolaris/emploi-api/pkg/config"
	appErrors "github.com/scolaris/emploi-api/pkg/errors"
)

type allocatorClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type allocatorDemandReader interface {
	ListDemandsByClass(ctx context.Context, classID string) ([]models.ClassSubjectDemand, error)
}

type allocatorTeacherCatalog interface {
	ListCapableForSubject(ctx context.Context, subjectID string) ([]models.Teacher, error)
}

type allocatorRoomCatalog interface {
	ListActive(ctx context.Context) ([]models.Room, error)
}

type allocatorTemplateReader interface {
	LatestForClass(ctx context.Context, classID string) (*models.TimetableTemplate, error)
}

type allocatorSlotReader interface {
	ListBusy(ctx context.Context) ([]models.TeacherBusy, error)
	ListLockedByTemplate(ctx context.Context, templateID string) ([]models.TimetableSlot, error)
}

// TeacherDecision records how a teacher was chosen for a subject.
type TeacherDecision struct {
	SubjectID string `json:"subjectId"`
	TeacherID string `json:"teacherId,omitempty"`
	Reason    string `json:"reason"`
}

const (
	decisionPrimary  = "primary"
	decisionFallback = "fallback"
	decisionNone     = "none"
)

// DraftTimetable is a fully allocated but unpersisted template with its slots.
type DraftTimetable struct {
	Template  models.TimetableTemplate
	Slots     []models.TimetableSlot
	Decisions []TeacherDecision
}

// AllocatorService runs the deterministic greedy slot allocation for one
// class. It reads catalog and occupancy state but persists nothing itself.
type AllocatorService struct {
	classes   allocatorClassReader
	demands   allocatorDemandReader
	teachers  allocatorTeacherCatalog
	rooms     allocatorRoomCatalog
	templates allocatorTemplateReader
	slots     allocatorSlotReader
	cfg       config.TimetableConfig
	shape     *weekShape
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAllocatorService wires allocator dependencies. The working-week geometry
// is parsed once; invalid configuration fails construction.
func NewAllocatorService(
	classes allocatorClassReader,
	demands allocatorDemandReader,
	teachers allocatorTeacherCatalog,
	rooms allocatorRoomCatalog,
	templates allocatorTemplateReader,
	slots allocatorSlotReader,
	cfg config.TimetableConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) (*AllocatorService, error) {
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
	return &AllocatorService{
		classes:   classes,
		demands:   demands,
		teachers:  teachers,
		rooms:     rooms,
		templates: templates,
		slots:     slots,
		cfg:       cfg,
		shape:     shape,
		validator: validate,
		logger:    logger,
	}, nil
}

// Generate allocates a full weekly timetable draft for the requested class.
// All-or-nothing: either every subject's weekly quota fits or an error names
// the first subject that could not be placed.
func (s *AllocatorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest, generatedBy string) (*DraftTimetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	periodStart, periodEnd, effectiveFrom, err := parsePeriod(req.PeriodStart, req.PeriodEnd, req.EffectiveFrom)
	if err != nil {
		return nil, err
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	demands, err := s.demands.ListDemandsByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject quotas")
	}

	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}

	state, locked, err := s.buildState(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}

	placed := make([]models.TimetableSlot, 0, len(locked))
	decisions := make([]TeacherDecision, 0, len(demands))
	for _, slot := range locked {
		placed = append(placed, slot)
	}

	for _, demand := range demands {
		needed := ceilDiv(demand.HoursPerWeek*60, s.shape.blockMin)
		remaining := needed - state.lockedBlocks[demand.SubjectID]
		if remaining <= 0 {
			continue
		}

		capable, err := s.teachers.ListCapableForSubject(ctx, demand.SubjectID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load capable teachers")
		}
		if len(capable) == 0 {
			decisions = append(decisions, TeacherDecision{SubjectID: demand.SubjectID, Reason: decisionNone})
			return nil, appErrors.Clone(appErrors.ErrNoEligibleTeacher,
				fmt.Sprintf("subject %s has no capable teacher", demand.SubjectCode))
		}
		primary := capable[0]

		for _, runBlocks := range runSizes(remaining, s.cfg.PreferredConsecutiveBlocks, s.cfg.MaxConsecutiveBlocks) {
			slot, decision, err := s.placeRun(state, demand, capable, primary, runBlocks, rooms)
			if err != nil {
				return nil, err
			}
			placed = append(placed, slot)
			decisions = appendDecision(decisions, decision)
		}
	}

	sort.Slice(placed, func(i, j int) bool {
		if placed[i].DayOfWeek == placed[j].DayOfWeek {
			return placed[i].StartTime < placed[j].StartTime
		}
		return placed[i].DayOfWeek < placed[j].DayOfWeek
	})

	meta, err := json.Marshal(map[string]any{
		"algorithm":        "greedy_v1",
		"teacherDecisions": decisions,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode template metadata")
	}

	draft := &DraftTimetable{
		Template: models.TimetableTemplate{
			ClassID:       req.ClassID,
			PeriodStart:   periodStart,
			PeriodEnd:     periodEnd,
			EffectiveFrom: effectiveFrom,
			Status:        models.TemplateStatusDraft,
			GeneratedBy:   generatedBy,
			Meta:          types.JSONText(meta),
		},
		Slots:     placed,
		Decisions: decisions,
	}
	s.logger.Info("timetable allocated",
		zap.String("class_id", req.ClassID),
		zap.Int("slots", len(placed)),
		zap.Int("locked", len(locked)))
	return draft, nil
}

// allocState tracks per-block occupancy accumulated from existing templates
// plus the blocks placed so far in the current run.
type allocState struct {
	shape        *weekShape
	classBusy    map[gridCell]bool
	classSubject map[gridCell]string
	teacherBusy  map[string]map[gridCell]bool
	teacherLoad  map[string]int
	roomBusy     map[string]map[gridCell]bool
	dayLoad      map[int]int
	lockedBlocks map[string]int
}

type gridCell struct {
	day   int
	start int
}

func newAllocState(shape *weekShape) *allocState {
	return &allocState{
		shape:        shape,
		classBusy:    make(map[gridCell]bool),
		classSubject: make(map[gridCell]string),
		teacherBusy:  make(map[string]map[gridCell]bool),
		teacherLoad:  make(map[string]int),
		roomBusy:     make(map[string]map[gridCell]bool),
		dayLoad:      make(map[int]int),
		lockedBlocks: make(map[string]int),
	}
}

// buildState seeds occupancy from every other class's latest template and
// carries the locked slots of this class's own latest template forward.
func (s *AllocatorService) buildState(ctx context.Context, classID string) (*allocState, []models.TimetableSlot, error) {
	state := newAllocState(s.shape)

	busy, err := s.slots.ListBusy(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occupancy state")
	}
	for _, row := range busy {
		if row.ClassID == classID {
			continue
		}
		start, end, err := parseSlotRange(row.StartTime, row.EndTime)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt slot time range")
		}
		state.occupyTeacher(row.TeacherID, row.DayOfWeek, start, end)
		if row.RoomID != nil {
			state.occupyRoom(*row.RoomID, row.DayOfWeek, start, end)
		}
	}

	var locked []models.TimetableSlot
	latest, err := s.templates.LatestForClass(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state, nil, nil
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest template")
	}
	locked, err = s.slots.ListLockedByTemplate(ctx, latest.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load locked slots")
	}
	for i := range locked {
		slot := &locked[i]
		start, end, err := parseSlotRange(slot.StartTime, slot.EndTime)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt locked slot time range")
		}
		// Carried verbatim into the new version under a fresh id.
		slot.ID = ""
		slot.TemplateID = ""
		slot.Status = models.SlotStatusLocked

		state.occupyClass(slot.SubjectID, slot.DayOfWeek, start, end)
		state.occupyTeacher(slot.TeacherID, slot.DayOfWeek, start, end)
		if slot.RoomID != nil {
			state.occupyRoom(*slot.RoomID, slot.DayOfWeek, start, end)
		}
		state.lockedBlocks[slot.SubjectID] += len(s.shape.blocksIn(start, end))
	}
	return state, locked, nil
}

// placeRun finds the first feasible (day, window, teacher) for a run of
// consecutive blocks and commits it to the state.
func (s *AllocatorService) placeRun(
	state *allocState,
	demand models.ClassSubjectDemand,
	capable []models.Teacher,
	primary models.Teacher,
	runBlocks int,
	rooms []models.Room,
) (models.TimetableSlot, TeacherDecision, error) {
	runMinutes := runBlocks * s.shape.blockMin

	for _, day := range state.dayOrder() {
		for _, start := range s.shape.blockStarts {
			end := start + runMinutes
			if !state.windowFits(demand.SubjectID, day, start, end, s.cfg.MaxConsecutiveBlocks) {
				continue
			}
			teacher, reason := s.chooseTeacher(state, capable, primary, day, start, end)
			if teacher == nil {
				continue
			}

			roomID := state.chooseRoom(rooms, day, start, end)
			slot := models.TimetableSlot{
				DayOfWeek: day,
				StartTime: formatClock(start),
				EndTime:   formatClock(end),
				SubjectID: demand.SubjectID,
				TeacherID: teacher.ID,
				RoomID:    roomID,
				Status:    models.SlotStatusActive,
			}
			state.occupyClass(demand.SubjectID, day, start, end)
			state.occupyTeacher(teacher.ID, day, start, end)
			if roomID != nil {
				state.occupyRoom(*roomID, day, start, end)
			}
			return slot, TeacherDecision{SubjectID: demand.SubjectID, TeacherID: teacher.ID, Reason: reason}, nil
		}
	}

	if !state.anyCapacity(capable, runMinutes, s.cfg.TeacherWeeklyHourCap) {
		return models.TimetableSlot{}, TeacherDecision{}, appErrors.Clone(appErrors.ErrNoEligibleTeacher,
			fmt.Sprintf("subject %s: every capable teacher is at the weekly cap", demand.SubjectCode))
	}
	return models.TimetableSlot{}, TeacherDecision{}, appErrors.Clone(appErrors.ErrInfeasibleSchedule,
		fmt.Sprintf("subject %s: a run of %d block(s) does not fit in the remaining week", demand.SubjectCode, runBlocks))
}

// chooseTeacher applies the single-teacher preference: reuse the subject's
// primary teacher unless cap or a conflict forces the least-loaded fallback.
func (s *AllocatorService) chooseTeacher(state *allocState, capable []models.Teacher, primary models.Teacher, day, start, end int) (*models.Teacher, string) {
	if s.cfg.PreferSingleTeacher && state.teacherFits(primary, day, start, end, s.cfg.TeacherWeeklyHourCap) {
		return &primary, decisionPrimary
	}

	var best *models.Teacher
	for i := range capable {
		candidate := &capable[i]
		if !state.teacherFits(*candidate, day, start, end, s.cfg.TeacherWeeklyHourCap) {
			continue
		}
		if best == nil || state.teacherLoad[candidate.ID] < state.teacherLoad[best.ID] {
			best = candidate
		}
	}
	if best == nil {
		return nil, decisionNone
	}
	if best.ID == primary.ID {
		return best, decisionPrimary
	}
	return best, decisionFallback
}

func (a *allocState) dayOrder() []int {
	order := make([]int, len(a.shape.days))
	copy(order, a.shape.days)
	sort.SliceStable(order, func(i, j int) bool {
		return a.dayLoad[order[i]] < a.dayLoad[order[j]]
	})
	return order
}

// windowFits checks raster alignment, class-grid freedom and the consecutive
// same-subject limit for a candidate run.
func (a *allocState) windowFits(subjectID string, day, start, end, maxRun int) bool {
	blocks := a.shape.blocksIn(start, end)
	prev := -1
	for _, b := range blocks {
		if !a.schedulable(b) {
			return false
		}
		if prev >= 0 && b-prev != a.shape.blockMin {
			return false
		}
		if a.classBusy[gridCell{day: day, start: b}] {
			return false
		}
		prev = b
	}
	if end > a.shape.dayEnd {
		return false
	}

	// Adjacent already-placed blocks of the same subject extend the run.
	run := len(blocks)
	for b := start - a.shape.blockMin; a.classSubject[gridCell{day: day, start: b}] == subjectID && subjectID != ""; b -= a.shape.blockMin {
		run++
	}
	for b := end; a.classSubject[gridCell{day: day, start: b}] == subjectID && subjectID != ""; b += a.shape.blockMin {
		run++
	}
	return maxRun <= 0 || run <= maxRun
}

func (a *allocState) schedulable(blockStart int) bool {
	for _, b := range a.shape.blockStarts {
		if b == blockStart {
			return true
		}
	}
	return false
}

func (a *allocState) teacherFits(teacher models.Teacher, day, start, end, defaultCapHours int) bool {
	capHours := teacher.WeeklyHourCap
	if capHours <= 0 {
		capHours = defaultCapHours
	}
	if capHours > 0 && a.teacherLoad[teacher.ID]+(end-start) > capHours*60 {
		return false
	}
	cells := a.teacherBusy[teacher.ID]
	for _, b := range a.shape.blocksIn(start, end) {
		if cells[gridCell{day: day, start: b}] {
			return false
		}
	}
	return true
}

func (a *allocState) anyCapacity(capable []models.Teacher, runMinutes, defaultCapHours int) bool {
	for _, teacher := range capable {
		capHours := teacher.WeeklyHourCap
		if capHours <= 0 {
			capHours = defaultCapHours
		}
		if capHours <= 0 || a.teacherLoad[teacher.ID]+runMinutes <= capHours*60 {
			return true
		}
	}
	return false
}

// chooseRoom returns the first conflict-free active room. A full house is not
// an error; the slot simply carries no room.
func (a *allocState) chooseRoom(rooms []models.Room, day, start, end int) *string {
	for i := range rooms {
		room := &rooms[i]
		cells := a.roomBusy[room.ID]
		free := true
		for _, b := range a.shape.blocksIn(start, end) {
			if cells[gridCell{day: day, start: b}] {
				free = false
				break
			}
		}
		if free {
			id := room.ID
			return &id
		}
	}
	return nil
}

func (a *allocState) occupyClass(subjectID string, day, start, end int) {
	for _, b := range a.shape.blocksIn(start, end) {
		cell := gridCell{day: day, start: b}
		a.classBusy[cell] = true
		a.classSubject[cell] = subjectID
		a.dayLoad[day]++
	}
}

// occupyTeacher marks every raster block the range overlaps, so misaligned
// legacy rows still block correctly.
func (a *allocState) occupyTeacher(teacherID string, day, start, end int) {
	if a.teacherBusy[teacherID] == nil {
		a.teacherBusy[teacherID] = make(map[gridCell]bool)
	}
	for _, b := range a.shape.blockStarts {
		if (window{start: b, end: b + a.shape.blockMin}).overlaps(window{start: start, end: end}) {
			a.teacherBusy[teacherID][gridCell{day: day, start: b}] = true
		}
	}
	a.teacherLoad[teacherID] += end - start
}

func (a *allocState) occupyRoom(roomID string, day, start, end int) {
	if a.roomBusy[roomID] == nil {
		a.roomBusy[roomID] = make(map[gridCell]bool)
	}
	for _, b := range a.shape.blockStarts {
		if (window{start: b, end: b + a.shape.blockMin}).overlaps(window{start: start, end: end}) {
			a.roomBusy[roomID][gridCell{day: day, start: b}] = true
		}
	}
}

// runSizes splits a block demand into consecutive runs of the preferred size.
func runSizes(blocks, preferred, maxRun int) []int {
	if preferred <= 0 {
		preferred = 1
	}
	if maxRun > 0 && preferred > maxRun {
		preferred = maxRun
	}
	var runs []int
	for blocks > 0 {
		n := preferred
		if blocks < n {
			n = blocks
		}
		runs = append(runs, n)
		blocks -= n
	}
	return runs
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func appendDecision(decisions []TeacherDecision, decision TeacherDecision) []TeacherDecision {
	for _, existing := range decisions {
		if existing == decision {
			return decisions
		}
	}
	return append(decisions, decision)
}

func parseSlotRange(startRaw, endRaw string) (int, int, error) {
	start, err := parseClock(startRaw)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(endRaw)
	if err != nil {
		return 0, 0, err
	}
	if start >= end {
		return 0, 0, fmt.Errorf("slot range %s-%s is inverted", startRaw, endRaw)
	}
	return start, end, nil
}

func parsePeriod(startRaw, endRaw, effectiveRaw string) (time.Time, time.Time, time.Time, error) {
	const layout = "2006-01-02"
	start, err := time.Parse(layout, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "periodStart must be YYYY-MM-DD")
	}
	end, err := time.Parse(layout, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "periodEnd must be YYYY-MM-DD")
	}
	effective, err := time.Parse(layout, effectiveRaw)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "effectiveFrom must be YYYY-MM-DD")
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "periodStart must precede periodEnd")
	}
	return start, end, effective, nil
}
