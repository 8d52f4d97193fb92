package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/scolaris/emploi-api/pkg/config"
)

// All slot times are naive local clock values ("HH:MM"); the school is a
// single site so no timezone conversion happens anywhere in the scheduler.

func parseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	return hour*60 + minute, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// window is a half-open [start, end) range in minutes from midnight.
type window struct {
	start int
	end   int
}

func (w window) overlaps(other window) bool {
	return w.start < other.end && other.start < w.end
}

func parseWindow(raw string) (window, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return window{}, fmt.Errorf("invalid time window %q", raw)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return window{}, err
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return window{}, err
	}
	if start >= end {
		return window{}, fmt.Errorf("invalid time window %q", raw)
	}
	return window{start: start, end: end}, nil
}

// weekShape is the parsed working-week geometry shared by the allocator and
// the slot-edit validation path.
type weekShape struct {
	days     []int
	dayStart int
	dayEnd   int
	blockMin int
	breaks   []window
	// blockStarts holds the start minute of every schedulable block in one
	// day, ascending, breaks already carved out.
	blockStarts []int
}

func newWeekShape(cfg config.TimetableConfig) (*weekShape, error) {
	if cfg.BlockMinutes <= 0 {
		return nil, fmt.Errorf("block granularity must be positive")
	}
	dayStart, err := parseClock(cfg.DayStart)
	if err != nil {
		return nil, fmt.Errorf("day start: %w", err)
	}
	dayEnd, err := parseClock(cfg.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("day end: %w", err)
	}
	if dayStart >= dayEnd {
		return nil, fmt.Errorf("day start %s must precede day end %s", cfg.DayStart, cfg.DayEnd)
	}

	breaks := make([]window, 0, len(cfg.BreakWindows))
	for _, raw := range cfg.BreakWindows {
		w, err := parseWindow(raw)
		if err != nil {
			return nil, fmt.Errorf("break window: %w", err)
		}
		breaks = append(breaks, w)
	}

	days := make([]int, 0, len(cfg.ActiveDays))
	seen := make(map[int]bool)
	for _, day := range cfg.ActiveDays {
		if day < 1 || day > 6 || seen[day] {
			continue
		}
		days = append(days, day)
		seen[day] = true
	}
	sort.Ints(days)
	if len(days) == 0 {
		return nil, fmt.Errorf("at least one active day is required")
	}

	shape := &weekShape{
		days:     days,
		dayStart: dayStart,
		dayEnd:   dayEnd,
		blockMin: cfg.BlockMinutes,
		breaks:   breaks,
	}
	for start := dayStart; start+cfg.BlockMinutes <= dayEnd; start += cfg.BlockMinutes {
		if shape.insideBreak(window{start: start, end: start + cfg.BlockMinutes}) {
			continue
		}
		shape.blockStarts = append(shape.blockStarts, start)
	}
	if len(shape.blockStarts) == 0 {
		return nil, fmt.Errorf("no schedulable blocks between %s and %s", cfg.DayStart, cfg.DayEnd)
	}
	return shape, nil
}

func (s *weekShape) insideBreak(w window) bool {
	for _, b := range s.breaks {
		if w.overlaps(b) {
			return true
		}
	}
	return false
}

// blocksIn expands a slot's time range into the block start minutes it covers.
func (s *weekShape) blocksIn(start, end int) []int {
	var blocks []int
	for b := start; b < end; b += s.blockMin {
		blocks = append(blocks, b)
	}
	return blocks
}

// aligned reports whether a range sits on the block raster with a positive
// length that is a whole number of blocks.
func (s *weekShape) aligned(start, end int) bool {
	if start >= end {
		return false
	}
	return (end-start)%s.blockMin == 0 && (start-s.dayStart)%s.blockMin == 0
}
