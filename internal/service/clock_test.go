package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	minutes, err := parseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 510, minutes)

	for _, raw := range []string{"8am", "24:00", "08:60", "", "08"} {
		_, err := parseClock(raw)
		assert.Error(t, err, raw)
	}
}

func TestFormatClockZeroPads(t *testing.T) {
	assert.Equal(t, "08:00", formatClock(480))
	assert.Equal(t, "13:05", formatClock(785))
}

func TestWindowOverlapsHalfOpen(t *testing.T) {
	a := window{start: 480, end: 540}
	assert.True(t, a.overlaps(window{start: 500, end: 520}))
	assert.True(t, a.overlaps(window{start: 530, end: 600}))
	// Touching edges never overlap.
	assert.False(t, a.overlaps(window{start: 540, end: 600}))
	assert.False(t, a.overlaps(window{start: 420, end: 480}))
}

func TestNewWeekShapeCarvesBreaks(t *testing.T) {
	shape, err := newWeekShape(testTimetableConfig())
	require.NoError(t, err)

	// 08:00-16:00 in 60-minute blocks minus the 12:00-13:00 lunch leaves seven.
	assert.Equal(t, []int{480, 540, 600, 660, 780, 840, 900}, shape.blockStarts)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, shape.days)
}

func TestNewWeekShapeRejectsBadConfig(t *testing.T) {
	cfg := testTimetableConfig()
	cfg.DayStart = "16:00"
	cfg.DayEnd = "08:00"
	_, err := newWeekShape(cfg)
	require.Error(t, err)

	cfg = testTimetableConfig()
	cfg.ActiveDays = []int{0, 7}
	_, err = newWeekShape(cfg)
	require.Error(t, err)

	cfg = testTimetableConfig()
	cfg.BreakWindows = []string{"13:00-12:00"}
	_, err = newWeekShape(cfg)
	require.Error(t, err)
}

func TestWeekShapeAligned(t *testing.T) {
	shape, err := newWeekShape(testTimetableConfig())
	require.NoError(t, err)

	assert.True(t, shape.aligned(480, 540))
	assert.True(t, shape.aligned(480, 600))
	assert.False(t, shape.aligned(510, 570), "off-grid start")
	assert.False(t, shape.aligned(480, 530), "partial block")
	assert.False(t, shape.aligned(540, 540), "empty range")
}

func TestRunSizes(t *testing.T) {
	assert.Equal(t, []int{2, 1}, runSizes(3, 2, 3))
	assert.Equal(t, []int{2, 2}, runSizes(4, 2, 3))
	assert.Equal(t, []int{3, 3}, runSizes(6, 3, 3))
	assert.Equal(t, []int{1}, runSizes(1, 2, 3))
	assert.Empty(t, runSizes(0, 2, 3))
}
