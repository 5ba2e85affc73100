package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
)

func day(t *testing.T, date string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	require.NoError(t, err)
	return parsed
}

// 2026-09-07 is a Monday.
func weekHorizon(t *testing.T) Horizon {
	t.Helper()
	return Horizon{Start: day(t, "2026-09-07"), End: day(t, "2026-09-14")}
}

func TestExpandAvailabilityProducesSessionWidthSlots(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday: {Start: "09:00", End: "12:00"},
	}

	slots, err := ExpandAvailability(avail, weekHorizon(t), GridConfig{ResolutionMinutes: 15, SessionMinutes: 60})
	require.NoError(t, err)

	// 09:00 through 11:00 inclusive, stepping 15m: 9 start times.
	require.Len(t, slots, 9)
	assert.Equal(t, day(t, "2026-09-07").Add(9*time.Hour), slots[0].Start)
	assert.Equal(t, day(t, "2026-09-07").Add(11*time.Hour), slots[len(slots)-1].Start)
	for _, slot := range slots {
		assert.Equal(t, 60, slot.Minutes)
		assert.True(t, slot.AlignedTo(15), "slot %s is off the 15m grid", slot.Start)
	}
}

func TestExpandAvailabilitySkipsDaysWithoutWindows(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Tuesday:  {Start: "10:00", End: "11:00"},
		time.Thursday: {Start: "10:00", End: "11:00"},
	}

	slots, err := ExpandAvailability(avail, weekHorizon(t), GridConfig{ResolutionMinutes: 30, SessionMinutes: 60})
	require.NoError(t, err)

	require.Len(t, slots, 2)
	assert.Equal(t, time.Tuesday, slots[0].Start.Weekday())
	assert.Equal(t, time.Thursday, slots[1].Start.Weekday())
}

func TestExpandAvailabilityWindowShorterThanSession(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday: {Start: "09:00", End: "09:45"},
	}

	slots, err := ExpandAvailability(avail, weekHorizon(t), GridConfig{ResolutionMinutes: 15, SessionMinutes: 60})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestExpandAvailabilityRejectsMisalignedWindow(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday: {Start: "09:10", End: "12:00"},
	}

	_, err := ExpandAvailability(avail, weekHorizon(t), GridConfig{ResolutionMinutes: 15, SessionMinutes: 60})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not aligned")
}

func TestExpandAvailabilityRoundsInwardWhenOptedIn(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday: {Start: "09:10", End: "11:50"},
	}

	slots, err := ExpandAvailability(avail, weekHorizon(t), GridConfig{ResolutionMinutes: 15, SessionMinutes: 60, RoundToGrid: true})
	require.NoError(t, err)

	// Window rounds inward to 09:15-11:45.
	require.NotEmpty(t, slots)
	assert.Equal(t, day(t, "2026-09-07").Add(9*time.Hour+15*time.Minute), slots[0].Start)
	assert.Equal(t, day(t, "2026-09-07").Add(10*time.Hour+45*time.Minute), slots[len(slots)-1].Start)
	for _, slot := range slots {
		assert.True(t, slot.AlignedTo(15), "rounded slot %s is off the 15m grid", slot.Start)
	}
}

func TestExpandAvailabilityRejectsCollapsedWindowAfterRounding(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday: {Start: "09:05", End: "09:10"},
	}

	_, err := ExpandAvailability(avail, weekHorizon(t), GridConfig{ResolutionMinutes: 15, SessionMinutes: 15, RoundToGrid: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collapses")
}

func TestExpandAvailabilityRejectsInvertedWindow(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday: {Start: "14:00", End: "09:00"},
	}

	_, err := ExpandAvailability(avail, weekHorizon(t), GridConfig{})
	require.Error(t, err)
}

func TestExpandAvailabilityRejectsInvalidClock(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday: {Start: "25:00", End: "26:00"},
	}

	_, err := ExpandAvailability(avail, weekHorizon(t), GridConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid start")
}

func TestGridConfigValidateRejectsBadSteps(t *testing.T) {
	err := GridConfig{ResolutionMinutes: 7, SessionMinutes: 70}.validate()
	require.Error(t, err)

	err = GridConfig{ResolutionMinutes: 30, SessionMinutes: 45}.validate()
	require.Error(t, err)

	require.NoError(t, GridConfig{ResolutionMinutes: 30, SessionMinutes: 90}.validate())
}

func TestClipAvailabilityNarrowsToBands(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday:  {Start: "08:00", End: "17:00"},
		time.Tuesday: {Start: "08:00", End: "17:00"},
	}
	bands := models.WeeklyAvailability{
		time.Monday: {Start: "15:00", End: "19:00"},
	}

	clipped, err := ClipAvailability(avail, bands)
	require.NoError(t, err)

	require.Len(t, clipped, 1)
	assert.Equal(t, models.DayWindow{Start: "15:00", End: "17:00"}, clipped[time.Monday])
}

func TestClipAvailabilityDropsDisjointBand(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday: {Start: "08:00", End: "10:00"},
	}
	bands := models.WeeklyAvailability{
		time.Monday: {Start: "14:00", End: "16:00"},
	}

	clipped, err := ClipAvailability(avail, bands)
	require.NoError(t, err)
	assert.Empty(t, clipped)
}

func TestClipAvailabilityEmptyBandsPassThrough(t *testing.T) {
	avail := models.WeeklyAvailability{
		time.Monday: {Start: "08:00", End: "10:00"},
	}

	clipped, err := ClipAvailability(avail, nil)
	require.NoError(t, err)
	assert.Equal(t, avail, clipped)
}

func TestTimeSlotOverlapsIsHalfOpen(t *testing.T) {
	base := day(t, "2026-09-07").Add(9 * time.Hour)
	a := models.TimeSlot{Start: base, Minutes: 60}
	b := models.TimeSlot{Start: base.Add(60 * time.Minute), Minutes: 60}
	c := models.TimeSlot{Start: base.Add(30 * time.Minute), Minutes: 60}

	assert.False(t, a.Overlaps(b), "touching slots do not overlap")
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(a))
}
