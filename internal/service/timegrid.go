package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/aba-scheduler-api/pkg/errors"
)

const minutesPerDay = 24 * 60

// Horizon is the half-open date range [Start, End) a run schedules over.
// Both bounds are UTC midnights.
type Horizon struct {
	Start time.Time
	End   time.Time
}

// Days yields each date in the horizon.
func (h Horizon) Days() []time.Time {
	var days []time.Time
	for d := h.Start; d.Before(h.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// GridConfig controls slot discretisation. Slots are SessionMinutes wide and
// start every ResolutionMinutes inside an availability window. RoundToGrid
// rounds misaligned window boundaries inward instead of rejecting them.
type GridConfig struct {
	ResolutionMinutes int
	SessionMinutes    int
	RoundToGrid       bool
}

func (g GridConfig) withDefaults() GridConfig {
	if g.ResolutionMinutes <= 0 {
		g.ResolutionMinutes = 15
	}
	if g.SessionMinutes <= 0 {
		g.SessionMinutes = 60
	}
	return g
}

func (g GridConfig) validate() error {
	g = g.withDefaults()
	if minutesPerDay%g.ResolutionMinutes != 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grid resolution %dm must divide a day evenly", g.ResolutionMinutes))
	}
	if g.SessionMinutes%g.ResolutionMinutes != 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session length %dm must be a multiple of the %dm grid", g.SessionMinutes, g.ResolutionMinutes))
	}
	return nil
}

// ExpandAvailability converts weekly availability windows into the set of
// grid-aligned, session-width slots inside the horizon. It is a pure
// function: malformed windows produce a validation error, never a silently
// dropped entity.
func ExpandAvailability(avail models.WeeklyAvailability, horizon Horizon, grid GridConfig) ([]models.TimeSlot, error) {
	grid = grid.withDefaults()
	if err := grid.validate(); err != nil {
		return nil, err
	}

	// Iterate weekdays in order so the first malformed window reported is
	// stable across runs.
	windows := make(map[time.Weekday][2]int, len(avail))
	for _, day := range avail.Days() {
		start, end, err := normalizeWindow(day, avail[day], grid)
		if err != nil {
			return nil, err
		}
		windows[day] = [2]int{start, end}
	}

	var slots []models.TimeSlot
	for _, date := range horizon.Days() {
		bounds, ok := windows[date.Weekday()]
		if !ok {
			continue
		}
		for offset := bounds[0]; offset+grid.SessionMinutes <= bounds[1]; offset += grid.ResolutionMinutes {
			slots = append(slots, models.TimeSlot{
				Start:   date.Add(time.Duration(offset) * time.Minute),
				Minutes: grid.SessionMinutes,
			})
		}
	}
	return slots, nil
}

// ClipAvailability narrows availability to the given preferred bands. Days
// outside the bands are dropped; overlapping windows are clipped. Empty bands
// leave the availability untouched.
func ClipAvailability(avail, bands models.WeeklyAvailability) (models.WeeklyAvailability, error) {
	if len(bands) == 0 {
		return avail, nil
	}

	clipped := make(models.WeeklyAvailability, len(avail))
	for day, window := range avail {
		band, ok := bands[day]
		if !ok {
			continue
		}
		ws, we, err := parseWindow(day, window)
		if err != nil {
			return nil, err
		}
		bs, be, err := parseWindow(day, band)
		if err != nil {
			return nil, err
		}
		start := maxInt(ws, bs)
		end := minInt(we, be)
		if start >= end {
			continue
		}
		clipped[day] = models.DayWindow{Start: formatClock(start), End: formatClock(end)}
	}
	return clipped, nil
}

func normalizeWindow(day time.Weekday, window models.DayWindow, grid GridConfig) (int, int, error) {
	start, end, err := parseWindow(day, window)
	if err != nil {
		return 0, 0, err
	}

	if start%grid.ResolutionMinutes != 0 || end%grid.ResolutionMinutes != 0 {
		if !grid.RoundToGrid {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("%s window %s-%s is not aligned to the %dm grid", day, window.Start, window.End, grid.ResolutionMinutes))
		}
		// Round inward so rounding never widens availability.
		start = roundUp(start, grid.ResolutionMinutes)
		end = roundDown(end, grid.ResolutionMinutes)
		if start >= end {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("%s window %s-%s collapses after grid rounding", day, window.Start, window.End))
		}
	}
	return start, end, nil
}

func parseWindow(day time.Weekday, window models.DayWindow) (int, int, error) {
	start, err := parseClock(window.Start)
	if err != nil {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s window has invalid start %q", day, window.Start))
	}
	end, err := parseClock(window.End)
	if err != nil {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s window has invalid end %q", day, window.End))
	}
	if start >= end {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s window start %s must be before end %s", day, window.Start, window.End))
	}
	return start, end, nil
}

// parseClock converts "HH:MM" into minutes from midnight.
func parseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hours*60 + minutes, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func roundUp(value, step int) int {
	if rem := value % step; rem != 0 {
		return value + step - rem
	}
	return value
}

func roundDown(value, step int) int {
	return value - value%step
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
