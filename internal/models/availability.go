package models

import "time"

// DayWindow bounds availability for a single weekday using "HH:MM" wall-clock
// times. A window is half-open: a therapist available 09:00-17:00 can start a
// session at 16:00 but not at 17:00.
type DayWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyAvailability maps a weekday to at most one availability window.
// Absent weekdays are fully unavailable.
type WeeklyAvailability map[time.Weekday]DayWindow

// Days returns the weekdays carrying a window, in Sunday-first order.
func (w WeeklyAvailability) Days() []time.Weekday {
	days := make([]time.Weekday, 0, len(w))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if _, ok := w[d]; ok {
			days = append(days, d)
		}
	}
	return days
}
