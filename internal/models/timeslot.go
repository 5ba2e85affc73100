package models

import "time"

// TimeSlot is a half-open interval [Start, Start+Minutes) aligned to the
// scheduling grid. It is a comparable value type usable as a map key.
type TimeSlot struct {
	Start   time.Time `json:"start"`
	Minutes int       `json:"minutes"`
}

// End returns the exclusive upper bound of the slot.
func (s TimeSlot) End() time.Time {
	return s.Start.Add(s.Duration())
}

// Duration returns the slot length.
func (s TimeSlot) Duration() time.Duration {
	return time.Duration(s.Minutes) * time.Minute
}

// MinutesSinceEpoch returns the slot start in whole minutes from the Unix
// epoch, the quantity grid alignment is defined over.
func (s TimeSlot) MinutesSinceEpoch() int64 {
	return s.Start.Unix() / 60
}

// AlignedTo reports whether both slot boundaries land on the grid.
func (s TimeSlot) AlignedTo(resolutionMinutes int) bool {
	if resolutionMinutes <= 0 {
		return false
	}
	res := int64(resolutionMinutes)
	if s.MinutesSinceEpoch()%res != 0 {
		return false
	}
	return int64(s.Minutes)%res == 0
}

// Overlaps reports whether two half-open intervals intersect.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Start.Before(other.End()) && other.Start.Before(s.End())
}

// Before orders slots by start time; used for deterministic ranking.
func (s TimeSlot) Before(other TimeSlot) bool {
	return s.Start.Before(other.Start)
}

// SameDay reports whether both slots start on the same calendar day in UTC.
func (s TimeSlot) SameDay(other TimeSlot) bool {
	y1, m1, d1 := s.Start.UTC().Date()
	y2, m2, d2 := other.Start.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
