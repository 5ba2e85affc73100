package models

import "time"

// Constraint names attached to rejected candidates. The detector evaluates
// them in this order and stops at the first violation.
const (
	ConstraintDoubleBooking  = "resource double-booking"
	ConstraintHourBounds     = "daily/weekly hour bounds"
	ConstraintMinBreak       = "minimum break requirement"
	ConstraintMaxConsecutive = "max consecutive sessions"
	ConstraintUnitExhaustion = "authorization/unit exhaustion"
	ConstraintInternalError  = "internal error"
)

// ConflictReport names the constraint that rejected a candidate plus a
// human-readable reason. Reports live only for the duration of one run.
type ConflictReport struct {
	Constraint string `json:"constraint"`
	Reason     string `json:"reason"`
}

// DiscardedCandidate is a rejected (therapist, client, slot) triple kept for
// run diagnostics.
type DiscardedCandidate struct {
	TherapistID string         `json:"therapistId"`
	ClientID    string         `json:"clientId"`
	Slot        TimeSlot       `json:"slot"`
	Report      ConflictReport `json:"report"`
}

// CompatibilityScore is the cached pairwise score between one therapist and
// one client, bounded to [0, 1].
type CompatibilityScore struct {
	TherapistID string    `json:"therapistId"`
	ClientID    string    `json:"clientId"`
	Score       float64   `json:"score"`
	ComputedAt  time.Time `json:"computedAt"`
}
