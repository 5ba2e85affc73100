package models

import "time"

// SessionStatus represents the engine-visible lifecycle of a session.
// Transitions beyond COMMITTED (completed, cancelled) belong to the
// surrounding application.
type SessionStatus string

const (
	SessionStatusProposed  SessionStatus = "PROPOSED"
	SessionStatusCommitted SessionStatus = "COMMITTED"
	SessionStatusRejected  SessionStatus = "REJECTED"
)

// Session is a therapy session, proposed by the assembler or already
// committed in the persisted calendar. Committed sessions are immutable.
type Session struct {
	ID          string        `db:"id" json:"id"`
	TherapistID string        `db:"therapist_id" json:"therapistId"`
	ClientID    string        `db:"client_id" json:"clientId"`
	ServiceType string        `db:"service_type" json:"serviceType"`
	StartAt     time.Time     `db:"start_at" json:"startAt"`
	Minutes     int           `db:"minutes" json:"minutes"`
	Status      SessionStatus `db:"status" json:"status"`
	Score       float64       `db:"score" json:"score"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}

// Slot returns the session's time slot.
func (s *Session) Slot() TimeSlot {
	return TimeSlot{Start: s.StartAt, Minutes: s.Minutes}
}
