package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
)

func mondaySlot(t *testing.T, clock string, minutes int) models.TimeSlot {
	t.Helper()
	start, err := time.ParseInLocation("2006-01-02 15:04", "2026-09-07 "+clock, time.UTC)
	require.NoError(t, err)
	return models.TimeSlot{Start: start, Minutes: minutes}
}

func defaultLimits() ConstraintLimits {
	return ConstraintLimits{
		MinBreakMinutes:        15,
		MaxConsecutiveSessions: 4,
		MaxDailyHours:          8,
		MaxWeeklyHours:         40,
	}
}

func ledgerWith(t *testing.T, units int, committed ...models.Session) (*usageLedger, *models.Client) {
	t.Helper()
	client := &models.Client{
		ID: "c1",
		AuthorizedUnits: map[models.UnitCategory]int{
			models.UnitOneToOne: units,
		},
	}
	return newUsageLedger([]models.Client{*client}, committed), client
}

func candidateAt(client *models.Client, slot models.TimeSlot) Candidate {
	return Candidate{
		Therapist:   &models.Therapist{ID: "t1"},
		Client:      client,
		Slot:        slot,
		ServiceType: "direct_therapy",
	}
}

func TestCheckPassesFeasibleCandidate(t *testing.T) {
	ledger, client := ledgerWith(t, 100)
	detector := NewConflictDetector(defaultLimits())

	report := detector.Check(candidateAt(client, mondaySlot(t, "09:00", 60)), ledger)
	assert.Nil(t, report)
}

func TestCheckDetectsTherapistDoubleBooking(t *testing.T) {
	ledger, client := ledgerWith(t, 100, models.Session{
		ID: "s1", TherapistID: "t1", ClientID: "other",
		StartAt: mondaySlot(t, "09:00", 60).Start, Minutes: 60,
	})
	detector := NewConflictDetector(defaultLimits())

	report := detector.Check(candidateAt(client, mondaySlot(t, "09:30", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintDoubleBooking, report.Constraint)
	assert.Contains(t, report.Reason, "therapist t1")
}

func TestCheckDetectsClientDoubleBooking(t *testing.T) {
	ledger, client := ledgerWith(t, 100, models.Session{
		ID: "s1", TherapistID: "t2", ClientID: "c1",
		StartAt: mondaySlot(t, "09:00", 60).Start, Minutes: 60,
	})
	detector := NewConflictDetector(defaultLimits())

	report := detector.Check(candidateAt(client, mondaySlot(t, "09:30", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintDoubleBooking, report.Constraint)
	assert.Contains(t, report.Reason, "client c1")
}

func TestCheckAllowsBackToBackSessions(t *testing.T) {
	ledger, client := ledgerWith(t, 100, models.Session{
		ID: "s1", TherapistID: "t1", ClientID: "other",
		StartAt: mondaySlot(t, "09:00", 60).Start, Minutes: 60,
	})
	detector := NewConflictDetector(defaultLimits())

	// Zero gap is back-to-back, not a short break.
	report := detector.Check(candidateAt(client, mondaySlot(t, "10:00", 60)), ledger)
	assert.Nil(t, report)
}

func TestCheckDetectsShortBreak(t *testing.T) {
	ledger, client := ledgerWith(t, 100, models.Session{
		ID: "s1", TherapistID: "t1", ClientID: "other",
		StartAt: mondaySlot(t, "09:00", 60).Start, Minutes: 60,
	})
	limits := defaultLimits()
	limits.MinBreakMinutes = 30
	detector := NewConflictDetector(limits)

	report := detector.Check(candidateAt(client, mondaySlot(t, "10:15", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintMinBreak, report.Constraint)

	// A 30 minute gap satisfies the 30 minute break.
	report = detector.Check(candidateAt(client, mondaySlot(t, "10:30", 60)), ledger)
	assert.Nil(t, report)
}

func TestCheckDetectsDailyHourBound(t *testing.T) {
	sessions := []models.Session{
		{ID: "s1", TherapistID: "t1", ClientID: "o1", StartAt: mondaySlot(t, "08:00", 240).Start, Minutes: 240},
		{ID: "s2", TherapistID: "t1", ClientID: "o2", StartAt: mondaySlot(t, "13:00", 240).Start, Minutes: 240},
	}
	ledger, client := ledgerWith(t, 100, sessions...)
	limits := defaultLimits()
	limits.MinBreakMinutes = 0
	limits.MaxConsecutiveSessions = 0
	detector := NewConflictDetector(limits)

	report := detector.Check(candidateAt(client, mondaySlot(t, "18:00", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintHourBounds, report.Constraint)
	assert.Contains(t, report.Reason, "daily cap")
}

func TestCheckWeeklyCapUsesTherapistMaximumWhenTighter(t *testing.T) {
	ledger, client := ledgerWith(t, 100, models.Session{
		ID: "s1", TherapistID: "t1", ClientID: "o1",
		StartAt: mondaySlot(t, "08:00", 240).Start, Minutes: 240,
	})
	limits := defaultLimits()
	limits.MinBreakMinutes = 0
	detector := NewConflictDetector(limits)

	cand := candidateAt(client, mondaySlot(t, "13:00", 60))
	cand.Therapist = &models.Therapist{ID: "t1", MaxWeeklyHours: 4.5}

	report := detector.Check(cand, ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintHourBounds, report.Constraint)
	assert.Contains(t, report.Reason, "weekly cap")
}

func TestCheckDetectsMaxConsecutiveRun(t *testing.T) {
	sessions := []models.Session{
		{ID: "s1", TherapistID: "t1", ClientID: "o1", StartAt: mondaySlot(t, "09:00", 60).Start, Minutes: 60},
		{ID: "s2", TherapistID: "t1", ClientID: "o2", StartAt: mondaySlot(t, "10:00", 60).Start, Minutes: 60},
	}
	ledger, client := ledgerWith(t, 100, sessions...)
	limits := defaultLimits()
	limits.MinBreakMinutes = 0
	limits.MaxConsecutiveSessions = 2
	detector := NewConflictDetector(limits)

	// Joining the chain at either end makes a run of 3.
	report := detector.Check(candidateAt(client, mondaySlot(t, "11:00", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintMaxConsecutive, report.Constraint)

	report = detector.Check(candidateAt(client, mondaySlot(t, "08:00", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintMaxConsecutive, report.Constraint)

	// A detached slot later in the day is fine.
	report = detector.Check(candidateAt(client, mondaySlot(t, "14:00", 60)), ledger)
	assert.Nil(t, report)
}

func TestCheckCountsRunAcrossBothSides(t *testing.T) {
	sessions := []models.Session{
		{ID: "s1", TherapistID: "t1", ClientID: "o1", StartAt: mondaySlot(t, "09:00", 60).Start, Minutes: 60},
		{ID: "s2", TherapistID: "t1", ClientID: "o2", StartAt: mondaySlot(t, "11:00", 60).Start, Minutes: 60},
	}
	ledger, client := ledgerWith(t, 100, sessions...)
	limits := defaultLimits()
	limits.MinBreakMinutes = 0
	limits.MaxConsecutiveSessions = 2
	detector := NewConflictDetector(limits)

	// Filling the 10:00 hole bridges both neighbours into a run of 3.
	report := detector.Check(candidateAt(client, mondaySlot(t, "10:00", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintMaxConsecutive, report.Constraint)
}

func TestCheckDetectsUnitExhaustion(t *testing.T) {
	ledger, client := ledgerWith(t, 3)
	detector := NewConflictDetector(defaultLimits())

	// A 60 minute session needs 4 units; only 3 remain.
	report := detector.Check(candidateAt(client, mondaySlot(t, "09:00", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintUnitExhaustion, report.Constraint)
}

func TestCheckUnknownClientHasNoUnits(t *testing.T) {
	ledger, _ := ledgerWith(t, 100)
	detector := NewConflictDetector(defaultLimits())

	cand := candidateAt(&models.Client{ID: "ghost"}, mondaySlot(t, "09:00", 60))
	report := detector.Check(cand, ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintUnitExhaustion, report.Constraint)
}

func TestCheckReportsFirstViolationInFixedOrder(t *testing.T) {
	// Candidate violates both double-booking and unit exhaustion; the
	// double-booking check runs first.
	ledger, client := ledgerWith(t, 0, models.Session{
		ID: "s1", TherapistID: "t1", ClientID: "other",
		StartAt: mondaySlot(t, "09:00", 60).Start, Minutes: 60,
	})
	detector := NewConflictDetector(defaultLimits())

	report := detector.Check(candidateAt(client, mondaySlot(t, "09:00", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintDoubleBooking, report.Constraint)
}

func TestLedgerCommitDeductsUnitsAndBooksSlots(t *testing.T) {
	ledger, client := ledgerWith(t, 8)
	detector := NewConflictDetector(defaultLimits())

	cand := candidateAt(client, mondaySlot(t, "09:00", 60))
	require.Nil(t, detector.Check(cand, ledger))
	ledger.commit(cand)

	assert.Equal(t, 4, ledger.remainingUnits("c1", models.UnitOneToOne))

	// The same slot now double-books on both sides.
	report := detector.Check(candidateAt(client, mondaySlot(t, "09:00", 60)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintDoubleBooking, report.Constraint)
}

func TestCheckTerminatesWithZeroLengthCommittedSession(t *testing.T) {
	// A malformed storage row with zero minutes must not stall the
	// consecutive-run walk or count against the therapist.
	ledger, client := ledgerWith(t, 100, models.Session{
		ID: "s1", TherapistID: "t1", ClientID: "o1",
		StartAt: mondaySlot(t, "09:00", 0).Start, Minutes: 0,
	})
	detector := NewConflictDetector(defaultLimits())

	done := make(chan *models.ConflictReport, 1)
	go func() {
		done <- detector.Check(candidateAt(client, mondaySlot(t, "09:00", 60)), ledger)
	}()

	select {
	case report := <-done:
		assert.Nil(t, report)
	case <-time.After(2 * time.Second):
		t.Fatal("Check did not return against a zero-length committed session")
	}

	assert.Equal(t, 0, ledger.dailyMinutes("t1", mondaySlot(t, "09:00", 60)))
}

func TestCheckChargesPartialUnitsRoundedUp(t *testing.T) {
	// 20 minutes spans two 15 minute units, so one remaining unit is short.
	ledger, client := ledgerWith(t, 1)
	detector := NewConflictDetector(defaultLimits())

	report := detector.Check(candidateAt(client, mondaySlot(t, "09:00", 20)), ledger)
	require.NotNil(t, report)
	assert.Equal(t, models.ConstraintUnitExhaustion, report.Constraint)
	assert.Contains(t, report.Reason, "needs 2")

	ledger, client = ledgerWith(t, 2)
	cand := candidateAt(client, mondaySlot(t, "09:00", 20))
	require.Nil(t, detector.Check(cand, ledger))
	ledger.commit(cand)
	assert.Equal(t, 0, ledger.remainingUnits("c1", models.UnitOneToOne))
}

func TestLedgerSeedsHoursFromCommittedSessions(t *testing.T) {
	ledger, _ := ledgerWith(t, 100, models.Session{
		ID: "s1", TherapistID: "t1", ClientID: "o1",
		StartAt: mondaySlot(t, "08:00", 120).Start, Minutes: 120,
	})

	slot := mondaySlot(t, "13:00", 60)
	assert.Equal(t, 120, ledger.dailyMinutes("t1", slot))
	assert.Equal(t, 120, ledger.weeklyMinutes("t1", slot))
}
