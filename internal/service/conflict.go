package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
)

// unitMinutes is the span of one authorized service unit, matching the 15
// minute scheduling grid used by payer authorizations.
const unitMinutes = 15

// Candidate is a (therapist, client, slot) triple under consideration.
type Candidate struct {
	Therapist   *models.Therapist
	Client      *models.Client
	Slot        models.TimeSlot
	ServiceType string
	Score       float64
}

// ConstraintLimits are the run-level hard constraints.
type ConstraintLimits struct {
	MinBreakMinutes        int
	MaxConsecutiveSessions int
	MaxDailyHours          float64
	MaxWeeklyHours         float64
}

type dayUsageKey struct {
	TherapistID string
	Year        int
	YearDay     int
}

type weekUsageKey struct {
	TherapistID string
	Year        int
	Week        int
}

// usageLedger is the in-memory running total of committed slots, hours and
// consumed authorization units during one run. It is seeded once from
// committed state and mutated only by the assembler's sequential commit loop.
type usageLedger struct {
	therapistSlots  map[string][]models.TimeSlot
	clientSlots     map[string][]models.TimeSlot
	therapistDaily  map[dayUsageKey]int
	therapistWeekly map[weekUsageKey]int
	unitsRemaining  map[string]map[models.UnitCategory]int
}

// newUsageLedger seeds the ledger from the frozen snapshot. Client unit
// balances arrive already netted against persisted sessions, so only slots
// and hour totals are derived from the committed session list here.
func newUsageLedger(clients []models.Client, committed []models.Session) *usageLedger {
	l := &usageLedger{
		therapistSlots:  make(map[string][]models.TimeSlot),
		clientSlots:     make(map[string][]models.TimeSlot),
		therapistDaily:  make(map[dayUsageKey]int),
		therapistWeekly: make(map[weekUsageKey]int),
		unitsRemaining:  make(map[string]map[models.UnitCategory]int),
	}

	for i := range clients {
		balances := make(map[models.UnitCategory]int, len(clients[i].AuthorizedUnits))
		for category, units := range clients[i].AuthorizedUnits {
			balances[category] = units
		}
		l.unitsRemaining[clients[i].ID] = balances
	}

	for i := range committed {
		s := &committed[i]
		slot := s.Slot()
		if slot.Minutes <= 0 {
			// Malformed storage row. A zero-length slot carries no load and
			// would stall the consecutive-run walk, so it is dropped here.
			continue
		}
		l.therapistSlots[s.TherapistID] = append(l.therapistSlots[s.TherapistID], slot)
		l.clientSlots[s.ClientID] = append(l.clientSlots[s.ClientID], slot)
		l.addMinutes(s.TherapistID, slot)
	}
	return l
}

func (l *usageLedger) addMinutes(therapistID string, slot models.TimeSlot) {
	start := slot.Start.UTC()
	year, week := start.ISOWeek()
	l.therapistDaily[dayUsageKey{TherapistID: therapistID, Year: start.Year(), YearDay: start.YearDay()}] += slot.Minutes
	l.therapistWeekly[weekUsageKey{TherapistID: therapistID, Year: year, Week: week}] += slot.Minutes
}

func (l *usageLedger) dailyMinutes(therapistID string, slot models.TimeSlot) int {
	start := slot.Start.UTC()
	return l.therapistDaily[dayUsageKey{TherapistID: therapistID, Year: start.Year(), YearDay: start.YearDay()}]
}

func (l *usageLedger) weeklyMinutes(therapistID string, slot models.TimeSlot) int {
	year, week := slot.Start.UTC().ISOWeek()
	return l.therapistWeekly[weekUsageKey{TherapistID: therapistID, Year: year, Week: week}]
}

func (l *usageLedger) remainingUnits(clientID string, category models.UnitCategory) int {
	balances, ok := l.unitsRemaining[clientID]
	if !ok {
		return 0
	}
	return balances[category]
}

// commit records an accepted candidate. Callers must check feasibility first.
func (l *usageLedger) commit(cand Candidate) {
	l.therapistSlots[cand.Therapist.ID] = append(l.therapistSlots[cand.Therapist.ID], cand.Slot)
	l.clientSlots[cand.Client.ID] = append(l.clientSlots[cand.Client.ID], cand.Slot)
	l.addMinutes(cand.Therapist.ID, cand.Slot)

	category := models.UnitCategoryFor(cand.ServiceType)
	if balances, ok := l.unitsRemaining[cand.Client.ID]; ok {
		balances[category] -= unitsFor(cand.Slot.Minutes)
	}
}

// ConflictDetector evaluates hard feasibility constraints for a candidate
// against the current ledger. Checks run in a fixed order and the first
// failure short-circuits.
type ConflictDetector struct {
	limits ConstraintLimits
}

// NewConflictDetector builds a detector with the given limits.
func NewConflictDetector(limits ConstraintLimits) *ConflictDetector {
	return &ConflictDetector{limits: limits}
}

// Check returns nil when the candidate is feasible, otherwise the report for
// the first violated constraint. It is a pure function of the candidate and
// the ledger; it never touches external storage.
func (d *ConflictDetector) Check(cand Candidate, ledger *usageLedger) *models.ConflictReport {
	if report := d.checkDoubleBooking(cand, ledger); report != nil {
		return report
	}
	if report := d.checkHourBounds(cand, ledger); report != nil {
		return report
	}
	if report := d.checkMinBreak(cand, ledger); report != nil {
		return report
	}
	if report := d.checkMaxConsecutive(cand, ledger); report != nil {
		return report
	}
	return d.checkUnits(cand, ledger)
}

func (d *ConflictDetector) checkDoubleBooking(cand Candidate, ledger *usageLedger) *models.ConflictReport {
	for _, slot := range ledger.therapistSlots[cand.Therapist.ID] {
		if cand.Slot.Overlaps(slot) {
			return &models.ConflictReport{
				Constraint: models.ConstraintDoubleBooking,
				Reason:     fmt.Sprintf("therapist %s already booked %s-%s", cand.Therapist.ID, clock(slot.Start), clock(slot.End())),
			}
		}
	}
	for _, slot := range ledger.clientSlots[cand.Client.ID] {
		if cand.Slot.Overlaps(slot) {
			return &models.ConflictReport{
				Constraint: models.ConstraintDoubleBooking,
				Reason:     fmt.Sprintf("client %s already booked %s-%s", cand.Client.ID, clock(slot.Start), clock(slot.End())),
			}
		}
	}
	return nil
}

func (d *ConflictDetector) checkHourBounds(cand Candidate, ledger *usageLedger) *models.ConflictReport {
	if d.limits.MaxDailyHours > 0 {
		projected := float64(ledger.dailyMinutes(cand.Therapist.ID, cand.Slot)+cand.Slot.Minutes) / 60
		if projected > d.limits.MaxDailyHours {
			return &models.ConflictReport{
				Constraint: models.ConstraintHourBounds,
				Reason:     fmt.Sprintf("therapist %s would reach %.2fh on %s, above the %.1fh daily cap", cand.Therapist.ID, projected, cand.Slot.Start.Format("2006-01-02"), d.limits.MaxDailyHours),
			}
		}
	}

	weeklyCap := d.limits.MaxWeeklyHours
	if cand.Therapist.MaxWeeklyHours > 0 && (weeklyCap <= 0 || cand.Therapist.MaxWeeklyHours < weeklyCap) {
		weeklyCap = cand.Therapist.MaxWeeklyHours
	}
	if weeklyCap > 0 {
		projected := float64(ledger.weeklyMinutes(cand.Therapist.ID, cand.Slot)+cand.Slot.Minutes) / 60
		if projected > weeklyCap {
			return &models.ConflictReport{
				Constraint: models.ConstraintHourBounds,
				Reason:     fmt.Sprintf("therapist %s would reach %.2fh this week, above the %.1fh weekly cap", cand.Therapist.ID, projected, weeklyCap),
			}
		}
	}
	return nil
}

func (d *ConflictDetector) checkMinBreak(cand Candidate, ledger *usageLedger) *models.ConflictReport {
	if d.limits.MinBreakMinutes <= 0 {
		return nil
	}
	minBreak := time.Duration(d.limits.MinBreakMinutes) * time.Minute
	for _, slot := range ledger.therapistSlots[cand.Therapist.ID] {
		if !slot.SameDay(cand.Slot) {
			continue
		}
		gap := gapBetween(cand.Slot, slot)
		if gap > 0 && gap < minBreak {
			return &models.ConflictReport{
				Constraint: models.ConstraintMinBreak,
				Reason:     fmt.Sprintf("only %dm before/after the %s session, below the %dm break", int(gap.Minutes()), clock(slot.Start), d.limits.MinBreakMinutes),
			}
		}
	}
	return nil
}

func (d *ConflictDetector) checkMaxConsecutive(cand Candidate, ledger *usageLedger) *models.ConflictReport {
	if d.limits.MaxConsecutiveSessions <= 0 {
		return nil
	}

	slots := ledger.therapistSlots[cand.Therapist.ID]
	run := 1

	// Walk gap-free neighbours backwards from the candidate, then forwards.
	// Each step must move the cursor strictly, so a degenerate slot cannot
	// re-match and stall the walk.
	cursor := cand.Slot.Start
	for extended := true; extended; {
		extended = false
		for _, slot := range slots {
			if slot.End().Equal(cursor) && slot.Start.Before(cursor) {
				run++
				cursor = slot.Start
				extended = true
				break
			}
		}
	}
	cursor = cand.Slot.End()
	for extended := true; extended; {
		extended = false
		for _, slot := range slots {
			if slot.Start.Equal(cursor) && slot.End().After(cursor) {
				run++
				cursor = slot.End()
				extended = true
				break
			}
		}
	}

	if run > d.limits.MaxConsecutiveSessions {
		return &models.ConflictReport{
			Constraint: models.ConstraintMaxConsecutive,
			Reason:     fmt.Sprintf("would create a run of %d back-to-back sessions, above the maximum of %d", run, d.limits.MaxConsecutiveSessions),
		}
	}
	return nil
}

func (d *ConflictDetector) checkUnits(cand Candidate, ledger *usageLedger) *models.ConflictReport {
	category := models.UnitCategoryFor(cand.ServiceType)
	needed := unitsFor(cand.Slot.Minutes)
	remaining := ledger.remainingUnits(cand.Client.ID, category)
	if remaining < needed {
		return &models.ConflictReport{
			Constraint: models.ConstraintUnitExhaustion,
			Reason:     fmt.Sprintf("client %s has %d %s units left, session needs %d", cand.Client.ID, remaining, category, needed),
		}
	}
	return nil
}

// unitsFor converts a session length to authorization units, rounding up so a
// partial grid step still consumes a whole unit.
func unitsFor(minutes int) int {
	return (minutes + unitMinutes - 1) / unitMinutes
}

func gapBetween(a, b models.TimeSlot) time.Duration {
	if a.Start.After(b.End()) || a.Start.Equal(b.End()) {
		return a.Start.Sub(b.End())
	}
	if b.Start.After(a.End()) || b.Start.Equal(a.End()) {
		return b.Start.Sub(a.End())
	}
	return 0
}

func clock(t time.Time) string {
	return t.UTC().Format("15:04")
}
