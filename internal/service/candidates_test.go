package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
)

type fixedScorer struct {
	scores map[PairKey]float64
}

func (f *fixedScorer) Score(t *models.Therapist, c *models.Client) float64 {
	return f.scores[PairKey{TherapistID: t.ID, ClientID: c.ID}]
}

type panickingScorer struct{}

func (p *panickingScorer) Score(t *models.Therapist, c *models.Client) float64 {
	panic("corrupt roster record")
}

func generatorInputs(t *testing.T) ([]models.Therapist, []models.Client, map[string][]models.TimeSlot, map[string][]models.TimeSlot) {
	t.Helper()
	therapists := []models.Therapist{
		{ID: "t1", Specialties: []string{"verbal_behavior"}},
		{ID: "t2", Specialties: []string{"verbal_behavior"}},
	}
	clients := []models.Client{
		{ID: "c1", Preferences: []string{"verbal_behavior"},
			AuthorizedUnits: map[models.UnitCategory]int{models.UnitOneToOne: 100}},
	}

	slots := []models.TimeSlot{
		mondaySlot(t, "09:00", 60),
		mondaySlot(t, "10:00", 60),
	}
	therapistSlots := map[string][]models.TimeSlot{"t1": slots, "t2": slots}
	clientSlots := map[string][]models.TimeSlot{"c1": slots}
	return therapists, clients, therapistSlots, clientSlots
}

func TestGenerateRanksByScoreThenSlotThenIDs(t *testing.T) {
	therapists, clients, therapistSlots, clientSlots := generatorInputs(t)
	ledger := newUsageLedger(clients, nil)

	scorer := &fixedScorer{scores: map[PairKey]float64{
		{TherapistID: "t1", ClientID: "c1"}: 0.4,
		{TherapistID: "t2", ClientID: "c1"}: 0.9,
	}}
	gen := NewCandidateGenerator(NewConflictDetector(ConstraintLimits{}), scorer, 1, nil)

	result := gen.Generate(context.Background(), therapists, clients, therapistSlots, clientSlots, "direct_therapy", ledger)

	require.Len(t, result.Candidates, 4)
	assert.Equal(t, 4, result.Evaluated)

	// Higher-scoring therapist first, earlier slots before later ones.
	assert.Equal(t, "t2", result.Candidates[0].Therapist.ID)
	assert.Equal(t, "09:00", result.Candidates[0].Slot.Start.Format("15:04"))
	assert.Equal(t, "t2", result.Candidates[1].Therapist.ID)
	assert.Equal(t, "10:00", result.Candidates[1].Slot.Start.Format("15:04"))
	assert.Equal(t, "t1", result.Candidates[2].Therapist.ID)
}

func TestGenerateTieBreaksDeterministically(t *testing.T) {
	therapists, clients, therapistSlots, clientSlots := generatorInputs(t)
	ledger := newUsageLedger(clients, nil)

	scorer := &fixedScorer{scores: map[PairKey]float64{
		{TherapistID: "t1", ClientID: "c1"}: 0.5,
		{TherapistID: "t2", ClientID: "c1"}: 0.5,
	}}
	gen := NewCandidateGenerator(NewConflictDetector(ConstraintLimits{}), scorer, 4, nil)

	result := gen.Generate(context.Background(), therapists, clients, therapistSlots, clientSlots, "direct_therapy", ledger)

	require.Len(t, result.Candidates, 4)
	// Equal scores order by slot start, then therapist ID.
	assert.Equal(t, "09:00", result.Candidates[0].Slot.Start.Format("15:04"))
	assert.Equal(t, "t1", result.Candidates[0].Therapist.ID)
	assert.Equal(t, "09:00", result.Candidates[1].Slot.Start.Format("15:04"))
	assert.Equal(t, "t2", result.Candidates[1].Therapist.ID)
}

func TestGenerateOnlyIntersectingSlots(t *testing.T) {
	therapists, clients, therapistSlots, _ := generatorInputs(t)
	ledger := newUsageLedger(clients, nil)

	clientSlots := map[string][]models.TimeSlot{
		"c1": {mondaySlot(t, "10:00", 60), mondaySlot(t, "14:00", 60)},
	}

	scorer := &fixedScorer{scores: map[PairKey]float64{}}
	gen := NewCandidateGenerator(NewConflictDetector(ConstraintLimits{}), scorer, 1, nil)

	result := gen.Generate(context.Background(), therapists, clients, therapistSlots, clientSlots, "direct_therapy", ledger)

	// Only the 10:00 slot is shared; 14:00 has no therapist coverage.
	require.Len(t, result.Candidates, 2)
	for _, cand := range result.Candidates {
		assert.Equal(t, "10:00", cand.Slot.Start.Format("15:04"))
	}
}

func TestGenerateScoringPanicBecomesDiscard(t *testing.T) {
	therapists, clients, therapistSlots, clientSlots := generatorInputs(t)
	ledger := newUsageLedger(clients, nil)

	gen := NewCandidateGenerator(NewConflictDetector(ConstraintLimits{}), &panickingScorer{}, 2, nil)

	result := gen.Generate(context.Background(), therapists, clients, therapistSlots, clientSlots, "direct_therapy", ledger)

	assert.Empty(t, result.Candidates)
	require.Len(t, result.Discards, 4)
	for _, d := range result.Discards {
		assert.Equal(t, models.ConstraintInternalError, d.Report.Constraint)
	}
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	therapists, clients, therapistSlots, clientSlots := generatorInputs(t)
	ledger := newUsageLedger(clients, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scorer := &fixedScorer{scores: map[PairKey]float64{}}
	gen := NewCandidateGenerator(NewConflictDetector(ConstraintLimits{}), scorer, 1, nil)

	result := gen.Generate(ctx, therapists, clients, therapistSlots, clientSlots, "direct_therapy", ledger)
	assert.Empty(t, result.Candidates)
	assert.Zero(t, result.Evaluated)
}

func TestGenerateFiltersIneligibleTherapists(t *testing.T) {
	therapists, clients, therapistSlots, clientSlots := generatorInputs(t)
	therapists[0].ServiceTypes = []string{"parent_consult"}
	ledger := newUsageLedger(clients, nil)

	scorer := &fixedScorer{scores: map[PairKey]float64{}}
	gen := NewCandidateGenerator(NewConflictDetector(ConstraintLimits{}), scorer, 1, nil)

	result := gen.Generate(context.Background(), therapists, clients, therapistSlots, clientSlots, "direct_therapy", ledger)

	for _, cand := range result.Candidates {
		assert.NotEqual(t, "t1", cand.Therapist.ID)
	}
	assert.Equal(t, 2, result.Evaluated)
}

func TestLessCandidateIsTotalOrder(t *testing.T) {
	a := Candidate{
		Therapist: &models.Therapist{ID: "t1"},
		Client:    &models.Client{ID: "c1"},
		Slot:      mondaySlot(t, "09:00", 60),
		Score:     0.5,
	}
	b := a
	b.Score = 0.6

	assert.True(t, lessCandidate(b, a))
	assert.False(t, lessCandidate(a, b))

	c := a
	c.Slot = mondaySlot(t, "10:00", 60)
	assert.True(t, lessCandidate(a, c))

	d := a
	d.Client = &models.Client{ID: "c2"}
	assert.True(t, lessCandidate(a, d))
	assert.False(t, lessCandidate(d, a))

	assert.False(t, lessCandidate(a, a), "irreflexive on equal candidates")
}
