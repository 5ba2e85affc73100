package service

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
)

type pairScorer interface {
	Score(*models.Therapist, *models.Client) float64
}

// CandidateGenerator enumerates feasible (therapist, client, slot) triples
// and ranks them. Scoring runs across a bounded worker pool since pairs are
// independent and read a frozen snapshot; enumeration itself walks one client
// at a time to keep intermediate state small.
type CandidateGenerator struct {
	detector *ConflictDetector
	scorer   pairScorer
	workers  int
	logger   *zap.Logger
}

// NewCandidateGenerator wires the generator.
func NewCandidateGenerator(detector *ConflictDetector, scorer pairScorer, workers int, logger *zap.Logger) *CandidateGenerator {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandidateGenerator{detector: detector, scorer: scorer, workers: workers, logger: logger}
}

// GenerationResult carries the ranked survivors plus everything filtered out,
// with reasons, for run diagnostics.
type GenerationResult struct {
	Candidates []Candidate
	Discards   []models.DiscardedCandidate
	Evaluated  int
}

type scoredPair struct {
	therapist *models.Therapist
	client    *models.Client
	score     float64
	failed    bool
}

// Generate builds the ranked candidate list for one run. therapistSlots and
// clientSlots hold each entity's normalized availability; slots from both
// sides come from the same grid expansion so set intersection is exact.
// Candidates are ordered by score descending, then slot start, therapist id
// and client id ascending, which is a total, deterministic order.
func (g *CandidateGenerator) Generate(
	ctx context.Context,
	therapists []models.Therapist,
	clients []models.Client,
	therapistSlots map[string][]models.TimeSlot,
	clientSlots map[string][]models.TimeSlot,
	serviceType string,
	ledger *usageLedger,
) GenerationResult {
	eligible := make([]*models.Therapist, 0, len(therapists))
	for i := range therapists {
		if therapists[i].OffersService(serviceType) {
			eligible = append(eligible, &therapists[i])
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })

	ordered := make([]*models.Client, 0, len(clients))
	for i := range clients {
		ordered = append(ordered, &clients[i])
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	pairs := g.scorePairs(eligible, ordered)
	scores := make(map[PairKey]scoredPair, len(pairs))
	for _, p := range pairs {
		scores[PairKey{TherapistID: p.therapist.ID, ClientID: p.client.ID}] = p
	}

	var result GenerationResult
	for _, client := range ordered {
		if ctx.Err() != nil {
			break
		}
		slotSet := make(map[models.TimeSlot]struct{}, len(clientSlots[client.ID]))
		for _, slot := range clientSlots[client.ID] {
			slotSet[slot] = struct{}{}
		}
		if len(slotSet) == 0 {
			continue
		}

		for _, therapist := range eligible {
			pair := scores[PairKey{TherapistID: therapist.ID, ClientID: client.ID}]
			for _, slot := range therapistSlots[therapist.ID] {
				if _, shared := slotSet[slot]; !shared {
					continue
				}
				result.Evaluated++

				cand := Candidate{
					Therapist:   therapist,
					Client:      client,
					Slot:        slot,
					ServiceType: serviceType,
					Score:       pair.score,
				}
				report := g.evaluate(cand, pair.failed, ledger)
				if report != nil {
					result.Discards = append(result.Discards, models.DiscardedCandidate{
						TherapistID: therapist.ID,
						ClientID:    client.ID,
						Slot:        slot,
						Report:      *report,
					})
					continue
				}
				result.Candidates = append(result.Candidates, cand)
			}
		}
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return lessCandidate(result.Candidates[i], result.Candidates[j])
	})
	return result
}

// evaluate runs the conflict check inside a per-candidate panic boundary: a
// single bad data point becomes a discard, never an aborted run.
func (g *CandidateGenerator) evaluate(cand Candidate, scoreFailed bool, ledger *usageLedger) (report *models.ConflictReport) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("candidate evaluation panicked",
				zap.String("therapist_id", cand.Therapist.ID),
				zap.String("client_id", cand.Client.ID),
				zap.Any("panic", r))
			report = &models.ConflictReport{Constraint: models.ConstraintInternalError, Reason: "internal error"}
		}
	}()

	if scoreFailed {
		return &models.ConflictReport{Constraint: models.ConstraintInternalError, Reason: "internal error"}
	}
	return g.detector.Check(cand, ledger)
}

func (g *CandidateGenerator) scorePairs(therapists []*models.Therapist, clients []*models.Client) []scoredPair {
	pairs := make([]scoredPair, 0, len(therapists)*len(clients))
	for _, t := range therapists {
		for _, c := range clients {
			pairs = append(pairs, scoredPair{therapist: t, client: c})
		}
	}

	workers := g.workers
	if workers > len(pairs) {
		workers = len(pairs)
	}
	if workers <= 1 {
		for i := range pairs {
			pairs[i].score, pairs[i].failed = g.safeScore(pairs[i])
		}
		return pairs
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				pairs[i].score, pairs[i].failed = g.safeScore(pairs[i])
			}
		}()
	}
	for i := range pairs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return pairs
}

func (g *CandidateGenerator) safeScore(pair scoredPair) (score float64, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("pair scoring panicked",
				zap.String("therapist_id", pair.therapist.ID),
				zap.String("client_id", pair.client.ID),
				zap.Any("panic", r))
			score, failed = 0, true
		}
	}()
	return g.scorer.Score(pair.therapist, pair.client), false
}

func lessCandidate(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Slot.Start.Equal(b.Slot.Start) {
		return a.Slot.Before(b.Slot)
	}
	if a.Therapist.ID != b.Therapist.ID {
		return a.Therapist.ID < b.Therapist.ID
	}
	return a.Client.ID < b.Client.ID
}
