package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/aba-scheduler-api/internal/dto"
	"github.com/noah-isme/aba-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/aba-scheduler-api/pkg/errors"
	"github.com/noah-isme/aba-scheduler-api/pkg/jobs"
	"github.com/noah-isme/aba-scheduler-api/pkg/memocache"
)

// Run states for one scheduling computation.
const (
	RunStatePending   = "PENDING"
	RunStateAssigning = "ASSIGNING"
	RunStateDone      = "DONE"
	RunStateFailed    = "FAILED"
)

const (
	runCachePrefix = "schedule:run"
	horizonMaxDays = 92
)

type rosterRepository interface {
	ListTherapists(ctx context.Context) ([]models.Therapist, error)
	ListClients(ctx context.Context) ([]models.Client, error)
}

type sessionRepository interface {
	ListCommittedBetween(ctx context.Context, from, to time.Time) ([]models.Session, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.Session) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type resultCache interface {
	Enabled() bool
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SchedulerServiceConfig governs engine behaviour.
type SchedulerServiceConfig struct {
	GridResolutionMinutes int
	SessionMinutes        int
	ProposalTTL           time.Duration
	SweepInterval         time.Duration
	ResultCacheTTL        time.Duration
	Limits                ConstraintLimits
	Workers               int
	QueueBuffer           int
}

// SchedulerService runs the auto-scheduling pipeline: snapshot load, grid
// normalization, candidate generation/ranking and greedy assembly. Each run
// works against a frozen snapshot; the commit loop is strictly sequential.
type SchedulerService struct {
	roster    rosterRepository
	sessions  sessionRepository
	tx        txProvider
	results   resultCache
	scorer    *CompatibilityService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SchedulerServiceConfig

	proposals   *memocache.Cache[string, scheduleProposal]
	queue       *jobs.Queue[dto.GenerateScheduleRequest]
	sweepCancel context.CancelFunc
}

// NewSchedulerService wires scheduler dependencies.
func NewSchedulerService(
	roster rosterRepository,
	sessions sessionRepository,
	tx txProvider,
	results resultCache,
	scorer *CompatibilityService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulerServiceConfig,
) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if scorer == nil {
		scorer = NewCompatibilityService(nil, 0, logger)
	}
	if cfg.GridResolutionMinutes <= 0 {
		cfg.GridResolutionMinutes = 15
	}
	if cfg.SessionMinutes <= 0 {
		cfg.SessionMinutes = 60
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	s := &SchedulerService{
		roster:    roster,
		sessions:  sessions,
		tx:        tx,
		results:   results,
		scorer:    scorer,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		proposals: memocache.New[string, scheduleProposal](),
	}
	s.queue = jobs.NewQueue("schedule-runs", s.runJob, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.QueueBuffer,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the async-run queue and the cache sweeper.
func (s *SchedulerService) Start(ctx context.Context) {
	s.queue.Start(ctx)

	sweepCtx, cancel := context.WithCancel(ctx)
	s.sweepCancel = cancel
	go s.sweep(sweepCtx)
}

// Stop halts background work and waits for in-flight runs.
func (s *SchedulerService) Stop() {
	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	s.queue.Stop()
}

func (s *SchedulerService) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scores := s.scorer.SweepExpired()
			proposals := s.proposals.InvalidateExpired()
			if scores > 0 || proposals > 0 {
				s.logger.Debug("cache sweep",
					zap.Int("expired_scores", scores),
					zap.Int("expired_proposals", proposals))
			}
		}
	}
}

// Generate runs the engine synchronously and returns the full proposal.
// Identical requests within the result-cache TTL are served from Redis.
func (s *SchedulerService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	cacheKey := RequestKey(runCachePrefix, req)
	if s.results != nil && s.results.Enabled() {
		var cached dto.GenerateScheduleResponse
		if hit, _ := s.results.Get(ctx, cacheKey, &cached); hit {
			// Re-seed the proposal store so the cached proposal stays
			// committable.
			s.storeProposal(scheduleProposal{
				ID:          cached.ProposalID,
				State:       cached.State,
				Sessions:    cached.Sessions,
				Discards:    cached.Discards,
				Stats:       cached.Stats,
				RequestedAt: time.Now().UTC(),
			})
			return &cached, nil
		}
	}

	resp, err := s.run(ctx, uuid.NewString(), req, plan)
	if err != nil {
		return nil, err
	}

	if s.results != nil && s.results.Enabled() {
		_ = s.results.Set(ctx, cacheKey, resp, s.cfg.ResultCacheTTL)
	}
	return resp, nil
}

// EnqueueGenerate validates the request and schedules it on the run queue.
func (s *SchedulerService) EnqueueGenerate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.EnqueueScheduleResponse, error) {
	if _, err := s.plan(req); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s.storeProposal(scheduleProposal{ID: id, State: RunStatePending, RequestedAt: time.Now().UTC()})

	if err := s.queue.Enqueue(jobs.Job[dto.GenerateScheduleRequest]{ID: id, Payload: req}); err != nil {
		s.proposals.Invalidate(id)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue scheduling run")
	}
	return &dto.EnqueueScheduleResponse{ProposalID: id, State: RunStatePending}, nil
}

func (s *SchedulerService) runJob(ctx context.Context, job jobs.Job[dto.GenerateScheduleRequest]) error {
	req := job.Payload
	plan, err := s.plan(req)
	if err != nil {
		s.failProposal(job.ID, appErrors.FromError(err))
		return nil
	}
	if _, err := s.run(ctx, job.ID, req, plan); err != nil {
		s.failProposal(job.ID, appErrors.FromError(err))
	}
	return nil
}

// GetProposal returns a stored run result until its TTL lapses.
func (s *SchedulerService) GetProposal(id string) (*dto.GenerateScheduleResponse, error) {
	proposal, ok := s.proposals.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if proposal.Err != nil {
		return nil, proposal.Err
	}
	return proposal.response(s.scorer.CacheStats()), nil
}

// Commit persists a proposal's sessions transactionally, transitioning them
// from PROPOSED to COMMITTED.
func (s *SchedulerService) Commit(ctx context.Context, proposalID string) (*dto.CommitScheduleResponse, error) {
	proposal, ok := s.proposals.Get(proposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if proposal.State != RunStateDone {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "proposal is still being assembled")
	}
	if len(proposal.Sessions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "proposal has no sessions to commit")
	}
	if s.tx == nil || s.sessions == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "session persistence unavailable")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	committed := make([]models.Session, len(proposal.Sessions))
	copy(committed, proposal.Sessions)
	ids := make([]string, 0, len(committed))
	for i := range committed {
		committed[i].Status = models.SessionStatusCommitted
		ids = append(ids, committed[i].ID)
	}

	if err = s.sessions.BulkCreateWithTx(ctx, tx, committed); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist sessions")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit session transaction")
		return nil, err
	}

	s.proposals.Invalidate(proposalID)
	return &dto.CommitScheduleResponse{ProposalID: proposalID, SessionIDs: ids}, nil
}

// CacheStats snapshots the score cache for the observability endpoint.
func (s *SchedulerService) CacheStats() memocache.Stats {
	return s.scorer.CacheStats()
}

// --- Run pipeline ---

type runPlan struct {
	horizon Horizon
	grid    GridConfig
	limits  ConstraintLimits
}

func (s *SchedulerService) plan(req dto.GenerateScheduleRequest) (runPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return runPlan{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}

	start, err := time.ParseInLocation("2006-01-02", req.HorizonStart, time.UTC)
	if err != nil {
		return runPlan{}, appErrors.Clone(appErrors.ErrValidation, "horizonStart must be a YYYY-MM-DD date")
	}
	end, err := time.ParseInLocation("2006-01-02", req.HorizonEnd, time.UTC)
	if err != nil {
		return runPlan{}, appErrors.Clone(appErrors.ErrValidation, "horizonEnd must be a YYYY-MM-DD date")
	}
	if !start.Before(end) {
		return runPlan{}, appErrors.Clone(appErrors.ErrValidation, "horizonStart must be before horizonEnd")
	}
	if end.Sub(start) > horizonMaxDays*24*time.Hour {
		return runPlan{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("horizon may not exceed %d days", horizonMaxDays))
	}

	grid := GridConfig{
		ResolutionMinutes: s.cfg.GridResolutionMinutes,
		SessionMinutes:    s.cfg.SessionMinutes,
		RoundToGrid:       req.RoundToGrid,
	}
	if req.ResolutionMinutes > 0 {
		grid.ResolutionMinutes = req.ResolutionMinutes
	}
	if req.SessionMinutes > 0 {
		grid.SessionMinutes = req.SessionMinutes
	}
	if err := grid.validate(); err != nil {
		return runPlan{}, err
	}

	limits := s.cfg.Limits
	if c := req.Constraints; c != nil {
		if c.MinBreakMinutes != nil {
			limits.MinBreakMinutes = *c.MinBreakMinutes
		}
		if c.MaxConsecutiveSessions != nil {
			limits.MaxConsecutiveSessions = *c.MaxConsecutiveSessions
		}
		if c.MaxDailyHours != nil {
			limits.MaxDailyHours = *c.MaxDailyHours
		}
		if c.MaxWeeklyHours != nil {
			limits.MaxWeeklyHours = *c.MaxWeeklyHours
		}
	}

	return runPlan{horizon: Horizon{Start: start, End: end}, grid: grid, limits: limits}, nil
}

func (s *SchedulerService) run(ctx context.Context, proposalID string, req dto.GenerateScheduleRequest, plan runPlan) (*dto.GenerateScheduleResponse, error) {
	started := time.Now()
	s.storeProposal(scheduleProposal{ID: proposalID, State: RunStateAssigning, RequestedAt: started.UTC()})

	therapists, err := s.roster.ListTherapists(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load therapists")
	}
	clients, err := s.roster.ListClients(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clients")
	}

	// Pad by a week on both sides so weekly hour totals see sessions in
	// partially overlapped ISO weeks.
	var committed []models.Session
	if s.sessions != nil {
		committed, err = s.sessions.ListCommittedBetween(ctx, plan.horizon.Start.AddDate(0, 0, -7), plan.horizon.End.AddDate(0, 0, 7))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed sessions")
		}
	}

	therapistSlots := make(map[string][]models.TimeSlot, len(therapists))
	for i := range therapists {
		slots, err := ExpandAvailability(therapists[i].Availability, plan.horizon, plan.grid)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("therapist %s has malformed availability", therapists[i].ID))
		}
		therapistSlots[therapists[i].ID] = slots
	}

	clientSlots := make(map[string][]models.TimeSlot, len(clients))
	for i := range clients {
		effective, err := ClipAvailability(clients[i].Availability, clients[i].PreferredTimeBands)
		if err == nil {
			var slots []models.TimeSlot
			slots, err = ExpandAvailability(effective, plan.horizon, plan.grid)
			clientSlots[clients[i].ID] = slots
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("client %s has malformed availability", clients[i].ID))
		}
	}

	ledger := newUsageLedger(clients, committed)
	detector := NewConflictDetector(plan.limits)
	generator := NewCandidateGenerator(detector, s.scorer, s.cfg.Workers, s.logger)

	generated := generator.Generate(ctx, therapists, clients, therapistSlots, clientSlots, req.ServiceType, ledger)

	sessions, assemblyDiscards := s.assemble(ctx, generated.Candidates, detector, ledger, req.MaxSessions)
	discards := append(generated.Discards, assemblyDiscards...)

	stats := dto.RunStats{
		Therapists:          len(therapists),
		Clients:             len(clients),
		CandidatesEvaluated: generated.Evaluated,
		CandidatesRanked:    len(generated.Candidates),
		DurationMillis:      time.Since(started).Milliseconds(),
	}
	s.metrics.RecordRun(time.Since(started), generated.Evaluated, len(discards), len(sessions))
	s.logger.Info("scheduling run finished",
		zap.String("proposal_id", proposalID),
		zap.Int("sessions", len(sessions)),
		zap.Int("discards", len(discards)),
		zap.Duration("took", time.Since(started)))

	proposal := scheduleProposal{
		ID:          proposalID,
		State:       RunStateDone,
		Sessions:    sessions,
		Discards:    discards,
		Stats:       stats,
		RequestedAt: time.Now().UTC(),
	}
	s.storeProposal(proposal)

	return proposal.response(s.scorer.CacheStats()), nil
}

// assemble is the sequential commit loop: it pulls ranked candidates, re-checks
// each against the live ledger (a prior commit may have invalidated it), and
// commits survivors as proposed sessions. On cancellation it returns whatever
// has been committed so far.
func (s *SchedulerService) assemble(
	ctx context.Context,
	candidates []Candidate,
	detector *ConflictDetector,
	ledger *usageLedger,
	maxSessions int,
) ([]models.Session, []models.DiscardedCandidate) {
	sessions := make([]models.Session, 0, len(candidates))
	var discards []models.DiscardedCandidate
	now := time.Now().UTC()

	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		if maxSessions > 0 && len(sessions) >= maxSessions {
			break
		}

		if report := detector.Check(cand, ledger); report != nil {
			discards = append(discards, models.DiscardedCandidate{
				TherapistID: cand.Therapist.ID,
				ClientID:    cand.Client.ID,
				Slot:        cand.Slot,
				Report:      *report,
			})
			continue
		}

		ledger.commit(cand)
		sessions = append(sessions, models.Session{
			ID:          uuid.NewString(),
			TherapistID: cand.Therapist.ID,
			ClientID:    cand.Client.ID,
			ServiceType: cand.ServiceType,
			StartAt:     cand.Slot.Start,
			Minutes:     cand.Slot.Minutes,
			Status:      models.SessionStatusProposed,
			Score:       cand.Score,
			CreatedAt:   now,
		})
	}
	return sessions, discards
}

// --- Proposal store ---

type scheduleProposal struct {
	ID          string
	State       string
	Sessions    []models.Session
	Discards    []models.DiscardedCandidate
	Stats       dto.RunStats
	RequestedAt time.Time
	Err         *appErrors.Error
}

func (p scheduleProposal) response(cacheStats memocache.Stats) *dto.GenerateScheduleResponse {
	return &dto.GenerateScheduleResponse{
		ProposalID: p.ID,
		State:      p.State,
		Sessions:   p.Sessions,
		Discards:   p.Discards,
		Stats:      p.Stats,
		CacheStats: cacheStats,
	}
}

func (s *SchedulerService) storeProposal(p scheduleProposal) {
	s.proposals.Set(p.ID, p, s.cfg.ProposalTTL)
}

func (s *SchedulerService) failProposal(id string, failure *appErrors.Error) {
	s.storeProposal(scheduleProposal{
		ID:          id,
		State:       RunStateFailed,
		RequestedAt: time.Now().UTC(),
		Err:         failure,
	})
}
