package dto

import (
	"github.com/noah-isme/aba-scheduler-api/internal/models"
	"github.com/noah-isme/aba-scheduler-api/pkg/memocache"
)

// ConstraintConfig overrides the engine's hard-constraint defaults for one run.
type ConstraintConfig struct {
	MinBreakMinutes        *int     `json:"minBreakMinutes" validate:"omitempty,min=0,max=240"`
	MaxConsecutiveSessions *int     `json:"maxConsecutiveSessions" validate:"omitempty,min=1,max=16"`
	MaxDailyHours          *float64 `json:"maxDailyHours" validate:"omitempty,gt=0,max=24"`
	MaxWeeklyHours         *float64 `json:"maxWeeklyHours" validate:"omitempty,gt=0,max=168"`
}

// GenerateScheduleRequest instructs the engine to propose sessions across the
// half-open horizon [horizonStart, horizonEnd).
type GenerateScheduleRequest struct {
	HorizonStart      string            `json:"horizonStart" validate:"required,datetime=2006-01-02"`
	HorizonEnd        string            `json:"horizonEnd" validate:"required,datetime=2006-01-02"`
	ServiceType       string            `json:"serviceType" validate:"required"`
	ResolutionMinutes int               `json:"resolutionMinutes" validate:"omitempty,min=5,max=120"`
	SessionMinutes    int               `json:"sessionMinutes" validate:"omitempty,min=15,max=240"`
	RoundToGrid       bool              `json:"roundToGrid"`
	MaxSessions       int               `json:"maxSessions" validate:"omitempty,min=1"`
	Constraints       *ConstraintConfig `json:"constraints" validate:"omitempty"`
}

// RunStats summarises one scheduling run.
type RunStats struct {
	Therapists          int   `json:"therapists"`
	Clients             int   `json:"clients"`
	CandidatesEvaluated int   `json:"candidatesEvaluated"`
	CandidatesRanked    int   `json:"candidatesRanked"`
	DurationMillis      int64 `json:"durationMillis"`
}

// GenerateScheduleResponse is the full result of one run: the committed
// proposal plus every discarded candidate with its rejection reason.
type GenerateScheduleResponse struct {
	ProposalID string                      `json:"proposalId"`
	State      string                      `json:"state"`
	Sessions   []models.Session            `json:"sessions"`
	Discards   []models.DiscardedCandidate `json:"discards"`
	Stats      RunStats                    `json:"stats"`
	CacheStats memocache.Stats             `json:"cacheStats"`
}

// EnqueueScheduleResponse acknowledges an asynchronous run.
type EnqueueScheduleResponse struct {
	ProposalID string `json:"proposalId"`
	State      string `json:"state"`
}

// CommitScheduleResponse reports a persisted proposal.
type CommitScheduleResponse struct {
	ProposalID string   `json:"proposalId"`
	SessionIDs []string `json:"sessionIds"`
}
