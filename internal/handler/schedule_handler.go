package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/aba-scheduler-api/internal/dto"
	"github.com/noah-isme/aba-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/aba-scheduler-api/pkg/errors"
	"github.com/noah-isme/aba-scheduler-api/pkg/memocache"
	"github.com/noah-isme/aba-scheduler-api/pkg/response"
)

type scheduleEngine interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
	EnqueueGenerate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.EnqueueScheduleResponse, error)
	GetProposal(id string) (*dto.GenerateScheduleResponse, error)
	Commit(ctx context.Context, proposalID string) (*dto.CommitScheduleResponse, error)
	CacheStats() memocache.Stats
}

// ScheduleHandler exposes the scheduling engine over HTTP.
type ScheduleHandler struct {
	engine scheduleEngine
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(engine *service.SchedulerService) *ScheduleHandler {
	return &ScheduleHandler{engine: engine}
}

// Generate godoc
// @Summary Generate a schedule proposal
// @Description Runs the auto-scheduler over the requested horizon. Pass mode=async to enqueue the run and poll the proposal instead.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param mode query string false "Execution mode" Enums(sync, async)
// @Param payload body dto.GenerateScheduleRequest true "Generate schedule payload"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /schedule/generate [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule generation payload"))
		return
	}

	if c.Query("mode") == "async" {
		result, err := h.engine.EnqueueGenerate(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, result)
		return
	}

	result, err := h.engine.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GetProposal godoc
// @Summary Fetch a schedule proposal
// @Description Returns a previously generated proposal until its TTL lapses.
// @Tags Scheduler
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /schedule/proposals/{id} [get]
func (h *ScheduleHandler) GetProposal(c *gin.Context) {
	result, err := h.engine.GetProposal(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Commit godoc
// @Summary Commit a schedule proposal
// @Description Persists the proposal's sessions as committed calendar entries.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 201 {object} response.Envelope
// @Router /schedule/proposals/{id}/commit [post]
func (h *ScheduleHandler) Commit(c *gin.Context) {
	result, err := h.engine.Commit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// CacheStats godoc
// @Summary Compatibility cache statistics
// @Description Reports live, expired and hit-rate statistics for the pairwise score cache.
// @Tags Scheduler
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/cache/stats [get]
func (h *ScheduleHandler) CacheStats(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.engine.CacheStats(), nil)
}
