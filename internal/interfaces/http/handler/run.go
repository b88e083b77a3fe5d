package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/buffalo/orderpipe/internal/infrastructure/logger"
	"github.com/buffalo/orderpipe/internal/infrastructure/scheduler"
	"github.com/buffalo/orderpipe/internal/interfaces/http/dto"
)

// RunService runs pipeline phases and reports their latest records
type RunService interface {
	Run(ctx context.Context, phase scheduler.Phase, trigger string) (*scheduler.RunRecord, error)
	Latest() []*scheduler.RunRecord
}

// RunHandler triggers pipeline phases over HTTP
type RunHandler struct {
	BaseHandler
	runner RunService
}

// NewRunHandler creates a new RunHandler
func NewRunHandler(runner RunService) *RunHandler {
	return &RunHandler{runner: runner}
}

// RunPhaseRequest binds the :phase path parameter
type RunPhaseRequest struct {
	Phase string `uri:"phase" binding:"required,oneof=ingest transform"`
}

// ListRuns returns the latest record of every phase that has run
//
//	@Summary		List latest runs
//	@Description	Latest record of each phase, including a run still in progress
//	@Tags			runs
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	dto.Response{data=[]scheduler.RunRecord}
//	@Failure		401	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/runs [get]
func (h *RunHandler) ListRuns(c *gin.Context) {
	h.Success(c, h.runner.Latest())
}

// TriggerRun runs a phase synchronously and returns its record.
//
//	@Summary		Trigger a phase
//	@Description	Runs ingest or transform and waits for it to finish
//	@Tags			runs
//	@Produce		json
//	@Security		BearerAuth
//	@Param			phase	path		string	true	"Phase"	Enums(ingest, transform)
//	@Success		200		{object}	dto.Response{data=scheduler.RunRecord}
//	@Failure		401		{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		403		{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		404		{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		409		{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		500		{object}	dto.Response{data=scheduler.RunRecord,error=dto.ErrorInfo}
//	@Router			/runs/{phase} [post]
func (h *RunHandler) TriggerRun(c *gin.Context) {
	var req RunPhaseRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.NotFound(c, "unknown phase")
		return
	}

	// A dropped client connection does not abort the run.
	ctx := context.WithoutCancel(c.Request.Context())
	record, err := h.runner.Run(ctx, scheduler.Phase(req.Phase), scheduler.TriggerManual)
	switch {
	case errors.Is(err, scheduler.ErrPhaseAlreadyRunning):
		h.Conflict(c, req.Phase+" is already running")
	case err != nil:
		resp := dto.NewErrorResponse(dto.ErrCodeRunFailed, err.Error(), logger.GetRequestID(c))
		resp.Data = record
		c.JSON(dto.GetHTTPStatus(dto.ErrCodeRunFailed), resp)
	default:
		h.Success(c, record)
	}
}
