package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/buffalo/orderpipe/internal/application/pipeline"
)

// Phase names a pipeline phase
type Phase string

const (
	PhaseIngest    Phase = "ingest"
	PhaseTransform Phase = "transform"
)

// ParsePhase validates a phase name
func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case PhaseIngest, PhaseTransform:
		return Phase(s), nil
	}
	return "", ErrUnknownPhase
}

// RunStatus represents the outcome of a phase run
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusPartial RunStatus = "PARTIAL"
	RunStatusFailed  RunStatus = "FAILED"
)

// RunRecord describes one execution of a phase
type RunRecord struct {
	ID          uuid.UUID                 `json:"id"`
	Phase       Phase                     `json:"phase"`
	Status      RunStatus                 `json:"status"`
	Trigger     string                    `json:"trigger"`
	StartedAt   time.Time                 `json:"started_at"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	Duration    time.Duration             `json:"duration"`
	Error       string                    `json:"error,omitempty"`
	Ingestion   *pipeline.IngestionReport `json:"ingestion,omitempty"`
	Transform   *pipeline.TransformReport `json:"transform,omitempty"`
}

// NewRunRecord creates a running record for phase
func NewRunRecord(phase Phase, trigger string, now time.Time) *RunRecord {
	return &RunRecord{
		ID:        uuid.New(),
		Phase:     phase,
		Status:    RunStatusRunning,
		Trigger:   trigger,
		StartedAt: now,
	}
}

// Complete sets the final status from the phase counts.
// Skipped details or dropped records make a run PARTIAL.
func (r *RunRecord) Complete(now time.Time) {
	r.finish(now)
	switch {
	case r.Ingestion != nil && r.Ingestion.FailedCount > 0:
		r.Status = RunStatusPartial
	case r.Transform != nil && r.Transform.DroppedCount > 0:
		r.Status = RunStatusPartial
	default:
		r.Status = RunStatusSuccess
	}
}

// Fail marks the run as failed
func (r *RunRecord) Fail(now time.Time, err error) {
	r.finish(now)
	r.Status = RunStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *RunRecord) finish(now time.Time) {
	r.CompletedAt = &now
	r.Duration = now.Sub(r.StartedAt)
}

// Clone returns a copy safe to hand out while the runner keeps the original
func (r *RunRecord) Clone() *RunRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.Ingestion != nil {
		ing := *r.Ingestion
		c.Ingestion = &ing
	}
	if r.Transform != nil {
		tr := *r.Transform
		tr.DroppedIDs = append([]int64(nil), r.Transform.DroppedIDs...)
		c.Transform = &tr
	}
	return &c
}
