// Package scheduler runs pipeline phases under a lock, either on demand or
// once a day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/application/pipeline"
	"github.com/buffalo/orderpipe/internal/infrastructure/lock"
	"github.com/buffalo/orderpipe/internal/infrastructure/logger"
	"github.com/buffalo/orderpipe/internal/infrastructure/telemetry"
)

// Trigger sources recorded on each run
const (
	TriggerManual = "manual"
	TriggerDaily  = "daily"
	TriggerCLI    = "cli"
)

// Ingester runs the ingestion phase
type Ingester interface {
	RunOnce(ctx context.Context) (*pipeline.IngestionReport, error)
}

// Transformer runs the transform phase
type Transformer interface {
	RunOnce(ctx context.Context) (*pipeline.TransformReport, error)
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	// LockTTL bounds how long a crashed run can block the phase
	LockTTL time.Duration
	// RunTimeout cancels a run that takes longer; zero means no limit
	RunTimeout time.Duration
}

// DefaultRunnerConfig returns default runner configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		LockTTL:    3 * time.Hour,
		RunTimeout: 2 * time.Hour,
	}
}

// Runner executes phases one at a time per phase and remembers the latest
// record of each
type Runner struct {
	config      RunnerConfig
	ingester    Ingester
	transformer Transformer
	locker      lock.Locker
	metrics     *telemetry.PipelineMetrics
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time

	mu     sync.RWMutex
	latest map[Phase]*RunRecord
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRunnerMetrics records run durations on m
func WithRunnerMetrics(m *telemetry.PipelineMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracer wraps each run in a span from t
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = t
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a new Runner
func NewRunner(config RunnerConfig, ingester Ingester, transformer Transformer, locker lock.Locker, log *zap.Logger, opts ...RunnerOption) *Runner {
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultRunnerConfig().LockTTL
	}
	if locker == nil {
		locker = lock.NewInMemoryLocker()
	}
	r := &Runner{
		config:      config,
		ingester:    ingester,
		transformer: transformer,
		locker:      locker,
		tracer:      otel.Tracer(telemetry.MeterName),
		logger:      logger.Component(log, logger.ComponentScheduler),
		now:         time.Now,
		latest:      make(map[Phase]*RunRecord),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes phase once. It returns ErrPhaseAlreadyRunning without a
// record when another run of the same phase holds the lock. A failed phase
// returns both its record and the error.
func (r *Runner) Run(ctx context.Context, phase Phase, trigger string) (*RunRecord, error) {
	if _, err := ParsePhase(string(phase)); err != nil {
		return nil, fmt.Errorf("%w: %q", err, phase)
	}

	lease, err := r.locker.Acquire(ctx, lockKey(phase), r.config.LockTTL)
	if errors.Is(err, lock.ErrLockHeld) {
		return nil, ErrPhaseAlreadyRunning
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", phase, err)
	}
	defer func() {
		if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
			r.logger.Warn("Failed to release phase lock", zap.String("phase", string(phase)), zap.Error(rerr))
		}
	}()

	record := NewRunRecord(phase, trigger, r.now())
	r.store(record)

	runCtx := ctx
	if r.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.config.RunTimeout)
		defer cancel()
	}
	runCtx, span := r.tracer.Start(runCtx, "orderpipe."+string(phase),
		trace.WithAttributes(
			attribute.String("run.id", record.ID.String()),
			attribute.String("run.trigger", trigger),
		),
	)
	defer span.End()
	runCtx, log := logger.WithRun(runCtx, r.logger, record.ID.String(), string(phase))
	log.Info("Phase started", zap.String("trigger", trigger))

	err = r.execute(runCtx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		record.Fail(r.now(), err)
		log.Error("Phase failed", zap.Duration("duration", record.Duration), zap.Error(err))
	} else {
		record.Complete(r.now())
		log.Info("Phase finished",
			zap.String("status", string(record.Status)),
			zap.Duration("duration", record.Duration),
		)
	}
	span.SetAttributes(attribute.String("run.status", string(record.Status)))
	r.store(record)
	r.metrics.RecordRun(ctx, string(phase), string(record.Status), record.Duration)

	return record.Clone(), err
}

func (r *Runner) execute(ctx context.Context, record *RunRecord) error {
	switch record.Phase {
	case PhaseIngest:
		report, err := r.ingester.RunOnce(ctx)
		record.Ingestion = report
		return err
	case PhaseTransform:
		report, err := r.transformer.RunOnce(ctx)
		record.Transform = report
		return err
	}
	return ErrUnknownPhase
}

// RunAll runs ingestion and then, if it did not fail, the transform
func (r *Runner) RunAll(ctx context.Context, trigger string) ([]*RunRecord, error) {
	var records []*RunRecord
	for _, phase := range []Phase{PhaseIngest, PhaseTransform} {
		record, err := r.Run(ctx, phase, trigger)
		if record != nil {
			records = append(records, record)
		}
		if err != nil {
			return records, fmt.Errorf("%s: %w", phase, err)
		}
	}
	return records, nil
}

// Latest returns the most recent record of each phase that has run
func (r *Runner) Latest() []*RunRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RunRecord, 0, len(r.latest))
	for _, phase := range []Phase{PhaseIngest, PhaseTransform} {
		if rec, ok := r.latest[phase]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// LatestFor returns the most recent record of phase, or nil
func (r *Runner) LatestFor(phase Phase) *RunRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest[phase].Clone()
}

func (r *Runner) store(record *RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[record.Phase] = record.Clone()
}

func lockKey(phase Phase) string {
	return "phase:" + string(phase)
}
