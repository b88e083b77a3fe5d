package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the instrumentation scope of pipeline metrics
const MeterName = "github.com/buffalo/orderpipe"

// Phase names used as the phase attribute
const (
	PhaseIngest    = "ingest"
	PhaseTransform = "transform"
)

// PipelineMetrics records ingestion and transformation counts.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	listed         *Counter
	inserted       *Counter
	detailFailures *Counter
	transformed    *Counter
	dropped        *Counter
	runDuration    *Histogram
}

// NewPipelineMetrics registers the pipeline instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	var (
		m   PipelineMetrics
		err error
	)
	if m.listed, err = NewCounter(meter, "orderpipe.orders.listed", "Order ids returned by the portal listing", "{order}"); err != nil {
		return nil, err
	}
	if m.inserted, err = NewCounter(meter, "orderpipe.orders.inserted", "Raw orders newly stored", "{order}"); err != nil {
		return nil, err
	}
	if m.detailFailures, err = NewCounter(meter, "orderpipe.orders.detail_failures", "Order detail requests that yielded no document", "{order}"); err != nil {
		return nil, err
	}
	if m.transformed, err = NewCounter(meter, "orderpipe.orders.transformed", "Flattened rows newly stored", "{order}"); err != nil {
		return nil, err
	}
	if m.dropped, err = NewCounter(meter, "orderpipe.orders.dropped", "Raw orders that could not be flattened", "{order}"); err != nil {
		return nil, err
	}
	m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "orderpipe.run.duration",
		Description: "Duration of a pipeline phase run",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// NewNoopPipelineMetrics returns metrics backed by a no-op meter
func NewNoopPipelineMetrics() *PipelineMetrics {
	m, _ := NewPipelineMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

// RecordListed counts ids returned by a listing
func (m *PipelineMetrics) RecordListed(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.listed.Add(ctx, int64(n))
}

// RecordInserted counts newly stored raw orders
func (m *PipelineMetrics) RecordInserted(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.inserted.Add(ctx, int64(n))
}

// RecordDetailFailures counts detail fetches without a document
func (m *PipelineMetrics) RecordDetailFailures(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.detailFailures.Add(ctx, int64(n))
}

// RecordTransformed counts newly stored flattened rows
func (m *PipelineMetrics) RecordTransformed(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.transformed.Add(ctx, n)
}

// RecordDropped counts raw orders skipped by the flattener
func (m *PipelineMetrics) RecordDropped(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, int64(n))
}

// RecordRun records the duration of one phase run with its final status
func (m *PipelineMetrics) RecordRun(ctx context.Context, phase, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.RecordDuration(ctx, d, AttrPhase.String(phase), AttrStatus.String(status))
}
