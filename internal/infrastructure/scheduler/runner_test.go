package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/application/pipeline"
	"github.com/buffalo/orderpipe/internal/infrastructure/lock"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

type stubIngester struct {
	report *pipeline.IngestionReport
	err    error
	calls  atomic.Int32
	block  chan struct{}
}

func (s *stubIngester) RunOnce(ctx context.Context) (*pipeline.IngestionReport, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return s.report, ctx.Err()
		}
	}
	return s.report, s.err
}

type stubTransformer struct {
	report *pipeline.TransformReport
	err    error
	calls  atomic.Int32
}

func (s *stubTransformer) RunOnce(context.Context) (*pipeline.TransformReport, error) {
	s.calls.Add(1)
	return s.report, s.err
}

func newTestRunner(ing Ingester, tr Transformer, opts ...RunnerOption) *Runner {
	return NewRunner(DefaultRunnerConfig(), ing, tr, lock.NewInMemoryLocker(), zap.NewNop(), opts...)
}

// ---------------------------------------------------------------------------
// RunRecord Tests
// ---------------------------------------------------------------------------

func TestRunRecord_Complete(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record *RunRecord
		want   RunStatus
	}{
		{
			name:   "ingestion without failures",
			record: &RunRecord{Phase: PhaseIngest, Ingestion: &pipeline.IngestionReport{NewCount: 3}},
			want:   RunStatusSuccess,
		},
		{
			name:   "ingestion with skipped details",
			record: &RunRecord{Phase: PhaseIngest, Ingestion: &pipeline.IngestionReport{NewCount: 3, FailedCount: 1}},
			want:   RunStatusPartial,
		},
		{
			name:   "transform with dropped records",
			record: &RunRecord{Phase: PhaseTransform, Transform: &pipeline.TransformReport{DroppedCount: 2}},
			want:   RunStatusPartial,
		},
		{
			name:   "transform without reports",
			record: &RunRecord{Phase: PhaseTransform},
			want:   RunStatusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.record.StartedAt = start
			tt.record.Complete(start.Add(time.Minute))
			assert.Equal(t, tt.want, tt.record.Status)
			assert.Equal(t, time.Minute, tt.record.Duration)
			require.NotNil(t, tt.record.CompletedAt)
		})
	}
}

func TestRunRecord_Fail(t *testing.T) {
	r := NewRunRecord(PhaseIngest, TriggerManual, time.Now())
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, RunStatusRunning, r.Status)

	r.Fail(time.Now(), errors.New("login failed"))
	assert.Equal(t, RunStatusFailed, r.Status)
	assert.Equal(t, "login failed", r.Error)
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("ingest")
	require.NoError(t, err)
	assert.Equal(t, PhaseIngest, p)

	_, err = ParsePhase("export")
	assert.ErrorIs(t, err, ErrUnknownPhase)
}

// ---------------------------------------------------------------------------
// Runner Tests
// ---------------------------------------------------------------------------

func TestRunner_Run_Success(t *testing.T) {
	ing := &stubIngester{report: &pipeline.IngestionReport{ListedCount: 4, NewCount: 4}}
	r := newTestRunner(ing, &stubTransformer{})

	record, err := r.Run(context.Background(), PhaseIngest, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, RunStatusSuccess, record.Status)
	assert.Equal(t, TriggerManual, record.Trigger)
	require.NotNil(t, record.Ingestion)
	assert.Equal(t, 4, record.Ingestion.NewCount)

	latest := r.LatestFor(PhaseIngest)
	require.NotNil(t, latest)
	assert.Equal(t, record.ID, latest.ID)
	assert.Nil(t, r.LatestFor(PhaseTransform))
}

func TestRunner_Run_Failure(t *testing.T) {
	ing := &stubIngester{report: &pipeline.IngestionReport{}, err: pipeline.ErrSessionFailed}
	r := newTestRunner(ing, &stubTransformer{})

	record, err := r.Run(context.Background(), PhaseIngest, TriggerManual)
	assert.ErrorIs(t, err, pipeline.ErrSessionFailed)
	require.NotNil(t, record)
	assert.Equal(t, RunStatusFailed, record.Status)
	assert.Contains(t, record.Error, "portal session failed")
	assert.Equal(t, RunStatusFailed, r.LatestFor(PhaseIngest).Status)
}

func TestRunner_Run_UnknownPhase(t *testing.T) {
	r := newTestRunner(&stubIngester{}, &stubTransformer{})
	_, err := r.Run(context.Background(), Phase("export"), TriggerManual)
	assert.ErrorIs(t, err, ErrUnknownPhase)
}

func TestRunner_Run_RejectsConcurrentRunOfSamePhase(t *testing.T) {
	ing := &stubIngester{report: &pipeline.IngestionReport{}, block: make(chan struct{})}
	r := newTestRunner(ing, &stubTransformer{report: &pipeline.TransformReport{}})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Run(context.Background(), PhaseIngest, TriggerDaily)
	}()

	require.Eventually(t, func() bool { return ing.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := r.Run(context.Background(), PhaseIngest, TriggerManual)
	assert.ErrorIs(t, err, ErrPhaseAlreadyRunning)

	// Another phase is not blocked.
	_, err = r.Run(context.Background(), PhaseTransform, TriggerManual)
	assert.NoError(t, err)

	running := r.LatestFor(PhaseIngest)
	require.NotNil(t, running)
	assert.Equal(t, RunStatusRunning, running.Status)

	close(ing.block)
	wg.Wait()

	assert.Equal(t, RunStatusSuccess, r.LatestFor(PhaseIngest).Status)
	_, err = r.Run(context.Background(), PhaseIngest, TriggerManual)
	assert.NoError(t, err)
}

func TestRunner_Run_Timeout(t *testing.T) {
	ing := &stubIngester{report: &pipeline.IngestionReport{}, block: make(chan struct{})}
	r := NewRunner(RunnerConfig{RunTimeout: 20 * time.Millisecond}, ing, &stubTransformer{}, nil, zap.NewNop())

	record, err := r.Run(context.Background(), PhaseIngest, TriggerManual)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, RunStatusFailed, record.Status)
}

func TestRunner_RunAll(t *testing.T) {
	t.Run("runs transform after ingest", func(t *testing.T) {
		ing := &stubIngester{report: &pipeline.IngestionReport{}}
		tr := &stubTransformer{report: &pipeline.TransformReport{}}
		r := newTestRunner(ing, tr)

		records, err := r.RunAll(context.Background(), TriggerCLI)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, PhaseIngest, records[0].Phase)
		assert.Equal(t, PhaseTransform, records[1].Phase)
		assert.Len(t, r.Latest(), 2)
	})

	t.Run("skips transform when ingest fails", func(t *testing.T) {
		ing := &stubIngester{err: pipeline.ErrListingFailed}
		tr := &stubTransformer{}
		r := newTestRunner(ing, tr)

		records, err := r.RunAll(context.Background(), TriggerCLI)
		assert.ErrorIs(t, err, pipeline.ErrListingFailed)
		assert.Len(t, records, 1)
		assert.Equal(t, int32(0), tr.calls.Load())
	})
}

func TestRunner_Clock(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	r := newTestRunner(&stubIngester{}, &stubTransformer{}, WithClock(clock))

	record, err := r.Run(context.Background(), PhaseTransform, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, time.Second, record.Duration)
}

func TestRunner_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ing := &stubIngester{report: &pipeline.IngestionReport{FailedCount: 1}}
	tr := &stubTransformer{err: pipeline.ErrStoreFailed}
	r := newTestRunner(ing, tr, WithTracer(provider.Tracer("test")))

	_, err := r.Run(context.Background(), PhaseIngest, TriggerDaily)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), PhaseTransform, TriggerDaily)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "orderpipe.ingest", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("run.status", "PARTIAL"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("run.trigger", TriggerDaily))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "orderpipe.transform", spans[1].Name())
	assert.Contains(t, spans[1].Attributes(), attribute.String("run.status", "FAILED"))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
