package telemetry

import (
	"context"
	"testing"

		"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/buffalo/orderpipe/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// TracerProvider
// ---------------------------------------------------------------------------

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetryConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestTracerProvider_EnableSpanProfiles(t *testing.T) {
	t.Run("no-op while tracing is disabled", func(t *testing.T) {
		tp, err := NewTracerProvider(context.Background(), config.TelemetryConfig{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		tp.EnableSpanProfiles()
		assert.Nil(t, tp.profiled)
	})

	t.Run("wraps an active provider", func(t *testing.T) {
		tp := &TracerProvider{provider: sdktrace.NewTracerProvider(), logger: zaptest.NewLogger(t)}
		t.Cleanup(func() { _ = tp.provider.Shutdown(context.Background()) })

		tp.EnableSpanProfiles()
		require.NotNil(t, tp.profiled)
		first := tp.profiled
		tp.EnableSpanProfiles()
		assert.Same(t, first, tp.profiled)

		_, span := tp.Tracer("test").Start(context.Background(), "profiled")
		assert.True(t, span.IsRecording())
		span.End()
	})
}

func TestNewTracerProvider_NilLogger(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetryConfig{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, tp.logger)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{name: "always", ratio: 1, want: "root:AlwaysOnSampler"},
		{name: "above one", ratio: 3, want: "root:AlwaysOnSampler"},
		{name: "never", ratio: 0, want: "root:AlwaysOffSampler"},
		{name: "ratio", ratio: 0.25, want: "root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, newSampler(tt.ratio).Description(), tt.want)
		})
	}
}

// ---------------------------------------------------------------------------
// Profiler
// ---------------------------------------------------------------------------

func TestProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(config.ProfilingConfig{}, "orderpipe", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestProfiler_RequiresServerAddress(t *testing.T) {
	_, err := NewProfiler(config.ProfilingConfig{Enabled: true}, "orderpipe", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server address")
}

// ---------------------------------------------------------------------------
// LoggerProvider
// ---------------------------------------------------------------------------

func TestLoggerProvider_DisabledBridgeIsIdentity(t *testing.T) {
	cfg := config.TelemetryConfig{Enabled: true, LogsEnabled: false, ServiceName: "test"}
	lp, err := NewLoggerProvider(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())

	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)
	assert.Same(t, log, lp.Bridge(log))

	lp.Bridge(log).Info("still local")
	assert.Equal(t, 1, logs.Len())
	assert.NoError(t, lp.Shutdown(context.Background()))
}

// ---------------------------------------------------------------------------
// DB tracing
// ---------------------------------------------------------------------------

func TestRegisterDBTracing(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	t.Run("disabled leaves plugins untouched", func(t *testing.T) {
		require.NoError(t, RegisterDBTracing(db, config.TelemetryConfig{Enabled: true}, "orders", nil))
		assert.Empty(t, db.Config.Plugins)
	})

	t.Run("enabled registers otelgorm", func(t *testing.T) {
		cfg := config.TelemetryConfig{Enabled: true, DBTracing: true}
		require.NoError(t, RegisterDBTracing(db, cfg, "orders", zaptest.NewLogger(t)))
		assert.Len(t, db.Config.Plugins, 1)
	})
}
