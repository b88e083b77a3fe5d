package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/application/pipeline"
	"github.com/buffalo/orderpipe/internal/infrastructure/config"
	"github.com/buffalo/orderpipe/internal/infrastructure/lock"
	"github.com/buffalo/orderpipe/internal/infrastructure/logger"
	"github.com/buffalo/orderpipe/internal/infrastructure/migration"
	"github.com/buffalo/orderpipe/internal/infrastructure/persistence"
	"github.com/buffalo/orderpipe/internal/infrastructure/portal"
	"github.com/buffalo/orderpipe/internal/infrastructure/scheduler"
	"github.com/buffalo/orderpipe/internal/infrastructure/storage"
	"github.com/buffalo/orderpipe/internal/infrastructure/telemetry"
)

// app holds every process-wide resource. Close releases them in reverse order.
type app struct {
	db          *persistence.Database
	transformed *persistence.GormTransformedOrderRepository
	runner      *scheduler.Runner
	meters      *telemetry.MeterProvider
	tracing     bool
	closers     []func() error
	log         *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logs, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return logs.Shutdown(context.Background()) })
	log = logs.Bridge(log)
	a.log = log

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return tracer.Shutdown(context.Background()) })
	a.tracing = tracer.IsEnabled()

	profiler, err := telemetry.NewProfiler(cfg.Profiling, cfg.Telemetry.ServiceName, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, profiler.Stop)
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tracer.EnableSpanProfiles()
	}

	if err := migration.EnsureSchema(cfg.Database.DSN(), logger.Component(log, logger.ComponentMigrate)); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), logger.WithIgnoreRecordNotFoundError(true))
	a.db, err = persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)
	if err := telemetry.RegisterDBTracing(a.db.DB, cfg.Telemetry, cfg.Database.DBName, log); err != nil {
		return nil, fmt.Errorf("register database tracing: %w", err)
	}
	log.Info("Database connected", zap.String("host", cfg.Database.Host), zap.String("dbname", cfg.Database.DBName))

	a.meters, err = telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return a.meters.Shutdown(context.Background()) })
	metrics, err := telemetry.NewPipelineMetrics(a.meters.Meter(telemetry.MeterName))
	if err != nil {
		return nil, err
	}

	client, err := portal.NewClient(&portal.Config{
		BaseURL:   cfg.Portal.BaseURL,
		Username:  cfg.Portal.Username,
		Password:  cfg.Portal.Password,
		PageSize:  cfg.Portal.PageSize,
		Timeout:   cfg.Portal.Timeout,
		UserAgent: cfg.Portal.UserAgent,
	}, portal.WithLogger(logger.Component(log, logger.ComponentPortal)))
	if err != nil {
		return nil, err
	}

	archive, err := newArchive(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	locker, err := a.newLocker(cfg)
	if err != nil {
		return nil, err
	}

	raws := persistence.NewGormRawOrderRepository(a.db.DB)
	a.transformed = persistence.NewGormTransformedOrderRepository(a.db.DB)

	ingest := pipeline.NewIngestionService(client, raws, log,
		pipeline.WithArchive(archive),
		pipeline.WithIngestionMetrics(metrics),
	)
	transform := pipeline.NewTransformService(raws, a.transformed, log,
		pipeline.WithTransformMetrics(metrics),
	)
	a.runner = scheduler.NewRunner(scheduler.RunnerConfig{
		LockTTL:    cfg.Lock.TTL,
		RunTimeout: cfg.Scheduler.RunTimeout,
	}, ingest, transform, locker, log,
		scheduler.WithRunnerMetrics(metrics),
		scheduler.WithTracer(tracer.Tracer(telemetry.MeterName)),
	)

	return a, nil
}

func newArchive(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.RawArchive, error) {
	if !cfg.Archive.Enabled {
		return storage.NoopArchive{}, nil
	}
	archive, err := storage.NewS3RawArchive(&cfg.Archive, storage.WithLogger(logger.Component(log, logger.ComponentArchive)))
	if err != nil {
		return nil, err
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return archive, nil
}

func (a *app) newLocker(cfg *config.Config) (lock.Locker, error) {
	if cfg.Lock.Backend != config.LockBackendRedis {
		return lock.NewInMemoryLocker(), nil
	}
	locker, err := lock.NewRedisLocker(lock.RedisConfig{
		Addr:     cfg.Redis.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, locker.Close)
	return locker, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("Error releasing resource", zap.Error(err))
		}
	}
	a.closers = nil
}
