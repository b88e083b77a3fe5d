package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/infrastructure/logger"
)

// PhaseRunner runs every phase in order
type PhaseRunner interface {
	RunAll(ctx context.Context, trigger string) ([]*RunRecord, error)
}

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	// Hour and Minute of the daily run, 24h local time
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultDailyTriggerConfig returns default daily trigger configuration
func DefaultDailyTriggerConfig() DailyTriggerConfig {
	return DailyTriggerConfig{
		Hour:          0,
		Minute:        0,
		CheckInterval: time.Minute,
	}
}

// Validate checks the configured time of day
func (c DailyTriggerConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrInvalidConfig, c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: minute %d", ErrInvalidConfig, c.Minute)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	// The trigger matches on hour:minute, so a coarser tick can skip it.
	if c.CheckInterval > time.Minute {
		return fmt.Errorf("%w: check interval %s exceeds one minute", ErrInvalidConfig, c.CheckInterval)
	}
	return nil
}

// DailyTrigger runs the whole pipeline once per calendar day at a fixed
// time. Days missed while the process was down are not caught up.
type DailyTrigger struct {
	config DailyTriggerConfig
	runner PhaseRunner
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(config DailyTriggerConfig, runner PhaseRunner, log *zap.Logger) (*DailyTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &DailyTrigger{
		config: config,
		runner: runner,
		logger: logger.Component(log, logger.ComponentScheduler),
		now:    time.Now,
	}, nil
}

// Start starts the trigger loop
func (d *DailyTrigger) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go d.runLoop(ctx)

	d.logger.Info("Daily trigger started",
		zap.Int("daily_hour", d.config.Hour),
		zap.Int("daily_minute", d.config.Minute),
		zap.Duration("check_interval", d.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger and waits for an in-flight run to return
func (d *DailyTrigger) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Daily trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DailyTrigger) runLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the pipeline when the clock has reached the daily
// time and it has not run yet today. It reports whether a run happened.
func (d *DailyTrigger) checkAndTrigger(ctx context.Context) bool {
	now := d.now()
	currentDate := now.Format(time.DateOnly)

	d.mu.Lock()
	if d.lastRunDate == currentDate {
		d.mu.Unlock()
		return false
	}
	if now.Hour() != d.config.Hour || now.Minute() != d.config.Minute {
		d.mu.Unlock()
		return false
	}
	d.lastRunDate = currentDate
	d.mu.Unlock()

	d.logger.Info("Triggering daily pipeline run", zap.String("date", currentDate))
	if _, err := d.runner.RunAll(ctx, TriggerDaily); err != nil {
		d.logger.Error("Daily pipeline run failed", zap.Error(err))
	}
	return true
}
