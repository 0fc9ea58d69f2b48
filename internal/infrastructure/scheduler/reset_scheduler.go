// Package scheduler runs the periodic background jobs: the daily
// free-tier reset and the optional email queue worker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"go.opentelemetry.io/otel/attribute"

	resetapp "github.com/a2zsellr/backend/internal/application/reset"
	"github.com/a2zsellr/backend/internal/infrastructure/config"
	"github.com/a2zsellr/backend/internal/infrastructure/telemetry"
)

// ResetRunner performs one scheduled reset pass
type ResetRunner interface {
	RunScheduledReset(ctx context.Context, days int) (*resetapp.BulkResetResult, error)
}

// RunLease is a shared claim that keeps passes on different instances
// from overlapping. shared.IdempotencyStore satisfies it; the Redis store
// claims with SETNX.
type RunLease interface {
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const resetLeaseKey = "scheduler:reset-run"

// ResetRunRecorder observes finished reset passes
type ResetRunRecorder interface {
	RecordResetRun(ctx context.Context, d time.Duration, err error)
}

// ResetSchedulerConfig holds configuration for the reset scheduler
type ResetSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// RunAt is the offset from local midnight of the daily run
	RunAt time.Duration

	// IntervalDays is passed to the eligible reset as the age cutoff
	IntervalDays int

	// RunTimeout is the maximum time for one run
	RunTimeout time.Duration
}

// DefaultResetSchedulerConfig returns default configuration
func DefaultResetSchedulerConfig() ResetSchedulerConfig {
	return ResetSchedulerConfig{
		Enabled:      true,
		RunAt:        3 * time.Hour, // 03:00
		IntervalDays: 7,
		RunTimeout:   2 * time.Hour,
	}
}

// ResetSchedulerConfigFrom converts the [reset] config section
func ResetSchedulerConfigFrom(cfg config.ResetConfig) (ResetSchedulerConfig, error) {
	runAt, err := config.ParseClock(cfg.RunAt)
	if err != nil {
		return ResetSchedulerConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	out := DefaultResetSchedulerConfig()
	out.Enabled = cfg.Enabled
	out.RunAt = runAt
	if cfg.IntervalDays > 0 {
		out.IntervalDays = cfg.IntervalDays
	}
	return out, nil
}

// NextRun returns the first daily run time strictly after now
func (c ResetSchedulerConfig) NextRun(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	next := midnight.Add(c.RunAt)
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location()).Add(c.RunAt)
	}
	return next
}

// ResetScheduler runs the eligible free-tier reset once a day
type ResetScheduler struct {
	runner   ResetRunner
	recorder ResetRunRecorder
	lease    RunLease
	logger   *zap.Logger
	config   ResetSchedulerConfig

	loopCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	// set while a pass is executing so runs never overlap
	inFlight atomic.Bool

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewResetScheduler creates a new reset scheduler
func NewResetScheduler(runner ResetRunner, logger *zap.Logger, config ResetSchedulerConfig) *ResetScheduler {
	if config.IntervalDays <= 0 {
		config.IntervalDays = DefaultResetSchedulerConfig().IntervalDays
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultResetSchedulerConfig().RunTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResetScheduler{
		runner: runner,
		logger: logger,
		config: config,
		now:    time.Now,
		after:  time.After,
	}
}

// SetRecorder registers r to observe every pass. Call before Start.
func (s *ResetScheduler) SetRecorder(r ResetRunRecorder) {
	s.recorder = r
}

// SetLease makes every pass claim l first, so only one instance runs at a
// time. Call before Start.
func (s *ResetScheduler) SetLease(l RunLease) {
	s.lease = l
}

// Start starts the daily loop
func (s *ResetScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Reset scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.loopCtx = ctx
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runDaily(ctx)

	s.logger.Info("Reset scheduler started",
		zap.Duration("run_at", s.config.RunAt),
		zap.Int("interval_days", s.config.IntervalDays))
	return nil
}

// Stop cancels the loop and any run in flight, and waits for them
func (s *ResetScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reset scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reset scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *ResetScheduler) runDaily(ctx context.Context) {
	defer s.wg.Done()

	for {
		now := s.now()
		nextRun := s.config.NextRun(now)
		delay := nextRun.Sub(now)

		s.logger.Info("Daily reset scheduled",
			zap.Time("next_run", nextRun),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			s.logger.Debug("Daily reset loop stopping")
			return
		case <-s.after(delay):
			if _, err := s.execute(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				s.logger.Error("Scheduled reset failed", zap.Error(err))
			}
		}
	}
}

// RunNow runs a reset pass immediately and waits for it. It fails with
// ErrRunInProgress while another pass is executing.
func (s *ResetScheduler) RunNow(ctx context.Context) (*resetapp.BulkResetResult, error) {
	return s.execute(ctx)
}

// TriggerImmediateRun starts a pass in the background. The pass is
// cancelled by Stop.
func (s *ResetScheduler) TriggerImmediateRun() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	if s.inFlight.Load() {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	ctx := s.loopCtx
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate reset run")

	go func() {
		defer s.wg.Done()
		if _, err := s.execute(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			s.logger.Error("Triggered reset failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *ResetScheduler) execute(ctx context.Context) (*resetapp.BulkResetResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("Skipping reset run, previous run still in progress")
		return nil, ErrRunInProgress
	}
	defer s.inFlight.Store(false)

	if s.lease != nil {
		// outlives RunTimeout, so a crashed holder frees it eventually
		ttl := s.config.RunTimeout + time.Minute
		claimed, err := s.lease.MarkProcessed(ctx, resetLeaseKey, ttl)
		switch {
		case err != nil:
			s.logger.Warn("Run lease unavailable, running without it", zap.Error(err))
		case !claimed:
			s.logger.Info("Skipping reset run, another instance holds the lease")
			return nil, ErrRunInProgress
		default:
			defer func() {
				if err := s.lease.Release(context.WithoutCancel(ctx), resetLeaseKey); err != nil {
					s.logger.Warn("Failed to release run lease", zap.Error(err))
				}
			}()
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()
	runCtx, span := telemetry.StartSpan(runCtx, "reset.scheduled", attribute.Int("interval_days", s.config.IntervalDays))

	s.logger.Info("Starting scheduled reset", zap.Int("interval_days", s.config.IntervalDays))
	startTime := time.Now()
	result, err := s.runner.RunScheduledReset(runCtx, s.config.IntervalDays)
	duration := time.Since(startTime)
	telemetry.EndSpan(span, err)
	if s.recorder != nil {
		s.recorder.RecordResetRun(ctx, duration, err)
	}

	if err != nil {
		return nil, fmt.Errorf("scheduled reset: %w", err)
	}

	s.logger.Info("Scheduled reset completed",
		zap.Duration("duration", duration),
		zap.Bool("success", result.Success),
		zap.Int("users_reset", result.TotalUsersReset),
		zap.Int("products_deleted", result.TotalProductsDeleted),
		zap.Int("listings_deleted", result.TotalListingsDeleted),
		zap.Int("gallery_deleted", result.TotalGalleryDeleted),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// IsRunning returns whether the scheduler loop is active
func (s *ResetScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
