package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	msgapp "github.com/a2zsellr/backend/internal/application/messaging"
	"github.com/a2zsellr/backend/internal/infrastructure/telemetry"
)

// QueueProcessor drains one batch of the email queue
type QueueProcessor interface {
	ProcessQueue(ctx context.Context, limit int) (*msgapp.ProcessResult, error)
}

// EmailPassRecorder observes finished queue passes
type EmailPassRecorder interface {
	RecordEmailPass(ctx context.Context, sent, failed int)
}

// EmailQueueSchedulerConfig holds configuration for the in-process queue
// worker. Hosted deployments drive the queue through the cron endpoint
// instead and leave this disabled.
type EmailQueueSchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int
	RunTimeout time.Duration
}

// DefaultEmailQueueSchedulerConfig returns default configuration
func DefaultEmailQueueSchedulerConfig() EmailQueueSchedulerConfig {
	return EmailQueueSchedulerConfig{
		Enabled:    false,
		Interval:   time.Minute,
		BatchSize:  msgapp.DefaultBatchSize,
		RunTimeout: 5 * time.Minute,
	}
}

// EmailQueueScheduler calls ProcessQueue on a fixed interval
type EmailQueueScheduler struct {
	processor QueueProcessor
	recorder  EmailPassRecorder
	logger    *zap.Logger
	config    EmailQueueSchedulerConfig

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewEmailQueueScheduler creates a new email queue scheduler
func NewEmailQueueScheduler(processor QueueProcessor, logger *zap.Logger, config EmailQueueSchedulerConfig) *EmailQueueScheduler {
	defaults := DefaultEmailQueueSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailQueueScheduler{processor: processor, logger: logger, config: config}
}

// SetRecorder registers r to observe every pass. Call before Start.
func (s *EmailQueueScheduler) SetRecorder(r EmailPassRecorder) {
	s.recorder = r
}

// Start starts the ticker loop
func (s *EmailQueueScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Email queue scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx)

	s.logger.Info("Email queue scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize))
	return nil
}

// Stop gracefully stops the scheduler
func (s *EmailQueueScheduler) Stop(ctx context.Context) error {
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
		s.logger.Info("Email queue scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Email queue scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *EmailQueueScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processOnce(ctx)
		}
	}
}

func (s *EmailQueueScheduler) processOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	runCtx, span := telemetry.StartSpan(runCtx, "email.queue_pass")
	result, err := s.processor.ProcessQueue(runCtx, s.config.BatchSize)
	telemetry.EndSpan(span, err)
	if err != nil {
		s.logger.Error("Email queue pass failed", zap.Error(err))
		return
	}
	if s.recorder != nil {
		s.recorder.RecordEmailPass(ctx, result.Sent, result.Failed)
	}
	if len(result.Errors) > 0 {
		s.logger.Warn("Email queue pass finished with errors",
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
			zap.Strings("errors", result.Errors))
	}
}

// IsRunning returns whether the scheduler loop is active
func (s *EmailQueueScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
