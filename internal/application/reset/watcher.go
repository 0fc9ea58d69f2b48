package reset

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

// DefaultWatchInterval is how often a Watcher re-checks the countdown
const DefaultWatchInterval = 60 * time.Second

// InfoSource computes the reset countdown of a profile
type InfoSource interface {
	CalculateResetInfo(ctx context.Context, profileID uuid.UUID) (*profile.Profile, reset.ResetInfo, error)
}

// WatcherConfig configures a Watcher
type WatcherConfig struct {
	Source    InfoSource
	ProfileID uuid.UUID
	Tracker   *reset.NotificationTracker
	// Interval defaults to DefaultWatchInterval
	Interval time.Duration
	// Notify is called each time the tracker decides to show a level
	Notify func(ctx context.Context, info *ResetInfoResponse)
	Logger *zap.Logger
}

// Watcher polls a profile's reset countdown for one session and fires
// Notify when a new notification level should be shown
type Watcher struct {
	cfg WatcherConfig
}

// NewWatcher creates a Watcher
func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultWatchInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Watcher{cfg: cfg}
}

// Run checks once immediately and then every interval until ctx is done.
// It returns early if the profile disappears.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := w.check(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Watcher) check(ctx context.Context) error {
	p, info, err := w.cfg.Source.CalculateResetInfo(ctx, w.cfg.ProfileID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if ctx.Err() == nil {
			w.cfg.Logger.Warn("Reset info check failed",
				zap.String("profile_id", w.cfg.ProfileID.String()),
				zap.Error(err))
		}
		return nil
	}

	show, err := w.cfg.Tracker.Observe(ctx, info)
	if err != nil {
		w.cfg.Logger.Warn("Notification flag check failed",
			zap.String("profile_id", w.cfg.ProfileID.String()),
			zap.Error(err))
		return nil
	}
	if show && w.cfg.Notify != nil {
		resp := newResetInfoResponse(p.ID, p.SubscriptionTier.String(), info)
		resp.ShowNotification = true
		w.cfg.Notify(ctx, resp)
	}
	return nil
}
