package reset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/a2zsellr/backend/internal/domain/profile"
)

// NotificationLevel is how close a profile is to its next reset.
type NotificationLevel string

const (
	LevelNone  NotificationLevel = "none"
	Level3Days NotificationLevel = "3days"
	Level1Day  NotificationLevel = "1day"
	Level1Hour NotificationLevel = "1hour"
)

var levelThresholds = []struct {
	level NotificationLevel
	below time.Duration
}{
	{Level1Hour, time.Hour},
	{Level1Day, 24 * time.Hour},
	{Level3Days, 72 * time.Hour},
}

// LevelFor returns the tightest threshold that remaining is below.
func LevelFor(remaining time.Duration) NotificationLevel {
	for _, t := range levelThresholds {
		if remaining < t.below {
			return t.level
		}
	}
	return LevelNone
}

// ResetInfo describes the upcoming reset of a free-tier profile.
type ResetInfo struct {
	Eligible      bool              `json:"eligible"`
	NextResetAt   time.Time         `json:"next_reset_at"`
	TimeRemaining time.Duration     `json:"time_remaining"`
	Level         NotificationLevel `json:"level"`
}

// CalculateResetInfo computes the reset countdown of p at now. Paid
// profiles are never reset and always report LevelNone.
func CalculateResetInfo(p *profile.Profile, policy Policy, now time.Time) ResetInfo {
	if !p.IsFree() {
		return ResetInfo{Level: LevelNone}
	}
	next := policy.NextResetAt(p)
	remaining := next.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return ResetInfo{
		Eligible:      true,
		NextResetAt:   next,
		TimeRemaining: remaining,
		Level:         LevelFor(remaining),
	}
}

// SessionFlags remembers which levels were already shown in a scope.
// Implementations are expected to be safe for concurrent use.
type SessionFlags interface {
	// MarkShown sets the flag and returns true if it was not set before.
	MarkShown(ctx context.Context, scope string, level NotificationLevel) (bool, error)
}

// NotificationTracker decides whether the reset warning should be shown.
// Each level fires at most once per session, profile and reset cycle;
// re-entering an already shown level never fires again.
type NotificationTracker struct {
	sessionID string
	profileID uuid.UUID
	flags     SessionFlags

	mu        sync.Mutex
	cycle     time.Time
	lastShown NotificationLevel
}

// NewNotificationTracker creates a tracker for one browser session
// watching one profile.
func NewNotificationTracker(sessionID string, profileID uuid.UUID, flags SessionFlags) *NotificationTracker {
	return &NotificationTracker{sessionID: sessionID, profileID: profileID, flags: flags, lastShown: LevelNone}
}

// Observe records the current countdown and reports whether to show its
// level. A new reset deadline starts a new cycle with fresh flags.
func (t *NotificationTracker) Observe(ctx context.Context, info ResetInfo) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !info.NextResetAt.Equal(t.cycle) {
		t.cycle = info.NextResetAt
		t.lastShown = LevelNone
	}
	if info.Level == LevelNone || info.Level == "" || info.Level == t.lastShown {
		return false, nil
	}
	first, err := t.flags.MarkShown(ctx, t.scope(), info.Level)
	if err != nil {
		return false, err
	}
	if first {
		t.lastShown = info.Level
	}
	return first, nil
}

// LastShown returns the most recent level shown in the current cycle.
func (t *NotificationTracker) LastShown() NotificationLevel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastShown
}

func (t *NotificationTracker) scope() string {
	return fmt.Sprintf("%s:%s:%d", t.sessionID, t.profileID, t.cycle.Unix())
}
