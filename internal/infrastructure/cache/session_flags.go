package cache

import (
	"context"
	"time"

	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

// SessionFlagStore remembers which reset notification levels a browser
// session has already been shown for a profile's reset cycle. Each flag
// expires after ttl.
type SessionFlagStore struct {
	store shared.IdempotencyStore
	ttl   time.Duration
}

// NewSessionFlagStore builds session flags on top of an idempotency store
func NewSessionFlagStore(store shared.IdempotencyStore, ttl time.Duration) *SessionFlagStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionFlagStore{store: store, ttl: ttl}
}

// MarkShown sets the flag for scope and level. It returns true the first
// time and false once the flag is already set.
func (s *SessionFlagStore) MarkShown(ctx context.Context, scope string, level reset.NotificationLevel) (bool, error) {
	return s.store.MarkProcessed(ctx, sessionKey(scope, level), s.ttl)
}

func sessionKey(scope string, level reset.NotificationLevel) string {
	return "reset_notification:" + scope + ":" + string(level)
}

var _ reset.SessionFlags = (*SessionFlagStore)(nil)
