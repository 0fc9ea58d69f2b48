package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EmailQueueRepository persists the outbound queue.
type EmailQueueRepository interface {
	Enqueue(ctx context.Context, email *QueuedEmail) error
	// ClaimDue atomically moves up to limit due pending emails to sending
	// and returns them.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]QueuedEmail, error)
	Update(ctx context.Context, email *QueuedEmail) error
	FindByID(ctx context.Context, id uuid.UUID) (*QueuedEmail, error)
	CountByStatus(ctx context.Context, status EmailStatus) (int64, error)
}
