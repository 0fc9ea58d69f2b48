package billing

import (
	"context"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PaymentTransactionRepository defines persistence for payment transactions
type PaymentTransactionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentTransaction, error)
	FindByMerchantReference(ctx context.Context, ref string) (*PaymentTransaction, error)
	FindByProfile(ctx context.Context, profileID uuid.UUID, filter shared.Filter) ([]PaymentTransaction, int64, error)
	Save(ctx context.Context, tx *PaymentTransaction) error
}

// SettlementStore applies a completed payment: it persists the
// transaction and moves the profile to the paid tier in one unit of work.
type SettlementStore interface {
	Settle(ctx context.Context, tx *PaymentTransaction, tier profile.SubscriptionTier) error
}
