package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/a2zsellr/backend/internal/domain/billing"
	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) VerifyNotification(ctx context.Context, body []byte) (*billing.Notification, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Notification), args.Error(1)
}

func (m *MockGateway) BuildCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutForm, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutForm), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByMerchantReference(ctx context.Context, ref string) (*billing.PaymentTransaction, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByProfile(ctx context.Context, profileID uuid.UUID, filter shared.Filter) ([]billing.PaymentTransaction, int64, error) {
	args := m.Called(ctx, profileID, filter)
	return args.Get(0).([]billing.PaymentTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) Save(ctx context.Context, tx *billing.PaymentTransaction) error {
	return m.Called(ctx, tx).Error(0)
}

type MockSettlementStore struct {
	mock.Mock
}

func (m *MockSettlementStore) Settle(ctx context.Context, tx *billing.PaymentTransaction, tier profile.SubscriptionTier) error {
	return m.Called(ctx, tx, tier).Error(0)
}

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *MockProfileRepository) FindByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *MockProfileRepository) FindFreeProfiles(ctx context.Context) ([]profile.Profile, error) {
	args := m.Called(ctx)
	return args.Get(0).([]profile.Profile), args.Error(1)
}

func (m *MockProfileRepository) FindResetCandidates(ctx context.Context, cutoff time.Time) ([]profile.Profile, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]profile.Profile), args.Error(1)
}

func (m *MockProfileRepository) UpdateTier(ctx context.Context, id uuid.UUID, tier profile.SubscriptionTier) error {
	return m.Called(ctx, id, tier).Error(0)
}

func (m *MockProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	return m.Called(ctx, p).Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) Events() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}
