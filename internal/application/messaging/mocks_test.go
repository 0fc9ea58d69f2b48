package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/a2zsellr/backend/internal/domain/messaging"
	"github.com/a2zsellr/backend/internal/domain/profile"
)

type MockEmailQueueRepository struct {
	mock.Mock
}

func (m *MockEmailQueueRepository) Enqueue(ctx context.Context, email *messaging.QueuedEmail) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockEmailQueueRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]messaging.QueuedEmail, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]messaging.QueuedEmail), args.Error(1)
}

func (m *MockEmailQueueRepository) Update(ctx context.Context, email *messaging.QueuedEmail) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockEmailQueueRepository) FindByID(ctx context.Context, id uuid.UUID) (*messaging.QueuedEmail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.QueuedEmail), args.Error(1)
}

func (m *MockEmailQueueRepository) CountByStatus(ctx context.Context, status messaging.EmailStatus) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

// fakeSender fails for recipients listed in failFor
type fakeSender struct {
	mu      sync.Mutex
	failFor map[string]bool
	// onSend, when set, decides the outcome of every send
	onSend func(messaging.Message) error
	sent   []messaging.Message
}

func (s *fakeSender) Name() string { return "fake" }

func (s *fakeSender) Send(_ context.Context, msg messaging.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onSend != nil {
		if err := s.onSend(msg); err != nil {
			return "", err
		}
	}
	if s.failFor[msg.ToEmail] {
		return "", errors.New("provider unavailable")
	}
	s.sent = append(s.sent, msg)
	return "msg-" + msg.ToEmail, nil
}

func (s *fakeSender) Sent() []messaging.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]messaging.Message(nil), s.sent...)
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
