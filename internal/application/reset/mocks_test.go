package reset

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

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

type MockContentStore struct {
	mock.Mock
}

func (m *MockContentStore) CountContent(ctx context.Context, profileID uuid.UUID) (reset.ContentCounts, error) {
	args := m.Called(ctx, profileID)
	return args.Get(0).(reset.ContentCounts), args.Error(1)
}

func (m *MockContentStore) Wipe(ctx context.Context, p *profile.Profile, req reset.WipeRequest) (*reset.WipeOutcome, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reset.WipeOutcome), args.Error(1)
}

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) FindByProfile(ctx context.Context, profileID uuid.UUID, filter shared.Filter) ([]reset.History, int64, error) {
	args := m.Called(ctx, profileID, filter)
	return args.Get(0).([]reset.History), args.Get(1).(int64), args.Error(2)
}

func (m *MockHistoryRepository) LatestForProfile(ctx context.Context, profileID uuid.UUID) (*reset.History, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reset.History), args.Error(1)
}

func (m *MockHistoryRepository) AttachErrors(ctx context.Context, historyID uuid.UUID, errs []string) error {
	return m.Called(ctx, historyID, errs).Error(0)
}

type MockGalleryStorage struct {
	mock.Mock
}

func (m *MockGalleryStorage) DeleteObject(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// recordingPublisher keeps published events
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

func (p *recordingPublisher) published() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}

// memoryFlags is a SessionFlags kept in a map
type memoryFlags struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryFlags() *memoryFlags {
	return &memoryFlags{seen: make(map[string]bool)}
}

func (f *memoryFlags) MarkShown(_ context.Context, scope string, level reset.NotificationLevel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := scope + ":" + string(level)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}
