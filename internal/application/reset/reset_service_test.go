package reset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

var fixedNow = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

type serviceFixture struct {
	profiles *MockProfileRepository
	content  *MockContentStore
	history  *MockHistoryRepository
	storage  *MockGalleryStorage
	events   *recordingPublisher
	sleeps   []time.Duration
	svc      *ResetService
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		profiles: &MockProfileRepository{},
		content:  &MockContentStore{},
		history:  &MockHistoryRepository{},
		storage:  &MockGalleryStorage{},
		events:   &recordingPublisher{},
	}
	f.svc = NewResetService(ResetServiceConfig{
		Profiles: f.profiles,
		Content:  f.content,
		History:  f.history,
		Storage:  f.storage,
		Events:   f.events,
		Flags:    newMemoryFlags(),
		Logger:   zap.NewNop(),
	})
	f.svc.now = func() time.Time { return fixedNow }
	f.svc.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func newProfile(t *testing.T, email string, tier profile.SubscriptionTier) *profile.Profile {
	t.Helper()
	p, err := profile.NewProfile(email, "Test Shop")
	require.NoError(t, err)
	p.SubscriptionTier = tier
	return p
}

func wipeOutcome(t *testing.T, p *profile.Profile, resetType reset.ResetType, c reset.ContentCounts, keys ...string) *reset.WipeOutcome {
	t.Helper()
	h, err := reset.NewHistory(p.ID, resetType, c, fixedNow)
	require.NoError(t, err)
	return &reset.WipeOutcome{History: h, GalleryKeys: keys}
}

// wipeRequest is the request the service sends at fixedNow; days > 0 adds
// the interval re-check.
func wipeRequest(resetType reset.ResetType, days int) reset.WipeRequest {
	req := reset.WipeRequest{Type: resetType, At: fixedNow}
	if days > 0 {
		due, _ := reset.NewPolicy(days)
		req.Due = &due
	}
	return req
}

func TestResetSingleUser(t *testing.T) {
	ctx := context.Background()

	t.Run("missing profile", func(t *testing.T) {
		f := newFixture(t)
		id := uuid.New()
		f.profiles.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)

		result := f.svc.ResetSingleUser(ctx, id)

		assert.False(t, result.Success)
		assert.Equal(t, []string{"profile not found"}, result.Errors)
		f.content.AssertNotCalled(t, "Wipe", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("paid profile is not reset", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "paid@shop.co.za", profile.TierPremium)
		f.profiles.On("FindByID", ctx, p.ID).Return(p, nil)

		result := f.svc.ResetSingleUser(ctx, p.ID)

		assert.False(t, result.Success)
		assert.Zero(t, result.ProductsDeleted)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "not eligible")
		f.content.AssertNotCalled(t, "Wipe", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, f.events.published())
	})

	t.Run("free profile is wiped", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "free@shop.co.za", profile.TierFree)
		counts := reset.ContentCounts{Products: 3, Listings: 1}
		f.profiles.On("FindByID", ctx, p.ID).Return(p, nil)
		f.content.On("Wipe", ctx, p, wipeRequest(reset.ResetTypeManual, 0)).
			Return(wipeOutcome(t, p, reset.ResetTypeManual, counts), nil)

		result := f.svc.ResetSingleUser(ctx, p.ID)

		assert.True(t, result.Success)
		assert.Equal(t, p.ID, result.ProfileID)
		assert.Equal(t, 3, result.ProductsDeleted)
		assert.Equal(t, 1, result.ListingsDeleted)
		assert.Equal(t, 0, result.GalleryDeleted)
		assert.Empty(t, result.Errors)

		events := f.events.published()
		require.Len(t, events, 1)
		resetEvent, ok := events[0].(*reset.ContentResetEvent)
		require.True(t, ok)
		assert.Equal(t, "free@shop.co.za", resetEvent.Email)
		assert.Equal(t, counts, resetEvent.Deleted)
		f.storage.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything)
	})

	t.Run("profile upgraded before the wipe locked it", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "free@shop.co.za", profile.TierFree)
		f.profiles.On("FindByID", ctx, p.ID).Return(p, nil)
		f.content.On("Wipe", ctx, p, wipeRequest(reset.ResetTypeManual, 0)).Return(nil, shared.ErrNotEligible)

		result := f.svc.ResetSingleUser(ctx, p.ID)

		assert.False(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "not eligible")
		assert.Empty(t, f.events.published())
	})

	t.Run("failed wipe reports rollback", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "free@shop.co.za", profile.TierFree)
		f.profiles.On("FindByID", ctx, p.ID).Return(p, nil)
		f.content.On("Wipe", ctx, p, wipeRequest(reset.ResetTypeManual, 0)).Return(nil, errors.New("deadlock detected"))

		result := f.svc.ResetSingleUser(ctx, p.ID)

		assert.False(t, result.Success)
		assert.Zero(t, result.ProductsDeleted)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "rolled back")
		assert.Empty(t, f.events.published())
	})

	t.Run("gallery cleanup failures are recorded without failing", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "free@shop.co.za", profile.TierFree)
		outcome := wipeOutcome(t, p, reset.ResetTypeManual, reset.ContentCounts{GalleryItems: 2}, "p/a.jpg", "p/b.jpg")
		f.profiles.On("FindByID", ctx, p.ID).Return(p, nil)
		f.content.On("Wipe", ctx, p, wipeRequest(reset.ResetTypeManual, 0)).Return(outcome, nil)
		f.storage.On("DeleteObject", ctx, "p/a.jpg").Return(nil)
		f.storage.On("DeleteObject", ctx, "p/b.jpg").Return(errors.New("access denied"))
		f.history.On("AttachErrors", ctx, outcome.History.ID, mock.MatchedBy(func(errs []string) bool {
			return len(errs) == 1 && errs[0] == "failed to delete gallery object p/b.jpg: access denied"
		})).Return(nil)

		result := f.svc.ResetSingleUser(ctx, p.ID)

		assert.True(t, result.Success)
		assert.Equal(t, 2, result.GalleryDeleted)
		assert.Equal(t, []string{"failed to delete gallery object p/b.jpg: access denied"}, result.Errors)
		f.storage.AssertExpectations(t)
		f.history.AssertExpectations(t)
	})
}

func TestResetAllFreeUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := newProfile(t, "a@shop.co.za", profile.TierFree)
	b := newProfile(t, "b@shop.co.za", profile.TierFree)
	c := newProfile(t, "c@shop.co.za", profile.TierFree)
	f.profiles.On("FindFreeProfiles", ctx).Return([]profile.Profile{*a, *b, *c}, nil)

	f.content.On("Wipe", ctx, mock.MatchedBy(func(p *profile.Profile) bool { return p.ID == a.ID }), wipeRequest(reset.ResetTypeBulk, 0)).
		Return(wipeOutcome(t, a, reset.ResetTypeBulk, reset.ContentCounts{Products: 2, Listings: 1, GalleryItems: 1}), nil)
	f.content.On("Wipe", ctx, mock.MatchedBy(func(p *profile.Profile) bool { return p.ID == b.ID }), wipeRequest(reset.ResetTypeBulk, 0)).
		Return(nil, errors.New("connection reset"))
	f.content.On("Wipe", ctx, mock.MatchedBy(func(p *profile.Profile) bool { return p.ID == c.ID }), wipeRequest(reset.ResetTypeBulk, 0)).
		Return(wipeOutcome(t, c, reset.ResetTypeBulk, reset.ContentCounts{Products: 1}), nil)

	result, err := f.svc.ResetAllFreeUsers(ctx)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.TotalUsersReset)
	assert.Equal(t, 3, result.TotalProductsDeleted)
	assert.Equal(t, 1, result.TotalListingsDeleted)
	assert.Equal(t, 1, result.TotalGalleryDeleted)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], b.ID.String()+": reset rolled back")

	assert.Equal(t, []time.Duration{DefaultBulkDelay, DefaultBulkDelay}, f.sleeps)
	assert.Len(t, f.events.published(), 2)
}

func TestResetAllFreeUsers_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t)
	f.svc.sleep = sleepContext

	a := newProfile(t, "a@shop.co.za", profile.TierFree)
	b := newProfile(t, "b@shop.co.za", profile.TierFree)
	f.profiles.On("FindFreeProfiles", ctx).Return([]profile.Profile{*a, *b}, nil)
	f.content.On("Wipe", ctx, mock.Anything, wipeRequest(reset.ResetTypeBulk, 0)).
		Run(func(mock.Arguments) { cancel() }).
		Return(wipeOutcome(t, a, reset.ResetTypeBulk, reset.ContentCounts{Products: 1}), nil).Once()

	result, err := f.svc.ResetAllFreeUsers(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalUsersReset)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "stopped after 1 of 2 profiles")
	f.content.AssertNumberOfCalls(t, "Wipe", 1)
}

func TestResetEligibleUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-positive days", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ResetEligibleUsers(ctx, 0)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("uses a days-based cutoff", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "a@shop.co.za", profile.TierFree)
		f.profiles.On("FindResetCandidates", ctx, fixedNow.Add(-7*24*time.Hour)).Return([]profile.Profile{*p}, nil)
		f.content.On("Wipe", ctx, mock.Anything, wipeRequest(reset.ResetTypeEligible, 7)).
			Return(wipeOutcome(t, p, reset.ResetTypeEligible, reset.ContentCounts{Listings: 2}), nil)

		result, err := f.svc.ResetEligibleUsers(ctx, 7)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.TotalUsersReset)
		assert.Equal(t, 2, result.TotalListingsDeleted)
		assert.Empty(t, f.sleeps)
	})

	t.Run("scheduled runs are recorded as scheduled", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "a@shop.co.za", profile.TierFree)
		f.profiles.On("FindResetCandidates", ctx, fixedNow.Add(-30*24*time.Hour)).Return([]profile.Profile{*p}, nil)
		f.content.On("Wipe", ctx, mock.Anything, wipeRequest(reset.ResetTypeScheduled, 30)).
			Return(wipeOutcome(t, p, reset.ResetTypeScheduled, reset.ContentCounts{}), nil)

		result, err := f.svc.RunScheduledReset(ctx, 30)
		require.NoError(t, err)
		assert.True(t, result.Success)
		f.content.AssertExpectations(t)
	})

	t.Run("candidate reset since selection is skipped", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "a@shop.co.za", profile.TierFree)
		f.profiles.On("FindResetCandidates", ctx, mock.Anything).Return([]profile.Profile{*p}, nil)
		f.content.On("Wipe", ctx, mock.Anything, wipeRequest(reset.ResetTypeEligible, 7)).Return(nil, reset.ErrNotDue)

		result, err := f.svc.ResetEligibleUsers(ctx, 7)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Zero(t, result.TotalUsersReset)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "already reset within the interval")
	})

	t.Run("recently reset candidate is never wiped", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "a@shop.co.za", profile.TierFree)
		recent := fixedNow.Add(-time.Hour)
		p.LastFreeReset = &recent
		f.profiles.On("FindResetCandidates", ctx, mock.Anything).Return([]profile.Profile{*p}, nil)

		result, err := f.svc.ResetEligibleUsers(ctx, 7)
		require.NoError(t, err)
		assert.Zero(t, result.TotalUsersReset)
		f.content.AssertNotCalled(t, "Wipe", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("repository failure is returned", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.On("FindResetCandidates", ctx, mock.Anything).Return([]profile.Profile(nil), errors.New("db down"))
		_, err := f.svc.ResetEligibleUsers(ctx, 7)
		assert.ErrorContains(t, err, "db down")
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	profileID := uuid.New()
	h, err := reset.NewHistory(profileID, reset.ResetTypeBulk, reset.ContentCounts{Products: 4}, fixedNow)
	require.NoError(t, err)

	f.history.On("FindByProfile", ctx, profileID, shared.Filter{Page: 2, PageSize: 5, OrderBy: "reset_at", OrderDir: "desc"}).
		Return([]reset.History{*h}, int64(6), nil)

	page, err := f.svc.History(ctx, profileID, HistoryFilter{Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(6), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "bulk", page.Items[0].ResetType)
	assert.Equal(t, 4, page.Items[0].ProductsDeleted)
}

func TestResetInfo_ShowsEachLevelOncePerSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := newProfile(t, "a@shop.co.za", profile.TierFree)
	// weekly policy: last reset 5 days ago leaves 2 days, the 3days level
	last := fixedNow.Add(-5 * 24 * time.Hour)
	p.LastFreeReset = &last
	f.profiles.On("FindByID", ctx, p.ID).Return(p, nil)
	f.content.On("CountContent", ctx, p.ID).Return(reset.ContentCounts{}, nil)
	f.history.On("LatestForProfile", ctx, p.ID).Return(nil, shared.ErrNotFound)

	first, err := f.svc.ResetInfo(ctx, p.ID, "session-1")
	require.NoError(t, err)
	assert.Equal(t, reset.Level3Days, first.Level)
	assert.True(t, first.ShowNotification)
	assert.Equal(t, int64(2*24*3600), first.SecondsRemaining)
	require.NotNil(t, first.NextResetAt)

	again, err := f.svc.ResetInfo(ctx, p.ID, "session-1")
	require.NoError(t, err)
	assert.False(t, again.ShowNotification)

	other, err := f.svc.ResetInfo(ctx, p.ID, "session-2")
	require.NoError(t, err)
	assert.True(t, other.ShowNotification)

	anonymous, err := f.svc.ResetInfo(ctx, p.ID, "")
	require.NoError(t, err)
	assert.False(t, anonymous.ShowNotification)
}

func TestResetInfo_PaidProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := newProfile(t, "paid@shop.co.za", profile.TierBusiness)
	f.profiles.On("FindByID", ctx, p.ID).Return(p, nil)
	f.content.On("CountContent", ctx, p.ID).Return(reset.ContentCounts{Products: 400}, nil)
	f.history.On("LatestForProfile", ctx, p.ID).Return(nil, shared.ErrNotFound)

	info, err := f.svc.ResetInfo(ctx, p.ID, "s")
	require.NoError(t, err)
	assert.False(t, info.Eligible)
	assert.Nil(t, info.NextResetAt)
	assert.Equal(t, reset.LevelNone, info.Level)
	assert.False(t, info.ShowNotification)
	require.NotNil(t, info.Usage)
	assert.True(t, info.Usage.WithinLimits)
	assert.Nil(t, info.LastReset)
}

func TestResetInfo_UsageAndLastReset(t *testing.T) {
	ctx := context.Background()

	t.Run("free profile over its limits", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "a@shop.co.za", profile.TierFree)
		h, err := reset.NewHistory(p.ID, reset.ResetTypeScheduled, reset.ContentCounts{Products: 4}, fixedNow.Add(-48*time.Hour))
		require.NoError(t, err)
		f.profiles.On("FindByID", ctx, p.ID).Return(p, nil)
		f.content.On("CountContent", ctx, p.ID).Return(reset.ContentCounts{Products: 2, Listings: 4, GalleryItems: 1}, nil)
		f.history.On("LatestForProfile", ctx, p.ID).Return(h, nil)

		info, err := f.svc.ResetInfo(ctx, p.ID, "")
		require.NoError(t, err)
		require.NotNil(t, info.Usage)
		assert.Equal(t, 4, info.Usage.Listings)
		assert.Equal(t, profile.LimitsFor(profile.TierFree), info.Usage.Limits)
		assert.False(t, info.Usage.WithinLimits)
		require.NotNil(t, info.LastReset)
		assert.Equal(t, h.ID, info.LastReset.ID)
		assert.Equal(t, "scheduled", info.LastReset.ResetType)
	})

	t.Run("count failure is returned", func(t *testing.T) {
		f := newFixture(t)
		p := newProfile(t, "a@shop.co.za", profile.TierFree)
		f.profiles.On("FindByID", ctx, p.ID).Return(p, nil)
		f.content.On("CountContent", ctx, p.ID).Return(reset.ContentCounts{}, errors.New("db down"))

		_, err := f.svc.ResetInfo(ctx, p.ID, "")
		assert.ErrorContains(t, err, "db down")
	})
}
