// Package reset implements the free-tier content reset use cases.
package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

// DefaultBulkDelay is the pause between two profiles in a bulk reset
const DefaultBulkDelay = 100 * time.Millisecond

const (
	errProfileNotFound = "profile not found"
	errNotEligible     = "profile is not eligible for reset: only free tier profiles are reset"
	errNotDue          = "profile was already reset within the interval"
)

// ResetService wipes free-tier profile content
type ResetService struct {
	profiles profile.ProfileRepository
	content  reset.ContentStore
	history  reset.HistoryRepository
	storage  GalleryStorage
	events   shared.EventPublisher
	flags    reset.SessionFlags
	policy   reset.Policy
	delay    time.Duration
	logger   *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// ResetServiceConfig contains the collaborators of ResetService. Storage,
// Events and Flags are optional.
type ResetServiceConfig struct {
	Profiles profile.ProfileRepository
	Content  reset.ContentStore
	History  reset.HistoryRepository
	Storage  GalleryStorage
	Events   shared.EventPublisher
	Flags    reset.SessionFlags
	Policy   reset.Policy
	// BulkDelay overrides DefaultBulkDelay when positive
	BulkDelay time.Duration
	Logger    *zap.Logger
}

// NewResetService creates a new ResetService
func NewResetService(cfg ResetServiceConfig) *ResetService {
	s := &ResetService{
		profiles: cfg.Profiles,
		content:  cfg.Content,
		history:  cfg.History,
		storage:  cfg.Storage,
		events:   cfg.Events,
		flags:    cfg.Flags,
		policy:   cfg.Policy,
		delay:    cfg.BulkDelay,
		logger:   cfg.Logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
	if s.policy.Interval <= 0 {
		s.policy = reset.DefaultPolicy()
	}
	if s.delay <= 0 {
		s.delay = DefaultBulkDelay
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Policy returns the reset interval policy
func (s *ResetService) Policy() reset.Policy {
	return s.policy
}

// ResetSingleUser wipes one profile's content. Lookup failures and
// non-free profiles are reported in the result, not as an error.
func (s *ResetService) ResetSingleUser(ctx context.Context, profileID uuid.UUID) *ResetResult {
	p, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		result := &ResetResult{ProfileID: profileID}
		if errors.Is(err, shared.ErrNotFound) {
			result.Errors = []string{errProfileNotFound}
		} else {
			result.Errors = []string{fmt.Sprintf("failed to load profile: %v", err)}
		}
		return result
	}
	return s.resetProfile(ctx, p, reset.ResetTypeManual, nil)
}

// ResetAllFreeUsers resets every free-tier profile, one at a time
func (s *ResetService) ResetAllFreeUsers(ctx context.Context) (*BulkResetResult, error) {
	profiles, err := s.profiles.FindFreeProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list free profiles: %w", err)
	}
	return s.resetMany(ctx, profiles, reset.ResetTypeBulk, nil), nil
}

// ResetEligibleUsers resets free-tier profiles never reset or last reset
// more than days days ago
func (s *ResetService) ResetEligibleUsers(ctx context.Context, days int) (*BulkResetResult, error) {
	return s.resetEligible(ctx, days, reset.ResetTypeEligible)
}

// RunScheduledReset is ResetEligibleUsers recorded as a scheduled run
func (s *ResetService) RunScheduledReset(ctx context.Context, days int) (*BulkResetResult, error) {
	return s.resetEligible(ctx, days, reset.ResetTypeScheduled)
}

func (s *ResetService) resetEligible(ctx context.Context, days int, resetType reset.ResetType) (*BulkResetResult, error) {
	if days <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "days must be a positive number")
	}
	due, err := reset.NewPolicy(days)
	if err != nil {
		return nil, err
	}
	cutoff := reset.Cutoff(s.now(), days)
	profiles, err := s.profiles.FindResetCandidates(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list reset candidates: %w", err)
	}
	s.logger.Info("Resetting eligible profiles",
		zap.Int("days", days),
		zap.Time("cutoff", cutoff),
		zap.Int("candidates", len(profiles)),
		zap.String("reset_type", string(resetType)))
	return s.resetMany(ctx, profiles, resetType, &due), nil
}

// resetMany resets profiles one by one. due, when set, re-checks each
// profile against the interval the candidates were selected with.
func (s *ResetService) resetMany(ctx context.Context, profiles []profile.Profile, resetType reset.ResetType, due *reset.Policy) *BulkResetResult {
	bulk := &BulkResetResult{Errors: []string{}}
	started := s.now()

	for i := range profiles {
		if i > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				bulk.Errors = append(bulk.Errors, fmt.Sprintf("bulk reset stopped after %d of %d profiles: %v", i, len(profiles), err))
				break
			}
		}
		bulk.add(s.resetProfile(ctx, &profiles[i], resetType, due))
	}

	bulk.Success = len(bulk.Errors) == 0
	s.logger.Info("Bulk reset finished",
		zap.String("reset_type", string(resetType)),
		zap.Int("profiles", len(profiles)),
		zap.Int("reset", bulk.TotalUsersReset),
		zap.Int("products_deleted", bulk.TotalProductsDeleted),
		zap.Int("listings_deleted", bulk.TotalListingsDeleted),
		zap.Int("gallery_deleted", bulk.TotalGalleryDeleted),
		zap.Int("errors", len(bulk.Errors)),
		zap.Duration("duration", s.now().Sub(started)))
	return bulk
}

func (s *ResetService) resetProfile(ctx context.Context, p *profile.Profile, resetType reset.ResetType, due *reset.Policy) *ResetResult {
	result := &ResetResult{ProfileID: p.ID, Errors: []string{}}
	req := reset.WipeRequest{Type: resetType, At: s.now(), Due: due}

	// p may be stale; Wipe checks again under the row lock
	err := req.Check(p)
	var outcome *reset.WipeOutcome
	if err == nil {
		outcome, err = s.content.Wipe(ctx, p, req)
	}
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotEligible):
			result.Errors = append(result.Errors, errNotEligible)
		case errors.Is(err, reset.ErrNotDue):
			result.Errors = append(result.Errors, errNotDue)
		case errors.Is(err, shared.ErrNotFound):
			result.Errors = append(result.Errors, errProfileNotFound)
		default:
			s.logger.Error("Content reset failed",
				zap.String("profile_id", p.ID.String()),
				zap.String("reset_type", string(resetType)),
				zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("reset rolled back: %v", err))
		}
		return result
	}

	h := outcome.History
	result.Success = true
	result.ProductsDeleted = h.Deleted.Products
	result.ListingsDeleted = h.Deleted.Listings
	result.GalleryDeleted = h.Deleted.GalleryItems

	// Rows are committed; object failures are recorded on the history row
	if storageErrs := s.deleteGalleryObjects(ctx, outcome.GalleryKeys); len(storageErrs) > 0 {
		result.Errors = append(result.Errors, storageErrs...)
		h.Errors = append(h.Errors, storageErrs...)
		if err := s.history.AttachErrors(ctx, h.ID, h.Errors); err != nil {
			s.logger.Warn("Failed to record gallery cleanup errors",
				zap.String("history_id", h.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Profile content reset",
		zap.String("profile_id", p.ID.String()),
		zap.String("reset_type", string(resetType)),
		zap.Int("products_deleted", result.ProductsDeleted),
		zap.Int("listings_deleted", result.ListingsDeleted),
		zap.Int("gallery_deleted", result.GalleryDeleted))

	// Triggers the reset notice email
	s.publish(ctx, reset.NewContentResetEvent(h, p.Email, p.Name()))
	return result
}

// deleteGalleryObjects removes stored images; the rows are already gone
func (s *ResetService) deleteGalleryObjects(ctx context.Context, keys []string) []string {
	if s.storage == nil || len(keys) == 0 {
		return nil
	}
	var errs []string
	for _, key := range keys {
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			errs = append(errs, fmt.Sprintf("failed to delete gallery object %s: %v", key, err))
		}
	}
	return errs
}

func (s *ResetService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish reset events", zap.Error(err))
	}
}

// History lists a profile's resets, newest first by default
func (s *ResetService) History(ctx context.Context, profileID uuid.UUID, filter HistoryFilter) (*shared.Paginated[HistoryResponse], error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	}.Normalize()
	if f.OrderBy == "" {
		f.OrderBy = "reset_at"
	}

	rows, total, err := s.history.FindByProfile(ctx, profileID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load reset history: %w", err)
	}
	items := make([]HistoryResponse, len(rows))
	for i := range rows {
		items[i] = ToHistoryResponse(&rows[i])
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// ResetInfo computes the countdown for a profile together with its content
// usage and last reset. When sessionID is set, ShowNotification is true
// the first time the session sees the level.
func (s *ResetService) ResetInfo(ctx context.Context, profileID uuid.UUID, sessionID string) (*ResetInfoResponse, error) {
	p, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	info := reset.CalculateResetInfo(p, s.policy, s.now())
	resp := newResetInfoResponse(p.ID, p.SubscriptionTier.String(), info)

	counts, err := s.content.CountContent(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count content: %w", err)
	}
	resp.Usage = newUsageResponse(p.SubscriptionTier, counts)

	last, err := s.history.LatestForProfile(ctx, p.ID)
	switch {
	case err == nil:
		h := ToHistoryResponse(last)
		resp.LastReset = &h
	case !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("failed to load last reset: %w", err)
	}

	if sessionID != "" && s.flags != nil {
		show, err := reset.NewNotificationTracker(sessionID, p.ID, s.flags).Observe(ctx, info)
		if err != nil {
			return nil, fmt.Errorf("failed to check notification flag: %w", err)
		}
		resp.ShowNotification = show
	}
	return resp, nil
}

// CalculateResetInfo computes the countdown without touching session flags
func (s *ResetService) CalculateResetInfo(ctx context.Context, profileID uuid.UUID) (*profile.Profile, reset.ResetInfo, error) {
	p, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		return nil, reset.ResetInfo{}, err
	}
	return p, reset.CalculateResetInfo(p, s.policy, s.now()), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
