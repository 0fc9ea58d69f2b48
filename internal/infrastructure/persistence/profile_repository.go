package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProfileRepository implements ProfileRepository using GORM
type GormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a new GormProfileRepository
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

// FindByID finds a profile by its ID
func (r *GormProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	var model models.ProfileModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEmail finds a profile by its email address
func (r *GormProfileRepository) FindByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	var model models.ProfileModel
	if err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindFreeProfiles returns every free-tier profile, oldest first
func (r *GormProfileRepository) FindFreeProfiles(ctx context.Context) ([]profile.Profile, error) {
	var profileModels []models.ProfileModel
	if err := r.db.WithContext(ctx).
		Where("subscription_tier = ?", string(profile.TierFree)).
		Order("created_at ASC").
		Find(&profileModels).Error; err != nil {
		return nil, err
	}
	return toProfiles(profileModels), nil
}

// FindResetCandidates returns free-tier profiles never reset or last reset before cutoff
func (r *GormProfileRepository) FindResetCandidates(ctx context.Context, cutoff time.Time) ([]profile.Profile, error) {
	var profileModels []models.ProfileModel
	if err := r.db.WithContext(ctx).
		Where("subscription_tier = ?", string(profile.TierFree)).
		Where("last_free_reset IS NULL OR last_free_reset < ?", cutoff).
		Order("created_at ASC").
		Find(&profileModels).Error; err != nil {
		return nil, err
	}
	return toProfiles(profileModels), nil
}

// UpdateTier sets the subscription tier of a profile
func (r *GormProfileRepository) UpdateTier(ctx context.Context, id uuid.UUID, tier profile.SubscriptionTier) error {
	return updateTier(r.db.WithContext(ctx), id, tier)
}

// Save creates or updates a profile
func (r *GormProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	model := models.ProfileFromDomain(p)
	return r.db.WithContext(ctx).Save(model).Error
}

// updateTier applies Profile.ChangeTier to the locked row, so an unknown
// tier is rejected and the current tier is left untouched.
func updateTier(db *gorm.DB, id uuid.UUID, tier profile.SubscriptionTier) error {
	var model models.ProfileModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrNotFound
		}
		return err
	}
	p := model.ToDomain()
	if err := p.ChangeTier(tier); err != nil {
		return err
	}
	if len(p.GetDomainEvents()) == 0 {
		return nil
	}
	return db.Model(&models.ProfileModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"subscription_tier": string(p.SubscriptionTier),
			"updated_at":        p.UpdatedAt,
		}).Error
}

func toProfiles(in []models.ProfileModel) []profile.Profile {
	out := make([]profile.Profile, len(in))
	for i := range in {
		out[i] = *in[i].ToDomain()
	}
	return out
}

// Ensure GormProfileRepository implements ProfileRepository
var _ profile.ProfileRepository = (*GormProfileRepository)(nil)
