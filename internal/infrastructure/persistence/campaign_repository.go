package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/a2zsellr/backend/internal/domain/campaign"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCampaignRepository implements CampaignRepository using GORM
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewGormCampaignRepository creates a new GormCampaignRepository
func NewGormCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

// FindByID finds a campaign by ID
func (r *GormCampaignRepository) FindByID(ctx context.Context, id uuid.UUID) (*campaign.MarketingCampaign, error) {
	var model models.MarketingCampaignModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a campaign
func (r *GormCampaignRepository) Save(ctx context.Context, c *campaign.MarketingCampaign) error {
	return r.db.WithContext(ctx).Save(models.MarketingCampaignFromDomain(c)).Error
}

// SaveGroup creates or updates a campaign group
func (r *GormCampaignRepository) SaveGroup(ctx context.Context, g *campaign.CampaignGroup) error {
	return r.db.WithContext(ctx).Save(models.CampaignGroupFromDomain(g)).Error
}

// FindGroup finds a campaign group by ID
func (r *GormCampaignRepository) FindGroup(ctx context.Context, id uuid.UUID) (*campaign.CampaignGroup, error) {
	var model models.CampaignGroupModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormExecutionRepository implements ExecutionRepository using GORM
type GormExecutionRepository struct {
	db *gorm.DB
}

// NewGormExecutionRepository creates a new GormExecutionRepository
func NewGormExecutionRepository(db *gorm.DB) *GormExecutionRepository {
	return &GormExecutionRepository{db: db}
}

// FindByID finds an execution by ID
func (r *GormExecutionRepository) FindByID(ctx context.Context, id uuid.UUID) (*campaign.CampaignExecution, error) {
	var model models.CampaignExecutionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCampaign returns all executions of a campaign
func (r *GormExecutionRepository) FindByCampaign(ctx context.Context, campaignID uuid.UUID) ([]campaign.CampaignExecution, error) {
	var rows []models.CampaignExecutionModel
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("scheduled_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]campaign.CampaignExecution, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// dueExecutionRow is an execution joined with its campaign and group
type dueExecutionRow struct {
	models.CampaignExecutionModel
	CampaignName    string    `gorm:"column:campaign_name"`
	Channel         string    `gorm:"column:channel"`
	Message         string    `gorm:"column:message"`
	ProfileID       uuid.UUID `gorm:"column:profile_id"`
	GroupName       *string   `gorm:"column:group_name"`
	PlatformGroupID *string   `gorm:"column:platform_group_id"`
}

// FindDue returns scheduled executions whose time has come, oldest first
func (r *GormExecutionRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]campaign.Dispatch, error) {
	var rows []dueExecutionRow
	if err := r.db.WithContext(ctx).
		Table("campaign_executions AS ce").
		Select(`ce.*, mc.name AS campaign_name, mc.channel, mc.message, mc.profile_id,
			cg.name AS group_name, cg.platform_group_id`).
		Joins("JOIN marketing_campaigns mc ON mc.id = ce.campaign_id").
		Joins("LEFT JOIN campaign_groups cg ON cg.id = ce.group_id").
		Where("ce.status = ? AND ce.scheduled_at <= ?", string(campaign.ExecutionStatusScheduled), now).
		Order("ce.scheduled_at ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]campaign.Dispatch, len(rows))
	for i := range rows {
		out[i] = campaign.Dispatch{
			Execution:       *rows[i].CampaignExecutionModel.ToDomain(),
			CampaignName:    rows[i].CampaignName,
			Channel:         campaign.Channel(rows[i].Channel),
			Message:         rows[i].Message,
			ProfileID:       rows[i].ProfileID,
			GroupName:       deref(rows[i].GroupName),
			PlatformGroupID: deref(rows[i].PlatformGroupID),
		}
	}
	return out, nil
}

// Save creates or updates an execution
func (r *GormExecutionRepository) Save(ctx context.Context, e *campaign.CampaignExecution) error {
	return r.db.WithContext(ctx).Save(models.CampaignExecutionFromDomain(e)).Error
}

// Change locks the execution and then its campaign with SELECT ... FOR
// UPDATE, so concurrent callbacks for one campaign apply one at a time
// and each sees the totals the previous one committed.
func (r *GormExecutionRepository) Change(ctx context.Context, executionID uuid.UUID, fn campaign.ChangeFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lock := clause.Locking{Strength: "UPDATE"}

		var em models.CampaignExecutionModel
		if err := tx.Clauses(lock).First(&em, "id = ?", executionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		var cm models.MarketingCampaignModel
		if err := tx.Clauses(lock).First(&cm, "id = ?", em.CampaignID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		var rows []models.CampaignExecutionModel
		if err := tx.Where("campaign_id = ?", cm.ID).Order("scheduled_at ASC").Find(&rows).Error; err != nil {
			return err
		}
		all := make([]campaign.CampaignExecution, len(rows))
		for i := range rows {
			all[i] = *rows[i].ToDomain()
		}

		e, c := em.ToDomain(), cm.ToDomain()
		if err := fn(e, c, all); err != nil {
			if errors.Is(err, campaign.ErrNoChange) {
				return nil
			}
			return err
		}
		if err := tx.Save(models.CampaignExecutionFromDomain(e)).Error; err != nil {
			return err
		}
		return tx.Save(models.MarketingCampaignFromDomain(c)).Error
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	_ campaign.CampaignRepository  = (*GormCampaignRepository)(nil)
	_ campaign.ExecutionRepository = (*GormExecutionRepository)(nil)
)
