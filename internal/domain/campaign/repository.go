package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CampaignRepository persists campaigns and their groups.
type CampaignRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*MarketingCampaign, error)
	Save(ctx context.Context, c *MarketingCampaign) error
	SaveGroup(ctx context.Context, g *CampaignGroup) error
	FindGroup(ctx context.Context, id uuid.UUID) (*CampaignGroup, error)
}

// ExecutionRepository persists campaign executions.
type ExecutionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CampaignExecution, error)
	FindByCampaign(ctx context.Context, campaignID uuid.UUID) ([]CampaignExecution, error)
	// FindDue returns scheduled executions whose time has come.
	FindDue(ctx context.Context, now time.Time, limit int) ([]Dispatch, error)
	Save(ctx context.Context, e *CampaignExecution) error
	// Change loads an execution and its campaign locked against other
	// writers, runs fn on them and stores both when fn returns nil.
	Change(ctx context.Context, executionID uuid.UUID, fn ChangeFunc) error
}

// ChangeFunc edits an execution and its campaign. all holds every
// execution of the campaign as currently stored. Returning ErrNoChange
// ends Change without writing anything.
type ChangeFunc func(e *CampaignExecution, c *MarketingCampaign, all []CampaignExecution) error

// ErrNoChange tells Change there is nothing to store.
var ErrNoChange = errors.New("campaign: nothing to store")
