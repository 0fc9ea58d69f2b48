package models

import (
	"time"

	"github.com/a2zsellr/backend/internal/domain/campaign"
	"github.com/google/uuid"
)

// MarketingCampaignModel is the persistence model for marketing_campaigns.
type MarketingCampaignModel struct {
	BaseModel
	ProfileID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Channel     string    `gorm:"type:varchar(20);not null"`
	Message     string    `gorm:"type:text;not null"`
	Status      string    `gorm:"type:varchar(20);not null;default:'draft'"`
	TotalSent   int       `gorm:"not null;default:0"`
	TotalFailed int       `gorm:"not null;default:0"`
}

func (MarketingCampaignModel) TableName() string { return "marketing_campaigns" }

func (m *MarketingCampaignModel) ToDomain() *campaign.MarketingCampaign {
	return &campaign.MarketingCampaign{
		BaseEntity:  m.BaseModel.ToDomain(),
		ProfileID:   m.ProfileID,
		Name:        m.Name,
		Channel:     campaign.Channel(m.Channel),
		Message:     m.Message,
		Status:      campaign.CampaignStatus(m.Status),
		TotalSent:   m.TotalSent,
		TotalFailed: m.TotalFailed,
	}
}

func MarketingCampaignFromDomain(c *campaign.MarketingCampaign) *MarketingCampaignModel {
	m := &MarketingCampaignModel{
		ProfileID:   c.ProfileID,
		Name:        c.Name,
		Channel:     string(c.Channel),
		Message:     c.Message,
		Status:      string(c.Status),
		TotalSent:   c.TotalSent,
		TotalFailed: c.TotalFailed,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// CampaignGroupModel is the persistence model for campaign_groups.
type CampaignGroupModel struct {
	BaseModel
	CampaignID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Name            string    `gorm:"type:varchar(200);not null"`
	PlatformGroupID string    `gorm:"type:varchar(200)"`
	MemberCount     int       `gorm:"not null;default:0"`
}

func (CampaignGroupModel) TableName() string { return "campaign_groups" }

func (m *CampaignGroupModel) ToDomain() *campaign.CampaignGroup {
	return &campaign.CampaignGroup{
		BaseEntity:      m.BaseModel.ToDomain(),
		CampaignID:      m.CampaignID,
		Name:            m.Name,
		PlatformGroupID: m.PlatformGroupID,
		MemberCount:     m.MemberCount,
	}
}

func CampaignGroupFromDomain(g *campaign.CampaignGroup) *CampaignGroupModel {
	m := &CampaignGroupModel{
		CampaignID:      g.CampaignID,
		Name:            g.Name,
		PlatformGroupID: g.PlatformGroupID,
		MemberCount:     g.MemberCount,
	}
	m.FromDomainBaseEntity(g.BaseEntity)
	return m
}

// CampaignExecutionModel is the persistence model for campaign_executions.
type CampaignExecutionModel struct {
	BaseModel
	CampaignID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	GroupID        *uuid.UUID `gorm:"type:uuid"`
	Status         string     `gorm:"type:varchar(20);not null;default:'scheduled';index:idx_campaign_executions_due,priority:1"`
	ScheduledAt    time.Time  `gorm:"not null;index:idx_campaign_executions_due,priority:2"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	MessagesSent   int    `gorm:"not null;default:0"`
	MessagesFailed int    `gorm:"not null;default:0"`
	ErrorMessage   string `gorm:"type:text"`
	N8NExecutionID string `gorm:"column:n8n_execution_id;type:varchar(100)"`
}

func (CampaignExecutionModel) TableName() string { return "campaign_executions" }

func (m *CampaignExecutionModel) ToDomain() *campaign.CampaignExecution {
	return &campaign.CampaignExecution{
		BaseEntity:     m.BaseModel.ToDomain(),
		CampaignID:     m.CampaignID,
		GroupID:        m.GroupID,
		Status:         campaign.ExecutionStatus(m.Status),
		ScheduledAt:    m.ScheduledAt,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		MessagesSent:   m.MessagesSent,
		MessagesFailed: m.MessagesFailed,
		ErrorMessage:   m.ErrorMessage,
		N8NExecutionID: m.N8NExecutionID,
	}
}

func CampaignExecutionFromDomain(e *campaign.CampaignExecution) *CampaignExecutionModel {
	m := &CampaignExecutionModel{
		CampaignID:     e.CampaignID,
		GroupID:        e.GroupID,
		Status:         string(e.Status),
		ScheduledAt:    e.ScheduledAt,
		StartedAt:      e.StartedAt,
		CompletedAt:    e.CompletedAt,
		MessagesSent:   e.MessagesSent,
		MessagesFailed: e.MessagesFailed,
		ErrorMessage:   e.ErrorMessage,
		N8NExecutionID: e.N8NExecutionID,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

// AllModels lists every model, in dependency order, for AutoMigrate in tests.
func AllModels() []any {
	return []any{
		&ProfileModel{},
		&ProductModel{},
		&ListingModel{},
		&GalleryItemModel{},
		&ResetHistoryModel{},
		&PaymentTransactionModel{},
		&EmailQueueModel{},
		&MarketingCampaignModel{},
		&CampaignGroupModel{},
		&CampaignExecutionModel{},
	}
}
