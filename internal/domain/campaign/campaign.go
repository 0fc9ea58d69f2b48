package campaign

import (
	"strings"
	"time"

	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Channel is the social platform a campaign posts to.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelFacebook Channel = "facebook"
)

// IsValid reports whether the channel is supported.
func (c Channel) IsValid() bool {
	return c == ChannelWhatsApp || c == ChannelFacebook
}

// CampaignStatus is the lifecycle state of a marketing campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusPaused    CampaignStatus = "paused"
)

// MarketingCampaign is a message a seller broadcasts to their groups.
type MarketingCampaign struct {
	shared.BaseEntity
	ProfileID   uuid.UUID
	Name        string
	Channel     Channel
	Message     string
	Status      CampaignStatus
	TotalSent   int
	TotalFailed int
}

// NewMarketingCampaign creates a draft campaign.
func NewMarketingCampaign(profileID uuid.UUID, name string, channel Channel, message string) (*MarketingCampaign, error) {
	if profileID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROFILE", "Profile ID is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Campaign name cannot be empty")
	}
	if !channel.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Channel must be whatsapp or facebook")
	}
	if strings.TrimSpace(message) == "" {
		return nil, shared.NewDomainError("INVALID_MESSAGE", "Campaign message cannot be empty")
	}
	return &MarketingCampaign{
		BaseEntity: shared.NewBaseEntity(),
		ProfileID:  profileID,
		Name:       strings.TrimSpace(name),
		Channel:    channel,
		Message:    message,
		Status:     CampaignStatusDraft,
	}, nil
}

// AddResults accumulates delivery counts reported by an execution.
func (c *MarketingCampaign) AddResults(sent, failed int) {
	c.TotalSent += sent
	c.TotalFailed += failed
	c.UpdatedAt = time.Now()
}

// Settle derives the campaign status from its executions. It is a no-op
// while any execution is still open.
func (c *MarketingCampaign) Settle(executions []CampaignExecution) {
	if len(executions) == 0 {
		return
	}
	failed := 0
	for i := range executions {
		if !executions[i].Status.IsTerminal() {
			if executions[i].Status == ExecutionStatusRunning {
				c.Status = CampaignStatusRunning
			}
			return
		}
		if executions[i].Status == ExecutionStatusFailed {
			failed++
		}
	}
	if failed == len(executions) {
		c.Status = CampaignStatusFailed
	} else {
		c.Status = CampaignStatusCompleted
	}
	c.UpdatedAt = time.Now()
}

// CampaignGroup is a WhatsApp or Facebook group a campaign targets.
type CampaignGroup struct {
	shared.BaseEntity
	CampaignID      uuid.UUID
	Name            string
	PlatformGroupID string
	MemberCount     int
}
