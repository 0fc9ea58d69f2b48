package campaign

import (
	"time"

	"github.com/google/uuid"

	"github.com/a2zsellr/backend/internal/domain/campaign"
)

// ExecutionResultRequest is what n8n POSTs when a dispatch finishes
type ExecutionResultRequest struct {
	ExecutionID    string `json:"executionId" binding:"required,uuid"`
	CampaignID     string `json:"campaignId" binding:"omitempty,uuid"`
	Status         string `json:"status" binding:"required,oneof=completed failed"`
	MessagesSent   int    `json:"messagesSent" binding:"min=0"`
	MessagesFailed int    `json:"messagesFailed" binding:"min=0"`
	Error          string `json:"error" binding:"max=2000"`
	N8NExecutionID string `json:"n8nExecutionId" binding:"max=200"`
}

// UpdateExecutionRequest is what n8n PUTs to move an execution along
type UpdateExecutionRequest struct {
	ExecutionID    string `json:"executionId" binding:"required,uuid"`
	Status         string `json:"status" binding:"required,oneof=scheduled running completed failed"`
	N8NExecutionID string `json:"n8nExecutionId" binding:"max=200"`
	MessagesSent   int    `json:"messagesSent" binding:"min=0"`
	MessagesFailed int    `json:"messagesFailed" binding:"min=0"`
	Error          string `json:"error" binding:"max=2000"`
}

// ExecutionResultResponse reports the execution and campaign after an
// update
type ExecutionResultResponse struct {
	ExecutionID     uuid.UUID `json:"executionId"`
	ExecutionStatus string    `json:"executionStatus"`
	CampaignID      uuid.UUID `json:"campaignId"`
	CampaignStatus  string    `json:"campaignStatus"`
	TotalSent       int       `json:"totalSent"`
	TotalFailed     int       `json:"totalFailed"`
	Duplicate       bool      `json:"duplicate,omitempty"`
}

// ExecutionResponse is one campaign_executions row
type ExecutionResponse struct {
	ID             uuid.UUID  `json:"id"`
	CampaignID     uuid.UUID  `json:"campaignId"`
	GroupID        *uuid.UUID `json:"groupId,omitempty"`
	Status         string     `json:"status"`
	ScheduledAt    time.Time  `json:"scheduledAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	MessagesSent   int        `json:"messagesSent"`
	MessagesFailed int        `json:"messagesFailed"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	N8NExecutionID string     `json:"n8nExecutionId,omitempty"`
}

// ToExecutionResponse converts a domain execution
func ToExecutionResponse(e *campaign.CampaignExecution) ExecutionResponse {
	return ExecutionResponse{
		ID:             e.ID,
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
}

// DispatchResponse is a due execution with everything n8n needs to send
type DispatchResponse struct {
	ExecutionID     uuid.UUID  `json:"executionId"`
	CampaignID      uuid.UUID  `json:"campaignId"`
	ProfileID       uuid.UUID  `json:"profileId"`
	CampaignName    string     `json:"campaignName"`
	Channel         string     `json:"channel"`
	Message         string     `json:"message"`
	GroupID         *uuid.UUID `json:"groupId,omitempty"`
	GroupName       string     `json:"groupName,omitempty"`
	PlatformGroupID string     `json:"platformGroupId,omitempty"`
	ScheduledAt     time.Time  `json:"scheduledAt"`
}

// ToDispatchResponse converts a domain dispatch
func ToDispatchResponse(d *campaign.Dispatch) DispatchResponse {
	return DispatchResponse{
		ExecutionID:     d.Execution.ID,
		CampaignID:      d.Execution.CampaignID,
		ProfileID:       d.ProfileID,
		CampaignName:    d.CampaignName,
		Channel:         string(d.Channel),
		Message:         d.Message,
		GroupID:         d.Execution.GroupID,
		GroupName:       d.GroupName,
		PlatformGroupID: d.PlatformGroupID,
		ScheduledAt:     d.Execution.ScheduledAt,
	}
}
