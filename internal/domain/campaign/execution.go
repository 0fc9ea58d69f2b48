package campaign

import (
	"time"

	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ExecutionStatus is the state of one dispatch of a campaign to a group.
type ExecutionStatus string

const (
	ExecutionStatusScheduled ExecutionStatus = "scheduled"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsValid reports whether the status is known.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case ExecutionStatusScheduled, ExecutionStatusRunning, ExecutionStatusCompleted, ExecutionStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the execution has finished.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

var allowedTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusScheduled: {ExecutionStatusRunning, ExecutionStatusCompleted, ExecutionStatusFailed},
	ExecutionStatusRunning:   {ExecutionStatusCompleted, ExecutionStatusFailed},
}

// CanTransitionTo reports whether s may move to next.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CampaignExecution is a scheduled dispatch that n8n carries out.
type CampaignExecution struct {
	shared.BaseEntity
	CampaignID     uuid.UUID
	GroupID        *uuid.UUID
	Status         ExecutionStatus
	ScheduledAt    time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	MessagesSent   int
	MessagesFailed int
	ErrorMessage   string
	N8NExecutionID string
}

// NewCampaignExecution schedules a dispatch of campaignID at scheduledAt.
func NewCampaignExecution(campaignID uuid.UUID, groupID *uuid.UUID, scheduledAt time.Time) *CampaignExecution {
	return &CampaignExecution{
		BaseEntity:  shared.NewBaseEntity(),
		CampaignID:  campaignID,
		GroupID:     groupID,
		Status:      ExecutionStatusScheduled,
		ScheduledAt: scheduledAt,
	}
}

// Start marks the execution as picked up by n8n.
func (e *CampaignExecution) Start(n8nExecutionID string, at time.Time) error {
	if e.Status == ExecutionStatusRunning {
		if n8nExecutionID != "" {
			e.N8NExecutionID = n8nExecutionID
		}
		return nil
	}
	if !e.Status.CanTransitionTo(ExecutionStatusRunning) {
		return shared.ErrInvalidTransition
	}
	e.Status = ExecutionStatusRunning
	e.StartedAt = &at
	if n8nExecutionID != "" {
		e.N8NExecutionID = n8nExecutionID
	}
	e.UpdatedAt = at
	return nil
}

// RecordResult finishes the execution with the counts n8n reported.
func (e *CampaignExecution) RecordResult(status ExecutionStatus, sent, failed int, errMsg string, at time.Time) error {
	if !status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATUS", "Result status must be completed or failed")
	}
	if sent < 0 || failed < 0 {
		return shared.NewDomainError("INVALID_COUNTS", "Message counts cannot be negative")
	}
	if !e.Status.CanTransitionTo(status) {
		return shared.ErrInvalidTransition
	}
	e.Status = status
	e.MessagesSent = sent
	e.MessagesFailed = failed
	e.ErrorMessage = errMsg
	e.CompletedAt = &at
	if e.StartedAt == nil {
		e.StartedAt = &at
	}
	e.UpdatedAt = at
	return nil
}

// Dispatch is a due execution enriched with what n8n needs to send it.
type Dispatch struct {
	Execution       CampaignExecution
	CampaignName    string
	Channel         Channel
	Message         string
	ProfileID       uuid.UUID
	GroupName       string
	PlatformGroupID string
}
