// Package campaign coordinates marketing campaign executions with the n8n
// workflow that dispatches them.
package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/domain/campaign"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

const (
	// DefaultDueLimit is how many due executions GET returns by default
	DefaultDueLimit = 20
	// MaxDueLimit caps a single due listing
	MaxDueLimit = 100
)

// CampaignService applies n8n callbacks to executions and campaigns
type CampaignService struct {
	campaigns  campaign.CampaignRepository
	executions campaign.ExecutionRepository
	dueLimit   int
	logger     *zap.Logger
	now        func() time.Time
}

// CampaignServiceConfig contains the collaborators of CampaignService
type CampaignServiceConfig struct {
	Campaigns  campaign.CampaignRepository
	Executions campaign.ExecutionRepository
	DueLimit   int
	Logger     *zap.Logger
}

// NewCampaignService creates a new CampaignService
func NewCampaignService(cfg CampaignServiceConfig) *CampaignService {
	s := &CampaignService{
		campaigns:  cfg.Campaigns,
		executions: cfg.Executions,
		dueLimit:   cfg.DueLimit,
		logger:     cfg.Logger,
		now:        time.Now,
	}
	if s.dueLimit <= 0 {
		s.dueLimit = DefaultDueLimit
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ReportResult records a finished execution and rolls its counts into
// the campaign. Repeating a result that was already recorded changes
// nothing.
func (s *CampaignService) ReportResult(ctx context.Context, req ExecutionResultRequest) (*ExecutionResultResponse, error) {
	executionID, err := parseID(req.ExecutionID, "executionId")
	if err != nil {
		return nil, err
	}
	var campaignID uuid.UUID
	if req.CampaignID != "" {
		if campaignID, err = parseID(req.CampaignID, "campaignId"); err != nil {
			return nil, err
		}
	}

	status := campaign.ExecutionStatus(req.Status)
	var resp *ExecutionResultResponse
	err = s.executions.Change(ctx, executionID, func(exec *campaign.CampaignExecution, c *campaign.MarketingCampaign, all []campaign.CampaignExecution) error {
		if campaignID != uuid.Nil && exec.CampaignID != campaignID {
			return shared.NewDomainError("INVALID_INPUT", "execution does not belong to campaign "+campaignID.String())
		}
		// same terminal status again: answer with what is stored
		if exec.Status == status && exec.Status.IsTerminal() {
			resp = resultResponse(exec, c)
			resp.Duplicate = true
			return campaign.ErrNoChange
		}

		if req.N8NExecutionID != "" {
			exec.N8NExecutionID = req.N8NExecutionID
		}
		if err := exec.RecordResult(status, req.MessagesSent, req.MessagesFailed, req.Error, s.now()); err != nil {
			return err
		}
		c.AddResults(req.MessagesSent, req.MessagesFailed)
		settle(c, exec, all)
		resp = resultResponse(exec, c)
		return nil
	})
	if err != nil {
		if shared.CodeOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save execution result: %w", err)
	}

	if !resp.Duplicate {
		s.logger.Info("Campaign execution finished",
			zap.String("execution_id", resp.ExecutionID.String()),
			zap.String("campaign_id", resp.CampaignID.String()),
			zap.String("status", resp.ExecutionStatus),
			zap.Int("messages_sent", req.MessagesSent),
			zap.Int("messages_failed", req.MessagesFailed),
			zap.String("campaign_status", resp.CampaignStatus))
	}
	return resp, nil
}

// UpdateStatus moves an execution to status. Terminal statuses are
// recorded like a result; anything the state machine forbids is a
// conflict.
func (s *CampaignService) UpdateStatus(ctx context.Context, req UpdateExecutionRequest) (*ExecutionResultResponse, error) {
	status := campaign.ExecutionStatus(req.Status)
	if status.IsTerminal() {
		return s.ReportResult(ctx, ExecutionResultRequest{
			ExecutionID:    req.ExecutionID,
			Status:         req.Status,
			MessagesSent:   req.MessagesSent,
			MessagesFailed: req.MessagesFailed,
			Error:          req.Error,
			N8NExecutionID: req.N8NExecutionID,
		})
	}

	executionID, err := parseID(req.ExecutionID, "executionId")
	if err != nil {
		return nil, err
	}

	var resp *ExecutionResultResponse
	var n8nID string
	err = s.executions.Change(ctx, executionID, func(exec *campaign.CampaignExecution, c *campaign.MarketingCampaign, all []campaign.CampaignExecution) error {
		if status != campaign.ExecutionStatusRunning {
			if exec.Status == status {
				return shared.NewDomainError("INVALID_TRANSITION", "execution is already "+string(status))
			}
			return shared.ErrInvalidTransition
		}
		if err := exec.Start(req.N8NExecutionID, s.now()); err != nil {
			return err
		}
		settle(c, exec, all)
		resp = resultResponse(exec, c)
		n8nID = exec.N8NExecutionID
		return nil
	})
	if err != nil {
		if shared.CodeOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	s.logger.Info("Campaign execution started",
		zap.String("execution_id", resp.ExecutionID.String()),
		zap.String("n8n_execution_id", n8nID))
	return resp, nil
}

// settle derives the campaign status from all its executions, with the
// stored copy of changed replaced by the edited one
func settle(c *campaign.MarketingCampaign, changed *campaign.CampaignExecution, all []campaign.CampaignExecution) {
	found := false
	for i := range all {
		if all[i].ID == changed.ID {
			all[i] = *changed
			found = true
		}
	}
	if !found {
		all = append(all, *changed)
	}
	c.Settle(all)
}

// DueExecutions lists scheduled executions whose time has come, for n8n
// to dispatch
func (s *CampaignService) DueExecutions(ctx context.Context, limit int) ([]DispatchResponse, error) {
	if limit <= 0 {
		limit = s.dueLimit
	}
	if limit > MaxDueLimit {
		limit = MaxDueLimit
	}
	due, err := s.executions.FindDue(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due executions: %w", err)
	}
	out := make([]DispatchResponse, len(due))
	for i := range due {
		out[i] = ToDispatchResponse(&due[i])
	}
	return out, nil
}

// GetExecution returns one execution
func (s *CampaignService) GetExecution(ctx context.Context, id string) (*ExecutionResponse, error) {
	executionID, err := parseID(id, "executionId")
	if err != nil {
		return nil, err
	}
	exec, err := s.executions.FindByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	resp := ToExecutionResponse(exec)
	return &resp, nil
}

func resultResponse(e *campaign.CampaignExecution, c *campaign.MarketingCampaign) *ExecutionResultResponse {
	return &ExecutionResultResponse{
		ExecutionID:     e.ID,
		ExecutionStatus: string(e.Status),
		CampaignID:      c.ID,
		CampaignStatus:  string(c.Status),
		TotalSent:       c.TotalSent,
		TotalFailed:     c.TotalFailed,
	}
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewDomainError("INVALID_INPUT", field+" must be a valid UUID")
	}
	return id, nil
}
