package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/a2zsellr/backend/internal/application/campaign"
)

// CampaignUseCase is what the n8n webhook needs from the campaign service
type CampaignUseCase interface {
	ReportResult(ctx context.Context, req campaign.ExecutionResultRequest) (*campaign.ExecutionResultResponse, error)
	UpdateStatus(ctx context.Context, req campaign.UpdateExecutionRequest) (*campaign.ExecutionResultResponse, error)
	DueExecutions(ctx context.Context, limit int) ([]campaign.DispatchResponse, error)
	GetExecution(ctx context.Context, id string) (*campaign.ExecutionResponse, error)
}

// CampaignHandler serves /api/n8n/webhook
type CampaignHandler struct {
	BaseHandler
	campaigns CampaignUseCase
	recorder  WebhookRecorder
}

// NewCampaignHandler creates a CampaignHandler. recorder may be nil.
func NewCampaignHandler(campaigns CampaignUseCase, recorder WebhookRecorder) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, recorder: recorder}
}

// ReportResult godoc
// @ID           reportCampaignResult
// @Summary      Record the result of a campaign execution
// @Description  Adds the sent and failed counts to the campaign totals. A repeated callback for a finished execution is acknowledged with duplicate=true.
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        request  body  campaign.ExecutionResultRequest  true  "Execution result"
// @Success      200  {object}  dto.Response{data=campaign.ExecutionResultResponse}
// @Failure      400  {object}  dto.Response
// @Failure      401  {object}  dto.Response
// @Failure      404  {object}  dto.Response
// @Security     WebhookSecret
// @Router       /n8n/webhook [post]
func (h *CampaignHandler) ReportResult(c *gin.Context) {
	var req campaign.ExecutionResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.campaigns.ReportResult(c.Request.Context(), req)
	h.record(c, err)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateStatus godoc
// @ID           updateCampaignExecution
// @Summary      Move a campaign execution to a new status
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        request  body  campaign.UpdateExecutionRequest  true  "Status update"
// @Success      200  {object}  dto.Response{data=campaign.ExecutionResultResponse}
// @Failure      400  {object}  dto.Response
// @Failure      401  {object}  dto.Response
// @Failure      404  {object}  dto.Response
// @Security     WebhookSecret
// @Router       /n8n/webhook [put]
func (h *CampaignHandler) UpdateStatus(c *gin.Context) {
	var req campaign.UpdateExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.campaigns.UpdateStatus(c.Request.Context(), req)
	h.record(c, err)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Due godoc
// @ID           listDueCampaignExecutions
// @Summary      Get one execution or the executions that are due
// @Description  With executionId it returns that execution. Otherwise it returns the scheduled executions that are due, up to limit.
// @Tags         campaigns
// @Produce      json
// @Param        executionId  query  string  false  "Execution ID"  format(uuid)
// @Param        limit        query  int     false  "Maximum number of due executions"
// @Success      200  {object}  dto.Response{data=[]campaign.DispatchResponse}
// @Failure      400  {object}  dto.Response
// @Failure      401  {object}  dto.Response
// @Failure      404  {object}  dto.Response
// @Security     WebhookSecret
// @Router       /n8n/webhook [get]
func (h *CampaignHandler) Due(c *gin.Context) {
	if id := c.Query("executionId"); id != "" {
		exec, err := h.campaigns.GetExecution(c.Request.Context(), id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, exec)
		return
	}

	limit, ok := h.intQuery(c, "limit", 0)
	if !ok {
		return
	}
	due, err := h.campaigns.DueExecutions(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, due)
}

func (h *CampaignHandler) record(c *gin.Context, err error) {
	if h.recorder != nil {
		h.recorder.RecordWebhook(c.Request.Context(), "n8n", err)
	}
}
