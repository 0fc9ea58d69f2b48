package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/a2zsellr/backend/internal/application/campaign"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

func campaignRouter(campaigns CampaignUseCase, rec WebhookRecorder) *gin.Engine {
	r := newEngine()
	h := NewCampaignHandler(campaigns, rec)
	r.POST("/api/n8n/webhook", h.ReportResult)
	r.GET("/api/n8n/webhook", h.Due)
	r.PUT("/api/n8n/webhook", h.UpdateStatus)
	return r
}

func TestN8NReportResult(t *testing.T) {
	m := new(MockCampaignUseCase)
	rec := &webhookCalls{}
	r := campaignRouter(m, rec)

	execID, campaignID := uuid.New(), uuid.New()
	req := campaign.ExecutionResultRequest{
		ExecutionID:    execID.String(),
		CampaignID:     campaignID.String(),
		Status:         "completed",
		MessagesSent:   12,
		MessagesFailed: 1,
	}
	m.On("ReportResult", mock.Anything, req).Return(&campaign.ExecutionResultResponse{
		ExecutionID:     execID,
		ExecutionStatus: "completed",
		CampaignID:      campaignID,
		CampaignStatus:  "completed",
		TotalSent:       12,
		TotalFailed:     1,
	}, nil).Once()

	body := `{"executionId":"` + execID.String() + `","campaignId":"` + campaignID.String() + `","status":"completed","messagesSent":12,"messagesFailed":1}`
	w := do(r, http.MethodPost, "/api/n8n/webhook", "", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalSent":12`)
	assert.Equal(t, []string{"n8n"}, rec.sources)

	w = do(r, http.MethodPost, "/api/n8n/webhook", "", `{"executionId":"not-a-uuid","status":"completed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.AssertExpectations(t)
}

func TestN8NUpdateStatus_InvalidTransition(t *testing.T) {
	m := new(MockCampaignUseCase)
	r := campaignRouter(m, nil)

	execID := uuid.New()
	m.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil, shared.ErrInvalidTransition).Once()

	w := do(r, http.MethodPut, "/api/n8n/webhook", "", `{"executionId":"`+execID.String()+`","status":"scheduled"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode(t, w).Error.Code)
}

func TestN8NDue(t *testing.T) {
	m := new(MockCampaignUseCase)
	r := campaignRouter(m, nil)

	m.On("DueExecutions", mock.Anything, 0).Return([]campaign.DispatchResponse{{
		ExecutionID:     uuid.New(),
		Channel:         "whatsapp",
		Message:         "Weekend special",
		PlatformGroupID: "1203630@g.us",
	}}, nil).Once()
	w := do(r, http.MethodGet, "/api/n8n/webhook", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"platformGroupId":"1203630@g.us"`)

	m.On("DueExecutions", mock.Anything, 5).Return([]campaign.DispatchResponse{}, nil).Once()
	w = do(r, http.MethodGet, "/api/n8n/webhook?limit=5", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	m.AssertExpectations(t)
}

func TestN8NGetExecution(t *testing.T) {
	m := new(MockCampaignUseCase)
	r := campaignRouter(m, nil)

	id := uuid.New()
	m.On("GetExecution", mock.Anything, id.String()).Return(&campaign.ExecutionResponse{ID: id, Status: "running"}, nil).Once()
	m.On("GetExecution", mock.Anything, "missing").Return(nil, shared.NewDomainError("INVALID_INPUT", "executionId must be a UUID")).Once()

	w := do(r, http.MethodGet, "/api/n8n/webhook?executionId="+id.String(), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"running"`)

	w = do(r, http.MethodGet, "/api/n8n/webhook?executionId=missing", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.AssertNotCalled(t, "DueExecutions", mock.Anything, mock.Anything)
}
