package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/application/messaging"
	"github.com/a2zsellr/backend/internal/infrastructure/logger"
)

// EmailUseCase is what the email endpoints need from the email service
type EmailUseCase interface {
	ProcessQueue(ctx context.Context, limit int) (*messaging.ProcessResult, error)
	SendWelcome(ctx context.Context, req messaging.WelcomeEmailRequest) (*messaging.SendResult, error)
	SendListingActivated(ctx context.Context, req messaging.ListingActivatedEmailRequest) (*messaging.SendResult, error)
	Stats(ctx context.Context) (*messaging.QueueStats, error)
}

// EmailPassRecorder counts the results of queue passes
type EmailPassRecorder interface {
	RecordEmailPass(ctx context.Context, sent, failed int)
}

// EmailHandler serves the cron queue trigger and the transactional email
// endpoints
type EmailHandler struct {
	BaseHandler
	emails   EmailUseCase
	recorder EmailPassRecorder
}

// NewEmailHandler creates an EmailHandler. recorder may be nil.
func NewEmailHandler(emails EmailUseCase, recorder EmailPassRecorder) *EmailHandler {
	return &EmailHandler{emails: emails, recorder: recorder}
}

// ProcessQueue godoc
// @ID           processEmailQueue
// @Summary      Send a batch of queued emails
// @Description  limit defaults to 50 and is capped at 200.
// @Tags         email
// @Produce      json
// @Param        limit  query  int  false  "Batch size"
// @Success      200  {object}  dto.Response{data=messaging.ProcessResult}
// @Failure      400  {object}  dto.Response
// @Failure      401  {object}  dto.Response
// @Security     CronAuth
// @Router       /cron/process-email-queue [post]
func (h *EmailHandler) ProcessQueue(c *gin.Context) {
	limit, ok := h.intQuery(c, "limit", messaging.DefaultBatchSize)
	if !ok {
		return
	}
	if limit <= 0 {
		h.BadRequest(c, "limit must be positive")
		return
	}
	limit = min(limit, messaging.MaxBatchSize)

	ctx := c.Request.Context()
	result, err := h.emails.ProcessQueue(ctx, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if h.recorder != nil {
		h.recorder.RecordEmailPass(ctx, result.Sent, result.Failed)
	}
	logger.L(ctx).Info("Email queue processed",
		zap.Int("processed", result.Processed),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed))
	h.Success(c, result)
}

// QueueStats godoc
// @ID           getEmailQueueStats
// @Summary      Count queued emails by status
// @Tags         email
// @Produce      json
// @Success      200  {object}  dto.Response{data=messaging.QueueStats}
// @Failure      401  {object}  dto.Response
// @Security     CronAuth
// @Router       /cron/email-queue-stats [get]
func (h *EmailHandler) QueueStats(c *gin.Context) {
	stats, err := h.emails.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// SendWelcome godoc
// @ID           sendWelcomeEmail
// @Summary      Send the welcome email
// @Description  A failed send is queued for retry and still answered with 200 and queued=true.
// @Tags         email
// @Accept       json
// @Produce      json
// @Param        request  body  messaging.WelcomeEmailRequest  true  "Recipient"
// @Success      200  {object}  dto.Response{data=messaging.SendResult}
// @Failure      400  {object}  dto.Response
// @Failure      429  {object}  dto.Response
// @Router       /send-welcome-email [post]
func (h *EmailHandler) SendWelcome(c *gin.Context) {
	var req messaging.WelcomeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.emails.SendWelcome(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SendListingActivated godoc
// @ID           sendListingActivatedEmail
// @Summary      Send the listing activated email
// @Tags         email
// @Accept       json
// @Produce      json
// @Param        request  body  messaging.ListingActivatedEmailRequest  true  "Recipient and listing"
// @Success      200  {object}  dto.Response{data=messaging.SendResult}
// @Failure      400  {object}  dto.Response
// @Failure      429  {object}  dto.Response
// @Router       /send-listing-activated-email [post]
func (h *EmailHandler) SendListingActivated(c *gin.Context) {
	var req messaging.ListingActivatedEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.emails.SendListingActivated(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
