package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	billingapp "github.com/a2zsellr/backend/internal/application/billing"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/logger"
	"github.com/a2zsellr/backend/internal/interfaces/http/dto"
	"github.com/a2zsellr/backend/internal/interfaces/http/middleware"
)

// WebhookRecorder counts inbound webhook callbacks
type WebhookRecorder interface {
	RecordWebhook(ctx context.Context, source string, err error)
}

// PaymentUseCase is what the payment endpoints need from the payment
// service
type PaymentUseCase interface {
	HandleNotification(ctx context.Context, body []byte) (*billingapp.NotificationResult, error)
	CreateCheckout(ctx context.Context, profileID uuid.UUID, req billingapp.CheckoutRequest) (*billingapp.CheckoutResponse, error)
	ListTransactions(ctx context.Context, profileID uuid.UUID, f billingapp.TransactionFilter) (*shared.Paginated[billingapp.TransactionResponse], error)
}

// PaymentHandler serves the PayFast ITN webhook and the checkout endpoints
type PaymentHandler struct {
	BaseHandler
	payments PaymentUseCase
	recorder WebhookRecorder
}

// NewPaymentHandler creates a PaymentHandler. recorder may be nil.
func NewPaymentHandler(payments PaymentUseCase, recorder WebhookRecorder) *PaymentHandler {
	return &PaymentHandler{payments: payments, recorder: recorder}
}

// Notify godoc
// @ID           payfastNotify
// @Summary      Receive a PayFast ITN
// @Description  The body is the form-encoded ITN. A bad signature is a 400 and leaves everything untouched. A replayed payment id is acknowledged without side effects.
// @Tags         payments
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Success      200  {object}  dto.Response{data=billingapp.NotificationResult}
// @Failure      400  {object}  dto.Response
// @Failure      413  {object}  dto.Response
// @Router       /payfast/webhook [post]
func (h *PaymentHandler) Notify(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.CodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "Failed to read request body")
		return
	}

	result, err := h.payments.HandleNotification(ctx, body)
	if h.recorder != nil {
		h.recorder.RecordWebhook(ctx, "payfast", err)
	}
	if err != nil {
		if errors.Is(err, shared.ErrInvalidSignature) {
			logger.L(ctx).Warn("PayFast notification rejected",
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err))
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Ping godoc
// @ID           payfastPing
// @Summary      Check the PayFast webhook is reachable
// @Tags         payments
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /payfast/webhook [get]
func (h *PaymentHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Checkout godoc
// @ID           createCheckout
// @Summary      Start a PayFast checkout
// @Description  Creates a pending transaction for the caller's own profile and returns the signed PayFast form.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request  body  billingapp.CheckoutRequest  true  "Checkout request"
// @Success      201  {object}  dto.Response{data=billingapp.CheckoutResponse}
// @Failure      400  {object}  dto.Response
// @Failure      401  {object}  dto.Response
// @Failure      403  {object}  dto.Response
// @Security     BearerAuth
// @Router       /v1/payments/checkout [post]
func (h *PaymentHandler) Checkout(c *gin.Context) {
	profileID, ok := h.callerProfile(c)
	if !ok {
		return
	}
	var req billingapp.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.payments.CreateCheckout(c.Request.Context(), profileID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Transactions godoc
// @ID           listTransactions
// @Summary      List the caller's payment transactions
// @Tags         payments
// @Produce      json
// @Param        page       query  int     false  "Page number"
// @Param        page_size  query  int     false  "Page size, at most 100"
// @Param        order_dir  query  string  false  "asc or desc"
// @Success      200  {object}  dto.Response{data=[]billingapp.TransactionResponse}
// @Failure      400  {object}  dto.Response
// @Failure      401  {object}  dto.Response
// @Security     BearerAuth
// @Router       /v1/payments/transactions [get]
func (h *PaymentHandler) Transactions(c *gin.Context) {
	profileID, ok := h.callerProfile(c)
	if !ok {
		return
	}
	var filter billingapp.TransactionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.payments.ListTransactions(c.Request.Context(), profileID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPageResponse(page))
}

func (h *PaymentHandler) callerProfile(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.CodeUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	id, err := claims.UserID()
	if err != nil {
		h.Forbidden(c, "Token is not bound to a profile")
		return uuid.Nil, false
	}
	return id, true
}
