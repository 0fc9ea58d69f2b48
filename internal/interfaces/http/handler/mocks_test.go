package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	billingapp "github.com/a2zsellr/backend/internal/application/billing"
	"github.com/a2zsellr/backend/internal/application/campaign"
	"github.com/a2zsellr/backend/internal/application/messaging"
	resetapp "github.com/a2zsellr/backend/internal/application/reset"
	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/auth"
	"github.com/a2zsellr/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockResetUseCase struct {
	mock.Mock
}

func (m *MockResetUseCase) CalculateResetInfo(ctx context.Context, id uuid.UUID) (*profile.Profile, reset.ResetInfo, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*profile.Profile)
	return p, args.Get(1).(reset.ResetInfo), args.Error(2)
}

func (m *MockResetUseCase) ResetSingleUser(ctx context.Context, id uuid.UUID) *resetapp.ResetResult {
	return m.Called(ctx, id).Get(0).(*resetapp.ResetResult)
}

func (m *MockResetUseCase) ResetAllFreeUsers(ctx context.Context) (*resetapp.BulkResetResult, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*resetapp.BulkResetResult)
	return r, args.Error(1)
}

func (m *MockResetUseCase) ResetEligibleUsers(ctx context.Context, days int) (*resetapp.BulkResetResult, error) {
	args := m.Called(ctx, days)
	r, _ := args.Get(0).(*resetapp.BulkResetResult)
	return r, args.Error(1)
}

func (m *MockResetUseCase) History(ctx context.Context, id uuid.UUID, f resetapp.HistoryFilter) (*shared.Paginated[resetapp.HistoryResponse], error) {
	args := m.Called(ctx, id, f)
	p, _ := args.Get(0).(*shared.Paginated[resetapp.HistoryResponse])
	return p, args.Error(1)
}

func (m *MockResetUseCase) ResetInfo(ctx context.Context, id uuid.UUID, sessionID string) (*resetapp.ResetInfoResponse, error) {
	args := m.Called(ctx, id, sessionID)
	r, _ := args.Get(0).(*resetapp.ResetInfoResponse)
	return r, args.Error(1)
}

func (m *MockResetUseCase) Policy() reset.Policy {
	return m.Called().Get(0).(reset.Policy)
}

type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) HandleNotification(ctx context.Context, body []byte) (*billingapp.NotificationResult, error) {
	args := m.Called(ctx, body)
	r, _ := args.Get(0).(*billingapp.NotificationResult)
	return r, args.Error(1)
}

func (m *MockPaymentUseCase) CreateCheckout(ctx context.Context, id uuid.UUID, req billingapp.CheckoutRequest) (*billingapp.CheckoutResponse, error) {
	args := m.Called(ctx, id, req)
	r, _ := args.Get(0).(*billingapp.CheckoutResponse)
	return r, args.Error(1)
}

func (m *MockPaymentUseCase) ListTransactions(ctx context.Context, id uuid.UUID, f billingapp.TransactionFilter) (*shared.Paginated[billingapp.TransactionResponse], error) {
	args := m.Called(ctx, id, f)
	p, _ := args.Get(0).(*shared.Paginated[billingapp.TransactionResponse])
	return p, args.Error(1)
}

type MockEmailUseCase struct {
	mock.Mock
}

func (m *MockEmailUseCase) ProcessQueue(ctx context.Context, limit int) (*messaging.ProcessResult, error) {
	args := m.Called(ctx, limit)
	r, _ := args.Get(0).(*messaging.ProcessResult)
	return r, args.Error(1)
}

func (m *MockEmailUseCase) SendWelcome(ctx context.Context, req messaging.WelcomeEmailRequest) (*messaging.SendResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*messaging.SendResult)
	return r, args.Error(1)
}

func (m *MockEmailUseCase) SendListingActivated(ctx context.Context, req messaging.ListingActivatedEmailRequest) (*messaging.SendResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*messaging.SendResult)
	return r, args.Error(1)
}

func (m *MockEmailUseCase) Stats(ctx context.Context) (*messaging.QueueStats, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*messaging.QueueStats)
	return r, args.Error(1)
}

type MockCampaignUseCase struct {
	mock.Mock
}

func (m *MockCampaignUseCase) ReportResult(ctx context.Context, req campaign.ExecutionResultRequest) (*campaign.ExecutionResultResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*campaign.ExecutionResultResponse)
	return r, args.Error(1)
}

func (m *MockCampaignUseCase) UpdateStatus(ctx context.Context, req campaign.UpdateExecutionRequest) (*campaign.ExecutionResultResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*campaign.ExecutionResultResponse)
	return r, args.Error(1)
}

func (m *MockCampaignUseCase) DueExecutions(ctx context.Context, limit int) ([]campaign.DispatchResponse, error) {
	args := m.Called(ctx, limit)
	r, _ := args.Get(0).([]campaign.DispatchResponse)
	return r, args.Error(1)
}

func (m *MockCampaignUseCase) GetExecution(ctx context.Context, id string) (*campaign.ExecutionResponse, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*campaign.ExecutionResponse)
	return r, args.Error(1)
}

// webhookCalls records RecordWebhook and RecordEmailPass calls
type webhookCalls struct {
	mu       sync.Mutex
	sources  []string
	failures int
	sent     int
	failed   int
}

func (w *webhookCalls) RecordWebhook(_ context.Context, source string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sources = append(w.sources, source)
	if err != nil {
		w.failures++
	}
}

func (w *webhookCalls) RecordEmailPass(_ context.Context, sent, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent += sent
	w.failed += failed
}

// tokenVerifier maps fixed tokens to claims
type tokenVerifier map[string]*auth.Claims

func (v tokenVerifier) Verify(token string) (*auth.Claims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, auth.ErrInvalidToken
}

var (
	ownerID  = uuid.MustParse("7b0c1f8e-2f4e-4c61-9a55-0c2d7f1e9a01")
	otherID  = uuid.MustParse("4f5d8a27-51a3-4bd8-8c0f-5f0f1d3e6b02")
	verifier = tokenVerifier{
		"owner": {Role: auth.RoleAuthenticated, RegisteredClaims: registered(ownerID)},
		"admin": {Role: auth.RoleServiceRole},
	}
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	return r
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registered(id uuid.UUID) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: id.String()}
}

var errDatabaseDown = errors.New("database is down")
