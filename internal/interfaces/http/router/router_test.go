package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a2zsellr/backend/internal/infrastructure/auth"
	"github.com/a2zsellr/backend/internal/infrastructure/config"
	"github.com/a2zsellr/backend/internal/interfaces/http/handler"
	"github.com/a2zsellr/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	cronSecret = "cron-secret"
	n8nSecret  = "n8n-secret"
	serviceKey = "srk"
)

func testConfig() Config {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = []string{"https://a2zsellr.life"}
	return Config{
		ServiceName:    "a2zsellr-test",
		CORS:           cors,
		Security:       middleware.DefaultSecurityConfig(),
		MaxBodySize:    1 << 20,
		CronSecret:     cronSecret,
		N8NSecret:      n8nSecret,
		EmailRateLimit: 2,
	}
}

// testHandlers have no use cases behind them, so only requests stopped by
// middleware or validation may reach them
func testHandlers() Handlers {
	return Handlers{
		Verifier: auth.NewVerifier(config.SupabaseConfig{ServiceRoleKey: serviceKey}),
		Health:   handler.NewHealthHandler("test", nil),
		Reset:    handler.NewResetHandler(nil, nil),
		Payment:  handler.NewPaymentHandler(nil, nil),
		Email:    handler.NewEmailHandler(nil, nil),
		Campaign: handler.NewCampaignHandler(nil, nil),
	}
}

func newTestEngine(t *testing.T, cfg Config) *gin.Engine {
	t.Helper()
	engine, err := New(cfg, zaptest.NewLogger(t), testHandlers())
	require.NoError(t, err)
	return engine
}

func serve(engine http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNew_RegistersRoutes(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	got := make(map[string]bool)
	for _, r := range engine.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"POST /api/n8n/webhook",
		"GET /api/n8n/webhook",
		"PUT /api/n8n/webhook",
		"POST /api/payfast/webhook",
		"GET /api/payfast/webhook",
		"POST /api/cron/process-email-queue",
		"GET /api/cron/email-queue-stats",
		"POST /api/send-welcome-email",
		"POST /api/send-listing-activated-email",
		"GET /api/v1/profiles/:id/reset-info",
		"GET /api/v1/profiles/:id/reset-info/stream",
		"GET /api/v1/profiles/:id/reset-history",
		"POST /api/v1/payments/checkout",
		"GET /api/v1/payments/transactions",
		"POST /api/v1/admin/reset/user/:id",
		"POST /api/v1/admin/reset/all",
		"POST /api/v1/admin/reset/eligible",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}

func TestNew_GlobalMiddleware(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	w := serve(engine, http.MethodGet, "/health", map[string]string{"Origin": "https://a2zsellr.life"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(middleware.RequestIDHeader), 32)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "https://a2zsellr.life", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(engine, http.MethodGet, "/health", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(engine, http.MethodOptions, "/api/send-welcome-email", map[string]string{
		"Origin":                        "https://a2zsellr.life",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNew_Guards(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    int
	}{
		{"cron without token", http.MethodPost, "/api/cron/process-email-queue", nil, http.StatusUnauthorized},
		{"cron with wrong token", http.MethodGet, "/api/cron/email-queue-stats", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"n8n without secret", http.MethodGet, "/api/n8n/webhook", nil, http.StatusUnauthorized},
		{"n8n with secret reaches validation", http.MethodPost, "/api/n8n/webhook", map[string]string{middleware.WebhookSecretHeader: n8nSecret}, http.StatusBadRequest},
		{"payfast ping is public", http.MethodGet, "/api/payfast/webhook", nil, http.StatusOK},
		{"api without token", http.MethodGet, "/api/v1/payments/transactions", nil, http.StatusUnauthorized},
		{"api with bad token", http.MethodGet, "/api/v1/payments/transactions", map[string]string{"Authorization": "Bearer garbage"}, http.StatusUnauthorized},
		{"admin with service key reaches handler", http.MethodPost, "/api/v1/admin/reset/user/not-a-uuid", map[string]string{"Authorization": "Bearer " + serviceKey}, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nothing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path, tt.headers)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestNew_EmailRateLimit(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/send-welcome-email", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusBadRequest, post())
	assert.Equal(t, http.StatusBadRequest, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
}

func TestNew_InvalidTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.TrustedProxies = []string{"not-an-address"}
	_, err := New(cfg, zaptest.NewLogger(t), testHandlers())
	assert.Error(t, err)
}

func TestDomainGroup(t *testing.T) {
	g := NewDomainGroup("catalog", "/catalog")
	assert.Equal(t, "catalog", g.Name())
	assert.Equal(t, "/catalog", g.Prefix())

	var order []string
	g.Use(func(c *gin.Context) { order = append(order, "group"); c.Next() }).
		GET("/items", func(c *gin.Context) { order = append(order, "handler"); c.String(http.StatusOK, "items") })
	g.Group("admin", "/admin").PUT("/items", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	engine := gin.New()
	NewRouter(engine, WithPrefix("/api/v2")).Register(g).Setup()

	w := serve(engine, http.MethodGet, "/api/v2/catalog/items", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"group", "handler"}, order)

	w = serve(engine, http.MethodPut, "/api/v2/catalog/admin/items", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"group", "handler", "group"}, order)
}
