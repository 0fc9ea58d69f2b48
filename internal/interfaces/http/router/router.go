// Package router assembles the gin engine: the global middleware chain and
// every route of the API.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/infrastructure/logger"
	"github.com/a2zsellr/backend/internal/interfaces/http/handler"
	"github.com/a2zsellr/backend/internal/interfaces/http/middleware"
)

// DefaultEmailRateLimit is the per-IP limit of the public email endpoints,
// per minute
const DefaultEmailRateLimit = 10

// RouteRegistrar registers routes under a parent group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them under a common prefix
type Router struct {
	engine     *gin.Engine
	prefix     string
	registrars []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithPrefix sets the path every registrar is mounted under
func WithPrefix(prefix string) RouterOption {
	return func(r *Router) {
		r.prefix = prefix
	}
}

// NewRouter creates a Router mounting under /api
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, prefix: "/api"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a registrar
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registrar
func (r *Router) Setup() {
	api := r.engine.Group(r.prefix)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup is a prefix with its own middleware, routes and subgroups
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []routeDefinition
	subgroups  []*DomainGroup
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a DomainGroup
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to the group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPut, path, handlers)
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// Group creates a subgroup
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	sub := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, sub)
	return sub
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, sub := range dg.subgroups {
		sub.RegisterRoutes(group)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Config holds the settings of the global middleware and of the route
// guards
type Config struct {
	ServiceName    string
	TracingEnabled bool
	CORS           middleware.CORSConfig
	Security       middleware.SecurityConfig
	MaxBodySize    int64
	TrustedProxies []string
	// CronSecret guards /api/cron. Empty rejects every cron call.
	CronSecret string
	// N8NSecret guards /api/n8n/webhook. Empty leaves it open.
	N8NSecret string
	// EmailRateLimit is per IP per minute; 0 uses DefaultEmailRateLimit
	EmailRateLimit int
}

// Handlers are the route targets
type Handlers struct {
	Verifier middleware.TokenVerifier
	Health   *handler.HealthHandler
	Reset    *handler.ResetHandler
	Payment  *handler.PaymentHandler
	Email    *handler.EmailHandler
	Campaign *handler.CampaignHandler
}

// New builds the engine with the global middleware and all routes
func New(cfg Config, log *zap.Logger, h Handlers) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID(), logger.GinMiddleware(log), logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	})...)
	engine.Use(middleware.SecureWithConfig(cfg.Security), middleware.CORSWithConfig(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	engine.GET("/health", h.Health.Health)

	r := NewRouter(engine)
	r.Register(webhookRoutes(cfg, h))
	r.Register(emailRoutes(cfg, h.Email))
	r.Register(apiRoutes(h))
	r.Setup()
	return engine, nil
}

// webhookRoutes are the endpoints called by PayFast and n8n
func webhookRoutes(cfg Config, h Handlers) *DomainGroup {
	g := NewDomainGroup("webhooks", "")

	g.Group("payfast", "/payfast").
		POST("/webhook", h.Payment.Notify).
		GET("/webhook", h.Payment.Ping)

	g.Group("n8n", "/n8n").
		Use(middleware.WebhookSecret(cfg.N8NSecret)).
		POST("/webhook", h.Campaign.ReportResult).
		GET("/webhook", h.Campaign.Due).
		PUT("/webhook", h.Campaign.UpdateStatus)
	return g
}

// emailRoutes are the cron queue trigger and the public transactional
// email endpoints
func emailRoutes(cfg Config, h *handler.EmailHandler) *DomainGroup {
	limit := cfg.EmailRateLimit
	if limit <= 0 {
		limit = DefaultEmailRateLimit
	}

	g := NewDomainGroup("email", "")
	g.Group("cron", "/cron").
		Use(middleware.CronAuth(cfg.CronSecret)).
		POST("/process-email-queue", h.ProcessQueue).
		GET("/email-queue-stats", h.QueueStats)

	g.Group("transactional", "").
		Use(middleware.RateLimit(middleware.NewRateLimiter(limit, time.Minute))).
		POST("/send-welcome-email", h.SendWelcome).
		POST("/send-listing-activated-email", h.SendListingActivated)
	return g
}

// apiRoutes are the authenticated /api/v1 endpoints
func apiRoutes(h Handlers) *DomainGroup {
	v1 := NewDomainGroup("v1", "/v1").Use(middleware.SupabaseAuth(h.Verifier))

	v1.Group("profiles", "/profiles/:id").
		GET("/reset-info", h.Reset.ResetInfo).
		GET("/reset-info/stream", h.Reset.StreamResetInfo).
		GET("/reset-history", h.Reset.ResetHistory)

	v1.Group("payments", "/payments").
		POST("/checkout", h.Payment.Checkout).
		GET("/transactions", h.Payment.Transactions)

	v1.Group("admin", "/admin/reset").
		Use(middleware.RequireAdmin()).
		POST("/user/:id", h.Reset.ResetUser).
		POST("/all", h.Reset.ResetAll).
		POST("/eligible", h.Reset.ResetEligible).
		POST("/scheduled", h.Reset.RunScheduled)
	return v1
}
