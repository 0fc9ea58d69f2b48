// Command server runs the A2Z Sellr backend: the HTTP API, the webhook
// receivers and the in-process reset and email queue schedulers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	billingapp "github.com/a2zsellr/backend/internal/application/billing"
	campaignapp "github.com/a2zsellr/backend/internal/application/campaign"
	msgapp "github.com/a2zsellr/backend/internal/application/messaging"
	resetapp "github.com/a2zsellr/backend/internal/application/reset"
	"github.com/a2zsellr/backend/internal/domain/billing"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/infrastructure/auth"
	"github.com/a2zsellr/backend/internal/infrastructure/cache"
	"github.com/a2zsellr/backend/internal/infrastructure/config"
	"github.com/a2zsellr/backend/internal/infrastructure/email"
	"github.com/a2zsellr/backend/internal/infrastructure/event"
	"github.com/a2zsellr/backend/internal/infrastructure/logger"
	"github.com/a2zsellr/backend/internal/infrastructure/payment"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence"
	"github.com/a2zsellr/backend/internal/infrastructure/scheduler"
	"github.com/a2zsellr/backend/internal/infrastructure/storage"
	"github.com/a2zsellr/backend/internal/infrastructure/telemetry"
	"github.com/a2zsellr/backend/internal/interfaces/http/handler"
	"github.com/a2zsellr/backend/internal/interfaces/http/middleware"
	"github.com/a2zsellr/backend/internal/interfaces/http/router"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
	slowQuery       = 200 * time.Millisecond
)

//	@title			A2Z Sellr Backend API
//	@version		1.0
//	@description	Free-tier resets, PayFast billing, n8n campaign callbacks and transactional email.
//	@BasePath		/api

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Supabase access token. Format: "Bearer {token}"

//	@securityDefinitions.apikey	CronAuth
//	@in							header
//	@name						Authorization
//	@description				Cron secret. Format: "Bearer {secret}"

//	@securityDefinitions.apikey	WebhookSecret
//	@in							header
//	@name						X-Webhook-Secret

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Boot logger until telemetry is up, then rebuild it with the OTLP core
	logCfg := &logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			bootLog.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	log, err := logger.New(logCfg,
		logger.WithCore(tel.LogCore(logger.ParseLevel(cfg.Log.Level))),
		logger.WithFields(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env)))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting A2Z Sellr backend",
		zap.String("version", version),
		zap.String("port", cfg.App.Port))

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), slowQuery))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, tel.DBTracing(), log); err != nil {
		log.Warn("Database tracing disabled", zap.Error(err))
	}

	// Falls back to in-memory stores when Redis is not configured
	stores, err := cache.NewStores(ctx, cfg.Redis, cache.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	// Repositories
	profiles := persistence.NewGormProfileRepository(db.DB)
	transactions := persistence.NewGormPaymentTransactionRepository(db.DB)
	emailQueue := persistence.NewGormEmailQueueRepository(db.DB)

	gallery, err := galleryStorage(cfg, log)
	if err != nil {
		return err
	}

	bus := event.NewInMemoryEventBus(log, event.WithAsyncDispatch())

	// Email
	renderer, err := email.NewRenderer(cfg.App.PublicURL)
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}
	sender := email.NewSenderChain(log, email.ProviderConfig{
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		Timeout:     cfg.Email.Timeout,
	}, cfg.Email.ResendAPIKey, cfg.Email.SendGridAPIKey)
	emailService := msgapp.NewEmailService(msgapp.EmailServiceConfig{
		Queue:             emailQueue,
		Sender:            sender,
		Renderer:          renderer,
		RetryDelay:        cfg.Email.RetryDelay,
		BatchSize:         cfg.Email.QueueBatch,
		ResetIntervalDays: cfg.Reset.IntervalDays,
		Logger:            log,
	})

	// Reset
	policy, err := reset.NewPolicy(cfg.Reset.IntervalDays)
	if err != nil {
		return err
	}
	flags := cache.NewSessionFlagStore(stores.Idempotency, cfg.Reset.SessionTTL)
	resetService := resetapp.NewResetService(resetapp.ResetServiceConfig{
		Profiles:  profiles,
		Content:   persistence.NewGormContentStore(db.DB),
		History:   persistence.NewGormResetHistoryRepository(db.DB),
		Storage:   gallery,
		Events:    bus,
		Flags:     flags,
		Policy:    policy,
		BulkDelay: cfg.Reset.BulkDelay,
		Logger:    log,
	})

	// Payments
	prices, err := billing.ParsePriceList(cfg.PayFast.PremiumPrice, cfg.PayFast.BusinessPrice)
	if err != nil {
		return err
	}
	paymentService := billingapp.NewPaymentService(billingapp.PaymentServiceConfig{
		Gateway:      payment.NewPayFastAdapter(payment.PayFastConfigFrom(cfg.PayFast)),
		Transactions: transactions,
		Settlement:   transactions,
		Profiles:     profiles,
		Idempotency:  stores.Idempotency,
		Events:       bus,
		Prices:       prices,
		Logger:       log,
	})

	// Campaigns
	campaignService := campaignapp.NewCampaignService(campaignapp.CampaignServiceConfig{
		Campaigns:  persistence.NewGormCampaignRepository(db.DB),
		Executions: persistence.NewGormExecutionRepository(db.DB),
		DueLimit:   cfg.N8N.DueLimit,
		Logger:     log,
	})

	// Event subscriptions
	paid := event.NewIdempotentHandler(msgapp.NewPaymentCompletedHandler(emailService, profiles, log), stores.Idempotency, log)
	bus.Subscribe(paid, paid.EventTypes()...)
	resetMail := msgapp.NewContentResetHandler(emailService, log)
	bus.Subscribe(resetMail, resetMail.EventTypes()...)
	bus.Subscribe(tel.Metrics, tel.Metrics.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		return err
	}

	// Schedulers
	resetCfg, err := scheduler.ResetSchedulerConfigFrom(cfg.Reset)
	if err != nil {
		return err
	}
	resetScheduler := scheduler.NewResetScheduler(resetService, log, resetCfg)
	resetScheduler.SetRecorder(tel.Metrics)
	// Redis-backed when configured, so replicas share one daily pass
	resetScheduler.SetLease(stores.Idempotency)

	queueCfg := scheduler.DefaultEmailQueueSchedulerConfig()
	queueCfg.Enabled = cfg.Email.QueueInterval > 0
	queueCfg.Interval = cfg.Email.QueueInterval
	if cfg.Email.QueueBatch > 0 {
		queueCfg.BatchSize = cfg.Email.QueueBatch
	}
	queueScheduler := scheduler.NewEmailQueueScheduler(emailService, log, queueCfg)
	queueScheduler.SetRecorder(tel.Metrics)

	// HTTP
	checks := map[string]handler.HealthCheck{"database": db.Ping}
	if stores.Client != nil {
		checks["redis"] = func(ctx context.Context) error { return stores.Client.Ping(ctx).Err() }
	}
	if s3, ok := gallery.(*storage.S3GalleryStorage); ok {
		checks["storage"] = s3.Ping
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.App.IsProduction()

	engine, err := router.New(router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		CORS:           cors,
		Security:       security,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CronSecret:     cfg.Cron.SecretToken,
		N8NSecret:      cfg.N8N.WebhookSecret,
	}, log, router.Handlers{
		Verifier: auth.NewVerifier(cfg.Supabase),
		Health:   handler.NewHealthHandler(version, checks),
		Reset:    handler.NewResetHandler(resetService, flags, handler.WithScheduledResets(resetScheduler)),
		Payment:  handler.NewPaymentHandler(paymentService, tel.Metrics),
		Email:    handler.NewEmailHandler(emailService, tel.Metrics),
		Campaign: handler.NewCampaignHandler(campaignService, tel.Metrics),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Schedulers start last so a failed wiring step never leaves one running
	if err := resetScheduler.Start(ctx); err != nil {
		return err
	}
	if err := queueScheduler.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		// Stop accepting requests before stopping what they call into
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			srv.Shutdown(sctx),
			resetScheduler.Stop(sctx),
			queueScheduler.Stop(sctx),
			bus.Stop(sctx),
		)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

func galleryStorage(cfg *config.Config, log *zap.Logger) (resetapp.GalleryStorage, error) {
	if !cfg.Storage.Enabled {
		log.Info("Object storage disabled, gallery deletions are recorded only")
		return storage.NewStubGalleryStorage(), nil
	}
	s3, err := storage.NewS3GalleryStorage(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	return s3, nil
}
