// Command reset runs free-tier content resets from the shell:
//
//	reset user <profile-id>
//	reset all
//	reset eligible --days 7
//	reset history <profile-id> --page 1 --page-size 20
//
// Results are printed as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	msgapp "github.com/a2zsellr/backend/internal/application/messaging"
	resetapp "github.com/a2zsellr/backend/internal/application/reset"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/cache"
	"github.com/a2zsellr/backend/internal/infrastructure/config"
	"github.com/a2zsellr/backend/internal/infrastructure/email"
	"github.com/a2zsellr/backend/internal/infrastructure/event"
	"github.com/a2zsellr/backend/internal/infrastructure/logger"
	"github.com/a2zsellr/backend/internal/infrastructure/persistence"
	"github.com/a2zsellr/backend/internal/infrastructure/storage"
)

// resetService is what the commands need from the reset service
type resetService interface {
	ResetSingleUser(ctx context.Context, profileID uuid.UUID) *resetapp.ResetResult
	ResetAllFreeUsers(ctx context.Context) (*resetapp.BulkResetResult, error)
	ResetEligibleUsers(ctx context.Context, days int) (*resetapp.BulkResetResult, error)
	History(ctx context.Context, profileID uuid.UUID, filter resetapp.HistoryFilter) (*shared.Paginated[resetapp.HistoryResponse], error)
	Policy() reset.Policy
}

// opener builds the service and returns a func releasing what it opened
type opener func(ctx context.Context, logLevel string) (resetService, func(), error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	root, cleanup := newRootCmd(openService)
	err := root.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd returns the command tree and a func releasing whatever the
// service opened
func newRootCmd(open opener) (*cobra.Command, func()) {
	var (
		logLevel string
		svc      resetService
		closeFn  func()
	)
	root := &cobra.Command{
		Use:          "reset",
		Short:        "Reset free-tier listing content",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			svc, closeFn, err = open(cmd.Context(), logLevel)
			return err
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "user <profile-id>",
			Short: "Reset one free profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				result := svc.ResetSingleUser(cmd.Context(), id)
				if err := printJSON(cmd, result); err != nil {
					return err
				}
				if !result.Success {
					return fmt.Errorf("reset failed: %s", strings.Join(result.Errors, "; "))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "all",
			Short: "Reset every free profile",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				result, err := svc.ResetAllFreeUsers(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			},
		},
		newEligibleCmd(func() resetService { return svc }),
		newHistoryCmd(func() resetService { return svc }),
	)
	return root, func() {
		if closeFn != nil {
			closeFn()
		}
	}
}

func newEligibleCmd(svc func() resetService) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "eligible",
		Short: "Reset free profiles whose last reset is at least --days old",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := svc()
			if !cmd.Flags().Changed("days") {
				days = int(s.Policy().Interval.Hours() / 24)
			}
			result, err := s.ResetEligibleUsers(cmd.Context(), days)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().IntVar(&days, "days", reset.DefaultIntervalDays, "minimum days since the last reset")
	return cmd
}

func newHistoryCmd(svc func() resetService) *cobra.Command {
	var filter resetapp.HistoryFilter
	cmd := &cobra.Command{
		Use:   "history <profile-id>",
		Short: "Show the reset history of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			page, err := svc().History(cmd.Context(), id, filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, page)
		},
	}
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", 20, "entries per page")
	return cmd
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid profile id %q", s)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openService wires the reset service against the configured database.
// Reset emails are queued and go out with the next queue pass.
func openService(ctx context.Context, logLevel string) (resetService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, nil, err
	}

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.GormLevel(logLevel), 0))
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	stores, err := cache.NewStores(ctx, cfg.Redis, cache.WithLogger(log))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	var gallery resetapp.GalleryStorage = storage.NewStubGalleryStorage()
	if cfg.Storage.Enabled {
		s3, err := storage.NewS3GalleryStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			_ = stores.Close()
			_ = db.Close()
			return nil, nil, err
		}
		gallery = s3
	}

	policy, err := reset.NewPolicy(cfg.Reset.IntervalDays)
	if err != nil {
		_ = stores.Close()
		_ = db.Close()
		return nil, nil, err
	}

	renderer, err := email.NewRenderer(cfg.App.PublicURL)
	if err != nil {
		_ = stores.Close()
		_ = db.Close()
		return nil, nil, err
	}
	emails := msgapp.NewEmailService(msgapp.EmailServiceConfig{
		Queue:             persistence.NewGormEmailQueueRepository(db.DB),
		Renderer:          renderer,
		ResetIntervalDays: cfg.Reset.IntervalDays,
		Logger:            log,
	})
	bus := event.NewInMemoryEventBus(log)
	notify := msgapp.NewContentResetHandler(emails, log)
	bus.Subscribe(notify, notify.EventTypes()...)

	svc := resetapp.NewResetService(resetapp.ResetServiceConfig{
		Profiles:  persistence.NewGormProfileRepository(db.DB),
		Content:   persistence.NewGormContentStore(db.DB),
		History:   persistence.NewGormResetHistoryRepository(db.DB),
		Storage:   gallery,
		Events:    bus,
		Flags:     cache.NewSessionFlagStore(stores.Idempotency, cfg.Reset.SessionTTL),
		Policy:    policy,
		BulkDelay: cfg.Reset.BulkDelay,
		Logger:    log,
	})

	closeFn := func() {
		if err := stores.Close(); err != nil {
			log.Warn("Closing stores", zap.Error(err))
		}
		if err := db.Close(); err != nil {
			log.Warn("Closing database", zap.Error(err))
		}
		_ = log.Sync()
	}
	return svc, closeFn, nil
}
