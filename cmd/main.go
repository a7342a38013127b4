package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/senyabanana/procurement-service/internal/audit"
	"github.com/senyabanana/procurement-service/internal/db"
	"github.com/senyabanana/procurement-service/internal/handlers"
	"github.com/senyabanana/procurement-service/internal/metrics"
	"github.com/senyabanana/procurement-service/internal/notify"
	"github.com/senyabanana/procurement-service/internal/repository"
	"github.com/senyabanana/procurement-service/internal/router"
	"github.com/senyabanana/procurement-service/internal/router/config"
	"github.com/senyabanana/procurement-service/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "procurement",
		Short:         "Procurement service with sealed bids and director quorum",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config-path", "c", ".", "Directory with app.env")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides LOG_LEVEL")

	load := func() (config.Config, *slog.Logger, error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return cfg, nil, fmt.Errorf("cannot load config: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logger := newLogger(cfg.LogLevel)
		slog.SetDefault(logger)
		return cfg, logger, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if err := runDBMigration(cfg.MigrationURL, cfg.PostgresConn, logger); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return runDBMigration(cfg.MigrationURL, cfg.PostgresConn, logger)
		},
	})

	var limit int
	closeQuotes := &cobra.Command{
		Use:   "close-quotes",
		Short: "Close quote windows whose deadline has passed",
		Long:  "Close quote windows whose deadline has passed. Run it from an external scheduler; repeated runs are safe.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfg, logger, func(a *app) error {
				n, err := a.requisitions.CloseDueQuoteWindows(cmd.Context(), time.Now(), limit)
				logger.Info("quote windows closed", "count", n)
				return err
			})
		},
	}
	closeQuotes.Flags().IntVar(&limit, "limit", 100, "Maximum number of requisitions to process")
	cmd.AddCommand(closeQuotes)

	expireAwards := &cobra.Command{
		Use:   "expire-awards",
		Short: "Promote standby vendors where the awardee missed the deadline",
		Long:  "Promote standby vendors where the awardee missed the response deadline. Run it from an external scheduler next to close-quotes; repeated runs are safe.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfg, logger, func(a *app) error {
				n, err := a.awards.ExpireAwards(cmd.Context(), time.Now(), limit)
				logger.Info("expired awards processed", "count", n)
				return err
			})
		},
	}
	expireAwards.Flags().IntVar(&limit, "limit", 100, "Maximum number of requisitions to process")
	cmd.AddCommand(expireAwards)

	return cmd
}

func newLogger(level string) *slog.Logger {
	l := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

// app - собранные зависимости процесса.
type app struct {
	pool         *pgxpool.Pool
	metrics      *metrics.Metrics
	requisitions *services.RequisitionService
	quorum       *services.QuorumService
	committee    *services.CommitteeService
	awards       *services.AwardService
	audit        *services.AuditService
	close        func()
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	dbPool, err := db.InitDb(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	auditDB, err := audit.Open(cfg.AuditConn)
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("error initializing audit store: %w", err)
	}

	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	var natsNotifier *notify.NATSNotifier
	if cfg.NatsURL != "" {
		natsNotifier, err = notify.NewNATSNotifier(cfg.NatsURL, cfg.NatsSubject)
		if err != nil {
			logger.Warn("nats unavailable, notifications go to the log", "error", err)
		} else {
			notifier = natsNotifier
		}
	}
	dispatcher := notify.NewDispatcher(notifier, logger, cfg.NotifyTimeout)

	auditStore := audit.NewPostgresStore(auditDB)
	m := metrics.New()
	deps := &services.Deps{
		Store:    repository.NewPostgresStore(dbPool),
		Audit:    auditStore,
		Notifier: dispatcher,
		Metrics:  m,
		Logger:   logger,
	}

	return &app{
		pool:         dbPool,
		metrics:      m,
		requisitions: services.NewRequisitionService(deps),
		quorum: services.NewQuorumService(deps, services.QuorumConfig{
			SecretTTL:  cfg.SecretTTL,
			PINLength:  cfg.PINLength,
			BcryptCost: cfg.BcryptCost,
		}),
		committee: services.NewCommitteeService(deps),
		awards:    services.NewAwardService(deps),
		audit:     services.NewAuditService(auditStore),
		close: func() {
			dispatcher.Wait()
			if natsNotifier != nil {
				natsNotifier.Close()
			}
			if err := auditDB.Close(); err != nil {
				logger.Error("failed to close audit store", "error", err)
			}
			dbPool.Close()
		},
	}, nil
}

func withApp(ctx context.Context, cfg config.Config, logger *slog.Logger, fn func(a *app) error) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func serve(parent context.Context, cfg config.Config, logger *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	base := handlers.NewBase(repository.NewPostgresActorResolver(a.pool), logger, cfg.RequestTimeout)
	limiter := handlers.NewRateLimiter(cfg.VerifyRPS, cfg.VerifyBurst)
	routes := router.InitRoutes(router.Handlers{
		Requisition: handlers.NewRequisitionHandler(base, a.requisitions),
		Quorum:      handlers.NewQuorumHandler(base, a.quorum),
		Committee:   handlers.NewCommitteeHandler(base, a.committee),
		Award:       handlers.NewAwardHandler(base, a.awards),
		Audit:       handlers.NewAuditHandler(base, a.audit),
		VerifyLimit: limiter,
		Metrics:     a.metrics.Handler(),
	})

	go limiter.Run(ctx.Done())
	if cfg.SweepEnabled() {
		go sweep(ctx, a, cfg.SweepInterval, logger)
	} else {
		logger.Info("in-process sweep disabled, deadlines are driven by close-quotes and expire-awards")
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           routes,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server is listening", "address", cfg.ServerAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweep закрывает просроченные окна приёма предложений и срок ответа победителя.
func sweep(ctx context.Context, a *app, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := a.requisitions.CloseDueQuoteWindows(ctx, now, 100); err != nil {
				logger.Error("close quote windows failed", "error", err)
			} else if n > 0 {
				logger.Info("quote windows closed", "count", n)
			}
			if n, err := a.awards.ExpireAwards(ctx, now, 100); err != nil {
				logger.Error("expire awards failed", "error", err)
			} else if n > 0 {
				logger.Info("expired awards processed", "count", n)
			}
		}
	}
}

func runDBMigration(migrationURL string, dbSource string, logger *slog.Logger) error {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		return fmt.Errorf("cannot create a new migrate instance: %w", err)
	}
	defer migration.Close()

	if err = migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrate up: %w", err)
	}
	logger.Info("db migrated successfully")
	return nil
}
