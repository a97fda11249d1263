package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ringforge/callgate/pkg/accounts"
	"github.com/ringforge/callgate/pkg/admission"
	"github.com/ringforge/callgate/pkg/api"
	"github.com/ringforge/callgate/pkg/auth"
	"github.com/ringforge/callgate/pkg/billing"
	"github.com/ringforge/callgate/pkg/calls"
	"github.com/ringforge/callgate/pkg/config"
	"github.com/ringforge/callgate/pkg/numbers"
	"github.com/ringforge/callgate/pkg/observability"
	"github.com/ringforge/callgate/pkg/storage/postgres"
	"github.com/ringforge/callgate/pkg/usage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("callgate exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	connections, err := postgres.NewConnectionManager(cfg.PostgresConnectionConfig())
	if err != nil {
		return err
	}
	defer connections.Close()
	db := connections.Primary()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		return err
	}

	redisClient, err := postgres.NewRedisClient(cfg.RedisConfig())
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Observability. Metrics are always collected; the config flag only
	// controls whether the scrape endpoint is exposed.
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	go metrics.CollectDBStats(ctx, db, 15*time.Second)

	// Plan catalog
	catalog := billing.NewCatalog(logger)
	if cfg.Billing.PlanFile != "" {
		if err := catalog.LoadFile(cfg.Billing.PlanFile); err != nil {
			return err
		}
		if cfg.Billing.PlanFileWatch {
			// Watch blocks until the context ends, so it gets its own
			// goroutine; a watcher failure degrades hot reload, not the
			// server.
			go func() {
				if err := catalog.Watch(ctx, cfg.Billing.PlanFile); err != nil && ctx.Err() == nil {
					logger.WithError(err).Error("Plan catalog watcher stopped")
				}
			}()
		}
	}

	// Services
	accountService := accounts.NewPostgresService(db)
	billingService := billing.NewPostgresService(db, catalog, logger, cfg.Billing.PeriodLength)
	admissionService := admission.NewPostgresService(db, billingService, logger, cfg.Admission.FreeTierConcurrencyLimit)
	usageService := usage.NewPostgresService(db, logger, cfg.Billing.PeriodLength)
	numberService := numbers.NewPostgresService(db, numbers.NewRandomAllocator())
	callController := calls.NewController(db, admissionService, usageService, logger, metrics,
		cfg.Admission.BlockOnQuotaExhausted, cfg.Calls.MaxDuration)
	sessions := auth.NewSessionStore(redisClient, cfg.Auth.SessionTTL)

	// Background jobs: the call reaper and the usage period rollover.
	reaper := calls.NewReaper(db, callController, logger, metrics, cfg.Calls.ReaperMaxAge, cfg.Calls.ReaperInterval)
	reaperCron, err := reaper.Start()
	if err != nil {
		return err
	}
	defer reaperCron.Stop()

	jobs := cron.New()
	if _, err := jobs.AddFunc("@hourly", func() {
		rolled, err := usageService.RollExpiredPeriods()
		if err != nil {
			logger.WithError(err).Error("usage period rollover failed")
			return
		}
		if rolled > 0 {
			logger.WithField("accounts", rolled).Info("rolled expired usage periods")
		}
	}); err != nil {
		return err
	}
	jobs.Start()
	defer jobs.Stop()

	// Control API
	server := api.NewServer(cfg.Server.Host+":"+cfg.Server.Port, api.Services{
		Accounts:    accountService,
		Billing:     billingService,
		Admission:   admissionService,
		Usage:       usageService,
		Numbers:     numberService,
		Calls:       callController,
		Catalog:     catalog,
		Sessions:    sessions,
		SessionTTL:  cfg.Auth.SessionTTL,
		DefaultHold: cfg.Calls.DefaultDuration,
	}, logger, metrics)

	// Health and metrics on a separate port for probes and scrapers
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient.GetClient())
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(server.Start)
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("API server shutdown failed")
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.WithFields(map[string]interface{}{
		"addr":        cfg.Server.Host + ":" + cfg.Server.Port,
		"health_addr": healthServer.Addr,
	}).Info("callgate started")

	return group.Wait()
}
