package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/realmsync/realmsync/internal/logger"
	"github.com/realmsync/realmsync/pkg/config"
	"github.com/realmsync/realmsync/pkg/metrics"
	promimpl "github.com/realmsync/realmsync/pkg/metrics/prometheus"
	"github.com/realmsync/realmsync/pkg/models"
	"github.com/realmsync/realmsync/pkg/scheduler"
	"github.com/realmsync/realmsync/pkg/sources/kerberos"
	"github.com/realmsync/realmsync/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync service",
	Long: `Run the realmsync service: a scheduler that periodically syncs every
enabled source, plus an optional Prometheus metrics endpoint.

Examples:
  # Run with default config location
  realmsync serve

  # Run with custom config
  realmsync serve --config /etc/realmsync/config.yaml

  # Run with environment variable overrides
  REALMSYNC_LOGGING_LEVEL=DEBUG realmsync serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var syncMetrics metrics.SyncMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		syncMetrics = promimpl.NewSyncMetrics()
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close identity store", "error", err)
		}
	}()

	if err := bootstrapAdmin(ctx, st, cfg); err != nil {
		return err
	}

	engCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	engine := kerberos.NewEngine(st, engCfg, syncMetrics)
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("failed to close admin sessions", "error", err)
		}
	}()

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	coord := kerberos.NewCoordinator(locker, cfg.Kerberos.Tenant, cfg.Kerberos.TaskTimeoutHours)
	sched := scheduler.New(st, engine, coord, cfg.Sync.Interval, syncMetrics)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = startMetricsServer(cfg.Metrics.Port)
	}

	logger.Info("realmsync service started",
		"version", Version,
		"database", cfg.Database.Type,
		"lock_backend", cfg.Lock.Backend,
		"sync_interval", cfg.Sync.Interval)

	err = sched.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
			logger.Error("metrics server shutdown error", "error", serr)
		}
	}

	return err
}

// bootstrapAdmin ensures the configured admin user exists. An existing
// user is left untouched.
func bootstrapAdmin(ctx context.Context, st store.Store, cfg *config.Config) error {
	if cfg.Admin.PasswordHash == "" {
		return nil
	}

	_, err := st.GetUser(ctx, cfg.Admin.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	admin := &models.User{
		Username:     cfg.Admin.Username,
		Email:        cfg.Admin.Email,
		PasswordHash: cfg.Admin.PasswordHash,
		Enabled:      true,
		Role:         string(models.RoleAdmin),
	}
	if _, err := st.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}
	logger.Info("bootstrapped admin user", "username", cfg.Admin.Username)
	return nil
}

// startMetricsServer serves the Prometheus registry on /metrics.
func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}
