// recorder follows the realtime channel, aggregates pipeline statistics,
// and periodically writes them to TimescaleDB.
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

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/aios-edge/fleet-realtime/internal/auth"
	"github.com/aios-edge/fleet-realtime/internal/config"
	"github.com/aios-edge/fleet-realtime/internal/database"
	"github.com/aios-edge/fleet-realtime/internal/monitor"
	"github.com/aios-edge/fleet-realtime/internal/notify"
	"github.com/aios-edge/fleet-realtime/internal/realtime"
	"github.com/aios-edge/fleet-realtime/internal/version"
	"github.com/aios-edge/fleet-realtime/internal/writer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string

	flagSet := pflag.NewFlagSet("recorder", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "configs/recorder.local.yaml", "path to config file")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return err
	}
	// Each replica records under its own instance id unless one is pinned.
	if cfg.Instance.ID == "" {
		cfg.Instance.ID = "recorder-" + uuid.NewString()[:8]
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := cfg.Log.NewLogger(os.Stdout)

	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"instance_id", cfg.Instance.ID,
		"ws_url", cfg.Server.WSURL,
	)

	identity, err := cfg.Identity()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session := auth.NewSession()
	ch := realtime.New(cfg.ManagerConfig(), session,
		realtime.WithLogger(logger),
		realtime.WithNotifier(notify.NewLogSink(logger)),
	)

	mon := monitor.New(nil, logger)
	detach := mon.Attach(ch.Registry())
	defer detach()

	deps := healthDeps{
		channel: ch.Stats,
		monitor: mon,
		logger:  logger,
	}

	var statsWriter *writer.StatsWriter
	if cfg.Writer.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Timescale.Host,
			"port", cfg.Database.Timescale.Port,
			"database", cfg.Database.Timescale.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.Timescale, "fleet-recorder "+cfg.Instance.ID)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info("database connected")

		statsWriter = writer.NewStatsWriter(writer.WriterConfig{
			FlushInterval: cfg.Writer.FlushInterval,
			Table:         cfg.Writer.Table,
			InstanceID:    cfg.Instance.ID,
		}, mon, pool, nil, logger)
		if err := statsWriter.EnsureTable(ctx); err != nil {
			return err
		}
		if err := statsWriter.Start(ctx); err != nil {
			return err
		}
		deps.db = pool
		deps.writer = statsWriter.Stats
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           createHealthHandler(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := session.Login(identity); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := ch.FollowAuth(gctx, session)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("recorder running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
		"writer", cfg.Writer.Enabled,
	)

	runErr := g.Wait()

	if statsWriter != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := statsWriter.Stop(stopCtx); err != nil {
			logger.Error("final flush failed", "error", err)
		}
	}

	logger.Info("recorder stopped")
	return runErr
}
