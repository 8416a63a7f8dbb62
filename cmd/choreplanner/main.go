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

	"github.com/christopher-besch/chore-planner/internal/backup"
	"github.com/christopher-besch/chore-planner/internal/config"
	"github.com/christopher-besch/chore-planner/internal/database"
	"github.com/christopher-besch/chore-planner/internal/logging"
	"github.com/christopher-besch/chore-planner/internal/metrics"
	"github.com/christopher-besch/chore-planner/internal/planner"
	"github.com/christopher-besch/chore-planner/internal/scheduler"
	"github.com/christopher-besch/chore-planner/internal/seed"
	"github.com/christopher-besch/chore-planner/internal/server"
	"github.com/christopher-besch/chore-planner/internal/week"
	ws "github.com/christopher-besch/chore-planner/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "choreplanner: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	engine := planner.New(db, planner.Config{
		WeeksToPlan:        cfg.WeeksToPlan,
		Gamma:              cfg.Gamma,
		Seed:               cfg.Seed,
		Debug:              cfg.Debug,
		FallbackToLastWeek: cfg.FallbackToLastWeek,
		Logger:             logger,
		Metrics:            metrics.NewPrometheus(nil, ""),
	})
	hub := ws.NewHub(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SeedFile != "" {
		household, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := seed.Apply(ctx, engine, household, logger); err != nil {
			return err
		}
	}

	snapshots := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		},
		Prefix:     cfg.SnapshotPrefix,
		Passphrase: cfg.SnapshotPassphrase,
		Keep:       cfg.SnapshotKeep,
	}, db, logger)
	logger.Info("snapshots", "state", snapshots.Status().State)

	weekly := scheduler.NewWeekly(engine, hub, cfg.TickInterval, logger)
	weekly.SnapshotEachWeek(snapshots)
	if !cfg.Debug {
		if _, err := weekly.Advance(ctx, week.Of(time.Now())); err != nil {
			logger.Error("advance week at startup", "error", err)
		}
		weekly.Start(ctx)
		defer weekly.Stop()
	}

	// the plan may be stale after downtime or a config change
	delta, err := engine.Maintain(ctx)
	if err != nil {
		return fmt.Errorf("initial maintain: %w", err)
	}
	current, err := engine.CurrentWeek(ctx)
	if err != nil {
		return err
	}
	logger.Info("plan ready",
		"week", current.String(),
		"assigned", len(delta.Assigned),
		"retracted", len(delta.Retracted),
	)

	srv := server.New(db, engine, hub, weekly, server.Config{
		AdminTokenHash: cfg.AdminTokenHash,
		Snapshots:      snapshots,
	}, logger)
	go cleanupLimiters(ctx, srv)

	// SIGHUP checks for a new week right away; in debug mode it is the only
	// way to move forward besides the API.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("SIGHUP received, advancing week")
				if cfg.Debug {
					if _, err := weekly.Advance(ctx, current); err != nil {
						logger.Error("advance week", "error", err)
					}
					continue
				}
				weekly.Trigger()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chore planner listening", "port", cfg.Port, "weeks_to_plan", cfg.WeeksToPlan, "debug", cfg.Debug)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func cleanupLimiters(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rl := range srv.RateLimiters() {
				rl.Cleanup()
			}
		}
	}
}
