// Command server runs the ledger daemon: the scheduled daily run, the run
// journal and the admin API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/api"
	"github.com/ndewijer/Disclosure-Ledger/internal/config"
	"github.com/ndewijer/Disclosure-Ledger/internal/database"
	"github.com/ndewijer/Disclosure-Ledger/internal/logger"
	"github.com/ndewijer/Disclosure-Ledger/internal/repository"
	"github.com/ndewijer/Disclosure-Ledger/internal/scheduler"
	"github.com/ndewijer/Disclosure-Ledger/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx := context.Background()

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to database", "path", cfg.Database.Path)

	pipeline, err := service.NewPipelineServiceFromConfig(cfg)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	features := map[string]bool{"scheduler": cfg.Schedule.Spec != ""}
	for _, c := range cfg.Ledger.Categories {
		features[string(c)] = true
	}

	systemService := service.NewSystemService(db, features)
	runService := service.NewRunService(pipeline, repository.NewRunRepository(db), service.RunDefaults{
		LedgerPath: cfg.Ledger.Path,
		Categories: cfg.Ledger.Categories,
		Location:   cfg.Schedule.Location,
	})
	if err := runService.RecoverInterrupted(ctx); err != nil {
		slog.Error("failed to recover interrupted runs", "error", err)
		os.Exit(1)
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule.Spec != "" {
		sched, err = scheduler.New(ctx, runService, cfg.Schedule.Spec, cfg.Schedule.Location)
		if err != nil {
			slog.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(systemService, runService),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if sched != nil {
		<-sched.Stop().Done()
	}
	// A run in progress finishes and journals its outcome before exit.
	runService.Wait()

	slog.Info("server exited")
}
