package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/assortlab/noos-go/internal/adapters/httpapi"
	"github.com/assortlab/noos-go/internal/adapters/persistence"
	"github.com/assortlab/noos-go/internal/application/download"
	"github.com/assortlab/noos-go/internal/application/ingestion"
	"github.com/assortlab/noos-go/internal/application/noosengine"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/shared"
	"github.com/assortlab/noos-go/internal/infrastructure/config"
	"github.com/assortlab/noos-go/internal/infrastructure/database"
	"github.com/assortlab/noos-go/internal/infrastructure/pidfile"
)

func main() {
	forceFlag := flag.Bool("force", false, "Kill any existing server instance and start a new one")
	configPath := flag.String("config", "", "Path to config file (default: search standard locations)")
	flag.Parse()

	fmt.Println("NOOS Classification Server v0.1.0")
	fmt.Println("=================================")

	cfg := config.MustLoadConfig(*configPath)
	setupLogging(cfg.Logging)

	// Single-instance guard
	pf := pidfile.New(cfg.Server.PIDFile)
	if err := pf.Acquire(); err != nil {
		if !*forceFlag {
			log.Fatalf("Failed to acquire PID file lock: %v\nUse --force to kill the existing server", err)
		}
		fmt.Println("Force mode enabled - stopping existing server...")
		if killErr := pf.KillExisting(); killErr != nil {
			log.Fatalf("Failed to stop existing server: %v", killErr)
		}
		if err := pf.Acquire(); err != nil {
			log.Fatalf("Failed to acquire PID file lock after stopping existing server: %v", err)
		}
	}
	defer func() {
		if err := pf.Release(); err != nil {
			log.Printf("Warning: failed to release PID file: %v", err)
		}
	}()

	if err := run(cfg); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(cfg *config.Config) error {
	slog.Info("connecting to database", "type", cfg.Database.Type)
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := os.MkdirAll(cfg.Files.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create file directory: %w", err)
	}

	// Repositories
	taskRepo := persistence.NewGormTaskRepository(db)
	styleRepo := persistence.NewGormStyleRepository(db)
	skuRepo := persistence.NewGormSkuRepository(db)
	storeRepo := persistence.NewGormStoreRepository(db)
	salesRepo := persistence.NewGormSalesRepository(db)
	auditRepo := persistence.NewGormAuditLogRepository(db)
	resultRepo := persistence.NewGormNoosResultRepository(db)
	paramRepo := persistence.NewGormParameterRepository(db)
	maintenance := persistence.NewMaintenance(db)

	clock := shared.NewRealClock()

	// In-flight tasks from a previous process are unrecoverable; fail
	// them before accepting new work.
	ctx := context.Background()
	pools := scheduler.NewPools(
		cfg.Workers.File.Workers, cfg.Workers.File.Queue,
		cfg.Workers.Noos.Workers, cfg.Workers.Noos.Queue,
		cfg.Workers.Default.Workers, cfg.Workers.Default.Queue,
	)
	sched := scheduler.New(taskRepo, pools)
	if err := sched.RecoverInterrupted(ctx); err != nil {
		return fmt.Errorf("failed to recover interrupted tasks: %w", err)
	}

	if err := paramRepo.SeedDefault(ctx); err != nil {
		return fmt.Errorf("failed to seed default parameters: %w", err)
	}

	// Workloads
	pipelines := ingestion.NewPipelines(styleRepo, skuRepo, storeRepo, salesRepo, auditRepo, clock, ingestion.Options{
		TempDir: cfg.Files.Dir,
		MaxRows: cfg.Files.MaxUploadRows,
	})
	engine := noosengine.NewEngine(salesRepo, skuRepo, styleRepo, resultRepo, clock)
	builder := download.NewBuilder(styleRepo, skuRepo, storeRepo, salesRepo, resultRepo, clock, cfg.Files.Dir)

	server := httpapi.NewServer(cfg.Server, httpapi.Deps{
		Tasks:     taskRepo,
		Scheduler: sched,
		Pipelines: pipelines,
		Engine:    engine,
		Builder:   builder,
		Results:   resultRepo,
		Params:    paramRepo,
		Audits:    auditRepo,
		Purger:    maintenance,
		Clock:     clock,
	})

	// Serve until a shutdown signal arrives
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	slog.Info("shutdown signal received")

	httpCtx, cancelHTTP := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancelHTTP()
	if err := server.Shutdown(httpCtx); err != nil {
		slog.Warn("http server shutdown incomplete", "error", err)
	}

	poolCtx, cancelPools := context.WithTimeout(ctx, cfg.Workers.ShutdownTimeout)
	defer cancelPools()
	if err := sched.Shutdown(poolCtx); err != nil {
		slog.Warn("worker pools shutdown incomplete", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.IncludeCaller}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
