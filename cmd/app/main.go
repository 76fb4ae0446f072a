// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"erp-ai-jobs/internal/config"
	"erp-ai-jobs/internal/domain/ports/adapter"
	"erp-ai-jobs/internal/domain/ports/repository"
	aiAdapters "erp-ai-jobs/internal/infra/adapters/ai"
	"erp-ai-jobs/internal/infra/audit"
	pg "erp-ai-jobs/internal/infra/db/postgres"
	"erp-ai-jobs/internal/infra/logging"
	"erp-ai-jobs/internal/infra/metrics"
	red "erp-ai-jobs/internal/infra/redis"
	"erp-ai-jobs/internal/infra/sched"
	"erp-ai-jobs/internal/infra/web"
	"erp-ai-jobs/internal/infra/worker"
	"erp-ai-jobs/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI responder, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Runtime.Dev {
		log.Printf("[DEV MODE] Enabled")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Repositories ----
	var jobRepo repository.JobRepository = pg.NewJobRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Redis (optional stats cache) ----
	if cfg.Redis.Enabled {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		jobRepo = pg.NewJobRepoCacheDecorator(jobRepo, redisClient)
	}

	// ---- Audit sink ----
	var sink adapter.AuditSink
	switch cfg.Audit.Backend {
	case "log":
		sink = audit.NewLogSink(logger)
	default:
		sink = pg.NewAuditSink(pool)
	}

	// ---- Use cases ----
	jobUC := usecase.NewJobUseCase(jobRepo, sink, logger)
	dispatchUC := usecase.NewDispatchUseCase(jobRepo, sink, cfg.Worker.ClaimBatch, logger)
	retryUC := usecase.NewRetryUseCase(jobRepo, tm, sink, logger)
	cancelUC := usecase.NewCancelUseCase(jobRepo, sink, logger)
	statsUC := usecase.NewStatsUseCase(jobRepo, logger)

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Worker runtime ----
	// The responder is the seam for the real inference client; the engine
	// ships only a noop.
	responder := aiAdapters.NewNoopResponder()

	fatalErrs := make(chan error, 1)
	pool2 := worker.NewPool(cfg.Worker.Count, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	processor := worker.NewProcessor(
		dispatchUC, jobUC, responder,
		cfg.Worker.PollInterval, cfg.Worker.StoreBackoff, cfg.Worker.StoreRetries,
		fatalErrs, logger,
	)
	go processor.Start(ctx, pool2)

	// ---- Stuck-job reaper ----
	if cfg.Reaper.Enabled {
		reaper := sched.NewReaper(jobRepo, jobUC, cfg.Reaper.Interval, cfg.Reaper.RunningTimeout, logger)
		go reaper.Start(ctx)
	}

	// ---- Admin API ----
	authMgr := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	server := web.NewServer(jobUC, cancelUC, retryUC, statsUC, authMgr, cfg.Admin.APIKey, logger)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.Admin.Port).Msg("admin API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin API stopped")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-fatalErrs:
		logger.Error().Err(err).Msg("fatal backend error, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
