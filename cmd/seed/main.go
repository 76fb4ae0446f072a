package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"erp-ai-jobs/internal/config"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/infra/audit"
	pg "erp-ai-jobs/internal/infra/db/postgres"
	"erp-ai-jobs/internal/infra/logging"
	"erp-ai-jobs/internal/usecase"

	"github.com/google/uuid"
)

// Seeds a handful of pending jobs for smoke testing the worker loop.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	count := flag.Int("n", 5, "number of jobs to enqueue")
	org := flag.String("org", "org-demo", "organization id")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	jobUC := usecase.NewJobUseCase(pg.NewJobRepo(pool), audit.NewLogSink(logger), logger)

	for i := 0; i < *count; i++ {
		job, err := jobUC.Enqueue(ctx, usecase.EnqueueParams{
			OrganizationID:   *org,
			ConversationID:   uuid.NewString(),
			Type:             model.JobTypeGenerateResponse,
			TriggerMessageID: uuid.NewString(),
			ActorID:          "seed",
		})
		if err != nil {
			log.Fatalf("enqueue: %v", err)
		}
		fmt.Printf("enqueued %s (%s)\n", job.ID, job.Type)
	}
}
