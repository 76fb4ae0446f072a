package usecase

import (
	"context"
	"errors"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/adapter"
	"erp-ai-jobs/internal/domain/ports/repository"
	"erp-ai-jobs/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ DispatchUseCase = (*dispatchUC)(nil)

const defaultClaimBatch = 5

// DispatchUseCase hands each pending job to exactly one worker. The atomic
// pending->running conditional update is the only correctness mechanism;
// there is no lock table and no coordinator.
type DispatchUseCase interface {
	// Claim returns the oldest claimable pending job, now running with
	// started_at set, or domain.ErrNotFound when the queue is empty.
	Claim(ctx context.Context, workerID string) (*model.Job, error)
}

type dispatchUC struct {
	jobs       repository.JobRepository
	sm         *stateMachine
	audit      *auditEmitter
	claimBatch int
	log        *zerolog.Logger
}

func NewDispatchUseCase(jobs repository.JobRepository, sink adapter.AuditSink, claimBatch int, logger *zerolog.Logger) *dispatchUC {
	if claimBatch <= 0 {
		claimBatch = defaultClaimBatch
	}
	return &dispatchUC{
		jobs:       jobs,
		sm:         newStateMachine(jobs),
		audit:      newAuditEmitter(sink, logger),
		claimBatch: claimBatch,
		log:        logger,
	}
}

// Claim scans pending candidates in (created_at, id) order and attempts the
// pending->running transition on each. A lost race (ErrStaleState) moves on
// to the next candidate instead of failing the caller, so concurrent
// dispatchers never block each other and no job is ever claimed twice.
func (d *dispatchUC) Claim(ctx context.Context, workerID string) (*model.Job, error) {
	candidates, err := d.jobs.ListPending(ctx, repository.NoTX, d.claimBatch)
	if err != nil {
		return nil, err
	}

	for _, cand := range candidates {
		now := time.Now().UTC()
		err := d.sm.transition(ctx, repository.NoTX, cand.ID, model.JobStatusPending, model.JobStatusRunning, repository.JobPatch{
			StartedAt: &now,
		})
		if errors.Is(err, domain.ErrStaleState) {
			metrics.IncJobClaim("conflict")
			continue
		}
		if err != nil {
			return nil, err
		}

		claimed := *cand
		claimed.Status = model.JobStatusRunning
		claimed.StartedAt = &now

		metrics.IncJobClaim("granted")
		d.audit.emit(ctx, adapter.AuditJobClaimed, claimed.ID, workerID, map[string]string{
			"from":     string(model.JobStatusPending),
			"to":       string(model.JobStatusRunning),
			"job_type": string(claimed.Type),
		})
		d.log.Debug().Str("job_id", claimed.ID).Str("worker_id", workerID).Msg("job claimed")
		return &claimed, nil
	}

	metrics.IncJobClaim("empty")
	return nil, domain.ErrNotFound
}
