package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/adapter"
	"erp-ai-jobs/internal/domain/ports/repository"
	"erp-ai-jobs/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CancelUseCase = (*cancelUC)(nil)

// CancelUseCase stops a job that is no longer wanted. For a running job the
// cancellation is advisory: the engine marks intent and the executor is
// expected to observe the status and abort promptly. The engine stays
// correct even if the executor is slow — a later outcome report hits the
// cancelled row and bounces as ErrStaleState.
type CancelUseCase interface {
	Cancel(ctx context.Context, jobID, actorID string) (*model.Job, error)
}

type cancelUC struct {
	jobs  repository.JobRepository
	sm    *stateMachine
	audit *auditEmitter
	log   *zerolog.Logger
}

func NewCancelUseCase(jobs repository.JobRepository, sink adapter.AuditSink, logger *zerolog.Logger) *cancelUC {
	return &cancelUC{
		jobs:  jobs,
		sm:    newStateMachine(jobs),
		audit: newAuditEmitter(sink, logger),
		log:   logger,
	}
}

func (u *cancelUC) Cancel(ctx context.Context, jobID, actorID string) (*model.Job, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor is required", domain.ErrInvalidArgument)
	}

	// A lost race means the status advanced (pending->running or into a
	// terminal state), so re-reading and retrying terminates after at most
	// two hops.
	for {
		job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return nil, fmt.Errorf("%w: job %s is already %s", domain.ErrNotCancellable, job.ID, job.Status)
		}

		now := time.Now().UTC()
		meta := map[string]string{}
		for k, v := range job.Metadata {
			meta[k] = v
		}
		meta[model.MetaCancelledBy] = actorID

		err = u.sm.transition(ctx, repository.NoTX, job.ID, job.Status, model.JobStatusCancelled, repository.JobPatch{
			CompletedAt:  &now,
			ErrorMessage: fmt.Sprintf("Cancelled by %s", actorID),
			Metadata:     meta,
		})
		if errors.Is(err, domain.ErrStaleState) {
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.IncJobCancel(string(job.Status))
		u.audit.emit(ctx, adapter.AuditJobCancelled, job.ID, actorID, map[string]string{
			"from": string(job.Status),
			"to":   string(model.JobStatusCancelled),
		})
		u.log.Info().Str("job_id", job.ID).Str("actor_id", actorID).Str("was", string(job.Status)).Msg("job cancelled")

		return u.jobs.FindByID(ctx, repository.NoTX, jobID)
	}
}
