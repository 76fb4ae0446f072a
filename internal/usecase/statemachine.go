package usecase

import (
	"context"
	"fmt"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/repository"
	"erp-ai-jobs/internal/infra/metrics"
)

// stateMachine is the sole authority for status transitions. Every use case
// mutates job status through transition, never by writing rows directly.
//
// A transition is a single conditional update keyed on (jobID, from): it
// succeeds only if the row still holds `from` at the moment of write. Zero
// affected rows surfaces ErrStaleState — another worker or controller moved
// the job first — and the caller must re-read before deciding what to do.
type stateMachine struct {
	jobs repository.JobRepository
}

func newStateMachine(jobs repository.JobRepository) *stateMachine {
	return &stateMachine{jobs: jobs}
}

func (m *stateMachine) transition(ctx context.Context, tx repository.Tx, jobID string, from, to model.JobStatus, patch repository.JobPatch) error {
	if !model.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	patch.Status = to

	n, err := m.jobs.ConditionalUpdate(ctx, tx, jobID, from, patch)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: job %s is no longer %s", domain.ErrStaleState, jobID, from)
	}
	metrics.IncJobTransition(string(from), string(to))
	return nil
}
