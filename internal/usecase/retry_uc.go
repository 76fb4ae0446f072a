package usecase

import (
	"context"
	"fmt"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/adapter"
	"erp-ai-jobs/internal/domain/ports/repository"
	"erp-ai-jobs/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ RetryUseCase = (*retryUC)(nil)

// RetryUseCase converts a failed job into a new attempt without mutating
// history. The predecessor row is never touched; lineage is reconstructed
// by following the retry_of metadata chain, which may be arbitrarily long.
type RetryUseCase interface {
	Retry(ctx context.Context, jobID, actorID string) (*model.Job, error)
}

type retryUC struct {
	jobs  repository.JobRepository
	tm    repository.TransactionManager
	audit *auditEmitter
	log   *zerolog.Logger
}

func NewRetryUseCase(jobs repository.JobRepository, tm repository.TransactionManager, sink adapter.AuditSink, logger *zerolog.Logger) *retryUC {
	return &retryUC{
		jobs:  jobs,
		tm:    tm,
		audit: newAuditEmitter(sink, logger),
		log:   logger,
	}
}

// Retry checks the precondition and inserts the successor in one
// transaction, so a predecessor observed as failed cannot be something else
// by the time the new row lands. The successor carries the predecessor's
// organization, conversation, trigger message and type, joins the queue at
// the back as an ordinary pending job, and keeps the original metadata keys
// unless overwritten by the lineage markers.
func (u *retryUC) Retry(ctx context.Context, jobID, actorID string) (*model.Job, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor is required", domain.ErrInvalidArgument)
	}

	var successor *model.Job
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		orig, err := u.jobs.FindByID(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if orig.Status != model.JobStatusFailed {
			return fmt.Errorf("%w: job %s is %s", domain.ErrNotRetryable, orig.ID, orig.Status)
		}

		next := model.NewJob(orig.OrganizationID, orig.ConversationID, orig.Type, orig.TriggerMessageID)
		for k, v := range orig.Metadata {
			next.Metadata[k] = v
		}
		next.Metadata[model.MetaRetryOf] = orig.ID
		next.Metadata[model.MetaRetriedBy] = actorID

		if err := u.jobs.Insert(ctx, tx, next); err != nil {
			return err
		}
		successor = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncJobRetry(string(successor.Type))
	u.audit.emit(ctx, adapter.AuditJobRetried, successor.ID, actorID, map[string]string{
		"retry_of": jobID,
		"job_type": string(successor.Type),
	})
	u.log.Info().Str("job_id", successor.ID).Str("retry_of", jobID).Str("actor_id", actorID).Msg("job retried")
	return successor, nil
}
