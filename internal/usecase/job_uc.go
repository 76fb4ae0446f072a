package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/adapter"
	"erp-ai-jobs/internal/domain/ports/repository"
	"erp-ai-jobs/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// EnqueueParams describes a new unit of AI-response work. TriggerMessageID
// and Metadata are optional; ActorID defaults to "system".
type EnqueueParams struct {
	OrganizationID   string
	ConversationID   string
	Type             model.JobType
	TriggerMessageID string
	Metadata         map[string]string
	ActorID          string
}

// JobUseCase is the producer- and executor-facing surface of the engine:
// producers enqueue work, the external executor reports exactly one outcome
// per claimed job. Both reports are ordinary state machine transitions, so
// a report arriving after a cancellation is rejected with ErrStaleState and
// never overwrites the cancelled row.
type JobUseCase interface {
	Enqueue(ctx context.Context, p EnqueueParams) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, orgID string, f repository.JobFilter) ([]*model.Job, error)
	ReportSuccess(ctx context.Context, jobID string, res model.JobResult) (*model.Job, error)
	ReportFailure(ctx context.Context, jobID string, fail model.JobFailure) (*model.Job, error)
}

type jobUC struct {
	jobs  repository.JobRepository
	sm    *stateMachine
	audit *auditEmitter
	log   *zerolog.Logger
}

func NewJobUseCase(jobs repository.JobRepository, sink adapter.AuditSink, logger *zerolog.Logger) *jobUC {
	return &jobUC{
		jobs:  jobs,
		sm:    newStateMachine(jobs),
		audit: newAuditEmitter(sink, logger),
		log:   logger,
	}
}

func (u *jobUC) Enqueue(ctx context.Context, p EnqueueParams) (*model.Job, error) {
	if p.OrganizationID == "" || p.ConversationID == "" {
		return nil, fmt.Errorf("%w: organization and conversation are required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(string(p.Type)) == "" {
		return nil, fmt.Errorf("%w: job type is required", domain.ErrInvalidArgument)
	}
	if p.ActorID == "" {
		p.ActorID = "system"
	}

	job := model.NewJob(p.OrganizationID, p.ConversationID, p.Type, p.TriggerMessageID)
	for k, v := range p.Metadata {
		job.Metadata[k] = v
	}

	if err := u.jobs.Insert(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}
	metrics.IncJobEnqueued(string(job.Type))

	u.audit.emit(ctx, adapter.AuditJobEnqueued, job.ID, p.ActorID, map[string]string{
		"job_type":        string(job.Type),
		"conversation_id": job.ConversationID,
		"status":          string(job.Status),
	})
	u.log.Debug().Str("job_id", job.ID).Str("org_id", job.OrganizationID).Str("job_type", string(job.Type)).Msg("job enqueued")
	return job, nil
}

func (u *jobUC) Get(ctx context.Context, id string) (*model.Job, error) {
	return u.jobs.FindByID(ctx, repository.NoTX, id)
}

func (u *jobUC) List(ctx context.Context, orgID string, f repository.JobFilter) ([]*model.Job, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization is required", domain.ErrInvalidArgument)
	}
	return u.jobs.ListByOrg(ctx, repository.NoTX, orgID, f)
}

// ReportSuccess applies the running->completed transition with the
// executor's result. The expected pre-state is always `running`; if the job
// moved meanwhile (cancelled, reaped, or already reported) the caller gets
// ErrStaleState and the stored outcome reflects only the first report.
func (u *jobUC) ReportSuccess(ctx context.Context, jobID string, res model.JobResult) (*model.Job, error) {
	if res.ConfidenceScore < 0 || res.ConfidenceScore > 1 {
		return nil, fmt.Errorf("%w: confidence score must be within [0,1]", domain.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	err := u.sm.transition(ctx, repository.NoTX, jobID, model.JobStatusRunning, model.JobStatusCompleted, repository.JobPatch{
		CompletedAt: &now,
		Result:      &res,
	})
	if err != nil {
		return nil, err
	}

	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, err
	}
	u.observeDuration(job)
	u.audit.emit(ctx, adapter.AuditJobCompleted, job.ID, "executor", map[string]string{
		"from":              string(model.JobStatusRunning),
		"to":                string(model.JobStatusCompleted),
		"result_message_id": res.ResultMessageID,
	})
	u.log.Info().Str("job_id", job.ID).Int("prompt_tokens", res.PromptTokens).Int("completion_tokens", res.CompletionTokens).Msg("job completed")
	return job, nil
}

// ReportFailure applies running->failed with the executor's error. The
// failed row keeps its error fields forever so operators can audit why an
// attempt failed even after a retry chain resolves the underlying issue.
func (u *jobUC) ReportFailure(ctx context.Context, jobID string, fail model.JobFailure) (*model.Job, error) {
	if fail.Code == "" {
		return nil, fmt.Errorf("%w: failure code is required", domain.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	err := u.sm.transition(ctx, repository.NoTX, jobID, model.JobStatusRunning, model.JobStatusFailed, repository.JobPatch{
		CompletedAt: &now,
		Failure:     &fail,
	})
	if err != nil {
		return nil, err
	}

	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, err
	}
	u.observeDuration(job)
	u.audit.emit(ctx, adapter.AuditJobFailed, job.ID, "executor", map[string]string{
		"from":       string(model.JobStatusRunning),
		"to":         string(model.JobStatusFailed),
		"error_code": fail.Code,
	})
	u.log.Warn().Str("job_id", job.ID).Str("error_code", fail.Code).Str("error", fail.Message).Msg("job failed")
	return job, nil
}

func (u *jobUC) observeDuration(job *model.Job) {
	if job.StartedAt == nil || job.CompletedAt == nil {
		return
	}
	metrics.ObserveJobDuration(string(job.Type), string(job.Status), job.CompletedAt.Sub(*job.StartedAt))
}
