package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/adapter"
	"erp-ai-jobs/internal/usecase"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const failureCodeAI = "AI_ERROR"

// Processor is the reference executor: it polls the dispatcher for work,
// runs the AI call through the responder port, and reports exactly one
// outcome per claimed job. Cancellation is cooperative — if the job was
// cancelled while the call was in flight, the outcome report loses the
// conditional update and is dropped as stale, which is the intended no-op.
type Processor struct {
	dispatcher usecase.DispatchUseCase
	jobs       usecase.JobUseCase
	responder  adapter.AIResponder

	workerID     string
	pollInterval time.Duration
	storeBackoff time.Duration
	storeRetries int

	consecStoreErrs int32
	errs            chan<- error

	log *zerolog.Logger
}

// NewProcessor wires a poll-driven executor. errs, when non-nil, receives a
// single error after storeRetries consecutive store outages so the hosting
// process can decide to shut down.
func NewProcessor(
	dispatcher usecase.DispatchUseCase,
	jobs usecase.JobUseCase,
	responder adapter.AIResponder,
	pollInterval, storeBackoff time.Duration,
	storeRetries int,
	errs chan<- error,
	logger *zerolog.Logger,
) *Processor {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if storeBackoff <= 0 {
		storeBackoff = 2 * time.Second
	}
	if storeRetries <= 0 {
		storeRetries = 10
	}
	return &Processor{
		dispatcher:   dispatcher,
		jobs:         jobs,
		responder:    responder,
		workerID:     "worker-" + uuid.NewString(),
		pollInterval: pollInterval,
		storeBackoff: storeBackoff,
		storeRetries: storeRetries,
		errs:         errs,
		log:          logger,
	}
}

// Start runs the poll loop until ctx is done. Claimed jobs execute on the
// pool so one slow inference call never blocks claiming.
func (p *Processor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Str("worker_id", p.workerID).Dur("poll_interval", p.pollInterval).Msg("job processor started")
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Str("worker_id", p.workerID).Msg("job processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			})
		}
	}
}

func (p *Processor) processOne(ctx context.Context) {
	job, err := p.dispatcher.Claim(ctx, p.workerID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// queue empty
		case errors.Is(err, domain.ErrStoreUnavailable):
			p.onStoreError(err)
		default:
			p.log.Error().Err(err).Msg("claim failed")
		}
		return
	}
	atomic.StoreInt32(&p.consecStoreErrs, 0)

	p.log.Info().Str("job_id", job.ID).Str("job_type", string(job.Type)).Msg("processing job")
	start := time.Now()

	result, runErr := p.responder.GenerateResponse(ctx, adapter.ResponseRequest{
		JobID:            job.ID,
		OrganizationID:   job.OrganizationID,
		ConversationID:   job.ConversationID,
		TriggerMessageID: job.TriggerMessageID,
		Type:             job.Type,
		Metadata:         job.Metadata,
	})

	// Report on a background context: a shutdown mid-report should not
	// leave the outcome unrecorded.
	reportCtx := context.Background()
	if runErr != nil {
		_, err = p.jobs.ReportFailure(reportCtx, job.ID, model.JobFailure{
			Code:    failureCodeAI,
			Message: runErr.Error(),
		})
	} else {
		_, err = p.jobs.ReportSuccess(reportCtx, job.ID, model.JobResult{
			ResultMessageID:  result.MessageID,
			ResponseText:     result.Text,
			ConfidenceScore:  result.Confidence,
			FragmentsUsed:    result.FragmentsUsed,
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalCostMicros:  result.CostMicros,
		})
	}

	switch {
	case err == nil:
		p.log.Info().Str("job_id", job.ID).Bool("success", runErr == nil).Dur("duration", time.Since(start)).Msg("job finished")
	case errors.Is(err, domain.ErrStaleState):
		// Cancelled (or reaped) while the call was in flight; the
		// terminal row wins and this report is intentionally dropped.
		p.log.Debug().Str("job_id", job.ID).Msg("outcome report dropped, job already terminal")
	default:
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("outcome report failed")
	}
}

func (p *Processor) onStoreError(err error) {
	n := atomic.AddInt32(&p.consecStoreErrs, 1)
	p.log.Warn().Err(err).Int32("consecutive", n).Msg("job store unavailable, backing off")
	time.Sleep(p.storeBackoff)

	if int(n) >= p.storeRetries && p.errs != nil {
		select {
		case p.errs <- fmt.Errorf("job store unavailable after %d attempts: %w", n, err):
		default:
		}
	}
}
