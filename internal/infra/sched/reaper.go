package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/repository"
	"erp-ai-jobs/internal/usecase"

	"github.com/rs/zerolog"
)

const failureCodeTimeout = "TIMEOUT"

const reapBatch = 50

// Reaper fails running jobs whose executor never reported an outcome. It
// uses the ordinary running->failed transition, so it loses gracefully when
// the real report arrives between the scan and the update (the stale report
// is skipped, not an error).
type Reaper struct {
	jobs           repository.JobRepository
	reports        usecase.JobUseCase
	interval       time.Duration
	runningTimeout time.Duration
	log            *zerolog.Logger
}

func NewReaper(jobs repository.JobRepository, reports usecase.JobUseCase, interval, runningTimeout time.Duration, logger *zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if runningTimeout <= 0 {
		runningTimeout = 10 * time.Minute
	}
	return &Reaper{
		jobs:           jobs,
		reports:        reports,
		interval:       interval,
		runningTimeout: runningTimeout,
		log:            logger,
	}
}

// Start runs the sweep loop until ctx is done.
func (r *Reaper) Start(ctx context.Context) {
	r.log.Info().Dur("interval", r.interval).Dur("running_timeout", r.runningTimeout).Msg("stuck-job reaper started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("stuck-job reaper stopping")
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if n, err := r.Sweep(sweepCtx); err != nil {
				r.log.Error().Err(err).Msg("reaper sweep failed")
			} else if n > 0 {
				r.log.Warn().Int("reaped", n).Msg("failed stuck running jobs")
			}
			cancel()
		}
	}
}

// Sweep fails every running job older than the timeout and returns how many
// it actually moved.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.runningTimeout)
	stale, err := r.jobs.ListStaleRunning(ctx, repository.NoTX, cutoff, reapBatch)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, job := range stale {
		_, err := r.reports.ReportFailure(ctx, job.ID, model.JobFailure{
			Code:    failureCodeTimeout,
			Message: fmt.Sprintf("no outcome reported within %s of claim", r.runningTimeout),
		})
		if errors.Is(err, domain.ErrStaleState) {
			continue // executor reported first, nothing to do
		}
		if err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}
