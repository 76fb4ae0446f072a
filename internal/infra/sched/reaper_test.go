package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/repository"
	"erp-ai-jobs/internal/usecase"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type stubJobRepo struct {
	repository.JobRepository

	stale   []*model.Job
	listErr error
}

func (r *stubJobRepo) ListStaleRunning(_ context.Context, _ repository.Tx, _ time.Time, _ int) ([]*model.Job, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.stale, nil
}

type stubReporter struct {
	usecase.JobUseCase

	failed  []string
	failErr map[string]error
}

func (r *stubReporter) ReportFailure(_ context.Context, jobID string, fail model.JobFailure) (*model.Job, error) {
	if err := r.failErr[jobID]; err != nil {
		return nil, err
	}
	r.failed = append(r.failed, jobID)
	return &model.Job{ID: jobID, Status: model.JobStatusFailed, ErrorCode: fail.Code}, nil
}

func staleJob(id string) *model.Job {
	started := time.Now().UTC().Add(-time.Hour)
	return &model.Job{ID: id, Status: model.JobStatusRunning, StartedAt: &started}
}

func TestSweepFailsStuckJobs(t *testing.T) {
	repo := &stubJobRepo{stale: []*model.Job{staleJob("job-1"), staleJob("job-2")}}
	reporter := &stubReporter{}
	r := NewReaper(repo, reporter, time.Minute, 10*time.Minute, testLogger())

	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("reaped = %d, want 2", n)
	}
	if len(reporter.failed) != 2 || reporter.failed[0] != "job-1" || reporter.failed[1] != "job-2" {
		t.Errorf("failed jobs = %v", reporter.failed)
	}
}

// The executor reports between the scan and the reaper's failure write: the
// stale report is skipped, not counted, not an error.
func TestSweepSkipsRacedJob(t *testing.T) {
	repo := &stubJobRepo{stale: []*model.Job{staleJob("job-1"), staleJob("job-2")}}
	reporter := &stubReporter{failErr: map[string]error{"job-1": domain.ErrStaleState}}
	r := NewReaper(repo, reporter, time.Minute, 10*time.Minute, testLogger())

	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("reaped = %d, want 1", n)
	}
	if len(reporter.failed) != 1 || reporter.failed[0] != "job-2" {
		t.Errorf("failed jobs = %v", reporter.failed)
	}
}

func TestSweepNothingStale(t *testing.T) {
	r := NewReaper(&stubJobRepo{}, &stubReporter{}, time.Minute, 10*time.Minute, testLogger())

	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("reaped = %d, want 0", n)
	}
}

func TestSweepStoreError(t *testing.T) {
	repo := &stubJobRepo{listErr: domain.ErrStoreUnavailable}
	r := NewReaper(repo, &stubReporter{}, time.Minute, 10*time.Minute, testLogger())

	if _, err := r.Sweep(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}
