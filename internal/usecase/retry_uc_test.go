package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/adapter"
)

func seedFailed(t *testing.T, repo *memJobRepo) *model.Job {
	t.Helper()
	job := model.NewJob("org-1", "conv-1", model.JobTypeGenerateResponse, "msg-1")
	job.Status = model.JobStatusFailed
	now := time.Now().UTC()
	job.StartedAt = &now
	job.CompletedAt = &now
	job.ErrorCode = "LLM_TIMEOUT"
	job.ErrorMessage = "model did not answer"
	job.Metadata["locale"] = "fr"
	if err := repo.Insert(context.Background(), nil, job); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	return job
}

func TestRetryCreatesSuccessor(t *testing.T) {
	repo := newMemJobRepo()
	sink := &memAuditSink{}
	uc := NewRetryUseCase(repo, memTxManager{}, sink, testLogger())
	failed := seedFailed(t, repo)

	next, err := uc.Retry(context.Background(), failed.ID, "op-1")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}

	if next.ID == failed.ID {
		t.Fatal("successor must be a new row")
	}
	if next.Status != model.JobStatusPending {
		t.Errorf("status = %s, want pending", next.Status)
	}
	if next.StartedAt != nil || next.CompletedAt != nil {
		t.Error("successor must have nil timestamps")
	}
	if next.OrganizationID != failed.OrganizationID ||
		next.ConversationID != failed.ConversationID ||
		next.TriggerMessageID != failed.TriggerMessageID ||
		next.Type != failed.Type {
		t.Errorf("successor lost identity fields: %+v", next)
	}
	if next.ErrorCode != "" || next.ErrorMessage != "" {
		t.Error("successor must not inherit failure fields")
	}

	if got, ok := next.RetryOf(); !ok || got != failed.ID {
		t.Errorf("retry_of = %q, want %q", got, failed.ID)
	}
	if next.Metadata[model.MetaRetriedBy] != "op-1" {
		t.Errorf("retried_by = %q", next.Metadata[model.MetaRetriedBy])
	}
	if next.Metadata["locale"] != "fr" {
		t.Error("producer metadata must carry over")
	}

	// The predecessor row is untouched.
	orig, err := repo.FindByID(context.Background(), nil, failed.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if orig.Status != model.JobStatusFailed || orig.ErrorCode != "LLM_TIMEOUT" {
		t.Errorf("predecessor mutated: %+v", orig)
	}

	if len(sink.byAction(adapter.AuditJobRetried)) != 1 {
		t.Error("missing job_retried audit event")
	}
}

func TestRetryOnlyFailedJobs(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status model.JobStatus
	}{
		{"pending", model.JobStatusPending},
		{"running", model.JobStatusRunning},
		{"completed", model.JobStatusCompleted},
		{"cancelled", model.JobStatusCancelled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemJobRepo()
			uc := NewRetryUseCase(repo, memTxManager{}, &memAuditSink{}, testLogger())

			job := model.NewJob("org-1", "conv-1", model.JobTypeSummarize, "")
			job.Status = tc.status
			if err := repo.Insert(ctx, nil, job); err != nil {
				t.Fatalf("seed insert: %v", err)
			}

			if _, err := uc.Retry(ctx, job.ID, "op-1"); !errors.Is(err, domain.ErrNotRetryable) {
				t.Errorf("err = %v, want ErrNotRetryable", err)
			}
		})
	}
}

func TestRetryUnknownJob(t *testing.T) {
	uc := NewRetryUseCase(newMemJobRepo(), memTxManager{}, &memAuditSink{}, testLogger())
	if _, err := uc.Retry(context.Background(), "no-such-id", "op-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRetryRequiresActor(t *testing.T) {
	uc := NewRetryUseCase(newMemJobRepo(), memTxManager{}, &memAuditSink{}, testLogger())
	if _, err := uc.Retry(context.Background(), "some-id", ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

// A chain of failed attempts stays walkable through retry_of links, and each
// link points at its direct predecessor.
func TestRetryChainLineage(t *testing.T) {
	ctx := context.Background()
	repo := newMemJobRepo()
	jobUC := NewJobUseCase(repo, &memAuditSink{}, testLogger())
	dispatchUC := NewDispatchUseCase(repo, &memAuditSink{}, 0, testLogger())
	retryUC := NewRetryUseCase(repo, memTxManager{}, &memAuditSink{}, testLogger())

	first, err := jobUC.Enqueue(ctx, EnqueueParams{
		OrganizationID: "org-1",
		ConversationID: "conv-1",
		Type:           model.JobTypeGenerateResponse,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	prev := first
	for attempt := 0; attempt < 3; attempt++ {
		if _, err := dispatchUC.Claim(ctx, "worker-a"); err != nil {
			t.Fatalf("attempt %d claim: %v", attempt, err)
		}
		if _, err := jobUC.ReportFailure(ctx, prev.ID, model.JobFailure{Code: "FLAKY"}); err != nil {
			t.Fatalf("attempt %d fail: %v", attempt, err)
		}
		next, err := retryUC.Retry(ctx, prev.ID, "op-1")
		if err != nil {
			t.Fatalf("attempt %d retry: %v", attempt, err)
		}
		if got, _ := next.RetryOf(); got != prev.ID {
			t.Fatalf("attempt %d retry_of = %q, want %q", attempt, got, prev.ID)
		}
		prev = next
	}

	// Walk the chain back from the newest attempt to the root.
	hops := 0
	cur := prev
	for {
		parent, ok := cur.RetryOf()
		if !ok {
			break
		}
		var err error
		cur, err = jobUC.Get(ctx, parent)
		if err != nil {
			t.Fatalf("walk: %v", err)
		}
		hops++
	}
	if hops != 3 || cur.ID != first.ID {
		t.Errorf("chain walk: hops=%d root=%s, want 3 hops ending at %s", hops, cur.ID, first.ID)
	}
}
