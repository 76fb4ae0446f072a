package model

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	legal := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusRunning},
		{JobStatusPending, JobStatusCancelled},
		{JobStatusRunning, JobStatusCompleted},
		{JobStatusRunning, JobStatusFailed},
		{JobStatusRunning, JobStatusCancelled},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	all := []JobStatus{JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled}

	// No transition is legal out of a terminal state.
	for _, from := range []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled} {
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}

	// Spot-check illegal non-terminal edges.
	if CanTransition(JobStatusPending, JobStatusCompleted) {
		t.Error("pending must not complete without running first")
	}
	if CanTransition(JobStatusPending, JobStatusFailed) {
		t.Error("pending must not fail without running first")
	}
	if CanTransition(JobStatusRunning, JobStatusPending) {
		t.Error("running must not go back to pending")
	}
}

func TestJobStatusTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[JobStatus]bool{
		JobStatusPending:   false,
		JobStatusRunning:   false,
		JobStatusCompleted: true,
		JobStatusFailed:    true,
		JobStatusCancelled: true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	job := NewJob("org-1", "conv-1", JobTypeGenerateResponse, "msg-1")

	if job.ID == "" {
		t.Fatal("expected a generated id")
	}
	if len(job.ID) != 26 {
		t.Errorf("expected a 26-char ULID, got %q", job.ID)
	}
	if job.Status != JobStatusPending {
		t.Errorf("expected status pending, got %s", job.Status)
	}
	if job.StartedAt != nil || job.CompletedAt != nil {
		t.Error("a new job must have no started_at or completed_at")
	}
	if job.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
	if job.Metadata == nil {
		t.Error("expected a non-nil metadata bag")
	}

	seen := map[string]bool{job.ID: true}
	for i := 0; i < 100; i++ {
		other := NewJob("org-1", "conv-1", JobTypeSummarize, "")
		if seen[other.ID] {
			t.Fatalf("duplicate id %s", other.ID)
		}
		seen[other.ID] = true
	}
}

func TestRetryOf(t *testing.T) {
	t.Parallel()

	job := NewJob("org-1", "conv-1", JobTypeClassify, "")
	if _, ok := job.RetryOf(); ok {
		t.Error("fresh job must not report lineage")
	}

	job.Metadata[MetaRetryOf] = "pred-1"
	id, ok := job.RetryOf()
	if !ok || id != "pred-1" {
		t.Errorf("RetryOf() = (%q, %v), want (pred-1, true)", id, ok)
	}
}
