package repository

import (
	"context"
	"time"

	"erp-ai-jobs/internal/domain/model"
)

// JobPatch is the set of columns a conditional update may write. Nil
// pointers and nil maps are left untouched; Status is always written.
type JobPatch struct {
	Status      model.JobStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *model.JobResult
	Failure     *model.JobFailure
	// ErrorMessage is set on cancellation without an accompanying Failure.
	ErrorMessage string
	// Metadata, when non-nil, replaces the stored bag wholesale.
	Metadata map[string]string
}

// JobFilter narrows list and count queries. Date bounds are inclusive.
type JobFilter struct {
	Status   *model.JobStatus
	Type     *model.JobType
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// JobRepository is the durable job store. ConditionalUpdate is the only
// mutation path for status: it writes the patch iff the row's status still
// equals expected, and reports how many rows matched. Zero rows means the
// caller lost a race and must re-read before deciding what to do next.
type JobRepository interface {
	Insert(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	ConditionalUpdate(ctx context.Context, tx Tx, id string, expected model.JobStatus, patch JobPatch) (int64, error)

	// ListPending returns up to limit pending jobs ordered by
	// (created_at, id) ascending — the dispatcher's claim candidates.
	ListPending(ctx context.Context, tx Tx, limit int) ([]*model.Job, error)

	// ListStaleRunning returns running jobs whose started_at is older than
	// the cutoff, for the stuck-job reaper.
	ListStaleRunning(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Job, error)

	ListByOrg(ctx context.Context, tx Tx, orgID string, f JobFilter) ([]*model.Job, error)
	CountByStatus(ctx context.Context, tx Tx, orgID string, f JobFilter) (map[model.JobStatus]int, error)
}
