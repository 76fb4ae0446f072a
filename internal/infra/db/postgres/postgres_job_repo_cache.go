package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/repository"
	"erp-ai-jobs/internal/infra/metrics"
	red "erp-ai-jobs/internal/infra/redis"
)

var _ repository.JobRepository = (*jobRepoCacheDecorator)(nil)

// jobRepoCacheDecorator caches only CountByStatus behind a short TTL. Stats
// snapshots are explicitly point-in-time reads, so serving a few-seconds-old
// distribution is within contract; job rows themselves are never cached
// because the dispatcher and state machine must always see live status.
type jobRepoCacheDecorator struct {
	inner repository.JobRepository
	cache red.Client
	ttl   time.Duration
}

func NewJobRepoCacheDecorator(inner repository.JobRepository, cache red.Client) repository.JobRepository {
	return &jobRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   5 * time.Second,
	}
}

func (d *jobRepoCacheDecorator) CountByStatus(ctx context.Context, tx repository.Tx, orgID string, f repository.JobFilter) (map[model.JobStatus]int, error) {
	key := statsKey(orgID, f)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var counts map[model.JobStatus]int
		if json.Unmarshal([]byte(val), &counts) == nil {
			metrics.IncCacheRequest("job_stats", "hit")
			return counts, nil
		}
	}

	metrics.IncCacheRequest("job_stats", "miss")
	counts, err := d.inner.CountByStatus(ctx, tx, orgID, f)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(counts); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return counts, nil
}

func statsKey(orgID string, f repository.JobFilter) string {
	typ := ""
	if f.Type != nil {
		typ = string(*f.Type)
	}
	status := ""
	if f.Status != nil {
		status = string(*f.Status)
	}
	from, to := "", ""
	if f.DateFrom != nil {
		from = f.DateFrom.UTC().Format(time.RFC3339)
	}
	if f.DateTo != nil {
		to = f.DateTo.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("jobstats:%s:%s:%s:%s:%s", orgID, status, typ, from, to)
}

// Pass-through methods: mutations and live reads always hit the store.

func (d *jobRepoCacheDecorator) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	return d.inner.Insert(ctx, tx, job)
}

func (d *jobRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	return d.inner.FindByID(ctx, tx, id)
}

func (d *jobRepoCacheDecorator) ConditionalUpdate(ctx context.Context, tx repository.Tx, id string, expected model.JobStatus, patch repository.JobPatch) (int64, error) {
	return d.inner.ConditionalUpdate(ctx, tx, id, expected, patch)
}

func (d *jobRepoCacheDecorator) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	return d.inner.ListPending(ctx, tx, limit)
}

func (d *jobRepoCacheDecorator) ListStaleRunning(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Job, error) {
	return d.inner.ListStaleRunning(ctx, tx, olderThan, limit)
}

func (d *jobRepoCacheDecorator) ListByOrg(ctx context.Context, tx repository.Tx, orgID string, f repository.JobFilter) ([]*model.Job, error) {
	return d.inner.ListByOrg(ctx, tx, orgID, f)
}
