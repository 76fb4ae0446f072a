package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/adapter"
	"erp-ai-jobs/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- In-memory JobRepository ----
//
// memJobRepo mirrors the store contract the engine relies on: every
// ConditionalUpdate is an atomic compare-and-swap under one mutex. Error
// hooks let tests inject store outages; beforeCAS lets tests lose races on
// purpose.

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job

	insertErr error
	findErr   error
	listErr   error

	beforeCAS func(id string)
}

var _ repository.JobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*model.Job{}}
}

func cloneJob(j *model.Job) *model.Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	c.Metadata = map[string]string{}
	for k, v := range j.Metadata {
		c.Metadata[k] = v
	}
	c.FragmentsUsed = append([]string(nil), j.FragmentsUsed...)
	return &c
}

func (r *memJobRepo) Insert(_ context.Context, _ repository.Tx, job *model.Job) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *memJobRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(j), nil
}

func (r *memJobRepo) ConditionalUpdate(_ context.Context, _ repository.Tx, id string, expected model.JobStatus, patch repository.JobPatch) (int64, error) {
	if r.beforeCAS != nil {
		r.beforeCAS(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.Status != expected {
		return 0, nil
	}

	j.Status = patch.Status
	if patch.StartedAt != nil {
		t := *patch.StartedAt
		j.StartedAt = &t
	}
	if patch.CompletedAt != nil {
		t := *patch.CompletedAt
		j.CompletedAt = &t
	}
	if res := patch.Result; res != nil {
		j.ResultMessageID = res.ResultMessageID
		j.ResponseText = res.ResponseText
		j.ConfidenceScore = res.ConfidenceScore
		j.FragmentsUsed = append([]string(nil), res.FragmentsUsed...)
		j.PromptTokens = res.PromptTokens
		j.CompletionTokens = res.CompletionTokens
		j.TotalCostMicros = res.TotalCostMicros
	}
	if fail := patch.Failure; fail != nil {
		j.ErrorCode = fail.Code
		j.ErrorMessage = fail.Message
	}
	if patch.ErrorMessage != "" && patch.Failure == nil {
		j.ErrorMessage = patch.ErrorMessage
	}
	if patch.Metadata != nil {
		j.Metadata = map[string]string{}
		for k, v := range patch.Metadata {
			j.Metadata[k] = v
		}
	}
	return 1, nil
}

func (r *memJobRepo) ListPending(_ context.Context, _ repository.Tx, limit int) ([]*model.Job, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Job
	for _, j := range r.jobs {
		if j.Status == model.JobStatusPending {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memJobRepo) ListStaleRunning(_ context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Job
	for _, j := range r.jobs {
		if j.Status == model.JobStatusRunning && j.StartedAt != nil && j.StartedAt.Before(olderThan) {
			out = append(out, cloneJob(j))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesFilter(j *model.Job, f repository.JobFilter) bool {
	if f.Status != nil && j.Status != *f.Status {
		return false
	}
	if f.Type != nil && j.Type != *f.Type {
		return false
	}
	if f.DateFrom != nil && j.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && j.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}

func (r *memJobRepo) ListByOrg(_ context.Context, _ repository.Tx, orgID string, f repository.JobFilter) ([]*model.Job, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Job
	for _, j := range r.jobs {
		if j.OrganizationID == orgID && matchesFilter(j, f) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (r *memJobRepo) CountByStatus(_ context.Context, _ repository.Tx, orgID string, f repository.JobFilter) (map[model.JobStatus]int, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := map[model.JobStatus]int{}
	for _, j := range r.jobs {
		if j.OrganizationID == orgID && matchesFilter(j, f) {
			counts[j.Status]++
		}
	}
	return counts, nil
}

// snapshot returns a copy of every stored job, for invariant sweeps.
func (r *memJobRepo) snapshot() []*model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, cloneJob(j))
	}
	return out
}

// ---- Recording AuditSink ----

type memAuditSink struct {
	mu     sync.Mutex
	events []adapter.AuditEvent
	err    error
}

var _ adapter.AuditSink = (*memAuditSink)(nil)

func (s *memAuditSink) Record(_ context.Context, ev adapter.AuditEvent) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memAuditSink) byAction(action string) []adapter.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []adapter.AuditEvent
	for _, ev := range s.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

// ---- Pass-through TransactionManager ----

type memTxManager struct{}

var _ repository.TransactionManager = (*memTxManager)(nil)

func (memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
