package adapter

import "context"

// Audit actions emitted by the engine.
const (
	AuditJobEnqueued  = "job_enqueued"
	AuditJobClaimed   = "job_claimed"
	AuditJobCompleted = "job_completed"
	AuditJobFailed    = "job_failed"
	AuditJobCancelled = "job_cancelled"
	AuditJobRetried   = "job_retried"
)

// AuditEvent describes one mutating operation on a job.
type AuditEvent struct {
	Action     string
	EntityType string
	EntityID   string
	ActorID    string
	Details    map[string]string
}

// AuditSink receives audit events. It is best-effort: a Record failure must
// never roll back or block the state transition that produced the event.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent) error
}
