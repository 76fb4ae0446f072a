package usecase

import (
	"context"

	"erp-ai-jobs/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

const auditEntityJob = "ai_job"

// auditEmitter pushes audit events to the configured sink. Audit is
// observability, not a transactional participant: a sink failure is logged
// and swallowed so it can never roll back or block a state transition.
type auditEmitter struct {
	sink adapter.AuditSink
	log  *zerolog.Logger
}

func newAuditEmitter(sink adapter.AuditSink, log *zerolog.Logger) *auditEmitter {
	return &auditEmitter{sink: sink, log: log}
}

func (e *auditEmitter) emit(ctx context.Context, action, jobID, actorID string, details map[string]string) {
	if e == nil || e.sink == nil {
		return
	}
	ev := adapter.AuditEvent{
		Action:     action,
		EntityType: auditEntityJob,
		EntityID:   jobID,
		ActorID:    actorID,
		Details:    details,
	}
	if err := e.sink.Record(ctx, ev); err != nil {
		e.log.Warn().Err(err).Str("action", action).Str("job_id", jobID).Msg("audit record failed")
	}
}
