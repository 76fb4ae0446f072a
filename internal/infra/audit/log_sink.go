package audit

import (
	"context"

	"erp-ai-jobs/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.AuditSink = (*LogSink)(nil)

// LogSink records audit events as structured log lines. It is the default
// sink when no durable audit store is configured.
type LogSink struct {
	log *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{log: logger}
}

func (s *LogSink) Record(_ context.Context, ev adapter.AuditEvent) error {
	e := s.log.Info().
		Str("audit_action", ev.Action).
		Str("entity_type", ev.EntityType).
		Str("entity_id", ev.EntityID).
		Str("actor_id", ev.ActorID)
	for k, v := range ev.Details {
		e = e.Str(k, v)
	}
	e.Msg("audit")
	return nil
}
