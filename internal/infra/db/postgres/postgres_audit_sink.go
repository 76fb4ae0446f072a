package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"erp-ai-jobs/internal/domain/ports/adapter"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"
)

var _ adapter.AuditSink = (*auditSink)(nil)

// auditSink writes append-only audit_log rows. Rows are never updated or
// deleted by the engine; retention is an operator concern.
type auditSink struct {
	pool *pgxpool.Pool
}

func NewAuditSink(pool *pgxpool.Pool) *auditSink {
	return &auditSink{pool: pool}
}

func (s *auditSink) Record(ctx context.Context, ev adapter.AuditEvent) error {
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	const q = `
INSERT INTO audit_log (id, action, entity_type, entity_id, actor_id, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err = execSQL(ctx, s.pool, nil, q,
		ulid.Make().String(), ev.Action, ev.EntityType, ev.EntityID, ev.ActorID, details, time.Now().UTC())
	return err
}
