package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `
id, organization_id, conversation_id, trigger_message_id, job_type, status,
result_message_id, response_text, confidence_score, fragments_used,
prompt_tokens, completion_tokens, total_cost_micros,
error_code, error_message, metadata, created_at, started_at, completed_at`

func (r *jobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	const q = `
INSERT INTO ai_jobs (
  id, organization_id, conversation_id, trigger_message_id, job_type, status,
  metadata, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.OrganizationID, job.ConversationID, job.TriggerMessageID,
		string(job.Type), string(job.Status), meta, job.CreatedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM ai_jobs WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// ConditionalUpdate writes the patch iff the row still holds the expected
// status. The WHERE clause on (id, status) is what makes every transition a
// single-row compare-and-swap; callers interpret 0 affected rows as a lost
// race.
func (r *jobRepo) ConditionalUpdate(ctx context.Context, tx repository.Tx, id string, expected model.JobStatus, patch repository.JobPatch) (int64, error) {
	set := []string{"status = $3"}
	args := []interface{}{id, string(expected), string(patch.Status)}
	next := 4

	add := func(col string, val interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", col, next))
		args = append(args, val)
		next++
	}

	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
	}
	if patch.CompletedAt != nil {
		add("completed_at", *patch.CompletedAt)
	}
	if res := patch.Result; res != nil {
		add("result_message_id", res.ResultMessageID)
		add("response_text", res.ResponseText)
		add("confidence_score", res.ConfidenceScore)
		add("fragments_used", res.FragmentsUsed)
		add("prompt_tokens", res.PromptTokens)
		add("completion_tokens", res.CompletionTokens)
		add("total_cost_micros", res.TotalCostMicros)
	}
	if fail := patch.Failure; fail != nil {
		add("error_code", fail.Code)
		add("error_message", fail.Message)
	}
	if patch.ErrorMessage != "" && patch.Failure == nil {
		add("error_message", patch.ErrorMessage)
	}
	if patch.Metadata != nil {
		meta, err := json.Marshal(patch.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata: %w", err)
		}
		add("metadata", meta)
	}

	q := fmt.Sprintf(`UPDATE ai_jobs SET %s WHERE id = $1 AND status = $2;`, strings.Join(set, ", "))
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *jobRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := pickRows(ctx, r.pool, tx, `
SELECT `+jobColumns+`
FROM ai_jobs
WHERE status = 'pending'
ORDER BY created_at, id
LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func (r *jobRepo) ListStaleRunning(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := pickRows(ctx, r.pool, tx, `
SELECT `+jobColumns+`
FROM ai_jobs
WHERE status = 'running' AND started_at < $1
ORDER BY started_at, id
LIMIT $2;`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func (r *jobRepo) ListByOrg(ctx context.Context, tx repository.Tx, orgID string, f repository.JobFilter) ([]*model.Job, error) {
	where, args := buildFilter(orgID, f)
	q := `SELECT ` + jobColumns + ` FROM ai_jobs WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := pickRows(ctx, r.pool, tx, q+";", args...)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func (r *jobRepo) CountByStatus(ctx context.Context, tx repository.Tx, orgID string, f repository.JobFilter) (map[model.JobStatus]int, error) {
	where, args := buildFilter(orgID, f)
	rows, err := pickRows(ctx, r.pool, tx,
		`SELECT status, COUNT(*) FROM ai_jobs WHERE `+where+` GROUP BY status;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.JobStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// buildFilter renders the shared WHERE clause for list and count queries.
// Date bounds are inclusive.
func buildFilter(orgID string, f repository.JobFilter) (string, []interface{}) {
	where := []string{"organization_id = $1"}
	args := []interface{}{orgID}
	next := 2

	cond := func(expr string, val interface{}) {
		where = append(where, fmt.Sprintf(expr, next))
		args = append(args, val)
		next++
	}

	if f.Status != nil {
		cond("status = $%d", string(*f.Status))
	}
	if f.Type != nil {
		cond("job_type = $%d", string(*f.Type))
	}
	if f.DateFrom != nil {
		cond("created_at >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		cond("created_at <= $%d", *f.DateTo)
	}
	return strings.Join(where, " AND "), args
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j       model.Job
		typ     string
		status  string
		meta    []byte
		resMsg  *string
		resTxt  *string
		conf    *float64
		frags   []string
		pTok    *int
		cTok    *int
		cost    *int64
		errCode *string
		errMsg  *string
	)
	err := row.Scan(
		&j.ID, &j.OrganizationID, &j.ConversationID, &j.TriggerMessageID, &typ, &status,
		&resMsg, &resTxt, &conf, &frags,
		&pTok, &cTok, &cost,
		&errCode, &errMsg, &meta, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}

	j.Type = model.JobType(typ)
	j.Status = model.JobStatus(status)
	j.FragmentsUsed = frags
	if resMsg != nil {
		j.ResultMessageID = *resMsg
	}
	if resTxt != nil {
		j.ResponseText = *resTxt
	}
	if conf != nil {
		j.ConfidenceScore = *conf
	}
	if pTok != nil {
		j.PromptTokens = *pTok
	}
	if cTok != nil {
		j.CompletionTokens = *cTok
	}
	if cost != nil {
		j.TotalCostMicros = *cost
	}
	if errCode != nil {
		j.ErrorCode = *errCode
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	j.Metadata = map[string]string{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*model.Job, error) {
	defer rows.Close()
	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
