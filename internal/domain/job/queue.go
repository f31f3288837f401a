package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthprep/healthprep/internal/platform/corerr"
	"github.com/healthprep/healthprep/internal/platform/db"
)

// Queue is the durable Postgres-backed FIFO+priority job queue. Claim uses
// SELECT ... FOR UPDATE SKIP LOCKED so multiple worker processes can poll
// the same table without contending on the same row.
type Queue struct {
	pool *pgxpool.Pool
}

func NewQueue(pool *pgxpool.Pool) *Queue { return &Queue{pool: pool} }

const jobColumns = `id, tenant_id, job_type, priority, status, input_payload, result_payload,
	error_message, progress_total, progress_done, cancel_requested, requested_by,
	created_at, started_at, finished_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var jobType, status string
	err := row.Scan(&j.ID, &j.TenantID, &jobType, &j.Priority, &status, &j.InputPayload, &j.ResultPayload,
		&j.ErrorMessage, &j.ProgressTotal, &j.ProgressDone, &j.CancelRequested, &j.RequestedBy,
		&j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "job not found")
		}
		return nil, fmt.Errorf("job: scan: %w", err)
	}
	j.JobType, j.Status = Type(jobType), Status(status)
	return &j, nil
}

// Enqueue inserts a new job in status=queued.
func (q *Queue) Enqueue(ctx context.Context, j *Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.InputPayload == nil {
		j.InputPayload = json.RawMessage(`{}`)
	}
	dbq := db.Resolve(ctx, q.pool)
	_, err := dbq.Exec(ctx, `
		INSERT INTO async_job (id, tenant_id, job_type, priority, status, input_payload, requested_by, progress_total)
		VALUES ($1,$2,$3,$4,'queued',$5,$6,$7)`,
		j.ID, j.TenantID, string(j.JobType), j.Priority, j.InputPayload, j.RequestedBy, j.ProgressTotal)
	if err != nil {
		return fmt.Errorf("job: enqueue: %w", err)
	}
	return nil
}

// Claim atomically picks the highest-priority, oldest queued job and marks
// it running, returning nil if the queue is empty. It must run in its own
// transaction so FOR UPDATE SKIP LOCKED holds the row lock only for the
// duration of the claim.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	var claimed *Job
	err := db.RunInTx(ctx, q.pool, func(ctx context.Context) error {
		dbq := db.Resolve(ctx, q.pool)
		row := dbq.QueryRow(ctx, `
			SELECT `+jobColumns+` FROM async_job
			WHERE status = 'queued'
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED`)
		j, err := scanJob(row)
		if err != nil {
			if corerr.Is(err, corerr.KindNotFound) {
				return nil
			}
			return err
		}

		if _, err := dbq.Exec(ctx, `UPDATE async_job SET status='running', started_at=NOW() WHERE id=$1`, j.ID); err != nil {
			return fmt.Errorf("job: mark running: %w", err)
		}
		j.Status = StatusRunning
		now := time.Now().UTC()
		j.StartedAt = &now
		claimed = j
		return nil
	})
	return claimed, err
}

func (q *Queue) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Job, error) {
	dbq := db.Resolve(ctx, q.pool)
	row := dbq.QueryRow(ctx, `SELECT `+jobColumns+` FROM async_job WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scanJob(row)
}

// UpdateProgress advances progress_done; used by long-running handlers to
// report incremental progress without waiting for completion.
func (q *Queue) UpdateProgress(ctx context.Context, id uuid.UUID, done, total int) error {
	dbq := db.Resolve(ctx, q.pool)
	_, err := dbq.Exec(ctx, `UPDATE async_job SET progress_done=$2, progress_total=$3 WHERE id=$1`, id, done, total)
	if err != nil {
		return fmt.Errorf("job: update progress: %w", err)
	}
	return nil
}

// Finish records a terminal outcome.
func (q *Queue) Finish(ctx context.Context, id uuid.UUID, status Status, result json.RawMessage, errMsg string) error {
	dbq := db.Resolve(ctx, q.pool)
	_, err := dbq.Exec(ctx, `
		UPDATE async_job SET status=$2, result_payload=$3, error_message=$4, finished_at=NOW()
		WHERE id=$1`, id, string(status), result, errMsg)
	if err != nil {
		return fmt.Errorf("job: finish: %w", err)
	}
	return nil
}

// RequestCancel sets cancel_requested; the worker pool is responsible for
// observing it promptly and stopping cooperatively.
func (q *Queue) RequestCancel(ctx context.Context, tenantID, id uuid.UUID) error {
	dbq := db.Resolve(ctx, q.pool)
	tag, err := dbq.Exec(ctx, `
		UPDATE async_job SET cancel_requested = TRUE
		WHERE tenant_id=$1 AND id=$2 AND status IN ('queued','running')`, tenantID, id)
	if err != nil {
		return fmt.Errorf("job: request cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corerr.New(corerr.KindNotFound, "job not found or already finished")
	}
	return nil
}

// IsCancelRequested polls the cancel_requested flag for a running job.
func (q *Queue) IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	dbq := db.Resolve(ctx, q.pool)
	var cancel bool
	err := dbq.QueryRow(ctx, `SELECT cancel_requested FROM async_job WHERE id=$1`, id).Scan(&cancel)
	if err != nil {
		return false, fmt.Errorf("job: check cancel requested: %w", err)
	}
	return cancel, nil
}

// CountQueuedForTenant reports how many jobs of jobType are currently
// queued or running for a tenant.
func (q *Queue) CountQueuedForTenant(ctx context.Context, tenantID uuid.UUID, jobType Type) (int, error) {
	dbq := db.Resolve(ctx, q.pool)
	var count int
	err := dbq.QueryRow(ctx, `
		SELECT COUNT(*) FROM async_job
		WHERE tenant_id=$1 AND job_type=$2 AND status IN ('queued','running')`,
		tenantID, string(jobType)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("job: count queued: %w", err)
	}
	return count, nil
}
