package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wholesalehub/orderbackbone/internal/domain"
	"github.com/wholesalehub/orderbackbone/internal/queue"
)

// QueueRepo implements domain.JobQueue against a jobs table using
// SELECT ... FOR UPDATE SKIP LOCKED for exactly-one-worker claim semantics.
type QueueRepo struct {
	Pool        PgxPool
	BaseBackoff time.Duration
	CapBackoff  time.Duration
}

// NewQueueRepo constructs a QueueRepo with the given pool and backoff bounds.
func NewQueueRepo(p PgxPool, baseBackoff, capBackoff time.Duration) *QueueRepo {
	if baseBackoff <= 0 {
		baseBackoff = 5 * time.Second
	}
	if capBackoff <= 0 {
		capBackoff = 10 * time.Minute
	}
	return &QueueRepo{Pool: p, BaseBackoff: baseBackoff, CapBackoff: capBackoff}
}

// Enqueue inserts a new WAITING job. If opts.IdempotencyKey collides with an
// existing non-terminal job on the same queue, the insert is a no-op and the
// existing job id is returned.
func (r *QueueRepo) Enqueue(ctx domain.Context, queueName string, payload []byte, opts domain.EnqueueOptions) (string, error) {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.Enqueue")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "jobs"),
	)

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	now := time.Now().UTC()
	nextRunAt := now.Add(opts.Delay)
	id := uuid.New().String()

	var idemKey any
	if opts.IdempotencyKey != "" {
		idemKey = opts.IdempotencyKey
	}

	q := `INSERT INTO jobs (id, queue_name, payload, idempotency_key, state, attempt, max_attempts, priority, next_run_at, last_error, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,1,$6,$7,$8,'',$9,$9)
	      ON CONFLICT (queue_name, idempotency_key) WHERE idempotency_key IS NOT NULL AND state NOT IN ('COMPLETED','FAILED','DLQ')
	      DO NOTHING
	      RETURNING id`
	row := r.Pool.QueryRow(ctx, q, id, queueName, payload, idemKey, domain.JobWaiting, opts.MaxAttempts, opts.Priority, nextRunAt, now)
	var returnedID string
	if err := row.Scan(&returnedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict: an equivalent non-terminal job already exists.
			existing, ferr := r.findByIdempotencyKey(ctx, queueName, opts.IdempotencyKey)
			if ferr != nil {
				return "", fmt.Errorf("op=queue.enqueue.find_existing: %w", ferr)
			}
			return existing, nil
		}
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	slog.Debug("job enqueued", slog.String("queue", queueName), slog.String("job_id", returnedID))
	return returnedID, nil
}

func (r *QueueRepo) findByIdempotencyKey(ctx domain.Context, queueName, key string) (string, error) {
	q := `SELECT id FROM jobs WHERE queue_name=$1 AND idempotency_key=$2 ORDER BY created_at DESC LIMIT 1`
	row := r.Pool.QueryRow(ctx, q, queueName, key)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("op=queue.find_idem: %w", err)
	}
	return id, nil
}

// ClaimNext atomically selects the lowest (next_run_at, -priority) WAITING
// job whose next_run_at <= now, flips it to RUNNING, and locks it.
func (r *QueueRepo) ClaimNext(ctx domain.Context, queueName, workerID string, now time.Time, jobTimeout time.Duration) (domain.Job, bool, error) {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.ClaimNext")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "jobs"),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return domain.Job{}, false, fmt.Errorf("op=queue.claim_next.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
				slog.Error("failed to rollback claim_next tx", slog.Any("error", rerr))
			}
		}
	}()

	selectQ := `SELECT id, queue_name, payload, COALESCE(idempotency_key,''), state, attempt, max_attempts, priority, next_run_at, last_error, created_at, updated_at
	            FROM jobs
	            WHERE queue_name=$1 AND state=$2 AND next_run_at <= $3
	            ORDER BY next_run_at ASC, priority DESC
	            FOR UPDATE SKIP LOCKED
	            LIMIT 1`
	row := tx.QueryRow(ctx, selectQ, queueName, domain.JobWaiting, now)
	var j domain.Job
	if err := row.Scan(&j.ID, &j.QueueName, &j.Payload, &j.IdempotencyKey, &j.State, &j.Attempt, &j.MaxAttempts, &j.Priority, &j.NextRunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, fmt.Errorf("op=queue.claim_next.select: %w", err)
	}

	lockExpires := now.Add(jobTimeout)
	updateQ := `UPDATE jobs SET state=$1, locked_by=$2, lock_expires_at=$3, updated_at=$4 WHERE id=$5`
	if _, err := tx.Exec(ctx, updateQ, domain.JobRunning, workerID, lockExpires, now, j.ID); err != nil {
		return domain.Job{}, false, fmt.Errorf("op=queue.claim_next.update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Job{}, false, fmt.Errorf("op=queue.claim_next.commit: %w", err)
	}
	committed = true

	j.State = domain.JobRunning
	j.LockedBy = workerID
	j.LockExpiresAt = lockExpires
	return j, true, nil
}

// Ack marks a job COMPLETED.
func (r *QueueRepo) Ack(ctx domain.Context, jobID string) error {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.Ack")
	defer span.End()
	q := `UPDATE jobs SET state=$1, updated_at=$2 WHERE id=$3`
	if _, err := r.Pool.Exec(ctx, q, domain.JobCompleted, time.Now().UTC(), jobID); err != nil {
		return fmt.Errorf("op=queue.ack: %w", err)
	}
	return nil
}

// Nack reschedules a job with exponential backoff and jitter, or moves it to
// the DLQ if it has exhausted max_attempts.
func (r *QueueRepo) Nack(ctx domain.Context, jobID string, cause error) error {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.Nack")
	defer span.End()

	causeMsg := ""
	if cause != nil {
		causeMsg = cause.Error()
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("op=queue.nack.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `SELECT attempt, max_attempts FROM jobs WHERE id=$1 FOR UPDATE`, jobID)
	var attempt, maxAttempts int
	if err := row.Scan(&attempt, &maxAttempts); err != nil {
		return fmt.Errorf("op=queue.nack.select: %w", err)
	}

	now := time.Now().UTC()
	if attempt < maxAttempts {
		delay := r.backoffDelay(attempt)
		q := `UPDATE jobs SET state=$1, attempt=attempt+1, next_run_at=$2, locked_by='', lock_expires_at=$3, last_error=$4, updated_at=$3 WHERE id=$5`
		if _, err := tx.Exec(ctx, q, domain.JobWaiting, now.Add(delay), now, causeMsg, jobID); err != nil {
			return fmt.Errorf("op=queue.nack.update: %w", err)
		}
	} else {
		q := `UPDATE jobs SET state=$1, last_error=$2, updated_at=$3 WHERE id=$4`
		if _, err := tx.Exec(ctx, q, domain.JobDLQ, causeMsg, now, jobID); err != nil {
			return fmt.Errorf("op=queue.nack.dlq: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=queue.nack.commit: %w", err)
	}
	committed = true
	return nil
}

func (r *QueueRepo) backoffDelay(attempt int) time.Duration {
	return queue.BackoffDelay(attempt, r.BaseBackoff, r.CapBackoff)
}

// Reap reclaims RUNNING jobs whose lock has expired, nacking each with a
// synthetic "lock expired" error so they follow the normal retry/DLQ path.
func (r *QueueRepo) Reap(ctx domain.Context, now time.Time) (int, error) {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.Reap")
	defer span.End()

	q := `SELECT id FROM jobs WHERE state=$1 AND lock_expires_at < $2`
	rows, err := r.Pool.Query(ctx, q, domain.JobRunning, now)
	if err != nil {
		return 0, fmt.Errorf("op=queue.reap.select: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("op=queue.reap.scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("op=queue.reap.rows: %w", err)
	}

	for _, id := range ids {
		if err := r.Nack(ctx, id, fmt.Errorf("lock expired")); err != nil {
			return 0, fmt.Errorf("op=queue.reap.nack: %w", err)
		}
	}
	return len(ids), nil
}

// RetryFromDLQ returns a DLQ job to WAITING with attempt reset to 1.
func (r *QueueRepo) RetryFromDLQ(ctx domain.Context, jobID string) error {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.RetryFromDLQ")
	defer span.End()
	now := time.Now().UTC()
	q := `UPDATE jobs SET state=$1, attempt=1, next_run_at=$2, last_error='', locked_by='', updated_at=$2 WHERE id=$3 AND state=$4`
	tag, err := r.Pool.Exec(ctx, q, domain.JobWaiting, now, jobID, domain.JobDLQ)
	if err != nil {
		return fmt.Errorf("op=queue.retry_from_dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=queue.retry_from_dlq: %w", domain.ErrNotFound)
	}
	return nil
}
