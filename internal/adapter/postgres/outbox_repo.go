package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// OutboxRepo implements domain.OutboxRepository: rows are written in the
// same transaction as the domain state change that produced them (callers
// pass a tx-bound Pool), then relayed out-of-band by the relay loop.
type OutboxRepo struct{ Pool PgxPool }

// NewOutboxRepo constructs an OutboxRepo with the given pool.
func NewOutboxRepo(p PgxPool) *OutboxRepo { return &OutboxRepo{Pool: p} }

func (r *OutboxRepo) Enqueue(ctx domain.Context, row domain.OutboxRow) error {
	tracer := otel.Tracer("repo.outbox")
	ctx, span := tracer.Start(ctx, "outbox.Enqueue")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "outbox_rows"),
	)

	id := row.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := row.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	q := `INSERT INTO outbox_rows (id, artifact_id, target, payload, dispatched, created_at)
	      VALUES ($1,$2,$3,$4,false,$5)`
	if _, err := r.Pool.Exec(ctx, q, id, row.ArtifactID, row.Target, row.Payload, now); err != nil {
		return fmt.Errorf("op=outbox.enqueue: %w", err)
	}
	return nil
}

// ClaimBatch selects up to limit undispatched rows with FOR UPDATE SKIP
// LOCKED. The query runs outside a transaction, so the row locks end when
// the query does; two relay instances polling at once can claim and send
// the same rows before either marks them dispatched.
func (r *OutboxRepo) ClaimBatch(ctx domain.Context, limit int) ([]domain.OutboxRow, error) {
	tracer := otel.Tracer("repo.outbox")
	ctx, span := tracer.Start(ctx, "outbox.ClaimBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "outbox_rows"),
	)

	q := `SELECT id, artifact_id, target, payload, dispatched, created_at, dispatched_at
	      FROM outbox_rows
	      WHERE dispatched=false
	      ORDER BY created_at ASC
	      FOR UPDATE SKIP LOCKED
	      LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=outbox.claim_batch: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxRow
	for rows.Next() {
		var o domain.OutboxRow
		if err := rows.Scan(&o.ID, &o.ArtifactID, &o.Target, &o.Payload, &o.Dispatched, &o.CreatedAt, &o.DispatchedAt); err != nil {
			return nil, fmt.Errorf("op=outbox.claim_batch.scan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=outbox.claim_batch.rows: %w", err)
	}
	return out, nil
}

func (r *OutboxRepo) MarkDispatched(ctx domain.Context, id string) error {
	tracer := otel.Tracer("repo.outbox")
	ctx, span := tracer.Start(ctx, "outbox.MarkDispatched")
	defer span.End()

	now := time.Now().UTC()
	q := `UPDATE outbox_rows SET dispatched=true, dispatched_at=$1 WHERE id=$2`
	tag, err := r.Pool.Exec(ctx, q, now, id)
	if err != nil {
		return fmt.Errorf("op=outbox.mark_dispatched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=outbox.mark_dispatched: %w", domain.ErrNotFound)
	}
	return nil
}
