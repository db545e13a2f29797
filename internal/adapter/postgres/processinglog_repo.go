package postgres

import (
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// ProcessingLogRepo appends audit entries keyed by ULID for natural
// within-artifact monotonic ordering.
type ProcessingLogRepo struct{ Pool PgxPool }

// NewProcessingLogRepo constructs a ProcessingLogRepo with the given pool.
func NewProcessingLogRepo(p PgxPool) *ProcessingLogRepo { return &ProcessingLogRepo{Pool: p} }

func (r *ProcessingLogRepo) Append(ctx domain.Context, entry domain.ProcessingLogEntry) error {
	tracer := otel.Tracer("repo.processing_log")
	ctx, span := tracer.Start(ctx, "processing_log.Append")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "processing_log_entries"),
	)

	id := entry.ID
	if id == "" {
		id = ulid.Make().String()
	}
	q := `INSERT INTO processing_log_entries (id, artifact_id, stage, level, message, details, at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := r.Pool.Exec(ctx, q, id, entry.ArtifactID, entry.Stage, entry.Level, entry.Message, entry.Details, entry.At); err != nil {
		return fmt.Errorf("op=processing_log.append: %w", err)
	}
	return nil
}

func (r *ProcessingLogRepo) ListByArtifact(ctx domain.Context, artifactID string) ([]domain.ProcessingLogEntry, error) {
	tracer := otel.Tracer("repo.processing_log")
	ctx, span := tracer.Start(ctx, "processing_log.ListByArtifact")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "processing_log_entries"),
	)

	q := `SELECT id, artifact_id, stage, level, message, details, at
	      FROM processing_log_entries WHERE artifact_id=$1 ORDER BY id ASC`
	rows, err := r.Pool.Query(ctx, q, artifactID)
	if err != nil {
		return nil, fmt.Errorf("op=processing_log.list: %w", err)
	}
	defer rows.Close()

	var out []domain.ProcessingLogEntry
	for rows.Next() {
		var e domain.ProcessingLogEntry
		if err := rows.Scan(&e.ID, &e.ArtifactID, &e.Stage, &e.Level, &e.Message, &e.Details, &e.At); err != nil {
			return nil, fmt.Errorf("op=processing_log.list.scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=processing_log.list.rows: %w", err)
	}
	return out, nil
}
