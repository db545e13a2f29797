package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// ArtifactRepo persists UploadedArtifact rows, implementing
// domain.ArtifactRepository with an optimistic-concurrency Update.
type ArtifactRepo struct{ Pool PgxPool }

// NewArtifactRepo constructs an ArtifactRepo with the given pool.
func NewArtifactRepo(p PgxPool) *ArtifactRepo { return &ArtifactRepo{Pool: p} }

func (r *ArtifactRepo) Create(ctx domain.Context, a domain.UploadedArtifact) (string, error) {
	tracer := otel.Tracer("repo.artifacts")
	ctx, span := tracer.Start(ctx, "artifacts.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "uploaded_artifacts"),
	)

	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	extractedJSON, err := json.Marshal(versioned(a.ExtractedItems))
	if err != nil {
		return "", fmt.Errorf("op=artifact.create.marshal_extracted: %w", err)
	}
	normalizedJSON, err := json.Marshal(versioned(a.NormalizedItems))
	if err != nil {
		return "", fmt.Errorf("op=artifact.create.marshal_normalized: %w", err)
	}
	attemptsJSON, err := json.Marshal(a.AttemptCounts)
	if err != nil {
		return "", fmt.Errorf("op=artifact.create.marshal_attempts: %w", err)
	}

	q := `INSERT INTO uploaded_artifacts
	      (id, retailer_id, blob_ref, source_message_id, status, raw_text, extracted_items, normalized_items, last_error, attempt_counts, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`
	_, err = r.Pool.Exec(ctx, q, id, a.RetailerID, a.BlobRef, nullable(a.SourceMessageID), domain.StatusReceived, a.RawText, extractedJSON, normalizedJSON, a.LastError, attemptsJSON, now)
	if err != nil {
		return "", fmt.Errorf("op=artifact.create: %w", err)
	}
	return id, nil
}

func (r *ArtifactRepo) Get(ctx domain.Context, id string) (domain.UploadedArtifact, error) {
	tracer := otel.Tracer("repo.artifacts")
	ctx, span := tracer.Start(ctx, "artifacts.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "uploaded_artifacts"),
	)

	q := `SELECT id, retailer_id, blob_ref, COALESCE(source_message_id,''), status, raw_text, extracted_items, normalized_items, last_error, attempt_counts, created_at, updated_at
	      FROM uploaded_artifacts WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	return scanArtifact(row)
}

func (r *ArtifactRepo) FindBySourceMessageID(ctx domain.Context, source, externalID string) (domain.UploadedArtifact, bool, error) {
	tracer := otel.Tracer("repo.artifacts")
	ctx, span := tracer.Start(ctx, "artifacts.FindBySourceMessageID")
	defer span.End()

	q := `SELECT a.id, a.retailer_id, a.blob_ref, COALESCE(a.source_message_id,''), a.status, a.raw_text, a.extracted_items, a.normalized_items, a.last_error, a.attempt_counts, a.created_at, a.updated_at
	      FROM uploaded_artifacts a
	      JOIN webhook_dedupe_entries w ON w.artifact_id = a.id
	      WHERE w.source=$1 AND w.external_id=$2`
	row := r.Pool.QueryRow(ctx, q, source, externalID)
	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UploadedArtifact{}, false, nil
		}
		return domain.UploadedArtifact{}, false, err
	}
	return a, true, nil
}

func (r *ArtifactRepo) RegisterWebhookDedupe(ctx domain.Context, entry domain.WebhookDedupeEntry) error {
	tracer := otel.Tracer("repo.artifacts")
	ctx, span := tracer.Start(ctx, "artifacts.RegisterWebhookDedupe")
	defer span.End()

	q := `INSERT INTO webhook_dedupe_entries (source, external_id, artifact_id, created_at) VALUES ($1,$2,$3,$4)`
	_, err := r.Pool.Exec(ctx, q, entry.Source, entry.ExternalID, entry.ArtifactID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=artifact.register_webhook_dedupe: %w", err)
	}
	return nil
}

// Update performs an optimistic-concurrency write: it fails with
// domain.ErrConflict if the stored updated_at does not match expectedUpdatedAt.
func (r *ArtifactRepo) Update(ctx domain.Context, a domain.UploadedArtifact, expectedUpdatedAt time.Time) error {
	tracer := otel.Tracer("repo.artifacts")
	ctx, span := tracer.Start(ctx, "artifacts.Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "uploaded_artifacts"),
	)

	extractedJSON, err := json.Marshal(versioned(a.ExtractedItems))
	if err != nil {
		return fmt.Errorf("op=artifact.update.marshal_extracted: %w", err)
	}
	normalizedJSON, err := json.Marshal(versioned(a.NormalizedItems))
	if err != nil {
		return fmt.Errorf("op=artifact.update.marshal_normalized: %w", err)
	}
	attemptsJSON, err := json.Marshal(a.AttemptCounts)
	if err != nil {
		return fmt.Errorf("op=artifact.update.marshal_attempts: %w", err)
	}

	now := time.Now().UTC()
	q := `UPDATE uploaded_artifacts
	      SET status=$1, raw_text=$2, extracted_items=$3, normalized_items=$4, last_error=$5, attempt_counts=$6, updated_at=$7
	      WHERE id=$8 AND updated_at=$9`
	tag, err := r.Pool.Exec(ctx, q, a.Status, a.RawText, extractedJSON, normalizedJSON, a.LastError, attemptsJSON, now, a.ID, expectedUpdatedAt)
	if err != nil {
		return fmt.Errorf("op=artifact.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=artifact.update: %w", domain.ErrConflict)
	}
	return nil
}

func scanArtifact(row pgx.Row) (domain.UploadedArtifact, error) {
	var a domain.UploadedArtifact
	var extractedJSON, normalizedJSON, attemptsJSON []byte
	if err := row.Scan(&a.ID, &a.RetailerID, &a.BlobRef, &a.SourceMessageID, &a.Status, &a.RawText, &extractedJSON, &normalizedJSON, &a.LastError, &attemptsJSON, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UploadedArtifact{}, fmt.Errorf("op=artifact.scan: %w", domain.ErrNotFound)
		}
		return domain.UploadedArtifact{}, fmt.Errorf("op=artifact.scan: %w", err)
	}
	var extractedEnv versionedEnvelope[domain.ExtractedItem]
	if err := json.Unmarshal(extractedJSON, &extractedEnv); err != nil || extractedEnv.V != 1 {
		return domain.UploadedArtifact{}, fmt.Errorf("op=artifact.scan.unmarshal_extracted: %w", domain.ErrSchemaInvalid)
	}
	var normalizedEnv versionedEnvelope[domain.NormalizedItem]
	if err := json.Unmarshal(normalizedJSON, &normalizedEnv); err != nil || normalizedEnv.V != 1 {
		return domain.UploadedArtifact{}, fmt.Errorf("op=artifact.scan.unmarshal_normalized: %w", domain.ErrSchemaInvalid)
	}
	a.ExtractedItems = extractedEnv.Items
	a.NormalizedItems = normalizedEnv.Items
	if err := json.Unmarshal(attemptsJSON, &a.AttemptCounts); err != nil {
		a.AttemptCounts = map[string]int{}
	}
	return a, nil
}

// versionedEnvelope wraps embedded JSON list columns with a schema version
// header; readers reject unknown versions.
type versionedEnvelope[T any] struct {
	V     int `json:"v"`
	Items []T `json:"items"`
}

func versioned[T any](items []T) versionedEnvelope[T] {
	return versionedEnvelope[T]{V: 1, Items: items}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
