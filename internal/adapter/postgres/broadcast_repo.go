package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// BroadcastRepo persists append-only RFQBroadcast rows.
type BroadcastRepo struct{ Pool PgxPool }

// NewBroadcastRepo constructs a BroadcastRepo with the given pool.
func NewBroadcastRepo(p PgxPool) *BroadcastRepo { return &BroadcastRepo{Pool: p} }

func (r *BroadcastRepo) Create(ctx domain.Context, b domain.RFQBroadcast) (string, error) {
	tracer := otel.Tracer("repo.broadcast")
	ctx, span := tracer.Start(ctx, "broadcast.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "rfq_broadcasts"),
	)

	id := b.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO rfq_broadcasts
	      (id, uploaded_artifact_id, retailer_id, product_id, vendor_id, requested_qty, unit, status, vendor_rank, score_snapshot, weights_snapshot, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.Pool.Exec(ctx, q, id, b.UploadedArtifactID, b.RetailerID, b.ProductID, b.VendorID, b.RequestedQty, b.Unit, b.Status, b.VendorRank, b.ScoreSnapshot, b.WeightsSnapshot, b.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("op=broadcast.create: %w", err)
	}
	return id, nil
}

func (r *BroadcastRepo) ExistsActive(ctx domain.Context, artifactID, productID, vendorID string) (bool, error) {
	tracer := otel.Tracer("repo.broadcast")
	ctx, span := tracer.Start(ctx, "broadcast.ExistsActive")
	defer span.End()

	q := `SELECT EXISTS(
	        SELECT 1 FROM rfq_broadcasts
	        WHERE uploaded_artifact_id=$1 AND product_id=$2 AND vendor_id=$3
	          AND status NOT IN ($4,$5)
	      )`
	row := r.Pool.QueryRow(ctx, q, artifactID, productID, vendorID, domain.BroadcastRejected, domain.BroadcastExpired)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("op=broadcast.exists_active: %w", err)
	}
	return exists, nil
}

func (r *BroadcastRepo) ListByArtifact(ctx domain.Context, artifactID string) ([]domain.RFQBroadcast, error) {
	tracer := otel.Tracer("repo.broadcast")
	ctx, span := tracer.Start(ctx, "broadcast.ListByArtifact")
	defer span.End()

	q := `SELECT id, uploaded_artifact_id, retailer_id, product_id, vendor_id, requested_qty, unit, status, vendor_rank, score_snapshot, weights_snapshot, created_at, responded_at
	      FROM rfq_broadcasts WHERE uploaded_artifact_id=$1 ORDER BY created_at ASC`
	rows, err := r.Pool.Query(ctx, q, artifactID)
	if err != nil {
		return nil, fmt.Errorf("op=broadcast.list_by_artifact: %w", err)
	}
	defer rows.Close()

	var out []domain.RFQBroadcast
	for rows.Next() {
		var b domain.RFQBroadcast
		if err := rows.Scan(&b.ID, &b.UploadedArtifactID, &b.RetailerID, &b.ProductID, &b.VendorID, &b.RequestedQty, &b.Unit, &b.Status, &b.VendorRank, &b.ScoreSnapshot, &b.WeightsSnapshot, &b.CreatedAt, &b.RespondedAt); err != nil {
			return nil, fmt.Errorf("op=broadcast.list_by_artifact.scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=broadcast.list_by_artifact.rows: %w", err)
	}
	return out, nil
}
