// Package usecase wires the domain ports into the operations the external
// interfaces (§6) expose: ingest. report_event is served by
// internal/vendormetrics.
package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wholesalehub/orderbackbone/internal/domain"
	"github.com/wholesalehub/orderbackbone/internal/pipeline"
)

const webhookSource = "upload"

// IngestService implements the inbound ingest(retailer_id, blob_ref,
// source_message_id?) -> artifact_id operation (SPEC_FULL.md §6).
type IngestService struct {
	Artifacts domain.ArtifactRepository
	Queue     domain.JobQueue
	SafeMode  domain.SafeModeGate // optional; nil disables the gate
}

// NewIngestService constructs an IngestService.
func NewIngestService(artifacts domain.ArtifactRepository, queue domain.JobQueue) IngestService {
	return IngestService{Artifacts: artifacts, Queue: queue}
}

// Ingest creates an UploadedArtifact at RECEIVED and enqueues the OCR stage.
// It is idempotent on sourceMessageID: a retried webhook carrying the same
// external id returns the original artifact id without creating a duplicate
// row or a duplicate job.
func (s IngestService) Ingest(ctx domain.Context, retailerID, blobRef, sourceMessageID string) (string, error) {
	if retailerID == "" || blobRef == "" {
		return "", fmt.Errorf("%w: retailer_id and blob_ref are required", domain.ErrInvalidArgument)
	}

	if s.SafeMode != nil {
		suspended, err := s.SafeMode.Enabled(ctx)
		if err != nil {
			return "", fmt.Errorf("safe mode check: %w", err)
		}
		if suspended {
			return "", fmt.Errorf("%w: ingestion is suspended", domain.ErrRateLimited)
		}
	}

	if sourceMessageID != "" {
		existing, found, err := s.Artifacts.FindBySourceMessageID(ctx, webhookSource, sourceMessageID)
		if err != nil {
			return "", fmt.Errorf("dedupe lookup: %w", err)
		}
		if found {
			return existing.ID, nil
		}
	}

	now := time.Now().UTC()
	artifact := domain.UploadedArtifact{
		ID:              uuid.NewString(),
		RetailerID:      retailerID,
		BlobRef:         blobRef,
		SourceMessageID: sourceMessageID,
		Status:          domain.StatusReceived,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	artifactID, err := s.Artifacts.Create(ctx, artifact)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}

	if sourceMessageID != "" {
		if err := s.Artifacts.RegisterWebhookDedupe(ctx, domain.WebhookDedupeEntry{
			Source:     webhookSource,
			ExternalID: sourceMessageID,
			ArtifactID: artifactID,
			CreatedAt:  now,
		}); err != nil {
			return "", fmt.Errorf("register webhook dedupe: %w", err)
		}
	}

	payload, err := json.Marshal(struct {
		ArtifactID string `json:"artifact_id"`
	}{ArtifactID: artifactID})
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}
	if _, err := s.Queue.Enqueue(ctx, pipeline.QueueName, payload, domain.EnqueueOptions{
		IdempotencyKey: "ingest:" + artifactID,
	}); err != nil {
		return "", fmt.Errorf("enqueue ocr stage: %w", err)
	}

	return artifactID, nil
}
