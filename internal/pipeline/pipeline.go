// Package pipeline implements component B: the five-stage resumable
// ingestion state machine (OCR -> EXTRACT -> NORMALIZE -> BROADCAST ->
// FINALIZE), each stage running as a job on the "ingestion" queue.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/domain"
	"github.com/wholesalehub/orderbackbone/internal/selector"
)

// QueueName is the queue every stage job runs on.
const QueueName = "ingestion"

// Config holds the stage thresholds pulled from the process configuration.
type Config struct {
	MatchThreshold           float64
	ReviewFractionThreshold  float64
	MaxQuantity              float64
	TopKVendors              int
}

// Pipeline wires component B's five stages to their collaborating ports.
type Pipeline struct {
	Artifacts     domain.ArtifactRepository
	ProcessingLog domain.ProcessingLogRepository
	Catalog       domain.CatalogRepository
	Blobs         domain.BlobStore
	OCRProvider   domain.OCRProvider
	Extractor     domain.ItemExtractor
	Selector      *selector.Selector
	Broadcasts    domain.BroadcastRepository
	Outbox        domain.OutboxRepository
	Queue         domain.JobQueue
	Cfg           Config
}

type stagePayload struct {
	ArtifactID string `json:"artifact_id"`
}

// EnqueueStage schedules one stage job for artifactID.
func (p *Pipeline) EnqueueStage(ctx domain.Context, artifactID string) (string, error) {
	payload, err := json.Marshal(stagePayload{ArtifactID: artifactID})
	if err != nil {
		return "", fmt.Errorf("op=pipeline.enqueue_stage.marshal: %w", err)
	}
	id, err := p.Queue.Enqueue(ctx, QueueName, payload, domain.EnqueueOptions{MaxAttempts: 3})
	if err != nil {
		return "", fmt.Errorf("op=pipeline.enqueue_stage: %w", err)
	}
	observability.EnqueueJob(QueueName)
	return id, nil
}

func decodePayload(job domain.Job) (string, error) {
	var p stagePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return "", fmt.Errorf("op=pipeline.decode_payload: %w", domain.ErrSchemaInvalid)
	}
	return p.ArtifactID, nil
}

// Process advances whichever stage matches the artifact's current status.
// It is the single ProcessorFunc registered against QueueName: every job
// on the ingestion queue carries an artifact id, and the handler looks at
// the artifact's durable status to decide what to do next, which is what
// makes every stage safely re-runnable after a crash.
func (p *Pipeline) Process(ctx domain.Context, job domain.Job) error {
	artifactID, err := decodePayload(job)
	if err != nil {
		return err
	}
	artifact, err := p.Artifacts.Get(ctx, artifactID)
	if err != nil {
		return fmt.Errorf("op=pipeline.process.get: %w", err)
	}

	var outcome domain.StageOutcome
	var stage string
	switch artifact.Status {
	case domain.StatusReceived:
		stage = domain.StageOCR
		outcome = p.runOCR(ctx, &artifact)
	case domain.StatusOCRDone:
		stage = domain.StageExtract
		outcome = p.runExtract(ctx, &artifact)
	case domain.StatusExtracted:
		stage = domain.StageNormalize
		outcome = p.runNormalize(ctx, &artifact)
	case domain.StatusNormalized:
		stage = domain.StageBroadcast
		outcome = p.runBroadcast(ctx, &artifact)
	case domain.StatusBroadcast:
		stage = domain.StageFinalize
		outcome = p.runFinalize(ctx, &artifact)
	default:
		// Already terminal (COMPLETED/FAILED/PENDING_REVIEW): nothing to do.
		return nil
	}

	p.logOutcome(ctx, artifact.ID, stage, outcome)

	switch outcome.Kind {
	case domain.OutcomeOK:
		if artifact.Status != domain.StatusCompleted {
			if _, err := p.EnqueueStage(ctx, artifact.ID); err != nil {
				return fmt.Errorf("op=pipeline.process.enqueue_next: %w", err)
			}
		}
		return nil
	case domain.OutcomeSoftFail:
		return nil // artifact parked in PENDING_REVIEW; no retry
	case domain.OutcomeTransient:
		return outcome // nack -> retry via queue backoff
	case domain.OutcomeHardFail:
		return nil // artifact parked in FAILED; no retry
	default:
		return fmt.Errorf("op=pipeline.process: unknown outcome kind %q", outcome.Kind)
	}
}

func (p *Pipeline) logOutcome(ctx domain.Context, artifactID, stage string, outcome domain.StageOutcome) {
	level := "info"
	if outcome.Kind == domain.OutcomeSoftFail {
		level = "warn"
	} else if outcome.Kind == domain.OutcomeHardFail || outcome.Kind == domain.OutcomeTransient {
		level = "error"
	}
	entry := domain.ProcessingLogEntry{
		ArtifactID: artifactID,
		Stage:      stage,
		Level:      level,
		Message:    outcome.Reason,
		At:         time.Now().UTC(),
	}
	if err := p.ProcessingLog.Append(ctx, entry); err != nil {
		slog.Error("failed to append processing log entry", slog.String("artifact_id", artifactID), slog.Any("error", err))
	}
}

func newOutboxRow(artifactID, target string, payload []byte) domain.OutboxRow {
	return domain.OutboxRow{ID: uuid.New().String(), ArtifactID: artifactID, Target: target, Payload: payload, CreatedAt: time.Now().UTC()}
}
