package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/wholesalehub/orderbackbone/internal/domain"
	"github.com/wholesalehub/orderbackbone/pkg/textx"
)

func (p *Pipeline) save(ctx domain.Context, artifact *domain.UploadedArtifact, newStatus domain.ArtifactStatus) domain.StageOutcome {
	expected := artifact.UpdatedAt
	artifact.Status = newStatus
	if err := p.Artifacts.Update(ctx, *artifact, expected); err != nil {
		return domain.Transient("failed to persist stage output", err)
	}
	artifact.UpdatedAt = time.Now().UTC()
	return domain.Ok()
}

// runOCR fetches the blob and extracts raw text.
func (p *Pipeline) runOCR(ctx domain.Context, artifact *domain.UploadedArtifact) domain.StageOutcome {
	blob, err := p.Blobs.Get(ctx, artifact.BlobRef)
	if err != nil {
		if errors.Is(err, domain.ErrBlobNotFound) {
			return p.fail(ctx, artifact, domain.HardFail("blob not found", err))
		}
		return domain.Transient("blob fetch failed", err)
	}

	mimeType := mimetype.Detect(blob).String()
	result, err := p.OCRProvider.ExtractText(ctx, mimeType, blob)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) || errors.Is(err, domain.ErrUpstreamTimeout) {
			return domain.Transient("ocr provider unavailable", err)
		}
		return p.fail(ctx, artifact, domain.HardFail("unreadable image", err))
	}

	artifact.RawText = textx.SanitizeText(result.Text)
	return p.save(ctx, artifact, domain.StatusOCRDone)
}

// runExtract turns raw text into cleaned ExtractedItems.
func (p *Pipeline) runExtract(ctx domain.Context, artifact *domain.UploadedArtifact) domain.StageOutcome {
	if artifact.RawText == "" {
		return p.park(ctx, artifact, domain.SoftFail("empty text"))
	}

	raw, err := p.Extractor.ExtractItems(ctx, artifact.RawText)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) || errors.Is(err, domain.ErrUpstreamTimeout) {
			return domain.Transient("extraction provider unavailable", err)
		}
		if errors.Is(err, domain.ErrSchemaInvalid) {
			return domain.Transient("malformed structured output", err)
		}
		return domain.Transient("extraction failed", err)
	}

	maxQty := p.Cfg.MaxQuantity
	cleaned := make([]domain.ExtractedItem, 0, len(raw))
	for _, r := range raw {
		item, err := Clean(r, maxQty)
		if err != nil {
			continue
		}
		if item != nil {
			cleaned = append(cleaned, *item)
		}
	}
	cleaned = MergeDuplicates(cleaned)

	if len(cleaned) == 0 {
		return p.park(ctx, artifact, domain.SoftFail("zero items extracted"))
	}

	artifact.ExtractedItems = cleaned
	return p.save(ctx, artifact, domain.StatusExtracted)
}

// runNormalize matches each extracted item against the catalog.
func (p *Pipeline) runNormalize(ctx domain.Context, artifact *domain.UploadedArtifact) domain.StageOutcome {
	threshold := p.Cfg.MatchThreshold
	normalized := make([]domain.NormalizedItem, 0, len(artifact.ExtractedItems))
	reviewCount := 0
	for _, item := range artifact.ExtractedItems {
		n, err := MatchProduct(ctx, p.Catalog, item, threshold)
		if err != nil {
			return domain.Transient("catalog lookup failed", err)
		}
		if n.NeedsReview {
			reviewCount++
		}
		normalized = append(normalized, n)
	}

	artifact.NormalizedItems = normalized
	reviewFraction := float64(reviewCount) / float64(len(normalized))
	if reviewFraction > p.Cfg.ReviewFractionThreshold {
		return p.park(ctx, artifact, domain.SoftFail(fmt.Sprintf("review fraction %.2f exceeds threshold", reviewFraction)))
	}
	return p.save(ctx, artifact, domain.StatusNormalized)
}

// runBroadcast selects top-K vendors per confidently-normalized item and
// writes RFQBroadcast + outbox rows atomically per item.
func (p *Pipeline) runBroadcast(ctx domain.Context, artifact *domain.UploadedArtifact) domain.StageOutcome {
	existing, err := p.Broadcasts.ListByArtifact(ctx, artifact.ID)
	if err != nil {
		return domain.Transient("failed to list existing broadcasts", err)
	}
	already := map[string]bool{}
	for _, b := range existing {
		already[b.ProductID+"|"+b.VendorID] = true
	}

	anyBroadcast := false
	anyEligible := false
	now := time.Now().UTC()
	weightsJSON, _ := json.Marshal(p.Selector.Weights)

	for _, item := range artifact.NormalizedItems {
		if item.NeedsReview || item.ProductID == "" {
			continue
		}
		anyEligible = true

		decision, err := p.Selector.Select(ctx, item.ProductID, item.Extracted.Quantity, now)
		if err != nil {
			if errors.Is(err, domain.ErrNoEligibleVendors) {
				continue
			}
			return domain.Transient("vendor selection failed", err)
		}

		for rank, sc := range decision.TopK {
			key := item.ProductID + "|" + sc.Candidate.Vendor.ID
			if already[key] {
				anyBroadcast = true
				continue
			}
			broadcast := domain.RFQBroadcast{
				UploadedArtifactID: artifact.ID,
				RetailerID:         artifact.RetailerID,
				ProductID:          item.ProductID,
				VendorID:           sc.Candidate.Vendor.ID,
				RequestedQty:       item.Extracted.Quantity,
				Unit:               item.Extracted.Unit,
				Status:             domain.BroadcastSent,
				VendorRank:         rank + 1,
				ScoreSnapshot:      sc.Score,
				WeightsSnapshot:    string(weightsJSON),
				CreatedAt:          now,
			}
			if _, err := p.Broadcasts.Create(ctx, broadcast); err != nil {
				return domain.Transient("failed to persist rfq broadcast", err)
			}
			payload, _ := json.Marshal(broadcast)
			if err := p.Outbox.Enqueue(ctx, newOutboxRow(artifact.ID, "vendor-notify", payload)); err != nil {
				return domain.Transient("failed to enqueue outbox row", err)
			}
			anyBroadcast = true
		}
	}

	if anyEligible && !anyBroadcast {
		return p.park(ctx, artifact, domain.SoftFail("no vendors found for any eligible item"))
	}
	return p.save(ctx, artifact, domain.StatusBroadcast)
}

// runFinalize computes the terminal status: COMPLETED if every
// broadcast-eligible item produced at least one RFQ row, else PENDING_REVIEW.
func (p *Pipeline) runFinalize(ctx domain.Context, artifact *domain.UploadedArtifact) domain.StageOutcome {
	broadcasts, err := p.Broadcasts.ListByArtifact(ctx, artifact.ID)
	if err != nil {
		return domain.Transient("failed to list broadcasts for finalize", err)
	}
	coveredProducts := map[string]bool{}
	for _, b := range broadcasts {
		coveredProducts[b.ProductID] = true
	}

	allCovered := true
	for _, item := range artifact.NormalizedItems {
		if item.NeedsReview || item.ProductID == "" {
			continue
		}
		if !coveredProducts[item.ProductID] {
			allCovered = false
			break
		}
	}

	if !allCovered {
		return p.park(ctx, artifact, domain.SoftFail("not every eligible item produced an rfq"))
	}
	return p.save(ctx, artifact, domain.StatusCompleted)
}

func (p *Pipeline) park(ctx domain.Context, artifact *domain.UploadedArtifact, outcome domain.StageOutcome) domain.StageOutcome {
	expected := artifact.UpdatedAt
	artifact.LastError = outcome.Reason
	artifact.Status = domain.StatusPendingReview
	if err := p.Artifacts.Update(ctx, *artifact, expected); err != nil {
		return domain.Transient("failed to persist pending_review parking", err)
	}
	artifact.UpdatedAt = time.Now().UTC()
	return outcome
}

func (p *Pipeline) fail(ctx domain.Context, artifact *domain.UploadedArtifact, outcome domain.StageOutcome) domain.StageOutcome {
	expected := artifact.UpdatedAt
	artifact.LastError = outcome.Reason
	artifact.Status = domain.StatusFailed
	if err := p.Artifacts.Update(ctx, *artifact, expected); err != nil {
		return domain.Transient("failed to persist failed status", err)
	}
	artifact.UpdatedAt = time.Now().UTC()
	return outcome
}
