package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesalehub/orderbackbone/internal/config"
	"github.com/wholesalehub/orderbackbone/internal/domain"
	"github.com/wholesalehub/orderbackbone/internal/selector"
)

type fakeArtifactRepo struct {
	artifacts map[string]domain.UploadedArtifact
}

func newFakeArtifactRepo(a domain.UploadedArtifact) *fakeArtifactRepo {
	a.UpdatedAt = time.Now().UTC()
	return &fakeArtifactRepo{artifacts: map[string]domain.UploadedArtifact{a.ID: a}}
}

func (f *fakeArtifactRepo) Create(ctx domain.Context, a domain.UploadedArtifact) (string, error) {
	f.artifacts[a.ID] = a
	return a.ID, nil
}
func (f *fakeArtifactRepo) Get(ctx domain.Context, id string) (domain.UploadedArtifact, error) {
	a, ok := f.artifacts[id]
	if !ok {
		return domain.UploadedArtifact{}, domain.ErrNotFound
	}
	return a, nil
}
func (f *fakeArtifactRepo) Update(ctx domain.Context, a domain.UploadedArtifact, expected time.Time) error {
	existing := f.artifacts[a.ID]
	if !existing.UpdatedAt.Equal(expected) {
		return domain.ErrConflict
	}
	a.UpdatedAt = time.Now().UTC()
	f.artifacts[a.ID] = a
	return nil
}
func (f *fakeArtifactRepo) FindBySourceMessageID(ctx domain.Context, source, externalID string) (domain.UploadedArtifact, bool, error) {
	return domain.UploadedArtifact{}, false, nil
}
func (f *fakeArtifactRepo) RegisterWebhookDedupe(ctx domain.Context, entry domain.WebhookDedupeEntry) error {
	return nil
}

type fakeLog struct{ entries []domain.ProcessingLogEntry }

func (f *fakeLog) Append(ctx domain.Context, e domain.ProcessingLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeLog) ListByArtifact(ctx domain.Context, artifactID string) ([]domain.ProcessingLogEntry, error) {
	return f.entries, nil
}

type fakeBlobs struct{ data []byte }

func (f *fakeBlobs) Get(ctx domain.Context, ref string) ([]byte, error) { return f.data, nil }

type fakeOCR struct{ text string }

func (f *fakeOCR) ExtractText(ctx domain.Context, mimeType string, data []byte) (domain.OCRResult, error) {
	return domain.OCRResult{Text: f.text}, nil
}

type fakeExtractor struct{ items []domain.RawExtractedItem }

func (f *fakeExtractor) ExtractItems(ctx domain.Context, text string) ([]domain.RawExtractedItem, error) {
	return f.items, nil
}

type fakeBroadcasts struct {
	rows []domain.RFQBroadcast
}

func (f *fakeBroadcasts) Create(ctx domain.Context, b domain.RFQBroadcast) (string, error) {
	b.ID = fmt.Sprintf("b%d", len(f.rows))
	f.rows = append(f.rows, b)
	return b.ID, nil
}
func (f *fakeBroadcasts) ExistsActive(ctx domain.Context, artifactID, productID, vendorID string) (bool, error) {
	return false, nil
}
func (f *fakeBroadcasts) ListByArtifact(ctx domain.Context, artifactID string) ([]domain.RFQBroadcast, error) {
	var out []domain.RFQBroadcast
	for _, r := range f.rows {
		if r.UploadedArtifactID == artifactID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeOutbox struct{ rows []domain.OutboxRow }

func (f *fakeOutbox) Enqueue(ctx domain.Context, row domain.OutboxRow) error {
	f.rows = append(f.rows, row)
	return nil
}
func (f *fakeOutbox) ClaimBatch(ctx domain.Context, limit int) ([]domain.OutboxRow, error) { return nil, nil }
func (f *fakeOutbox) MarkDispatched(ctx domain.Context, id string) error                  { return nil }

type fakeJobQueue struct{ enqueued [][]byte }

func (f *fakeJobQueue) Enqueue(ctx domain.Context, queueName string, payload []byte, opts domain.EnqueueOptions) (string, error) {
	f.enqueued = append(f.enqueued, payload)
	return "job-x", nil
}
func (f *fakeJobQueue) ClaimNext(ctx domain.Context, queueName, workerID string, now time.Time, jobTimeout time.Duration) (domain.Job, bool, error) {
	return domain.Job{}, false, nil
}
func (f *fakeJobQueue) Ack(ctx domain.Context, jobID string) error           { return nil }
func (f *fakeJobQueue) Nack(ctx domain.Context, jobID string, cause error) error { return nil }
func (f *fakeJobQueue) Reap(ctx domain.Context, now time.Time) (int, error) { return 0, nil }
func (f *fakeJobQueue) RetryFromDLQ(ctx domain.Context, jobID string) error { return nil }

type fakeVendors struct{ candidates []domain.VendorCandidate }

func (f *fakeVendors) EligibleForProduct(ctx domain.Context, productID string, quantity float64, at time.Time) ([]domain.VendorCandidate, error) {
	return f.candidates, nil
}

func TestPipeline_FullHappyPathReachesCompleted(t *testing.T) {
	artifactID := "artifact-1"
	artifacts := newFakeArtifactRepo(domain.UploadedArtifact{ID: artifactID, RetailerID: "r1", BlobRef: "blob-1", Status: domain.StatusReceived})
	catalog := &fakeCatalog{exact: map[string]domain.Product{"basmati rice": {ID: "p1", CanonicalName: "Basmati Rice"}}}
	vendors := &fakeVendors{candidates: []domain.VendorCandidate{
		{Vendor: domain.Vendor{ID: "v1", Active: true}, Listing: domain.VendorProduct{VendorID: "v1", ProductID: "p1", Price: 10, Available: true, Stock: 100}, Metrics: domain.VendorMetrics{VendorID: "v1", ReliabilityScore: 80}},
	}}
	sel := selector.New(vendors, config.SelectorWeights{Reliability: 0.4, Price: 0.3, Fulfillment: 0.2, Response: 0.1}, 60, 10, 5)

	p := &Pipeline{
		Artifacts:     artifacts,
		ProcessingLog: &fakeLog{},
		Catalog:       catalog,
		Blobs:         &fakeBlobs{data: []byte("scan bytes")},
		OCRProvider:   &fakeOCR{text: "2 kg Basmati Rice"},
		Extractor:     &fakeExtractor{items: []domain.RawExtractedItem{{Name: "Basmati Rice", Quantity: "2", Unit: "kg", Confidence: 0.9}}},
		Selector:      sel,
		Broadcasts:    &fakeBroadcasts{},
		Outbox:        &fakeOutbox{},
		Queue:         &fakeJobQueue{},
		Cfg:           Config{MatchThreshold: 0.7, ReviewFractionThreshold: 0.5, MaxQuantity: DefaultMaxQuantity, TopKVendors: 5},
	}

	job := domain.Job{Payload: []byte(`{"artifact_id":"` + artifactID + `"}`)}

	for i := 0; i < 5; i++ {
		err := p.Process(context.Background(), job)
		require.NoError(t, err)
		a, _ := artifacts.Get(context.Background(), artifactID)
		if a.Status == domain.StatusCompleted {
			break
		}
	}

	final, err := artifacts.Get(context.Background(), artifactID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, final.Status)
}

func TestPipeline_EmptyTextParksForReview(t *testing.T) {
	artifactID := "artifact-2"
	artifacts := newFakeArtifactRepo(domain.UploadedArtifact{ID: artifactID, RetailerID: "r1", BlobRef: "blob-1", Status: domain.StatusOCRDone, RawText: ""})

	p := &Pipeline{
		Artifacts:     artifacts,
		ProcessingLog: &fakeLog{},
		Extractor:     &fakeExtractor{},
		Queue:         &fakeJobQueue{},
		Cfg:           Config{MatchThreshold: 0.7, ReviewFractionThreshold: 0.5, MaxQuantity: DefaultMaxQuantity},
	}
	job := domain.Job{Payload: []byte(`{"artifact_id":"` + artifactID + `"}`)}
	require.NoError(t, p.Process(context.Background(), job))

	final, err := artifacts.Get(context.Background(), artifactID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, final.Status)
}
